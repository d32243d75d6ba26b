package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/mxprint/internal/protocol/stream"
)

var (
	ErrInvalidConfig = errors.New("session: invalid config")
	ErrClosed        = errors.New("session: closed")
	ErrNoNotifier    = errors.New("session: no notifier")
	// ErrReset wraps a fatal framing error that was absorbed by recreating
	// the parser under FatalReset. The connection may stay up.
	ErrReset = errors.New("session: parser reset")
)

// Notifier sends bytes back to the peer, the write half of the transport.
type Notifier interface {
	Notify(b []byte) error
}

type NotifierFunc func(b []byte) error

func (f NotifierFunc) Notify(b []byte) error {
	return f(b)
}

// Dispatcher receives every parser event of a session, in order. It is
// called after the delivery lock is released, so it may call back into the
// session.
type Dispatcher interface {
	Dispatch(s *Session, ev stream.Event)
}

type DispatcherFunc func(s *Session, ev stream.Event)

func (f DispatcherFunc) Dispatch(s *Session, ev stream.Event) {
	f(s, ev)
}

// Status is a point-in-time view of one session.
type Status struct {
	ID           string    `json:"id"`
	Remote       string    `json:"remote"`
	OpenedAt     time.Time `json:"opened_at"`
	LastDelivery time.Time `json:"last_delivery,omitempty"`
	State        string    `json:"state"`
	Deliveries   uint64    `json:"deliveries"`
	Bytes        uint64    `json:"bytes"`
	Accepted     uint64    `json:"accepted"`
	Rejected     uint64    `json:"rejected"`
	Resets       uint64    `json:"resets"`
	Corrupted    bool      `json:"corrupted"`
}

// Session is one connection's worth of parser state.
type Session struct {
	id       string
	remote   string
	cfg      Config
	notifier Notifier
	dispatch Dispatcher
	openedAt time.Time

	mu           sync.Mutex
	parser       *stream.Parser
	pending      []stream.Event
	carried      stream.Stats
	deliveries   uint64
	resets       uint64
	lastDelivery time.Time
	closed       bool
}

func newSession(id, remote string, cfg Config, n Notifier, d Dispatcher) *Session {
	s := &Session{
		id:       id,
		remote:   remote,
		cfg:      cfg,
		notifier: n,
		dispatch: d,
		openedAt: time.Now(),
	}
	s.parser = stream.New(stream.Options{
		Magic:          cfg.Magic,
		CapturePayload: cfg.CapturePayload,
		Sink: stream.SinkFunc(func(ev stream.Event) {
			s.pending = append(s.pending, ev)
		}),
	})
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Remote() string {
	return s.remote
}

// Deliver feeds one transport delivery to the parser and dispatches the
// resulting events. A *stream.CorruptionError means the owner must tear the
// connection down; under FatalReset the error is wrapped in ErrReset instead
// and the session continues with a fresh parser.
func (s *Session) Deliver(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.deliveries++
	s.lastDelivery = time.Now()
	err := s.parser.Feed(chunk)
	var cerr *stream.CorruptionError
	if errors.As(err, &cerr) && s.cfg.FatalPolicy == FatalReset {
		s.resetLocked()
		err = fmt.Errorf("%w: %w", ErrReset, err)
	}
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	if s.dispatch != nil {
		for _, ev := range events {
			s.dispatch.Dispatch(s, ev)
		}
	}
	return err
}

// Reset discards any partial packet and the corrupted latch.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	st := s.parser.Stats()
	s.carried.Bytes += st.Bytes
	s.carried.Accepted += st.Accepted
	s.carried.Rejected += st.Rejected
	s.parser.Reset()
	s.resets++
}

// Notify writes a reply to the peer.
func (s *Session) Notify(b []byte) error {
	if s.notifier == nil {
		return ErrNoNotifier
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.notifier.Notify(b)
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.parser.Stats()
	return Status{
		ID:           s.id,
		Remote:       s.remote,
		OpenedAt:     s.openedAt,
		LastDelivery: s.lastDelivery,
		State:        s.parser.State().String(),
		Deliveries:   s.deliveries,
		Bytes:        s.carried.Bytes + st.Bytes,
		Accepted:     s.carried.Accepted + st.Accepted,
		Rejected:     s.carried.Rejected + st.Rejected,
		Resets:       s.resets,
		Corrupted:    s.parser.Err() != nil,
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
}
