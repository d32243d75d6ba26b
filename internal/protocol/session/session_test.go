package session

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/protocol/stream"
	"github.com/danmuck/mxprint/internal/testutil/testlog"
)

type collected struct {
	mu     sync.Mutex
	events map[string][]stream.Event
}

func newCollected() *collected {
	return &collected{events: make(map[string][]stream.Event)}
}

func (c *collected) Dispatch(s *Session, ev stream.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[s.ID()] = append(c.events[s.ID()], ev)
}

func (c *collected) forSession(id string) []stream.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]stream.Event(nil), c.events[id]...)
}

func encode(t *testing.T, cmd protocol.Command, payload []byte) []byte {
	t.Helper()
	out, err := frame.Encode(cmd, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func badMagicFrame(t *testing.T) []byte {
	t.Helper()
	out := encode(t, protocol.CmdStatus, nil)
	out[0] = 0x00
	return out
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := Config{CapturePayload: true}.WithDefaults()
	if cfg != DefaultConfig() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	bad := DefaultConfig()
	bad.FatalPolicy = "resync"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSessionDispatchesEventsInOrder(t *testing.T) {
	testlog.Start(t)

	sink := newCollected()
	reg := NewRegistry(DefaultConfig(), sink)
	s := reg.Open("peer-a", nil)

	data := append(encode(t, protocol.CmdStatus, nil), encode(t, protocol.CmdSetEnergy, []byte{0x10, 0x27})...)
	for _, part := range [][]byte{data[:3], data[3:11], data[11:]} {
		if err := s.Deliver(part); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
	events := sink.forSession(s.ID())
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Command() != protocol.CmdStatus || events[1].Command() != protocol.CmdSetEnergy {
		t.Fatalf("unexpected order: %s %s", events[0].Command(), events[1].Command())
	}
	if !bytes.Equal(events[1].Payload, []byte{0x10, 0x27}) {
		t.Fatalf("payload mismatch: % X", events[1].Payload)
	}

	st := s.Status()
	if st.Deliveries != 3 || st.Accepted != 2 || st.Bytes != uint64(len(data)) || st.State != "awaiting_header" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	testlog.Start(t)

	sink := newCollected()
	reg := NewRegistry(DefaultConfig(), sink)
	a := reg.Open("peer-a", nil)
	b := reg.Open("peer-b", nil)
	if a.ID() == b.ID() {
		t.Fatalf("session ids must be unique")
	}

	pkt := encode(t, protocol.CmdPrintData, []byte{1, 2, 3, 4})
	if err := a.Deliver(pkt[:5]); err != nil {
		t.Fatalf("deliver a: %v", err)
	}
	if err := b.Deliver(pkt); err != nil {
		t.Fatalf("deliver b: %v", err)
	}
	if len(sink.forSession(a.ID())) != 0 || len(sink.forSession(b.ID())) != 1 {
		t.Fatalf("partial state leaked between sessions")
	}
	if err := a.Deliver(pkt[5:]); err != nil {
		t.Fatalf("deliver a tail: %v", err)
	}
	if len(sink.forSession(a.ID())) != 1 {
		t.Fatalf("session a did not complete its packet")
	}
}

func TestFatalClosePolicy(t *testing.T) {
	testlog.Start(t)

	sink := newCollected()
	reg := NewRegistry(DefaultConfig(), sink)
	s := reg.Open("peer", nil)

	err := s.Deliver(badMagicFrame(t))
	var cerr *stream.CorruptionError
	if !errors.As(err, &cerr) || errors.Is(err, ErrReset) {
		t.Fatalf("expected raw corruption error, got %v", err)
	}
	if !s.Status().Corrupted {
		t.Fatalf("session must report corruption")
	}
	if err := s.Deliver(encode(t, protocol.CmdStatus, nil)); !errors.Is(err, stream.ErrCorrupted) {
		t.Fatalf("expected ErrCorrupted, got %v", err)
	}

	if !reg.Close(s.ID()) {
		t.Fatalf("close must find session")
	}
	if _, ok := reg.Get(s.ID()); ok {
		t.Fatalf("closed session still registered")
	}
	if err := s.Deliver([]byte{0x51}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	fresh := reg.Open("peer", nil)
	if err := fresh.Deliver(encode(t, protocol.CmdStatus, nil)); err != nil {
		t.Fatalf("reopened session must start clean: %v", err)
	}
}

func TestFatalResetPolicy(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.FatalPolicy = FatalReset
	sink := newCollected()
	reg := NewRegistry(cfg, sink)
	s := reg.Open("peer", nil)

	if err := s.Deliver(encode(t, protocol.CmdStatus, nil)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	err := s.Deliver(append(badMagicFrame(t), encode(t, protocol.CmdStatus, nil)...))
	if !errors.Is(err, ErrReset) || !errors.Is(err, stream.ErrMagicMismatch) {
		t.Fatalf("expected reset-wrapped magic mismatch, got %v", err)
	}
	st := s.Status()
	if st.Corrupted || st.Resets != 1 || st.Accepted != 1 || st.Rejected != 1 {
		t.Fatalf("unexpected status after reset: %+v", st)
	}
	if err := s.Deliver(encode(t, protocol.CmdStatus, nil)); err != nil {
		t.Fatalf("deliver after reset: %v", err)
	}
	// the packet behind the bad header in the same delivery was dropped
	events := sink.forSession(s.ID())
	if len(events) != 3 || !events[1].Fatal() || events[2].Kind != stream.KindAccepted {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestNotify(t *testing.T) {
	var got []byte
	reg := NewRegistry(DefaultConfig(), DispatcherFunc(func(s *Session, ev stream.Event) {
		if ev.Command() == protocol.CmdStatus {
			if err := s.Notify([]byte{0xAB}); err != nil {
				t.Errorf("notify: %v", err)
			}
		}
	}))
	s := reg.Open("peer", NotifierFunc(func(b []byte) error {
		got = append(got, b...)
		return nil
	}))
	if err := s.Deliver(encode(t, protocol.CmdStatus, nil)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !bytes.Equal(got, []byte{0xAB}) {
		t.Fatalf("unexpected notify bytes: % X", got)
	}

	silent := reg.Open("quiet", nil)
	if err := silent.Notify([]byte{1}); !errors.Is(err, ErrNoNotifier) {
		t.Fatalf("expected ErrNoNotifier, got %v", err)
	}
}

func TestRegistrySnapshot(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil)
	a := reg.Open("a", nil)
	b := reg.Open("b", nil)
	snap := reg.Snapshot()
	if len(snap) != 2 || reg.Len() != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	ids := map[string]bool{snap[0].ID: true, snap[1].ID: true}
	if !ids[a.ID()] || !ids[b.ID()] {
		t.Fatalf("snapshot missing sessions: %+v", snap)
	}
	reg.Close(a.ID())
	if reg.Len() != 1 {
		t.Fatalf("expected 1 session after close")
	}
}
