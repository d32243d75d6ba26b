package dispatch

import (
	"fmt"
	"sync"

	"github.com/danmuck/mxprint/internal/observability"
	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/protocol/session"
	"github.com/danmuck/mxprint/internal/protocol/stream"
	"github.com/rs/zerolog/log"
)

// DefaultStatusPayload is the body the printer answers a status query with.
var DefaultStatusPayload = []byte{0x00, 0x01, 0xCA}

// Handler runs the command-specific side effects of one accepted packet.
type Handler interface {
	HandlePacket(s *session.Session, ev stream.Event) error
}

type HandlerFunc func(s *session.Session, ev stream.Event) error

func (f HandlerFunc) HandlePacket(s *session.Session, ev stream.Event) error {
	return f(s, ev)
}

// Router implements session.Dispatcher.
type Router struct {
	codec frame.Codec

	mu       sync.RWMutex
	handlers map[protocol.Command]Handler
}

// NewRouter returns a router that answers status queries with
// DefaultStatusPayload. Replies are framed with codec's magic.
func NewRouter(codec frame.Codec) *Router {
	r := &Router{
		codec:    codec,
		handlers: make(map[protocol.Command]Handler),
	}
	r.Handle(protocol.CmdStatus, StatusReply(codec, DefaultStatusPayload))
	return r
}

// Handle replaces the handler for cmd. A nil handler removes it.
func (r *Router) Handle(cmd protocol.Command, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, cmd)
		return
	}
	r.handlers[cmd] = h
}

func (r *Router) handler(cmd protocol.Command) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[cmd]
	return h, ok
}

func (r *Router) Dispatch(s *session.Session, ev stream.Event) {
	observability.RecordEvent(ev)

	if ev.Kind == stream.KindRejected {
		entry := log.Warn()
		if ev.Fatal() {
			entry = log.Error()
		}
		entry.
			Str("session", s.ID()).
			Str("command", commandLabel(ev.Command())).
			Err(ev.Err).
			Msg("dispatch.rejected")
		return
	}

	log.Info().
		Str("session", s.ID()).
		Str("command", commandLabel(ev.Command())).
		Int("length", int(ev.Header.PayloadLen)).
		Str("payload", FormatHex(ev.Payload, 64)).
		Msg("dispatch.packet")

	h, ok := r.handler(ev.Command())
	if !ok {
		return
	}
	if err := h.HandlePacket(s, ev); err != nil {
		log.Warn().
			Str("session", s.ID()).
			Str("command", commandLabel(ev.Command())).
			Err(err).
			Msg("dispatch.handler failed")
	}
}

// StatusReply answers with a reply-direction status frame carrying payload.
func StatusReply(codec frame.Codec, payload []byte) Handler {
	reply, err := codec.EncodeWithDirection(protocol.CmdStatus, frame.DirectionReply, payload)
	if err != nil {
		panic(fmt.Sprintf("dispatch: status payload: %v", err))
	}
	return HandlerFunc(func(s *session.Session, _ stream.Event) error {
		if err := s.Notify(reply); err != nil {
			return fmt.Errorf("notify status: %w", err)
		}
		observability.RecordReply(protocol.CmdStatus)
		return nil
	})
}

func commandLabel(cmd protocol.Command) string {
	return fmt.Sprintf("%s(%02x)", cmd, uint8(cmd))
}
