package stream

import (
	"errors"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
)

type Kind uint8

const (
	KindAccepted Kind = iota + 1
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Event is emitted once per fully processed packet, and once for a fatal
// header. Payload is only set on accepted or footer-rejected packets when
// the parser captures payloads; the slice is owned by the receiver.
type Event struct {
	Kind    Kind
	Header  frame.Header
	Payload []byte
	Err     error
}

func (e Event) Command() protocol.Command {
	return e.Header.Command
}

// Fatal reports whether the event ended the stream.
func (e Event) Fatal() bool {
	var cerr *CorruptionError
	return errors.As(e.Err, &cerr)
}

type Sink interface {
	HandleEvent(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(ev Event) {
	f(ev)
}
