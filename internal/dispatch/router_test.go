package dispatch

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/protocol/session"
	"github.com/danmuck/mxprint/internal/protocol/stream"
	"github.com/danmuck/mxprint/internal/testutil/testlog"
)

type captureNotifier struct {
	mu  sync.Mutex
	out [][]byte
}

func (c *captureNotifier) Notify(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, append([]byte(nil), b...))
	return nil
}

func encode(t *testing.T, cmd protocol.Command, payload []byte) []byte {
	t.Helper()
	out, err := frame.Encode(cmd, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func TestStatusQueryGetsFirmwareReply(t *testing.T) {
	testlog.Start(t)

	router := NewRouter(frame.NewCodec(frame.DefaultMagic))
	reg := session.NewRegistry(session.DefaultConfig(), router)
	n := &captureNotifier{}
	s := reg.Open("peer", n)

	if err := s.Deliver(encode(t, protocol.CmdStatus, nil)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	want := []byte{0x51, 0x78, 0xA3, 0x01, 0x03, 0x00, 0x00, 0x01, 0xCA, 0x6D, 0xFF}
	if len(n.out) != 1 || !bytes.Equal(n.out[0], want) {
		t.Fatalf("unexpected replies: % X", n.out)
	}
}

func TestOtherCommandsDoNotReply(t *testing.T) {
	testlog.Start(t)

	router := NewRouter(frame.NewCodec(frame.DefaultMagic))
	reg := session.NewRegistry(session.DefaultConfig(), router)
	n := &captureNotifier{}
	s := reg.Open("peer", n)

	data := append(encode(t, protocol.CmdPrintData, bytes.Repeat([]byte{0xF0}, 96)), encode(t, protocol.Command(0x01), nil)...)
	bad := encode(t, protocol.CmdSetHeat, []byte{1})
	bad[len(bad)-2] ^= 1
	data = append(data, bad...)
	if err := s.Deliver(data); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(n.out) != 0 {
		t.Fatalf("expected no replies, got %d", len(n.out))
	}
}

func TestCustomHandlerAndErrors(t *testing.T) {
	testlog.Start(t)

	router := NewRouter(frame.NewCodec(frame.DefaultMagic))
	var seen []protocol.Command
	router.Handle(protocol.CmdSetEnergy, HandlerFunc(func(s *session.Session, ev stream.Event) error {
		seen = append(seen, ev.Command())
		return errors.New("energy out of range")
	}))
	router.Handle(protocol.CmdStatus, nil)

	reg := session.NewRegistry(session.DefaultConfig(), router)
	n := &captureNotifier{}
	s := reg.Open("peer", n)
	data := append(encode(t, protocol.CmdSetEnergy, []byte{0xFF, 0xFF}), encode(t, protocol.CmdStatus, nil)...)
	if err := s.Deliver(data); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(seen) != 1 || seen[0] != protocol.CmdSetEnergy {
		t.Fatalf("custom handler not invoked: %v", seen)
	}
	if len(n.out) != 0 {
		t.Fatalf("status handler was removed, expected no reply")
	}
}

func TestStatusReplyWithoutNotifier(t *testing.T) {
	testlog.Start(t)

	h := StatusReply(frame.NewCodec(frame.DefaultMagic), DefaultStatusPayload)
	reg := session.NewRegistry(session.DefaultConfig(), nil)
	s := reg.Open("peer", nil)
	if err := h.HandlePacket(s, stream.Event{}); !errors.Is(err, session.ErrNoNotifier) {
		t.Fatalf("expected ErrNoNotifier, got %v", err)
	}
}

func TestFormatHex(t *testing.T) {
	cases := []struct {
		in    []byte
		limit int
		want  string
	}{
		{nil, 0, ""},
		{[]byte{0x00, 0x01, 0xCA}, 0, "00 01 ca"},
		{[]byte{0x0A, 0x0B, 0x0C, 0x0D}, 2, "0a 0b ... (4 bytes)"},
		{[]byte{0xFF}, 8, "ff"},
	}
	for _, tc := range cases {
		if got := FormatHex(tc.in, tc.limit); got != tc.want {
			t.Fatalf("FormatHex(% X, %d) = %q want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}
