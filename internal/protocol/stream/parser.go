// Package stream reassembles packets from byte deliveries whose boundaries
// have no relation to packet boundaries.
//
// A Parser is owned by one session and must not be fed concurrently. It keeps
// only a header-sized reassembly buffer and scalar counters between calls;
// payload bytes are either handed to OnPayload as transient views or copied
// when CapturePayload is set.
package stream

import (
	"errors"
	"fmt"

	"github.com/danmuck/mxprint/internal/protocol/checksum"
	"github.com/danmuck/mxprint/internal/protocol/frame"
)

var (
	ErrMagicMismatch = errors.New("stream: magic mismatch")
	ErrCorrupted     = errors.New("stream: parser corrupted")
)

// CorruptionError is returned when a header carries the wrong magic. The
// stream is no longer framed and the parser refuses further input.
type CorruptionError struct {
	Header frame.Header
	Want   uint16
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("stream: magic mismatch: got 0x%04X want 0x%04X (command=0x%02X length=%d)",
		e.Header.Magic, e.Want, uint8(e.Header.Command), e.Header.PayloadLen)
}

func (e *CorruptionError) Unwrap() error {
	return ErrMagicMismatch
}

type State uint8

const (
	StateHeader State = iota
	StatePayload
	StateFooter
)

func (s State) String() string {
	switch s {
	case StateHeader:
		return "awaiting_header"
	case StatePayload:
		return "awaiting_payload"
	case StateFooter:
		return "awaiting_footer"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Options configures a Parser. A zero Magic selects frame.DefaultMagic.
type Options struct {
	Magic          uint16
	CapturePayload bool
	OnPayload      func(h frame.Header, fragment []byte)
	Sink           Sink
}

// Stats are cumulative since construction or the last Reset.
type Stats struct {
	Bytes    uint64
	Accepted uint64
	Rejected uint64
}

type Parser struct {
	opts  Options
	magic uint16

	state  State
	hdrBuf [frame.HeaderSize]byte
	hdrLen int
	header frame.Header

	remainingPayload int
	remainingFooter  int
	sum              uint8
	footerErrs       []error
	payload          []byte

	err   error
	stats Stats
}

func New(opts Options) *Parser {
	magic := opts.Magic
	if magic == 0 {
		magic = frame.DefaultMagic
	}
	return &Parser{opts: opts, magic: magic}
}

// Reset drops any partial packet, the corrupted latch and stats.
func (p *Parser) Reset() {
	*p = Parser{opts: p.opts, magic: p.magic}
}

func (p *Parser) State() State {
	return p.state
}

func (p *Parser) Stats() Stats {
	return p.stats
}

// Err returns the fatal error that latched the parser, if any.
func (p *Parser) Err() error {
	return p.err
}

// Feed consumes one delivery in full. It returns a *CorruptionError when a
// header fails the magic check; bytes after that header are not interpreted,
// and every later call returns ErrCorrupted until Reset.
func (p *Parser) Feed(chunk []byte) error {
	if p.err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupted, p.err)
	}
	for len(chunk) > 0 {
		var (
			n   int
			err error
		)
		switch p.state {
		case StateHeader:
			n, err = p.readHeader(chunk)
		case StatePayload:
			n = p.readPayload(chunk)
		case StateFooter:
			n = p.readFooter(chunk)
		}
		p.stats.Bytes += uint64(n)
		if err != nil {
			return err
		}
		chunk = chunk[n:]
	}
	return nil
}

func (p *Parser) readHeader(chunk []byte) (int, error) {
	need := frame.HeaderSize - p.hdrLen
	if len(chunk) < need {
		p.hdrLen += copy(p.hdrBuf[p.hdrLen:], chunk)
		return len(chunk), nil
	}
	copy(p.hdrBuf[p.hdrLen:], chunk[:need])
	p.hdrLen = 0

	h, err := frame.ParseHeader(p.hdrBuf[:])
	if err != nil {
		return need, err
	}
	if h.Magic != p.magic {
		cerr := &CorruptionError{Header: h, Want: p.magic}
		p.err = cerr
		p.stats.Rejected++
		p.emit(Event{Kind: KindRejected, Header: h, Err: cerr})
		return need, cerr
	}

	p.header = h
	p.remainingPayload = int(h.PayloadLen)
	p.remainingFooter = frame.FooterSize
	p.sum = 0
	p.footerErrs = nil
	if p.opts.CapturePayload {
		p.payload = make([]byte, 0, h.PayloadLen)
	}
	if p.remainingPayload == 0 {
		p.state = StateFooter
	} else {
		p.state = StatePayload
	}
	return need, nil
}

func (p *Parser) readPayload(chunk []byte) int {
	n := min(len(chunk), p.remainingPayload)
	part := chunk[:n]
	p.sum = checksum.Update(p.sum, part)
	if p.opts.CapturePayload {
		p.payload = append(p.payload, part...)
	}
	if p.opts.OnPayload != nil {
		p.opts.OnPayload(p.header, part)
	}
	p.remainingPayload -= n
	if p.remainingPayload == 0 {
		p.state = StateFooter
	}
	return n
}

// readFooter takes one byte per call: checksum first, then terminator.
func (p *Parser) readFooter(chunk []byte) int {
	b := chunk[0]
	switch p.remainingFooter {
	case 2:
		if b != p.sum {
			p.footerErrs = append(p.footerErrs,
				fmt.Errorf("%w: got 0x%02X want 0x%02X", frame.ErrChecksumMismatch, b, p.sum))
		}
	case 1:
		if b != frame.Terminator {
			p.footerErrs = append(p.footerErrs,
				fmt.Errorf("%w: got 0x%02X", frame.ErrTerminatorMismatch, b))
		}
	}
	p.remainingFooter--
	if p.remainingFooter == 0 {
		p.finish()
	}
	return 1
}

func (p *Parser) finish() {
	ev := Event{Kind: KindAccepted, Header: p.header, Payload: p.payload}
	if len(p.footerErrs) > 0 {
		ev.Kind = KindRejected
		ev.Err = errors.Join(p.footerErrs...)
		p.stats.Rejected++
	} else {
		p.stats.Accepted++
	}
	p.state = StateHeader
	p.payload = nil
	p.footerErrs = nil
	p.emit(ev)
}

func (p *Parser) emit(ev Event) {
	if p.opts.Sink != nil {
		p.opts.Sink.HandleEvent(ev)
	}
}
