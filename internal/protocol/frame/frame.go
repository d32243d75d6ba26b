// Package frame defines the fixed packet layout and the atomic codec used
// when a whole packet is already buffered.
//
// Wire layout:
//
//	magic(2, little-endian) | command(1) | direction(1) | len_lo(1) | len_hi(1)
//	payload(len)
//	checksum(1) | terminator(1)
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/checksum"
)

const (
	HeaderSize = 6
	FooterSize = 2
	MaxPayload = 0xFFFF

	Terminator uint8 = 0xFF

	// MagicStream is the tag the firmware writes and accepts on the wire.
	MagicStream uint16 = 0x7851
	// MagicLegacy is declared by the firmware's packet class but never put
	// on the wire. Kept so conformance runs can target it explicitly.
	MagicLegacy  uint16 = 0x78A3
	DefaultMagic        = MagicStream

	DirectionRequest uint8 = 0x00
	DirectionReply   uint8 = 0x01
)

var (
	ErrTooShort           = errors.New("frame: buffer too short")
	ErrBadMagic           = errors.New("frame: bad magic")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrChecksumMismatch   = errors.New("frame: checksum mismatch")
	ErrTerminatorMismatch = errors.New("frame: terminator mismatch")
)

// Header is the fixed 6-byte packet header.
type Header struct {
	Magic      uint16
	Command    protocol.Command
	Direction  uint8
	PayloadLen uint16
}

// Footer is the fixed 2-byte packet trailer.
type Footer struct {
	Checksum   uint8
	Terminator uint8
}

// Packet is one decoded frame. Payload aliases the decoded buffer.
type Packet struct {
	Header  Header
	Payload []byte
	Footer  Footer
}

// Size returns the full frame length for a payload of payloadLen bytes.
func Size(payloadLen int) int {
	return HeaderSize + payloadLen + FooterSize
}

func PutHeader(b []byte, h Header) {
	_ = b[HeaderSize-1]
	binary.LittleEndian.PutUint16(b[0:2], h.Magic)
	b[2] = byte(h.Command)
	b[3] = h.Direction
	b[4] = byte(h.PayloadLen)
	b[5] = byte(h.PayloadLen >> 8)
}

// ParseHeader reads a header without validating magic.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTooShort, HeaderSize, len(b))
	}
	return Header{
		Magic:      binary.LittleEndian.Uint16(b[0:2]),
		Command:    protocol.Command(b[2]),
		Direction:  b[3],
		PayloadLen: uint16(b[4]) | uint16(b[5])<<8,
	}, nil
}

// Verify checks the footer against the payload. Atomic decoding leaves this
// to the caller.
func (p Packet) Verify() error {
	var errs []error
	if want := checksum.Calculate(p.Payload); p.Footer.Checksum != want {
		errs = append(errs, fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrChecksumMismatch, p.Footer.Checksum, want))
	}
	if p.Footer.Terminator != Terminator {
		errs = append(errs, fmt.Errorf("%w: got 0x%02X", ErrTerminatorMismatch, p.Footer.Terminator))
	}
	return errors.Join(errs...)
}

// Codec encodes and decodes frames tagged with one magic value.
type Codec struct {
	magic uint16
}

func NewCodec(magic uint16) Codec {
	return Codec{magic: magic}
}

func (c Codec) Magic() uint16 {
	return c.magic
}

// EncodeInto writes a complete frame into dst and returns the bytes written.
// An undersized dst or oversized payload is a programmer error and panics.
func (c Codec) EncodeInto(dst []byte, cmd protocol.Command, direction uint8, payload []byte) int {
	if len(payload) > MaxPayload {
		panic(fmt.Sprintf("frame: payload length %d exceeds %d", len(payload), MaxPayload))
	}
	n := Size(len(payload))
	if len(dst) < n {
		panic(fmt.Sprintf("frame: destination holds %d bytes, frame needs %d", len(dst), n))
	}
	PutHeader(dst, Header{
		Magic:      c.magic,
		Command:    cmd,
		Direction:  direction,
		PayloadLen: uint16(len(payload)),
	})
	copy(dst[HeaderSize:], payload)
	dst[n-2] = checksum.Calculate(payload)
	dst[n-1] = Terminator
	return n
}

// Encode allocates and returns a request frame.
func (c Codec) Encode(cmd protocol.Command, payload []byte) ([]byte, error) {
	return c.EncodeWithDirection(cmd, DirectionRequest, payload)
}

func (c Codec) EncodeWithDirection(cmd protocol.Command, direction uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, Size(len(payload)))
	c.EncodeInto(buf, cmd, direction, payload)
	return buf, nil
}

// Decode parses one fully buffered frame. The checksum and terminator are
// returned in Footer but not validated; see Packet.Verify.
func (c Codec) Decode(b []byte) (Packet, error) {
	if len(b) < HeaderSize+FooterSize {
		return Packet{}, fmt.Errorf("%w: have %d bytes, need at least %d", ErrTooShort, len(b), HeaderSize+FooterSize)
	}
	h, err := ParseHeader(b)
	if err != nil {
		return Packet{}, err
	}
	if h.Magic != c.magic {
		return Packet{}, fmt.Errorf("%w: got 0x%04X want 0x%04X", ErrBadMagic, h.Magic, c.magic)
	}
	n := Size(int(h.PayloadLen))
	if len(b) < n {
		return Packet{}, fmt.Errorf("%w: have %d bytes, frame needs %d", ErrTooShort, len(b), n)
	}
	return Packet{
		Header:  h,
		Payload: b[HeaderSize : HeaderSize+int(h.PayloadLen) : HeaderSize+int(h.PayloadLen)],
		Footer:  Footer{Checksum: b[n-2], Terminator: b[n-1]},
	}, nil
}

var defaultCodec = NewCodec(DefaultMagic)

func EncodeInto(dst []byte, cmd protocol.Command, payload []byte) int {
	return defaultCodec.EncodeInto(dst, cmd, DirectionRequest, payload)
}

func Encode(cmd protocol.Command, payload []byte) ([]byte, error) {
	return defaultCodec.Encode(cmd, payload)
}

func Decode(b []byte) (Packet, error) {
	return defaultCodec.Decode(b)
}
