package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/protocol/stream"
)

// Client plays the host side: it writes request frames and decodes the
// peer's notifications with its own stream parser.
type Client struct {
	// ChunkDelay is slept between chunks written by WriteChunks.
	ChunkDelay time.Duration

	conn   net.Conn
	codec  frame.Codec
	parser *stream.Parser
	queue  []stream.Event
	buf    []byte
}

func Dial(ctx context.Context, addr string, magic uint16) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn, magic), nil
}

func NewClient(conn net.Conn, magic uint16) *Client {
	if magic == 0 {
		magic = frame.DefaultMagic
	}
	c := &Client{
		ChunkDelay: time.Millisecond,
		conn:       conn,
		codec:      frame.NewCodec(magic),
		buf:        make([]byte, 512),
	}
	c.parser = stream.New(stream.Options{
		Magic:          magic,
		CapturePayload: true,
		Sink: stream.SinkFunc(func(ev stream.Event) {
			c.queue = append(c.queue, ev)
		}),
	})
	return c
}

// Send frames payload and writes it in pieces of at most chunkSize bytes.
// chunkSize <= 0 writes the frame in one call.
func (c *Client) Send(ctx context.Context, cmd protocol.Command, payload []byte, chunkSize int) error {
	out, err := c.codec.Encode(cmd, payload)
	if err != nil {
		return err
	}
	return c.WriteChunks(ctx, out, chunkSize)
}

// WriteChunks writes raw bytes in pieces of at most chunkSize, sleeping
// ChunkDelay between them so the peer tends to see separate deliveries.
func (c *Client) WriteChunks(ctx context.Context, b []byte, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = len(b)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	}
	for len(b) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(chunkSize, len(b))
		if _, err := c.conn.Write(b[:n]); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		b = b[n:]
		if len(b) > 0 && c.ChunkDelay > 0 {
			time.Sleep(c.ChunkDelay)
		}
	}
	return nil
}

// ReadEvent blocks until the peer's next packet is complete.
func (c *Client) ReadEvent(ctx context.Context) (stream.Event, error) {
	for len(c.queue) == 0 {
		if err := ctx.Err(); err != nil {
			return stream.Event{}, err
		}
		if dl, ok := ctx.Deadline(); ok {
			_ = c.conn.SetReadDeadline(dl)
		}
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			if ferr := c.parser.Feed(c.buf[:n]); ferr != nil && len(c.queue) == 0 {
				return stream.Event{}, ferr
			}
		}
		if err != nil && len(c.queue) == 0 {
			return stream.Event{}, err
		}
	}
	ev := c.queue[0]
	c.queue = c.queue[1:]
	return ev, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
