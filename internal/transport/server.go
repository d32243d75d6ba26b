package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/mxprint/internal/observability"
	"github.com/danmuck/mxprint/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

const (
	CloseEOF       = "eof"
	CloseIdle      = "idle"
	CloseCorrupted = "corrupted"
	CloseError     = "error"
	CloseShutdown  = "shutdown"
)

// Server accepts peers and feeds their bytes to sessions.
type Server struct {
	registry *session.Registry
	cfg      session.Config

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	active atomic.Int64
}

func NewServer(reg *session.Registry) *Server {
	return &Server{
		registry: reg,
		cfg:      reg.Config(),
		conns:    make(map[net.Conn]struct{}),
	}
}

func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Serve runs the accept loop until ctx is cancelled or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("transport.Serve listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.untrackConn(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	sess := s.registry.Open(remote, &connNotifier{conn: conn, timeout: s.cfg.WriteTimeout})
	active := s.active.Add(1)
	observability.SessionOpened()
	log.Info().Str("session", sess.ID()).Str("remote", remote).Int64("active", active).Msg("transport.session opened")

	cause := CloseEOF
	defer func() {
		st := sess.Status()
		s.registry.Close(sess.ID())
		remaining := s.active.Add(-1)
		observability.SessionClosed(cause)
		log.Info().
			Str("session", sess.ID()).
			Str("cause", cause).
			Uint64("accepted", st.Accepted).
			Uint64("rejected", st.Rejected).
			Int64("active", remaining).
			Msg("transport.session closed")
	}()

	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			observability.RecordDelivery(n)
			if derr := sess.Deliver(buf[:n]); derr != nil {
				if !errors.Is(derr, session.ErrReset) {
					cause = CloseCorrupted
					log.Error().Str("session", sess.ID()).Err(derr).Msg("transport.session framing lost")
					return
				}
				log.Warn().Str("session", sess.ID()).Err(derr).Msg("transport.session parser reset")
			}
		}
		if err != nil {
			cause = readCloseCause(ctx, err)
			return
		}
	}
}

func readCloseCause(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return CloseShutdown
	}
	var ne net.Error
	switch {
	case errors.As(err, &ne) && ne.Timeout():
		return CloseIdle
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return CloseEOF
	default:
		return CloseError
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// connNotifier serializes replies onto the connection.
type connNotifier struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

func (n *connNotifier) Notify(b []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timeout > 0 {
		_ = n.conn.SetWriteDeadline(time.Now().Add(n.timeout))
	}
	_, err := n.conn.Write(b)
	return err
}
