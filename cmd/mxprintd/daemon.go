package main

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/danmuck/mxprint/internal/config"
	"github.com/danmuck/mxprint/internal/dispatch"
	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/protocol/session"
	"github.com/danmuck/mxprint/internal/server"
	"github.com/danmuck/mxprint/internal/transport"
	"github.com/rs/zerolog/log"
)

// daemon wires transport, sessions, dispatch and the admin surface.
type daemon struct {
	cfg       config.ServiceConfig
	registry  *session.Registry
	transport *transport.Server
	admin     *server.Admin
}

func newDaemon(cfg config.ServiceConfig) (*daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec := frame.NewCodec(cfg.Session.Magic)
	router := dispatch.NewRouter(codec)
	router.Handle(protocol.CmdStatus, dispatch.StatusReply(codec, cfg.StatusPayload))

	reg := session.NewRegistry(cfg.Session, router)
	d := &daemon{
		cfg:       cfg,
		registry:  reg,
		transport: transport.NewServer(reg),
	}
	if strings.TrimSpace(cfg.AdminAddr) != "" {
		d.admin = server.New(cfg.DeviceName, reg, cfg.CorsOrigins, log.Logger)
	}
	return d, nil
}

func (d *daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.cfg.ListenAddr, err)
	}
	return d.Serve(ctx, ln)
}

// Serve runs until ctx is cancelled or either listener fails.
func (d *daemon) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("device", d.cfg.DeviceName).
		Str("magic", fmt.Sprintf("0x%04X", d.cfg.Session.Magic)).
		Str("fatal_policy", string(d.cfg.Session.FatalPolicy)).
		Msg("mxprintd starting")

	adminErr := make(chan error, 1)
	if d.admin != nil {
		go func() {
			adminErr <- d.admin.Run(ctx, d.cfg.AdminAddr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.transport.Serve(ctx, ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			cancel()
			<-serveErr
			return fmt.Errorf("admin: %w", err)
		}
		return <-serveErr
	}
}
