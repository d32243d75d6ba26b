package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/mxprint/internal/observability"
	"github.com/danmuck/mxprint/internal/protocol/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const metricsPath = "/metrics"

// Admin is the read-only HTTP view over live sessions and metrics.
type Admin struct {
	name     string
	registry *session.Registry
	magic    uint16
	started  time.Time
	router   *gin.Engine
}

func New(name string, reg *session.Registry, corsOrigins []string, logger zerolog.Logger) *Admin {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(logger, metricsPath))
	router.Use(observability.RequestMetricsMiddleware(name))
	if len(corsOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = corsOrigins
		cfg.AllowMethods = []string{http.MethodGet}
		router.Use(cors.New(cfg))
	}

	a := &Admin{
		name:     name,
		registry: reg,
		magic:    reg.Config().Magic,
		started:  time.Now(),
		router:   router,
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

// Run serves on addr until ctx is cancelled.
func (a *Admin) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("admin listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
