package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/mxprint/internal/config"
	"github.com/danmuck/mxprint/internal/logging"
	"github.com/danmuck/mxprint/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "", "path to mxprintd.toml (defaults apply when empty)")
	initPath := flag.String("init", "", "write a config template to this path and exit")
	force := flag.Bool("force", false, "overwrite an existing template")
	validate := flag.Bool("validate", false, "validate -config and exit")
	flag.Parse()

	if *initPath != "" {
		if err := config.WriteTemplate(*initPath, "mxprintd", *force); err != nil {
			fmt.Fprintf(os.Stderr, "mxprintd: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *initPath)
		return
	}

	cfg := config.DefaultServiceConfig()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mxprintd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *validate {
		fmt.Printf("config ok\n")
		return
	}

	logging.ConfigureRuntime()
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok && os.Getenv(logging.EnvLogLevel) == "" {
		zerolog.SetGlobalLevel(lvl)
	}
	observability.InitLogger("mxprintd")
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(cfg)
	if err != nil {
		log.Error().Err(err).Msg("mxprintd setup failed")
		os.Exit(1)
	}
	if err := d.Run(ctx); err != nil {
		log.Error().Err(err).Msg("mxprintd stopped")
		os.Exit(1)
	}
}
