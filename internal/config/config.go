package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/mxprint/internal/dispatch"
	"github.com/danmuck/mxprint/internal/protocol/session"
)

// ServiceConfig is the resolved configuration of the device emulator.
type ServiceConfig struct {
	DeviceName    string
	ListenAddr    string
	AdminAddr     string
	CorsOrigins   []string
	LogLevel      string
	StatusPayload []byte
	Session       session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DeviceName:    "MX05",
		ListenAddr:    ":9600",
		AdminAddr:     "127.0.0.1:9601",
		CorsOrigins:   []string{},
		LogLevel:      "info",
		StatusPayload: append([]byte(nil), dispatch.DefaultStatusPayload...),
		Session:       session.DefaultConfig(),
	}
}

type fileConfig struct {
	DeviceName     string   `toml:"device_name"`
	ListenAddr     string   `toml:"listen_addr"`
	AdminAddr      string   `toml:"admin_addr"`
	CorsOrigins    []string `toml:"cors_origins"`
	LogLevel       string   `toml:"log_level"`
	StatusPayload  []int64  `toml:"status_payload"`
	Magic          int64    `toml:"magic"`
	CapturePayload bool     `toml:"capture_payload"`
	FatalPolicy    string   `toml:"fatal_policy"`
	ReadBufferSize int      `toml:"read_buffer_size"`
	IdleTimeout    string   `toml:"idle_timeout"`
	WriteTimeout   string   `toml:"write_timeout"`
}

// Load reads a TOML file and applies every key it defines on top of
// DefaultServiceConfig.
func Load(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ServiceConfig{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("device_name") {
		cfg.DeviceName = strings.TrimSpace(raw.DeviceName)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("status_payload") {
		b, err := bytesFromInts(raw.StatusPayload)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("parse status_payload: %w", err)
		}
		cfg.StatusPayload = b
	}
	if meta.IsDefined("magic") {
		m, err := parseMagic(raw.Magic)
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.Session.Magic = m
	}
	if meta.IsDefined("capture_payload") {
		cfg.Session.CapturePayload = raw.CapturePayload
	}
	if meta.IsDefined("fatal_policy") {
		cfg.Session.FatalPolicy = session.FatalPolicy(strings.ToLower(strings.TrimSpace(raw.FatalPolicy)))
	}
	if meta.IsDefined("read_buffer_size") {
		cfg.Session.ReadBufferSize = raw.ReadBufferSize
	}
	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.Session.IdleTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.Session.WriteTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return ServiceConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.DeviceName) == "" {
		return fmt.Errorf("device_name is required")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if c.Session.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}
	return c.Session.Validate()
}
