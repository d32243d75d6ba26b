package session

import (
	"fmt"
	"time"

	"github.com/danmuck/mxprint/internal/protocol/frame"
)

// FatalPolicy selects what happens to a session after a magic mismatch.
type FatalPolicy string

const (
	FatalClose FatalPolicy = "close"
	FatalReset FatalPolicy = "reset"
)

// Config defines per-session framing and transport defaults.
type Config struct {
	Magic          uint16
	CapturePayload bool
	FatalPolicy    FatalPolicy
	ReadBufferSize int
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Magic:          frame.DefaultMagic,
		CapturePayload: true,
		FatalPolicy:    FatalClose,
		ReadBufferSize: 512,
		IdleTimeout:    2 * time.Minute,
		WriteTimeout:   5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Magic == 0 {
		c.Magic = def.Magic
	}
	if c.FatalPolicy == "" {
		c.FatalPolicy = def.FatalPolicy
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

func (c Config) Validate() error {
	switch c.FatalPolicy {
	case FatalClose, FatalReset:
	default:
		return fmt.Errorf("%w: fatal_policy %q", ErrInvalidConfig, c.FatalPolicy)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("%w: read_buffer_size must be positive", ErrInvalidConfig)
	}
	if c.Magic == 0 {
		return fmt.Errorf("%w: magic must be non-zero", ErrInvalidConfig)
	}
	return nil
}
