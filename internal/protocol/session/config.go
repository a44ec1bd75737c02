package session

import (
	"time"

	"github.com/danmuck/rndcctl/internal/protocol/frame"
	"github.com/danmuck/rndcctl/internal/protocol/schema"
)

// Config defines transport/session defaults.
type Config struct {
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
	Expiry         time.Duration
	EventBuffer    int
	Limits         frame.Limits
	Now            func() time.Time
}

// DefaultConfig returns the rndc defaults: a 30s idle window and a 60s
// request expiry.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		IdleTimeout:    30 * time.Second,
		WriteTimeout:   15 * time.Second,
		Expiry:         schema.DefaultExpiry,
		EventBuffer:    16,
		Limits:         frame.DefaultLimits(),
		Now:            time.Now,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Expiry <= 0 {
		c.Expiry = def.Expiry
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.Limits.MaxFrameBytes == 0 {
		c.Limits = def.Limits
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	return c
}
