package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config bounds the self-correcting loop.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
	}
}

// WithMaxAttempts sets the maximum number of model calls per run.
func (c Config) WithMaxAttempts(n int) Config {
	c.MaxAttempts = n
	return c
}

// WithIntervals sets the first and the largest wait between attempts.
func (c Config) WithIntervals(initial, max time.Duration) Config {
	c.InitialInterval = initial
	c.MaxInterval = max
	return c
}

// NewBackOff builds the wait schedule between attempts. A zero initial
// interval retries immediately.
func (c Config) NewBackOff() backoff.BackOff {
	if c.InitialInterval <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		b.Multiplier = c.Multiplier
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
