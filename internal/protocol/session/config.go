package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines channel-open and control-bus polling defaults.
type Config struct {
	PollTimeout       time.Duration
	HeartbeatInterval time.Duration
	MaxOpenAttempts   int // 0 retries forever
	Backoff           BackoffConfig
}

// DefaultConfig returns the consumer runtime defaults.
func DefaultConfig() Config {
	return Config{
		PollTimeout:       100 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
		MaxOpenAttempts:   0,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.MaxOpenAttempts < 0 {
		c.MaxOpenAttempts = d.MaxOpenAttempts
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = d.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = d.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = d.Backoff.MaxDelay
	}
	return c
}
