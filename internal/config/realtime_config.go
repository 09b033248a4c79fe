package config

import "time"

type RealtimeConfig interface {
	GetRealtimeEnabled() bool
	GetRealtimePath() string
	GetRealtimeMaxRetries() int
	GetRealtimeRetryDelay() time.Duration
}

// Realtime configures the push channel to the platform. Variables are read with the REALTIME_ prefix.
type Realtime struct {
	Enabled    bool          `env:"ENABLED"     envDefault:"true"`
	Path       string        `env:"PATH"        envDefault:"/realtime"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"5"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"1s"`
}

func (r Realtime) GetRealtimeEnabled() bool {
	return r.Enabled
}

func (r Realtime) GetRealtimePath() string {
	return r.Path
}

func (r Realtime) GetRealtimeMaxRetries() int {
	return r.MaxRetries
}

func (r Realtime) GetRealtimeRetryDelay() time.Duration {
	return r.RetryDelay
}
