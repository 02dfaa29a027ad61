package engine

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Run()
// ============================================================================

// DefaultTopN is the ranking length when neither the request nor an option
// sets one.
const DefaultTopN = 10

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Logger             zerolog.Logger
	TopN               int
	ReturnRateHigh     float64 // percent
	ReturnRateModerate float64 // percent
}

// WithLogger sets the logger for one run. The global zerolog logger is used
// otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.Logger = l
	}
}

// WithDefaultTopN sets the ranking length used when Request.TopN is 0.
func WithDefaultTopN(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.TopN = n
		}
	}
}

// WithReturnThresholds sets the return-rate grades (percent):
// above high is "high", above moderate is "moderate".
func WithReturnThresholds(high, moderate float64) Option {
	return func(c *config) {
		c.ReturnRateHigh = high
		c.ReturnRateModerate = moderate
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		Logger:             log.Logger,
		TopN:               DefaultTopN,
		ReturnRateHigh:     DefaultReturnRateHigh,
		ReturnRateModerate: DefaultReturnRateModerate,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
