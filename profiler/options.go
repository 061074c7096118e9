package profiler

import "github.com/rs/zerolog"

type config struct {
	logger   zerolog.Logger
	strict   bool
	capacity int
}

type Option func(*config)

// WithLogger sets the logger used to report instrumentation misuse and
// frame summaries. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithStrict makes every misuse panic instead of being logged and skipped.
// Meant for tests that want a bad Begin/End pairing to fail loudly.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithCapacity bounds the number of distinct region names per frame and in
// history. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.capacity = n
	}
}

func collectOptions(options ...Option) *config {
	conf := &config{logger: zerolog.Nop()}
	for _, opt := range options {
		opt(conf)
	}
	return conf
}
