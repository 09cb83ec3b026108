package pass

import (
	"io"
	"log/slog"

	"github.com/roach88/relayout/internal/layout"
)

// DefaultMaxIterations bounds the fixpoint loop.
const DefaultMaxIterations = 10

// Options configures Run.
type Options struct {
	MaxIterations int
	Logger        *slog.Logger

	// Classifier overrides the cost model. Nil means layout.NewClassifier
	// over the module's hardware attributes.
	Classifier *layout.Classifier

	// Hoisting enables the loop-hoisting phase.
	Hoisting bool

	Clock Sequencer
	RunID RunIDGenerator
}

// Option mutates Options.
type Option func(*Options)

// WithMaxIterations sets the iteration bound.
//
// Default: DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		o.MaxIterations = n
	}
}

// WithLogger sets the logger decisions are written to.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithClassifier sets the cost model.
func WithClassifier(c *layout.Classifier) Option {
	return func(o *Options) {
		o.Classifier = c
	}
}

// WithHoisting turns the hoisting phase on or off. It is on by default.
func WithHoisting(enabled bool) Option {
	return func(o *Options) {
		o.Hoisting = enabled
	}
}

// WithClock sets the decision sequencer.
func WithClock(c Sequencer) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

// WithRunID sets the run ID generator.
func WithRunID(g RunIDGenerator) Option {
	return func(o *Options) {
		o.RunID = g
	}
}

func defaultOptions() Options {
	return Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        slog.Default(),
		Hoisting:      true,
		Clock:         NewClock(),
		RunID:         UUIDv7Generator{},
	}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
