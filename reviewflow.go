// Package reviewflow provides a top-level convenience entry point for
// embedding the checkpoint review engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/reviewflow/reviewflow"
//
//	eng := reviewflow.New()                                    // in-memory store
//	eng := reviewflow.New(reviewflow.WithStore(myStore))       // custom backend
//	eng := reviewflow.New(reviewflow.WithAutoApprove(true))
//
// The full service, with its HTTP API and persistent backends, lives in
// cmd/reviewflow.
package reviewflow

import (
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/store"
)

// Option configures the engine created by [New].
type Option func(*settings)

type settings struct {
	logger      *zap.Logger
	store       review.Store
	registry    *review.Registry
	bus         review.EventBus
	autoApprove bool
	maxRetries  int
}

// WithLogger sets the logger; the default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithStore sets the workflow store; the default is an in-memory store.
func WithStore(st review.Store) Option {
	return func(s *settings) { s.store = st }
}

// WithRegistry replaces the default five-gate catalog.
func WithRegistry(r *review.Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithEventBus attaches an event bus for pipeline notifications.
func WithEventBus(bus review.EventBus) Option {
	return func(s *settings) { s.bus = bus }
}

// WithAutoApprove enables threshold-based auto-approval when producer
// payloads arrive.
func WithAutoApprove(enabled bool) Option {
	return func(s *settings) { s.autoApprove = enabled }
}

// WithMaxSaveRetries overrides the save-conflict retry budget.
func WithMaxSaveRetries(n int) Option {
	return func(s *settings) { s.maxRetries = n }
}

// New creates a review engine with the default five-gate catalog over an
// in-memory store. All defaults can be overridden per option.
func New(opts ...Option) *review.Engine {
	s := settings{maxRetries: -1}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.store == nil {
		s.store = store.NewMemoryStore(s.logger)
	}
	if s.registry == nil {
		s.registry = review.DefaultRegistry()
	}

	engineOpts := []review.EngineOption{
		review.WithAutoApprove(s.autoApprove),
	}
	if s.bus != nil {
		engineOpts = append(engineOpts, review.WithEventBus(s.bus))
	}
	if s.maxRetries >= 0 {
		engineOpts = append(engineOpts, review.WithMaxSaveRetries(s.maxRetries))
	}
	return review.NewEngine(s.store, s.registry, s.logger, engineOpts...)
}
