package store

import (
	"log/slog"

	"github.com/roach88/substate/internal/draft"
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/value"
)

// DefaultMaxDeferred is the default number of deferred updates one Update
// call will drain before giving up. It stops listeners that schedule an
// update on every notification from looping forever.
const DefaultMaxDeferred = 1000

// BatchFunc wraps the notification phase of one update. It must call run
// exactly once, synchronously. UI integrations use it to open a single
// render-batching scope around all listener invocations.
type BatchFunc func(run func())

// Validator checks a candidate snapshot before it is committed.
type Validator interface {
	Validate(v value.Value) error
}

// Tracer observes committed updates and the listener invocations they cause.
// Calls happen synchronously inside Update.
type Tracer interface {
	UpdateCommitted(rec UpdateRecord)
	ListenerNotified(rec NotifyRecord)
}

// UpdateRecord describes one committed update.
type UpdateRecord struct {
	Revision int64
	ID       string
	Changes  []path.Path
	State    value.Value
}

// NotifyRecord describes one listener invocation.
type NotifyRecord struct {
	Revision   int64
	UpdateID   string
	Seq        int // position within the update, from 1
	ListenerID uint64
	Path       path.Path // where the listener is registered
	Change     path.Path // the change-path that selected it
}

// Option configures a Store.
type Option func(*Store)

// WithBatch sets the notification scope. Default: run listeners directly.
func WithBatch(fn BatchFunc) Option {
	return func(s *Store) {
		s.batch = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithProducer replaces the default copy-on-write draft producer.
func WithProducer(p draft.Producer) Option {
	return func(s *Store) {
		s.producer = p
	}
}

// WithValidator rejects updates whose next snapshot fails v.
func WithValidator(v Validator) Option {
	return func(s *Store) {
		s.validator = v
	}
}

// WithTracer reports committed updates and notifications to t.
func WithTracer(t Tracer) Option {
	return func(s *Store) {
		s.tracer = t
	}
}

// WithPruning removes subscription nodes left empty by an unsubscribe.
func WithPruning() Option {
	return func(s *Store) {
		s.prune = true
	}
}

// WithTokenGenerator sets how update ids are generated.
// Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Store) {
		s.tokens = g
	}
}

// WithMaxDeferred sets how many deferred updates one Update call drains.
//
// Default: 1000 (DefaultMaxDeferred).
func WithMaxDeferred(n int) Option {
	return func(s *Store) {
		s.maxDeferred = n
	}
}

// WithDeferredErrorHandler receives failures of deferred updates, which
// cannot be returned to the listener that scheduled them. They are logged
// either way.
func WithDeferredErrorHandler(fn func(error)) Option {
	return func(s *Store) {
		s.onDeferredError = fn
	}
}

// WithClock sets where revisions come from, e.g. NewClockAt(n) to continue
// numbering from an earlier store.
func WithClock(c RevisionSource) Option {
	return func(s *Store) {
		s.clock = c
	}
}
