package store

import (
	"log/slog"

	"github.com/roach88/substate/internal/draft"
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/subtree"
	"github.com/roach88/substate/internal/value"
)

// Store owns the current snapshot and the subscription tree.
//
// Thread-safety model: none. Subscribe, Update, and GetState must be
// called from one goroutine (or externally serialized). Revision may be
// read from anywhere.
type Store struct {
	state    value.Value
	tree     *subtree.Tree
	producer draft.Producer
	clock    RevisionSource
	tokens   TokenGenerator
	pending  *deferredQueue
	busy     bool

	batch           BatchFunc
	validator       Validator
	tracer          Tracer
	logger          *slog.Logger
	prune           bool
	maxDeferred     int
	onDeferredError func(error)
}

// New creates a Store holding initial as its current snapshot.
func New(initial value.Value, opts ...Option) *Store {
	s := &Store{
		state:       initial,
		producer:    draft.CopyOnWrite{},
		clock:       NewClock(),
		tokens:      UUIDv7Generator{},
		pending:     newDeferredQueue(),
		batch:       func(run func()) { run() },
		maxDeferred: DefaultMaxDeferred,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	var treeOpts []subtree.Option
	if s.prune {
		treeOpts = append(treeOpts, subtree.WithPruning())
	}
	s.tree = subtree.New(treeOpts...)

	return s
}

// GetState returns the current snapshot. Callers must treat it as
// read-only.
func (s *Store) GetState() value.Value {
	return s.state
}

// Revision returns the number of committed updates (or the configured
// clock's position).
func (s *Store) Revision() int64 {
	return s.clock.Current()
}

// Subscribe registers fn to be called when the value at p, one of its
// ancestors, or one of its descendants changes. p may point at a location
// that does not exist yet.
//
// Every call is a separate registration, even with the same fn. The
// returned func removes exactly this registration and is safe to call more
// than once.
func (s *Store) Subscribe(p path.Path, fn func()) (unsubscribe func()) {
	return s.tree.Subscribe(p, fn)
}

// Tree exposes the subscription tree for inspection.
func (s *Store) Tree() *subtree.Tree {
	return s.tree
}

// Update runs recipe against a draft of the current snapshot, commits the
// result, and notifies listeners for every change-path, all before
// returning.
//
// If the recipe or the validator fails, Update returns an *UpdateError and
// nothing changes: no new snapshot, no revision, no notifications.
//
// Each registration fires at most once per Update, at its first position
// in walk order, even when several change-paths select it. Callers that
// expect one call per changed path per node get one call per update
// instead.
//
// Update called while another Update is running (from a listener, usually)
// is deferred: the recipe is queued, Update returns nil, and the queued
// recipes run in order once the current notification phase is over.
// Failures of deferred recipes are logged and passed to the handler set by
// WithDeferredErrorHandler.
func (s *Store) Update(recipe draft.Recipe) error {
	if s.busy {
		s.pending.Enqueue(recipe)
		s.logger.Debug("update deferred",
			"revision", s.clock.Current(),
			"queued", s.pending.Len(),
		)
		return nil
	}

	s.busy = true
	defer func() {
		// A panicking listener unwinds past drain; whatever it queued must
		// not run under some later, unrelated Update.
		s.busy = false
		s.pending.Reset()
	}()

	if err := s.apply(recipe); err != nil {
		if dropped := s.pending.Reset(); dropped > 0 {
			s.logger.Debug("dropped updates scheduled by failed recipe", "dropped", dropped)
		}
		return err
	}

	s.drain()
	return nil
}

// apply produces, validates, commits, and notifies for one recipe.
func (s *Store) apply(recipe draft.Recipe) error {
	base := s.clock.Current()

	next, changes, err := s.producer.Produce(s.state, recipe)
	if err != nil {
		return newMutatorError(base, err)
	}

	if len(changes) == 0 {
		s.logger.Debug("update made no changes", "revision", base)
		return nil
	}

	if s.validator != nil {
		if err := s.validator.Validate(next); err != nil {
			return newSchemaError(base, err)
		}
	}

	// Commit: a single assignment, so readers see the old or the new
	// snapshot and nothing in between.
	s.state = next
	rev := s.clock.Next()
	id := s.tokens.Generate()

	s.logger.Info("update committed",
		"revision", rev,
		"update_id", id,
		"changes", len(changes),
	)
	if s.tracer != nil {
		s.tracer.UpdateCommitted(UpdateRecord{
			Revision: rev,
			ID:       id,
			Changes:  changes,
			State:    next,
		})
	}

	s.notify(rev, id, s.tree.Walk(changes))
	return nil
}

// notify fires the walk's hits inside the batch scope.
func (s *Store) notify(rev int64, id string, hits []subtree.Hit) {
	if len(hits) == 0 {
		return
	}

	s.batch(func() {
		seq := 0
		for _, h := range hits {
			if !h.Fire() {
				continue
			}
			seq++
			if s.tracer != nil {
				s.tracer.ListenerNotified(NotifyRecord{
					Revision:   rev,
					UpdateID:   id,
					Seq:        seq,
					ListenerID: h.ID,
					Path:       h.Path,
					Change:     h.Change,
				})
			}
		}
		s.logger.Debug("listeners notified",
			"revision", rev,
			"update_id", id,
			"selected", len(hits),
			"fired", seq,
		)
	})
}

// drain runs deferred recipes until the queue is empty or the limit is hit.
func (s *Store) drain() {
	ran := 0
	for {
		recipe, ok := s.pending.TryDequeue()
		if !ok {
			return
		}

		if ran >= s.maxDeferred {
			dropped := s.pending.Reset() + 1
			s.deferredFailed(newDeferredLimitError(s.clock.Current(), dropped, s.maxDeferred))
			return
		}
		ran++

		if err := s.apply(recipe); err != nil {
			s.deferredFailed(err)
		}
	}
}

func (s *Store) deferredFailed(err error) {
	s.logger.Error("deferred update failed",
		"error", err,
		"revision", s.clock.Current(),
	)
	if s.onDeferredError != nil {
		s.onDeferredError(err)
	}
}
