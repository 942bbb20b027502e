package tracedb

import (
	"context"
	"log/slog"

	"github.com/roach88/substate/internal/store"
)

// Recorder adapts a DB to store.Tracer, writing every record under one run.
//
// Tracer callbacks cannot fail the update that produced them, so write
// errors are logged and the first one is kept for Err.
type Recorder struct {
	ctx    context.Context
	db     *DB
	run    string
	logger *slog.Logger
	err    error

	// rejected holds update ids WriteUpdate refused; their notifications
	// would otherwise attach to another run's rows.
	rejected map[string]bool
}

// NewRecorder registers run and returns a tracer that records into it.
func NewRecorder(ctx context.Context, db *DB, run string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.BeginRun(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder{ctx: ctx, db: db, run: run, logger: logger}, nil
}

// UpdateCommitted implements store.Tracer.
func (r *Recorder) UpdateCommitted(rec store.UpdateRecord) {
	err := r.db.WriteUpdate(r.ctx, r.run, rec)
	if err != nil {
		if r.rejected == nil {
			r.rejected = make(map[string]bool)
		}
		r.rejected[rec.ID] = true
	}
	r.fail(err, "update_id", rec.ID)
}

// ListenerNotified implements store.Tracer.
func (r *Recorder) ListenerNotified(rec store.NotifyRecord) {
	if r.rejected[rec.UpdateID] {
		return
	}
	r.fail(r.db.WriteNotification(r.ctx, rec), "update_id", rec.UpdateID, "seq", rec.Seq)
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	return r.err
}

// Run returns the run name.
func (r *Recorder) Run() string {
	return r.run
}

func (r *Recorder) fail(err error, attrs ...any) {
	if err == nil {
		return
	}
	r.logger.Error("trace write failed", append([]any{"run", r.run, "error", err}, attrs...)...)
	if r.err == nil {
		r.err = err
	}
}
