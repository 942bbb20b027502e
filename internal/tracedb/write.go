package tracedb

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/substate/internal/store"
)

// BeginRun registers a run name. Registering an existing run is a no-op,
// so a recorder can be reattached after a restart.
func (d *DB) BeginRun(ctx context.Context, run string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, run)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// DeleteRun removes a run and everything recorded under it.
func (d *DB) DeleteRun(ctx context.Context, run string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM runs WHERE name = ?`, run); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// ErrUpdateIDConflict is returned by WriteUpdate when the update id is
// already recorded under a different run.
var ErrUpdateIDConflict = errors.New("update id already recorded under another run")

// WriteUpdate inserts a committed update. Rewriting an update already
// recorded under the same run is a no-op; an id recorded under another run
// fails with ErrUpdateIDConflict. The run must exist (foreign key
// constraint).
func (d *DB) WriteUpdate(ctx context.Context, run string, rec store.UpdateRecord) error {
	changes, err := marshalChanges(rec.Changes)
	if err != nil {
		return fmt.Errorf("write update: %w", err)
	}
	snapshot, digest, err := marshalSnapshot(rec.State)
	if err != nil {
		return fmt.Errorf("write update: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO updates
		(id, run, revision, changes, snapshot, digest)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		run,
		rec.Revision,
		changes,
		snapshot,
		digest,
	)
	if err != nil {
		return fmt.Errorf("write update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write update: %w", err)
	}
	if n > 0 {
		return nil
	}

	var owner string
	if err := d.db.QueryRowContext(ctx, `SELECT run FROM updates WHERE id = ?`, rec.ID).Scan(&owner); err != nil {
		return fmt.Errorf("write update: %w", err)
	}
	if owner != run {
		return fmt.Errorf("write update %s for run %q: %w (run %q)", rec.ID, run, ErrUpdateIDConflict, owner)
	}
	return nil
}

// WriteNotification inserts one listener invocation. The update it
// belongs to must already be written (foreign key constraint).
func (d *DB) WriteNotification(ctx context.Context, rec store.NotifyRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO notifications
		(update_id, seq, listener_id, path, change)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(update_id, seq) DO NOTHING
	`,
		rec.UpdateID,
		rec.Seq,
		int64(rec.ListenerID),
		rec.Path.String(),
		rec.Change.String(),
	)
	if err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}
