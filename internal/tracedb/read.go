package tracedb

import (
	"context"
	"fmt"

	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/value"
)

// Update is a stored committed update.
type Update struct {
	ID       string
	Run      string
	Revision int64
	Changes  []path.Path
	Snapshot value.Value
	Digest   string
}

// Notification is a stored listener invocation.
type Notification struct {
	UpdateID   string
	Revision   int64
	Seq        int
	ListenerID uint64
	Path       string
	Change     string
}

// Runs returns every run name in binary order.
func (d *DB) Runs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM runs ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadUpdates returns a run's updates in revision order.
//
// Returns an empty slice (not nil) if the run has none.
func (d *DB) ReadUpdates(ctx context.Context, run string) ([]Update, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, run, revision, changes, snapshot, digest
		FROM updates
		WHERE run = ?
		ORDER BY revision ASC, id COLLATE BINARY ASC
	`, run)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	updates := []Update{}
	for rows.Next() {
		var (
			u                 Update
			changes, snapshot string
		)
		if err := rows.Scan(&u.ID, &u.Run, &u.Revision, &changes, &snapshot, &u.Digest); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		if u.Changes, err = unmarshalChanges(changes); err != nil {
			return nil, err
		}
		if u.Snapshot, err = unmarshalSnapshot(snapshot); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updates: %w", err)
	}
	return updates, nil
}

// ReadNotifications returns a run's listener invocations, by revision and
// then firing order.
func (d *DB) ReadNotifications(ctx context.Context, run string) ([]Notification, error) {
	return d.queryNotifications(ctx, `
		SELECT n.update_id, u.revision, n.seq, n.listener_id, n.path, n.change
		FROM notifications n
		JOIN updates u ON n.update_id = u.id
		WHERE u.run = ?
		ORDER BY u.revision ASC, n.seq ASC
	`, run)
}

// ReadNotificationsAt returns a run's invocations of listeners registered
// exactly at p.
func (d *DB) ReadNotificationsAt(ctx context.Context, run string, p path.Path) ([]Notification, error) {
	return d.queryNotifications(ctx, `
		SELECT n.update_id, u.revision, n.seq, n.listener_id, n.path, n.change
		FROM notifications n
		JOIN updates u ON n.update_id = u.id
		WHERE u.run = ? AND n.path = ?
		ORDER BY u.revision ASC, n.seq ASC
	`, run, p.String())
}

func (d *DB) queryNotifications(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var (
			n  Notification
			id int64
		)
		if err := rows.Scan(&n.UpdateID, &n.Revision, &n.Seq, &id, &n.Path, &n.Change); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ListenerID = uint64(id)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}
