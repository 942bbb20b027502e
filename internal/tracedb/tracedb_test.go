package tracedb

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/substate/internal/draft"
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/store"
	"github.com/roach88/substate/internal/testutil"
	"github.com/roach88/substate/internal/value"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_CreatesAndReopens(t *testing.T) {
	file := filepath.Join(t.TempDir(), "trace.db")

	for i := 0; i < 3; i++ {
		db, err := Open(file)
		require.NoError(t, err, "open #%d", i)
		require.NoError(t, db.Close())
	}

	_, err := os.Stat(file)
	assert.NoError(t, err)
}

func TestOpen_Pragmas(t *testing.T) {
	db := openTestDB(t)

	tests := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, want := range tests {
		got, err := db.pragma(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.BeginRun(ctx, "r1"))

	state := value.Obj(value.O("counter", value.Obj(value.O("value", value.Int(2)))))
	rec := store.UpdateRecord{
		Revision: 1,
		ID:       "u-1",
		Changes:  []path.Path{path.Names("counter", "value"), path.Of("list", 3)},
		State:    state,
	}
	require.NoError(t, db.WriteUpdate(ctx, "r1", rec))
	require.NoError(t, db.WriteUpdate(ctx, "r1", rec), "duplicate ids are ignored")

	require.NoError(t, db.WriteNotification(ctx, store.NotifyRecord{
		Revision: 1, UpdateID: "u-1", Seq: 1, ListenerID: 7,
		Path: path.Root(), Change: path.Names("counter", "value"),
	}))

	updates, err := db.ReadUpdates(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	u := updates[0]
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, int64(1), u.Revision)
	assert.Equal(t, []string{"counter.value", "list[3]"}, []string{u.Changes[0].String(), u.Changes[1].String()})
	assert.True(t, value.Equal(state, u.Snapshot))

	digest, err := value.Digest(state)
	require.NoError(t, err)
	assert.Equal(t, digest, u.Digest)

	notes, err := db.ReadNotifications(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, Notification{
		UpdateID: "u-1", Revision: 1, Seq: 1, ListenerID: 7, Path: "$", Change: "counter.value",
	}, notes[0])
}

func TestWrite_RequiresRunAndUpdate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	err := db.WriteUpdate(ctx, "nope", store.UpdateRecord{Revision: 1, ID: "u-1", State: value.Obj()})
	assert.Error(t, err, "run must exist")

	err = db.WriteNotification(ctx, store.NotifyRecord{UpdateID: "missing", Seq: 1, Path: path.Root(), Change: path.Root()})
	assert.Error(t, err, "update must exist")
}

func TestRead_EmptyRun(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	updates, err := db.ReadUpdates(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, updates)
	assert.Empty(t, updates)

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRecorder_TracesStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	rec, err := NewRecorder(ctx, db, "counter", quietLogger())
	require.NoError(t, err)

	s := store.New(value.Obj(
		value.O("counter", value.Obj(value.O("value", value.Int(1)))),
		value.O("users", value.Obj()),
	),
		store.WithLogger(quietLogger()),
		store.WithTracer(rec),
		store.WithTokenGenerator(testutil.NewSequentialTokens("u")),
	)
	s.Subscribe(path.Root(), func() {})
	s.Subscribe(path.Names("counter"), func() {})
	s.Subscribe(path.Names("users"), func() {})

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Update(func(d *draft.Draft) (value.Value, error) {
			n := d.Get(path.Names("counter", "value")).(value.Int)
			return nil, d.Set(path.Names("counter", "value"), n+1)
		}))
	}
	require.NoError(t, rec.Err())

	updates, err := db.ReadUpdates(ctx, "counter")
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "u-1", updates[0].ID)
	assert.Equal(t, "u-2", updates[1].ID)
	assert.Equal(t, value.Int(3), value.Lookup(updates[1].Snapshot, path.Names("counter", "value")))
	assert.NotEqual(t, updates[0].Digest, updates[1].Digest)

	notes, err := db.ReadNotifications(ctx, "counter")
	require.NoError(t, err)
	require.Len(t, notes, 4)
	for _, n := range notes {
		assert.NotEqual(t, "users", n.Path, "sibling never notified")
	}

	atCounter, err := db.ReadNotificationsAt(ctx, "counter", path.Names("counter"))
	require.NoError(t, err)
	assert.Len(t, atCounter, 2)

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"counter"}, runs)
}

func TestRecorder_KeepsFirstError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	rec, err := NewRecorder(ctx, db, "r", quietLogger())
	require.NoError(t, err)

	rec.ListenerNotified(store.NotifyRecord{UpdateID: "missing", Seq: 1, Path: path.Root(), Change: path.Root()})
	require.Error(t, rec.Err())
	first := rec.Err()

	rec.ListenerNotified(store.NotifyRecord{UpdateID: "missing", Seq: 2, Path: path.Root(), Change: path.Root()})
	assert.Equal(t, first, rec.Err())
}

func TestWriteUpdate_IDConflictAcrossRuns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.BeginRun(ctx, "first"))
	require.NoError(t, db.BeginRun(ctx, "second"))

	rec := store.UpdateRecord{Revision: 1, ID: "u-1", State: value.Obj()}
	require.NoError(t, db.WriteUpdate(ctx, "first", rec))
	require.NoError(t, db.WriteUpdate(ctx, "first", rec), "same run is idempotent")

	err := db.WriteUpdate(ctx, "second", rec)
	require.ErrorIs(t, err, ErrUpdateIDConflict)
	assert.Contains(t, err.Error(), `"first"`)

	updates, err := db.ReadUpdates(ctx, "second")
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestRecorder_SharedTokensAcrossRuns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	record := func(run string) *Recorder {
		rec, err := NewRecorder(ctx, db, run, quietLogger())
		require.NoError(t, err)
		s := store.New(value.Obj(value.O("n", value.Int(0))),
			store.WithLogger(quietLogger()),
			store.WithTracer(rec),
			store.WithTokenGenerator(testutil.NewSequentialTokens("u")),
		)
		s.Subscribe(path.Names("n"), func() {})
		require.NoError(t, s.Update(func(d *draft.Draft) (value.Value, error) {
			return nil, d.Set(path.Names("n"), value.Int(1))
		}))
		return rec
	}

	require.NoError(t, record("first").Err())

	second := record("second")
	require.ErrorIs(t, second.Err(), ErrUpdateIDConflict)

	notes, err := db.ReadNotifications(ctx, "first")
	require.NoError(t, err)
	assert.Len(t, notes, 1, "second run's notifications must not attach to the first run")

	updates, err := db.ReadUpdates(ctx, "second")
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestDeleteRun_Cascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.BeginRun(ctx, "r"))
	require.NoError(t, db.WriteUpdate(ctx, "r", store.UpdateRecord{Revision: 1, ID: "u-1", State: value.Obj()}))
	require.NoError(t, db.WriteNotification(ctx, store.NotifyRecord{UpdateID: "u-1", Seq: 1, Path: path.Root(), Change: path.Root()}))

	require.NoError(t, db.DeleteRun(ctx, "r"))

	updates, err := db.ReadUpdates(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, updates)
	notes, err := db.ReadNotifications(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, notes)
}
