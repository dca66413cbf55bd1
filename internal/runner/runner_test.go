package runner

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/database"
	"github.com/cybertec-postgresql/pgscript/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) database.DB {
	t.Helper()
	db, err := database.NewSQLDB(context.Background(), database.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "runner.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func newTestRunner(t *testing.T) (database.DB, *Runner) {
	t.Helper()
	db := openSQLite(t)
	store := NewStore("", db.Driver())
	require.NoError(t, store.Init(context.Background(), db))
	_, err := db.Execute(context.Background(), "CREATE TABLE items (id integer PRIMARY KEY)")
	require.NoError(t, err)
	return db, NewRunner(db, store, 0)
}

func count(t *testing.T, s database.Session, query string) int {
	t.Helper()
	var n int
	require.NoError(t, s.QueryRow(context.Background(), query).Scan(&n))
	return n
}

func tableExists(t *testing.T, s database.Session, name string) bool {
	t.Helper()
	return count(t, s, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = '"+name+"'") == 1
}

func itemMigration(name string, id string) *Migration {
	return &Migration{
		Name: name,
		Kind: UnitMigration,
		Up:   SQLScript("INSERT INTO items (id) VALUES (" + id + ")"),
		Down: SQLScript("DELETE FROM items WHERE id = " + id),
	}
}

func TestRunner_UpTwice(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	m := &Migration{
		Name: "001_log",
		Kind: UnitMigration,
		Up:   SQLScript("CREATE TABLE IF NOT EXISTS log (v text); INSERT INTO log (v) VALUES ('up')"),
		Down: SQLScript("DROP TABLE log"),
	}
	require.True(t, m.DoExecute())

	status, err := r.Up(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	require.NotNil(t, m.ExecutedAt)
	assert.False(t, m.DoExecute())
	first := *m.ExecutedAt

	rec, err := r.Store().Get(ctx, db, UnitMigration, "001_log")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, rec.ExecutedAt)
	assert.WithinDuration(t, first, *rec.ExecutedAt, time.Second)
	assert.Equal(t, "DROP TABLE log", rec.DownScript)

	// The script runs again, the unit stays applied
	status, err = r.Up(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.False(t, m.DoExecute())
	assert.Equal(t, 2, count(t, db, "SELECT count(*) FROM log"))
	assert.Equal(t, 1, count(t, db, "SELECT count(*) FROM "+r.Store().Table()))
}

func TestRunner_Down(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	m := itemMigration("001_item", "1")

	_, err := r.Up(ctx, m)
	require.NoError(t, err)
	require.Equal(t, 1, count(t, db, "SELECT count(*) FROM items"))

	status, err := r.Down(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.True(t, m.DoExecute())
	assert.Equal(t, 0, count(t, db, "SELECT count(*) FROM items"))

	rec, err := r.Store().Get(ctx, db, UnitMigration, "001_item")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRunner_UpScriptFailure(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	m := &Migration{
		Name: "002_broken",
		Kind: UnitMigration,
		Up:   SQLScript("INSERT INTO items (id) VALUES (7); INSERT INTO missing (id) VALUES (1)"),
		Down: SQLScript("DELETE FROM items WHERE id = 7"),
	}

	status, err := r.Up(ctx, m)
	require.Error(t, err)
	assert.Equal(t, StatusScriptFailed, status)
	assert.True(t, m.DoExecute(), "a failed up leaves the unit pending")

	var me *errors.MigrationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "002_broken", me.Migration)
	assert.Equal(t, "up", me.Direction)
	assert.Equal(t, "execute", me.Op)

	assert.Equal(t, 0, count(t, db, "SELECT count(*) FROM items"), "partial script must roll back")
	assert.Equal(t, 0, count(t, db, "SELECT count(*) FROM "+r.Store().Table()))
}

func TestRunner_RecordFailure(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestRunner(t)
	// Never initialised, so saving the record fails
	r := NewRunner(db, NewStore("no_such_table", db.Driver()), 0)
	m := itemMigration("001_item", "1")

	status, err := r.Up(ctx, m)
	require.Error(t, err)
	assert.Equal(t, StatusRecordFailed, status)
	assert.Nil(t, m.ExecutedAt)
	assert.Equal(t, 0, count(t, db, "SELECT count(*) FROM items"), "script must roll back with its record")
}

func TestRunner_Canceled(t *testing.T) {
	_, r := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := r.Up(ctx, itemMigration("001_item", "1"))
	require.Error(t, err)
	assert.Equal(t, StatusCanceled, status)
}

func TestRunner_TestRollsBack(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	m := &Migration{
		Name: "001_extra",
		Kind: UnitMigration,
		Up:   SQLScript("CREATE TABLE extra (id integer); INSERT INTO items (id) VALUES (1)"),
		Down: SQLScript("DROP TABLE extra"),
	}

	status, err := r.Test(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	assert.True(t, m.DoExecute())
	assert.False(t, tableExists(t, db, "extra"))
	assert.Equal(t, 0, count(t, db, "SELECT count(*) FROM items"), "down does not remove the row, the rollback does")
	assert.Equal(t, 0, count(t, db, "SELECT count(*) FROM "+r.Store().Table()))
}

func TestRunner_TestRollsBackFailedUp(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	_, err := db.Execute(ctx, "INSERT INTO items (id) VALUES (1)")
	require.NoError(t, err)

	m := &Migration{
		Name: "002_half",
		Kind: UnitMigration,
		Up:   SQLScript("INSERT INTO items (id) VALUES (2); CREATE TABLE half (id integer); INSERT INTO items (id) VALUES (1)"),
		Down: SQLScript("DROP TABLE half"),
	}

	status, err := r.Test(ctx, m)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errRollback)
	assert.Equal(t, StatusScriptFailed, status)

	assert.Equal(t, 1, count(t, db, "SELECT count(*) FROM items"))
	assert.False(t, tableExists(t, db, "half"))
	assert.True(t, m.DoExecute())
}

func TestRunner_TestKeepsAppliedState(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	m := itemMigration("001_item", "1")
	_, err := r.Up(ctx, m)
	require.NoError(t, err)
	applied := m.ExecutedAt

	// Up conflicts on the primary key, yet the recorded state is untouched
	status, err := r.Test(ctx, m)
	require.Error(t, err)
	assert.Equal(t, StatusScriptFailed, status)
	assert.Same(t, applied, m.ExecutedAt)

	_, err = db.Execute(ctx, "DELETE FROM items")
	require.NoError(t, err)
	status, err = r.Test(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Same(t, applied, m.ExecutedAt)

	rec, err := r.Store().Get(ctx, db, UnitMigration, "001_item")
	require.NoError(t, err)
	assert.NotNil(t, rec, "the record survives the test rollback")
}

func TestRunner_TestSequence(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	units := []*Migration{
		{
			Name: "001_t",
			Kind: UnitMigration,
			Up:   SQLScript("CREATE TABLE t (v integer)"),
			Down: SQLScript("DROP TABLE t"),
		},
		{
			Name: "002_t_row",
			Kind: UnitMigration,
			Up:   SQLScript("INSERT INTO t (v) VALUES (1)"),
			Down: SQLScript("DELETE FROM t"),
		},
	}

	status, err := r.TestSequence(ctx, units)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.False(t, tableExists(t, db, "t"))
	for _, m := range units {
		assert.True(t, m.DoExecute(), m.Name)
	}
}

func TestRunner_Replace(t *testing.T) {
	ctx := context.Background()
	db, r := newTestRunner(t)
	old := itemMigration("f", "1")
	_, err := r.Up(ctx, old)
	require.NoError(t, err)

	next := itemMigration("f", "2")
	status, err := r.Replace(ctx, old, next)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Nil(t, old.ExecutedAt)
	assert.NotNil(t, next.ExecutedAt)

	var id int
	require.NoError(t, db.QueryRow(ctx, "SELECT id FROM items").Scan(&id))
	assert.Equal(t, 2, id)

	rec, err := r.Store().Get(ctx, db, UnitMigration, "f")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "INSERT INTO items (id) VALUES (2)", rec.UpScript)
}

func TestStatusOf(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusOK, statusOf(ctx, nil))
	assert.Equal(t, StatusScriptFailed, statusOf(ctx, errors.NewMigrationError("m", "up", "execute", stderrors.New("x"))))
	assert.Equal(t, StatusRecordFailed, statusOf(ctx, errors.NewMigrationError("m", "up", "record", stderrors.New("x"))))
	assert.Equal(t, StatusCanceled, statusOf(ctx, context.Canceled))
}

func TestSummarize(t *testing.T) {
	start := time.Now()
	runs := []*Run{
		{Status: StatusOK, StartTime: start, EndTime: start.Add(time.Second)},
		{Status: StatusScriptFailed, StartTime: start, EndTime: start.Add(2 * time.Second)},
		{Status: StatusCanceled, StartTime: start, EndTime: start},
	}
	s := Summarize(runs)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Canceled)
	assert.Equal(t, 3*time.Second, s.TotalDuration)
	assert.Equal(t, 1, s.ExitCode())

	assert.Equal(t, 0, Summarize(runs[:1]).ExitCode())
}
