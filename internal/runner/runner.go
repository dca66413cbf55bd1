// Package runner applies, reverts and dry-runs migration units against a
// database, keeping one record per applied unit.
package runner

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/database"
	"github.com/cybertec-postgresql/pgscript/internal/errors"
	"github.com/cybertec-postgresql/pgscript/internal/logger"
	"github.com/sirupsen/logrus"
)

// errRollback ends every test transaction
var errRollback = stderrors.New("test transaction rolled back")

// Runner executes migration units. Each operation runs in its own transaction,
// so a unit's script and its record change commit or roll back together.
// Callers must make sure only one runner works on a schema at a time.
type Runner struct {
	db      database.DB
	store   *Store
	timeout time.Duration
	now     func() time.Time
}

// NewRunner creates a runner. A zero timeout disables the per-operation limit.
func NewRunner(db database.DB, store *Store, timeout time.Duration) *Runner {
	return &Runner{
		db:      db,
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
}

// Store returns the record store
func (r *Runner) Store() *Store {
	return r.store
}

// Up executes the up script and records the unit as applied. Running Up on an
// applied unit executes the script again and refreshes the record.
func (r *Runner) Up(ctx context.Context, m *Migration) (Status, error) {
	return r.inTransaction(ctx, OpUp, []*Migration{m}, func(ctx context.Context, s database.Session) error {
		return r.up(ctx, s, m)
	})
}

// Down executes the down script and deletes the unit's record
func (r *Runner) Down(ctx context.Context, m *Migration) (Status, error) {
	return r.inTransaction(ctx, OpDown, []*Migration{m}, func(ctx context.Context, s database.Session) error {
		return r.down(ctx, s, m)
	})
}

// Replace reverts old and applies m in one transaction. It swaps a function
// whose callable signature changed, which CREATE OR REPLACE cannot do.
func (r *Runner) Replace(ctx context.Context, old, m *Migration) (Status, error) {
	return r.inTransaction(ctx, OpUp, []*Migration{old, m}, func(ctx context.Context, s database.Session) error {
		if err := r.down(ctx, s, old); err != nil {
			return err
		}
		return r.up(ctx, s, m)
	})
}

// Test runs up then down in one transaction that is always rolled back. The
// database and the unit are left exactly as they were.
func (r *Runner) Test(ctx context.Context, m *Migration) (Status, error) {
	return r.TestSequence(ctx, []*Migration{m})
}

// TestSequence applies units in order, reverts them in reverse order and rolls
// everything back, so later units see the effects of earlier ones.
func (r *Runner) TestSequence(ctx context.Context, units []*Migration) (Status, error) {
	status, err := r.inTransaction(ctx, OpTest, units, func(ctx context.Context, s database.Session) error {
		for _, m := range units {
			if err := r.up(ctx, s, m); err != nil {
				return err
			}
		}
		for i := len(units) - 1; i >= 0; i-- {
			if err := r.down(ctx, s, units[i]); err != nil {
				return err
			}
		}
		return errRollback
	})
	// A clean rollback returns the sentinel as is
	if err == errRollback {
		return StatusOK, nil
	}
	return status, err
}

// inTransaction runs fn with a timeout and restores the units' in-memory state
// unless the transaction committed
func (r *Runner) inTransaction(ctx context.Context, op Operation, units []*Migration, fn database.TxFunc) (Status, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	saved := make([]*time.Time, len(units))
	for i, m := range units {
		saved[i] = m.ExecutedAt
	}

	err := r.db.ExecuteInTransaction(ctx, fn)
	if err != nil {
		for i, m := range units {
			m.ExecutedAt = saved[i]
		}
		if err != errRollback {
			logger.WithFields(logrus.Fields{"op": op.String(), "units": len(units)}).Errorf("Transaction rolled back: %v", err)
		}
	}
	return statusOf(ctx, err), err
}

func (r *Runner) up(ctx context.Context, s database.Session, m *Migration) error {
	log := logger.WithFields(logrus.Fields{"kind": m.Kind.String(), "name": m.Name})
	log.Debug("Executing up script")
	if _, err := s.Execute(ctx, m.Up.SQL()); err != nil {
		return errors.NewMigrationError(m.Name, OpUp.String(), "execute", err)
	}
	now := r.now()
	if err := r.store.Save(ctx, s, recordOf(m, now)); err != nil {
		return errors.NewMigrationError(m.Name, OpUp.String(), "record", err)
	}
	m.ExecutedAt = &now
	return nil
}

func (r *Runner) down(ctx context.Context, s database.Session, m *Migration) error {
	log := logger.WithFields(logrus.Fields{"kind": m.Kind.String(), "name": m.Name})
	log.Debug("Executing down script")
	if _, err := s.Execute(ctx, m.Down.SQL()); err != nil {
		return errors.NewMigrationError(m.Name, OpDown.String(), "execute", err)
	}
	if err := r.store.Delete(ctx, s, m.Kind, m.Name); err != nil {
		return errors.NewMigrationError(m.Name, OpDown.String(), "record", err)
	}
	m.ExecutedAt = nil
	return nil
}

// statusOf classifies the error of a finished transaction
func statusOf(ctx context.Context, err error) Status {
	if err == nil {
		return StatusOK
	}
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return StatusCanceled
	}
	var me *errors.MigrationError
	if stderrors.As(err, &me) && me.Op == "record" {
		return StatusRecordFailed
	}
	return StatusScriptFailed
}
