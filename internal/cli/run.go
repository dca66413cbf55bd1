package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/database"
	"github.com/cybertec-postgresql/pgscript/internal/logger"
	"github.com/cybertec-postgresql/pgscript/internal/registry"
	"github.com/cybertec-postgresql/pgscript/internal/report"
	"github.com/cybertec-postgresql/pgscript/internal/runner"
)

// Load parses the script tree named by the configuration
func Load(ctx context.Context, config *Config) (*registry.Registry, error) {
	logger.Debug("Loading scripts from %s", config.SearchPath)
	reg, err := registry.Load(ctx, config.SearchPath, registry.Options{Workers: config.Workers})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", config.SearchPath, err)
	}
	return reg, nil
}

// Parse lists the definitions of the script tree without touching a database
func Parse(ctx context.Context, config *Config, w io.Writer) (int, error) {
	f, err := report.GetFormatter(report.FormatType(config.Format))
	if err != nil {
		return 1, err
	}
	reg, err := Load(ctx, config)
	if err != nil {
		return 1, err
	}
	if err := f.Definitions(w, reg); err != nil {
		return 1, err
	}
	return 0, nil
}

// Up installs functions and applies pending migrations
func Up(ctx context.Context, config *Config, w io.Writer) (int, error) {
	return withPlan(ctx, config, func(ctx context.Context, plan *runner.Plan) (int, error) {
		start := time.Now()
		runs, err := plan.UpAll(ctx)
		return printRuns(w, config, runs, time.Since(start), err)
	})
}

// Down reverts up to steps applied migrations, all of them when steps is zero
func Down(ctx context.Context, config *Config, steps int, w io.Writer) (int, error) {
	return withPlan(ctx, config, func(ctx context.Context, plan *runner.Plan) (int, error) {
		start := time.Now()
		runs, err := plan.DownAll(ctx, steps)
		return printRuns(w, config, runs, time.Since(start), err)
	})
}

// Test dry-runs everything Up would apply and rolls it back
func Test(ctx context.Context, config *Config, w io.Writer) (int, error) {
	return withPlan(ctx, config, func(ctx context.Context, plan *runner.Plan) (int, error) {
		start := time.Now()
		run, err := plan.TestAll(ctx)
		var runs []*runner.Run
		if run != nil {
			runs = append(runs, run)
		}
		return printRuns(w, config, runs, time.Since(start), err)
	})
}

// Status prints the declared units against the recorded ones
func Status(ctx context.Context, config *Config, w io.Writer) (int, error) {
	return withPlan(ctx, config, func(ctx context.Context, plan *runner.Plan) (int, error) {
		entries, err := plan.Status(ctx)
		if err != nil {
			return 1, err
		}
		f, err := report.GetFormatter(report.FormatType(config.Format))
		if err != nil {
			return 1, err
		}
		if err := f.Status(w, entries); err != nil {
			return 1, err
		}
		return 0, nil
	})
}

// printRuns reports the runs of one command and turns them into an exit code.
// A run error takes precedence over a failure to write the report.
func printRuns(w io.Writer, config *Config, runs []*runner.Run, elapsed time.Duration, runErr error) (int, error) {
	f, err := report.GetFormatter(report.FormatType(config.Format))
	if err != nil {
		return 1, err
	}
	if err := f.Runs(w, runs, elapsed); err != nil && runErr == nil {
		return 1, err
	}
	if runErr != nil {
		return 1, runErr
	}
	return runner.Summarize(runs).ExitCode(), nil
}

// withPlan loads the tree, connects and hands a synchronised plan to fn
func withPlan(ctx context.Context, config *Config, fn func(context.Context, *runner.Plan) (int, error)) (int, error) {
	// Load before connecting so a broken tree never reaches the database
	reg, err := Load(ctx, config)
	if err != nil {
		return 1, err
	}

	db, cleanup, err := connect(ctx, config)
	if err != nil {
		return 1, fmt.Errorf("database connection failed: %w", err)
	}
	defer cleanup()

	store := runner.NewStore(config.MigrationsTable, db.Driver())
	plan := runner.NewPlan(runner.NewRunner(db, store, config.Timeout), reg)
	return fn(ctx, plan)
}

// connect opens the configured database, or a scratch database on the same
// server when the run is isolated
func connect(ctx context.Context, config *Config) (database.DB, func(), error) {
	if !config.Isolated {
		db, err := database.Open(ctx, config)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}

	admin, err := database.NewPool(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	tempDB, err := database.CreateTempDatabase(ctx, admin)
	if err != nil {
		admin.Close()
		return nil, nil, err
	}
	logger.Info("Running against scratch database %s", tempDB.Name)

	destroy := func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := database.DestroyTempDatabase(cleanupCtx, admin, tempDB); err != nil {
			logger.Warn("%v", err)
		}
		admin.Close()
	}

	scratch := *config
	scratch.ConnectionString = tempDB.ConnectionString
	db, err := database.NewPool(ctx, &scratch)
	if err != nil {
		destroy()
		return nil, nil, err
	}
	return db, func() {
		db.Close()
		destroy()
	}, nil
}
