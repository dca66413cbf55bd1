package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cybertec-postgresql/pgscript/internal/cli"
	"github.com/cybertec-postgresql/pgscript/internal/logger"
	urfavecli "github.com/urfave/cli/v3"
)

const version = "1.0.0"

// Exit codes
const (
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	app := &urfavecli.Command{
		Name:    "pgscript",
		Usage:   "PostgreSQL script parser and migration runner",
		Version: version,
		Commands: []*urfavecli.Command{
			{
				Name:      "parse",
				Usage:     "List the functions, queries and migrations of a script tree",
				ArgsUsage: "[path]",
				Action:    action(cli.Parse),
				Flags:     loadFlags(),
			},
			{
				Name:      "up",
				Usage:     "Install functions and apply pending migrations",
				ArgsUsage: "[path]",
				Action:    action(cli.Up),
				Flags:     append(loadFlags(), connectionFlags()...),
			},
			{
				Name:      "down",
				Usage:     "Revert applied migrations, newest first",
				ArgsUsage: "[path]",
				Action:    downCommand,
				Flags: append(append(loadFlags(), connectionFlags()...),
					&urfavecli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to revert (0 = all)",
					},
				),
			},
			{
				Name:      "test",
				Usage:     "Apply and revert pending units in a transaction that is rolled back",
				ArgsUsage: "[path]",
				Action:    action(cli.Test),
				Flags:     append(loadFlags(), connectionFlags()...),
			},
			{
				Name:      "status",
				Usage:     "Compare declared units with the recorded ones",
				ArgsUsage: "[path]",
				Action:    action(cli.Status),
				Flags:     append(loadFlags(), connectionFlags()...),
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}
}

// loadFlags are shared by every command
func loadFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:  "config",
			Usage: "YAML config file (default: " + cli.DefaultConfigFile + " if present)",
		},
		&urfavecli.IntFlag{
			Name:  "workers",
			Usage: "Parallel parse workers",
		},
		&urfavecli.StringFlag{
			Name:  "format",
			Usage: "Output format (text or json)",
		},
		&urfavecli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug output",
		},
	}
}

// connectionFlags are shared by the commands that touch a database
func connectionFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:    "connection",
			Aliases: []string{"c"},
			Usage:   "Connection string (URI or key=value format). Supports standard PG* environment variables.",
		},
		&urfavecli.StringFlag{
			Name:  "driver",
			Usage: "Database driver (pgx, postgres or sqlite)",
		},
		&urfavecli.StringFlag{
			Name:  "table",
			Usage: "Record table, optionally schema qualified",
		},
		&urfavecli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-migration timeout (0 = none)",
		},
		&urfavecli.BoolFlag{
			Name:  "isolated",
			Usage: "Run against a scratch database that is dropped afterwards (pgx only)",
		},
	}
}

// loadConfig layers defaults, config file, environment and flags, then validates
func loadConfig(cmd *urfavecli.Command) (*cli.Config, error) {
	config, err := cli.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	cli.ApplyFlagsToConfig(config,
		cmd.String("connection"), cmd.String("driver"), cmd.String("table"), cmd.String("format"),
		cmd.Duration("timeout"), cmd.Int("workers"),
		cmd.Bool("isolated"), cmd.Bool("verbose"))

	if searchPath := cmd.Args().First(); searchPath != "" {
		config.SearchPath = searchPath
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger.SetVerbose(config.Verbose)
	return config, nil
}

// action adapts a cli entry point to a command action
func action(run func(context.Context, *cli.Config, io.Writer) (int, error)) urfavecli.ActionFunc {
	return func(ctx context.Context, cmd *urfavecli.Command) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return urfavecli.Exit(fmt.Sprintf("Error: %v", err), exitConfig)
		}
		return exit(run(ctx, config, os.Stdout))
	}
}

// downCommand handles the 'pgscript down' command
func downCommand(ctx context.Context, cmd *urfavecli.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return urfavecli.Exit(fmt.Sprintf("Error: %v", err), exitConfig)
	}
	return exit(cli.Down(ctx, config, cmd.Int("steps"), os.Stdout))
}

// exit turns an exit code into an error urfave/cli exits with
func exit(code int, err error) error {
	if err != nil {
		return urfavecli.Exit(fmt.Sprintf("Error: %v", err), exitFailure)
	}
	if code != 0 {
		return urfavecli.Exit("", code)
	}
	return nil
}
