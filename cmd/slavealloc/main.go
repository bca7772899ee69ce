package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atvirokodosprendimai/slavealloc/internal/config"
	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/log"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand once the root Before hook
// has run.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
}

func newRootCommand(stdout, stderr io.Writer) *cli.Command {
	a := &app{stdout: stdout, stderr: stderr}
	return &cli.Command{
		Name:      "slavealloc",
		Usage:     "Allocate build slaves to buildbot masters and serve their buildbot.tac files.",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a YAML config file"},
			&cli.StringFlag{Name: "db", Aliases: []string{"D"}, Value: config.Default().Database.Path, Usage: "Path to the SQLite database file"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level (debug, info, warn, error)"},
			&cli.BoolFlag{Name: "log-json", Usage: "Emit JSON log lines instead of console output"},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.serveCommand(),
			a.gettacCommand(),
			a.lockCommand(),
			a.unlockCommand(),
			a.disableCommand(),
			a.enableCommand(),
			a.templateCommand(),
			a.dbinitCommand(),
			a.silosCommand(),
			a.poolsCommand(),
			a.watchCommand(),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if cmd.IsSet("db") {
		cfg.Database.Path = cmd.String("db")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-json") {
		cfg.Log.JSON = cmd.Bool("log-json")
	}
	log.Init(log.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON, Output: a.stderr})
	a.cfg = cfg
	return ctx, nil
}

func (a *app) openDB() (*gorm.DB, error) {
	gormDB, err := db.NewDatabase(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return gormDB, nil
}

// withDB opens the store for the duration of fn.
func (a *app) withDB(fn func(*gorm.DB) error) error {
	gormDB, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	return fn(gormDB)
}

func (a *app) errorf(format string, args ...any) {
	fmt.Fprintf(a.stderr, format+"\n", args...)
}

// slaveArg validates a slave name argument.
func slaveArg(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("slave name is required")
	}
	if strings.Contains(name, ".") {
		return "", fmt.Errorf("slave name %q must not contain '.'; give the unqualified hostname", name)
	}
	return name, nil
}
