package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/trossachsgroup/site-backend/internal/config"
	"github.com/trossachsgroup/site-backend/internal/log"
	"github.com/trossachsgroup/site-backend/internal/repository"
)

var (
	flags   = flag.NewFlagSet("migrate", flag.ExitOnError)
	timeout = flags.Duration("timeout", time.Minute, "overall deadline for the command")
)

const usage = `Usage: migrate [flags] COMMAND

Runs the embedded schema migrations against the configured SQL backend
(SITE_STORE_BACKEND=postgres or sqlite).

Commands:
  up      apply all pending migrations
  down    roll back the most recent migration
  status  print applied and pending migrations`

func main() {
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var dialect, dsn string
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		dialect, dsn = repository.DialectPostgres, cfg.Store.PostgresDSN
	case config.BackendSQLite:
		dialect, dsn = repository.DialectSQLite, cfg.Store.SQLitePath
	default:
		logger.Fatalw("Migrations need a SQL backend", "backend", cfg.Store.Backend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := repository.Open(ctx, dialect, dsn)
	if err != nil {
		logger.Fatalw("Failed to connect to database", "dialect", dialect, "error", err)
	}
	defer db.Close()

	command := args[0]
	switch command {
	case "up":
		err = repository.Migrate(ctx, db, dialect)
	case "down":
		err = repository.MigrateDown(ctx, db, dialect)
	case "status":
		err = repository.MigrationStatus(ctx, db, dialect)
	default:
		logger.Fatalw("Unknown command", "command", command)
	}
	if err != nil {
		logger.Fatalw("Migration failed", "command", command, "dialect", dialect, "error", err)
	}
	logger.Infow("Migration command finished", "command", command, "dialect", dialect)
}
