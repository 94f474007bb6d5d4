package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/trossachsgroup/site-backend/internal/config"
	"github.com/trossachsgroup/site-backend/internal/log"
	"github.com/trossachsgroup/site-backend/internal/posts"
	"github.com/trossachsgroup/site-backend/internal/storage"
	"go.uber.org/zap"
)

const usage = `Usage: seed COMMAND [flags]

Commands:
  write -out FILE   write the built-in posts as a seed file
  load  [-file F]   seed the configured SQL store (only when it is empty);
                    defaults to SITE_POSTS_SEED_FILE, then the built-in posts`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
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

	switch os.Args[1] {
	case "write":
		err = write(os.Args[2:], logger)
	case "load":
		err = load(os.Args[2:], cfg, logger)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalw("Seed command failed", "command", os.Args[1], "error", err)
	}
}

func write(args []string, logger *zap.SugaredLogger) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	out := fs.String("out", "posts.json", "destination file")
	fs.Parse(args)

	seed := posts.DefaultSeed()
	if err := posts.WriteSeedFile(*out, seed); err != nil {
		return err
	}
	logger.Infow("Wrote seed file", "path", *out, "posts", len(seed))
	return nil
}

func load(args []string, cfg *config.Config, logger *zap.SugaredLogger) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	file := fs.String("file", cfg.Posts.SeedFile, "seed file; empty uses the built-in posts")
	timeout := fs.Duration("timeout", time.Minute, "overall deadline")
	fs.Parse(args)

	if cfg.Store.Backend != config.BackendPostgres && cfg.Store.Backend != config.BackendSQLite {
		return fmt.Errorf("load needs a SQL backend, got %q", cfg.Store.Backend)
	}

	seed, err := storage.LoadSeed(*file)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := storage.Open(ctx, cfg.Store, nil, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.Seed(ctx, seed)
}
