package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/resource"
	"github.com/dmorgan81/kittenstudio/internal/session"
	"github.com/dmorgan81/kittenstudio/internal/studio"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("STUDIO_SERVER", "http://localhost:8080"), "studio server base URL")
	dir := flag.String("dir", "", "directory for image files (default: system temp dir)")
	timeout := flag.Duration("timeout", 6*time.Minute, "per-request timeout")
	level := flag.String("log-level", envOr("LOG_LEVEL", "warn"), "log level")
	flag.Parse()

	if err := run(*server, *dir, *timeout, *level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(server, dir string, timeout time.Duration, level string) error {
	logger := log.New(os.Stderr, log.ParseLevel(level))
	ctx, stop := signal.NotifyContext(log.NewContext(context.Background(), logger), os.Interrupt)
	defer stop()

	files, err := resource.NewTempFileStore(dir)
	if err != nil {
		return err
	}
	defer files.Close()

	client := studio.NewClient(server, &http.Client{Timeout: timeout})
	store := session.NewStore(client, files)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("session ended with unreleased images", "error", err)
		}
	}()

	if err := studio.NewShell(store, client, os.Stdout).Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
