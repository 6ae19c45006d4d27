package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/kittenstudio/internal/handle"
	"github.com/dmorgan81/kittenstudio/internal/inject"
	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/server"
	"github.com/joho/godotenv"
	"github.com/samber/do"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stderr, log.ParseLevel(os.Getenv("LOG_LEVEL")))
	ctx := log.NewContext(context.Background(), logger)
	injector := inject.Setup(ctx)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		fn := do.MustInvoke[*handle.FunctionURLHandler](injector)
		lambda.StartWithOptions(fn.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
			_ = injector.Shutdown()
		}))
		return
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := do.MustInvoke[*server.Server](injector)
	err := srv.ListenAndServe(ctx)
	_ = injector.Shutdown()
	if err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
