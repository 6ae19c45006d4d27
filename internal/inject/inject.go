package inject

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/kittenstudio/internal/handle"
	"github.com/dmorgan81/kittenstudio/internal/handler"
	"github.com/dmorgan81/kittenstudio/internal/image"
	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/param"
	"github.com/dmorgan81/kittenstudio/internal/prompt"
	"github.com/dmorgan81/kittenstudio/internal/retry"
	"github.com/dmorgan81/kittenstudio/internal/server"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	BackendBinary = "binary"
	BackendQueue  = "queue"
)

func Setup(ctx context.Context) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*http.Client](injector, func(i *do.Injector) (*http.Client, error) {
		timeout, err := duration("BACKEND_TIMEOUT", 2*time.Minute)
		if err != nil {
			return nil, err
		}
		return &http.Client{Timeout: timeout}, nil
	})

	do.Provide[param.Fetcher](injector, func(i *do.Injector) (param.Fetcher, error) {
		if os.Getenv("PARAM_SOURCE") == "ssm" {
			return param.NewParameterStoreFetcher(i)
		}
		return param.EnvFetcher{}, nil
	})

	do.ProvideNamed[string](injector, "backend_url", func(i *do.Injector) (string, error) {
		v := os.Getenv("BACKEND_URL")
		if v == "" {
			return "", fmt.Errorf("BACKEND_URL is not set")
		}
		return v, nil
	})
	do.ProvideNamed[string](injector, "backend_key", func(i *do.Injector) (string, error) {
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, env("BACKEND_KEY_PARAM", "BACKEND_KEY"))
	})
	do.ProvideNamed[[]string](injector, "prompts", func(i *do.Injector) ([]string, error) {
		return do.MustInvoke[param.Fetcher](i).FetchAll(ctx, env("PROMPTS_PARAM", "PROMPTS"))
	})
	do.ProvideNamedValue[string](injector, "backend_content_type", env("BACKEND_CONTENT_TYPE", "image/png"))
	do.ProvideNamedValue[string](injector, "port", env("PORT", "8080"))
	do.ProvideNamed[time.Duration](injector, "generate_timeout", func(i *do.Injector) (time.Duration, error) {
		return duration("GENERATE_TIMEOUT", 5*time.Minute)
	})

	do.Provide[retry.Policy](injector, func(i *do.Injector) (retry.Policy, error) {
		attempts, err := strconv.Atoi(env("RETRY_ATTEMPTS", "3"))
		if err != nil {
			return retry.Policy{}, fmt.Errorf("RETRY_ATTEMPTS: %w", err)
		}
		wait, err := duration("RETRY_DELAY", 2*time.Second)
		if err != nil {
			return retry.Policy{}, err
		}
		return retry.Policy{Attempts: attempts, Wait: wait}, nil
	})

	switch kind := env("BACKEND_KIND", BackendBinary); kind {
	case BackendQueue:
		do.Provide[image.Backend](injector, image.NewQueueBackend)
		do.Provide[image.Normalizer](injector, image.NewBase64Normalizer)
	default:
		if kind != BackendBinary {
			log.Warn("unknown backend kind, using binary", "kind", kind)
		}
		do.Provide[image.Backend](injector, image.NewBinaryBackend)
		do.Provide[image.Normalizer](injector, image.NewBinaryNormalizer)
	}

	do.Provide[*image.Generator](injector, image.NewGenerator)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[http.Handler](injector, func(i *do.Injector) (http.Handler, error) {
		return do.MustInvoke[*handler.Handler](i).Routes(log), nil
	})
	do.Provide[*handle.FunctionURLHandler](injector, handle.NewFunctionURLHandler)
	do.Provide[*server.Server](injector, server.NewServer)

	return injector
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	return lo.Ternary(v != "", v, fallback)
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
