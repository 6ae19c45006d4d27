package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/dmorgan81/kittenstudio/internal/retry"
	"github.com/samber/do"
)

type Payload struct {
	Status int
	Header http.Header
	Body   []byte
}

type Backend interface {
	Submit(context.Context, request.Request) (*Payload, error)
}

type Normalizer interface {
	Normalize(request.Request, *Payload) (*Result, error)
}

type Timing struct {
	Delay     time.Duration
	Execution time.Duration
	JobID     string
}

type Result struct {
	Data        []byte
	ContentType string
	Timing      *Timing
}

// BackendError is a failed call to the backend: either the transport failed
// (Status is zero) or the backend answered with a non-2xx status.
type BackendError struct {
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *BackendError) Unwrap() error { return e.Err }

type NormalizationError struct {
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return "normalize backend response: " + e.Reason + ": " + e.Err.Error()
	}
	return "normalize backend response: " + e.Reason
}

func (e *NormalizationError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

type Generator struct {
	Backend    Backend
	Normalizer Normalizer
	Policy     retry.Policy
	Options    []retry.Option
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{
		Backend:    do.MustInvoke[Backend](i),
		Normalizer: do.MustInvoke[Normalizer](i),
		Policy:     do.MustInvoke[retry.Policy](i),
	}, nil
}

func (g *Generator) Generate(ctx context.Context, req request.Request) (*Result, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("generator").With(
		"prompt", req.Prompt,
		"aspect_ratio", req.AspectRatio,
		"accept", req.Accept,
	)

	opts := append([]retry.Option{
		retry.WithRetryIf(IsTransient),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			logger.Warn("backend attempt failed, retrying", "attempt", attempt, "wait", wait.String(), "error", err)
		}),
	}, g.Options...)

	payload, err := retry.Do(ctx, g.Policy, func(ctx context.Context, attempt int) (*Payload, error) {
		logger.Info("submitting to backend", "attempt", attempt)
		return g.Backend.Submit(ctx, req)
	}, opts...)
	if err != nil {
		logger.Error("backend call failed", "error", err)
		return nil, err
	}

	result, err := g.Normalizer.Normalize(req, payload)
	if err != nil {
		logger.Error("could not normalize backend response", "error", err)
		return nil, err
	}
	logger.Info("image generated", "bytes", len(result.Data), "content_type", result.ContentType)
	return result, nil
}
