package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/image"
	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/prompt"
	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/samber/do"
)

const (
	maxBodyBytes   = 64 << 10
	cacheControl   = "public, max-age=31536000, immutable"
	invalidRequest = "Invalid request data"
	genericFailure = "Failed to generate image"
	timedOut       = "Image generation timed out"
)

type Generator interface {
	Generate(context.Context, request.Request) (*image.Result, error)
}

type Handler struct {
	generator  Generator
	randomizer *prompt.Randomizer
	validator  *request.Validator
	timeout    time.Duration
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		generator:  do.MustInvoke[*image.Generator](i),
		randomizer: do.MustInvoke[*prompt.Randomizer](i),
		validator:  request.New(request.DefaultRules()...),
		timeout:    do.MustInvokeNamed[time.Duration](i, "generate_timeout"),
	}, nil
}

type errorBody struct {
	Error   string              `json:"error"`
	Details []request.Violation `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContextOrDiscard(ctx).WithGroup("generate")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("could not read request body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   invalidRequest,
			Details: []request.Violation{{Field: "body", Code: request.CodeInvalidJSON, Message: err.Error()}},
		})
		return
	}

	req, err := h.validator.Parse(body)
	if err != nil {
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			logger.Warn("rejected invalid request", "fields", verr.Fields())
			writeJSON(w, http.StatusBadRequest, errorBody{Error: invalidRequest, Details: verr.Violations})
			return
		}
		logger.Error("validation failed unexpectedly", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: genericFailure})
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.generator.Generate(ctx, req)
	if err != nil {
		status, msg := classify(ctx, err)
		logger.Error("generation failed", "status", status, "error", err, "prompt", req.Prompt)
		writeJSON(w, status, errorBody{Error: msg})
		return
	}

	header := w.Header()
	header.Set("Content-Type", res.ContentType)
	header.Set("Content-Length", strconv.Itoa(len(res.Data)))
	header.Set("Cache-Control", cacheControl)
	if t := res.Timing; t != nil {
		header.Set("X-Delay-Time", strconv.FormatInt(t.Delay.Milliseconds(), 10))
		header.Set("X-Execution-Time", strconv.FormatInt(t.Execution.Milliseconds(), 10))
		if t.JobID != "" {
			header.Set("X-Job-Id", t.JobID)
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		logger.Warn("could not write image", "error", err)
	}
}

// classify maps a generation error to the status and message the client
// sees. Backend messages are passed through untouched. Only the handler's own
// deadline is a 504; a backend call that timed out has no status.
func classify(ctx context.Context, err error) (int, string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, timedOut
	}

	var be *image.BackendError
	if errors.As(err, &be) {
		if be.Status == 0 || be.Message == "" {
			return http.StatusInternalServerError, genericFailure
		}
		return be.Status, be.Message
	}
	return http.StatusInternalServerError, genericFailure
}

func (h *Handler) RandomPrompt(w http.ResponseWriter, r *http.Request) {
	s, err := h.randomizer.Randomize(r.Context())
	if errors.Is(err, prompt.ErrNoPrompts) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
