package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// QueueBackend talks to a queue-style runsync endpoint that wraps parameters
// in an input envelope and returns the image base64 encoded inside JSON.
type QueueBackend struct {
	endpoint
}

func NewQueueBackend(i *do.Injector) (Backend, error) {
	return NewQueueBackendFor(
		do.MustInvoke[*http.Client](i),
		do.MustInvokeNamed[string](i, "backend_url"),
		do.MustInvokeNamed[string](i, "backend_key"),
	), nil
}

func NewQueueBackendFor(client *http.Client, baseURL, key string) *QueueBackend {
	return &QueueBackend{endpoint{client: client, url: strings.TrimRight(baseURL, "/") + "/runsync", key: key}}
}

type queueInput struct {
	Input params `json:"input"`
}

type queueEnvelope struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Output        *string  `json:"output"`
	DelayTime     *float64 `json:"delayTime"`
	ExecutionTime *float64 `json:"executionTime"`
	Error         string   `json:"error"`
}

func (b *QueueBackend) Submit(ctx context.Context, req request.Request) (*Payload, error) {
	log.FromContextOrDiscard(ctx).Debug("posting to queue backend", "url", b.url)
	p, err := b.post(ctx, queueInput{Input: toParams(req)}, "application/json")
	if err != nil {
		return nil, err
	}

	// A job the worker gave up on still comes back 200; treat it like any
	// other failed call so it is retried.
	var env queueEnvelope
	if json.Unmarshal(p.Body, &env) == nil && (env.Error != "" || strings.EqualFold(env.Status, "FAILED")) {
		return nil, &BackendError{
			Status:  http.StatusBadGateway,
			Message: lo.Ternary(env.Error != "", env.Error, "backend job "+env.ID+" failed"),
		}
	}
	return p, nil
}

// Base64Normalizer decodes the JSON envelope. The envelope carries no media
// type, so it is sniffed from the decoded bytes with Fallback as a backstop.
type Base64Normalizer struct {
	Fallback string
}

func NewBase64Normalizer(i *do.Injector) (Normalizer, error) {
	return Base64Normalizer{Fallback: do.MustInvokeNamed[string](i, "backend_content_type")}, nil
}

func (n Base64Normalizer) Normalize(_ request.Request, p *Payload) (*Result, error) {
	if p == nil {
		return nil, &NormalizationError{Reason: "no payload"}
	}

	var env queueEnvelope
	if err := json.Unmarshal(p.Body, &env); err != nil {
		return nil, &NormalizationError{Reason: "invalid JSON envelope", Err: err}
	}
	if env.Output == nil || *env.Output == "" {
		return nil, &NormalizationError{Reason: "envelope has no output"}
	}

	encoded := *env.Output
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ";base64,"); idx >= 0 {
			encoded = encoded[idx+len(";base64,"):]
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, &NormalizationError{Reason: "output is not valid base64", Err: err}
	}
	if len(data) == 0 {
		return nil, &NormalizationError{Reason: "output decoded to no bytes"}
	}

	result := &Result{Data: data, ContentType: n.contentType(data)}
	if env.DelayTime != nil || env.ExecutionTime != nil || env.ID != "" {
		result.Timing = &Timing{
			Delay:     millis(env.DelayTime),
			Execution: millis(env.ExecutionTime),
			JobID:     env.ID,
		}
	}
	return result, nil
}

func (n Base64Normalizer) contentType(data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return lo.Ternary(n.Fallback != "", n.Fallback, request.MediaPNG)
}

func millis(v *float64) time.Duration {
	if v == nil {
		return 0
	}
	return time.Duration(*v * float64(time.Millisecond))
}
