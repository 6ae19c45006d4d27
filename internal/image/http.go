package image

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/samber/lo"
)

const maxErrorMessage = 512

type params struct {
	Prompt            string  `json:"prompt"`
	NumInferenceSteps float64 `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	AspectRatio       string  `json:"aspect_ratio"`
}

func toParams(req request.Request) params {
	return params{
		Prompt:            req.Prompt,
		NumInferenceSteps: req.NumInferenceSteps,
		GuidanceScale:     req.GuidanceScale,
		AspectRatio:       req.AspectRatio,
	}
}

type endpoint struct {
	client *http.Client
	url    string
	key    string
}

func (e endpoint) post(ctx context.Context, body any, accept string) (*Payload, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if e.key != "" {
		req.Header.Set("Authorization", "Bearer "+e.key)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &BackendError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}
	return &Payload{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// errorMessage digs the backend's own diagnostic out of an error body. Callers
// show it to the user, so it is passed through rather than replaced.
func errorMessage(status int, body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		var s string
		var nested struct {
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(envelope.Error, &s) == nil && s != "":
			return s
		case json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "":
			return nested.Message
		case envelope.Message != "":
			return envelope.Message
		case envelope.Detail != "":
			return envelope.Detail
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return lo.Ternary(http.StatusText(status) != "", http.StatusText(status), "backend request failed")
	}
	if len(text) > maxErrorMessage {
		text = text[:maxErrorMessage]
	}
	return text
}
