package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/prompt"
	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/dmorgan81/kittenstudio/internal/session"
	"github.com/samber/lo"
)

type HTTPError struct {
	Status  int
	Message string
	Details []request.Violation
}

func (e *HTTPError) Error() string {
	msg := lo.Ternary(e.Message != "", e.Message, fmt.Sprintf("request failed with status %d", e.Status))
	if len(e.Details) == 0 {
		return msg
	}
	return msg + " (" + strings.Join(lo.Map(e.Details, func(v request.Violation, _ int) string {
		return v.Field + ": " + v.Message
	}), "; ") + ")"
}

func (e *HTTPError) StatusCode() int { return e.Status }

type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		HTTP:    lo.Ternary(httpClient != nil, httpClient, http.DefaultClient),
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Generate(ctx context.Context, req request.Request) (*session.Image, error) {
	log.FromContextOrDiscard(ctx).WithGroup("client").Debug("posting generate", "prompt", req.Prompt)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", req.Accept)

	data, resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return &session.Image{
		Data:        data,
		ContentType: lo.Ternary(resp.Header.Get("Content-Type") != "", resp.Header.Get("Content-Type"), req.Accept),
	}, nil
}

func (c *Client) RandomPrompt(ctx context.Context) (prompt.Suggestion, error) {
	var s prompt.Suggestion
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/prompts/random", nil)
	if err != nil {
		return s, err
	}
	data, _, err := c.do(httpReq)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decoding prompt suggestion: %w", err)
	}
	return s, nil
}

func (c *Client) do(req *http.Request) ([]byte, *http.Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, decodeError(resp.StatusCode, data)
	}
	return data, resp, nil
}

func decodeError(status int, data []byte) *HTTPError {
	var body struct {
		Error   string              `json:"error"`
		Details []request.Violation `json:"details"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return &HTTPError{Status: status, Message: http.StatusText(status)}
	}
	return &HTTPError{Status: status, Message: body.Error, Details: body.Details}
}
