package handle

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testExpiry = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func event(method, path, body string) events.LambdaFunctionURLRequest {
	return events.LambdaFunctionURLRequest{
		RawPath: path,
		Body:    body,
		Headers: map[string]string{"content-type": "application/json"},
		RequestContext: events.LambdaFunctionURLRequestContext{
			RequestID:  "req-1",
			DomainName: "abc.lambda-url.us-east-1.on.aws",
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "10.0.0.1",
			},
		},
	}
}

func TestHandleBinaryResponse(t *testing.T) {
	var got *http.Request
	var gotBody string
	h := New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		_, _ = w.Write(pngHeader)
	}))

	ev := event(http.MethodPost, "/generate", base64.StdEncoding.EncodeToString([]byte(`{"prompt":"x"}`)))
	ev.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), ev)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/generate", got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, `{"prompt":"x"}`, gotBody)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsBase64Encoded)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), resp.Body)
	assert.Equal(t, "image/png", resp.Headers["Content-Type"])
	assert.Equal(t, "public, max-age=31536000, immutable", resp.Headers["Cache-Control"])
}

func TestHandleJSONResponse(t *testing.T) {
	h := New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		_, _ = w.Write([]byte(`{"error":"Image generation timed out"}`))
	}))

	resp, err := h.Handle(context.Background(), event(http.MethodPost, "/generate", `{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.False(t, resp.IsBase64Encoded)
	assert.JSONEq(t, `{"error":"Image generation timed out"}`, resp.Body)
}

func TestHandleKeepsCookiesApart(t *testing.T) {
	h := New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "a", Value: "1", Expires: testExpiry})
		http.SetCookie(w, &http.Cookie{Name: "b", Value: "2"})
		w.WriteHeader(http.StatusNoContent)
	}))

	resp, err := h.Handle(context.Background(), event(http.MethodGet, "/healthz", ""))
	require.NoError(t, err)
	require.Len(t, resp.Cookies, 2)
	assert.Contains(t, resp.Cookies[0], "a=1")
	assert.Contains(t, resp.Cookies[0], "Expires=")
	assert.Equal(t, "b=2", resp.Cookies[1])
	assert.NotContains(t, resp.Headers, "Set-Cookie")
}

func TestHandleMalformedBase64(t *testing.T) {
	called := false
	h := New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	ev := event(http.MethodPost, "/generate", "%%%")
	ev.IsBase64Encoded = true

	_, err := h.Handle(context.Background(), ev)
	assert.Error(t, err)
	assert.False(t, called)
}
