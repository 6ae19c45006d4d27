package image

import (
	"context"
	"sync"

	"github.com/dmorgan81/kittenstudio/internal/request"
)

type step struct {
	payload *Payload
	err     error
}

// scriptedBackend answers each Submit with the next scripted step.
type scriptedBackend struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (b *scriptedBackend) Submit(context.Context, request.Request) (*Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.steps[b.calls]
	b.calls++
	return s.payload, s.err
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func validRequest() request.Request {
	req, err := request.Validate(map[string]any{"prompt": "a kitten", "aspect_ratio": "16:9"})
	if err != nil {
		panic(err)
	}
	return req
}
