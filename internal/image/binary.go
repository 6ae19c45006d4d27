package image

import (
	"context"
	"net/http"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/samber/do"
)

type BinaryBackend struct {
	endpoint
}

func NewBinaryBackend(i *do.Injector) (Backend, error) {
	return NewBinaryBackendFor(
		do.MustInvoke[*http.Client](i),
		do.MustInvokeNamed[string](i, "backend_url"),
		do.MustInvokeNamed[string](i, "backend_key"),
	), nil
}

func NewBinaryBackendFor(client *http.Client, url, key string) *BinaryBackend {
	return &BinaryBackend{endpoint{client: client, url: url, key: key}}
}

func (b *BinaryBackend) Submit(ctx context.Context, req request.Request) (*Payload, error) {
	log.FromContextOrDiscard(ctx).Debug("posting to binary backend", "url", b.url)
	return b.post(ctx, toParams(req), req.Accept)
}

type BinaryNormalizer struct{}

func NewBinaryNormalizer(*do.Injector) (Normalizer, error) {
	return BinaryNormalizer{}, nil
}

func (BinaryNormalizer) Normalize(req request.Request, p *Payload) (*Result, error) {
	if p == nil || len(p.Body) == 0 {
		return nil, &NormalizationError{Reason: "empty image body"}
	}
	return &Result{Data: p.Body, ContentType: req.Accept}, nil
}
