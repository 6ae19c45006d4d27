package handle

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/samber/do"
)

// FunctionURLHandler serves Lambda Function URL invocations with the same
// router the standalone server uses.
type FunctionURLHandler struct {
	adapter *httpadapter.HandlerAdapterFnURL
}

func NewFunctionURLHandler(i *do.Injector) (*FunctionURLHandler, error) {
	return New(do.MustInvoke[http.Handler](i)), nil
}

func New(h http.Handler) *FunctionURLHandler {
	return &FunctionURLHandler{adapter: httpadapter.NewFunctionURL(h)}
}

func (h *FunctionURLHandler) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("FunctionURLHandler").With(
		"request_id", event.RequestContext.RequestID,
		"path", event.RawPath,
	)
	log.Info("handling lambda invocation")

	resp, err := h.adapter.ProxyWithContext(ctx, event)
	if err != nil {
		log.Error("could not proxy invocation", "error", err)
	}
	return resp, err
}
