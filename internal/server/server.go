package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

// Server wraps http.Server so the injector can stop it on shutdown.
type Server struct {
	srv *http.Server
}

func NewServer(i *do.Injector) (*Server, error) {
	return New(":"+do.MustInvokeNamed[string](i, "port"), do.MustInvoke[http.Handler](i)), nil
}

func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Serve accepts connections on l until ctx is done, then drains in-flight
// requests. Request contexts keep ctx's values but not its cancellation.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("server")
	s.srv.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", "addr", l.Addr().String())
		if err := s.srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return s.Shutdown()
	})
	return group.Wait()
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
