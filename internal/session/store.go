package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/dmorgan81/kittenstudio/internal/resource"
	"github.com/dmorgan81/kittenstudio/internal/retry"
)

const TimeoutMessage = "Image generation timed out. Please try again."

var DefaultPolicy = retry.Policy{Attempts: 3, Wait: time.Second}

type Image struct {
	Data        []byte
	ContentType string
}

type Client interface {
	Generate(context.Context, request.Request) (*Image, error)
}

type statusCoder interface {
	StatusCode() int
}

func IsGatewayTimeout(err error) bool {
	var sc statusCoder
	return errors.As(err, &sc) && sc.StatusCode() == 504
}

type Store struct {
	client    Client
	resources *resource.Tracker
	policy    retry.Policy
	retryOpts []retry.Option
	now       func() time.Time

	mu     sync.Mutex
	state  State
	closed bool
}

type Option func(*Store)

func WithPolicy(p retry.Policy) Option {
	return func(s *Store) { s.policy = p }
}

func WithRetryOptions(opts ...retry.Option) Option {
	return func(s *Store) { s.retryOpts = append(s.retryOpts, opts...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(client Client, resources resource.Store, opts ...Option) *Store {
	tracker, ok := resources.(*resource.Tracker)
	if !ok {
		tracker = resource.Track(resources)
	}
	s := &Store{
		client:    client,
		resources: tracker,
		policy:    DefaultPolicy,
		now:       time.Now,
		state:     State{Settings: request.Defaults()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Resources() *resource.Tracker { return s.resources }

func (s *Store) dispatch(a Action) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.state.clone(), ErrClosed
	}
	next, err := Reduce(s.state, a)
	if err != nil {
		return s.state.clone(), err
	}
	s.state = next
	return next.clone(), nil
}

func (s *Store) UpdateSettings(settings request.Request) error {
	_, err := s.dispatch(UpdateSettings{Settings: settings})
	return err
}

// Generate retries only on 504; any other failure ends the attempt at once.
func (s *Store) Generate(ctx context.Context) (*Record, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("session")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	previous := s.state.Current
	next, err := Reduce(s.state, Submit{})
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = next
	settings := next.Settings
	s.mu.Unlock()

	// the displayed image is about to be replaced
	if previous != nil && s.resources.IsLive(previous.Handle) {
		if err := s.resources.Release(previous.Handle); err != nil {
			logger.Warn("could not release displayed image", "handle", previous.Handle.ID, "error", err)
		}
	}

	logger.Info("generating", "prompt", settings.Prompt)
	opts := append([]retry.Option{
		retry.WithRetryIf(IsGatewayTimeout),
		retry.WithNotify(func(attempt int, _ error, wait time.Duration) {
			logger.Warn("gateway timeout, retrying", "attempt", attempt, "wait", wait.String())
		}),
	}, s.retryOpts...)

	img, err := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) (*Image, error) {
		if attempt > 1 {
			if _, err := s.dispatch(RetryAttempt{Attempt: attempt}); err != nil {
				return nil, err
			}
		}
		return s.client.Generate(ctx, settings)
	}, opts...)
	if err != nil {
		return nil, s.fail(logger, err)
	}

	h, err := s.resources.Acquire(img.Data, img.ContentType)
	if err != nil {
		return nil, s.fail(logger, err)
	}
	rec := Record{
		Handle:    h,
		Prompt:    settings.Prompt,
		CreatedAt: s.now(),
		Request:   settings,
		data:      img.Data,
	}
	if _, err := s.dispatch(Succeed{Record: rec}); err != nil {
		// torn down mid-flight: nobody else will ever release this one
		_ = s.resources.Release(h)
		return nil, err
	}
	logger.Info("image ready", "handle", h.ID, "uri", h.URI)
	return &rec, nil
}

func (s *Store) fail(logger *slog.Logger, err error) error {
	msg := err.Error()
	if IsGatewayTimeout(err) {
		msg = TimeoutMessage
	}
	logger.Error("generation failed", "error", err)
	if _, derr := s.dispatch(Fail{Message: msg}); derr != nil {
		return derr
	}
	return errors.New(msg)
}

// Select shows a history entry again and restores its settings into the
// form. If its handle was released when it was superseded, a new handle is
// acquired from the retained bytes.
func (s *Store) Select(index int) (*Record, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.state.Phase.Settled() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if index < 0 || index >= len(s.state.History) {
		s.mu.Unlock()
		return nil, ErrNoSuchRecord
	}
	rec := s.state.History[index]
	s.mu.Unlock()

	action := Select{Index: index}
	if !s.resources.IsLive(rec.Handle) {
		h, err := s.resources.Acquire(rec.data, rec.Handle.ContentType)
		if err != nil {
			return nil, err
		}
		action.Handle = &h
	}

	state, err := s.dispatch(action)
	if err != nil {
		if action.Handle != nil {
			_ = s.resources.Release(*action.Handle)
		}
		return nil, err
	}
	return state.Current, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, h := range s.resources.Live() {
		if err := s.resources.Release(h); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, s.resources.Check())
	return errors.Join(errs...)
}
