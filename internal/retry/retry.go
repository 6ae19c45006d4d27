package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	Attempts int
	Wait     time.Duration
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Delay returns how long to wait after the given 1-based attempt has failed.
// ok is false once the attempt budget is spent.
func (p Policy) Delay(attempt int) (d time.Duration, ok bool) {
	if attempt >= p.attempts() {
		return 0, false
	}
	return p.Wait, true
}

type schedule struct {
	policy  Policy
	failure int
}

func (s *schedule) NextBackOff() time.Duration {
	s.failure++
	d, ok := s.policy.Delay(s.failure)
	if !ok {
		return backoff.Stop
	}
	return d
}

func (s *schedule) Reset() { s.failure = 0 }

type options struct {
	timer   backoff.Timer
	retryIf func(error) bool
	notify  func(attempt int, err error, wait time.Duration)
}

type Option func(*options)

func WithTimer(t backoff.Timer) Option {
	return func(o *options) { o.timer = t }
}

// WithRetryIf limits retries to errors the predicate accepts. Any other error
// ends the loop immediately and is returned as is.
func WithRetryIf(fn func(error) bool) Option {
	return func(o *options) { o.retryIf = fn }
}

func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx, attempt)
		if err != nil && o.retryIf != nil && !o.retryIf(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	var notify backoff.Notify
	if o.notify != nil {
		notify = func(err error, d time.Duration) { o.notify(attempt, err, d) }
	}

	res, err := backoff.RetryNotifyWithTimerAndData(operation, backoff.WithContext(&schedule{policy: p}, ctx), notify, o.timer)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return res, permanent.Err
	}
	return res, err
}
