package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Tracker wraps a Store and checks that every handle is released exactly
// once. Releasing an unknown or already released handle never reaches the
// underlying store.
type Tracker struct {
	store Store

	mu         sync.Mutex
	live       map[string]Handle
	acquired   int
	released   int
	violations []error
}

func Track(s Store) *Tracker {
	return &Tracker{store: s, live: map[string]Handle{}}
}

func (t *Tracker) Acquire(data []byte, contentType string) (Handle, error) {
	h, err := t.store.Acquire(data, contentType)
	if err != nil {
		return Handle{}, err
	}
	t.mu.Lock()
	t.live[h.ID] = h
	t.acquired++
	t.mu.Unlock()
	return h, nil
}

func (t *Tracker) Release(h Handle) error {
	t.mu.Lock()
	if _, ok := t.live[h.ID]; !ok {
		err := fmt.Errorf("%w: %s released twice or never acquired", ErrNotLive, h.ID)
		t.violations = append(t.violations, err)
		t.mu.Unlock()
		return err
	}
	delete(t.live, h.ID)
	t.released++
	t.mu.Unlock()
	return t.store.Release(h)
}

func (t *Tracker) IsLive(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.live[h.ID]
	return ok
}

func (t *Tracker) Live() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	handles := lo.Values(t.live)
	sort.Slice(handles, func(i, j int) bool { return handles[i].ID < handles[j].ID })
	return handles
}

func (t *Tracker) Acquired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acquired
}

func (t *Tracker) Released() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *Tracker) Check() error {
	t.mu.Lock()
	errs := append([]error(nil), t.violations...)
	t.mu.Unlock()

	if live := t.Live(); len(live) > 0 {
		ids := lo.Map(live, func(h Handle, _ int) string { return h.ID })
		errs = append(errs, fmt.Errorf("%d handle(s) leaked: %s", len(ids), strings.Join(ids, ", ")))
	}
	return errors.Join(errs...)
}
