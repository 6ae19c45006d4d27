package prompt

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var ErrNoPrompts = errors.New("no prompts configured")

// Suggestion is one entry of the prompt list. Entries are either a bare
// prompt or "aspect_ratio|prompt".
type Suggestion struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type Randomizer struct {
	prompts []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "prompts")
	return New(prompts, rand.NewSource(time.Now().UTC().Unix())), nil
}

func New(prompts []string, src rand.Source) *Randomizer {
	prompts = lo.Filter(prompts, func(p string, _ int) bool { return strings.TrimSpace(p) != "" })
	return &Randomizer{prompts: prompts, rnd: rand.New(src)}
}

func (r *Randomizer) Len() int { return len(r.prompts) }

func (r *Randomizer) Randomize(ctx context.Context) (Suggestion, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("randomizer")
	if len(r.prompts) == 0 {
		return Suggestion{}, ErrNoPrompts
	}

	r.mu.Lock()
	idx := r.rnd.Intn(len(r.prompts))
	r.mu.Unlock()
	log.Info("picked random prompt", "index", idx)

	entry := strings.TrimSpace(r.prompts[idx])
	if aspect, text, ok := strings.Cut(entry, "|"); ok {
		return Suggestion{Prompt: strings.TrimSpace(text), AspectRatio: strings.TrimSpace(aspect)}, nil
	}
	return Suggestion{Prompt: entry}, nil
}
