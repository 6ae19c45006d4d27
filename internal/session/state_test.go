package session

import (
	"testing"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/dmorgan81/kittenstudio/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings(prompt string) request.Request {
	s := request.Defaults()
	s.Prompt = prompt
	return s
}

func record(prompt string) Record {
	return Record{
		Handle:    resource.Handle{ID: "blob:" + prompt},
		Prompt:    prompt,
		CreatedAt: time.Unix(0, 0),
		Request:   settings(prompt),
	}
}

func mustReduce(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		var err error
		s, err = Reduce(s, a)
		require.NoError(t, err, "%T", a)
	}
	return s
}

func TestReduceSubmit(t *testing.T) {
	_, err := Reduce(State{}, Submit{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	s := mustReduce(t, State{}, UpdateSettings{Settings: settings("a")}, Submit{})
	assert.Equal(t, Generating, s.Phase)
	assert.Equal(t, 1, s.Attempt)

	_, err = Reduce(s, Submit{})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = Reduce(s, UpdateSettings{Settings: settings("b")})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = Reduce(s, Select{Index: 0})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestReduceSubmitClearsDisplayed(t *testing.T) {
	a := record("a")
	s := mustReduce(t, State{Settings: settings("a")}, Submit{}, Succeed{Record: a})
	require.NotNil(t, s.Current)

	s = mustReduce(t, s, Submit{})
	assert.Nil(t, s.Current)
	assert.Len(t, s.History, 1, "history is untouched by a new submission")
}

func TestReduceOutcomeNeedsGenerating(t *testing.T) {
	for _, a := range []Action{Succeed{}, Fail{}, RetryAttempt{Attempt: 2}} {
		_, err := Reduce(State{}, a)
		assert.ErrorIs(t, err, ErrNotGenerating, "%T", a)
	}
}

func TestReduceHistoryNewestFirst(t *testing.T) {
	a, b := record("a"), record("b")
	s := mustReduce(t, State{Settings: settings("a")},
		Submit{}, Succeed{Record: a},
		UpdateSettings{Settings: settings("b")},
		Submit{}, RetryAttempt{Attempt: 2}, Succeed{Record: b},
	)

	assert.Equal(t, Succeeded, s.Phase)
	assert.Equal(t, []string{"b", "a"}, prompts(s.History))
	assert.Equal(t, "b", s.Current.Prompt)
	assert.Zero(t, s.Attempt)
}

func TestReduceFailLeavesHistory(t *testing.T) {
	s := mustReduce(t, State{Settings: settings("a")}, Submit{}, Succeed{Record: record("a")}, Submit{}, Fail{Message: "nope"})
	assert.Equal(t, Failed, s.Phase)
	assert.Equal(t, "nope", s.Error)
	assert.Equal(t, []string{"a"}, prompts(s.History))

	s = mustReduce(t, s, Submit{})
	assert.Empty(t, s.Error, "a new submission clears the old error")
}

func TestReduceSelect(t *testing.T) {
	a, b := record("a"), record("b")
	a.Request.GuidanceScale = 3
	s := mustReduce(t, State{Settings: settings("a")}, Submit{}, Succeed{Record: a}, Submit{}, Succeed{Record: b})

	s = mustReduce(t, s, UpdateSettings{Settings: settings("draft")}, Select{Index: 1})
	assert.Equal(t, "a", s.Current.Prompt)
	assert.Equal(t, a.Request, s.Settings)
	assert.Equal(t, []string{"b", "a"}, prompts(s.History))
	assert.Equal(t, Idle, s.Phase)

	_, err := Reduce(s, Select{Index: 2})
	assert.ErrorIs(t, err, ErrNoSuchRecord)
	_, err = Reduce(s, Select{Index: -1})
	assert.ErrorIs(t, err, ErrNoSuchRecord)
}

func TestReduceSelectReplacesHandle(t *testing.T) {
	s := mustReduce(t, State{Settings: settings("a")}, Submit{}, Succeed{Record: record("a")})
	fresh := resource.Handle{ID: "blob:fresh"}

	next := mustReduce(t, s, Select{Index: 0, Handle: &fresh})
	assert.Equal(t, "blob:fresh", next.History[0].Handle.ID)
	assert.Equal(t, "blob:fresh", next.Current.Handle.ID)
	assert.Equal(t, "blob:a", s.History[0].Handle.ID, "reduce never mutates its input")
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "generating", Generating.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "failed", Failed.String())
}

func prompts(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Prompt
	}
	return out
}
