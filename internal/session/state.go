package session

import (
	"errors"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/dmorgan81/kittenstudio/internal/resource"
)

type Phase int

const (
	Idle Phase = iota
	Generating
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Settled reports whether a new action may start from this phase. Succeeded
// and Failed fall back to Idle on the next action.
func (p Phase) Settled() bool { return p != Generating }

var (
	ErrBusy          = errors.New("a generation is already in flight")
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrNoSuchRecord  = errors.New("no such history entry")
	ErrNotGenerating = errors.New("no generation in flight")
	ErrClosed        = errors.New("session is closed")
)

type Record struct {
	Handle    resource.Handle
	Prompt    string
	CreatedAt time.Time
	Request   request.Request

	// kept so a record whose handle was released can be shown again
	data []byte
}

type State struct {
	Phase    Phase
	Settings request.Request
	Current  *Record
	History  []Record
	Attempt  int
	Error    string
}

func (s State) clone() State {
	out := s
	out.History = append([]Record(nil), s.History...)
	if s.Current != nil {
		cur := *s.Current
		out.Current = &cur
	}
	return out
}

type Action interface{ action() }

type UpdateSettings struct{ Settings request.Request }

type Submit struct{}

type RetryAttempt struct{ Attempt int }

type Succeed struct{ Record Record }

type Fail struct{ Message string }

// Select shows History[Index] again. Handle, when set, replaces the record's
// handle because the old one has already been released.
type Select struct {
	Index  int
	Handle *resource.Handle
}

func (UpdateSettings) action() {}
func (Submit) action()         {}
func (RetryAttempt) action()   {}
func (Succeed) action()        {}
func (Fail) action()           {}
func (Select) action()         {}

func Reduce(s State, a Action) (State, error) {
	next := s.clone()

	switch a := a.(type) {
	case UpdateSettings:
		if !s.Phase.Settled() {
			return s, ErrBusy
		}
		next.Settings = a.Settings

	case Submit:
		if !s.Phase.Settled() {
			return s, ErrBusy
		}
		if s.Settings.Prompt == "" {
			return s, ErrEmptyPrompt
		}
		next.Phase = Generating
		next.Current = nil
		next.Attempt = 1
		next.Error = ""

	case RetryAttempt:
		if s.Phase != Generating {
			return s, ErrNotGenerating
		}
		next.Attempt = a.Attempt

	case Succeed:
		if s.Phase != Generating {
			return s, ErrNotGenerating
		}
		rec := a.Record
		next.History = append([]Record{rec}, s.History...)
		next.Current = &rec
		next.Phase = Succeeded
		next.Attempt = 0

	case Fail:
		if s.Phase != Generating {
			return s, ErrNotGenerating
		}
		next.Phase = Failed
		next.Error = a.Message
		next.Attempt = 0

	case Select:
		if !s.Phase.Settled() {
			return s, ErrBusy
		}
		if a.Index < 0 || a.Index >= len(s.History) {
			return s, ErrNoSuchRecord
		}
		if a.Handle != nil {
			next.History[a.Index].Handle = *a.Handle
		}
		rec := next.History[a.Index]
		next.Current = &rec
		next.Settings = rec.Request
		next.Phase = Idle
		next.Error = ""
	}
	return next, nil
}
