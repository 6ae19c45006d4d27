package studio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/dmorgan81/kittenstudio/internal/request"
	"github.com/dmorgan81/kittenstudio/internal/session"
	"github.com/samber/lo"
)

var errQuit = errors.New("quit")

const usage = `commands:
  generate [prompt]     generate an image from the current settings
  set <field> <value>   change a setting (prompt, aspect_ratio, guidance_scale,
                        num_inference_steps, accept, seed)
  show                  print the settings and the displayed image
  history               list generated images, newest first
  select <n>            show history entry n and restore its settings
  surprise              fill the prompt from the server's suggestions
  quit                  end the session
`

type Shell struct {
	store  *session.Store
	client *Client
	out    io.Writer

	// the form allows an empty prompt while it is being edited
	form *request.Validator
}

func NewShell(store *session.Store, client *Client, out io.Writer) *Shell {
	return &Shell{
		store:  store,
		client: client,
		out:    out,
		form: request.New(request.DefaultRules()...).With(request.Rule{
			Field: request.FieldPrompt, Kind: request.KindString,
			Set: func(r *request.Request, v any) { r.Prompt = v.(string) },
		}),
	}
}

func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.printf("kitten studio. type help for commands.\n> ")
	for scanner.Scan() {
		err := s.Exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			s.printf("error: %s\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.printf("> ")
	}
	return scanner.Err()
}

func (s *Shell) Exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	log.FromContextOrDiscard(ctx).WithGroup("shell").Debug("command", "name", cmd)

	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "help", "?":
		s.printf("%s", usage)
		return nil
	case "quit", "exit":
		return errQuit
	case "generate", "gen":
		return s.generate(ctx, rest)
	case "set":
		field, value, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("usage: set <field> <value>")
		}
		return s.set(field, strings.TrimSpace(value))
	case "show":
		s.show()
		return nil
	case "history":
		s.history()
		return nil
	case "select":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("usage: select <n>")
		}
		return s.selectRecord(n)
	case "surprise":
		return s.surprise(ctx)
	}
	return fmt.Errorf("unknown command %q, type help", cmd)
}

func (s *Shell) generate(ctx context.Context, text string) error {
	if text != "" {
		if err := s.set(request.FieldPrompt, text); err != nil {
			return err
		}
	}

	// the server validates again; this keeps bad settings off the network
	if _, err := request.Validate(s.store.Snapshot().Settings.Settings()); err != nil {
		return err
	}

	s.printf("generating...\n")
	rec, err := s.store.Generate(ctx)
	if err != nil {
		return err
	}
	s.printf("image ready: %s (%s, %d bytes)\n", rec.Handle.URI, rec.Handle.ContentType, rec.Handle.Size)
	return nil
}

func (s *Shell) set(field, value string) error {
	settings := s.store.Snapshot().Settings.Settings()
	switch field {
	case request.FieldNumInferenceSteps, request.FieldGuidanceScale, request.FieldSeed:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", field, value)
		}
		settings[field] = f
	case request.FieldPrompt, request.FieldAspectRatio, request.FieldAccept:
		settings[field] = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	next, err := s.form.Validate(settings)
	if err != nil {
		return err
	}
	return s.store.UpdateSettings(next)
}

func (s *Shell) show() {
	state := s.store.Snapshot()
	settings := state.Settings
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "prompt\t%s\n", settings.Prompt)
	fmt.Fprintf(w, "aspect_ratio\t%s\n", settings.AspectRatio)
	fmt.Fprintf(w, "guidance_scale\t%g\n", settings.GuidanceScale)
	fmt.Fprintf(w, "num_inference_steps\t%g\n", settings.NumInferenceSteps)
	fmt.Fprintf(w, "accept\t%s\n", settings.Accept)
	if settings.Seed != 0 {
		fmt.Fprintf(w, "seed\t%d\n", settings.Seed)
	}
	fmt.Fprintf(w, "state\t%s\n", state.Phase)
	if state.Error != "" {
		fmt.Fprintf(w, "error\t%s\n", state.Error)
	}
	if state.Current != nil {
		fmt.Fprintf(w, "image\t%s\n", state.Current.Handle.URI)
	}
	_ = w.Flush()
}

func (s *Shell) history() {
	state := s.store.Snapshot()
	if len(state.History) == 0 {
		s.printf("no images yet\n")
		return
	}
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for i, rec := range state.History {
		marker := lo.Ternary(state.Current != nil && state.Current.Handle.ID == rec.Handle.ID, "*", " ")
		fmt.Fprintf(w, "%s%d\t%s\t%s\t%s\n", marker, i+1, rec.CreatedAt.Format(time.Kitchen), rec.Prompt, rec.Handle.URI)
	}
	_ = w.Flush()
}

func (s *Shell) selectRecord(n int) error {
	rec, err := s.store.Select(n - 1)
	if err != nil {
		return err
	}
	s.printf("showing %q: %s\n", rec.Prompt, rec.Handle.URI)
	return nil
}

func (s *Shell) surprise(ctx context.Context) error {
	suggestion, err := s.client.RandomPrompt(ctx)
	if err != nil {
		return err
	}
	if err := s.set(request.FieldPrompt, suggestion.Prompt); err != nil {
		return err
	}
	if suggestion.AspectRatio != "" {
		if err := s.set(request.FieldAspectRatio, suggestion.AspectRatio); err != nil {
			return err
		}
	}
	s.printf("prompt: %s\n", suggestion.Prompt)
	return nil
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
