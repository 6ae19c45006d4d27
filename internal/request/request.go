package request

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
)

const (
	MediaJPEG = "image/jpeg"
	MediaPNG  = "image/png"

	DefaultGuidanceScale  = 27
	DefaultInferenceSteps = 27
	DefaultAccept         = MediaJPEG
)

const (
	FieldPrompt            = "prompt"
	FieldAspectRatio       = "aspect_ratio"
	FieldGuidanceScale     = "guidance_scale"
	FieldNumInferenceSteps = "num_inference_steps"
	FieldAccept            = "accept"
	FieldSeed              = "seed"
)

// Seed only travels between the studio and this server; backends never see it.
type Request struct {
	Prompt            string  `json:"prompt"`
	NumInferenceSteps float64 `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	AspectRatio       string  `json:"aspect_ratio"`
	Accept            string  `json:"accept"`
	Seed              int64   `json:"seed,omitempty"`
}

type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(lo.Map(e.Violations, func(v Violation, _ int) string {
		return v.Field + ": " + v.Message
	}), "; ")
}

func (e *ValidationError) Fields() []string {
	return lo.Map(e.Violations, func(v Violation, _ int) string { return v.Field })
}

var std = New(DefaultRules()...)

func Parse(body []byte) (Request, error) {
	return std.Parse(body)
}

func Validate(raw map[string]any) (Request, error) {
	return std.Validate(raw)
}

func (v *Validator) Parse(body []byte) (Request, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		msg := "request body must be a JSON object"
		if err != nil {
			msg = err.Error()
		}
		return Request{}, &ValidationError{Violations: []Violation{{Field: "body", Code: CodeInvalidJSON, Message: msg}}}
	}
	return v.Validate(raw)
}

// Settings returns the request as the raw body the validator accepts, so a
// request can be edited and re-submitted by the studio.
func (r Request) Settings() map[string]any {
	m := map[string]any{
		FieldPrompt:            r.Prompt,
		FieldNumInferenceSteps: r.NumInferenceSteps,
		FieldGuidanceScale:     r.GuidanceScale,
		FieldAspectRatio:       r.AspectRatio,
		FieldAccept:            r.Accept,
	}
	if r.Seed != 0 {
		m[FieldSeed] = float64(r.Seed)
	}
	return m
}

func Defaults() Request {
	return Request{
		NumInferenceSteps: DefaultInferenceSteps,
		GuidanceScale:     DefaultGuidanceScale,
		AspectRatio:       "1:1",
		Accept:            DefaultAccept,
	}
}
