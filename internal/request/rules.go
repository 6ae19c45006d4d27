package request

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindEnum
)

const (
	CodeRequired    = "required"
	CodeInvalidType = "invalid_type"
	CodeTooSmall    = "too_small"
	CodeTooBig      = "too_big"
	CodeInvalidEnum = "invalid_enum_value"
	CodeInvalidJSON = "invalid_json"
)

// Rule constrains one body field. For strings Min and Max bound the length in
// runes, for numbers the value itself. A nil Default leaves an absent optional
// field at its zero value.
type Rule struct {
	Field    string
	Kind     Kind
	Required bool
	Min      *float64
	Max      *float64
	OneOf    []string
	Default  any
	Set      func(*Request, any)
}

type Validator struct {
	rules []Rule
}

func New(rules ...Rule) *Validator {
	return &Validator{rules: rules}
}

func (v *Validator) With(extra ...Rule) *Validator {
	rules := append([]Rule(nil), v.rules...)
	for _, r := range extra {
		_, idx, found := lo.FindIndexOf(rules, func(have Rule) bool { return have.Field == r.Field })
		if found {
			rules[idx] = r
		} else {
			rules = append(rules, r)
		}
	}
	return &Validator{rules: rules}
}

// maxSeed keeps seeds exactly representable as float64 and inside int64.
const maxSeed = 1 << 53

func DefaultRules() []Rule {
	return []Rule{
		{
			Field: FieldPrompt, Kind: KindString, Required: true, Min: lo.ToPtr(1.0),
			Set: func(r *Request, v any) { r.Prompt = v.(string) },
		},
		{
			Field: FieldNumInferenceSteps, Kind: KindNumber, Min: lo.ToPtr(0.0), Max: lo.ToPtr(100.0),
			Default: float64(DefaultInferenceSteps),
			Set:     func(r *Request, v any) { r.NumInferenceSteps = v.(float64) },
		},
		{
			Field: FieldGuidanceScale, Kind: KindNumber, Min: lo.ToPtr(0.0), Max: lo.ToPtr(100.0),
			Default: float64(DefaultGuidanceScale),
			Set:     func(r *Request, v any) { r.GuidanceScale = v.(float64) },
		},
		{
			Field: FieldAspectRatio, Kind: KindString, Required: true, Min: lo.ToPtr(1.0),
			Set: func(r *Request, v any) { r.AspectRatio = v.(string) },
		},
		{
			Field: FieldAccept, Kind: KindEnum, OneOf: []string{MediaJPEG, MediaPNG},
			Default: DefaultAccept,
			Set:     func(r *Request, v any) { r.Accept = v.(string) },
		},
		{
			Field: FieldSeed, Kind: KindNumber, Min: lo.ToPtr(float64(-maxSeed)), Max: lo.ToPtr(float64(maxSeed)),
			Set: func(r *Request, v any) { r.Seed = int64(v.(float64)) },
		},
	}
}

// Validate runs every rule against raw and collects all violations before
// failing. Defaults are applied here and nowhere else.
func (v *Validator) Validate(raw map[string]any) (Request, error) {
	var (
		req        Request
		violations []Violation
	)
	for _, rule := range v.rules {
		val, ok := raw[rule.Field]
		if !ok || val == nil {
			if rule.Required {
				violations = append(violations, Violation{rule.Field, CodeRequired, "is required"})
			} else if rule.Default != nil && rule.Set != nil {
				rule.Set(&req, rule.Default)
			}
			continue
		}

		normalized, violation := rule.check(val)
		if violation != nil {
			violations = append(violations, *violation)
			continue
		}
		if rule.Set != nil {
			rule.Set(&req, normalized)
		}
	}
	if len(violations) > 0 {
		return Request{}, &ValidationError{Violations: violations}
	}
	return req, nil
}

func (r Rule) check(val any) (any, *Violation) {
	fail := func(code, msg string) (any, *Violation) {
		return nil, &Violation{Field: r.Field, Code: code, Message: msg}
	}

	switch r.Kind {
	case KindString:
		s, ok := val.(string)
		if !ok {
			return fail(CodeInvalidType, fmt.Sprintf("expected string, received %s", typeName(val)))
		}
		n := float64(utf8.RuneCountInString(s))
		if r.Min != nil && n < *r.Min {
			return fail(CodeTooSmall, fmt.Sprintf("must contain at least %g character(s)", *r.Min))
		}
		if r.Max != nil && n > *r.Max {
			return fail(CodeTooBig, fmt.Sprintf("must contain at most %g character(s)", *r.Max))
		}
		return s, nil

	case KindNumber:
		f, ok := toFloat(val)
		if !ok {
			return fail(CodeInvalidType, fmt.Sprintf("expected number, received %s", typeName(val)))
		}
		if r.Min != nil && f < *r.Min {
			return fail(CodeTooSmall, fmt.Sprintf("must be greater than or equal to %g", *r.Min))
		}
		if r.Max != nil && f > *r.Max {
			return fail(CodeTooBig, fmt.Sprintf("must be less than or equal to %g", *r.Max))
		}
		return f, nil

	case KindEnum:
		s, ok := val.(string)
		if !ok || !lo.Contains(r.OneOf, s) {
			return fail(CodeInvalidEnum, "must be one of "+strings.Join(r.OneOf, ", "))
		}
		return s, nil
	}
	return fail(CodeInvalidType, "unsupported rule kind")
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeName(val any) string {
	switch val.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case float64, float32, int, int64, json.Number:
		return "number"
	}
	return fmt.Sprintf("%T", val)
}
