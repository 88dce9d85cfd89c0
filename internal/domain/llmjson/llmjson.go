// Package llmjson turns free-form model output into validated Go values.
// Every model response is treated as untrusted text until Decode and Validate succeed.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrMalformed signals text that is not a single JSON object.
var ErrMalformed = errors.New("malformed model output")

// StripFences removes a surrounding Markdown code fence (``` or ```json).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// language tag on the opening line
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Decode strips fences, isolates the outermost JSON object and unmarshals it into v.
func Decode(text string, v any) error {
	body := StripFences(text)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}

	dec := json.NewDecoder(strings.NewReader(body[start : end+1]))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names so errors match what the model produced.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate runs struct tag validation and flattens failures into one readable string.
func Validate(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:] // drop the root type name
		}
		parts = append(parts, fmt.Sprintf("%s: %s", ns, fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}
