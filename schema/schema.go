// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wayfare-dev/wayfare/router"
)

// Issue is a field-level validation failure, the schema package's view of
// router.FieldIssue before it is attached to an httperr.Error.
type Issue = router.FieldIssue

// Schema validates one section of a request or response (§4.7, §9): Parse
// takes the raw decoded value (a map[string]any from JSON, url.Values from a
// query string or form body) and returns either a typed value or a list of
// field issues. T is the route author's own struct type.
type Schema[T any] interface {
	Parse(raw any) (T, []Issue)
}

// adapter wraps a Schema[T] so it satisfies router.Schema, letting the
// pipeline (C11) hold a slice of RouteSchema without any generic parameter
// of its own.
type adapter[T any] struct {
	inner Schema[T]
}

// ValidateSection implements router.Schema.
func (a adapter[T]) ValidateSection(raw any) (any, []router.FieldIssue) {
	v, issues := a.inner.Parse(raw)
	if len(issues) > 0 {
		return nil, issues
	}
	return v, nil
}

// Adapt lifts a Schema[T] into the router.Schema interface the pipeline
// consumes. Route constructors call this once per section when building a
// router.RouteSchema.
func Adapt[T any](s Schema[T]) router.Schema {
	return adapter[T]{inner: s}
}

// structSchema is the default Schema[T] implementation (§4.7): it drives
// go-playground/validator over T's `validate` struct tags, the same
// collaborator the donor's validation package wraps, but narrowed to the
// single struct-tag strategy this spec calls for.
type structSchema[T any] struct {
	name string
}

var (
	tagValidator     *validator.Validate
	tagValidatorOnce sync.Once
)

// sharedValidator returns the process-wide *validator.Validate instance,
// configured once to report JSON field names instead of Go struct field
// names in error messages — the same RegisterTagNameFunc trick the donor's
// validation package uses.
func sharedValidator() *validator.Validate {
	tagValidatorOnce.Do(func() {
		tagValidator = validator.New(validator.WithRequiredStructEnabled())
		tagValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "-" {
				return ""
			}
			if idx := strings.Index(name, ","); idx != -1 {
				name = name[:idx]
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return tagValidator
}

// FromStruct returns the default struct-tag-driven Schema[T] (§4.7's
// "schema.FromStruct[T]" adapter referenced by SPEC_FULL §4.7). name, when
// non-empty, is surfaced as Details.SchemaName on validation failures.
func FromStruct[T any](name string) Schema[T] {
	return &structSchema[T]{name: name}
}

// Parse projects raw into a T and validates it via struct tags. raw may be
// a map[string]any (decoded JSON body), url.Values (query string), or a
// map[string]string (path params); all three round-trip through
// encoding/json so the same struct-tag-driven path handles each section
// uniformly, matching §4.7's "coerced per schema" wording for query/params.
func (s *structSchema[T]) Parse(raw any) (T, []Issue) {
	var out T

	coerced, err := coerce(raw)
	if err != nil {
		return out, []Issue{{
			Field:        "",
			Messages:     []string{fmt.Sprintf("malformed input: %v", err)},
			ExpectedType: reflect.TypeOf(out).String(),
		}}
	}

	if err := json.Unmarshal(coerced, &out); err != nil {
		field := ""
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field = typeErr.Field
		}
		return out, []Issue{{
			Field:        field,
			Messages:     []string{fmt.Sprintf("type mismatch: %v", err)},
			ExpectedType: reflect.TypeOf(out).String(),
		}}
	}

	if err := sharedValidator().Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			return out, fieldIssuesFrom(verrs, out)
		}
		return out, []Issue{{Messages: []string{err.Error()}}}
	}

	return out, nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		*target = verrs
		return true
	}
	return false
}

// coerce normalizes the handful of shapes C11 feeds a Schema into raw JSON
// bytes so a single json.Unmarshal path can populate T regardless of
// whether the section was params (map[string]string), query
// (url.Values/map[string][]string), or an already-decoded body
// (map[string]any).
func coerce(raw any) ([]byte, error) {
	if values, ok := raw.(url.Values); ok {
		raw = map[string][]string(values)
	}
	switch v := raw.(type) {
	case map[string][]string:
		flat := make(map[string]any, len(v))
		for k, vals := range v {
			if len(vals) == 1 {
				flat[k] = vals[0]
			} else {
				flat[k] = vals
			}
		}
		return json.Marshal(flat)
	default:
		return json.Marshal(v)
	}
}

// fieldIssuesFrom converts go-playground/validator's ValidationErrors into
// the §4.7 FieldIssue shape, one issue per offending field (multiple tag
// failures on the same field are merged into one issue's Messages).
func fieldIssuesFrom(verrs validator.ValidationErrors, out any) []Issue {
	byField := map[string]*Issue{}
	order := make([]string, 0, len(verrs))

	for _, fe := range verrs {
		field := fe.Field()
		issue, ok := byField[field]
		if !ok {
			issue = &Issue{
				Field:        field,
				ExpectedType: fe.Type().String(),
			}
			byField[field] = issue
			order = append(order, field)
		}
		issue.Messages = append(issue.Messages, humanizeTag(fe))
		if issue.RejectedValue == nil {
			issue.RejectedValue = fe.Value()
		}
	}

	out2 := make([]Issue, 0, len(order))
	for _, field := range order {
		out2 = append(out2, *byField[field])
	}
	return out2
}

// humanizeTag renders one go-playground/validator FieldError as a short
// human-readable message, the same "tag + param" shape the donor's tags.go
// produces for its own messages, narrowed to the common tags this spec's
// routes are expected to use.
func humanizeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
