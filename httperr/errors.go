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

package httperr

import (
	"fmt"
	"net/http"
	"time"
)

// Kind identifies one of the fixed error categories of §4.8. Unlike RFC 9457
// "type" URIs, kinds here are a closed, uppercase-snake vocabulary — the
// donor's open type-URI scheme is intentionally narrowed.
type Kind string

const (
	KindValidation           Kind = "VALIDATION_ERROR"
	KindUnauthorized         Kind = "UNAUTHORIZED"
	KindForbidden            Kind = "FORBIDDEN"
	KindNotFound             Kind = "NOT_FOUND"
	KindMethodNotAllowed     Kind = "METHOD_NOT_ALLOWED"
	KindRequestTimeout       Kind = "REQUEST_TIMEOUT"
	KindConflict             Kind = "CONFLICT"
	KindPayloadTooLarge      Kind = "PAYLOAD_TOO_LARGE"
	KindUnsupportedMediaType Kind = "UNSUPPORTED_MEDIA_TYPE"
	KindUnprocessableEntity  Kind = "UNPROCESSABLE_ENTITY"
	KindRateLimited          Kind = "RATE_LIMITED"
	KindInternal             Kind = "INTERNAL_SERVER_ERROR"
	KindServiceUnavailable   Kind = "SERVICE_UNAVAILABLE"

	// KindNextCalledTwice is a programming error (§4.6), not a client-facing
	// HTTP condition, but it still flows through the same boundary and is
	// reported under this type with status 500.
	KindNextCalledTwice Kind = "MIDDLEWARE_NEXT_CALLED_TWICE"
)

// defaultTitles mirrors the "(status, default title)" table in §4.8.
var defaultTitles = map[Kind]struct {
	status int
	title  string
}{
	KindValidation:           {http.StatusBadRequest, "Validation failed"},
	KindUnauthorized:         {http.StatusUnauthorized, "Unauthorized"},
	KindForbidden:            {http.StatusForbidden, "Forbidden"},
	KindNotFound:             {http.StatusNotFound, "Not found"},
	KindMethodNotAllowed:     {http.StatusMethodNotAllowed, "Method not allowed"},
	KindRequestTimeout:       {http.StatusRequestTimeout, "Request timeout"},
	KindConflict:             {http.StatusConflict, "Conflict"},
	KindPayloadTooLarge:      {http.StatusRequestEntityTooLarge, "Payload too large"},
	KindUnsupportedMediaType: {http.StatusUnsupportedMediaType, "Unsupported media type"},
	KindUnprocessableEntity:  {http.StatusUnprocessableEntity, "Unprocessable entity"},
	KindRateLimited:          {http.StatusTooManyRequests, "Too many requests"},
	KindInternal:             {http.StatusInternalServerError, "Internal server error"},
	KindServiceUnavailable:   {http.StatusServiceUnavailable, "Service unavailable"},
	KindNextCalledTwice:      {http.StatusInternalServerError, "Internal server error"},
}

// FieldIssue is one entry of a ValidationError's details.fields array.
type FieldIssue struct {
	Field         string   `json:"field"`
	Messages      []string `json:"messages"`
	RejectedValue any      `json:"rejectedValue,omitempty"`
	ExpectedType  string   `json:"expectedType,omitempty"`
}

// Details is the structured payload carried by validation errors, per §4.7.
type Details struct {
	Fields     []FieldIssue `json:"fields,omitempty"`
	ErrorCount int          `json:"errorCount,omitempty"`
	Section    string       `json:"section,omitempty"`
	SchemaName string       `json:"schemaName,omitempty"`
}

// Error is the fixed envelope of §4.8:
//
//	{ type, title, status, correlationId, timestamp, details? }
//
// It implements the standard error interface so it can travel unmodified
// through the composed middleware chain (§4.6) to the boundary (§4.8).
type Error struct {
	Type          Kind     `json:"type"`
	Title         string   `json:"title"`
	Status        int      `json:"status"`
	CorrelationID string   `json:"correlationId"`
	Timestamp     string   `json:"timestamp"`
	Details       *Details `json:"details,omitempty"`

	// RetryAfter, when non-zero, is rendered as a Retry-After response
	// header for RATE_LIMITED and SERVICE_UNAVAILABLE (§4.8).
	RetryAfter time.Duration `json:"-"`
	// Allowed, when non-empty, is rendered as the Allow response header
	// for METHOD_NOT_ALLOWED (§3 ResponseView, §4.8).
	Allowed []string `json:"-"`

	// cause is the original, possibly non-Error, failure this Error wraps.
	// It is never serialized — only the sanitized title reaches the wire.
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("httperr: %s: %s: %v", e.Type, e.Title, e.cause)
	}
	return fmt.Sprintf("httperr: %s: %s", e.Type, e.Title)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an Error of kind with its default title and status. The
// correlation id and timestamp are left empty; the boundary fills them in
// when the error reaches it without one (§4.8).
func New(kind Kind) *Error {
	d := defaultTitles[kind]
	if d.status == 0 {
		d.status, d.title = http.StatusInternalServerError, "Internal server error"
	}
	return &Error{Type: kind, Title: d.title, Status: d.status}
}

// Wrap builds an Error of kind that also records cause for logging; cause
// itself is never serialized to the client.
func Wrap(kind Kind, cause error) *Error {
	e := New(kind)
	e.cause = cause
	return e
}

// WithDetails attaches a details payload and returns e for chaining.
func (e *Error) WithDetails(d *Details) *Error {
	e.Details = d
	return e
}

// WithTitle overrides the default title and returns e for chaining.
func (e *Error) WithTitle(title string) *Error {
	e.Title = title
	return e
}

// WithRetryAfter sets the Retry-After duration and returns e for chaining.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// WithAllowed sets the Allow header's method list (METHOD_NOT_ALLOWED) and
// returns e for chaining.
func (e *Error) WithAllowed(methods []string) *Error {
	e.Allowed = methods
	return e
}

// Validation is a convenience constructor for the common §4.7 case: a
// single-section validation failure.
func Validation(section string, fields []FieldIssue) *Error {
	return New(KindValidation).WithDetails(&Details{
		Fields:     fields,
		ErrorCount: len(fields),
		Section:    section,
	})
}

// Internal wraps cause as an INTERNAL_SERVER_ERROR, the mandatory fate of
// response-validation failures and any other uncategorized failure (§4.7,
// §7: "demoted to INTERNAL_SERVER_ERROR ... public body reveals only the
// sanitized title").
func Internal(cause error) *Error {
	return Wrap(KindInternal, cause)
}
