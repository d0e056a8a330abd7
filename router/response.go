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

package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrAlreadySent is returned by any Send* call once a response has already
// been written, per §3's "second call fails with a programming-error kind".
var ErrAlreadySent = errors.New("router: response already sent")

// ResponseValidationError is returned by SendJSON when the route declares a
// response schema and the handler's payload fails it (§4.7's Post-handler
// step). The pipeline always demotes this to INTERNAL_SERVER_ERROR before
// it reaches the client; Issues exist for the internal log record only
// (§7: "the public body reveals only the sanitized title").
type ResponseValidationError struct {
	Issues []FieldIssue
}

func (e *ResponseValidationError) Error() string {
	return fmt.Sprintf("router: response failed schema validation: %d issue(s)", len(e.Issues))
}

// ResponseWriter wraps http.ResponseWriter with the ResponseView contract
// of §3: a single terminal send, JSON/text/stream helpers, and status
// tracking for logging (C11 step 7).
type ResponseWriter struct {
	http.ResponseWriter
	status int
	sent   bool

	// responseSchema, when set by the pipeline before a handler runs,
	// gates SendJSON on the route's declared response schema (§4.7 Table,
	// Post-handler row). Left nil for routes with no response schema.
	responseSchema Schema
}

func newResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

// Status returns the status code written so far, or 0 if none has been
// written yet.
func (w *ResponseWriter) Status() int {
	return w.status
}

// WriteHeader records the status code before delegating, so Status() is
// accurate for logging even though http.ResponseWriter itself is
// write-only.
func (w *ResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

// Send writes body verbatim with the given status, enforcing the
// exactly-once contract.
func (w *ResponseWriter) Send(status int, body []byte) error {
	if w.sent {
		return ErrAlreadySent
	}
	w.sent = true
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// SetResponseSchema installs the schema SendJSON validates a handler's
// payload against (§4.7). Called by the pipeline controller (C11) before
// invoking a route's handler; never by route authors themselves.
func (w *ResponseWriter) SetResponseSchema(s Schema) {
	w.responseSchema = s
}

// SendJSON marshals v and writes it as application/json. When the route
// declared a response schema, v is validated first (§4.7 Post-handler row);
// a failure returns *ResponseValidationError without writing anything, so
// the boundary (C8) can still send the eventual error response.
func (w *ResponseWriter) SendJSON(status int, v any) error {
	if w.sent {
		return ErrAlreadySent
	}
	if w.responseSchema != nil {
		if _, issues := w.responseSchema.ValidateSection(v); len(issues) > 0 {
			return &ResponseValidationError{Issues: issues}
		}
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.sent = true
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// SendError writes v as application/json without response-schema
// validation. It exists solely for the error boundary (C8): an error
// envelope is never a route's declared response shape, so it must bypass
// SendJSON's schema gate.
func (w *ResponseWriter) SendError(status int, v any) error {
	if w.sent {
		return ErrAlreadySent
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.sent = true
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// SendText writes s as text/plain.
func (w *ResponseWriter) SendText(status int, s string) error {
	if w.sent {
		return ErrAlreadySent
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.sent = true
	w.WriteHeader(status)
	_, err := w.Write([]byte(s))
	return err
}

// SendStream copies r to the response body, marking the response sent
// before the first byte so concurrent short-circuit attempts fail fast.
func (w *ResponseWriter) SendStream(status int, r io.Reader) error {
	if w.sent {
		return ErrAlreadySent
	}
	w.sent = true
	w.WriteHeader(status)
	_, err := io.Copy(w, r)
	return err
}

// Sent reports whether a terminal send has already happened.
func (w *ResponseWriter) Sent() bool {
	return w.sent
}
