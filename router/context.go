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
	"context"
	"net/http"
)

type correlationKey struct{}

// Context is the per-request value described in §3: request, response,
// mutable state/services maps, and the correlation id, all reachable
// without explicit parameter plumbing once a handler has *Context in hand.
//
// THREAD SAFETY: a Context is bound to the goroutine serving one request.
// Do not retain it, and do not access it from another goroutine — copy out
// the values you need first.
//
// Contexts are pooled (see pool.go); the router resets and returns them to
// the pool once the response has been fully written.
type Context struct {
	Request  *http.Request
	Response *ResponseWriter

	Params   map[string]string
	State    map[string]any
	Services map[string]any

	correlationID string
}

// reset clears a Context for reuse from the pool. It does not touch Params/
// State/Services capacity so the backing maps can be reused across requests.
func (c *Context) reset() {
	c.Request = nil
	c.Response = nil
	for k := range c.Params {
		delete(c.Params, k)
	}
	for k := range c.State {
		delete(c.State, k)
	}
	for k := range c.Services {
		delete(c.Services, k)
	}
	c.correlationID = ""
}

// Param returns the value of a path parameter extracted by the matcher, or
// "" if it was not present.
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// CorrelationID returns the id derived for this request (§4.5).
func (c *Context) CorrelationID() string {
	return c.correlationID
}

// SetCorrelationID installs the id for this request and mirrors it onto the
// request's context.Context so CorrelationIDFromContext works for code that
// only has a context.Context, not the full *Context.
func (c *Context) SetCorrelationID(id string) {
	c.correlationID = id
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), correlationKey{}, id))
}

// CorrelationIDFromContext retrieves the correlation id installed by
// SetCorrelationID from a bare context.Context, implementing §4.5's
// "retrievable without explicit parameter passing" requirement for code
// that only receives the request's context.Context (plugin-provided
// services, downstream clients, log handlers).
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}
