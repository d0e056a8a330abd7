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

package wayfare

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wayfare-dev/wayfare/httperr"
	"github.com/wayfare-dev/wayfare/router"
)

// maxCorrelationIDLen bounds an inbound correlation header value, mirroring
// router/middleware/requestid's own acceptance rule (§4.5).
const maxCorrelationIDLen = 128

// pipeline is the request pipeline controller (C11): it wires the matcher
// (C2), context/correlation (C5), middleware composer (C6), schema gate
// (C7), error boundary (C8), and body intake (C12) into a single
// http.Handler.
type pipeline struct {
	tree       *router.Tree
	pool       *router.ContextPool
	boundary   *httperr.Boundary
	middleware []router.Middleware

	correlationHeader    string
	correlationGenerator func() string

	bodyLimits      bodyLimits
	multipartLimits multipartLimits

	// services, when set, supplies the server-wide plugin-installed
	// services merged onto every request's ctx.Services map (§3/§4.9
	// "SetService installs a value reachable from every request").
	services func() map[string]any

	onComplete func(method, path string, status int, duration time.Duration, correlationID string)
}

func (p *pipeline) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	ctx := p.pool.Acquire(w, req)
	defer p.pool.Release(ctx)

	if p.services != nil {
		for k, v := range p.services() {
			ctx.Services[k] = v
		}
	}

	p.installCorrelation(ctx)

	result := p.tree.Match(router.Method(req.Method), req.URL.Path)

	var (
		err        error
		routePath  = req.URL.Path
		methodName = req.Method
	)

	// Global middleware runs even when no route matched: the routing
	// failure becomes the terminal handler's error, so CORS can still
	// short-circuit an OPTIONS preflight (§4.13) and the access log still
	// observes 404/405 responses.
	chain := p.middleware
	var handler router.HandlerFunc

	switch result.Status {
	case router.StatusNotFound:
		handler = func(*router.Context) error { return httperr.New(httperr.KindNotFound) }
	case router.StatusMethodNotAllowed:
		allowed := make([]string, 0, len(result.Allowed))
		for _, m := range result.Allowed {
			allowed = append(allowed, string(m))
		}
		handler = func(*router.Context) error {
			return httperr.New(httperr.KindMethodNotAllowed).WithAllowed(allowed)
		}
	default:
		routePath = result.RoutePath
		for k, v := range result.Params {
			ctx.Params[k] = v
		}

		merged := make([]router.Middleware, 0, len(p.middleware)+len(result.Method.Middleware))
		merged = append(merged, p.middleware...)
		merged = append(merged, result.Method.Middleware...)
		chain = merged
		handler = p.terminalHandler(result.Method)
	}

	err = router.Compose(chain, handler)(ctx)

	if err != nil && !ctx.Response.Sent() {
		p.boundary.Handle(ctx, err)
	}

	if p.onComplete != nil {
		p.onComplete(methodName, routePath, ctx.Response.Status(), time.Since(start), ctx.CorrelationID())
	}
}

// installCorrelation implements §4.11 step 1: resolve (or generate) the
// correlation id and install it on ctx before matching happens, so even a
// 404/405 response carries one.
func (p *pipeline) installCorrelation(ctx *router.Context) {
	id := sanitizeCorrelationHeader(ctx.Request.Header.Get(p.correlationHeader))
	if id == "" {
		id = p.correlationGenerator()
	}
	ctx.SetCorrelationID(id)
	ctx.Response.Header().Set(p.correlationHeader, id)
}

func sanitizeCorrelationHeader(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxCorrelationIDLen {
		return ""
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return ""
		}
	}
	return id
}

// terminalHandler builds the §4.11 step 5 shim: validate params/query,
// decode+validate the body, invoke the route handler, validate the
// response, and write it.
func (p *pipeline) terminalHandler(rm *router.RouteMethod) router.HandlerFunc {
	return func(ctx *router.Context) error {
		if rm.Schema.Params != nil {
			if err := validateSection(rm.Schema.Params, "params", map[string]string(ctx.Params)); err != nil {
				return err
			}
		}
		if rm.Schema.Query != nil {
			if err := validateSection(rm.Schema.Query, "query", map[string][]string(ctx.Query())); err != nil {
				return err
			}
		}

		if acceptsBody(router.Method(ctx.Request.Method)) && ctx.Request.Body != nil && ctx.Request.ContentLength != 0 {
			if err := p.intakeBody(ctx, rm); err != nil {
				return err
			}
		}

		if rm.Schema.Response != nil {
			ctx.Response.SetResponseSchema(rm.Schema.Response)
		}

		if err := rm.Handler(ctx); err != nil {
			return translateResponseValidation(err)
		}

		return nil
	}
}

// translateResponseValidation implements §4.7's Post-handler row and §9's
// resolved open question: a response-schema failure is never sent to the
// client as-is. It is demoted to INTERNAL_SERVER_ERROR, with the real
// field issues attached only for the boundary's internal log record.
func translateResponseValidation(err error) error {
	var rverr *router.ResponseValidationError
	if errors.As(err, &rverr) {
		// §7: "the public body reveals only the sanitized title" — the
		// field issues travel with the wrapped cause for the boundary's
		// internal log record (httperr.Internal), never as public Details.
		return httperr.Internal(err)
	}
	return err
}

func acceptsBody(m router.Method) bool {
	switch m {
	case router.POST, router.PUT, router.PATCH, router.DELETE:
		return true
	default:
		return false
	}
}

// intakeBody implements §4.11 step 5b + C12: it decodes the body per
// content type (or multipart, if declared) respecting configured limits,
// validates it against the route's body schema when present, and stores
// the decoded value on ctx.State for the handler to read.
func (p *pipeline) intakeBody(ctx *router.Context, rm *router.RouteMethod) error {
	contentType := ctx.Request.Header.Get("Content-Type")

	if strings.HasPrefix(strings.ToLower(contentType), "multipart/form-data") {
		form, err := decodeMultipart(contentType, ctx.Request.Body, StrategyMemory, p.multipartLimits)
		if err != nil {
			return err
		}
		ctx.State["multipart"] = form
		if rm.Schema.Body != nil {
			return validateSection(rm.Schema.Body, "body", form)
		}
		return nil
	}

	decoded, err := decodeBody(contentType, ctx.Request.Body, p.bodyLimits)
	if err != nil {
		return err
	}
	ctx.State["body"] = decoded.value

	if rm.Schema.Body != nil {
		return validateSection(rm.Schema.Body, "body", decoded.value)
	}
	return nil
}

// validateSection runs one schema against raw and, on failure, raises the
// §4.7 VALIDATION_ERROR with the section name attached.
func validateSection(schema router.Schema, section string, raw any) error {
	_, issues := schema.ValidateSection(raw)
	if len(issues) == 0 {
		return nil
	}
	fields := make([]httperr.FieldIssue, len(issues))
	for i, issue := range issues {
		fields[i] = httperr.FieldIssue(issue)
	}
	return httperr.Validation(section, fields)
}
