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
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/wayfare-dev/wayfare/router"
)

// Boundary is the single catch site of §4.8: it converts any failure that
// escapes the composed middleware chain into the fixed wire envelope,
// tagging it with the request's correlation id and emitting a
// "request:failed" log record. The donor's errors/rfc9457.go plays this
// role for the donor router; this Boundary narrows it to the fixed kind
// vocabulary above instead of open RFC 9457 type URIs.
type Boundary struct {
	Logger *slog.Logger
}

// NewBoundary returns a Boundary that logs through logger, or slog.Default
// if logger is nil.
func NewBoundary(logger *slog.Logger) *Boundary {
	if logger == nil {
		logger = slog.Default()
	}
	return &Boundary{Logger: logger}
}

// Handle normalizes err into an *Error, writes it as the JSON response on
// ctx, and logs the request:failed event. It is called from exactly one
// place in the pipeline (C11): the top of the composed handler chain.
func (b *Boundary) Handle(ctx *router.Context, err error) {
	if err == nil || ctx.Response.Sent() {
		return
	}

	herr := b.normalize(err)
	if herr.CorrelationID == "" {
		herr.CorrelationID = ctx.CorrelationID()
	}
	if herr.Timestamp == "" {
		herr.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if len(herr.Allowed) > 0 {
		ctx.Response.Header().Set("Allow", joinMethods(herr.Allowed))
	}
	if herr.RetryAfter > 0 {
		ctx.Response.Header().Set("Retry-After", strconv.Itoa(int(herr.RetryAfter.Seconds())))
	}

	logArgs := []any{
		"type", herr.Type,
		"status", herr.Status,
		"correlationId", herr.CorrelationID,
	}
	if cause := herr.Unwrap(); cause != nil {
		logArgs = append(logArgs, "cause", cause.Error())
	}
	b.Logger.Error("request:failed", logArgs...)

	if sendErr := ctx.Response.SendError(herr.Status, herr); sendErr != nil {
		b.Logger.Error("request:failed: writing error response", "error", sendErr)
	}
}

// normalize converts any error into the fixed envelope. A non-*Error
// failure (a handler panic's recovered value wrapped as an error, an
// unrecognized library error) is demoted to INTERNAL_SERVER_ERROR per §7,
// never surfaced with its original message. The one exception is
// router.ErrNextCalledTwice, which becomes MIDDLEWARE_NEXT_CALLED_TWICE.
func (b *Boundary) normalize(err error) *Error {
	var herr *Error
	if errors.As(err, &herr) {
		return herr
	}
	if errors.Is(err, router.ErrNextCalledTwice) {
		return Wrap(KindNextCalledTwice, err)
	}
	return Internal(err)
}

func joinMethods(methods []string) string {
	out := ""
	for i, m := range methods {
		if i > 0 {
			out += ", "
		}
		out += m
	}
	return out
}
