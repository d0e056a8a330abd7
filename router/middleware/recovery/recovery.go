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

// Package recovery implements the panic-to-error translation that keeps a
// single misbehaving handler from taking down the listener: it recovers
// any panic raised further down the composed chain and turns it into a
// normal *httperr.Error return, so it reaches the pipeline boundary (C8)
// exactly like any other handler failure.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/wayfare-dev/wayfare/httperr"
	"github.com/wayfare-dev/wayfare/router"
)

// Options configures the recovery middleware.
type Options struct {
	// Logger receives the panic value and stack trace. Defaults to
	// slog.Default.
	Logger *slog.Logger
	// StackSize bounds the captured stack trace. Defaults to 4KB.
	StackSize int
}

func defaultOptions() Options {
	return Options{
		Logger:    slog.Default(),
		StackSize: 4 << 10,
	}
}

// New returns the recovery middleware. It should be registered first (or
// very early) in the chain so it wraps every middleware registered after
// it.
func New(opts Options) router.Middleware {
	cfg := defaultOptions()
	if opts.Logger != nil {
		cfg.Logger = opts.Logger
	}
	if opts.StackSize != 0 {
		cfg.StackSize = opts.StackSize
	}

	return router.Middleware{
		Name: "recovery",
		Handler: func(ctx *router.Context, next router.NextFunc) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					if len(stack) > cfg.StackSize {
						stack = stack[:cfg.StackSize]
					}
					cfg.Logger.Error("recovered panic",
						"error", fmt.Sprintf("%v", r),
						"correlationId", ctx.CorrelationID(),
						"stack", string(stack),
					)
					err = httperr.Wrap(httperr.KindInternal, fmt.Errorf("panic: %v", r))
				}
			}()

			return next()
		},
	}
}
