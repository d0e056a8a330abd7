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

import "errors"

// ErrNextCalledTwice is the programming error raised when a middleware
// invokes next() more than once (§4.6).
var ErrNextCalledTwice = errors.New("router: MIDDLEWARE_NEXT_CALLED_TWICE")

// Compose builds the single chained handler described in §4.6:
//
//	pipeline(ctx) = m1(ctx, () => m2(ctx, () => … mn(ctx, () => handler(ctx)) …))
//
// Each middleware may call next at most once; a Skip predicate bypasses a
// middleware as if it were absent from the chain.
func Compose(middlewares []Middleware, handler HandlerFunc) HandlerFunc {
	return func(ctx *Context) error {
		return runChain(middlewares, 0, ctx, handler)
	}
}

func runChain(middlewares []Middleware, i int, ctx *Context, handler HandlerFunc) error {
	if i >= len(middlewares) {
		return handler(ctx)
	}

	mw := middlewares[i]
	if mw.Skip != nil && mw.Skip(ctx) {
		return runChain(middlewares, i+1, ctx, handler)
	}

	called := false
	next := func() error {
		if called {
			return ErrNextCalledTwice
		}
		called = true
		return runChain(middlewares, i+1, ctx, handler)
	}

	return mw.Handler(ctx, next)
}
