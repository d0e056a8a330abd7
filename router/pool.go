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
	"net/http"
	"sync"
)

// ContextPool recycles *Context values across requests to keep the hot path
// allocation-free, the same tradeoff the donor router makes for its own
// per-request Context.
type ContextPool struct {
	pool sync.Pool
}

// NewContextPool returns a ready-to-use pool.
func NewContextPool() *ContextPool {
	return &ContextPool{
		pool: sync.Pool{
			New: func() any {
				return &Context{
					Params:   make(map[string]string, 4),
					State:    make(map[string]any, 4),
					Services: make(map[string]any, 2),
				}
			},
		},
	}
}

// Acquire returns a Context wired to req/w, either fresh from the pool or
// newly allocated.
func (p *ContextPool) Acquire(w http.ResponseWriter, req *http.Request) *Context {
	ctx := p.pool.Get().(*Context)
	ctx.Request = req
	ctx.Response = newResponseWriter(w)
	return ctx
}

// Release resets ctx and returns it to the pool. Callers must not use ctx
// after calling Release (§3: "destroyed when the response writer is fully
// flushed").
func (p *ContextPool) Release(ctx *Context) {
	ctx.reset()
	p.pool.Put(ctx)
}
