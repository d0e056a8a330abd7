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
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextPool_AcquireWiresRequestAndResponse(t *testing.T) {
	pool := NewContextPool()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)

	ctx := pool.Acquire(rec, req)
	require.NotNil(t, ctx)
	assert.Same(t, req, ctx.Request)
	require.NotNil(t, ctx.Response)
	assert.NotNil(t, ctx.Params)
	assert.NotNil(t, ctx.State)
	assert.NotNil(t, ctx.Services)
}

func TestContextPool_ReleaseClearsValuesButKeepsMapCapacity(t *testing.T) {
	pool := NewContextPool()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)

	ctx := pool.Acquire(rec, req)
	ctx.Params["id"] = "42"
	ctx.State["k"] = "v"
	ctx.Services["svc"] = struct{}{}
	ctx.SetCorrelationID("abc")

	pool.Release(ctx)

	assert.Empty(t, ctx.Params)
	assert.Empty(t, ctx.State)
	assert.Empty(t, ctx.Services)
	assert.Equal(t, "", ctx.CorrelationID())
	assert.Nil(t, ctx.Request)
	assert.Nil(t, ctx.Response)
}

func TestContextPool_RecycledContextIsReusable(t *testing.T) {
	pool := NewContextPool()

	rec1 := httptest.NewRecorder()
	req1 := httptest.NewRequest("GET", "/first", nil)
	first := pool.Acquire(rec1, req1)
	first.Params["id"] = "1"
	pool.Release(first)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "/second", nil)
	second := pool.Acquire(rec2, req2)

	assert.Same(t, req2, second.Request)
	assert.Empty(t, second.Params)
}
