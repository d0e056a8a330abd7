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

package requestid

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfare-dev/wayfare/router"
)

func runWithHeader(t *testing.T, opts Options, headerValue string) (*router.Context, *httptest.ResponseRecorder) {
	t.Helper()
	pool := router.NewContextPool()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	if headerValue != "" {
		name := opts.HeaderName
		if name == "" {
			name = "X-Correlation-Id"
		}
		req.Header.Set(name, headerValue)
	}
	ctx := pool.Acquire(rec, req)

	chain := router.Compose([]router.Middleware{New(opts)}, func(*router.Context) error { return nil })
	require.NoError(t, chain(ctx))
	return ctx, rec
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	ctx, rec := runWithHeader(t, Options{}, "")
	assert.NotEmpty(t, ctx.CorrelationID())
	assert.Equal(t, ctx.CorrelationID(), rec.Header().Get("X-Correlation-Id"))
}

func TestRequestID_AcceptsValidInboundID(t *testing.T) {
	ctx, rec := runWithHeader(t, Options{}, "client-supplied-id")
	assert.Equal(t, "client-supplied-id", ctx.CorrelationID())
	assert.Equal(t, "client-supplied-id", rec.Header().Get("X-Correlation-Id"))
}

func TestRequestID_RejectsOversizedInboundID(t *testing.T) {
	huge := make([]byte, 200)
	for i := range huge {
		huge[i] = 'a'
	}
	ctx, _ := runWithHeader(t, Options{}, string(huge))
	assert.NotEqual(t, string(huge), ctx.CorrelationID())
	assert.NotEmpty(t, ctx.CorrelationID())
}

func TestRequestID_RejectsControlCharacters(t *testing.T) {
	ctx, _ := runWithHeader(t, Options{}, "bad\x01id")
	assert.NotEqual(t, "bad\x01id", ctx.CorrelationID())
}

func TestRequestID_DisallowClientIDAlwaysGenerates(t *testing.T) {
	ctx, _ := runWithHeader(t, Options{AllowClientID: false}, "client-supplied-id")
	assert.NotEqual(t, "client-supplied-id", ctx.CorrelationID())
}

func TestRequestID_CustomHeaderName(t *testing.T) {
	ctx, rec := runWithHeader(t, Options{HeaderName: "X-Trace-Id"}, "trace-123")
	assert.Equal(t, "trace-123", ctx.CorrelationID())
	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-Id"))
}

func TestRequestID_CustomGenerator(t *testing.T) {
	ctx, _ := runWithHeader(t, Options{Generator: func() string { return "fixed-id" }}, "")
	assert.Equal(t, "fixed-id", ctx.CorrelationID())
}
