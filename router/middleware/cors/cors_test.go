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

package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfare-dev/wayfare/router"
)

func runCORS(t *testing.T, opts Options, method, origin string) (*router.Context, *httptest.ResponseRecorder, bool) {
	t.Helper()
	pool := router.NewContextPool()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/x", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	ctx := pool.Acquire(rec, req)

	var handlerRan bool
	chain := router.Compose([]router.Middleware{New(opts)}, func(*router.Context) error {
		handlerRan = true
		return nil
	})
	require.NoError(t, chain(ctx))
	return ctx, rec, handlerRan
}

func TestCORS_NoOriginHeaderPassesThroughUntouched(t *testing.T) {
	_, rec, ran := runCORS(t, Options{AllowAllOrigins: true}, http.MethodGet, "")
	assert.True(t, ran)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisallowedOriginSkipsHeaders(t *testing.T) {
	_, rec, ran := runCORS(t, Options{AllowedOrigins: []string{"https://allowed.example"}}, http.MethodGet, "https://evil.example")
	assert.True(t, ran)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowedOriginIsEchoed(t *testing.T) {
	_, rec, ran := runCORS(t, Options{AllowedOrigins: []string{"https://allowed.example"}}, http.MethodGet, "https://allowed.example")
	assert.True(t, ran)
	assert.Equal(t, "https://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardWithCredentialsEchoesSpecificOrigin(t *testing.T) {
	_, rec, _ := runCORS(t, Options{AllowAllOrigins: true, AllowCredentials: true}, http.MethodGet, "https://caller.example")
	assert.Equal(t, "https://caller.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_PreflightShortCircuitsWith204(t *testing.T) {
	_, rec, ran := runCORS(t, Options{AllowAllOrigins: true}, http.MethodOptions, "https://caller.example")
	assert.False(t, ran)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Headers"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_AllowOriginFunc(t *testing.T) {
	opts := Options{AllowOriginFunc: func(origin string) bool { return origin == "https://special.example" }}
	_, rec, _ := runCORS(t, opts, http.MethodGet, "https://special.example")
	assert.Equal(t, "https://special.example", rec.Header().Get("Access-Control-Allow-Origin"))

	_, rec2, _ := runCORS(t, opts, http.MethodGet, "https://other.example")
	assert.Empty(t, rec2.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ExposedHeadersSet(t *testing.T) {
	opts := Options{AllowAllOrigins: true, ExposedHeaders: []string{"X-Custom"}}
	_, rec, _ := runCORS(t, opts, http.MethodGet, "https://caller.example")
	assert.Equal(t, "X-Custom", rec.Header().Get("Access-Control-Expose-Headers"))
}
