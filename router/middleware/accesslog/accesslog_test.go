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

package accesslog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfare-dev/wayfare/router"
)

func runRequest(t *testing.T, path string, status int, opts ...Option) (*bytes.Buffer, *router.Context) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	pool := router.NewContextPool()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	ctx := pool.Acquire(rec, req)
	ctx.SetCorrelationID("corr-1")

	mw := New(append([]Option{WithLogger(logger)}, opts...)...)
	chain := router.Compose([]router.Middleware{mw}, func(c *router.Context) error {
		return c.Response.Send(status, nil)
	})
	require.NoError(t, chain(ctx))
	return &buf, ctx
}

func TestAccessLog_LogsRequestFields(t *testing.T) {
	buf, _ := runRequest(t, "/widgets", 201)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "http request", rec["msg"])
	assert.Equal(t, "GET", rec["method"])
	assert.Equal(t, "/widgets", rec["path"])
	assert.Equal(t, float64(201), rec["status"])
	assert.Equal(t, "corr-1", rec["requestId"])
}

func TestAccessLog_LevelEscalatesWithStatus(t *testing.T) {
	buf, _ := runRequest(t, "/x", 500)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)

	buf, _ = runRequest(t, "/x", 404)
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	buf, _ = runRequest(t, "/x", 200)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestAccessLog_ExcludesExactPath(t *testing.T) {
	buf, _ := runRequest(t, "/health", 200, WithExcludePaths("/health"))
	assert.Empty(t, strings.TrimSpace(buf.String()))
}

func TestAccessLog_ExcludesPrefix(t *testing.T) {
	buf, _ := runRequest(t, "/metrics/cpu", 200, WithExcludePrefixes("/metrics"))
	assert.Empty(t, strings.TrimSpace(buf.String()))
}

func TestAccessLog_ZeroSampleRateStillLogsEverything(t *testing.T) {
	// SampleRate <= 0 is treated as "unset" (log everything), not "never".
	buf, _ := runRequest(t, "/x", 200, WithSampleRate(0))
	assert.NotEmpty(t, strings.TrimSpace(buf.String()))
}

func TestAccessLog_CustomRequestIDFunc(t *testing.T) {
	buf, _ := runRequest(t, "/x", 200, WithRequestIDFunc(func(*router.Context) string { return "custom-id" }))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "custom-id", rec["requestId"])
}
