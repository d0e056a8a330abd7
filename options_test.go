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
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wayfare-dev/wayfare/router"
	"github.com/wayfare-dev/wayfare/router/middleware/cors"
)

func TestDefaultConfig_Baseline(t *testing.T) {
	c := defaultConfig()
	assert.Equal(t, 3000, c.port)
	assert.Equal(t, "localhost", c.host)
	assert.True(t, c.http2Enabled)
	assert.Equal(t, "X-Correlation-Id", c.correlationHeader)
	assert.Equal(t, defaultBodyLimits(), c.bodyLimits)
	assert.Equal(t, defaultMultipartLimits(), c.multipartLimits)
	assert.True(t, c.pluginErrorPolicy.ContinueOnError)
	assert.False(t, c.corsSet)
}

func TestConfig_ValidateRejectsBadPort(t *testing.T) {
	c := defaultConfig()
	c.routesDir = "routes"
	c.port = -1
	assert.Error(t, c.validate())

	c.port = 70000
	assert.Error(t, c.validate())

	c.port = 8080
	assert.NoError(t, c.validate())
}

func TestConfig_ValidateRequiresRoutesDir(t *testing.T) {
	c := defaultConfig()
	assert.Error(t, c.validate())

	c.routesDir = "routes"
	assert.NoError(t, c.validate())
}

func TestConfig_ValidateRequiresTLSInProductionWithHTTP2(t *testing.T) {
	c := defaultConfig()
	c.routesDir = "routes"
	c.environment = EnvProduction
	c.http2Enabled = true

	assert.Error(t, c.validate())

	c.certFile, c.keyFile = "cert.pem", "key.pem"
	assert.NoError(t, c.validate())
}

func TestConfig_ValidateAllowsNoTLSWhenHTTP2Disabled(t *testing.T) {
	c := defaultConfig()
	c.routesDir = "routes"
	c.environment = EnvProduction
	c.http2Enabled = false

	assert.NoError(t, c.validate())
}

func TestOption_Setters(t *testing.T) {
	mw := router.Middleware{Name: "noop", Handler: func(ctx *router.Context, next router.NextFunc) error { return next() }}
	plug := recordingPlugin("p", new([]string))

	c := defaultConfig()
	for _, opt := range []Option{
		WithPort(9090),
		WithHost("0.0.0.0"),
		WithRoutesDir("./routes"),
		WithHTTP2(false),
		WithTLSCredentials("c.pem", "k.pem"),
		WithMiddleware(mw),
		WithPlugins(plug),
		WithCorrelationHeader("X-Trace-Id"),
		WithCorrelationGenerator(func() string { return "fixed" }),
		WithCORS(cors.Options{AllowedOrigins: []string{"*"}}),
		WithBodyLimits(1, 2, 3, 4),
		WithMultipartLimits(5, 6, 7, 8),
		WithLogger(slog.Default()),
		WithLogLevel(slog.LevelDebug),
		WithEnvironment(EnvProduction),
		WithPluginErrorPolicy(PluginManagerOptions{ContinueOnError: false}),
	} {
		opt(c)
	}

	assert.Equal(t, 9090, c.port)
	assert.Equal(t, "0.0.0.0", c.host)
	assert.Equal(t, "./routes", c.routesDir)
	assert.False(t, c.http2Enabled)
	assert.Equal(t, "c.pem", c.certFile)
	assert.Equal(t, "k.pem", c.keyFile)
	assert.Len(t, c.middleware, 1)
	assert.Len(t, c.plugins, 1)
	assert.Equal(t, "X-Trace-Id", c.correlationHeader)
	assert.Equal(t, "fixed", c.correlationGenerator())
	assert.True(t, c.corsSet)
	assert.Equal(t, []string{"*"}, c.cors.AllowedOrigins)
	assert.Equal(t, bodyLimits{json: 1, form: 2, text: 3, raw: 4}, c.bodyLimits)
	assert.Equal(t, multipartLimits{maxFileSize: 5, maxTotalSize: 6, maxFiles: 7, maxFieldSize: 8}, c.multipartLimits)
	assert.Equal(t, slog.LevelDebug, c.logLevel)
	assert.Equal(t, EnvProduction, c.environment)
	assert.False(t, c.pluginErrorPolicy.ContinueOnError)
}

func TestOption_WithMiddlewareAppendsAcrossCalls(t *testing.T) {
	noop := router.Middleware{Name: "noop", Handler: func(ctx *router.Context, next router.NextFunc) error { return next() }}
	c := defaultConfig()
	WithMiddleware(noop)(c)
	WithMiddleware(noop, noop)(c)
	assert.Len(t, c.middleware, 3)
}
