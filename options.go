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
	"fmt"
	"log/slog"

	"github.com/wayfare-dev/wayfare/router"
	"github.com/wayfare-dev/wayfare/router/middleware/cors"
)

// Environment selects the three deployment modes §6 names.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// bodyLimits mirrors §6's bodyLimits.{json,form,text,raw} option group.
type bodyLimits struct {
	json, form, text, raw int64
}

// multipartLimits mirrors §6's bodyLimits.multipart.* option group.
type multipartLimits struct {
	maxFileSize, maxTotalSize int64
	maxFiles                  int
	maxFieldSize              int64
}

func defaultBodyLimits() bodyLimits {
	return bodyLimits{
		json: 1 << 20,      // 1MiB
		form: 1 << 20,      // 1MiB
		text: 512 << 10,    // 512KiB
		raw:  10 << 20,     // 10MiB
	}
}

func defaultMultipartLimits() multipartLimits {
	return multipartLimits{
		maxFileSize:  32 << 20, // 32MiB
		maxTotalSize: 64 << 20, // 64MiB
		maxFiles:     16,
		maxFieldSize: 1 << 20, // 1MiB
	}
}

// config is the explicit ServerOptions struct the donor's own
// `Option func(*config)` idiom is generalized to (§9 DESIGN NOTES, AMBIENT
// STACK). Every field has a recognized Option setter in §6.
type config struct {
	port int
	host string

	routesDir string

	http2Enabled bool
	certFile     string
	keyFile      string

	middleware []router.Middleware
	plugins    []Plugin

	correlationHeader    string
	correlationGenerator func() string

	cors    *cors.Options
	corsSet bool

	bodyLimits      bodyLimits
	multipartLimits multipartLimits

	logger   *slog.Logger
	logLevel slog.Level

	environment Environment

	pluginErrorPolicy PluginManagerOptions
}

func defaultConfig() *config {
	return &config{
		port:                 3000,
		host:                 "localhost",
		http2Enabled:         true,
		correlationHeader:    "X-Correlation-Id",
		bodyLimits:           defaultBodyLimits(),
		multipartLimits:      defaultMultipartLimits(),
		logLevel:             slog.LevelInfo,
		environment:          EnvFromEnviron(),
		pluginErrorPolicy:    PluginManagerOptions{ContinueOnError: true},
	}
}

// validate runs the §4.10 "Validate options" startup step.
func (c *config) validate() error {
	if c.port < 0 || c.port > 65535 {
		return fmt.Errorf("wayfare: invalid port %d", c.port)
	}
	if c.routesDir == "" {
		return fmt.Errorf("wayfare: RoutesDir is required")
	}
	if c.http2Enabled && c.environment == EnvProduction {
		if c.certFile == "" || c.keyFile == "" {
			return fmt.Errorf("wayfare: TLS credentials are required in production when HTTP/2 is enabled")
		}
	}
	return nil
}

// Option configures a Server at construction time (§6).
type Option func(*config)

// WithPort sets the listener port. Default 3000.
func WithPort(port int) Option { return func(c *config) { c.port = port } }

// WithHost sets the listener bind address. Default "localhost".
func WithHost(host string) Option { return func(c *config) { c.host = host } }

// WithRoutesDir sets the filesystem root for route discovery (C3/C4).
func WithRoutesDir(dir string) Option { return func(c *config) { c.routesDir = dir } }

// WithHTTP2 toggles HTTP/2 negotiation. Default true.
func WithHTTP2(enabled bool) Option { return func(c *config) { c.http2Enabled = enabled } }

// WithTLSCredentials supplies the cert/key pair required in production
// when HTTP/2 is enabled (§4.10 step 6).
func WithTLSCredentials(certFile, keyFile string) Option {
	return func(c *config) { c.certFile, c.keyFile = certFile, keyFile }
}

// WithMiddleware appends global middleware, prepended to every route's own
// middleware in registration order (§4.11 step 5).
func WithMiddleware(mw ...router.Middleware) Option {
	return func(c *config) { c.middleware = append(c.middleware, mw...) }
}

// WithPlugins registers plugins in the order given; Register runs in this
// order at startup (§4.9, §4.10 step 4).
func WithPlugins(plugins ...Plugin) Option {
	return func(c *config) { c.plugins = append(c.plugins, plugins...) }
}

// WithCorrelationHeader overrides the inbound/outbound correlation header
// name. Default "X-Correlation-Id".
func WithCorrelationHeader(name string) Option {
	return func(c *config) { c.correlationHeader = name }
}

// WithCorrelationGenerator overrides the correlation id generator used
// when a request carries no inbound header value.
func WithCorrelationGenerator(gen func() string) Option {
	return func(c *config) { c.correlationGenerator = gen }
}

// WithCORS installs the CORS middleware (C13) with the given policy. When
// never called, no CORS middleware is installed (§4.13).
func WithCORS(opts cors.Options) Option {
	return func(c *config) { c.cors = &opts; c.corsSet = true }
}

// WithBodyLimits sets the per-content-type byte ceilings C12 enforces.
func WithBodyLimits(json, form, text, raw int64) Option {
	return func(c *config) { c.bodyLimits = bodyLimits{json: json, form: form, text: text, raw: raw} }
}

// WithMultipartLimits sets the multipart-specific ceilings C12 enforces.
func WithMultipartLimits(maxFileSize, maxTotalSize int64, maxFiles int, maxFieldSize int64) Option {
	return func(c *config) {
		c.multipartLimits = multipartLimits{
			maxFileSize:  maxFileSize,
			maxTotalSize: maxTotalSize,
			maxFiles:     maxFiles,
			maxFieldSize: maxFieldSize,
		}
	}
}

// WithLogger overrides the base *slog.Logger used for request logs,
// lifecycle events, and the error boundary.
func WithLogger(logger *slog.Logger) Option { return func(c *config) { c.logger = logger } }

// WithLogLevel sets the minimum level for the base logger.
func WithLogLevel(level slog.Level) Option { return func(c *config) { c.logLevel = level } }

// WithEnvironment sets the deployment mode (§6's WAYFARE_ENV-equivalent),
// overriding whatever WAYFARE_ENV resolved to. See also [EnvFromEnviron].
func WithEnvironment(env Environment) Option { return func(c *config) { c.environment = env } }

// WithPluginErrorPolicy configures the plugin lifecycle manager's error
// policy (§4.9).
func WithPluginErrorPolicy(opts PluginManagerOptions) Option {
	return func(c *config) { c.pluginErrorPolicy = opts }
}
