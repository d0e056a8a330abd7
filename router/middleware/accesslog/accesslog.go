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

// Package accesslog implements the baked-in request logger §4.10 step 3
// prepends to every server's middleware chain: one structured "http
// request" log line per request, with the level chosen by the final status
// code and optional path exclusion and sampling.
package accesslog

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/wayfare-dev/wayfare/router"
)

// Options configures the access log middleware.
type Options struct {
	// Logger receives one record per logged request. Defaults to
	// slog.Default.
	Logger *slog.Logger
	// ExcludePaths are exact request paths never logged (e.g. "/health").
	ExcludePaths []string
	// ExcludePrefixes are path prefixes never logged (e.g. "/metrics").
	ExcludePrefixes []string
	// SampleRate, in (0, 1], is the fraction of non-excluded requests that
	// get logged. Zero means "unset", treated as 1 (log everything).
	SampleRate float64
	// RequestIDFunc overrides how the correlation id attached to the log
	// record is derived. Defaults to ctx.CorrelationID.
	RequestIDFunc func(*router.Context) string
}

// Option mutates Options; New applies each in order over the defaults.
type Option func(*Options)

// WithLogger sets the destination logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithExcludePaths adds exact paths to skip logging for.
func WithExcludePaths(paths ...string) Option {
	return func(o *Options) { o.ExcludePaths = append(o.ExcludePaths, paths...) }
}

// WithExcludePrefixes adds path prefixes to skip logging for.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(o *Options) { o.ExcludePrefixes = append(o.ExcludePrefixes, prefixes...) }
}

// WithSampleRate sets the fraction of requests logged, in (0, 1].
func WithSampleRate(rate float64) Option {
	return func(o *Options) { o.SampleRate = rate }
}

// WithRequestIDFunc overrides correlation id derivation.
func WithRequestIDFunc(fn func(*router.Context) string) Option {
	return func(o *Options) { o.RequestIDFunc = fn }
}

func defaultOptions() Options {
	return Options{
		Logger:     slog.Default(),
		SampleRate: 1,
	}
}

// New returns the access log middleware. It should run early in the chain
// (immediately after recovery) so it observes the final response status
// set by everything downstream.
func New(opts ...Option) router.Middleware {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 1
	}
	if cfg.RequestIDFunc == nil {
		cfg.RequestIDFunc = (*router.Context).CorrelationID
	}

	excludePaths := make(map[string]bool, len(cfg.ExcludePaths))
	for _, p := range cfg.ExcludePaths {
		excludePaths[p] = true
	}

	return router.Middleware{
		Name: "accesslog",
		Handler: func(ctx *router.Context, next router.NextFunc) error {
			path := ctx.Request.URL.Path
			if excludePaths[path] || hasAnyPrefix(path, cfg.ExcludePrefixes) {
				return next()
			}
			if cfg.SampleRate < 1 && rand.Float64() >= cfg.SampleRate {
				return next()
			}

			start := time.Now()
			err := next()
			duration := time.Since(start)

			status := ctx.Response.Status()
			if status == 0 {
				status = 200
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			cfg.Logger.Log(ctx.Request.Context(), level, "http request",
				"method", ctx.Request.Method,
				"path", path,
				"status", status,
				"duration", duration,
				"clientIp", ctx.Request.RemoteAddr,
				"userAgent", ctx.Request.UserAgent(),
				"requestId", cfg.RequestIDFunc(ctx),
			)

			return err
		},
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
