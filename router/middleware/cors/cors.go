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

// Package cors implements the CORS half of C13: it adds
// Access-Control-Allow-* headers per policy and short-circuits preflight
// OPTIONS requests with 204.
package cors

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/wayfare-dev/wayfare/router"
)

// Options configures the CORS middleware.
type Options struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	AllowAllOrigins  bool
	AllowOriginFunc  func(origin string) bool
}

// defaultOptions mirrors the donor cors middleware's restrictive default:
// no origins allowed until the caller opts in.
func defaultOptions() Options {
	return Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Correlation-Id"},
		MaxAge:         3600,
	}
}

// New returns the CORS middleware (C13). Options left zero-valued fall back
// to defaultOptions.
func New(opts Options) router.Middleware {
	cfg := defaultOptions()
	if len(opts.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = opts.AllowedOrigins
	}
	if len(opts.AllowedMethods) > 0 {
		cfg.AllowedMethods = opts.AllowedMethods
	}
	if len(opts.AllowedHeaders) > 0 {
		cfg.AllowedHeaders = opts.AllowedHeaders
	}
	cfg.ExposedHeaders = opts.ExposedHeaders
	cfg.AllowCredentials = opts.AllowCredentials
	if opts.MaxAge != 0 {
		cfg.MaxAge = opts.MaxAge
	}
	cfg.AllowAllOrigins = opts.AllowAllOrigins
	cfg.AllowOriginFunc = opts.AllowOriginFunc

	allowedMethodsHeader := strings.Join(cfg.AllowedMethods, ", ")
	allowedHeadersHeader := strings.Join(cfg.AllowedHeaders, ", ")
	exposedHeadersHeader := strings.Join(cfg.ExposedHeaders, ", ")
	maxAgeHeader := strconv.Itoa(cfg.MaxAge)

	return router.Middleware{
		Name: "cors",
		Handler: func(ctx *router.Context, next router.NextFunc) error {
			origin := ctx.Request.Header.Get("Origin")
			if origin == "" {
				return next()
			}

			allowedOrigin := ""
			switch {
			case cfg.AllowAllOrigins:
				allowedOrigin = "*"
			case cfg.AllowOriginFunc != nil:
				if cfg.AllowOriginFunc(origin) {
					allowedOrigin = origin
				}
			default:
				if slices.Contains(cfg.AllowedOrigins, origin) {
					allowedOrigin = origin
				}
			}

			if allowedOrigin == "" {
				return next()
			}

			header := ctx.Response.Header()
			if cfg.AllowCredentials && allowedOrigin == "*" {
				// Credentials and a wildcard origin are mutually exclusive;
				// echo the specific origin instead.
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			} else {
				header.Set("Access-Control-Allow-Origin", allowedOrigin)
				if cfg.AllowCredentials {
					header.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			if exposedHeadersHeader != "" {
				header.Set("Access-Control-Expose-Headers", exposedHeadersHeader)
			}

			if ctx.Request.Method == http.MethodOptions {
				header.Set("Access-Control-Allow-Methods", allowedMethodsHeader)
				header.Set("Access-Control-Allow-Headers", allowedHeadersHeader)
				header.Set("Access-Control-Max-Age", maxAgeHeader)
				return ctx.Response.Send(http.StatusNoContent, nil)
			}

			return next()
		},
	}
}
