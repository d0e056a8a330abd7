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

// Package requestid implements the correlation-id half of C13: it resolves
// a request's correlation id (from an inbound header or freshly generated),
// stores it on the Context, and echoes it on the response.
package requestid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	mathrand "math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/wayfare-dev/wayfare/router"
)

// maxCorrelationIDLen is the §4.5 bound on an inbound correlation header
// value; longer values are rejected rather than truncated silently.
const maxCorrelationIDLen = 128

// Options configures the requestid middleware.
type Options struct {
	// HeaderName is the header read and written for the correlation id.
	// Defaults to "X-Correlation-Id" (§4.5).
	HeaderName string
	// Generator produces a fresh id when none is supplied by the client,
	// or when AllowClientID is false. Defaults to generateRandomID.
	Generator func() string
	// AllowClientID accepts an inbound HeaderName value instead of always
	// generating a fresh one.
	AllowClientID bool
}

func defaultOptions() Options {
	return Options{
		HeaderName:    "X-Correlation-Id",
		Generator:     generateRandomID,
		AllowClientID: true,
	}
}

// New returns the correlation-id middleware (C13).
//
//	r.Use(requestid.New(requestid.Options{}))
func New(opts Options) router.Middleware {
	cfg := defaultOptions()
	if opts.HeaderName != "" {
		cfg.HeaderName = opts.HeaderName
	}
	if opts.Generator != nil {
		cfg.Generator = opts.Generator
	}
	cfg.AllowClientID = opts.AllowClientID

	return router.Middleware{
		Name: "requestid",
		Handler: func(ctx *router.Context, next router.NextFunc) error {
			id := ""
			if cfg.AllowClientID {
				id = sanitizeInboundID(ctx.Request.Header.Get(cfg.HeaderName))
			}
			if id == "" {
				id = cfg.Generator()
			}
			ctx.SetCorrelationID(id)
			ctx.Response.Header().Set(cfg.HeaderName, id)
			return next()
		},
	}
}

// sanitizeInboundID applies §4.5's acceptance rule for a client-supplied
// correlation id: trimmed, non-empty, at most 128 bytes, and free of control
// characters. A value failing any of these is discarded (returns "") so the
// caller falls back to generating a fresh id rather than trusting it.
func sanitizeInboundID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxCorrelationIDLen {
		return ""
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return ""
		}
	}
	return id
}

// generateRandomID generates a random hex string for correlation ids.
func generateRandomID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback: timestamp + random + pid composite. crypto/rand failure
		// is rare; when it happens we still want collision resistance
		// better than a bare timestamp.
		ts := time.Now().UnixNano()
		rnd := mathrand.Uint64()
		pid := os.Getpid()

		binary.BigEndian.PutUint64(bytes[0:8], uint64(ts))
		binary.BigEndian.PutUint32(bytes[8:12], uint32(rnd))
		binary.BigEndian.PutUint32(bytes[12:16], uint32(pid))
	}
	return hex.EncodeToString(bytes)
}
