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

// Package bodylimit is a standalone request-body size ceiling for callers
// building on the bare router; Server does not chain it, since its body
// intake (C12) applies its own per-content-type limits. It
// rejects requests whose Content-Length already exceeds the limit, and
// wraps the body reader so a missing or lying Content-Length cannot be
// used to exhaust memory either.
package bodylimit

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wayfare-dev/wayfare/httperr"
	"github.com/wayfare-dev/wayfare/router"
)

// ErrBodyLimitExceeded is wrapped into a PAYLOAD_TOO_LARGE httperr.Error
// when the body exceeds the configured limit mid-read.
var ErrBodyLimitExceeded = errors.New("request body size exceeds limit")

// Options configures the bodylimit middleware.
type Options struct {
	// Limit is the maximum allowed body size in bytes. Defaults to 2MiB.
	Limit int64
}

func defaultOptions() Options {
	return Options{Limit: 2 * 1024 * 1024}
}

// limitedReader wraps an io.ReadCloser to enforce Limit on actual bytes
// read, independent of the (spoofable) Content-Length header.
type limitedReader struct {
	reader io.ReadCloser
	limit  int64
	read   int64
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.read >= lr.limit {
		return 0, io.EOF
	}

	remaining := lr.limit - lr.read
	if int64(len(p)) > remaining {
		p = p[0:remaining]
	}

	n, err := lr.reader.Read(p)
	lr.read += int64(n)

	if lr.read >= lr.limit && err == nil {
		var probe [1]byte
		extraN, extraErr := lr.reader.Read(probe[:])
		if extraN > 0 {
			return n, fmt.Errorf("%w: %d bytes", ErrBodyLimitExceeded, lr.limit)
		}
		if extraErr == io.EOF {
			err = io.EOF
		}
	}

	return n, err
}

func (lr *limitedReader) Close() error {
	return lr.reader.Close()
}

// New returns the body-size-limit middleware.
//
// The limit is checked twice: once against the Content-Length header for
// early rejection, and again against actual bytes read via limitedReader,
// so a missing or incorrect header cannot bypass the limit.
func New(opts Options) router.Middleware {
	cfg := defaultOptions()
	if opts.Limit != 0 {
		cfg.Limit = opts.Limit
	}

	return router.Middleware{
		Name: "bodylimit",
		Handler: func(ctx *router.Context, next router.NextFunc) error {
			if cl := ctx.Request.Header.Get("Content-Length"); cl != "" {
				if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > cfg.Limit {
					return httperr.New(httperr.KindPayloadTooLarge).WithDetails(&httperr.Details{
						Section: "body",
					})
				}
			}

			if ctx.Request.Body != nil {
				ctx.Request.Body = &limitedReader{reader: ctx.Request.Body, limit: cfg.Limit}
			}

			return next()
		},
	}
}
