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

package recovery

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfare-dev/wayfare/httperr"
	"github.com/wayfare-dev/wayfare/router"
)

func newTestContext(t *testing.T) *router.Context {
	t.Helper()
	pool := router.NewContextPool()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	return pool.Acquire(rec, req)
}

func TestRecovery_CatchesPanicAndReturnsInternalError(t *testing.T) {
	mw := New(Options{Logger: slog.Default()})
	chain := router.Compose([]router.Middleware{mw}, func(*router.Context) error {
		panic("boom")
	})

	err := chain(newTestContext(t))
	require.Error(t, err)

	var herr *httperr.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, httperr.KindInternal, herr.Type)
}

func TestRecovery_PassesThroughWhenNoPanic(t *testing.T) {
	mw := New(Options{})
	chain := router.Compose([]router.Middleware{mw}, func(*router.Context) error {
		return nil
	})

	assert.NoError(t, chain(newTestContext(t)))
}

func TestRecovery_PropagatesOrdinaryError(t *testing.T) {
	mw := New(Options{})
	want := httperr.New(httperr.KindNotFound)
	chain := router.Compose([]router.Middleware{mw}, func(*router.Context) error {
		return want
	})

	err := chain(newTestContext(t))
	assert.Same(t, want, err)
}

func TestRecovery_StackIsTruncatedToStackSize(t *testing.T) {
	mw := New(Options{StackSize: 16})
	chain := router.Compose([]router.Middleware{mw}, func(*router.Context) error {
		panic("boom")
	})

	require.Error(t, chain(newTestContext(t)))
}
