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

package router

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_QueryParsesAndCaches(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?a=1&a=2&b=3", nil)
	ctx := &Context{Request: req, State: make(map[string]any, 4)}

	values := ctx.Query()
	assert.Equal(t, []string{"1", "2"}, values["a"])
	assert.Equal(t, []string{"3"}, values["b"])

	// Mutate the URL after the first parse; a second call must still return
	// the cached result rather than re-parsing the (now different) query.
	req.URL.RawQuery = "a=9"
	cached := ctx.Query()
	assert.Equal(t, []string{"1", "2"}, cached["a"])
}

func TestContext_QueryInitializesStateWhenNil(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?a=1", nil)
	ctx := &Context{Request: req}

	values := ctx.Query()
	assert.Equal(t, []string{"1"}, values["a"])
	assert.NotNil(t, ctx.State)
}
