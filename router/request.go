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

import "net/url"

// Query parses and caches the request's query string into a multi-valued
// map (§3 RequestView). http.Request's own Header is already a
// case-insensitive multi-map via net/textproto canonicalization, so no
// separate header wrapper is needed — ctx.Request.Header.Get/Values cover
// that half of RequestView directly.
func (c *Context) Query() url.Values {
	if c.State == nil {
		c.State = make(map[string]any, 4)
	}
	if cached, ok := c.State["__query"].(url.Values); ok {
		return cached
	}
	values := c.Request.URL.Query()
	c.State["__query"] = values
	return values
}
