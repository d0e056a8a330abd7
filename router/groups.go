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

import "strings"

// Group is a path-prefixed, middleware-prefixed view over a Tree. Plugins
// and programmatic registration (as opposed to file-discovered routes, C3)
// use Group to add routes without repeating a prefix or shared middleware
// at every call site, mirroring the donor router's Router.Group.
type Group struct {
	tree       *Tree
	prefix     string
	middleware []Middleware
}

// NewGroup returns a Group rooted at tree with no prefix or middleware.
func NewGroup(tree *Tree) *Group {
	return &Group{tree: tree}
}

// Group returns a child group nesting prefix under g's own prefix and
// appending extra middleware after g's own.
func (g *Group) Group(prefix string, middleware ...Middleware) *Group {
	combined := make([]Middleware, 0, len(g.middleware)+len(middleware))
	combined = append(combined, g.middleware...)
	combined = append(combined, middleware...)
	return &Group{
		tree:       g.tree,
		prefix:     joinPrefix(g.prefix, prefix),
		middleware: combined,
	}
}

func joinPrefix(a, b string) string {
	a = strings.TrimSuffix(a, "/")
	b = "/" + strings.TrimPrefix(b, "/")
	if a == "" {
		return b
	}
	return a + b
}

// Handle registers handler for method at path (relative to the group's
// prefix), with the group's middleware prepended to any route-specific
// middleware supplied in rm.
func (g *Group) Handle(method Method, path string, rm *RouteMethod) {
	full := joinPrefix(g.prefix, path)
	merged := make([]Middleware, 0, len(g.middleware)+len(rm.Middleware))
	merged = append(merged, g.middleware...)
	merged = append(merged, rm.Middleware...)
	rm.Middleware = merged
	g.tree.Add(full, method, rm)
}

func (g *Group) GET(path string, h HandlerFunc)     { g.Handle(GET, path, &RouteMethod{Handler: h}) }
func (g *Group) POST(path string, h HandlerFunc)    { g.Handle(POST, path, &RouteMethod{Handler: h}) }
func (g *Group) PUT(path string, h HandlerFunc)     { g.Handle(PUT, path, &RouteMethod{Handler: h}) }
func (g *Group) PATCH(path string, h HandlerFunc)   { g.Handle(PATCH, path, &RouteMethod{Handler: h}) }
func (g *Group) DELETE(path string, h HandlerFunc)  { g.Handle(DELETE, path, &RouteMethod{Handler: h}) }
func (g *Group) HEAD(path string, h HandlerFunc)    { g.Handle(HEAD, path, &RouteMethod{Handler: h}) }
func (g *Group) OPTIONS(path string, h HandlerFunc) { g.Handle(OPTIONS, path, &RouteMethod{Handler: h}) }
