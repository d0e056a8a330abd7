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
	"sync"
	"sync/atomic"
)

// Tree is the route matcher (C2): one radix tree per HTTP method, published
// behind an atomic pointer so lookups never take a lock. Mutation (Add,
// Remove, Clear) goes through a single writer mutex and copy-on-write
// replaces the whole map, following the donor router's updateTrees pattern
// so in-flight requests resolved against the prior snapshot always complete
// consistently (§5 reload ordering guarantee).
type Tree struct {
	trees atomic.Pointer[map[Method]*node]
	mu    sync.Mutex
}

// NewTree returns an empty matcher.
func NewTree() *Tree {
	t := &Tree{}
	empty := map[Method]*node{}
	t.trees.Store(&empty)
	return t
}

func (t *Tree) snapshot() map[Method]*node {
	return *t.trees.Load()
}

// update runs fn against a fresh copy of the current trees map and publishes
// the result. Callers must already hold mu.
func (t *Tree) update(fn func(map[Method]*node)) {
	current := t.snapshot()
	next := make(map[Method]*node, len(current)+1)
	for m, n := range current {
		next[m] = n
	}
	fn(next)
	t.trees.Store(&next)
}

// Add parses nothing itself — path must already be canonical (C1 has run).
// It walks/creates the trie for method and attaches rm at the terminal node.
func (t *Tree) Add(path string, method Method, rm *RouteMethod) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.update(func(trees map[Method]*node) {
		trees[method] = insertPath(trees[method], segments(path), path, method, rm)
	})
}

// Remove drops a single method's registration at path, leaving any other
// method registered at the same path (by a different file) untouched. It is
// used by the registry (C4) when a route file is deleted or a route
// disappears on reload.
func (t *Tree) Remove(path string, method Method) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.update(func(trees map[Method]*node) {
		root, ok := trees[method]
		if !ok {
			return
		}
		clone := cloneNode(root)
		trees[method] = pruneNode(clone, segments(path))
	})
}

// Clear removes every registered route.
func (t *Tree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	empty := map[Method]*node{}
	t.trees.Store(&empty)
}

// Match resolves (method, path) to a MatchResult per §4.2's precedence and
// 405 rules.
func (t *Tree) Match(method Method, path string) MatchResult {
	trees := t.snapshot()

	params := map[string]string{}
	if tree, ok := trees[method]; ok {
		if target, found := tree.lookup(path, params); found {
			if rm, exists := target.handlers[method]; exists {
				return MatchResult{Status: StatusFound, Method: rm, Params: params, RoutePath: target.path}
			}
		}
	}

	allowedSet := map[Method]bool{}
	for m, tree := range trees {
		if m == method {
			continue
		}
		for _, am := range tree.allowedMethods(path) {
			allowedSet[am] = true
		}
	}
	// The requested method's own tree may also resolve the path without
	// exposing a handler for it (shouldn't normally happen since handlers
	// are only attached when present, but keep the check honest).
	if tree, ok := trees[method]; ok {
		for _, am := range tree.allowedMethods(path) {
			allowedSet[am] = true
		}
	}

	if len(allowedSet) == 0 {
		return MatchResult{Status: StatusNotFound}
	}

	allowed := make([]Method, 0, len(allowedSet))
	for _, m := range Methods {
		if allowedSet[m] {
			allowed = append(allowed, m)
		}
	}
	return MatchResult{Status: StatusMethodNotAllowed, Allowed: allowed}
}

// List returns every (path, method) pair currently registered, for
// diagnostics and conflict reporting.
func (t *Tree) List() []struct {
	Path   string
	Method Method
} {
	trees := t.snapshot()
	var out []struct {
		Path   string
		Method Method
	}
	for method, root := range trees {
		walk(root, func(n *node) {
			if rm := n.handlers[method]; rm != nil {
				out = append(out, struct {
					Path   string
					Method Method
				}{n.path, method})
			}
		})
	}
	return out
}

func walk(n *node, visit func(*node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := range n.edges {
		walk(n.edges[i].node, visit)
	}
	if n.param != nil {
		walk(n.param.node, visit)
	}
	if n.wildcard != nil {
		walk(n.wildcard.node, visit)
	}
}

// cloneNode performs a shallow structural copy: the edge slice, the
// handlers map, and the param/wildcard wrapper structs are copied one
// level (child *node pointers stay shared) so the writer can mutate the
// clone without disturbing the published snapshot readers may still be
// walking.
func cloneNode(n *node) *node {
	if n == nil {
		return &node{}
	}
	clone := &node{path: n.path}
	if n.handlers != nil {
		clone.handlers = make(map[Method]*RouteMethod, len(n.handlers))
		for m, rm := range n.handlers {
			clone.handlers[m] = rm
		}
	}
	if n.edges != nil {
		clone.edges = make([]edge, len(n.edges))
		copy(clone.edges, n.edges)
	}
	if n.param != nil {
		clone.param = &param{key: n.param.key, node: n.param.node}
	}
	if n.wildcard != nil {
		clone.wildcard = &wildcard{node: n.wildcard.node}
	}
	return clone
}

// pruneNode removes the route attached at the given segment path, cloning
// only the nodes along the way.
func pruneNode(n *node, segs []string) *node {
	if len(segs) == 0 {
		n.handlers = nil
		return n
	}
	head, rest := segs[0], segs[1:]
	if child := n.findChild(head); child != nil {
		clone := cloneNode(child)
		pruneNode(clone, rest)
		for i := range n.edges {
			if n.edges[i].label == head {
				n.edges[i].node = clone
			}
		}
		return n
	}
	if n.param != nil {
		clone := cloneNode(n.param.node)
		pruneNode(clone, rest)
		n.param.node = clone
		return n
	}
	if n.wildcard != nil {
		clone := cloneNode(n.wildcard.node)
		clone.handlers = nil
		n.wildcard.node = clone
	}
	return n
}
