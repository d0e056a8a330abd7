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
	"sort"
	"sync"

	"github.com/wayfare-dev/wayfare/router"
)

// MethodDef is one HTTP method's worth of a route file's contract (§6
// "Route definition contract"): handler, optional middleware, optional
// schema, and an opaque options bag route authors can use for their own
// per-route metadata.
type MethodDef struct {
	Handler    router.HandlerFunc
	Middleware []router.Middleware
	Schema     router.RouteSchema
	Options    map[string]any
}

// RouteDef is what a route file registers: a subset of HTTP methods,
// keyed by router.Method (§6).
type RouteDef map[router.Method]MethodDef

// isValidRoute reports whether def has at least one method whose handler is
// non-nil, the §4.3 step-2 validity check.
func isValidRoute(def RouteDef) bool {
	for _, m := range def {
		if m.Handler != nil {
			return true
		}
	}
	return false
}

// registration is one entry recorded against a file path: either the
// default export or a named export.
type registration struct {
	name string // "" for the default export
	def  RouteDef
}

// loaderRegistry is the process-wide, file-path-keyed registration table
// (§4.3, §9 "Dynamic route discovery"): route files call Register/
// RegisterNamed from their own package init(), the same side-effect
// registration idiom database/sql drivers use, and the route registry (C4)
// later resolves filePath against this table instead of performing a
// dynamic import.
type loaderRegistry struct {
	mu   sync.Mutex
	byFile map[string][]registration
}

var globalLoader = &loaderRegistry{byFile: make(map[string][]registration)}

// Register records the default route definition for filePath. Call this
// from a route file's init(), with filePath set to the file's own path as
// the registry's walk of the routes root produces it, since that is the
// key LoadFile looks it up by.
func Register(filePath string, def RouteDef) {
	globalLoader.register(filePath, "", def)
}

// RegisterNamed records a named export for filePath, alongside any default
// export already registered. Last-registered-wins applies per (file,
// method): when two exports of one file (default or named) define the same
// method, the later registration replaces the earlier one without a warning
// or an error.
func RegisterNamed(filePath, name string, def RouteDef) {
	globalLoader.register(filePath, name, def)
}

func (l *loaderRegistry) register(filePath, name string, def RouteDef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byFile[filePath] = append(l.byFile[filePath], registration{name: name, def: def})
}

// snapshot returns the registrations recorded for filePath, safe to read
// after init() has run (registrations are immutable once recorded; "cache
// busting" for hot reload means re-reading this snapshot, not re-executing
// Go source, per §4.3).
func (l *loaderRegistry) snapshot(filePath string) []registration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]registration(nil), l.byFile[filePath]...)
}

// LoadedRoute is one (path, method) pair produced from a single file, with
// enough provenance for conflict reporting (C4).
type LoadedRoute struct {
	FilePath  string
	RoutePath string
	Method    router.Method
	Name      string // export name ("" for default)
	Def       MethodDef
}

// LoadFile is the C3 loader entry point: it resolves filePath's registered
// route definition(s), computes each route's canonical path via the path
// parser (C1), and returns one LoadedRoute per (method, export). Per §4.3
// step 4, a file that produced no valid registration returns an empty
// result rather than an error the server must abort on; the caller (the
// registry, C4) is responsible for logging.
func LoadFile(filePath, routesDir string) ([]LoadedRoute, []error) {
	regs := globalLoader.snapshot(filePath)
	if len(regs) == 0 {
		return nil, nil
	}

	parsed, err := router.ParsePath(filePath, routesDir)
	if err != nil {
		return nil, []error{fmt.Errorf("%s: %w", filePath, err)}
	}

	// Default + named exports for the same method: last-registered wins,
	// per §9's resolved open question. Registrations are processed in
	// registration order so a later call (named or default) always
	// overwrites an earlier one for the same method.
	methods := map[router.Method]LoadedRoute{}
	var order []router.Method
	var errs []error

	for _, reg := range regs {
		if !isValidRoute(reg.def) {
			errs = append(errs, fmt.Errorf("%s: export %q has no valid method definition", filePath, reg.name))
			continue
		}
		for method, def := range reg.def {
			if _, seen := methods[method]; !seen {
				order = append(order, method)
			}
			methods[method] = LoadedRoute{
				FilePath:  filePath,
				RoutePath: parsed.RoutePath,
				Method:    method,
				Name:      reg.name,
				Def:       def,
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]LoadedRoute, 0, len(order))
	for _, m := range order {
		out = append(out, methods[m])
	}
	return out, errs
}
