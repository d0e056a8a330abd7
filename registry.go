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
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/wayfare-dev/wayfare/router"
)

// routeKey identifies one (path, method) pair for conflict detection.
type routeKey struct {
	path   string
	method router.Method
}

// Conflict records two files that both produced the same (path, method),
// per §4.4's "last-wins ... a warning is surfaced with both file paths".
type Conflict struct {
	Path        string
	Method      router.Method
	LosingFile  string
	WinningFile string
}

// Registry aggregates routes discovered by the loader (C3) into the
// matcher (C2), deduplicating and tracking conflicts (C4). It owns the
// single writer lock over route mutation; lookups go straight to the
// lock-free Tree snapshot.
type Registry struct {
	RoutesDir string
	Tree      *router.Tree
	Logger    *slog.Logger

	mu sync.Mutex
	// byFile records which (path, method) keys the most recent load of a
	// file produced, so ProcessChanged can diff and remove stale entries.
	byFile map[string][]routeKey
	// owner records which file currently owns each (path, method) key, for
	// conflict detection and reporting.
	owner map[routeKey]string

	conflicts []Conflict
}

// NewRegistry returns a Registry rooted at routesDir, backed by tree.
func NewRegistry(routesDir string, tree *router.Tree, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		RoutesDir: routesDir,
		Tree:      tree,
		Logger:    logger,
		byFile:    make(map[string][]routeKey),
		owner:     make(map[routeKey]string),
	}
}

// shouldSkip applies §6's filesystem exclusion rules: files whose basename
// starts with "_", ends with "_test.go", or ends with ".gen.go".
func shouldSkip(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "_") {
		return true
	}
	if strings.HasSuffix(base, "_test.go") {
		return true
	}
	if strings.HasSuffix(base, ".gen.go") {
		return true
	}
	return !strings.HasSuffix(base, ".go")
}

// LoadAll enumerates every route file under RoutesDir (§4.4), loads each
// through C3 with bounded concurrency, and stages every loaded route into
// the matcher one route at a time. Routes already in the matcher are not
// cleared first, and the load is not published as one atomic swap. Unlike
// ProcessChanged, LoadAll assumes a cold start: any conflicts detected
// during this pass reflect ordering within a single directory walk, not a
// reload.
func (r *Registry) LoadAll() (int, error) {
	var files []string
	err := filepath.WalkDir(r.RoutesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if shouldSkip(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("wayfare: walking routes dir %q: %w", r.RoutesDir, err)
	}

	concurrency := max(1, runtime.NumCPU()/2)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var allRoutes []LoadedRoute

	for _, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(file string) {
			defer wg.Done()
			defer func() { <-sem }()

			routes, errs := LoadFile(file, r.RoutesDir)
			for _, e := range errs {
				r.Logger.Warn("route load failed", "file", file, "error", e)
			}
			if len(routes) == 0 {
				return
			}
			mu.Lock()
			allRoutes = append(allRoutes, routes...)
			mu.Unlock()
		}(f)
	}
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lr := range allRoutes {
		r.stageLocked(lr)
	}

	return len(allRoutes), nil
}

// stageLocked installs one LoadedRoute into the matcher, recording
// ownership and any conflict. Callers must hold r.mu.
func (r *Registry) stageLocked(lr LoadedRoute) {
	key := routeKey{path: lr.RoutePath, method: lr.Method}

	if prevOwner, exists := r.owner[key]; exists && prevOwner != lr.FilePath {
		r.conflicts = append(r.conflicts, Conflict{
			Path:        lr.RoutePath,
			Method:      lr.Method,
			LosingFile:  prevOwner,
			WinningFile: lr.FilePath,
		})
		r.Logger.Warn("route conflict: last-registered file wins",
			"path", lr.RoutePath, "method", lr.Method,
			"losing_file", prevOwner, "winning_file", lr.FilePath)
	}
	r.owner[key] = lr.FilePath
	r.byFile[lr.FilePath] = append(r.byFile[lr.FilePath], key)

	r.Tree.Add(lr.RoutePath, lr.Method, &router.RouteMethod{
		Handler:    lr.Def.Handler,
		Middleware: lr.Def.Middleware,
		Schema:     lr.Def.Schema,
		Options:    lr.Def.Options,
		FilePath:   lr.FilePath,
		Name:       lr.Name,
	})
}

// reloadSlowThreshold is the §4.4 ">100ms" slow-reload flag.
const reloadSlowThreshold = 100 * time.Millisecond

// ProcessChanged reloads a single file (§4.4): it diffs the file's newly
// loaded routes against what it previously owned, removes keys the file no
// longer produces (re-checking whether another file's route now collides
// with the vacated path, per §9's resolved open question), and stages the
// new set. It emits a routes:reloaded log record with the route count and
// flags reloads slower than 100ms.
func (r *Registry) ProcessChanged(file string) (int, error) {
	start := time.Now()

	routes, errs := LoadFile(file, r.RoutesDir)
	for _, e := range errs {
		r.Logger.Warn("route reload failed", "file", file, "error", e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.byFile[file]
	newKeys := make(map[routeKey]bool, len(routes))
	for _, lr := range routes {
		newKeys[routeKey{path: lr.RoutePath, method: lr.Method}] = true
	}

	// Remove keys this file no longer produces.
	for _, key := range previous {
		if newKeys[key] {
			continue
		}
		if r.owner[key] != file {
			// Another file already took ownership of this key; leave the
			// matcher alone, just stop tracking it for this file.
			continue
		}
		delete(r.owner, key)
		r.Tree.Remove(key.path, key.method)
	}

	delete(r.byFile, file)
	for _, lr := range routes {
		r.stageLocked(lr)
	}

	elapsed := time.Since(start)
	level := slog.LevelInfo
	if elapsed > reloadSlowThreshold {
		level = slog.LevelWarn
	}
	r.Logger.Log(context.Background(), level, "routes:reloaded",
		"file", file, "count", len(routes), "durationMs", elapsed.Milliseconds(), "slow", elapsed > reloadSlowThreshold)

	return len(routes), nil
}

// Remove drops every route owned by file, e.g. on file deletion (§4.4
// watcher "removed" event).
func (r *Registry) Remove(file string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range r.byFile[file] {
		if r.owner[key] == file {
			delete(r.owner, key)
			r.Tree.Remove(key.path, key.method)
		}
	}
	delete(r.byFile, file)
}

// Conflicts returns every (path, method) collision observed since the
// registry was created, for introspection (§4.4's getConflicts()).
func (r *Registry) Conflicts() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Conflict(nil), r.conflicts...)
}
