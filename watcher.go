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
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is the §4.4 "~50ms" coalescing window: editors frequently
// emit Write followed by Chmod (or several Writes) for a single save, and
// without coalescing each would trigger its own reload.
const watchDebounce = 50 * time.Millisecond

// Watch starts an fsnotify watch over RoutesDir and every subdirectory,
// reloading changed files into the registry as events arrive. It blocks
// until ctx is cancelled or the watcher fails to start, and always closes
// the underlying watcher before returning.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	err = filepath.WalkDir(r.RoutesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	pending := map[string]fsnotify.Op{}
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	flush := func() {
		for file, op := range pending {
			if shouldSkip(file) {
				continue
			}
			if op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0 {
				r.Remove(file)
				r.Logger.Info("routes:removed", "file", file)
				continue
			}
			if _, err := r.ProcessChanged(file); err != nil {
				r.Logger.Warn("route reload failed", "file", file, "error", err)
			}
		}
		pending = map[string]fsnotify.Op{}
	}

	for {
		select {
		case <-ctx.Done():
			if timerArmed && !timer.Stop() {
				<-timer.C
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}

			pending[event.Name] = pending[event.Name] | event.Op
			if !timerArmed {
				timer.Reset(watchDebounce)
				timerArmed = true
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.Logger.Warn("route watcher error", "error", err)

		case <-timer.C:
			timerArmed = false
			flush()
		}
	}
}
