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

//go:build unix

package wayfare

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchReloadSignal reloads the full route registry on SIGUSR2 (§6), the
// restart-coordination hook external tooling uses after rebuilding route
// registrations. The goroutine exits when ctx is cancelled at shutdown.
func (s *Server) watchReloadSignal(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR2)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				n, err := s.registry.LoadAll()
				if err != nil {
					s.cfg.logger.Warn("routes:reload failed", "trigger", "SIGUSR2", "error", err)
					continue
				}
				s.cfg.logger.Info("routes:reloaded", "trigger", "SIGUSR2", "count", n)
			}
		}
	}()
}
