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
	"log/slog"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/wayfare-dev/wayfare/router"
)

// pluginNamePattern is the §3 identity rule: lowercase, starting with a
// letter, hyphens allowed.
var pluginNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// reservedPluginNames may not be used by a registered plugin (§3).
var reservedPluginNames = map[string]bool{
	"wayfare":  true,
	"core":     true,
	"internal": true,
}

// ServerHandle is the subset of server capability a plugin needs: installing
// services, adding routes, and logging through the server's logger. It exists so
// plugins never hold a full *Server reference, breaking the "cyclic
// reference risk" DESIGN NOTE (§9) the same way the donor avoids closures
// over the whole app.
type ServerHandle interface {
	// SetService installs a value reachable from every request's
	// ctx.Services map under name.
	SetService(name string, value any)
	// Group returns a route group rooted at prefix, for plugins that add
	// their own routes (metrics endpoints, health checks) alongside the
	// file-discovered tree.
	Group(prefix string) *router.Group
	// Logger is the server's configured logger, for plugins that want to
	// log through the same sink as the rest of the pipeline.
	Logger() *slog.Logger
}

// Plugin is the lifecycle-bound extension point of §3/§4.9. Register is
// mandatory; the remaining phases are optional no-ops when left nil.
type Plugin struct {
	Name    string
	Version string

	Register      func(s ServerHandle) error
	Initialize    func(ctx context.Context, s ServerHandle) error
	OnServerStart func(ctx context.Context, s ServerHandle) error
	OnServerStop  func(ctx context.Context, s ServerHandle) error
	Terminate     func(ctx context.Context, s ServerHandle) error
}

// validate checks the §3 identity rules: name pattern, reserved names, and
// semver version, via the donor's own version-parsing dependency
// (Masterminds/semver/v3).
func (p Plugin) validate() error {
	if p.Name == "" {
		return fmt.Errorf("plugin: name is required")
	}
	if !pluginNamePattern.MatchString(p.Name) {
		return fmt.Errorf("plugin %q: name must match %s", p.Name, pluginNamePattern.String())
	}
	if reservedPluginNames[p.Name] {
		return fmt.Errorf("plugin %q: name is reserved", p.Name)
	}
	if p.Register == nil {
		return fmt.Errorf("plugin %q: Register is required", p.Name)
	}
	if _, err := semver.NewVersion(p.Version); err != nil {
		return fmt.Errorf("plugin %q: version %q is not valid semver: %w", p.Name, p.Version, err)
	}
	return nil
}

// pluginPhase identifies one of the five ordered transitions of §4.9,
// solely for log messages and the error-policy callback.
type pluginPhase string

const (
	phaseRegister      pluginPhase = "register"
	phaseInitialize    pluginPhase = "initialize"
	phaseOnServerStart pluginPhase = "onServerStart"
	phaseOnServerStop  pluginPhase = "onServerStop"
	phaseTerminate     pluginPhase = "terminate"
)

// PluginError is passed to a custom error callback (§4.9) so it can tell
// which plugin and phase failed.
type PluginError struct {
	Plugin string
	Phase  pluginPhase
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %q: %s: %v", e.Plugin, e.Phase, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// PluginManagerOptions configures the lifecycle manager's error policy
// (§4.9).
type PluginManagerOptions struct {
	// ContinueOnError, when true (the default), logs a phase failure and
	// proceeds to the next plugin. When false, the phase aborts and the
	// failure propagates to the caller (startup or shutdown).
	ContinueOnError bool
	// OnError, if set, replaces the default log sink for phase failures.
	// It is called regardless of ContinueOnError.
	OnError func(*PluginError)
	Logger  *slog.Logger
}

// pluginManager runs the five-phase state machine of §4.9: register and
// initialize and onServerStart in forward registration order; onServerStop
// and terminate in reverse. It is the server's sole owner of the registered
// plugin list (§3 "server exclusively owns registered plugins").
type pluginManager struct {
	plugins []Plugin
	opts    PluginManagerOptions
}

func newPluginManager(opts PluginManagerOptions) *pluginManager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &pluginManager{opts: opts}
}

// reportError routes a phase failure through the configured error policy.
// It always reports (log or callback); ContinueOnError only decides
// whether the caller should treat it as fatal.
func (m *pluginManager) reportError(name string, phase pluginPhase, err error) {
	pe := &PluginError{Plugin: name, Phase: phase, Err: err}
	if m.opts.OnError != nil {
		m.opts.OnError(pe)
		return
	}
	m.opts.Logger.Error("plugin lifecycle phase failed",
		"plugin", name, "phase", string(phase), "error", err)
}

// Register validates and appends p to the plugin list (§4.9's "register"
// phase runs forward, as plugins are supplied"). Registration itself is
// append-only and frozen once Running (§5).
func (m *pluginManager) Register(handle ServerHandle, p Plugin) error {
	if err := p.validate(); err != nil {
		return err
	}
	if err := p.Register(handle); err != nil {
		m.reportError(p.Name, phaseRegister, err)
		if !m.opts.ContinueOnError {
			return &PluginError{Plugin: p.Name, Phase: phaseRegister, Err: err}
		}
	}
	m.plugins = append(m.plugins, p)
	return nil
}

// Initialize runs every plugin's Initialize hook in forward registration
// order (§4.9). initialize may read services/state a preceding plugin's
// Register installed (§4.9 "Dependencies").
func (m *pluginManager) Initialize(ctx context.Context, handle ServerHandle) error {
	for _, p := range m.plugins {
		if p.Initialize == nil {
			continue
		}
		if err := p.Initialize(ctx, handle); err != nil {
			m.reportError(p.Name, phaseInitialize, err)
			if !m.opts.ContinueOnError {
				return &PluginError{Plugin: p.Name, Phase: phaseInitialize, Err: err}
			}
		}
	}
	return nil
}

// OnServerStart runs every plugin's OnServerStart hook in forward order,
// assuming the listener is already bound (§4.9).
func (m *pluginManager) OnServerStart(ctx context.Context, handle ServerHandle) error {
	for _, p := range m.plugins {
		if p.OnServerStart == nil {
			continue
		}
		if err := p.OnServerStart(ctx, handle); err != nil {
			m.reportError(p.Name, phaseOnServerStart, err)
			if !m.opts.ContinueOnError {
				return &PluginError{Plugin: p.Name, Phase: phaseOnServerStart, Err: err}
			}
		}
	}
	return nil
}

// OnServerStop runs every plugin's OnServerStop hook in reverse
// registration order (§4.9).
func (m *pluginManager) OnServerStop(ctx context.Context, handle ServerHandle) error {
	for i := len(m.plugins) - 1; i >= 0; i-- {
		p := m.plugins[i]
		if p.OnServerStop == nil {
			continue
		}
		if err := p.OnServerStop(ctx, handle); err != nil {
			m.reportError(p.Name, phaseOnServerStop, err)
			if !m.opts.ContinueOnError {
				return &PluginError{Plugin: p.Name, Phase: phaseOnServerStop, Err: err}
			}
		}
	}
	return nil
}

// Terminate runs every plugin's Terminate hook in reverse registration
// order (§4.9). Terminate MUST release any resource acquired in Register or
// Initialize; this runs even for plugins registered after one that failed
// to initialize, so every registered plugin gets a chance to release.
func (m *pluginManager) Terminate(ctx context.Context, handle ServerHandle) error {
	for i := len(m.plugins) - 1; i >= 0; i-- {
		p := m.plugins[i]
		if p.Terminate == nil {
			continue
		}
		if err := p.Terminate(ctx, handle); err != nil {
			m.reportError(p.Name, phaseTerminate, err)
			if !m.opts.ContinueOnError {
				return &PluginError{Plugin: p.Name, Phase: phaseTerminate, Err: err}
			}
		}
	}
	return nil
}
