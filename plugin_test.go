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
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfare-dev/wayfare/router"
)

// fakeHandle is a minimal ServerHandle for exercising the plugin manager
// without a full Server.
type fakeHandle struct {
	logger *slog.Logger
}

func (h *fakeHandle) SetService(name string, value any) {}
func (h *fakeHandle) Group(prefix string) *router.Group { return nil }
func (h *fakeHandle) Logger() *slog.Logger              { return h.logger }

func recordingPlugin(name string, calls *[]string) Plugin {
	return Plugin{
		Name:    name,
		Version: "1.0.0",
		Register: func(s ServerHandle) error {
			*calls = append(*calls, name+".register")
			return nil
		},
		Initialize: func(ctx context.Context, s ServerHandle) error {
			*calls = append(*calls, name+".init")
			return nil
		},
		OnServerStart: func(ctx context.Context, s ServerHandle) error {
			*calls = append(*calls, name+".start")
			return nil
		},
		OnServerStop: func(ctx context.Context, s ServerHandle) error {
			*calls = append(*calls, name+".stop")
			return nil
		},
		Terminate: func(ctx context.Context, s ServerHandle) error {
			*calls = append(*calls, name+".terminate")
			return nil
		},
	}
}

// TestPluginManager_S6LifecycleOrdering is spec.md's §8 S6 scenario: three
// plugins register/initialize/start forward, stop/terminate reverse.
func TestPluginManager_S6LifecycleOrdering(t *testing.T) {
	var calls []string
	handle := &fakeHandle{logger: slog.Default()}
	mgr := newPluginManager(PluginManagerOptions{ContinueOnError: true, Logger: slog.Default()})

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, mgr.Register(handle, recordingPlugin(name, &calls)))
	}
	require.NoError(t, mgr.Initialize(context.Background(), handle))
	require.NoError(t, mgr.OnServerStart(context.Background(), handle))
	require.NoError(t, mgr.OnServerStop(context.Background(), handle))
	require.NoError(t, mgr.Terminate(context.Background(), handle))

	assert.Equal(t, []string{
		"a.register", "b.register", "c.register",
		"a.init", "b.init", "c.init",
		"a.start", "b.start", "c.start",
		"c.stop", "b.stop", "a.stop",
		"c.terminate", "b.terminate", "a.terminate",
	}, calls)
}

// TestPluginManager_ContinueOnErrorRunsRemainingPhases matches S6's second
// half: if B.init fails and ContinueOnError=true, C.init still runs, and
// every registered plugin still gets a Terminate call in reverse order.
func TestPluginManager_ContinueOnErrorRunsRemainingPhases(t *testing.T) {
	var calls []string
	handle := &fakeHandle{logger: slog.Default()}
	mgr := newPluginManager(PluginManagerOptions{ContinueOnError: true, Logger: slog.Default()})

	a := recordingPlugin("a", &calls)
	b := recordingPlugin("b", &calls)
	b.Initialize = func(ctx context.Context, s ServerHandle) error {
		calls = append(calls, "b.init")
		return errors.New("boom")
	}
	c := recordingPlugin("c", &calls)

	for _, p := range []Plugin{a, b, c} {
		require.NoError(t, mgr.Register(handle, p))
	}
	require.NoError(t, mgr.Initialize(context.Background(), handle))
	require.NoError(t, mgr.Terminate(context.Background(), handle))

	assert.Contains(t, calls, "c.init")
	assert.Equal(t, []string{"c.terminate", "b.terminate", "a.terminate"},
		calls[len(calls)-3:])
}

// TestPluginManager_ContinueOnErrorFalseAborts verifies the opposite error
// policy: a failing phase propagates instead of being swallowed.
func TestPluginManager_ContinueOnErrorFalseAborts(t *testing.T) {
	var calls []string
	handle := &fakeHandle{logger: slog.Default()}
	mgr := newPluginManager(PluginManagerOptions{ContinueOnError: false, Logger: slog.Default()})

	a := recordingPlugin("a", &calls)
	b := recordingPlugin("b", &calls)
	b.Initialize = func(ctx context.Context, s ServerHandle) error {
		return errors.New("boom")
	}

	require.NoError(t, mgr.Register(handle, a))
	require.NoError(t, mgr.Register(handle, b))

	err := mgr.Initialize(context.Background(), handle)
	require.Error(t, err)
	var perr *PluginError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "b", perr.Plugin)
	assert.Equal(t, phaseInitialize, perr.Phase)
}

// TestPluginManager_OnErrorCallback verifies a custom error callback
// replaces the default log sink (§4.9).
func TestPluginManager_OnErrorCallback(t *testing.T) {
	var captured *PluginError
	handle := &fakeHandle{logger: slog.Default()}
	mgr := newPluginManager(PluginManagerOptions{
		ContinueOnError: true,
		OnError:         func(pe *PluginError) { captured = pe },
	})

	p := Plugin{
		Name:    "broken",
		Version: "0.1.0",
		Register: func(s ServerHandle) error {
			return errors.New("register failed")
		},
	}
	require.NoError(t, mgr.Register(handle, p))
	require.NotNil(t, captured)
	assert.Equal(t, "broken", captured.Plugin)
	assert.Equal(t, phaseRegister, captured.Phase)
}

func TestPlugin_ValidateIdentityRules(t *testing.T) {
	base := Plugin{Version: "1.0.0", Register: func(s ServerHandle) error { return nil }}

	cases := []struct {
		name    string
		mutate  func(p Plugin) Plugin
		wantErr bool
	}{
		{"valid", func(p Plugin) Plugin { p.Name = "metrics"; return p }, false},
		{"valid with digits and hyphens", func(p Plugin) Plugin { p.Name = "my-plugin-2"; return p }, false},
		{"empty name", func(p Plugin) Plugin { p.Name = ""; return p }, true},
		{"uppercase", func(p Plugin) Plugin { p.Name = "Metrics"; return p }, true},
		{"starts with digit", func(p Plugin) Plugin { p.Name = "1metrics"; return p }, true},
		{"reserved", func(p Plugin) Plugin { p.Name = "core"; return p }, true},
		{"missing register", func(p Plugin) Plugin { p.Name = "ok"; p.Register = nil; return p }, true},
		{"bad semver", func(p Plugin) Plugin { p.Name = "ok"; p.Version = "not-a-version"; return p }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.mutate(base)
			err := p.validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
