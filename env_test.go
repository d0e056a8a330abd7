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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvFromEnviron(t *testing.T) {
	cases := []struct {
		value string
		want  Environment
	}{
		{"production", EnvProduction},
		{"PROD", EnvProduction},
		{"  production  ", EnvProduction},
		{"test", EnvTest},
		{"Testing", EnvTest},
		{"", EnvDevelopment},
		{"staging", EnvDevelopment},
		{"development", EnvDevelopment},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("WAYFARE_ENV", tc.value)
			assert.Equal(t, tc.want, EnvFromEnviron())
		})
	}
}

func TestEnvFromEnviron_UnsetDefaultsToDevelopment(t *testing.T) {
	t.Setenv("WAYFARE_ENV", "")
	assert.Equal(t, EnvDevelopment, EnvFromEnviron())
}
