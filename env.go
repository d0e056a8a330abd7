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
	"os"
	"strings"
)

// envVar is the §6 NODE_ENV-equivalent: it selects auto-credential
// generation, debug logging, and production-mode validation strictness.
const envVar = "WAYFARE_ENV"

// EnvFromEnviron resolves the deployment Environment from WAYFARE_ENV,
// defaulting to EnvDevelopment when the variable is unset or holds a value
// other than "production"/"prod" or "test"/"testing" (spelled any case,
// surrounding spaces ignored). defaultConfig reads
// this as the baseline; WithEnvironment overrides it explicitly.
func EnvFromEnviron() Environment {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envVar))) {
	case "production", "prod":
		return EnvProduction
	case "test", "testing":
		return EnvTest
	default:
		return EnvDevelopment
	}
}
