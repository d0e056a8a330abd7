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

// Package httperr implements the fixed error envelope and error-kind
// taxonomy of C8: every failure that reaches a client is normalized to
//
//	{ "type", "title", "status", "correlationId", "timestamp", "details"? }
//
// independent of where in the pipeline it originated (schema rejection,
// handler error, panic, or routing miss).
package httperr
