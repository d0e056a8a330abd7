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

package schema

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createUser struct {
	Email string `json:"email" validate:"required,email"`
	Age   int    `json:"age" validate:"gte=0,lte=150"`
}

func TestStructSchema_ParseValidBody(t *testing.T) {
	s := FromStruct[createUser]("")
	out, issues := s.Parse(map[string]any{"email": "ada@example.com", "age": float64(30)})
	require.Empty(t, issues)
	assert.Equal(t, "ada@example.com", out.Email)
	assert.Equal(t, 30, out.Age)
}

func TestStructSchema_ParseReportsFieldIssuesByJSONName(t *testing.T) {
	s := FromStruct[createUser]("")
	_, issues := s.Parse(map[string]any{"email": "not-an-email", "age": float64(9999)})
	require.Len(t, issues, 2)

	byField := map[string]Issue{}
	for _, i := range issues {
		byField[i.Field] = i
	}
	assert.Contains(t, byField, "email")
	assert.Contains(t, byField, "age")
	assert.Contains(t, byField["email"].Messages[0], "valid email")
}

func TestStructSchema_ParseQueryValuesCoercesSingleAndMulti(t *testing.T) {
	type filter struct {
		Tag  string   `json:"tag" validate:"required"`
		Tags []string `json:"tags"`
	}
	s := FromStruct[filter]("")
	raw := map[string][]string{
		"tag":  {"go"},
		"tags": {"a", "b"},
	}
	out, issues := s.Parse(raw)
	require.Empty(t, issues)
	assert.Equal(t, "go", out.Tag)
	assert.Equal(t, []string{"a", "b"}, out.Tags)
}

func TestStructSchema_ParseURLValuesDirectly(t *testing.T) {
	type filter struct {
		Q string `json:"q" validate:"required"`
	}
	s := FromStruct[filter]("")
	values := url.Values{"q": []string{"term"}}
	out, issues := s.Parse(values)
	require.Empty(t, issues)
	assert.Equal(t, "term", out.Q)
}

func TestStructSchema_ParseMalformedInputReturnsIssueWithoutPanicking(t *testing.T) {
	s := FromStruct[createUser]("")
	_, issues := s.Parse(make(chan int)) // json.Marshal fails on a channel
	require.Len(t, issues, 1)
	assert.Empty(t, issues[0].Field)
}

func TestAdapt_ValidateSectionBridgesToRouterSchema(t *testing.T) {
	routerSchema := Adapt(FromStruct[createUser](""))

	v, issues := routerSchema.ValidateSection(map[string]any{"email": "ada@example.com", "age": float64(1)})
	require.Empty(t, issues)
	out, ok := v.(createUser)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", out.Email)

	_, issues = routerSchema.ValidateSection(map[string]any{"email": "", "age": float64(1)})
	require.NotEmpty(t, issues)
}

func TestHumanizeTag_CoversKnownTags(t *testing.T) {
	type minMax struct {
		A string `json:"a" validate:"min=3,max=5"`
		B string `json:"b" validate:"len=4"`
		C string `json:"c" validate:"oneof=x y"`
	}
	s := FromStruct[minMax]("")
	_, issues := s.Parse(map[string]any{"a": "z", "b": "toolong", "c": "nope"})
	require.Len(t, issues, 3)
}
