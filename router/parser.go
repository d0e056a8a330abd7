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

package router

import (
	"fmt"
	"path"
	"strings"
)

// ParsedRoute is the output of ParsePath (C1): the file's canonical route
// path plus the ordered parameter names discovered along the way.
type ParsedRoute struct {
	FilePath  string
	RoutePath string
	Params    []string
}

// ErrBadRoutePath is returned (wrapped) when a segment contains nested
// brackets, which the parser refuses to interpret.
type ErrBadRoutePath struct {
	Segment string
}

func (e *ErrBadRoutePath) Error() string {
	return fmt.Sprintf("BAD_ROUTE_PATH: segment %q contains nested brackets", e.Segment)
}

// ParsePath turns a filesystem path within routesDir into a ParsedRoute,
// applying the six rules of §4.1 in order.
func ParsePath(filePath, routesDir string) (ParsedRoute, error) {
	normalized := strings.ReplaceAll(filePath, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "file://")

	base := strings.ReplaceAll(routesDir, "\\", "/")
	rel := normalized
	if base != "" {
		if cut, ok := strings.CutPrefix(normalized, base); ok {
			rel = cut
		}
		// else: base is not a prefix — fall back to the path as given,
		// treated as already relative (§4.1 edge case).
	}

	if ext := path.Ext(rel); ext != "" {
		rel = strings.TrimSuffix(rel, ext)
	}

	var rawSegments []string
	for _, seg := range strings.Split(rel, "/") {
		if seg != "" {
			rawSegments = append(rawSegments, seg)
		}
	}

	var params []string
	segs := make([]string, 0, len(rawSegments))
	for _, seg := range rawSegments {
		if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
			inner := seg[1 : len(seg)-1]
			if strings.ContainsAny(inner, "[]") {
				return ParsedRoute{}, &ErrBadRoutePath{Segment: seg}
			}
			params = append(params, inner)
			segs = append(segs, ":"+inner)
			continue
		}
		if strings.ContainsAny(seg, "[]") {
			return ParsedRoute{}, &ErrBadRoutePath{Segment: seg}
		}
		segs = append(segs, seg)
	}

	routePath := "/" + strings.Join(segs, "/")
	routePath = strings.TrimSuffix(routePath, "/index")
	if routePath == "" {
		routePath = "/"
	}

	return ParsedRoute{FilePath: filePath, RoutePath: routePath, Params: params}, nil
}
