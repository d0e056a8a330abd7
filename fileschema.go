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
	"fmt"
	"mime"
	"strings"

	"github.com/wayfare-dev/wayfare/router"
)

// FileRule constrains the file parts of one multipart form field: size
// bounds in bytes and an accept list of exact MIME types or wildcards
// ("image/*"). Zero values leave the corresponding dimension unchecked.
type FileRule struct {
	MaxSize int64
	MinSize int64
	Accept  []string
}

// FilesSchema validates the file parts of a decoded multipart body, keyed
// by form field name. It implements router.Schema so a route can install
// it as its body schema; mismatches surface as field-level validation
// issues like any other body failure.
type FilesSchema map[string]FileRule

// ValidateSection implements router.Schema. raw must be the *MultipartForm
// the body intake decoded; any other shape means the route declared a file
// schema but the client sent a non-multipart body.
func (s FilesSchema) ValidateSection(raw any) (any, []router.FieldIssue) {
	form, ok := raw.(*MultipartForm)
	if !ok {
		return nil, []router.FieldIssue{{
			Field:        "",
			Messages:     []string{"expected a multipart/form-data body"},
			ExpectedType: "multipart/form-data",
		}}
	}

	var issues []router.FieldIssue
	for field, rule := range s {
		for _, file := range form.Files[field] {
			if msgs := rule.check(file); len(msgs) > 0 {
				issues = append(issues, router.FieldIssue{
					Field:         field,
					Messages:      msgs,
					RejectedValue: file.Filename,
				})
			}
		}
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return form, nil
}

func (r FileRule) check(file MultipartFile) []string {
	var msgs []string
	if r.MaxSize > 0 && file.Size > r.MaxSize {
		msgs = append(msgs, fmt.Sprintf("must be at most %d bytes", r.MaxSize))
	}
	if r.MinSize > 0 && file.Size < r.MinSize {
		msgs = append(msgs, fmt.Sprintf("must be at least %d bytes", r.MinSize))
	}
	if len(r.Accept) > 0 && !mimeAccepted(file.ContentType, r.Accept) {
		msgs = append(msgs, fmt.Sprintf("content type %q is not accepted", file.ContentType))
	}
	return msgs
}

// mimeAccepted reports whether declared matches any accept entry, exact or
// wildcard ("image/*" matches "image/png"). Parameters on the declared
// type ("; charset=...") are ignored.
func mimeAccepted(declared string, accept []string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	}
	for _, entry := range accept {
		entry = strings.ToLower(entry)
		if entry == mediaType {
			return true
		}
		if prefix, ok := strings.CutSuffix(entry, "/*"); ok &&
			strings.HasPrefix(mediaType, prefix+"/") {
			return true
		}
	}
	return false
}
