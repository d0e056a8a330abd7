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
	"encoding/json"
	"io"
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/wayfare-dev/wayfare/httperr"
)

// decodedBody is what C12 hands the pipeline controller for schema
// validation against a route's RouteSchema.Body: a JSON object/array
// (map[string]any or []any), a multi-map for urlencoded forms, a string for
// text bodies, or []byte for anything else.
type decodedBody struct {
	value       any
	contentType string
}

// decodeBody implements §4.12's per-content-type table. limits holds the
// byte ceiling for each content type, and the one for the resolved type is
// enforced while reading; body is the request body as the pipeline received
// it (no global bodylimit middleware is applied before this).
func decodeBody(contentType string, body io.Reader, limits bodyLimits) (decodedBody, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case mediaType == "application/json":
		return decodeJSON(body, limits.json)
	case mediaType == "application/x-www-form-urlencoded":
		return decodeForm(body, limits.form)
	case strings.HasPrefix(mediaType, "text/"):
		return decodeText(body, limits.text)
	default:
		return decodeRaw(body, limits.raw)
	}
}

func decodeJSON(body io.Reader, limit int64) (decodedBody, error) {
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return decodedBody{}, httperr.Wrap(httperr.KindUnprocessableEntity, err)
	}
	if int64(len(raw)) > limit {
		return decodedBody{}, httperr.New(httperr.KindPayloadTooLarge)
	}
	if len(raw) == 0 {
		return decodedBody{value: map[string]any{}, contentType: "application/json"}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return decodedBody{}, httperr.Wrap(httperr.KindUnprocessableEntity, err)
	}
	return decodedBody{value: v, contentType: "application/json"}, nil
}

func decodeForm(body io.Reader, limit int64) (decodedBody, error) {
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return decodedBody{}, httperr.Wrap(httperr.KindUnprocessableEntity, err)
	}
	if int64(len(raw)) > limit {
		return decodedBody{}, httperr.New(httperr.KindPayloadTooLarge)
	}

	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return decodedBody{}, httperr.Wrap(httperr.KindUnprocessableEntity, err)
	}
	return decodedBody{value: map[string][]string(values), contentType: "application/x-www-form-urlencoded"}, nil
}

func decodeText(body io.Reader, limit int64) (decodedBody, error) {
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return decodedBody{}, httperr.Wrap(httperr.KindUnprocessableEntity, err)
	}
	if int64(len(raw)) > limit {
		return decodedBody{}, httperr.New(httperr.KindPayloadTooLarge)
	}
	if !utf8.Valid(raw) {
		return decodedBody{}, httperr.New(httperr.KindUnprocessableEntity).WithTitle("invalid UTF-8 in text body")
	}
	return decodedBody{value: string(raw), contentType: "text/plain"}, nil
}

func decodeRaw(body io.Reader, limit int64) (decodedBody, error) {
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return decodedBody{}, httperr.Wrap(httperr.KindUnprocessableEntity, err)
	}
	if int64(len(raw)) > limit {
		return decodedBody{}, httperr.New(httperr.KindPayloadTooLarge)
	}
	return decodedBody{value: raw, contentType: "application/octet-stream"}, nil
}
