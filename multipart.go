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
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/wayfare-dev/wayfare/httperr"
)

// MultipartStrategy selects how C12 persists an uploaded file part.
type MultipartStrategy int

const (
	// StrategyMemory buffers the part's bytes, bounded by maxFieldSize (or
	// maxFileSize, when that is smaller).
	StrategyMemory MultipartStrategy = iota
	// StrategyStream exposes the part as an io.Reader to the handler. The
	// part is spooled to a temp file rather than held in memory.
	StrategyStream
	// StrategyTemp persists the part to a temp file via os.CreateTemp and
	// registers a cleanup task to remove it.
	StrategyTemp
)

// MultipartFile is one file part of a decoded multipart/form-data body.
type MultipartFile struct {
	FieldName   string
	Filename    string
	ContentType string
	Size        int64

	// Data holds the part's bytes under StrategyMemory.
	Data []byte
	// Reader streams the part's bytes under StrategyStream. The bytes are
	// spooled to a temp file while the multipart stream is consumed (the
	// underlying part is drained before the handler runs), so the reader
	// stays valid until the form's cleanup batch runs.
	Reader io.Reader
	// Path holds the temp file's path under StrategyTemp.
	Path string
}

// MultipartForm is the decoded result of a multipart/form-data body: plain
// fields and file parts, keyed by form field name.
type MultipartForm struct {
	Fields map[string][]string
	Files  map[string][]MultipartFile

	cleanup []func()
}

// Cleanup runs every registered temp-file removal task on a best-effort
// basis (§4.12, §5 "Temp-file cleanup tasks ... executed via a best-effort
// batch on completion or failure"). Errors are swallowed; cleanup never
// fails a request that has already been served.
func (f *MultipartForm) Cleanup() {
	for _, fn := range f.cleanup {
		fn()
	}
}

// ErrNoMultipartData is returned when a multipart body carried no boundary
// or produced zero parts.
var ErrNoMultipartData = errors.New("wayfare: no valid multipart data found")

// decodeMultipart drives mime/multipart.Reader directly over body (§4.12:
// the stdlib reader already implements the boundary/headers/content state
// machine this component needs). strategy picks how file parts are
// persisted; limits bounds file size, total size, file count, and
// non-file field size.
func decodeMultipart(contentType string, body io.Reader, strategy MultipartStrategy, limits multipartLimits) (*MultipartForm, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["boundary"] == "" {
		return nil, httperr.Wrap(httperr.KindUnprocessableEntity, ErrNoMultipartData).WithTitle(ErrNoMultipartData.Error())
	}

	reader := multipart.NewReader(body, params["boundary"])
	form := &MultipartForm{
		Fields: make(map[string][]string),
		Files:  make(map[string][]MultipartFile),
	}

	var (
		totalSize int64
		fileCount int
		sawPart   bool
	)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			form.Cleanup()
			return nil, httperr.Wrap(httperr.KindUnprocessableEntity, err)
		}
		sawPart = true

		if part.FileName() == "" {
			value, readErr := readLimited(part, limits.maxFieldSize)
			part.Close()
			if readErr != nil {
				form.Cleanup()
				return nil, readErr
			}
			form.Fields[part.FormName()] = append(form.Fields[part.FormName()], string(value))
			continue
		}

		fileCount++
		if fileCount > limits.maxFiles {
			part.Close()
			form.Cleanup()
			return nil, httperr.New(httperr.KindPayloadTooLarge).WithTitle("too many files in multipart body")
		}

		fileLimit := limits.maxFileSize
		if strategy == StrategyMemory && limits.maxFieldSize < fileLimit {
			fileLimit = limits.maxFieldSize
		}
		mf, size, err := persistPart(part, strategy, fileLimit, form)
		part.Close()
		if err != nil {
			form.Cleanup()
			return nil, err
		}

		totalSize += size
		if totalSize > limits.maxTotalSize {
			form.Cleanup()
			return nil, httperr.New(httperr.KindPayloadTooLarge).WithTitle("multipart body exceeds total size limit")
		}

		form.Files[mf.FieldName] = append(form.Files[mf.FieldName], mf)
	}

	if !sawPart {
		return nil, httperr.Wrap(httperr.KindUnprocessableEntity, ErrNoMultipartData).WithTitle(ErrNoMultipartData.Error())
	}

	return form, nil
}

// readLimited reads up to limit+1 bytes, raising PAYLOAD_TOO_LARGE if the
// extra byte is present (the same probe-read trick bodylimit.limitedReader
// uses against Content-Length lies).
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, httperr.Wrap(httperr.KindUnprocessableEntity, err)
	}
	if int64(len(data)) > limit {
		return nil, httperr.New(httperr.KindPayloadTooLarge)
	}
	return data, nil
}

// persistPart applies one of the three §4.12 persistence strategies to a
// single file part, sniffing its effective content type via
// gabriel-vasile/mimetype when the part's declared type is absent or
// generic.
func persistPart(part *multipart.Part, strategy MultipartStrategy, maxFileSize int64, form *MultipartForm) (MultipartFile, int64, error) {
	mf := MultipartFile{
		FieldName:   part.FormName(),
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
	}

	switch strategy {
	case StrategyStream:
		tmp, err := os.CreateTemp("", "wayfare-upload-*")
		if err != nil {
			return MultipartFile{}, 0, httperr.Wrap(httperr.KindInternal, err)
		}
		form.cleanup = append(form.cleanup, func() {
			tmp.Close()
			os.Remove(tmp.Name())
		})

		n, err := io.Copy(tmp, io.LimitReader(part, maxFileSize+1))
		if err != nil {
			return MultipartFile{}, 0, httperr.Wrap(httperr.KindInternal, err)
		}
		if n > maxFileSize {
			return MultipartFile{}, 0, httperr.New(httperr.KindPayloadTooLarge).WithTitle(fmt.Sprintf("file %q exceeds size limit", mf.Filename))
		}
		if needsSniff(mf.ContentType) {
			if sniffed, err := mimetype.DetectFile(tmp.Name()); err == nil {
				mf.ContentType = sniffed.String()
			}
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return MultipartFile{}, 0, httperr.Wrap(httperr.KindInternal, err)
		}

		mf.Reader = tmp
		mf.Size = n
		return mf, n, nil

	case StrategyTemp:
		tmp, err := os.CreateTemp("", "wayfare-upload-*")
		if err != nil {
			return MultipartFile{}, 0, httperr.Wrap(httperr.KindInternal, err)
		}
		form.cleanup = append(form.cleanup, func() { os.Remove(tmp.Name()) })

		n, err := io.Copy(tmp, io.LimitReader(part, maxFileSize+1))
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return MultipartFile{}, 0, httperr.Wrap(httperr.KindInternal, err)
		}
		if n > maxFileSize {
			return MultipartFile{}, 0, httperr.New(httperr.KindPayloadTooLarge).WithTitle(fmt.Sprintf("file %q exceeds size limit", mf.Filename))
		}

		mf.Path = tmp.Name()
		mf.Size = n
		if sniffed, err := mimetype.DetectFile(tmp.Name()); err == nil && needsSniff(mf.ContentType) {
			mf.ContentType = sniffed.String()
		}
		return mf, n, nil

	default: // StrategyMemory
		data, err := readLimited(part, maxFileSize)
		if err != nil {
			return MultipartFile{}, 0, err
		}
		mf.Data = data
		mf.Size = int64(len(data))
		if needsSniff(mf.ContentType) {
			mf.ContentType = mimetype.Detect(data).String()
		}
		return mf, mf.Size, nil
	}
}

// needsSniff reports whether declared is empty or the generic fallback
// type browsers send for unknown files, per §4.12.
func needsSniff(declared string) bool {
	return declared == "" || declared == "application/octet-stream"
}

