package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"semaphore/classroom/internal/operations"
	"semaphore/classroom/internal/storage"
)

// multipartOverhead leaves room for form fields next to the files.
const multipartOverhead = 1 << 20

var errMissingPayload = errors.New("request body is required")

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readPayload decodes the JSON part of a request and opens the uploaded
// files of field. Multipart requests carry the JSON in their "data" field;
// any other request is a plain JSON body without files. The returned
// cleanup closes every opened file.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request, field string, maxFiles int, out interface{}) ([]storage.File, func(), error) {
	noop := func() {}
	if !isMultipart(r) {
		if err := decodeJSON(r, out); err != nil {
			return nil, noop, operations.Invalid(operations.ErrInvalidRequest, err.Error())
		}
		return nil, noop, nil
	}

	limit := s.cfg.UploadMaxBytes*int64(maxFiles) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(s.cfg.UploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, operations.Invalid(operations.ErrFileTooLarge, "request body too large")
		}
		return nil, noop, operations.Invalid(operations.ErrInvalidRequest, err.Error())
	}
	if data := r.FormValue("data"); data != "" {
		decoder := json.NewDecoder(strings.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(out); err != nil {
			return nil, noop, operations.Invalid(operations.ErrInvalidRequest, "data: "+err.Error())
		}
	}

	headers := r.MultipartForm.File[field]
	if len(headers) > maxFiles {
		return nil, noop, operations.Invalid(operations.ErrTooManyFiles, fmt.Sprintf("at most %d files", maxFiles))
	}
	files, cleanup, err := openFiles(headers)
	if err != nil {
		return nil, noop, err
	}
	return files, cleanup, nil
}

func openFiles(headers []*multipart.FileHeader) ([]storage.File, func(), error) {
	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	files := make([]storage.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("open upload %s: %w", header.Filename, err)
		}
		opened = append(opened, f)
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		files = append(files, storage.File{
			Name:     header.Filename,
			MimeType: contentType,
			Size:     header.Size,
			Content:  f,
		})
	}
	return files, cleanup, nil
}
