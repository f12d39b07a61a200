package evidence

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxUploadBytes bounds multipart photo uploads.
const DefaultMaxUploadBytes = 10 << 20

// FromRequest reads an optional photo from multipart field. A request without
// the field yields an empty Photo and no error.
func FromRequest(r *http.Request, field string, maxBytes int64) (Photo, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return Photo{}, nil
		}
		return Photo{}, fmt.Errorf("parse multipart: %w", err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return Photo{}, nil
		}
		return Photo{}, err
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return Photo{}, err
	}
	if int64(len(data)) > maxBytes {
		return Photo{}, fmt.Errorf("photo exceeds %d bytes", maxBytes)
	}
	return Photo{Data: data, ContentType: header.Header.Get("Content-Type"), Filename: header.Filename}, nil
}
