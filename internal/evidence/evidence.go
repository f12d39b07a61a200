// Package evidence uploads payment and delivery photos to the blob store and
// falls back to inline data URLs when the store is unreachable.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind tags what a photo proves.
type Kind string

const (
	KindDelivery Kind = "delivery"
	KindPayment  Kind = "payment"
)

// Source tells where the stored evidence value came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceInline Source = "inline"
)

var (
	// ErrNoPhoto means the caller supplied no image at all.
	ErrNoPhoto = errors.New("evidence: photo required")
	// ErrNotImage means the payload is not a recognised image.
	ErrNotImage = errors.New("evidence: payload is not an image")
	// ErrUploadFailed means neither the store nor the inline fallback produced a value.
	ErrUploadFailed = errors.New("evidence: upload failed")
	// ErrInlineTooLarge means the photo exceeds the inline fallback limit.
	ErrInlineTooLarge = errors.New("evidence: photo too large for inline fallback")
)

// Photo is a binary image as received from the client.
type Photo struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Empty reports whether no image bytes were provided.
func (p Photo) Empty() bool {
	return len(p.Data) == 0
}

// MediaType returns the declared content type, sniffing the bytes when absent.
func (p Photo) MediaType() string {
	ct := strings.TrimSpace(p.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(p.Data)
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.ToLower(ct)
}

// Store persists a photo and returns a publicly resolvable URL.
type Store interface {
	Put(ctx context.Context, kind Kind, photo Photo) (string, error)
}

// Observer receives one notification per capture outcome.
type Observer interface {
	ObserveEvidence(kind, source string)
}

// UploadError carries both failures when the remote upload and the inline
// fallback were unusable.
type UploadError struct {
	Upload error
	Inline error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("evidence: upload failed (%v) and inline fallback failed (%v)", e.Upload, e.Inline)
}

// Is matches ErrUploadFailed.
func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

// Unwrap exposes both underlying failures.
func (e *UploadError) Unwrap() []error {
	return []error{e.Upload, e.Inline}
}

// Result is the value to persist on the order record.
type Result struct {
	Value     string
	Source    Source
	UploadErr error
}
