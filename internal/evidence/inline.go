package evidence

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeInline renders photo as a base64 data URL, refusing payloads above max bytes.
func EncodeInline(photo Photo, max int) (string, error) {
	if photo.Empty() {
		return "", ErrNoPhoto
	}
	if max > 0 && len(photo.Data) > max {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrInlineTooLarge, len(photo.Data), max)
	}
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(photo.MediaType()) + base64.StdEncoding.EncodedLen(len(photo.Data)))
	b.WriteString("data:")
	b.WriteString(photo.MediaType())
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(photo.Data))
	return b.String(), nil
}

// IsInline reports whether a stored evidence value is an embedded data URL.
func IsInline(value string) bool {
	return strings.HasPrefix(value, "data:")
}
