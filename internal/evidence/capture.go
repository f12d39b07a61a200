package evidence

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// DefaultInlineMaxBytes bounds photos embedded as data URLs.
const DefaultInlineMaxBytes = 2 << 20

// Capturer turns a photo into a storable evidence value.
type Capturer struct {
	store     Store
	inlineMax int
	logger    *slog.Logger
	observer  Observer
}

// CapturerConfig groups Capturer dependencies. Store may be nil, in which case
// every capture goes straight to the inline fallback.
type CapturerConfig struct {
	Store          Store
	InlineMaxBytes int
	Logger         *slog.Logger
	Observer       Observer
}

// NewCapturer builds a Capturer.
func NewCapturer(cfg CapturerConfig) *Capturer {
	max := cfg.InlineMaxBytes
	if max <= 0 {
		max = DefaultInlineMaxBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{store: cfg.Store, inlineMax: max, logger: logger, observer: cfg.Observer}
}

// Capture uploads photo, degrading to an inline data URL when the upload fails.
// It fails with ErrUploadFailed only when both paths fail.
func (c *Capturer) Capture(ctx context.Context, kind Kind, photo Photo) (Result, error) {
	if photo.Empty() {
		return Result{}, ErrNoPhoto
	}
	if !strings.HasPrefix(photo.MediaType(), "image/") {
		return Result{}, ErrNotImage
	}

	var uploadErr error
	if c.store != nil {
		url, err := c.store.Put(ctx, kind, photo)
		if err == nil && url != "" {
			c.observe(kind, SourceRemote)
			return Result{Value: url, Source: SourceRemote}, nil
		}
		if err == nil {
			err = errors.New("evidence: store returned empty url")
		}
		uploadErr = err
	} else {
		uploadErr = errors.New("evidence: store not configured")
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	inline, err := EncodeInline(photo, c.inlineMax)
	if err != nil {
		c.observe(kind, "failed")
		return Result{}, &UploadError{Upload: uploadErr, Inline: err}
	}
	c.logger.Warn("evidence upload failed, stored inline",
		slog.String("kind", string(kind)),
		slog.Int("bytes", len(photo.Data)),
		slog.Any("error", uploadErr))
	c.observe(kind, SourceInline)
	return Result{Value: inline, Source: SourceInline, UploadErr: uploadErr}, nil
}

func (c *Capturer) observe(kind Kind, source Source) {
	if c.observer != nil {
		c.observer.ObserveEvidence(string(kind), string(source))
	}
}
