package evidence

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubStore struct {
	url   string
	err   error
	calls int
}

func (s *stubStore) Put(ctx context.Context, kind Kind, photo Photo) (string, error) {
	s.calls++
	return s.url, s.err
}

type countingObserver struct {
	seen []string
}

func (o *countingObserver) ObserveEvidence(kind, source string) {
	o.seen = append(o.seen, kind+":"+source)
}

func TestCaptureRequiresPhoto(t *testing.T) {
	c := NewCapturer(CapturerConfig{Store: &stubStore{url: "https://blob/x.png"}})
	_, err := c.Capture(context.Background(), KindDelivery, Photo{})
	assert.ErrorIs(t, err, ErrNoPhoto)
	assert.NotErrorIs(t, err, ErrUploadFailed)
}

func TestCaptureRejectsNonImage(t *testing.T) {
	c := NewCapturer(CapturerConfig{Store: &stubStore{url: "https://blob/x"}})
	_, err := c.Capture(context.Background(), KindDelivery, Photo{Data: []byte("just text")})
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestCaptureUsesRemoteURL(t *testing.T) {
	store := &stubStore{url: "https://blob/delivery/1.png"}
	obs := &countingObserver{}
	c := NewCapturer(CapturerConfig{Store: store, Observer: obs})

	res, err := c.Capture(context.Background(), KindDelivery, Photo{Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "https://blob/delivery/1.png", res.Value)
	assert.Equal(t, SourceRemote, res.Source)
	assert.NoError(t, res.UploadErr)
	assert.Equal(t, []string{"delivery:remote"}, obs.seen)
}

func TestCaptureFallsBackInline(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	obs := &countingObserver{}
	c := NewCapturer(CapturerConfig{Store: store, Observer: obs})

	res, err := c.Capture(context.Background(), KindPayment, Photo{Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, SourceInline, res.Source)
	assert.True(t, IsInline(res.Value))
	assert.True(t, strings.HasPrefix(res.Value, "data:image/png;base64,"))
	assert.EqualError(t, res.UploadErr, "connection refused")
	assert.Equal(t, []string{"payment:inline"}, obs.seen)
}

func TestCaptureFailsWhenBothPathsFail(t *testing.T) {
	store := &stubStore{err: errors.New("503")}
	c := NewCapturer(CapturerConfig{Store: store, InlineMaxBytes: 4})

	_, err := c.Capture(context.Background(), KindDelivery, Photo{Data: pngHeader})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.ErrorIs(t, err, ErrInlineTooLarge)

	var upErr *UploadError
	require.True(t, errors.As(err, &upErr))
	assert.EqualError(t, upErr.Upload, "503")
}

func TestCaptureWithoutStoreGoesInline(t *testing.T) {
	c := NewCapturer(CapturerConfig{})
	res, err := c.Capture(context.Background(), KindDelivery, Photo{Data: pngHeader, ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, SourceInline, res.Source)
}

func TestHTTPStorePut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "delivery", r.FormValue("kind"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
		assert.True(t, strings.HasPrefix(header.Filename, "delivery/"))
		assert.True(t, strings.HasSuffix(header.Filename, ".png"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.example/delivery/abc.png"}`))
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL+"/", time.Second)
	url, err := store.Put(context.Background(), KindDelivery, Photo{Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/delivery/abc.png", url)
}

func TestHTTPStorePutErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("case") {
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, time.Second)
	_, err := store.Put(context.Background(), KindPayment, Photo{Data: pngHeader})
	assert.ErrorContains(t, err, "status 502")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer empty.Close()
	_, err = NewHTTPStore(empty.URL, time.Second).Put(context.Background(), KindPayment, Photo{Data: pngHeader})
	assert.ErrorContains(t, err, "missing url")
}

func TestFromRequest(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("photo", "proof.png")
	require.NoError(t, err)
	_, _ = part.Write(pngHeader)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	photo, err := FromRequest(req, "photo", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "proof.png", photo.Filename)
	assert.Equal(t, "image/png", photo.MediaType())

	// JSON or empty bodies are not an error; they simply carry no photo.
	plain := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	plain.Header.Set("Content-Type", "application/json")
	photo, err = FromRequest(plain, "photo", 1<<20)
	require.NoError(t, err)
	assert.True(t, photo.Empty())
}
