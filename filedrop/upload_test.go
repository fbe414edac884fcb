package filedrop

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/logger"
	"storefront/utils"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func run(u *Uploader, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	utils.ErrorResponder{}.Handle(u.Upload)(rec, req, nil)
	return rec
}

func TestUploadStoresImageAndThumbnail(t *testing.T) {
	dir := t.TempDir()
	u := NewUploader(dir, logger.Discard())

	rec := run(u, uploadRequest(t, "image", "Phone.PNG", pngBytes(t, 600, 400)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	path := rec.Body.String()
	assert.True(t, strings.HasPrefix(path, "/uploads/image-"))
	assert.True(t, strings.HasSuffix(path, ".png"))

	name := strings.TrimPrefix(path, "/uploads/")
	_, err := os.Stat(filepath.Join(dir, name))
	require.NoError(t, err)

	thumb, err := imaging.Open(filepath.Join(dir, "thumb-"+name))
	require.NoError(t, err)
	assert.Equal(t, 300, thumb.Bounds().Dx())
	assert.Equal(t, 200, thumb.Bounds().Dy())
}

func TestUploadKeepsSmallImagesAsThumbnails(t *testing.T) {
	dir := t.TempDir()
	u := NewUploader(dir, logger.Discard())

	rec := run(u, uploadRequest(t, "image", "icon.png", pngBytes(t, 120, 80)))
	require.Equal(t, http.StatusOK, rec.Code)

	thumb, err := imaging.Open(filepath.Join(dir, "thumb-"+strings.TrimPrefix(rec.Body.String(), "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, 120, thumb.Bounds().Dx())
}

func TestUploadRejectsNonImages(t *testing.T) {
	u := NewUploader(t.TempDir(), logger.Discard())

	tests := []struct {
		name     string
		field    string
		filename string
		data     []byte
	}{
		{"gif extension", "image", "anim.gif", pngBytes(t, 10, 10)},
		{"text renamed to png", "image", "notes.png", []byte("just some plain text, not an image")},
		{"wrong field", "file", "photo.png", pngBytes(t, 10, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := run(u, uploadRequest(t, tt.field, tt.filename, tt.data))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	entries, err := os.ReadDir(u.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
