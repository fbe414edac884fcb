package filedrop

import (
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/julienschmidt/httprouter"

	"storefront/logger"
	"storefront/utils"
)

const (
	FormField  = "image"
	maxUpload  = 10 << 20
	thumbWidth = 300
)

var (
	allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	allowedMIMEs      = map[string]bool{"image/jpeg": true, "image/png": true}
)

// Uploader stores product images under dir, each with a thumb-<name> companion.
type Uploader struct {
	dir string
	log *logger.Logger
}

func NewUploader(dir string, log *logger.Logger) *Uploader {
	return &Uploader{dir: dir, log: log}
}

func (u *Uploader) Dir() string { return u.dir }

// Upload handles POST /api/upload and answers with the public path as plain text.
func (u *Uploader) Upload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return utils.Validation("Unable to parse form")
	}
	file, header, err := r.FormFile(FormField)
	if err != nil {
		return utils.Validation("No image uploaded")
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return utils.Validation("Images only!")
	}
	mtype, err := mimetype.DetectReader(file)
	if err != nil || !allowedMIMEs[mtype.String()] {
		return utils.Validation("Images only!")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return utils.Internal("Could not read upload", err)
	}

	img, err := imaging.Decode(file)
	if err != nil {
		return utils.Validation("Images only!")
	}

	name, err := u.save(img, ext)
	if err != nil {
		return utils.Internal("Could not store upload", err)
	}
	u.log.Info("image uploaded", "file", name, "size", header.Size, "mime", mtype.String())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "/uploads/"+name)
	return nil
}

// save re-encodes img, which also drops any EXIF data, and writes its thumbnail.
func (u *Uploader) save(img image.Image, ext string) (string, error) {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := FormField + "-" + utils.GetUUID() + ext

	if err := imaging.Save(img, filepath.Join(u.dir, name)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}

	thumb := img
	if img.Bounds().Dx() > thumbWidth {
		thumb = imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	}
	if err := imaging.Save(thumb, filepath.Join(u.dir, "thumb-"+name)); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}
	return name, nil
}
