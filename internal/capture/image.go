// Package capture turns a receipt image into a pre-filled expense draft.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	apperrors "spendsnap/internal/errors"
)

// MaxImageBytes is the largest image accepted for extraction.
const MaxImageBytes int64 = 5 << 20

// Default file names for images that arrive without one.
const (
	DefaultCameraName  = "camera_image.jpg"
	DefaultGalleryName = "gallery_image.jpg"
)

// AllowedImageTypes are the MIME types accepted for extraction.
var AllowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png"}

// ErrCancelled is returned by a Picker when the user backs out.
var ErrCancelled = errors.New("capture: user cancelled")

// ImageRef describes a selected image. Size is 0 when unknown.
type ImageRef struct {
	URI      string
	MIMEType string
	FileName string
	Size     int64
}

// Picker acquires an image from the user.
type Picker interface {
	Pick(ctx context.Context) (ImageRef, error)
}

// PickerFunc adapts a function to the Picker interface.
type PickerFunc func(ctx context.Context) (ImageRef, error)

func (f PickerFunc) Pick(ctx context.Context) (ImageRef, error) { return f(ctx) }

// ValidateImage checks that img names an image of an allowed type and size.
// A zero size or empty MIME type is not checked.
func ValidateImage(img ImageRef, maxBytes int64) error {
	if img.URI == "" {
		return apperrors.ErrNoImage
	}
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}
	if img.Size > maxBytes {
		return apperrors.WithMessage(apperrors.ErrImageTooLarge,
			fmt.Sprintf("Image size must be less than %dMB", maxBytes>>20))
	}
	if img.MIMEType != "" && !allowedType(img.MIMEType) {
		return apperrors.ErrUnsupportedImage
	}
	return nil
}

// allowedType matches on the subtype, so "image/x-png" and "image/jpeg;q=1"
// are accepted.
func allowedType(mime string) bool {
	mime = strings.ToLower(mime)
	for _, t := range AllowedImageTypes {
		if strings.Contains(mime, t[strings.IndexByte(t, '/')+1:]) {
			return true
		}
	}
	return false
}

// IsValidImageFormat reports whether name has a jpg, jpeg or png extension.
func IsValidImageFormat(name string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// FormatFileSize renders a byte count for display, e.g. "1.5 MiB".
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// FilePicker picks a fixed path from the local filesystem. An empty Path
// counts as a cancellation.
type FilePicker struct {
	Path string
}

// Pick stats the file and sniffs its content type.
func (p FilePicker) Pick(ctx context.Context) (ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return ImageRef{}, err
	}
	if strings.TrimSpace(p.Path) == "" {
		return ImageRef{}, ErrCancelled
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		return ImageRef{}, apperrors.Wrap(apperrors.ErrNoImage, err)
	}
	if info.IsDir() {
		return ImageRef{}, apperrors.WithMessage(apperrors.ErrNoImage, p.Path+" is a directory")
	}

	mime, err := sniff(p.Path)
	if err != nil {
		return ImageRef{}, apperrors.Wrap(apperrors.ErrNoImage, err)
	}
	name := filepath.Base(p.Path)
	if name == "." || name == string(filepath.Separator) {
		name = DefaultCameraName
	}
	return ImageRef{URI: p.Path, MIMEType: mime, FileName: name, Size: info.Size()}, nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	mime := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime, nil
}

// openImage opens the image behind ref. Only local paths and file:// URIs
// are supported.
func openImage(ref ImageRef) (io.ReadCloser, error) {
	return os.Open(strings.TrimPrefix(ref.URI, "file://"))
}
