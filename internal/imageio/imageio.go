// Package imageio loads and saves images in the formats the CLI and server
// accept.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Error wraps a failed image operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("image %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// OutputFormats lists the format names accepted by Encode.
func OutputFormats() []string {
	return []string{"png", "jpeg", "jpg", "bmp", "tiff", "webp"}
}

// FormatFromPath derives an output format name from a file extension.
func FormatFromPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png", true
	case ".jpg", ".jpeg":
		return "jpeg", true
	case ".bmp":
		return "bmp", true
	case ".tif", ".tiff":
		return "tiff", true
	case ".webp":
		return "webp", true
	}
	return "", false
}

// Extension returns the file extension (with dot) for a format name.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return ".jpg"
	case "":
		return ".png"
	default:
		return "." + strings.ToLower(format)
	}
}

// Metadata captures lightweight file and pixel information.
type Metadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &Error{Op: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, Metadata{}, &Error{Op: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, Metadata{}, &Error{Op: "load", Err: err}
	}

	img, format, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, err
	}

	b := img.Bounds()
	return img, Metadata{
		Path:      path,
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// Decode reads an image in any registered format. WebP data the standard
// decoder rejects is retried with the libwebp decoder.
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", &Error{Op: "decode", Err: err}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}
	if isWebP(data) {
		if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return img, "webp", nil
		}
	}
	return nil, "", &Error{Op: "decode", Err: err}
}

// Encode writes img in the given format. quality applies to jpeg and webp.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	var err error
	switch strings.ToLower(format) {
	case "png", "":
		err = imaging.Encode(w, img, imaging.PNG)
	case "jpeg", "jpg":
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "bmp":
		err = imaging.Encode(w, img, imaging.BMP)
	case "tiff", "tif":
		err = imaging.Encode(w, img, imaging.TIFF)
	case "webp":
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		err = fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return &Error{Op: "encode", Err: err}
	}
	return nil
}

// Save encodes img to path, creating parent directories. An empty format is
// derived from the path extension.
func Save(img image.Image, path, format string, quality int) error {
	if format == "" {
		f, ok := FormatFromPath(path)
		if !ok {
			return &Error{Op: "save", Err: fmt.Errorf("cannot derive format from %s", path)}
		}
		format = f
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &Error{Op: "save", Err: err}
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path is provided by the user
	if err != nil {
		return &Error{Op: "save", Err: err}
	}
	if err := Encode(f, img, format, quality); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &Error{Op: "save", Err: err}
	}
	return nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
