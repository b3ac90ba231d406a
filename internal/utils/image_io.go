package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// ErrImageDecode marks inputs that do not decode to a raster image.
var ErrImageDecode = errors.New("image not found or undecodable")

// ImageDecodeError reports which source failed to decode and why.
type ImageDecodeError struct {
	Source string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ImageDecodeError) Unwrap() []error {
	return []error{ErrImageDecode, e.Err}
}

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

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

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file, returning the image and metadata.
// The extension is not trusted; any registered decoder may claim the file.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageDecodeError{Source: "path", Err: errors.New("empty path")}
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a caller-provided upload path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Source: path, Err: err}
	}

	img, meta, err := decode(path, data)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	meta.Path = path
	return img, meta, nil
}

// DecodeImage decodes an in-memory image buffer.
func DecodeImage(data []byte) (image.Image, ImageMetadata, error) {
	return decode("bytes", data)
}

func decode(source string, data []byte) (image.Image, ImageMetadata, error) {
	if len(data) == 0 {
		return nil, ImageMetadata{}, &ImageDecodeError{Source: source, Err: errors.New("empty input")}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, &ImageDecodeError{Source: source, Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ImageMetadata{}, &ImageDecodeError{Source: source, Err: errors.New("zero-sized image")}
	}
	return img, ImageMetadata{
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}
