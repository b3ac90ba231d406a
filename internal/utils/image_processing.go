package utils

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints defines the constraints for image processing.
type ImageConstraints struct {
	MaxWidth  int
	MaxHeight int
	MinWidth  int
	MinHeight int
}

// DefaultImageConstraints returns the default constraints for detector input.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxWidth:  1280,
		MaxHeight: 1280,
		MinWidth:  32,
		MinHeight: 32,
	}
}

// ResizeImage scales an image down to fit the constraints, preserving aspect ratio,
// with both sides rounded to multiples of 32 for the detection model.
func ResizeImage(img image.Image, constraints ImageConstraints) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}

	scale := math.Min(float64(constraints.MaxWidth)/float64(width), float64(constraints.MaxHeight)/float64(height))
	if scale >= 1.0 {
		scale = 1.0
	}

	newWidth := roundTo32(int(float64(width) * scale))
	newHeight := roundTo32(int(float64(height) * scale))
	newWidth = max(newWidth, constraints.MinWidth)
	newHeight = max(newHeight, constraints.MinHeight)

	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), nil
}

func roundTo32(v int) int {
	r := (v + 16) / 32 * 32
	if r == 0 {
		return 32
	}
	return r
}

// NormalizeImage converts an image to an NCHW float32 buffer in [0,1] (RGB order).
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	width := nrgba.Bounds().Dx()
	height := nrgba.Bounds().Dy()
	plane := width * height
	tensor := make([]float32, 3*plane)

	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			i := y*width + x
			tensor[i] = float32(row[x*4]) / 255.0
			tensor[plane+i] = float32(row[x*4+1]) / 255.0
			tensor[2*plane+i] = float32(row[x*4+2]) / 255.0
		}
	}
	return tensor, width, height, nil
}
