package recognizer

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docverify/internal/utils"
)

// Crops at least this much taller than wide are turned upright.
const verticalAspect = 1.5

// CropRegion cuts box out of img. Vertical crops are rotated 90 degrees
// counter-clockwise so the text line runs left to right.
func CropRegion(img image.Image, box utils.Box) (image.Image, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	crop := utils.CropImageBox(img, box)
	b := crop.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("region lies outside the image")
	}
	if float64(b.Dy()) >= verticalAspect*float64(b.Dx()) {
		crop = imaging.Rotate90(crop)
	}
	return crop, nil
}

// ResizeForRecognition scales img to the target height keeping its aspect
// ratio, clamps the width to maxWidth when positive, and right-pads with
// black to a multiple of padMultiple. It returns the padded image and the
// width of the scaled content.
func ResizeForRecognition(img image.Image, height, maxWidth, padMultiple int) (*image.NRGBA, int, error) {
	if img == nil {
		return nil, 0, errors.New("input image is nil")
	}
	if height <= 0 {
		return nil, 0, errors.New("target height must be positive")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, 0, errors.New("input image is empty")
	}
	w := max(1, int(math.Ceil(float64(b.Dx())*float64(height)/float64(b.Dy()))))
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	resized := imaging.Resize(img, w, height, imaging.Linear)

	padded := w
	if padMultiple > 1 && padded%padMultiple != 0 {
		padded += padMultiple - padded%padMultiple
	}
	if padded == w {
		return resized, w, nil
	}
	canvas := imaging.New(padded, height, color.Black)
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), w, nil
}

// NormalizeForRecognition converts img to a CHW float32 buffer scaled to
// [-1, 1].
func NormalizeForRecognition(img *image.NRGBA) ([]float32, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			o := x * 4
			i := y*w + x
			out[i] = float32(row[o])/127.5 - 1
			out[plane+i] = float32(row[o+1])/127.5 - 1
			out[2*plane+i] = float32(row[o+2])/127.5 - 1
		}
	}
	return out, w, h
}
