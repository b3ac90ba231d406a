package preprocess

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docverify/internal/utils"
)

// Result holds the decoded input and its enhanced counterpart. Scale maps
// Enhanced coordinates back to Original ones by division.
type Result struct {
	Original image.Image
	Enhanced *image.RGBA
	Scale    float64
}

// PreprocessFile decodes the image at path and enhances it.
func PreprocessFile(path string, opts Options) (*Result, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return Preprocess(img, opts)
}

// PreprocessBytes decodes an in-memory image and enhances it.
func PreprocessBytes(data []byte, opts Options) (*Result, error) {
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return Preprocess(img, opts)
}

// Preprocess runs the enhancement chain on img.
func Preprocess(img image.Image, opts Options) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &utils.ImageDecodeError{Source: "image", Err: fmt.Errorf("empty image")}
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preprocess options: %w", err)
	}

	res := &Result{Original: img, Scale: 1}
	work := img
	stage := func(name string, start time.Time) {
		slog.Debug("preprocess stage", "stage", name, "duration", time.Since(start))
	}

	if f := opts.ResizeFactor; f > 0 && f != 1 {
		start := time.Now()
		b := img.Bounds()
		w := max(1, int(math.Round(float64(b.Dx())*f)))
		h := max(1, int(math.Round(float64(b.Dy())*f)))
		work = imaging.Resize(img, w, h, imaging.CatmullRom)
		res.Scale = f
		stage("resize", start)
	}

	start := time.Now()
	gray := Grayscale(work)
	stage("grayscale", start)

	if opts.Denoise.Enabled {
		start = time.Now()
		gray = DenoiseNLMeans(gray, opts.Denoise.H, opts.Denoise.TemplateWindow, opts.Denoise.SearchWindow)
		stage("denoise", start)
	}
	if opts.CLAHE.Enabled {
		start = time.Now()
		gray = CLAHE(gray, opts.CLAHE.ClipLimit, opts.CLAHE.TilesX, opts.CLAHE.TilesY)
		stage("clahe", start)
	}
	if opts.Sharpen {
		start = time.Now()
		gray = Sharpen(gray)
		stage("sharpen", start)
	}
	if opts.CloseKernel > 1 {
		start = time.Now()
		gray = MorphClose(gray, opts.CloseKernel)
		stage("close", start)
	}

	res.Enhanced = ToRGBA(gray)
	return res, nil
}

// Grayscale converts img to 8-bit luma using BT.601 weights.
func Grayscale(img image.Image) *image.Gray {
	src := imaging.Grayscale(img)
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := y * src.Stride
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[di+x] = src.Pix[si+x*4]
		}
	}
	return dst
}

var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// Sharpen applies the 3x3 high-boost kernel with saturation.
func Sharpen(g *image.Gray) *image.Gray {
	return Grayscale(imaging.Convolve3x3(g, sharpenKernel, nil))
}

// ToRGBA expands a gray plane into three identical channels.
func ToRGBA(g *image.Gray) *image.RGBA {
	b := g.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := g.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			v := g.Pix[si+x]
			o := di + x*4
			dst.Pix[o] = v
			dst.Pix[o+1] = v
			dst.Pix[o+2] = v
			dst.Pix[o+3] = 0xff
		}
	}
	return dst
}

func clampIdx(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
