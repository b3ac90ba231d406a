package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/utils"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func noisyGray(w, h int, base uint8, amp int, seed int64) *image.Gray {
	r := rand.New(rand.NewSource(seed))
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		v := int(base) + r.Intn(2*amp+1) - amp
		g.Pix[i] = uint8(max(0, min(255, v)))
	}
	return g
}

func variance(g *image.Gray) float64 {
	var sum, sq float64
	for _, v := range g.Pix {
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	n := float64(len(g.Pix))
	mean := sum / n
	return sq/n - mean*mean
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.InDelta(t, 2.5, opts.ResizeFactor, 1e-9)
	assert.InDelta(t, 10.0, opts.Denoise.H, 1e-9)
	assert.Equal(t, 7, opts.Denoise.TemplateWindow)
	assert.Equal(t, 21, opts.Denoise.SearchWindow)
	assert.InDelta(t, 2.0, opts.CLAHE.ClipLimit, 1e-9)
	assert.Equal(t, 8, opts.CLAHE.TilesX)
	assert.Equal(t, 1, opts.CloseKernel)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative resize", func(o *Options) { o.ResizeFactor = -1 }},
		{"even template", func(o *Options) { o.Denoise.TemplateWindow = 6 }},
		{"search smaller than template", func(o *Options) { o.Denoise.SearchWindow = 5 }},
		{"zero strength", func(o *Options) { o.Denoise.H = 0 }},
		{"zero clip", func(o *Options) { o.CLAHE.ClipLimit = 0 }},
		{"zero tiles", func(o *Options) { o.CLAHE.TilesY = 0 }},
		{"negative kernel", func(o *Options) { o.CloseKernel = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			assert.Error(t, o.Validate())
		})
	}

	o := DefaultOptions()
	o.Denoise = DenoiseOptions{}
	assert.NoError(t, o.Validate(), "disabled steps are not validated")
}

func TestGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	g := Grayscale(img)
	assert.Equal(t, uint8(76), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), g.GrayAt(1, 0).Y)
}

func TestDenoiseNLMeans(t *testing.T) {
	t.Run("uniform image is unchanged", func(t *testing.T) {
		out := DenoiseNLMeans(uniformGray(12, 9, 120), 10, 7, 21)
		for _, v := range out.Pix {
			assert.Equal(t, uint8(120), v)
		}
	})

	t.Run("noise variance drops", func(t *testing.T) {
		in := noisyGray(24, 24, 128, 12, 1)
		out := DenoiseNLMeans(in, 10, 3, 7)
		assert.Less(t, variance(out), variance(in))
	})

	t.Run("edges survive", func(t *testing.T) {
		g := uniformGray(20, 10, 20)
		for y := 0; y < 10; y++ {
			for x := 10; x < 20; x++ {
				g.Pix[y*g.Stride+x] = 230
			}
		}
		out := DenoiseNLMeans(g, 10, 3, 7)
		assert.Less(t, out.GrayAt(2, 5).Y, uint8(60))
		assert.Greater(t, out.GrayAt(17, 5).Y, uint8(190))
	})
}

func TestCLAHE(t *testing.T) {
	t.Run("spreads a narrow histogram", func(t *testing.T) {
		in := noisyGray(256, 256, 120, 10, 2)
		out := CLAHE(in, 2.0, 8, 8)
		assert.Greater(t, variance(out), variance(in))
	})

	t.Run("tiny images clamp the grid", func(t *testing.T) {
		out := CLAHE(uniformGray(3, 2, 50), 2.0, 8, 8)
		assert.Equal(t, image.Rect(0, 0, 3, 2), out.Bounds())
	})

	t.Run("monotone mapping", func(t *testing.T) {
		g := image.NewGray(image.Rect(0, 0, 16, 16))
		for i := range g.Pix {
			g.Pix[i] = uint8(i)
		}
		out := CLAHE(g, 2.0, 1, 1)
		for i := 1; i < len(out.Pix); i++ {
			assert.GreaterOrEqual(t, out.Pix[i], out.Pix[i-1])
		}
	})
}

func TestClipHistogram(t *testing.T) {
	var hist [256]int
	hist[10] = 1000
	clipHistogram(&hist, 100)
	total := 0
	for _, c := range hist {
		total += c
	}
	assert.Equal(t, 1000, total, "clipping preserves the pixel count")
	assert.LessOrEqual(t, hist[10], 100+4)
}

func TestSharpen(t *testing.T) {
	flat := Sharpen(uniformGray(5, 5, 90))
	for _, v := range flat.Pix {
		assert.Equal(t, uint8(90), v)
	}

	g := uniformGray(5, 5, 100)
	g.Pix[2*g.Stride+2] = 150
	out := Sharpen(g)
	assert.Equal(t, uint8(255), out.GrayAt(2, 2).Y)
	assert.Less(t, out.GrayAt(1, 2).Y, uint8(100))
}

func TestMorphClose(t *testing.T) {
	g := uniformGray(7, 7, 200)
	g.Pix[3*g.Stride+3] = 0

	same := MorphClose(g, 1)
	assert.Equal(t, g.Pix, same.Pix)
	same.Pix[0] = 1
	assert.Equal(t, uint8(200), g.Pix[0], "k=1 returns a copy")

	closed := MorphClose(g, 3)
	assert.Equal(t, uint8(200), closed.GrayAt(3, 3).Y, "closing fills a one pixel hole")
}

func TestPreprocess(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for i := range src.Pix {
		src.Pix[i] = 180
	}

	opts := DefaultOptions()
	opts.Denoise = DenoiseOptions{Enabled: true, H: 10, TemplateWindow: 3, SearchWindow: 5}
	res, err := Preprocess(src, opts)
	require.NoError(t, err)
	assert.Same(t, image.Image(src), res.Original)
	assert.Equal(t, image.Rect(0, 0, 50, 25), res.Enhanced.Bounds())
	assert.InDelta(t, 2.5, res.Scale, 1e-9)

	r, g, b, _ := res.Enhanced.At(10, 10).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)

	opts.ResizeFactor = 1
	res, err = Preprocess(src, opts)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), res.Enhanced.Bounds())
	assert.InDelta(t, 1.0, res.Scale, 1e-9)
}

func TestPreprocess_DecodeFailures(t *testing.T) {
	_, err := PreprocessBytes([]byte("not an image"), DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrImageDecode))

	_, err = PreprocessFile(filepath.Join(t.TempDir(), "missing.png"), DefaultOptions())
	assert.True(t, errors.Is(err, utils.ErrImageDecode))

	_, err = Preprocess(nil, DefaultOptions())
	assert.True(t, errors.Is(err, utils.ErrImageDecode))
}

func TestPreprocessFileAndBytes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	data := pngBytes(t, img)
	opts := DefaultOptions()
	opts.Denoise.Enabled = false

	res, err := PreprocessBytes(data, opts)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Enhanced.Bounds().Dx())

	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	res, err = PreprocessFile(path, opts)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Enhanced.Bounds().Dy())
}
