// Package preprocess enhances document photos before OCR: upscaling,
// grayscale, non-local-means denoising, CLAHE, sharpening and closing.
package preprocess

import "fmt"

// DenoiseOptions configures the non-local-means filter.
type DenoiseOptions struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	H              float64 `mapstructure:"h" yaml:"h" json:"h"`
	TemplateWindow int     `mapstructure:"template_window" yaml:"template_window" json:"template_window"`
	SearchWindow   int     `mapstructure:"search_window" yaml:"search_window" json:"search_window"`
}

// CLAHEOptions configures contrast-limited adaptive histogram equalization.
type CLAHEOptions struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ClipLimit float64 `mapstructure:"clip_limit" yaml:"clip_limit" json:"clip_limit"`
	TilesX    int     `mapstructure:"tiles_x" yaml:"tiles_x" json:"tiles_x"`
	TilesY    int     `mapstructure:"tiles_y" yaml:"tiles_y" json:"tiles_y"`
}

// Options configures the enhancement chain.
type Options struct {
	// ResizeFactor scales both axes with Catmull-Rom. Values <= 0 or == 1
	// leave the size unchanged.
	ResizeFactor float64        `mapstructure:"resize_factor" yaml:"resize_factor" json:"resize_factor"`
	Denoise      DenoiseOptions `mapstructure:"denoise" yaml:"denoise" json:"denoise"`
	CLAHE        CLAHEOptions   `mapstructure:"clahe" yaml:"clahe" json:"clahe"`
	Sharpen      bool           `mapstructure:"sharpen" yaml:"sharpen" json:"sharpen"`
	// CloseKernel is the square structuring element size for closing.
	CloseKernel int `mapstructure:"close_kernel" yaml:"close_kernel" json:"close_kernel"`
}

// DefaultOptions returns the settings tuned for ID card photos.
func DefaultOptions() Options {
	return Options{
		ResizeFactor: 2.5,
		Denoise: DenoiseOptions{
			Enabled:        true,
			H:              10,
			TemplateWindow: 7,
			SearchWindow:   21,
		},
		CLAHE: CLAHEOptions{
			Enabled:   true,
			ClipLimit: 2.0,
			TilesX:    8,
			TilesY:    8,
		},
		Sharpen:     true,
		CloseKernel: 1,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.ResizeFactor < 0 || o.ResizeFactor > 8 {
		return fmt.Errorf("resize factor must be within [0, 8], got %v", o.ResizeFactor)
	}
	if o.Denoise.Enabled {
		if o.Denoise.H <= 0 {
			return fmt.Errorf("denoise strength must be positive, got %v", o.Denoise.H)
		}
		if o.Denoise.TemplateWindow < 1 || o.Denoise.TemplateWindow%2 == 0 {
			return fmt.Errorf("denoise template window must be odd and positive, got %d", o.Denoise.TemplateWindow)
		}
		if o.Denoise.SearchWindow < o.Denoise.TemplateWindow || o.Denoise.SearchWindow%2 == 0 {
			return fmt.Errorf("denoise search window must be odd and >= template window, got %d", o.Denoise.SearchWindow)
		}
	}
	if o.CLAHE.Enabled {
		if o.CLAHE.ClipLimit <= 0 {
			return fmt.Errorf("clahe clip limit must be positive, got %v", o.CLAHE.ClipLimit)
		}
		if o.CLAHE.TilesX < 1 || o.CLAHE.TilesY < 1 {
			return fmt.Errorf("clahe tile grid must be at least 1x1, got %dx%d", o.CLAHE.TilesX, o.CLAHE.TilesY)
		}
	}
	if o.CloseKernel < 0 {
		return fmt.Errorf("close kernel must not be negative, got %d", o.CloseKernel)
	}
	return nil
}
