// Package plot turns operation results into images: dot-plot match
// grids and Hilbert GC-density rasters rendered to grayscale, with
// high-quality resampling to arbitrary display sizes.
package plot

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// DotPlot renders a match-count grid as a grayscale image. Intensity
// is log-scaled so sparse off-diagonal matches stay visible next to
// the main diagonal.
func DotPlot(counts []uint32, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	var max uint32
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	if max == 0 {
		return img
	}
	scale := 255.0 / math.Log1p(float64(max))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := counts[y*width+x]
			if c == 0 {
				continue
			}
			img.Pix[y*img.Stride+x] = uint8(math.Log1p(float64(c)) * scale)
		}
	}
	return img
}

// Hilbert renders per-cell GC density (0..1) along a Hilbert curve
// raster as a grayscale image of side x side pixels.
func Hilbert(cells []float64, side int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i, v := range cells {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		x := i % side
		y := i / side
		img.Pix[y*img.Stride+x] = uint8(v*255 + 0.5)
	}
	return img
}

// Resize resamples an image to the given display size with
// Catmull-Rom interpolation.
func Resize(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
