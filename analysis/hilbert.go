package analysis

import "github.com/genoscope/seqcompute/seq"

// HilbertResult maps sequence GC density onto a Hilbert curve: cell
// d of the curve covers one contiguous chunk of the sequence, and
// Cells[y*Side+x] holds that chunk's GC fraction. Hilbert mapping
// keeps genomically close regions spatially close in the raster.
type HilbertResult struct {
	Order int
	Side  int
	Cells []float64
}

// MaxHilbertOrder keeps the raster at most 1024x1024.
const MaxHilbertOrder = 10

// HilbertRaster rasterizes the sequence's GC fraction onto a Hilbert
// curve of the given order (side 2^order). Cells beyond the sequence
// end stay zero.
func HilbertRaster(b *seq.Buffer, order int) *HilbertResult {
	if order < 1 || order > MaxHilbertOrder {
		return nil
	}
	side := 1 << order
	cells := side * side
	n := b.Len()
	if n == 0 {
		return nil
	}
	chunk := (n + cells - 1) / cells

	r := &HilbertResult{
		Order: order,
		Side:  side,
		Cells: make([]float64, cells),
	}
	for d := 0; d < cells; d++ {
		start := d * chunk
		if start >= n {
			break
		}
		end := start + chunk
		if end > n {
			end = n
		}
		x, y := hilbertD2XY(order, d)
		r.Cells[y*side+x] = seq.GCContent(b, start, end-start)
	}
	return r
}

// hilbertD2XY converts a distance along the Hilbert curve of the
// given order to raster coordinates.
func hilbertD2XY(order, d int) (x, y int) {
	t := d
	for s := 1; s < 1<<order; s <<= 1 {
		rx := 1 & (t / 2)
		ry := 1 & (t ^ rx)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
		x += s * rx
		y += s * ry
		t /= 4
	}
	return
}
