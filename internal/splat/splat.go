// Package splat maps sparse weighted samples onto a regular grid with a
// truncated Gaussian kernel density estimate.
//
// Bandwidth follows one rule for every dimensionality d:
//
//	deviation = axis_width / (2 * N^(1/d))
//
// which is width/(2N) on a line and width/(2*sqrt(N)) per axis on a plane.
// The kernel is evaluated at cell centres only within kernelBloom deviations
// of each sample; the rest is treated as zero.
package splat

import (
	"math"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// kernelBloom is the half-width of the evaluated kernel window in deviations.
const kernelBloom = 5.0

// Sample is a weighted position on one axis.
type Sample struct {
	Position float64
	Weight   float64
}

// Sample2D is a weighted position on a plane.
type Sample2D struct {
	X, Y   float64
	Weight float64
}

// Density is the normal probability density at x for N(mean, deviation^2).
func Density(x, deviation, mean float64) float64 {
	z := (x - mean) / deviation
	return math.Exp(-0.5*z*z) / (deviation * math.Sqrt(2*math.Pi))
}

// Bandwidth returns the kernel deviation for n samples over an axis of the
// given width in a space of dims dimensions.
func Bandwidth(width float64, n, dims int) float64 {
	return width / (2 * math.Pow(float64(n), 1/float64(dims)))
}

// axis describes one discretised dimension for a particular sample count.
type axis struct {
	low       float64
	step      float64
	cells     int
	deviation float64
	bloom     int
}

func newAxis(r domain.Range, cells, n, dims int) axis {
	lo, hi := r.Low, r.High
	if lo > hi {
		lo, hi = hi, lo
	}
	width := hi - lo
	step := width / float64(cells)
	dev := Bandwidth(width, n, dims)
	return axis{
		low:       lo,
		step:      step,
		cells:     cells,
		deviation: dev,
		bloom:     int(math.Round(kernelBloom * dev / step)),
	}
}

// span returns the clamped cell interval [from, to) influenced by a sample at
// pos, or ok=false when the window misses the grid entirely.
func (a axis) span(pos float64) (from, to int, ok bool) {
	if math.IsNaN(pos) {
		return 0, 0, false
	}
	reach := float64(a.bloom+1) * a.step
	if pos < a.low-reach || pos > a.low+float64(a.cells)*a.step+reach {
		return 0, 0, false
	}
	centre := int(math.Floor((pos - a.low) / a.step))
	from, to = centre-a.bloom, centre+a.bloom+1
	if from < 0 {
		from = 0
	}
	if to > a.cells {
		to = a.cells
	}
	return from, to, from < to
}

// weights fills buf with the kernel evaluated at cell centres [from, to).
func (a axis) weights(buf []float64, pos float64, from, to int) []float64 {
	buf = buf[:0]
	for i := from; i < to; i++ {
		centre := a.low + (float64(i)+0.5)*a.step
		buf = append(buf, Density(centre, a.deviation, pos))
	}
	return buf
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	if v != 0 {
		for i := range out {
			out[i] = v
		}
	}
	return out
}

// Splat1D estimates the weighted density of samples over cells cells of r.
// A zero-width range yields all ones; no samples yield all zeros.
func Splat1D(r domain.Range, cells int, samples []Sample) []float64 {
	if cells <= 0 {
		return []float64{}
	}
	if r.Degenerate() {
		return filled(cells, 1)
	}
	out := filled(cells, 0)
	if len(samples) == 0 {
		return out
	}

	ax := newAxis(r, cells, len(samples), 1)
	buf := make([]float64, 0, 2*ax.bloom+1)
	for _, s := range samples {
		from, to, ok := ax.span(s.Position)
		if !ok {
			continue
		}
		buf = ax.weights(buf, s.Position, from, to)
		for i, k := range buf {
			out[from+i] += s.Weight * k
		}
	}
	return out
}

// Splat2D is the planar counterpart of Splat1D using the separable product of
// two independent Gaussian kernels. The result is indexed [xCell][yCell].
func Splat2D(xr, yr domain.Range, xCells, yCells int, samples []Sample2D) [][]float64 {
	if xCells <= 0 || yCells <= 0 {
		return [][]float64{}
	}
	fill := 0.0
	if xr.Degenerate() || yr.Degenerate() {
		fill = 1
	}
	out := make([][]float64, xCells)
	for i := range out {
		out[i] = filled(yCells, fill)
	}
	if fill != 0 || len(samples) == 0 {
		return out
	}

	ax := newAxis(xr, xCells, len(samples), 2)
	ay := newAxis(yr, yCells, len(samples), 2)
	xBuf := make([]float64, 0, 2*ax.bloom+1)
	yBuf := make([]float64, 0, 2*ay.bloom+1)
	for _, s := range samples {
		xFrom, xTo, ok := ax.span(s.X)
		if !ok {
			continue
		}
		yFrom, yTo, ok := ay.span(s.Y)
		if !ok {
			continue
		}
		xBuf = ax.weights(xBuf, s.X, xFrom, xTo)
		yBuf = ay.weights(yBuf, s.Y, yFrom, yTo)
		for i, kx := range xBuf {
			row := out[xFrom+i]
			wk := s.Weight * kx
			for j, ky := range yBuf {
				row[yFrom+j] += wk * ky
			}
		}
	}
	return out
}
