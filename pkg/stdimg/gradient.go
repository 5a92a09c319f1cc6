package stdimg

import (
	"fmt"
	"image"
	"math"
)

const (
	// GradientBins is the number of unit-width magnitude bins. Magnitudes are bounded by
	// sqrt(255^2+255^2) ~= 360.62, so bin 360 is the last one and also holds [360, 361].
	GradientBins = 361

	// DefaultCutoffEpsilon is the proportion a bin must exceed to extend the display cutoff.
	DefaultCutoffEpsilon = 5e-4

	// MinDisplayCutoff is the lower bound of the display cutoff.
	MinDisplayCutoff = 200
)

// GradientField holds first-difference gradient magnitudes over the interior of a
// grayscale image. For an H x W source it is (H-2) x (W-2); sources smaller than 3x3
// produce an empty field. The field is read-only once built.
type GradientField struct {
	width  int
	height int
	mag    []float64
}

// NewGradientField computes, for every interior pixel (x, y),
//
//	gx = I(x+1, y) - I(x-1, y)
//	gy = I(x, y+1) - I(x, y-1)
//	magnitude = sqrt(gx^2 + gy^2)
//
// Differences are taken in int so they span [-255, 255] instead of wrapping.
func NewGradientField(src *image.Gray) *GradientField {
	if src == nil {
		return &GradientField{}
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return &GradientField{}
	}
	f := &GradientField{
		width:  w - 2,
		height: h - 2,
		mag:    make([]float64, (w-2)*(h-2)),
	}
	for y := 1; y < h-1; y++ {
		above := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y-1):]
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		below := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y+1):]
		out := f.mag[(y-1)*f.width:]
		for x := 1; x < w-1; x++ {
			gx := int(row[x+1]) - int(row[x-1])
			gy := int(below[x]) - int(above[x])
			out[x-1] = math.Sqrt(float64(gx*gx + gy*gy))
		}
	}
	return f
}

// Width returns the field width (source width - 2).
func (f *GradientField) Width() int { return f.width }

// Height returns the field height (source height - 2).
func (f *GradientField) Height() int { return f.height }

// Len returns the number of magnitudes in the field.
func (f *GradientField) Len() int { return len(f.mag) }

// At returns the magnitude at field coordinates (x, y), which correspond to
// source pixel (x+1, y+1).
func (f *GradientField) At(x, y int) float64 {
	return f.mag[y*f.width+x]
}

// Max returns the largest magnitude, or 0 for an empty field.
func (f *GradientField) Max() float64 {
	m := 0.0
	for _, v := range f.mag {
		if v > m {
			m = v
		}
	}
	return m
}

// GradientDistribution is a normalized gradient-magnitude histogram plus the derived
// display cutoff used as the chart's x-axis upper bound.
type GradientDistribution struct {
	Proportions [GradientBins]float64
	Cutoff      int
}

// GradientHistogram bins every magnitude into [k, k+1) and divides by the element count.
// epsilon <= 0 selects DefaultCutoffEpsilon. An empty field yields ErrDegenerateInput;
// a flat field is valid and puts all mass in bin 0.
func GradientHistogram(f *GradientField, epsilon float64) (GradientDistribution, error) {
	var out GradientDistribution
	if f == nil || f.Len() == 0 {
		out.Cutoff = MinDisplayCutoff
		return out, fmt.Errorf("gradient histogram: %w: empty gradient field", ErrDegenerateInput)
	}
	if epsilon <= 0 {
		epsilon = DefaultCutoffEpsilon
	}
	var counts [GradientBins]int
	for _, m := range f.mag {
		bin := int(m)
		if bin >= GradientBins {
			bin = GradientBins - 1
		}
		counts[bin]++
	}
	total := float64(f.Len())
	for i, c := range counts {
		out.Proportions[i] = float64(c) / total
	}
	out.Cutoff = DisplayCutoff(out.Proportions[:], epsilon)
	return out, nil
}

// DisplayCutoff scans from the last bin down and returns the first index whose proportion
// exceeds epsilon, never less than MinDisplayCutoff. When nothing exceeds epsilon the scan
// runs past index 0 and the result is MinDisplayCutoff.
func DisplayCutoff(proportions []float64, epsilon float64) int {
	index := len(proportions) - 1
	for index >= 0 && proportions[index] <= epsilon {
		index--
	}
	if index < MinDisplayCutoff {
		return MinDisplayCutoff
	}
	return index
}
