package stdimg

import (
	"fmt"
	"image"
	"math"
)

// Sigmoid contrast parameters applied after rescaling magnitudes to [0,255]. Rescaled
// values near SigmoidMidpoint map to mid gray; SigmoidSteepness sets the transition width.
const (
	SigmoidMidpoint  = 80.0
	SigmoidSteepness = 25.0
)

// EdgeMap renders a gradient field as an 8-bit edge image of the same size.
// Magnitudes are scaled by 255/max, passed through
//
//	255 / (1 + exp(-(v - SigmoidMidpoint) / SigmoidSteepness))
//
// and rounded into [0,255]. Empty and flat (max == 0) fields return ErrDegenerateInput.
func EdgeMap(f *GradientField) (*image.Gray, error) {
	if f == nil || f.Len() == 0 {
		return nil, fmt.Errorf("edge map: %w: empty gradient field", ErrDegenerateInput)
	}
	maxMag := f.Max()
	if maxMag == 0 {
		return nil, fmt.Errorf("edge map: %w: flat gradient field", ErrDegenerateInput)
	}
	scale := 255 / maxMag
	out := image.NewGray(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			out.Pix[out.PixOffset(x, y)] = clampFloatToUint8(sigmoid(f.At(x, y) * scale))
		}
	}
	return out, nil
}

func sigmoid(v float64) float64 {
	return 255 / (1 + math.Exp(-(v-SigmoidMidpoint)/SigmoidSteepness))
}
