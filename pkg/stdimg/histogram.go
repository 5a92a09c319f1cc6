package stdimg

import (
	"errors"
	"fmt"
	"image"
)

// ErrDegenerateInput is returned when a distribution or rescale would divide by zero:
// an all-black color image, an empty image, or an empty or perfectly flat gradient field.
var ErrDegenerateInput = errors.New("degenerate input")

// Channel identifies a color component. Channels are ordered Blue, Green, Red.
type Channel int

const (
	Blue Channel = iota
	Green
	Red
)

// Channels lists every channel in distribution order.
var Channels = [3]Channel{Blue, Green, Red}

func (c Channel) String() string {
	switch c {
	case Blue:
		return "Blue"
	case Green:
		return "Green"
	case Red:
		return "Red"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// ColorProportions holds the share of total color energy per channel, indexed by Channel.
type ColorProportions [3]float64

// Max returns the largest proportion.
func (p ColorProportions) Max() float64 {
	m := p[0]
	for _, v := range p[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// GrayLevelCount is the number of 8-bit intensity levels.
const GrayLevelCount = 256

// GrayDistribution holds the proportion of pixels at each intensity level.
type GrayDistribution [GrayLevelCount]float64

// ColorEnergy sums every channel over all pixels and normalizes the sums to proportions.
// Alpha is ignored. A fully black (or empty) image has no energy and yields ErrDegenerateInput.
func ColorEnergy(src *image.NRGBA) (ColorProportions, error) {
	var out ColorProportions
	if src == nil {
		return out, fmt.Errorf("color energy: %w: nil image", ErrDegenerateInput)
	}
	var energy [3]uint64
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := src.PixOffset(x, y)
			energy[Red] += uint64(src.Pix[i+0])
			energy[Green] += uint64(src.Pix[i+1])
			energy[Blue] += uint64(src.Pix[i+2])
		}
	}
	total := energy[0] + energy[1] + energy[2]
	if total == 0 {
		return out, fmt.Errorf("color energy: %w: total energy is zero", ErrDegenerateInput)
	}
	for _, c := range Channels {
		out[c] = float64(energy[c]) / float64(total)
	}
	return out, nil
}

// GrayLevels counts pixels per intensity level and divides by the pixel count.
func GrayLevels(src *image.Gray) (GrayDistribution, error) {
	var out GrayDistribution
	if src == nil {
		return out, fmt.Errorf("gray levels: %w: nil image", ErrDegenerateInput)
	}
	var counts [GrayLevelCount]int
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)]
		for _, v := range row {
			counts[v]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return out, fmt.Errorf("gray levels: %w: empty image", ErrDegenerateInput)
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(total)
	}
	return out, nil
}
