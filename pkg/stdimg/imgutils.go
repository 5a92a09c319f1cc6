package stdimg

import (
	"image"
	"image/color"
	"math"
)

// ToNRGBA converts any image.Image to *image.NRGBA (non-premultiplied RGBA).
func ToNRGBA(src image.Image) *image.NRGBA {
	if src == nil {
		return nil
	}
	if n, ok := src.(*image.NRGBA); ok {
		out := image.NewNRGBA(n.Rect)
		rowLen := 4 * n.Rect.Dx()
		for y := n.Rect.Min.Y; y < n.Rect.Max.Y; y++ {
			copy(out.Pix[out.PixOffset(n.Rect.Min.X, y):][:rowLen], n.Pix[n.PixOffset(n.Rect.Min.X, y):][:rowLen])
		}
		return out
	}
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = c.A
		}
	}
	return out
}

// ToGray converts an image to 8-bit grayscale.
//
// JPEG sources (*image.YCbCr) contribute their luma plane unchanged, which is what a
// grayscale JPEG decode produces. Everything else goes through the fixed-point BT.601
// weights 0.299/0.587/0.114 with 14 fractional bits.
func ToGray(src image.Image) *image.Gray {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	out := image.NewGray(b)
	switch s := src.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			copy(out.Pix[out.PixOffset(b.Min.X, y):out.PixOffset(b.Max.X, y)], s.Pix[s.PixOffset(b.Min.X, y):s.PixOffset(b.Max.X, y)])
		}
		return out
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Pix[out.PixOffset(x, y)] = s.Y[s.YOffset(x, y)]
			}
		}
		return out
	}
	n := ToNRGBA(src)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := n.PixOffset(x, y)
			out.Pix[out.PixOffset(x, y)] = grayFromRGB(n.Pix[i+0], n.Pix[i+1], n.Pix[i+2])
		}
	}
	return out
}

// grayFromRGB applies Y = 0.299 R + 0.587 G + 0.114 B in 14-bit fixed point.
func grayFromRGB(r, g, b uint8) uint8 {
	const (
		shift = 14
		wr    = 4899
		wg    = 9617
		wb    = 1868
	)
	y := (wr*uint32(r) + wg*uint32(g) + wb*uint32(b) + 1<<(shift-1)) >> shift
	return uint8(y)
}

// clampInt clamps v to [lo,hi]
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampFloatToUint8 rounds v to the nearest integer and saturates it to [0,255].
func clampFloatToUint8(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(clampInt(int(math.Round(v)), 0, 255))
}
