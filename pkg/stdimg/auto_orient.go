package stdimg

import (
	"image"
)

// AutoOrient applies EXIF orientation to an image.Image and returns a new image.Image.
// orientation follows EXIF spec (1..8). If orientation is 1 or unknown, the image is returned as-is.
// Grayscale inputs stay *image.Gray; everything else is returned as *image.NRGBA.
func AutoOrient(img image.Image, orientation int) image.Image {
	if img == nil {
		return nil
	}
	if orientation <= 1 || orientation > 8 {
		return img
	}
	if g, ok := img.(*image.Gray); ok {
		return orientGray(g, orientation)
	}
	return orientNRGBA(ToNRGBA(img), orientation)
}

// orientedSize returns the destination dimensions for an orientation; 5..8 swap the axes.
func orientedSize(w, h, orientation int) (int, int) {
	if orientation >= 5 {
		return h, w
	}
	return w, h
}

// sourceCoord maps a destination pixel (x,y) back to the source pixel for an orientation.
// w and h are the source dimensions.
func sourceCoord(x, y, w, h, orientation int) (int, int) {
	switch orientation {
	case 2: // flop
		return w - 1 - x, y
	case 3: // rotate 180
		return w - 1 - x, h - 1 - y
	case 4: // flip
		return x, h - 1 - y
	case 5: // transpose
		return y, x
	case 6: // rotate 90 CW
		return y, h - 1 - x
	case 7: // transverse
		return w - 1 - y, h - 1 - x
	case 8: // rotate 90 CCW
		return w - 1 - y, x
	default:
		return x, y
	}
}

func orientNRGBA(src *image.NRGBA, orientation int) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	ow, oh := orientedSize(w, h, orientation)
	out := image.NewNRGBA(image.Rect(0, 0, ow, oh))
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			sx, sy := sourceCoord(x, y, w, h, orientation)
			srcIdx := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
			dstIdx := out.PixOffset(x, y)
			copy(out.Pix[dstIdx:dstIdx+4], src.Pix[srcIdx:srcIdx+4])
		}
	}
	return out
}

func orientGray(src *image.Gray, orientation int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	ow, oh := orientedSize(w, h, orientation)
	out := image.NewGray(image.Rect(0, 0, ow, oh))
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			sx, sy := sourceCoord(x, y, w, h, orientation)
			out.Pix[out.PixOffset(x, y)] = src.Pix[src.PixOffset(b.Min.X+sx, b.Min.Y+sy)]
		}
	}
	return out
}
