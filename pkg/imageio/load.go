// Package imageio decodes input images and encodes edge maps and figures.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"

	"github.com/Fepozopo/imghist/pkg/stdimg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDecode            = errors.New("decode error")
)

// Mode selects how a decoded image is presented to the extractors.
type Mode int

const (
	// ModeColor yields *image.NRGBA.
	ModeColor Mode = iota
	// ModeGrayscale yields *image.Gray.
	ModeGrayscale
)

func (m Mode) String() string {
	if m == ModeGrayscale {
		return "grayscale"
	}
	return "color"
}

// Info describes a decoded file.
type Info struct {
	Path        string
	Format      string
	Width       int
	Height      int
	Orientation int
}

// SniffFormat identifies an image container from its leading bytes. It returns ""
// for anything it does not recognise.
func SniffFormat(b []byte) string {
	switch {
	case len(b) >= 3 && bytes.Equal(b[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case len(b) >= 8 && bytes.Equal(b[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case len(b) >= 6 && (bytes.Equal(b[:6], []byte("GIF87a")) || bytes.Equal(b[:6], []byte("GIF89a"))):
		return "gif"
	case len(b) >= 2 && bytes.Equal(b[:2], []byte("BM")):
		return "bmp"
	case len(b) >= 4 && (bytes.Equal(b[:4], []byte("II*\x00")) || bytes.Equal(b[:4], []byte("MM\x00*"))):
		return "tiff"
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return "webp"
	}
	return ""
}

// Decode reads and decodes the file at path without any color conversion. The
// returned Info carries the EXIF orientation for JPEG files (1 otherwise).
func Decode(path string) (image.Image, Info, error) {
	info := Info{Path: path, Orientation: 1}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, info, fmt.Errorf("open %q: %w", path, ErrFileNotFound)
		}
		return nil, info, fmt.Errorf("read %q: %w", path, err)
	}
	info.Format = SniffFormat(b)
	if info.Format == "" {
		return nil, info, fmt.Errorf("open %q: %w", path, ErrUnsupportedFormat)
	}
	if info.Format == "jpeg" {
		if o, err := jpegOrientation(b); err == nil && o >= 1 && o <= 8 {
			info.Orientation = o
		}
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, info, fmt.Errorf("decode %q: %w: %v", path, ErrDecode, err)
	}
	return img, info, nil
}

// Convert turns a decoded image into the buffer type for mode and applies the EXIF
// orientation recorded in info. Info's width and height are updated to the result.
func Convert(img image.Image, info *Info, mode Mode) image.Image {
	var out image.Image
	if mode == ModeGrayscale {
		out = stdimg.ToGray(img)
	} else {
		out = stdimg.ToNRGBA(img)
	}
	out = stdimg.AutoOrient(out, info.Orientation)
	b := out.Bounds()
	info.Width, info.Height = b.Dx(), b.Dy()
	return out
}

// Load decodes the file at path and converts it for mode.
func Load(path string, mode Mode) (image.Image, Info, error) {
	img, info, err := Decode(path)
	if err != nil {
		return nil, info, err
	}
	return Convert(img, &info, mode), info, nil
}

// LoadColor loads path as *image.NRGBA.
func LoadColor(path string) (*image.NRGBA, Info, error) {
	img, info, err := Load(path, ModeColor)
	if err != nil {
		return nil, info, err
	}
	return img.(*image.NRGBA), info, nil
}

// LoadGray loads path as *image.Gray.
func LoadGray(path string) (*image.Gray, Info, error) {
	img, info, err := Load(path, ModeGrayscale)
	if err != nil {
		return nil, info, err
	}
	return img.(*image.Gray), info, nil
}
