package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fepozopo/imghist/pkg/logger"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// OutputFormats lists the extensions Write can encode, without the leading dot.
var OutputFormats = []string{"png", "jpg", "jpeg", "bmp", "tif", "tiff", "gif"}

// SupportedOutput reports whether ext (with or without a leading dot) can be encoded.
func SupportedOutput(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range OutputFormats {
		if f == ext {
			return true
		}
	}
	return false
}

// Encode writes img to w in the given format ("png", "jpeg"/"jpg", "bmp", "tiff"/"tif", "gif").
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		return png.Encode(w, img)
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "gif":
		return gif.Encode(w, img, nil)
	default:
		return fmt.Errorf("encode %q: %w", format, ErrUnsupportedFormat)
	}
}

// Writer persists images to disk, creating parent directories as needed.
type Writer struct {
	Log logger.Logger
}

// NewWriter returns a Writer that reports through log; a nil log discards messages.
func NewWriter(log logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{Log: log}
}

// Write encodes img to path using the format implied by the file extension.
// An existing file is overwritten after a warning is logged.
func (w *Writer) Write(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("write %q: nil image", path)
	}
	ext := filepath.Ext(path)
	if !SupportedOutput(ext) {
		return fmt.Errorf("write %q: %w", path, ErrUnsupportedFormat)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	if _, err := os.Stat(path); err == nil {
		w.Log.Warning("ImageWriter", "file already exists and will be overwritten", logger.Fields{
			"path": path,
		})
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %q: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := Encode(f, img, ext); err != nil {
		f.Close()
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	w.Log.Debug("ImageWriter", "image saved", logger.Fields{
		"path":   path,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	})
	return nil
}
