package imageio

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fepozopo/imghist/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// makeExifPayload builds a minimal EXIF APP1 payload (starting with "Exif\x00\x00")
// containing a single Orientation tag (0x0112) in IFD0 with the provided value.
func makeExifPayload(orientation uint16) []byte {
	buf := &bytes.Buffer{}
	buf.Write([]byte("Exif\x00\x00"))
	buf.Write([]byte{'I', 'I'})
	_ = binary.Write(buf, binary.LittleEndian, uint16(0x2A))
	_ = binary.Write(buf, binary.LittleEndian, uint32(8))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(0x0112))
	_ = binary.Write(buf, binary.LittleEndian, uint16(3))
	_ = binary.Write(buf, binary.LittleEndian, uint32(1))
	_ = binary.Write(buf, binary.LittleEndian, orientation)
	_ = binary.Write(buf, binary.LittleEndian, uint16(0))
	_ = binary.Write(buf, binary.LittleEndian, uint32(0))
	return buf.Bytes()
}

// makeJPEGWithOrientation encodes a w x h image and splices an APP1 EXIF segment after SOI.
func makeJPEGWithOrientation(t *testing.T, w, h int, orientation uint16) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), 128, 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}))
	raw := buf.Bytes()

	payload := makeExifPayload(orientation)
	seg := []byte{0xFF, 0xE1, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	out := append([]byte{}, raw[:2]...)
	out = append(out, seg...)
	out = append(out, payload...)
	return append(out, raw[2:]...)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestSniffFormat(t *testing.T) {
	cases := map[string][]byte{
		"jpeg": {0xFF, 0xD8, 0xFF, 0xE0},
		"png":  []byte("\x89PNG\r\n\x1a\nrest"),
		"gif":  []byte("GIF89a..."),
		"bmp":  []byte("BM\x00\x00"),
		"tiff": []byte("II*\x00...."),
		"webp": []byte("RIFF\x10\x00\x00\x00WEBPVP8 "),
		"":     []byte("hello world"),
	}
	for want, data := range cases {
		require.Equal(t, want, SniffFormat(data))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.png"), ModeColor)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	p := writeFile(t, t.TempDir(), "notes.png", []byte("definitely not an image"))
	_, _, err := Load(p, ModeColor)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadCorruptFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "broken.png", []byte("\x89PNG\r\n\x1a\ngarbage"))
	_, _, err := Load(p, ModeGrayscale)
	require.ErrorIs(t, err, ErrDecode)
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := image.NewGray(image.Rect(0, 0, 5, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 10)
	}
	w := NewWriter(nil)
	for _, ext := range []string{"png", "bmp", "tiff"} {
		p := filepath.Join(dir, "nested", "dir", "img."+ext)
		require.NoError(t, w.Write(p, src))

		got, info, err := LoadGray(p)
		require.NoError(t, err)
		require.Equal(t, 5, info.Width)
		require.Equal(t, 4, info.Height)
		require.Equal(t, src.Pix, got.Pix, ext)
	}
}

func TestLoadColorReturnsNRGBA(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i+0], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 0, 0, 255, 255
	}
	p := filepath.Join(dir, "blue.png")
	require.NoError(t, NewWriter(nil).Write(p, src))

	got, info, err := LoadColor(p)
	require.NoError(t, err)
	require.Equal(t, "png", info.Format)
	require.Equal(t, color.NRGBA{B: 255, A: 255}, got.NRGBAAt(1, 1))
}

func TestLoadAppliesJPEGOrientation(t *testing.T) {
	p := writeFile(t, t.TempDir(), "rotated.jpg", makeJPEGWithOrientation(t, 16, 8, 6))

	img, info, err := LoadGray(p)
	require.NoError(t, err)
	require.Equal(t, "jpeg", info.Format)
	require.Equal(t, 6, info.Orientation)
	require.Equal(t, 8, img.Bounds().Dx())
	require.Equal(t, 16, img.Bounds().Dy())
}

func TestJPEGOrientationMissing(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	_, err := jpegOrientation(buf.Bytes())
	require.Error(t, err)
}

func TestWriteWarnsOnOverwrite(t *testing.T) {
	var logs bytes.Buffer
	w := NewWriter(logger.NewZerolog(&logs, zerolog.WarnLevel))
	p := filepath.Join(t.TempDir(), "a.png")
	img := image.NewGray(image.Rect(0, 0, 1, 1))

	require.NoError(t, w.Write(p, img))
	require.Zero(t, logs.Len())

	require.NoError(t, w.Write(p, img))
	require.Contains(t, logs.String(), "overwritten")
}

func TestWriteRejectsUnknownExtension(t *testing.T) {
	err := NewWriter(nil).Write(filepath.Join(t.TempDir(), "a.xyz"), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
