package cli

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(1)
	next := func() uint8 {
		seed = seed*1664525 + 1013904223
		return uint8(seed >> 24)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{next(), next(), next(), 255})
		}
	}
	return img
}

// TestPreviewInlineSequence verifies that Show emits an inline-image OSC sequence
// carrying a PNG when TERM_PROGRAM indicates an inline-capable terminal.
func TestPreviewInlineSequence(t *testing.T) {
	var out bytes.Buffer
	p := NewPreviewer(&out, nil)
	p.Getenv = envMap(map[string]string{"TERM_PROGRAM": "WezTerm", "TERM": "xterm-256color"})

	require.True(t, p.Supported())
	require.NoError(t, p.Show(testImage(2, 2)))

	s := out.String()
	require.True(t, strings.HasPrefix(s, "\x1b]1337;File=name=preview.png;inline=1;"))
	start := strings.Index(s, ":") + 1
	end := strings.Index(s, "\a")
	require.Greater(t, end, start)
	dec, err := base64.StdEncoding.DecodeString(s[start:end])
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), dec[:4])
}

func TestPreviewKittyChunks(t *testing.T) {
	var out bytes.Buffer
	p := NewPreviewer(&out, nil)
	p.Getenv = envMap(map[string]string{"KITTY_WINDOW_ID": "1"})

	// noisy enough that the PNG spans several 4096-byte chunks
	require.NoError(t, p.Show(testImage(200, 120)))

	s := out.String()
	require.True(t, strings.HasPrefix(s, "\x1b_Ga=T,f=100,t=d,q=2,"))
	require.Contains(t, s, ",m=1;")
	require.Contains(t, s, "\x1b_Gm=0;")
	require.Equal(t, 1, strings.Count(s, "a=T"))
}

func TestPreviewBackendOverride(t *testing.T) {
	var out bytes.Buffer
	p := NewPreviewer(&out, nil)
	p.Getenv = envMap(map[string]string{"KITTY_WINDOW_ID": "1", "PREVIEW_BACKEND": "inline"})

	require.NoError(t, p.Show(testImage(4, 4)))
	require.Contains(t, out.String(), "\x1b]1337;")
}

func TestPreviewUnsupported(t *testing.T) {
	var out bytes.Buffer
	p := NewPreviewer(&out, nil)
	p.Getenv = envMap(map[string]string{"TERM": "dumb"})

	require.False(t, p.Supported())
	require.ErrorIs(t, p.Show(testImage(2, 2)), ErrPreviewUnsupported)
	require.Zero(t, out.Len())
}

func TestComputePreviewSize(t *testing.T) {
	size := computePreviewSize(image.Rect(0, 0, 2400, 1800))
	require.Equal(t, PreviewSize{Cols: 80, Rows: 30, PixelWidth: 640, PixelHeight: 480}, size)

	small := computePreviewSize(image.Rect(0, 0, 8, 8))
	require.Equal(t, 6, small.Cols)
	require.Equal(t, 3, small.Rows)
}

func TestPreviewDownscalesLargeFigures(t *testing.T) {
	big := testImage(1200, 900)
	size := computePreviewSize(big)
	fit := fitPreview(big, size)
	require.Equal(t, image.Rect(0, 0, size.PixelWidth, size.PixelHeight), fit.Bounds())

	small := testImage(10, 10)
	require.Same(t, small, fitPreview(small, computePreviewSize(small)))
}
