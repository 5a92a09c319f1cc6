package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fepozopo/imghist/pkg/config"
	"github.com/Fepozopo/imghist/pkg/imageio"
	"github.com/Fepozopo/imghist/pkg/logger"
	"github.com/Fepozopo/imghist/pkg/stdimg"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func testConfig(in, out string) config.Config {
	cfg := config.Default()
	cfg.InputDir = in
	cfg.OutputDir = out
	cfg.DPI = 20
	cfg.Workers = 2
	return cfg
}

func TestFindImagesRecursiveCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.PNG", "c.jpg", "notes.txt", "nested/e.Jpeg", "nested/deeper/f.bmp", "g.gif"} {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	got, err := FindImages(root, []string{"jpg", ".jpeg", "png", "bmp"})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "b.PNG"),
		filepath.Join(root, "c.jpg"),
		filepath.Join(root, "nested", "deeper", "f.bmp"),
		filepath.Join(root, "nested", "e.Jpeg"),
	}, got)
}

func TestFindImagesMissingFolder(t *testing.T) {
	_, err := FindImages(filepath.Join(t.TempDir(), "absent"), []string{"png"})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBatchNoImagesFound(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "hists")
	require.NoError(t, os.WriteFile(filepath.Join(in, "readme.md"), []byte("#"), 0o644))

	err := NewBatch(testConfig(in, out), nil, &bytes.Buffer{}).Run(context.Background())
	require.ErrorIs(t, err, ErrNoImagesFound)
	_, statErr := os.Stat(out)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestBatchRendersAllKinds(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "hists")
	pattern := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			pattern.SetNRGBA(x, y, color.NRGBA{uint8(x * 16), uint8(y * 20), 90, 255})
		}
	}
	writePNG(t, filepath.Join(in, "pattern.png"), pattern)
	writePNG(t, filepath.Join(in, "sub", "flat.png"), solid(8, 8, color.NRGBA{128, 128, 128, 255}))

	cfg := testConfig(in, out)
	cfg.EdgeMaps = true
	var stdout bytes.Buffer
	b := NewBatch(cfg, logger.Nop(), &stdout)
	require.NoError(t, b.Run(context.Background()))

	for _, kind := range config.Kinds {
		require.Equal(t, 2, b.Saved(kind), kind)
		for _, stem := range []string{"pattern", "flat"} {
			img, _, err := imageio.LoadColor(filepath.Join(out, kind, stem+".png"))
			require.NoError(t, err)
			require.Equal(t, image.Rect(0, 0, 160, 120), img.Bounds())
		}
	}
	// the flat image has no edges to map
	require.Equal(t, 1, b.Saved("edges"))
	edges, _, err := imageio.LoadGray(filepath.Join(out, "edges", "pattern.png"))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 14, 10), edges.Bounds())
	require.NoFileExists(t, filepath.Join(out, "edges", "flat.png"))

	require.Equal(t, ""+
		"2 figures successfully saved to "+filepath.Join(out, "color")+"\n"+
		"2 figures successfully saved to "+filepath.Join(out, "gray")+"\n"+
		"2 figures successfully saved to "+filepath.Join(out, "gradient")+"\n"+
		"1 edge maps successfully saved to "+filepath.Join(out, "edges")+"\n",
		stdout.String())
}

func TestBatchCollectsPerImageFailures(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "hists")
	writePNG(t, filepath.Join(in, "good.png"), solid(6, 6, color.NRGBA{10, 200, 30, 255}))
	writePNG(t, filepath.Join(in, "black.png"), solid(6, 6, color.NRGBA{0, 0, 0, 255}))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("\x89PNG\r\n\x1a\nnot really"), 0o644))

	cfg := testConfig(in, out)
	cfg.HistType = config.KindAll
	b := NewBatch(cfg, nil, &bytes.Buffer{})
	err := b.Run(context.Background())

	require.Error(t, err)
	require.ErrorIs(t, err, imageio.ErrDecode)
	require.ErrorIs(t, err, stdimg.ErrDegenerateInput)
	require.Contains(t, err.Error(), "2 of 3 images failed")

	// black has no colour energy but still gets gray and gradient figures
	require.Equal(t, 1, b.Saved(config.KindColor))
	require.Equal(t, 2, b.Saved(config.KindGray))
	require.Equal(t, 2, b.Saved(config.KindGradient))
	require.FileExists(t, filepath.Join(out, "gray", "black.png"))
	require.NoFileExists(t, filepath.Join(out, "color", "black.png"))
}

func TestBatchHonoursCancellation(t *testing.T) {
	in := t.TempDir()
	writePNG(t, filepath.Join(in, "a.png"), solid(4, 4, color.NRGBA{1, 2, 3, 255}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBatch(testConfig(in, t.TempDir()), nil, &bytes.Buffer{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunWithVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunWith(context.Background(), []string{"--version"}, Streams{Out: &out, Err: &bytes.Buffer{}}))
	require.Equal(t, "imghist "+Version+"\n", out.String())
}

func TestRunWithRejectsInvalidConfig(t *testing.T) {
	err := RunWith(context.Background(), []string{"--hist-type", "hue"}, Streams{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunWithSingleKind(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "hists")
	writePNG(t, filepath.Join(in, "a.png"), solid(5, 5, color.NRGBA{0, 0, 255, 255}))

	var stdout bytes.Buffer
	err := RunWith(context.Background(),
		[]string{"--input-dir", in, "--output-dir", out, "--hist-type", "color", "--output-type", "jpg", "--dpi", "10"},
		Streams{Out: &stdout, Err: &bytes.Buffer{}})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(out, "color", "a.jpg"))
	require.NoDirExists(t, filepath.Join(out, "gray"))
	require.Equal(t, "1 figures successfully saved to "+filepath.Join(out, "color")+"\n", stdout.String())
}
