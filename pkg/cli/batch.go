package cli

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Fepozopo/imghist/pkg/chart"
	"github.com/Fepozopo/imghist/pkg/config"
	"github.com/Fepozopo/imghist/pkg/imageio"
	"github.com/Fepozopo/imghist/pkg/logger"
	"github.com/Fepozopo/imghist/pkg/stdimg"
	"golang.org/x/sync/errgroup"
)

const edgesFolder = "edges"

// Batch renders histogram figures for every image under Config.InputDir.
type Batch struct {
	Config config.Config
	Log    logger.Logger
	// Out receives the per-kind summary lines and terminal previews.
	Out io.Writer

	writer    *imageio.Writer
	previewer *Previewer
	saved     map[string]*atomic.Int64
}

// NewBatch prepares a batch for cfg. cfg is expected to be validated.
func NewBatch(cfg config.Config, log logger.Logger, out io.Writer) *Batch {
	if log == nil {
		log = logger.Nop()
	}
	b := &Batch{
		Config: cfg,
		Log:    log,
		Out:    out,
		writer: imageio.NewWriter(log),
		saved:  map[string]*atomic.Int64{},
	}
	for _, k := range append(cfg.HistKinds(), edgesFolder) {
		b.saved[k] = new(atomic.Int64)
	}
	if cfg.Preview {
		b.previewer = NewPreviewer(out, log)
		if !b.previewer.Supported() {
			log.Warning("Batch", "terminal preview requested but no inline image protocol detected", nil)
			b.previewer = nil
		}
	}
	return b
}

// Saved reports how many files of kind ("color", "gray", "gradient" or "edges") were written.
func (b *Batch) Saved(kind string) int {
	if c, ok := b.saved[kind]; ok {
		return int(c.Load())
	}
	return 0
}

// Run processes every image concurrently, at most Config.Workers at a time. A failing
// image is logged and does not stop the others; all such failures are joined into the
// returned error. Cancelling ctx stops scheduling new images.
func (b *Batch) Run(ctx context.Context) error {
	paths, err := FindImages(b.Config.InputDir, b.Config.Extensions)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w in %q with extensions %s", ErrNoImagesFound, b.Config.InputDir, strings.Join(b.Config.Extensions, ", "))
	}
	kinds := b.Config.HistKinds()
	b.Log.Info("Batch", "processing images", logger.Fields{
		"images":  len(paths),
		"kinds":   strings.Join(kinds, ","),
		"workers": b.Config.Workers,
	})

	var (
		mu       sync.Mutex
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Config.Workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := b.processImage(gctx, path, kinds); err != nil {
				b.Log.Error("Batch", err, logger.Fields{"path": path})
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("process images: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("process images: %w", err)
	}

	for _, kind := range kinds {
		fmt.Fprintf(b.Out, "%d figures successfully saved to %s\n", b.Saved(kind), filepath.Join(b.Config.OutputDir, kind))
	}
	if b.Config.EdgeMaps && slices.Contains(kinds, config.KindGradient) {
		fmt.Fprintf(b.Out, "%d edge maps successfully saved to %s\n", b.Saved(edgesFolder), filepath.Join(b.Config.OutputDir, edgesFolder))
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d images failed: %w", len(failures), len(paths), errors.Join(failures...))
	}
	return nil
}

// processImage decodes path once and renders every requested kind from it. A kind
// that fails does not prevent the remaining kinds.
func (b *Batch) processImage(ctx context.Context, path string, kinds []string) error {
	src, info, err := imageio.Decode(path)
	if err != nil {
		return err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var errs []error
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.renderKind(src, info, kind, stem); err != nil {
			errs = append(errs, fmt.Errorf("%s histogram of %q: %w", kind, path, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Batch) renderKind(src image.Image, info imageio.Info, kind, stem string) error {
	var (
		values  []float64
		profile chart.AxisProfile
		edgeErr error
	)
	switch kind {
	case config.KindColor:
		img := imageio.Convert(src, &info, imageio.ModeColor).(*image.NRGBA)
		p, err := stdimg.ColorEnergy(img)
		if err != nil {
			return err
		}
		values, profile = p[:], chart.ColorProfile(p)
	case config.KindGray:
		img := imageio.Convert(src, &info, imageio.ModeGrayscale).(*image.Gray)
		d, err := stdimg.GrayLevels(img)
		if err != nil {
			return err
		}
		values, profile = d[:], chart.GrayProfile()
	case config.KindGradient:
		img := imageio.Convert(src, &info, imageio.ModeGrayscale).(*image.Gray)
		field := stdimg.NewGradientField(img)
		d, err := stdimg.GradientHistogram(field, b.Config.Epsilon)
		if err != nil {
			return err
		}
		if b.Config.EdgeMaps {
			edgeErr = b.saveEdgeMap(field, stem)
		}
		values, profile = d.Proportions[:], chart.GradientProfile(d.Cutoff)
	default:
		return fmt.Errorf("unknown histogram kind %q", kind)
	}

	fig, err := chart.Render(values, profile, chart.Options{
		DPI:      b.Config.DPI,
		FontPath: b.Config.FontPath,
		Log:      b.Log,
	})
	if err != nil {
		return err
	}
	saved, err := fig.Save(b.writer, filepath.Join(b.Config.OutputDir, kind), stem+"."+b.Config.OutputType)
	if err != nil {
		return err
	}
	b.saved[kind].Add(1)
	b.Log.Debug("Batch", "figure saved", logger.Fields{"path": saved, "kind": kind})
	if b.previewer != nil {
		if err := b.previewer.Show(fig.Image); err != nil {
			b.Log.Warning("Batch", "preview failed", logger.Fields{"path": saved, "error": err.Error()})
		}
	}
	return edgeErr
}

// saveEdgeMap writes the sigmoid edge map of field. A flat field has no edges to
// show; it is skipped with a warning rather than reported.
func (b *Batch) saveEdgeMap(field *stdimg.GradientField, stem string) error {
	path := filepath.Join(b.Config.OutputDir, edgesFolder, stem+".png")
	edges, err := stdimg.EdgeMap(field)
	if errors.Is(err, stdimg.ErrDegenerateInput) {
		b.Log.Warning("Batch", "edge map skipped", logger.Fields{"path": path, "error": err.Error()})
		return nil
	}
	if err != nil {
		return fmt.Errorf("edge map: %w", err)
	}
	if err := b.writer.Write(path, edges); err != nil {
		return fmt.Errorf("edge map: %w", err)
	}
	b.saved[edgesFolder].Add(1)
	return nil
}
