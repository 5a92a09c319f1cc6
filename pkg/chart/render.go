package chart

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/Fepozopo/imghist/pkg/imageio"
	"github.com/Fepozopo/imghist/pkg/logger"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	// DefaultDPI matches the resolution figures are saved at unless configured otherwise.
	DefaultDPI = 300

	defaultWidthInches  = 8.0
	defaultHeightInches = 6.0
	fontSizePoints      = 15.0
)

// Options controls figure geometry and typography.
type Options struct {
	DPI          int
	WidthInches  float64
	HeightInches float64
	// FontPath optionally names a TTF/OTF file used for all text. An unreadable
	// font falls back to the built-in Go fonts.
	FontPath string
	Log      logger.Logger
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.WidthInches <= 0 {
		o.WidthInches = defaultWidthInches
	}
	if o.HeightInches <= 0 {
		o.HeightInches = defaultHeightInches
	}
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	return o
}

// Figure is a rendered chart.
type Figure struct {
	Image   image.Image
	Profile AxisProfile
}

// Save writes the figure to folder/name through w. The folder is created if absent
// and an existing file is overwritten with a warning.
func (f *Figure) Save(w *imageio.Writer, folder, name string) (string, error) {
	if f == nil || f.Image == nil {
		return "", errors.New("save figure: empty figure")
	}
	p := filepath.Join(folder, name)
	if err := w.Write(p, f.Image); err != nil {
		return "", fmt.Errorf("save figure: %w", err)
	}
	return p, nil
}

var (
	goFontsOnce sync.Once
	goRegular   *opentype.Font
	goBold      *opentype.Font
	goFontsErr  error
)

func builtinFonts() (*opentype.Font, *opentype.Font, error) {
	goFontsOnce.Do(func() {
		goRegular, goFontsErr = opentype.Parse(goregular.TTF)
		if goFontsErr != nil {
			return
		}
		goBold, goFontsErr = opentype.Parse(gobold.TTF)
	})
	return goRegular, goBold, goFontsErr
}

// loadFaces returns the tick and label faces. Faces are not safe for concurrent use,
// so every render builds its own.
func loadFaces(opts Options) (tick font.Face, label font.Face, err error) {
	regular, bold, err := builtinFonts()
	if err != nil {
		return nil, nil, fmt.Errorf("parse builtin fonts: %w", err)
	}
	if opts.FontPath != "" {
		data, rerr := os.ReadFile(opts.FontPath)
		if rerr != nil {
			opts.Log.Warning("Chart", "failed to read font file, falling back to builtin font", logger.Fields{
				"font":  opts.FontPath,
				"error": rerr.Error(),
			})
		} else if custom, perr := opentype.Parse(data); perr != nil {
			opts.Log.Warning("Chart", "failed to parse font, falling back to builtin font", logger.Fields{
				"font":  opts.FontPath,
				"error": perr.Error(),
			})
		} else {
			regular, bold = custom, custom
		}
	}
	faceOpts := &opentype.FaceOptions{Size: fontSizePoints, DPI: float64(opts.DPI), Hinting: font.HintingFull}
	tick, err = opentype.NewFace(regular, faceOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("create tick font face: %w", err)
	}
	label, err = opentype.NewFace(bold, faceOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("create label font face: %w", err)
	}
	return tick, label, nil
}

// plotArea maps data coordinates onto the pixel rectangle inside the axes.
type plotArea struct {
	left, top, width, height float64
	xMin, xMax, yMin, yMax   float64
}

func (a plotArea) px(x float64) float64 {
	return a.left + (x-a.xMin)/(a.xMax-a.xMin)*a.width
}

func (a plotArea) py(y float64) float64 {
	return a.top + a.height - (y-a.yMin)/(a.yMax-a.yMin)*a.height
}

// Render draws values as a bar chart laid out by profile.
func Render(values []float64, profile AxisProfile, opts Options) (*Figure, error) {
	if len(values) == 0 {
		return nil, errors.New("render chart: no values")
	}
	if len(profile.Categories) > 0 && len(profile.Categories) != len(values) {
		return nil, fmt.Errorf("render chart: %d categories for %d values", len(profile.Categories), len(values))
	}
	opts = opts.withDefaults()
	tickFace, labelFace, err := loadFaces(opts)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	defer tickFace.Close()
	defer labelFace.Close()

	w := int(math.Round(opts.WidthInches * float64(opts.DPI)))
	h := int(math.Round(opts.HeightInches * float64(opts.DPI)))
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	area := plotArea{
		left:   0.15 * float64(w),
		top:    0.06 * float64(h),
		width:  0.80 * float64(w),
		height: 0.78 * float64(h),
		yMin:   0,
		yMax:   yAxisMax(values, profile),
	}
	category := len(profile.Categories) > 0
	if category {
		area.xMin, area.xMax = -0.6, float64(len(values))-0.4
	} else {
		area.xMin, area.xMax = profile.XMin, profile.XMax
		if area.xMax <= area.xMin {
			area.xMax = area.xMin + 1
		}
	}
	scale := float64(opts.DPI) / 72.0

	// grid under everything else
	xTicks := ticks(area.xMin, area.xMax)
	yTicks := ticks(area.yMin, area.yMax)
	dc.SetLineWidth(0.8 * scale)
	dc.SetRGBA(0.69, 0.69, 0.69, 0.5)
	if !category {
		for _, t := range xTicks {
			dc.DrawLine(area.px(t), area.top, area.px(t), area.top+area.height)
		}
	}
	for _, t := range yTicks {
		dc.DrawLine(area.left, area.py(t), area.left+area.width, area.py(t))
	}
	dc.Stroke()

	// bars, clipped to the axes
	dc.Push()
	dc.DrawRectangle(area.left, area.top, area.width, area.height)
	dc.Clip()
	barWidth := profile.BarWidth
	if barWidth <= 0 {
		barWidth = 1
	}
	for i, v := range values {
		x0 := area.px(float64(i) - barWidth/2)
		x1 := area.px(float64(i) + barWidth/2)
		y0 := area.py(v)
		y1 := area.py(0)
		dc.SetColor(barColor(profile, i))
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.Fill()
		if category {
			dc.SetRGB(1, 1, 1)
			dc.SetLineWidth(0.5 * scale)
			dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
			dc.Stroke()
		}
	}
	dc.Pop()
	dc.ResetClip()

	// frame
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(0.8 * scale)
	dc.DrawRectangle(area.left, area.top, area.width, area.height)
	dc.Stroke()

	// tick labels
	dc.SetFontFace(tickFace)
	tickLen := 3.5 * scale
	pad := 4 * scale
	if category {
		for i, name := range profile.Categories {
			x := area.px(float64(i))
			dc.DrawLine(x, area.top+area.height, x, area.top+area.height+tickLen)
			dc.Stroke()
			dc.DrawStringAnchored(name, x, area.top+area.height+tickLen+pad, 0.5, 1)
		}
	} else {
		xDec := decimals(xTicks)
		for _, t := range xTicks {
			x := area.px(t)
			dc.DrawLine(x, area.top+area.height, x, area.top+area.height+tickLen)
			dc.Stroke()
			dc.DrawStringAnchored(formatTick(t, xDec), x, area.top+area.height+tickLen+pad, 0.5, 1)
		}
	}
	yDec := decimals(yTicks)
	for _, t := range yTicks {
		y := area.py(t)
		dc.DrawLine(area.left-tickLen, y, area.left, y)
		dc.Stroke()
		dc.DrawStringAnchored(formatTick(t, yDec), area.left-tickLen-pad, y, 1, 0.5)
	}

	if profile.ValueLabels {
		for i, v := range values {
			dc.DrawStringAnchored(fmt.Sprintf("%.3f", v), area.px(float64(i)), area.py(v)-pad, 0.5, 0)
		}
	}

	// axis labels
	dc.SetFontFace(labelFace)
	dc.DrawStringAnchored(profile.XLabel, area.left+area.width/2, float64(h)-pad*2, 0.5, 0)
	lx := pad * 3
	ly := area.top + area.height/2
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), lx, ly)
	dc.DrawStringAnchored(profile.YLabel, lx, ly, 0.5, 1)
	dc.Pop()

	return &Figure{Image: dc.Image(), Profile: profile}, nil
}

func barColor(p AxisProfile, i int) color.Color {
	switch len(p.BarColors) {
	case 0:
		return plainBar
	case 1:
		return p.BarColors[0]
	}
	return p.BarColors[i%len(p.BarColors)]
}

// yAxisMax returns the profile's fixed top or the data maximum plus a 5% margin.
func yAxisMax(values []float64, p AxisProfile) float64 {
	if p.YMax > 0 {
		return p.YMax
	}
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	if m == 0 {
		return 1
	}
	return m * 1.05
}

// niceStep picks a 1/2/5 x 10^k step giving roughly target intervals over span.
func niceStep(span float64, target int) float64 {
	raw := span / float64(target)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch norm := raw / mag; {
	case norm < 1.5:
		return mag
	case norm < 3:
		return 2 * mag
	case norm < 7:
		return 5 * mag
	default:
		return 10 * mag
	}
}

// ticks returns the step multiples inside [lo, hi].
func ticks(lo, hi float64) []float64 {
	if hi <= lo {
		return []float64{lo}
	}
	step := niceStep(hi-lo, 6)
	var out []float64
	for i := math.Ceil(lo/step - 1e-9); i*step <= hi+step*1e-9; i++ {
		// snap to a 1e-9 grid so 3*0.2 prints and compares as 0.6
		out = append(out, math.Round(i*step*1e9)/1e9)
	}
	return out
}

// decimals returns the number of fraction digits needed to tell ticks apart.
func decimals(ts []float64) int {
	if len(ts) < 2 {
		return 0
	}
	step := ts[1] - ts[0]
	d := int(math.Ceil(-math.Log10(step) - 1e-9))
	if d < 0 {
		return 0
	}
	return d
}

func formatTick(v float64, dec int) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%.*f", dec, v)
}
