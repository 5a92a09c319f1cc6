package cli

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/Fepozopo/imghist/pkg/imageio"
	"github.com/Fepozopo/imghist/pkg/logger"
	"golang.org/x/image/draw"
)

// Terminal preview of saved figures for kitty and iTerm2-compatible terminals.
//
// Behavior:
//   - PREVIEW_BACKEND=kitty or =inline forces a protocol.
//   - Otherwise kitty is used when KITTY_WINDOW_ID is set or TERM names kitty/ghostty.
//   - Otherwise the iTerm2 OSC 1337 inline file sequence is used when TERM_PROGRAM or
//     TERM names an inline-capable emulator (iTerm2, WezTerm, Warp, VSCode, ...).
//   - PREVIEW_DEBUG=1 logs backend decisions at info level.

// ErrPreviewUnsupported is returned when no inline image protocol was detected.
var ErrPreviewUnsupported = errors.New("terminal does not support inline images")

// Previewer writes figures to a terminal. Show is safe for concurrent use; figures are
// written one at a time.
type Previewer struct {
	Out    io.Writer
	Getenv func(string) string
	Log    logger.Logger

	mu sync.Mutex
}

// NewPreviewer returns a Previewer reading the process environment.
func NewPreviewer(out io.Writer, log logger.Logger) *Previewer {
	if log == nil {
		log = logger.Nop()
	}
	return &Previewer{Out: out, Getenv: os.Getenv, Log: log}
}

func (p *Previewer) debugf(format string, args ...interface{}) {
	if v := p.Getenv("PREVIEW_DEBUG"); v == "1" || v == "true" {
		p.Log.Info("Preview", fmt.Sprintf(format, args...), nil)
	}
}

func (p *Previewer) isKitty() bool {
	if p.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	term := strings.ToLower(p.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}

func (p *Previewer) isInlineImageCapable() bool {
	switch p.Getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "Warp", "Hyper", "vscode", "VSCode", "Tabby", "Bobcat":
		return true
	}
	if p.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}
	term := strings.ToLower(p.Getenv("TERM"))
	return strings.Contains(term, "wezterm") || strings.Contains(term, "warp") ||
		strings.Contains(term, "tabby") || strings.Contains(term, "vscode")
}

func (p *Previewer) backend() string {
	switch v := strings.ToLower(p.Getenv("PREVIEW_BACKEND")); v {
	case "kitty":
		return "kitty"
	case "inline", "iterm", "wezterm":
		return "inline"
	case "":
	default:
		p.debugf("unknown PREVIEW_BACKEND value: %s", v)
	}
	if p.isKitty() {
		return "kitty"
	}
	if p.isInlineImageCapable() {
		return "inline"
	}
	return ""
}

// Supported reports whether Show has a protocol to use.
func (p *Previewer) Supported() bool {
	return p.backend() != ""
}

// Show encodes img as PNG and writes it inline, sized to fit an 80x40 cell area.
// Images larger than the placement are downscaled first to keep the payload small.
func (p *Previewer) Show(img image.Image) error {
	if img == nil {
		return errors.New("preview: nil image")
	}
	backend := p.backend()
	if backend == "" {
		return ErrPreviewUnsupported
	}
	size := computePreviewSize(img)
	img = fitPreview(img, size)
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, "png"); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	p.debugf("sending %d bytes via %s (%dx%d cells)", buf.Len(), backend, size.Cols, size.Rows)

	p.mu.Lock()
	defer p.mu.Unlock()
	if backend == "kitty" {
		return p.sendKittyImage(buf.Bytes(), size)
	}
	return p.sendInlineImage(buf.Bytes(), size)
}

// PreviewSize conveys a target placement for terminal preview backends.
type PreviewSize struct {
	Cols        int // terminal character columns
	Rows        int // terminal character rows
	PixelWidth  int
	PixelHeight int
}

// computePreviewSize scales the image (never up) into at most 80x40 cells of 8x16
// pixels, preserving aspect ratio.
func computePreviewSize(img image.Image) PreviewSize {
	const (
		charW, charH     = 8, 16
		minCols, minRows = 6, 3
		maxCols, maxRows = 80, 40
	)
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return PreviewSize{Cols: minCols, Rows: minRows, PixelWidth: minCols * charW, PixelHeight: minRows * charH}
	}
	scale := math.Min(1, math.Min(float64(maxCols*charW)/float64(w), float64(maxRows*charH)/float64(h)))
	cols := clampCells(int(math.Round(float64(w)*scale/charW)), minCols, maxCols)
	rows := clampCells(int(math.Round(float64(h)*scale/charH)), minRows, maxRows)
	return PreviewSize{Cols: cols, Rows: rows, PixelWidth: cols * charW, PixelHeight: rows * charH}
}

// fitPreview shrinks img to the placement pixel size. Smaller images are returned as is.
func fitPreview(img image.Image, size PreviewSize) image.Image {
	b := img.Bounds()
	if b.Dx() <= size.PixelWidth && b.Dy() <= size.PixelHeight {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, size.PixelWidth, size.PixelHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func clampCells(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// postImageNewlines keeps following output just under the image.
func postImageNewlines(rows int) int {
	switch {
	case rows <= 2:
		return 1
	case rows <= 6:
		return 2
	case rows <= 20:
		return 3
	}
	return 4
}

// sendKittyImage transmits PNG data with the kitty graphics protocol. The base64
// payload is split into 4096-byte chunks; only the first carries control keys
// (a=T transmit and display, f=100 PNG, q=2 quiet, c/r placement).
func (p *Previewer) sendKittyImage(data []byte, size PreviewSize) error {
	enc := base64.StdEncoding.EncodeToString(data)
	const chunkSize = 4096

	var b strings.Builder
	for pos := 0; pos < len(enc); pos += chunkSize {
		end := pos + chunkSize
		if end > len(enc) {
			end = len(enc)
		}
		more := "0"
		if end < len(enc) {
			more = "1"
		}
		if pos == 0 {
			fmt.Fprintf(&b, "\x1b_Ga=T,f=100,t=d,q=2,c=%d,r=%d,m=%s;", size.Cols, size.Rows, more)
		} else {
			b.WriteString("\x1b_Gm=" + more + ";")
		}
		b.WriteString(enc[pos:end])
		b.WriteString("\x1b\\")
	}
	b.WriteString(strings.Repeat("\n", postImageNewlines(size.Rows)))
	_, err := io.WriteString(p.Out, b.String())
	return err
}

// sendInlineImage emits the iTerm2-style OSC 1337 inline file sequence.
func (p *Previewer) sendInlineImage(data []byte, size PreviewSize) error {
	enc := base64.StdEncoding.EncodeToString(data)
	meta := fmt.Sprintf("size=%d;", len(data))
	if size.PixelWidth > 0 && size.PixelHeight > 0 {
		meta += fmt.Sprintf("width=%dpx;height=%dpx;", size.PixelWidth, size.PixelHeight)
	}
	seq := "\x1b]1337;File=name=preview.png;inline=1;" + meta + ":" + enc + "\a" +
		strings.Repeat("\n", postImageNewlines(0))
	_, err := io.WriteString(p.Out, seq)
	return err
}
