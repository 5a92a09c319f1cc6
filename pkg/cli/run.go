// Package cli implements the imghist command: it turns a folder of images into color,
// grayscale and gradient-magnitude histogram figures.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Fepozopo/imghist/pkg/config"
	"github.com/Fepozopo/imghist/pkg/logger"
	"github.com/spf13/pflag"
)

// Streams are the standard streams of one invocation.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Run executes imghist with args (without the program name) on the process streams.
func Run(ctx context.Context, args []string) error {
	return RunWith(ctx, args, Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
}

// RunWith executes imghist on the given streams. Logs go to s.Err; summaries and
// previews go to s.Out.
func RunWith(ctx context.Context, args []string, s Streams) error {
	inv, err := config.Parse(args, s.Err)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if inv.ShowVersion {
		fmt.Fprintf(s.Out, "imghist %s\n", Version)
		return nil
	}
	if inv.CheckUpdate {
		return CheckForUpdates(ctx, s.In, s.Out)
	}

	cfg := inv.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, cfg.LogLevel)
	}
	log := logger.NewConsoleLogger(s.Err, level)
	return NewBatch(cfg, log, s.Out).Run(ctx)
}
