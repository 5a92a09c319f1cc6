// Package config resolves run settings from defaults, an optional YAML file, the
// environment (optionally seeded from a .env file) and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/Fepozopo/imghist/pkg/imageio"
	"github.com/Fepozopo/imghist/pkg/stdimg"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Histogram kinds.
const (
	KindColor    = "color"
	KindGray     = "gray"
	KindGradient = "gradient"
	KindAll      = "all"
)

// Kinds lists the concrete histogram kinds in the order "all" processes them.
var Kinds = []string{KindColor, KindGray, KindGradient}

// DefaultExtensions are the input file extensions enumerated by default.
var DefaultExtensions = []string{"jpg", "jpeg", "png", "bmp"}

const envPrefix = "IMGHIST_"

// Config holds every setting of a batch run.
type Config struct {
	HistType   string   `yaml:"hist_type"`
	InputDir   string   `yaml:"input_dir"`
	OutputDir  string   `yaml:"output_dir"`
	OutputType string   `yaml:"output_type"`
	DPI        int      `yaml:"dpi"`
	Workers    int      `yaml:"workers"`
	Extensions []string `yaml:"extensions"`
	EdgeMaps   bool     `yaml:"edge_maps"`
	Epsilon    float64  `yaml:"epsilon"`
	LogLevel   string   `yaml:"log_level"`
	Preview    bool     `yaml:"preview"`
	FontPath   string   `yaml:"font_path"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HistType:   KindAll,
		InputDir:   "images",
		OutputDir:  "hists",
		OutputType: "png",
		DPI:        300,
		Workers:    runtime.NumCPU(),
		Extensions: append([]string(nil), DefaultExtensions...),
		Epsilon:    stdimg.DefaultCutoffEpsilon,
		LogLevel:   "info",
	}
}

// HistKinds expands HistType into the concrete kinds to produce.
func (c Config) HistKinds() []string {
	if c.HistType == KindAll {
		return append([]string(nil), Kinds...)
	}
	return []string{c.HistType}
}

// Validate checks that the settings describe a runnable batch.
func (c Config) Validate() error {
	switch c.HistType {
	case KindColor, KindGray, KindGradient, KindAll:
	default:
		return fmt.Errorf("%w: hist type %q (want one of color, gray, gradient, all)", ErrInvalidConfig, c.HistType)
	}
	if c.InputDir == "" {
		return fmt.Errorf("%w: empty input directory", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: empty output directory", ErrInvalidConfig)
	}
	if !imageio.SupportedOutput(c.OutputType) {
		return fmt.Errorf("%w: output type %q (want one of %s)", ErrInvalidConfig, c.OutputType, strings.Join(imageio.OutputFormats, ", "))
	}
	if c.DPI <= 0 {
		return fmt.Errorf("%w: dpi must be positive, got %d", ErrInvalidConfig, c.DPI)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: no input extensions", ErrInvalidConfig)
	}
	if c.Epsilon <= 0 || c.Epsilon >= 1 {
		return fmt.Errorf("%w: epsilon must be in (0, 1), got %g", ErrInvalidConfig, c.Epsilon)
	}
	return nil
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays IMGHIST_* environment variables onto c.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	str("HIST_TYPE", &c.HistType)
	str("INPUT_DIR", &c.InputDir)
	str("OUTPUT_DIR", &c.OutputDir)
	str("OUTPUT_TYPE", &c.OutputType)
	str("LOG_LEVEL", &c.LogLevel)
	str("FONT", &c.FontPath)

	if v := getenv(envPrefix + "EXTENSIONS"); v != "" {
		c.Extensions = splitList(v)
	}
	for key, dst := range map[string]*int{"DPI": &c.DPI, "WORKERS": &c.Workers} {
		if v := getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, envPrefix, key, v, err)
			}
			*dst = n
		}
	}
	for key, dst := range map[string]*bool{"EDGE_MAPS": &c.EdgeMaps, "PREVIEW": &c.Preview} {
		if v := getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, envPrefix, key, v, err)
			}
			*dst = b
		}
	}
	if v := getenv(envPrefix + "EPSILON"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sEPSILON=%q: %v", ErrInvalidConfig, envPrefix, v, err)
		}
		c.Epsilon = f
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), ".")); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// Invocation is the result of parsing a command line.
type Invocation struct {
	Config      Config
	ShowVersion bool
	CheckUpdate bool
}

// Parse resolves an Invocation from args (without the program name). Output for
// --help and flag errors goes to stderr.
func Parse(args []string, stderr io.Writer) (*Invocation, error) {
	flags := pflag.NewFlagSet("imghist", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	flagCfg := Default()
	var (
		configPath string
		envFile    string
		inv        Invocation
	)
	flags.StringVar(&flagCfg.HistType, "hist-type", flagCfg.HistType, "histogram kind: color, gray, gradient or all")
	flags.StringVar(&flagCfg.InputDir, "input-dir", flagCfg.InputDir, "folder searched recursively for input images")
	flags.StringVar(&flagCfg.OutputDir, "output-dir", flagCfg.OutputDir, "folder that receives <kind>/<name>.<output-type>")
	flags.StringVar(&flagCfg.OutputType, "output-type", flagCfg.OutputType, "figure format: "+strings.Join(imageio.OutputFormats, ", "))
	flags.IntVar(&flagCfg.DPI, "dpi", flagCfg.DPI, "figure resolution in dots per inch (figures are 8x6 inches)")
	flags.IntVarP(&flagCfg.Workers, "workers", "j", flagCfg.Workers, "images processed concurrently")
	flags.StringSliceVar(&flagCfg.Extensions, "ext", flagCfg.Extensions, "input file extensions")
	flags.BoolVar(&flagCfg.EdgeMaps, "edge-maps", flagCfg.EdgeMaps, "also export sigmoid edge maps to <output-dir>/edges")
	flags.Float64Var(&flagCfg.Epsilon, "epsilon", flagCfg.Epsilon, "bin proportion that extends the gradient display cutoff")
	flags.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "debug, info, warn or error")
	flags.BoolVar(&flagCfg.Preview, "preview", flagCfg.Preview, "show each figure inline in supported terminals")
	flags.StringVar(&flagCfg.FontPath, "font", flagCfg.FontPath, "TTF/OTF font for chart text")
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading IMGHIST_* variables")
	flags.BoolVar(&inv.ShowVersion, "version", false, "print version and exit")
	flags.BoolVar(&inv.CheckUpdate, "check-update", false, "check GitHub for a newer release and offer to install it")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrInvalidConfig, flags.Args())
	}

	// the .env file is optional unless named explicitly
	if err := godotenv.Load(envFile); err != nil && (flags.Changed("env-file") || !errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("load env file %q: %w", envFile, err)
	}

	cfg := Default()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	overlayFlags(&cfg, flagCfg, flags)
	cfg.Extensions = splitList(strings.Join(cfg.Extensions, ","))

	inv.Config = cfg
	return &inv, nil
}

// overlayFlags copies explicitly set flags from src onto dst.
func overlayFlags(dst *Config, src Config, flags *pflag.FlagSet) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("hist-type", func() { dst.HistType = src.HistType })
	set("input-dir", func() { dst.InputDir = src.InputDir })
	set("output-dir", func() { dst.OutputDir = src.OutputDir })
	set("output-type", func() { dst.OutputType = src.OutputType })
	set("dpi", func() { dst.DPI = src.DPI })
	set("workers", func() { dst.Workers = src.Workers })
	set("ext", func() { dst.Extensions = src.Extensions })
	set("edge-maps", func() { dst.EdgeMaps = src.EdgeMaps })
	set("epsilon", func() { dst.Epsilon = src.Epsilon })
	set("log-level", func() { dst.LogLevel = src.LogLevel })
	set("preview", func() { dst.Preview = src.Preview })
	set("font", func() { dst.FontPath = src.FontPath })
}
