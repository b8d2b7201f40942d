package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/algo-boyz/snowdemo/pkg/audio"
	"github.com/algo-boyz/snowdemo/pkg/child"
	"github.com/algo-boyz/snowdemo/pkg/hotword"
	"github.com/algo-boyz/snowdemo/pkg/onnx"
	"github.com/algo-boyz/snowdemo/pkg/pin"
	"github.com/algo-boyz/snowdemo/pkg/settings"
	"github.com/algo-boyz/snowdemo/pkg/state"
)

const (
	// exitUsage is what the original demos return for bad arguments (-1).
	exitUsage   = 255
	exitFailure = 1
)

// forwardedFlags are passed on to chained listeners when set.
var forwardedFlags = []string{"config", "net", "runtime", "ding", "dong", "pin-url", "poll"}

var (
	configPath, netPath, runtimeDir string
	dingPath, dongPath, pinURL      string
	childModels                     string
	sensitivity                     float64
	pollEvery                       time.Duration

	// openDetector builds the session opener; tests swap it for a fake.
	openDetector = onnxOpener
)

func init() {
	flag.StringVar(&configPath, "config", "", "JSON settings file (or $SNOWDEMO_CONFIG)")
	flag.StringVar(&netPath, "net", hotword.OnnxModelPath(), "keyword embedding .onnx path")
	flag.StringVar(&runtimeDir, "runtime", "", "onnx runtime dir, defaults to ~/.local/lib")
	flag.StringVar(&dingPath, "ding", "", "cue played on detection")
	flag.StringVar(&dongPath, "dong", "", "cue played when the light goes off")
	flag.StringVar(&pinURL, "pin-url", "", "base url of the pin switch")
	flag.StringVar(&childModels, "child", "", "comma separated models of the chained one-shot listener")
	flag.Float64Var(&sensitivity, "sensitivity", -1, "detection sensitivity in [0,1]")
	flag.DurationVar(&pollEvery, "poll", 0, "sleep between polls without detection (default 30ms)")
	flag.Usage = func() { usage(flag.CommandLine.Output()) }
}

func usage(out io.Writer) {
	fmt.Fprintf(out, "Usage: %s [flags] <command> <model>...\n\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(out, "  light 1st.model 2nd.model   switch a pin on and off")
	fmt.Fprintln(out, "  chain model                 start a one-shot listener on detection")
	fmt.Fprintln(out, "  oneshot model... stop.model stop after the last model fires")
	fmt.Fprintln(out)
	prev := flag.CommandLine.Output()
	flag.CommandLine.SetOutput(out)
	flag.PrintDefaults()
	flag.CommandLine.SetOutput(prev)
}

func main() {
	flag.Parse()
	os.Exit(run(flag.Args(), os.Stderr))
}

// run returns the process exit code. Usage errors are reported on stderr
// before any detector resource is acquired.
func run(args []string, stderr io.Writer) int {
	cmd, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		usage(stderr)
		return exitUsage
	}
	cfg, err := settings.Loader{Path: configPath}.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitUsage
	}
	applyFlags(&cfg.Demo)
	if err = cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitUsage
	}
	logger, closeLog := newLogger(cfg.Log)
	defer closeLog()

	ctx := state.NewContext(logger)
	defer ctx.Exit()

	app := &App{
		ctx:    ctx,
		cfg:    cfg.Demo,
		logger: logger,
		open:   openDetector(ctx, logger),
		cues:   newCues(ctx, logger),
		pins:   pin.New(cfg.Demo.PinURL),
	}
	if cmd.name == cmdChain {
		launcher, err := newLauncher(cfg.Demo, logger)
		if err != nil {
			logger.Error("chain listener unavailable", "error", err)
			return exitFailure
		}
		ctx.Defer(func() {
			if err := launcher.Close(); err != nil {
				logger.Warn("chained listener", "error", err)
			}
		})
		app.launcher = launcher
	}
	if err = app.Run(cmd); err != nil {
		var cfgErr *hotword.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			usage(stderr)
			return exitUsage
		}
		logger.Error("session failed", "command", cmd.name, "error", err)
		return exitFailure
	}
	return 0
}

func applyFlags(demo *settings.Demo) {
	if sensitivity >= 0 {
		demo.Sensitivity = sensitivity
	}
	if dingPath != "" {
		demo.DingPath = dingPath
	}
	if dongPath != "" {
		demo.DongPath = dongPath
	}
	if pinURL != "" {
		demo.PinURL = pinURL
	}
	if pollEvery > 0 {
		demo.PollEvery.Duration = pollEvery
	}
	if childModels != "" {
		demo.ChildModels = strings.Split(childModels, ",")
	}
}

// onnxOpener fetches the runtime only once the session arguments are valid.
func onnxOpener(ctx state.Context, logger *slog.Logger) hotword.Opener {
	return func(models []string, sensitivities []float64) (hotword.Detector, error) {
		rt, err := onnx.DefaultRuntime()
		if err != nil {
			return nil, err
		}
		if runtimeDir != "" {
			rt.Dir = runtimeDir
		}
		if err = rt.Fetch(ctx, nil, logger); err != nil {
			return nil, fmt.Errorf("path to onnx runtime is required: %w", err)
		}
		cfg := hotword.DefaultOnnxConfig(rt.LibPath())
		cfg.NetworkPath = netPath
		return hotword.OnnxOpener(cfg, logger)(models, sensitivities)
	}
}

// newCues falls back to silence when no output device can be opened.
func newCues(ctx state.Context, logger *slog.Logger) Cuer {
	player, err := audio.NewPlayer(logger)
	if err != nil {
		logger.Warn("cues disabled", "error", err)
		return silentCues{}
	}
	ctx.Defer(func() {
		if err := player.Close(); err != nil {
			logger.Warn("close player", "error", err)
		}
	})
	return player
}

// newLauncher re-executes this binary as a one-shot listener, forwarding
// the flags that were set explicitly.
func newLauncher(demo settings.Demo, logger *slog.Logger) (*child.Launcher, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	var args []string
	flag.Visit(func(f *flag.Flag) {
		if slices.Contains(forwardedFlags, f.Name) {
			args = append(args, "-"+f.Name+"="+f.Value.String())
		}
	})
	args = append(args, "-sensitivity="+strconv.FormatFloat(demo.Sensitivity, 'f', -1, 64), cmdOneShot)
	args = append(args, demo.ChildModels...)
	return &child.Launcher{
		Path:   self,
		Args:   args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger.With("listener", "child"),
	}, nil
}

// newLogger writes to stderr and, when configured, to the log file as well.
func newLogger(cfg settings.Log) (*slog.Logger, func()) {
	var out io.Writer = os.Stderr
	closeLog := func() {}
	var fileErr error
	if cfg.Location != "" {
		if fileErr = os.MkdirAll(filepath.Dir(cfg.Location), 0o755); fileErr == nil {
			var f *os.File
			if f, fileErr = os.OpenFile(cfg.Location, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); fileErr == nil {
				out = io.MultiWriter(os.Stderr, f)
				closeLog = func() { _ = f.Close() }
			}
		}
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)}))
	if fileErr != nil {
		logger.Warn("logging to stderr only", "location", cfg.Location, "error", fileErr)
	}
	return logger, closeLog
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
