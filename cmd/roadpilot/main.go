// Command roadpilot drives a small car from camera frames: it detects road
// signs, traffic lights and people, turns them into a speed, and records
// every decision for the dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/roadpilot/internal/config"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/overlay"
	"github.com/ayusman/roadpilot/internal/road"
	"github.com/ayusman/roadpilot/internal/server"
	"github.com/ayusman/roadpilot/internal/tray"
)

const usage = `Usage: roadpilot [flags] <command> [args]

Commands:
  drive              detect road objects and drive the car
  photo IMAGE [OUT]  run one control pass on an image
  hands              track hands on moving scenes
  play               show the source in grayscale
  record             copy the source into the -record file
  avoid              run the ultrasonic obstacle-avoidance robot
  serve              serve recorded sessions only

Flags:
`

// options are the command-line overrides of the environment.
type options struct {
	command string
	args    []string
	tray    bool
}

func parseFlags(cfg *config.Config, argv []string) (options, error) {
	fs := flag.NewFlagSet("roadpilot", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&cfg.Source, "source", cfg.Source, "camera index, video file or stream URL")
	fs.IntVar(&cfg.SkipFrames, "skip", cfg.SkipFrames, "frames to drop at the start of a drive")
	fs.BoolVar(&cfg.Display, "display", cfg.Display, "show frames in a window")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "log motor commands instead of driving GPIO")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "dashboard listen address, empty to disable")
	fs.StringVar(&cfg.ObjectBackend, "backend", cfg.ObjectBackend, "object detector backend: service or dnn")
	fs.StringVar(&cfg.ObjectModel, "model", cfg.ObjectModel, "object detection model file")
	fs.StringVar(&cfg.LabelsPath, "labels", cfg.LabelsPath, "label file of the detection model")
	fs.IntVar(&cfg.SpeedLimit, "speed-limit", cfg.SpeedLimit, "initial speed limit in percent")
	fs.StringVar(&cfg.RecordPath, "record", cfg.RecordPath, "write annotated frames to this video file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warning or error")
	fs.BoolVar(&opts.tray, "tray", false, "show a system tray to pause driving")

	if err := fs.Parse(argv); err != nil {
		return opts, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return opts, errors.New("missing command")
	}

	opts.command = fs.Arg(0)
	opts.args = fs.Args()[1:]
	switch opts.command {
	case "drive", "hands", "play", "record", "avoid", "serve":
	case "photo":
		if len(opts.args) == 0 {
			return opts, errors.New("photo needs an image path")
		}
	default:
		return opts, fmt.Errorf("unknown command %q", opts.command)
	}
	return opts, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Default().Error("%v", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts, err := parseFlags(cfg, argv)
	if err != nil {
		return err
	}

	log := logger.Default()
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := setup(cfg, opts, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	var t *tray.Tray
	if opts.tray {
		t = tray.New()
		t.OnToggle(func(driving bool) { rt.app.SetPaused(!driving) })
		t.OnQuit(cancel)
		t.OnDashboard(func() {
			if err := openBrowser(dashboardURL(cfg.HTTPAddr)); err != nil {
				log.Warning("Failed to open dashboard: %v", err)
			}
		})
		rt.onDecision = func(state road.CarState) { t.SetLast(overlay.StateText(state)) }
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.HTTPAddr != "" {
		srv := server.New(server.Config{
			StaticDir: findWebDir(cfg.DataDir),
			Store:     rt.store,
			Frames:    rt.frames,
			Hub:       rt.hub,
			Logger:    log,
		})
		g.Go(func() error { return srv.Run(gctx, cfg.HTTPAddr) })
	}
	g.Go(func() error {
		defer cancel()
		return rt.runCommand(gctx, opts)
	})

	if t == nil {
		return g.Wait()
	}

	// The tray owns the main thread until it quits.
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		t.Quit()
	}()
	t.Run()
	cancel()
	return <-done
}
