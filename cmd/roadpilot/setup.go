package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ayusman/roadpilot/internal/app"
	"github.com/ayusman/roadpilot/internal/avoid"
	"github.com/ayusman/roadpilot/internal/capture"
	"github.com/ayusman/roadpilot/internal/config"
	"github.com/ayusman/roadpilot/internal/detector"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/motor"
	"github.com/ayusman/roadpilot/internal/objects"
	"github.com/ayusman/roadpilot/internal/overlay"
	"github.com/ayusman/roadpilot/internal/road"
	"github.com/ayusman/roadpilot/internal/sensor"
	"github.com/ayusman/roadpilot/internal/server"
	"github.com/ayusman/roadpilot/internal/store"
)

// runtimeState holds everything a command needs and closes it afterwards.
type runtimeState struct {
	cfg *config.Config
	log *logger.Logger

	app     *app.App
	camera  capture.Camera
	display *capture.Display
	store   *store.Store
	frames  *server.FrameBuffer
	hub     *server.StateHub
	drive   *motor.Drive

	onDecision func(road.CarState)
	closers    []func() error
}

func setup(cfg *config.Config, opts options, log *logger.Logger) (*runtimeState, error) {
	rt := &runtimeState{
		cfg:    cfg,
		log:    log,
		frames: server.NewFrameBuffer(),
		hub:    server.NewStateHub(log),
	}

	if err := rt.openStore(); err != nil {
		return nil, err
	}

	appCfg := app.Config{
		Store:      rt.store,
		Frames:     rt.frames,
		Hub:        rt.hub,
		Source:     cfg.Source,
		SkipFrames: cfg.SkipFrames,
		OnDecision: rt.decide,
		Logger:     log,
	}

	if opts.command != "serve" && opts.command != "photo" {
		rt.camera = capture.NewCamera(cfg.Source)
		appCfg.Camera = rt.camera
	}
	if cfg.Display {
		rt.display = capture.NewDisplay("roadpilot")
		rt.closers = append(rt.closers, rt.display.Close)
		appCfg.Display = rt.display
	}

	var err error
	switch opts.command {
	case "drive", "photo":
		err = rt.setupDrive(&appCfg)
	case "hands":
		err = rt.setupHands(&appCfg)
	case "avoid":
		err = rt.openDrive()
	}
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.RecordPath != "" && recordsFrames(opts.command) {
		rec, err := rt.openRecorder()
		if err != nil {
			rt.Close()
			return nil, err
		}
		appCfg.Recorder = rec
	}

	rt.app = app.New(appCfg)
	return rt, nil
}

func (rt *runtimeState) decide(state road.CarState) {
	if rt.onDecision != nil {
		rt.onDecision(state)
	}
}

func (rt *runtimeState) openStore() error {
	if err := os.MkdirAll(filepath.Dir(rt.cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(rt.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)
	return nil
}

func (rt *runtimeState) setupDrive(appCfg *app.Config) error {
	cfg := rt.cfg

	labels := objects.DefaultLabels()
	if cfg.LabelsPath != "" {
		loaded, err := objects.LoadLabels(cfg.LabelsPath)
		switch {
		case err == nil:
			labels = loaded
		case errors.Is(err, os.ErrNotExist):
			rt.log.Warning("Label file %s not found, using the stock labels", cfg.LabelsPath)
		default:
			return fmt.Errorf("load labels: %w", err)
		}
	}

	objCfg := objects.Config{Labels: labels, MinConfidence: cfg.MinConfidence}
	det, closeDet, err := newObjectDetector(cfg, objCfg, rt.log)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, closeDet)

	hc := road.DefaultHandlerConfig()
	hc.MinHeightRatio = cfg.CloseByRatio
	hc.StopSignWait = cfg.StopSignWait
	hc.StopClearFrames = cfg.StopClearFrames
	hc.Logger = rt.log
	handlers, err := road.HandlersFromLabels(labels, hc)
	if err != nil {
		return err
	}

	if err := rt.openDrive(); err != nil {
		return err
	}

	appCfg.Objects = det
	appCfg.Controller = road.NewController(road.Config{
		SpeedLimit: cfg.SpeedLimit,
		StopDwell:  stopDwell(cfg.StopDwell),
		Handlers:   handlers,
		Motor:      rt.drive,
		Logger:     rt.log,
	})
	return nil
}

// newObjectDetector builds the detector named by cfg.ObjectBackend.
func newObjectDetector(cfg *config.Config, objCfg objects.Config, log *logger.Logger) (objects.Detector, func() error, error) {
	switch cfg.ObjectBackend {
	case config.BackendDNN:
		d, err := objects.NewDNNDetector(cfg.ObjectModel, cfg.ObjectConfig, objCfg, log)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	case config.BackendService, "":
		d, err := objects.NewServiceDetector(cfg.ObjectService, cfg.ObjectModel, objCfg, log)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown object backend %q (want %s or %s)", cfg.ObjectBackend, config.BackendService, config.BackendDNN)
	}
}

// stopDwell maps the configured dwell onto road.Config, where zero means the default.
func stopDwell(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}

// recordsFrames reports whether a command writes annotated frames to RecordPath.
func recordsFrames(command string) bool {
	return command == "drive" || command == "record"
}

func (rt *runtimeState) setupHands(appCfg *app.Config) error {
	d, err := detector.NewMediaPipeDetector(rt.cfg.HandService, detector.DefaultConfig(), rt.log)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, d.Close)
	appCfg.Hands = d
	_, live := rt.cfg.CameraIndex()
	appCfg.Realtime = !live
	return nil
}

// openDrive connects the motors, or a logging writer on a dry run.
func (rt *runtimeState) openDrive() error {
	pins := motor.Pins{
		LeftForward:   rt.cfg.LeftForwardPin,
		LeftBackward:  rt.cfg.LeftBackwardPin,
		RightForward:  rt.cfg.RightForwardPin,
		RightBackward: rt.cfg.RightBackwardPin,
	}

	if rt.cfg.DryRun {
		rt.log.Info("Dry run: motor commands are only logged")
		rt.drive = motor.NewDrive(dryRunWriter{log: rt.log}, pins)
		return nil
	}

	d, err := motor.OpenRaspi(pins, rt.log)
	if err != nil {
		return err
	}
	rt.drive = d
	rt.closers = append(rt.closers, d.Close)
	return nil
}

func (rt *runtimeState) openRecorder() (*capture.Recorder, error) {
	requestRecordFPS(rt.camera, rt.cfg)
	if err := rt.camera.Open(); err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	rec, err := capture.NewRecorder(rt.cfg.RecordPath, rt.cfg.RecordCodec, rt.cfg.RecordFPS, rt.camera.Size())
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rec.Close)
	return rec, nil
}

// requestRecordFPS asks a camera device for the recording rate, since a device
// paces the recording. Files and streams keep their own rate.
func requestRecordFPS(cam capture.Camera, cfg *config.Config) {
	if _, live := cfg.CameraIndex(); live && cfg.RecordFPS > 0 {
		cam.SetFPS(int(math.Round(cfg.RecordFPS)))
	}
}

func (rt *runtimeState) runCommand(ctx context.Context, opts options) error {
	a := rt.app
	switch opts.command {
	case "drive":
		return a.RunDrive(ctx)
	case "photo":
		out := ""
		if len(opts.args) > 1 {
			out = opts.args[1]
		}
		state, err := a.RunPhoto(opts.args[0], out)
		if err == nil {
			rt.log.Info("%s: %s", opts.args[0], overlay.StateText(state))
		}
		return err
	case "hands":
		return a.RunHands(ctx)
	case "play":
		return a.RunPlay(ctx)
	case "record":
		n, err := a.RunRecord(ctx)
		rt.log.Info("Recorded %d frames", n)
		return err
	case "avoid":
		ranger, err := sensor.OpenSerial(rt.cfg.SerialPort, sensor.PortOptions{BaudRate: rt.cfg.SerialBaud}, 0)
		if err != nil {
			return err
		}
		defer ranger.Close()
		robot := avoid.NewRobot(rt.drive.Left, rt.drive.Right, ranger, avoid.WithLogger(rt.log))
		return a.RunAvoid(ctx, robot)
	case "serve":
		if rt.cfg.HTTPAddr == "" {
			return errors.New("serve needs an HTTP address")
		}
		<-ctx.Done()
		return nil
	}
	return fmt.Errorf("unknown command %q", opts.command)
}

// Close releases resources in reverse order of acquisition.
func (rt *runtimeState) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.Warning("Close: %v", err)
		}
	}
	rt.closers = nil
}

// dryRunWriter stands in for the GPIO header.
type dryRunWriter struct {
	log *logger.Logger
}

func (w dryRunWriter) PwmWrite(pin string, level byte) error {
	w.log.Debug("pwm %s = %d", pin, level)
	return nil
}

// findWebDir searches for the dashboard assets in common locations.
// It checks "web", "../web", "../../web" and dataDir/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	if dataDir == "" {
		return ""
	}
	dir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
