// Package app wires capture, detection, control and outputs into the
// roadpilot pipelines.
package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ayusman/roadpilot/internal/capture"
	"github.com/ayusman/roadpilot/internal/clock"
	"github.com/ayusman/roadpilot/internal/detector"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/objects"
	"github.com/ayusman/roadpilot/internal/road"
	"github.com/ayusman/roadpilot/internal/server"
	"github.com/ayusman/roadpilot/internal/store"
)

// ErrNotConfigured is returned when a pipeline lacks a required component.
var ErrNotConfigured = errors.New("pipeline component not configured")

// Config holds the components a pipeline may use. Only Camera is required
// by most pipelines; everything else is optional.
type Config struct {
	Camera     capture.Camera
	Objects    objects.Detector
	Hands      detector.Detector
	Controller *road.Controller

	Store    *store.Store
	Frames   *server.FrameBuffer
	Hub      *server.StateHub
	Display  *capture.Display
	Recorder *capture.Recorder

	// Source is recorded with each session.
	Source string
	// SkipFrames drops that many frames at the start of a drive.
	SkipFrames int
	// Realtime paces the hands loop at the motion gate's frame rate.
	Realtime bool
	// MotionThreshold is the changed-pixel percentage that counts as motion.
	MotionThreshold float64

	// OnDecision is called after every control pass.
	OnDecision func(road.CarState)

	Clock  clock.Clock
	Logger *logger.Logger
}

// App runs pipelines over a Config.
type App struct {
	config Config
	clock  clock.Clock
	log    *logger.Logger
	paused atomic.Bool

	mu      sync.Mutex
	session *store.Session
	seq     int
}

// New creates a new App with the given configuration.
func New(config Config) *App {
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	if config.MotionThreshold <= 0 {
		config.MotionThreshold = 1.0 // 1% pixel change
	}
	return &App{
		config: config,
		clock:  config.Clock,
		log:    logger.Or(config.Logger),
	}
}

// SetPaused pauses or resumes driving. A paused drive loop keeps reading
// frames but stops the motor and skips control.
func (a *App) SetPaused(paused bool) {
	a.paused.Store(paused)
	if paused {
		a.log.Info("Driving paused")
	} else {
		a.log.Info("Driving resumed")
	}
}

// Paused reports whether driving is paused.
func (a *App) Paused() bool {
	return a.paused.Load()
}

// Session returns the session being recorded, if any.
func (a *App) Session() *store.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) openCamera() error {
	if a.config.Camera == nil {
		return fmt.Errorf("camera: %w", ErrNotConfigured)
	}
	if a.config.Camera.IsOpen() {
		return nil
	}
	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	return nil
}

func (a *App) closeCamera() {
	if err := a.config.Camera.Close(); err != nil {
		a.log.Warning("Error closing camera: %v", err)
	}
}

func (a *App) startSession(mode string) {
	if a.config.Store == nil {
		return
	}

	limit := road.DefaultSpeedLimit
	if a.config.Controller != nil {
		limit = a.config.Controller.SpeedLimit()
	}

	sess := &store.Session{
		Mode:       mode,
		Source:     a.config.Source,
		SpeedLimit: limit,
		StartedAt:  a.clock.Now(),
	}
	if err := a.config.Store.Sessions().Create(sess); err != nil {
		a.log.Error("Failed to create session: %v", err)
		return
	}

	a.mu.Lock()
	a.session = sess
	a.seq = 0
	a.mu.Unlock()
	a.log.Info("Recording %s session %s", mode, sess.ID)
}

func (a *App) endSession() {
	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.mu.Unlock()

	if sess == nil {
		return
	}
	if err := a.config.Store.Sessions().End(sess.ID, a.clock.Now()); err != nil {
		a.log.Error("Failed to end session %s: %v", sess.ID, err)
	}
}

// record stores one decision in the current session.
func (a *App) record(state road.CarState, objs []objects.DetectedObject, controlErr error) {
	a.mu.Lock()
	sess := a.session
	a.seq++
	seq := a.seq
	a.mu.Unlock()

	if sess == nil {
		return
	}

	f := &store.Frame{
		SessionID:  sess.ID,
		Seq:        seq,
		Speed:      state.Speed,
		SpeedLimit: state.SpeedLimit,
		Objects:    objs,
		CreatedAt:  a.clock.Now(),
	}
	if controlErr != nil {
		f.Error = controlErr.Error()
	}
	if err := a.config.Store.Frames().Add(f); err != nil {
		a.log.Warning("Failed to store frame %d: %v", seq, err)
	}
}
