package road

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/roadpilot/internal/clock"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/motor"
	"github.com/ayusman/roadpilot/internal/objects"
)

// ErrUnrecognizedObject is reported for detections with no handler.
var ErrUnrecognizedObject = errors.New("unrecognized object")

// Default controller settings.
const (
	DefaultSpeedLimit = 40
	DefaultStopDwell  = time.Second
)

// Config configures a Controller. Zero values take defaults.
type Config struct {
	SpeedLimit int
	// StopDwell is how long a stopping pass blocks. Negative disables it.
	StopDwell time.Duration
	Handlers  map[int]TrafficObject
	// Motor receives the resulting speed. Nil runs without actuation.
	Motor  motor.Motor
	Clock  clock.Clock
	Logger *logger.Logger
}

// Controller maps each frame's detections to a car state and actuates it.
// It is owned by a single drive loop; only State may be read concurrently.
type Controller struct {
	handlers   map[int]TrafficObject
	stopSigns  []*StopSign
	speedLimit int
	dwell      time.Duration
	motor      motor.Motor
	clock      clock.Clock
	log        *logger.Logger

	mu    sync.RWMutex
	state CarState
}

// NewController creates a controller. Without handlers it uses DefaultHandlers
// on the controller's clock and logger.
func NewController(cfg Config) *Controller {
	if cfg.SpeedLimit <= 0 {
		cfg.SpeedLimit = DefaultSpeedLimit
	}
	if cfg.StopDwell < 0 {
		cfg.StopDwell = 0
	} else if cfg.StopDwell == 0 {
		cfg.StopDwell = DefaultStopDwell
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	log := logger.Or(cfg.Logger)

	handlers := cfg.Handlers
	if handlers == nil {
		hc := DefaultHandlerConfig()
		hc.Clock = cfg.Clock
		hc.Logger = log
		handlers = DefaultHandlers(hc)
	}

	c := &Controller{
		handlers:   handlers,
		speedLimit: cfg.SpeedLimit,
		dwell:      cfg.StopDwell,
		motor:      cfg.Motor,
		clock:      cfg.Clock,
		log:        log,
		state:      CarState{Speed: 0, SpeedLimit: cfg.SpeedLimit},
	}

	seen := make(map[*StopSign]bool)
	for _, h := range handlers {
		if s, ok := h.(*StopSign); ok && !seen[s] {
			seen[s] = true
			c.stopSigns = append(c.stopSigns, s)
		}
	}

	return c
}

// Control runs one control pass over a frame's detections.
//
// The returned state is always valid. The error joins one
// ErrUnrecognizedObject per skipped detection with any motor failure.
func (c *Controller) Control(objs []objects.DetectedObject, frameHeight int) (CarState, error) {
	state := CarState{Speed: c.speedLimit, SpeedLimit: c.speedLimit}
	var errs []error
	sawStop := make(map[*StopSign]bool, len(c.stopSigns))

	for _, obj := range objs {
		handler, ok := c.handlers[obj.ClassID]
		if !ok {
			err := fmt.Errorf("%w: class %d", ErrUnrecognizedObject, obj.ClassID)
			c.log.Warning("Skipping detection: %v", err)
			errs = append(errs, err)
			continue
		}

		if s, ok := handler.(*StopSign); ok {
			sawStop[s] = true
		}

		if handler.IsCloseBy(obj, frameHeight) {
			handler.SetCarState(&state)
		} else {
			c.log.Debug("[%s] object detected, but it is too far, ignoring", labelOf(obj))
		}
	}

	now := c.clock.Now()
	for _, s := range c.stopSigns {
		if !sawStop[s] {
			s.Clear()
		}
		if s.Holding(now) {
			state.Speed = 0
		}
	}

	if err := c.resume(&state); err != nil {
		errs = append(errs, err)
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	return state, errors.Join(errs...)
}

func (c *Controller) resume(state *CarState) error {
	c.speedLimit = state.SpeedLimit

	if state.Speed == 0 {
		c.log.Debug("Actuating car state: stop, limit %d", state.SpeedLimit)
		var err error
		if c.motor != nil {
			if err = c.motor.Stop(); err != nil {
				err = fmt.Errorf("stop motor: %w", err)
			}
		}
		c.clock.Sleep(c.dwell)
		return err
	}

	state.Speed = state.SpeedLimit
	c.log.Debug("Actuating car state: speed %d, limit %d", state.Speed, state.SpeedLimit)
	if c.motor == nil {
		return nil
	}
	if err := c.motor.Move(float64(state.Speed) / 100); err != nil {
		return fmt.Errorf("move motor: %w", err)
	}
	return nil
}

// Stop halts the motor without changing the speed limit.
func (c *Controller) Stop() error {
	c.mu.Lock()
	c.state.Speed = 0
	c.mu.Unlock()

	if c.motor == nil {
		return nil
	}
	return c.motor.Stop()
}

// State returns the result of the last control pass.
func (c *Controller) State() CarState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SpeedLimit returns the limit carried into the next pass.
func (c *Controller) SpeedLimit() int {
	return c.speedLimit
}

// Handlers returns the handler table.
func (c *Controller) Handlers() map[int]TrafficObject {
	return c.handlers
}

func labelOf(obj objects.DetectedObject) string {
	if obj.Label != "" {
		return obj.Label
	}
	return fmt.Sprintf("class %d", obj.ClassID)
}
