// Package road turns per-frame road object detections into a target car speed.
package road

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/roadpilot/internal/clock"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/objects"
)

// DefaultMinHeightRatio is the box height, as a fraction of the frame height,
// above which an object counts as close by.
const DefaultMinHeightRatio = 0.05

// CarState is the speed decision for one frame, in percent of full throttle.
type CarState struct {
	Speed      int `json:"speed"`
	SpeedLimit int `json:"speed_limit"`
}

// TrafficObject reacts to one class of road object.
type TrafficObject interface {
	// IsCloseBy reports whether obj is near enough to act on.
	IsCloseBy(obj objects.DetectedObject, frameHeight int) bool
	// SetCarState applies the object's rule to state.
	SetCarState(state *CarState)
	// Clear resets any latched state. It is called on frames without the object.
	Clear()
}

type proximity struct {
	minHeightRatio float64
}

func (p proximity) IsCloseBy(obj objects.DetectedObject, frameHeight int) bool {
	if frameHeight <= 0 {
		return false
	}
	ratio := p.minHeightRatio
	if ratio <= 0 {
		ratio = DefaultMinHeightRatio
	}
	return float64(obj.Height())/float64(frameHeight) > ratio
}

func (proximity) Clear() {}

// GreenLight does not change the car state.
type GreenLight struct{ proximity }

func NewGreenLight(minHeightRatio float64) *GreenLight {
	return &GreenLight{proximity{minHeightRatio}}
}

func (*GreenLight) SetCarState(*CarState) {}

// RedLight stops the car.
type RedLight struct{ proximity }

func NewRedLight(minHeightRatio float64) *RedLight {
	return &RedLight{proximity{minHeightRatio}}
}

func (*RedLight) SetCarState(state *CarState) {
	state.Speed = 0
}

// Person stops the car.
type Person struct{ proximity }

func NewPerson(minHeightRatio float64) *Person {
	return &Person{proximity{minHeightRatio}}
}

func (*Person) SetCarState(state *CarState) {
	state.Speed = 0
}

// SpeedLimit sets the speed limit to Limit.
type SpeedLimit struct {
	proximity
	Limit int
}

func NewSpeedLimit(limit int, minHeightRatio float64) *SpeedLimit {
	return &SpeedLimit{proximity: proximity{minHeightRatio}, Limit: limit}
}

func (s *SpeedLimit) SetCarState(state *CarState) {
	state.SpeedLimit = s.Limit
}

// StopSign stops the car once per sign, waits, then lets it drive past.
//
// The latch is released after ClearAfterFrames consecutive calls to Clear,
// so the same sign does not stop the car twice.
type StopSign struct {
	proximity
	Wait             time.Duration
	ClearAfterFrames int

	clock clock.Clock
	log   *logger.Logger

	inWait      bool
	hasStopped  bool
	stoppedAt   time.Time
	noStopCount int
}

// NewStopSign creates a StopSign handler. A nil clock uses wall time.
func NewStopSign(wait time.Duration, clearAfterFrames int, minHeightRatio float64, clk clock.Clock, log *logger.Logger) *StopSign {
	if clk == nil {
		clk = clock.Real{}
	}
	if clearAfterFrames < 1 {
		clearAfterFrames = 1
	}
	return &StopSign{
		proximity:        proximity{minHeightRatio},
		Wait:             wait,
		ClearAfterFrames: clearAfterFrames,
		clock:            clk,
		log:              logger.Or(log),
	}
}

func (s *StopSign) SetCarState(state *CarState) {
	s.noStopCount = s.ClearAfterFrames

	if s.inWait {
		if s.clock.Since(s.stoppedAt) < s.Wait {
			state.Speed = 0
			return
		}
		s.log.Debug("Stop sign: waited %s, resuming", s.Wait)
		s.inWait = false
		return
	}

	if !s.hasStopped {
		state.Speed = 0
		s.inWait = true
		s.hasStopped = true
		s.stoppedAt = s.clock.Now()
		s.log.Debug("Stop sign: stopping for %s", s.Wait)
	}
}

func (s *StopSign) Clear() {
	if !s.hasStopped {
		return
	}
	s.noStopCount--
	if s.noStopCount <= 0 {
		s.log.Debug("Stop sign: reset")
		s.hasStopped = false
		s.inWait = false
	}
}

// Holding reports whether the car is still inside its stop wait at now.
func (s *StopSign) Holding(now time.Time) bool {
	return s.inWait && now.Sub(s.stoppedAt) < s.Wait
}

// Latched reports whether the sign has stopped the car and not yet been cleared.
func (s *StopSign) Latched() bool {
	return s.hasStopped
}

// HandlerConfig configures the handler table.
type HandlerConfig struct {
	MinHeightRatio  float64
	StopSignWait    time.Duration
	StopClearFrames int
	Clock           clock.Clock
	Logger          *logger.Logger
}

// DefaultHandlerConfig returns the stock handler settings.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		MinHeightRatio:  DefaultMinHeightRatio,
		StopSignWait:    3 * time.Second,
		StopClearFrames: 1,
	}
}

// DefaultHandlers returns the handler table for the stock road-sign model.
func DefaultHandlers(cfg HandlerConfig) map[int]TrafficObject {
	r := cfg.MinHeightRatio
	return map[int]TrafficObject{
		0: NewGreenLight(r),
		1: NewPerson(r),
		2: NewRedLight(r),
		3: NewSpeedLimit(25, r),
		4: NewSpeedLimit(40, r),
		5: NewStopSign(cfg.StopSignWait, cfg.StopClearFrames, r, cfg.Clock, cfg.Logger),
	}
}

// HandlersFromLabels builds a handler table from label names. Names are
// matched case-insensitively on "green", "red", "person", "stop" and
// "limit N". Labels that match nothing get no handler.
func HandlersFromLabels(labels objects.Labels, cfg HandlerConfig) (map[int]TrafficObject, error) {
	r := cfg.MinHeightRatio
	handlers := make(map[int]TrafficObject, len(labels))

	// All stop labels share one latch.
	var stop *StopSign

	for _, id := range labels.IDs() {
		name := strings.ToLower(labels[id])
		switch {
		case strings.Contains(name, "limit"):
			limit, err := trailingInt(name)
			if err != nil {
				return nil, fmt.Errorf("label %d %q: %w", id, labels[id], err)
			}
			handlers[id] = NewSpeedLimit(limit, r)
		case strings.Contains(name, "stop"):
			if stop == nil {
				stop = NewStopSign(cfg.StopSignWait, cfg.StopClearFrames, r, cfg.Clock, cfg.Logger)
			}
			handlers[id] = stop
		case strings.Contains(name, "red"):
			handlers[id] = NewRedLight(r)
		case strings.Contains(name, "green"):
			handlers[id] = NewGreenLight(r)
		case strings.Contains(name, "person"):
			handlers[id] = NewPerson(r)
		}
	}

	return handlers, nil
}

func trailingInt(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no speed value")
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("parse speed value: %w", err)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("speed value %d out of range", n)
	}
	return n, nil
}
