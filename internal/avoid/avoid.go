// Package avoid implements a bump-and-turn obstacle avoidance loop for a
// two-wheeled robot with a forward-facing distance sensor.
package avoid

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ayusman/roadpilot/internal/clock"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/sensor"
)

// Maneuver is the action taken for one reading.
type Maneuver int

const (
	Forward Maneuver = iota
	TurnLeft
	TurnRight
	BackUpTurnLeft
	BackUpTurnRight
)

func (m Maneuver) String() string {
	switch m {
	case Forward:
		return "forward"
	case TurnLeft:
		return "turn left"
	case TurnRight:
		return "turn right"
	case BackUpTurnLeft:
		return "back up, turn left"
	case BackUpTurnRight:
		return "back up, turn right"
	default:
		return fmt.Sprintf("maneuver(%d)", int(m))
	}
}

// Wheel is one reversible motor.
type Wheel interface {
	Move(speed float64) error
	Backward(speed float64) error
	Stop() error
}

// Settings are the speeds, distances and timing of the loop.
type Settings struct {
	ForwardLeft  float64
	ForwardRight float64
	TurnLeft     float64
	TurnRight    float64
	Delay        time.Duration
	// ObstacleCM triggers a turn; BackUpCM triggers a back-up first.
	ObstacleCM float64
	BackUpCM   float64
}

// DefaultSettings returns the tuned speeds for the stock chassis.
func DefaultSettings() Settings {
	return Settings{
		ForwardLeft:  0.45,
		ForwardRight: 0.5,
		TurnLeft:     0.59,
		TurnRight:    0.5,
		Delay:        time.Second,
		ObstacleCM:   25,
		BackUpCM:     20,
	}
}

// Robot drives Left and Right from Ranger readings.
type Robot struct {
	Left     Wheel
	Right    Wheel
	Ranger   sensor.Ranger
	Settings Settings

	clock clock.Clock
	roll  func() int
	log   *logger.Logger
}

// Option configures a Robot.
type Option func(*Robot)

// WithClock sets the clock used for maneuver delays.
func WithClock(c clock.Clock) Option {
	return func(r *Robot) { r.clock = c }
}

// WithDice sets the source of 1..100 rolls that pick the turn direction.
func WithDice(roll func() int) Option {
	return func(r *Robot) { r.roll = roll }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Robot) { r.log = l }
}

// NewRobot creates a Robot with DefaultSettings.
func NewRobot(left, right Wheel, ranger sensor.Ranger, opts ...Option) *Robot {
	r := &Robot{
		Left:     left,
		Right:    right,
		Ranger:   ranger,
		Settings: DefaultSettings(),
		clock:    clock.Real{},
		roll:     func() int { return rand.Intn(100) + 1 },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Or(r.log)
	return r
}

// Step takes one reading and performs the matching maneuver. It returns the
// maneuver and the distance in centimetres.
func (r *Robot) Step() (Maneuver, float64, error) {
	m, err := r.Ranger.Distance()
	if err != nil {
		return Forward, 0, fmt.Errorf("read distance: %w", err)
	}
	cm := m * 100
	r.log.Info("%.1f cm", cm)

	maneuver := r.Choose(cm)
	return maneuver, cm, r.perform(maneuver)
}

// Choose picks a maneuver for a distance without moving.
func (r *Robot) Choose(cm float64) Maneuver {
	s := r.Settings
	if cm > s.ObstacleCM {
		return Forward
	}

	left := r.roll() > 50
	switch {
	case cm < s.BackUpCM && left:
		return BackUpTurnLeft
	case cm < s.BackUpCM:
		return BackUpTurnRight
	case left:
		return TurnLeft
	default:
		return TurnRight
	}
}

func (r *Robot) perform(m Maneuver) error {
	s := r.Settings
	switch m {
	case Forward:
		return r.forward(s.ForwardLeft, s.ForwardRight)
	case TurnLeft:
		return r.turnLeft(s.TurnLeft)
	case TurnRight:
		return r.turnRight(s.TurnRight)
	case BackUpTurnLeft:
		if err := r.backward(s.ForwardLeft, s.ForwardRight); err != nil {
			return err
		}
		return r.turnLeft(s.TurnLeft)
	case BackUpTurnRight:
		if err := r.backward(s.ForwardLeft, s.ForwardRight); err != nil {
			return err
		}
		return r.turnRight(s.TurnRight)
	}
	return fmt.Errorf("unknown maneuver %d", int(m))
}

func (r *Robot) forward(left, right float64) error {
	return r.hold(r.Left.Move(left), r.Right.Move(right))
}

func (r *Robot) backward(left, right float64) error {
	return r.hold(r.Left.Backward(left), r.Right.Backward(right))
}

func (r *Robot) turnRight(speed float64) error {
	return r.hold(r.Left.Move(speed), r.Right.Stop())
}

func (r *Robot) turnLeft(speed float64) error {
	return r.hold(r.Left.Stop(), r.Right.Move(speed))
}

// hold keeps the wheels running for the delay, then stops both.
func (r *Robot) hold(errs ...error) error {
	if err := errors.Join(errs...); err != nil {
		return errors.Join(err, r.Stop())
	}
	r.clock.Sleep(r.Settings.Delay)
	return r.Stop()
}

// Stop stops both wheels.
func (r *Robot) Stop() error {
	return errors.Join(r.Left.Stop(), r.Right.Stop())
}

// Run steps until ctx is done or a step fails. The wheels are stopped on return.
func (r *Robot) Run(ctx context.Context) error {
	defer r.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, _, err := r.Step(); err != nil {
			return err
		}
	}
}
