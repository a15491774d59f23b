// Package motor drives DC motors through an H-bridge with two PWM pins per motor.
package motor

import (
	"fmt"
	"math"
	"sync"

	"gobot.io/x/gobot/drivers/gpio"
)

// Motor accepts a normalized speed or a stop command.
type Motor interface {
	// Move drives forward at speed in [0, 1].
	Move(speed float64) error
	// Stop cuts power to the motor.
	Stop() error
}

// PWMMotor is a two-pin H-bridge motor. The forward pin carries the duty
// cycle while the backward pin is held low, and the reverse for Backward.
type PWMMotor struct {
	writer   gpio.PwmWriter
	forward  string
	backward string

	mu    sync.Mutex
	value float64
}

// NewPWMMotor creates a motor on the given forward and backward pins.
func NewPWMMotor(writer gpio.PwmWriter, forwardPin, backwardPin string) *PWMMotor {
	return &PWMMotor{writer: writer, forward: forwardPin, backward: backwardPin}
}

// Move drives forward. Speed is clamped to [0, 1].
func (m *PWMMotor) Move(speed float64) error {
	return m.set(clamp(speed))
}

// Backward drives in reverse. Speed is clamped to [0, 1].
func (m *PWMMotor) Backward(speed float64) error {
	return m.set(-clamp(speed))
}

// Stop sets both pins low.
func (m *PWMMotor) Stop() error {
	return m.set(0)
}

// Value returns the last commanded speed, negative when reversing.
func (m *PWMMotor) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

func (m *PWMMotor) set(value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fwd, back := byte(0), byte(0)
	if value > 0 {
		fwd = duty(value)
	} else if value < 0 {
		back = duty(-value)
	}

	// Drop the idle side first so both pins are never high together.
	if fwd > 0 {
		if err := m.writer.PwmWrite(m.backward, 0); err != nil {
			return fmt.Errorf("pin %s: %w", m.backward, err)
		}
		if err := m.writer.PwmWrite(m.forward, fwd); err != nil {
			return fmt.Errorf("pin %s: %w", m.forward, err)
		}
	} else {
		if err := m.writer.PwmWrite(m.forward, 0); err != nil {
			return fmt.Errorf("pin %s: %w", m.forward, err)
		}
		if err := m.writer.PwmWrite(m.backward, back); err != nil {
			return fmt.Errorf("pin %s: %w", m.backward, err)
		}
	}

	m.value = value
	return nil
}

func duty(v float64) byte {
	return byte(math.Round(v * 255))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
