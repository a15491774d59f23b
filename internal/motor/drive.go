package motor

import (
	"errors"
	"fmt"

	"gobot.io/x/gobot/drivers/gpio"
	"gobot.io/x/gobot/platforms/raspi"

	"github.com/ayusman/roadpilot/internal/logger"
)

// Pins names the H-bridge inputs of a left/right motor pair.
type Pins struct {
	LeftForward   string
	LeftBackward  string
	RightForward  string
	RightBackward string
}

// Drive moves a left and right motor together.
type Drive struct {
	Left  *PWMMotor
	Right *PWMMotor

	closer func() error
}

// NewDrive builds a drive on writer.
func NewDrive(writer gpio.PwmWriter, pins Pins) *Drive {
	return &Drive{
		Left:  NewPWMMotor(writer, pins.LeftForward, pins.LeftBackward),
		Right: NewPWMMotor(writer, pins.RightForward, pins.RightBackward),
	}
}

// OpenRaspi connects to the Raspberry Pi GPIO header and returns a drive on it.
func OpenRaspi(pins Pins, log *logger.Logger) (*Drive, error) {
	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, fmt.Errorf("connect raspi: %w", err)
	}

	logger.Or(log).Info("Motors on pins L(%s,%s) R(%s,%s)",
		pins.LeftForward, pins.LeftBackward, pins.RightForward, pins.RightBackward)

	d := NewDrive(adaptor, pins)
	d.closer = adaptor.Finalize
	return d, nil
}

// Move drives both motors forward at speed.
func (d *Drive) Move(speed float64) error {
	return errors.Join(d.Left.Move(speed), d.Right.Move(speed))
}

// Stop stops both motors.
func (d *Drive) Stop() error {
	return errors.Join(d.Left.Stop(), d.Right.Stop())
}

// Close stops the motors and releases the adaptor.
func (d *Drive) Close() error {
	err := d.Stop()
	if d.closer != nil {
		err = errors.Join(err, d.closer())
	}
	return err
}
