// Package sensor reads an ultrasonic distance sensor bridged over a serial line.
package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrNoReading is returned when the sensor produced no usable value.
var ErrNoReading = errors.New("no distance reading")

// DefaultMaxDistance caps readings, in metres.
const DefaultMaxDistance = 1.0

// Ranger yields one distance reading per poll, in metres.
type Ranger interface {
	Distance() (float64, error)
}

// PortOptions describes the serial link to the sensor bridge.
type PortOptions struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string
	ReadTimeout time.Duration
}

// Normalize applies defaults and validates the options.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}
	switch strings.ToUpper(strings.TrimSpace(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = time.Second
	}
	return opts, nil
}

// Mode converts the options into a go.bug.st/serial mode.
func (o PortOptions) Mode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// LineRanger parses newline-terminated centimetre readings, such as the
// output of an Arduino driving an HC-SR04.
type LineRanger struct {
	mu          sync.Mutex
	src         io.ReadCloser
	scanner     *bufio.Scanner
	maxDistance float64
}

// NewLineRanger reads readings from src. A maxDistance of 0 uses DefaultMaxDistance.
func NewLineRanger(src io.ReadCloser, maxDistance float64) *LineRanger {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &LineRanger{
		src:         src,
		scanner:     bufio.NewScanner(src),
		maxDistance: maxDistance,
	}
}

// OpenSerial opens a serial sensor bridge at path.
func OpenSerial(path string, opts PortOptions, maxDistance float64) (*LineRanger, error) {
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	norm, _ := opts.Normalize()

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(norm.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return NewLineRanger(port, maxDistance), nil
}

// Distance returns the next reading in metres, capped at the max distance.
// Malformed lines are skipped up to a small limit.
func (r *LineRanger) Distance() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if !r.scanner.Scan() {
			err := r.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			return 0, fmt.Errorf("%w: %w", ErrNoReading, err)
		}

		cm, err := ParseCentimetres(r.scanner.Text())
		if err != nil {
			lastErr = err
			continue
		}

		m := cm / 100
		if m > r.maxDistance {
			m = r.maxDistance
		}
		return m, nil
	}

	return 0, fmt.Errorf("%w: %w", ErrNoReading, lastErr)
}

// Close releases the underlying port.
func (r *LineRanger) Close() error {
	return r.src.Close()
}

// ParseCentimetres parses one bridge line such as "23.5", "23.5cm" or "d=23.5".
func ParseCentimetres(line string) (float64, error) {
	s := strings.TrimSpace(line)
	if i := strings.IndexByte(s, '='); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(s), "cm"))
	if s == "" {
		return 0, fmt.Errorf("empty reading")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse reading %q: %w", line, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative reading %q", line)
	}
	return v, nil
}
