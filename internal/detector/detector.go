package detector

import (
	"strconv"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the hands found in it.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// StaticMode runs full detection on every frame instead of tracking.
	StaticMode bool

	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// ModelComplexity selects the landmark model, 0 or 1.
	ModelComplexity int

	// DetectionCon is the minimum detection confidence threshold (0.0-1.0).
	DetectionCon float64

	// MinTrackCon is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackCon float64

	// FlipType swaps Left and Right for mirrored frames.
	FlipType bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		ModelComplexity: 1,
		DetectionCon:    0.5,
		MinTrackCon:     0.5,
		FlipType:        true,
	}
}

// Args renders the model options as helper command-line flags.
func (c Config) Args() []string {
	args := []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--model-complexity", strconv.Itoa(c.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(c.DetectionCon, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackCon, 'f', -1, 64),
	}
	if c.StaticMode {
		args = append(args, "--static")
	}
	return args
}
