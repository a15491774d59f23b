// Package objects detects road objects (signs, lights, people) in video frames.
package objects

import (
	"image"

	"gocv.io/x/gocv"
)

// DetectedObject is one detection in a single frame.
type DetectedObject struct {
	ClassID int             `json:"class_id" cbor:"1,keyasint"`
	Label   string          `json:"label" cbor:"2,keyasint"`
	Score   float64         `json:"score" cbor:"3,keyasint"`
	Box     image.Rectangle `json:"box" cbor:"4,keyasint"`
}

// Height returns the bounding box height in pixels.
func (o DetectedObject) Height() int {
	return o.Box.Dy()
}

// Detector defines the interface for road object detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the objects found in it.
	// Returns an empty slice if nothing passes the confidence threshold.
	Detect(frame *gocv.Mat) ([]DetectedObject, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds options shared by detector backends.
type Config struct {
	Labels        Labels
	MinConfidence float64
}

// DefaultConfig returns a Config with the textbook threshold.
func DefaultConfig() Config {
	return Config{
		Labels:        DefaultLabels(),
		MinConfidence: 0.2,
	}
}

// BoxFromNormalized converts a [ymin, xmin, ymax, xmax] box in 0..1 coordinates
// into frame pixels, clamped to [1, size].
func BoxFromNormalized(ymin, xmin, ymax, xmax float64, width, height int) image.Rectangle {
	minY := int(max(1, ymin*float64(height)))
	minX := int(max(1, xmin*float64(width)))
	maxY := int(min(float64(height), ymax*float64(height)))
	maxX := int(min(float64(width), xmax*float64(width)))
	return image.Rect(minX, minY, maxX, maxY)
}
