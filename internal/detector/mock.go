package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []Hand
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many frames were passed to Detect.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// ThumbsUpLandmarks returns normalized landmarks of a right hand with only
// the thumb extended.
func ThumbsUpLandmarks() [NumLandmarks]Landmark {
	var lm [NumLandmarks]Landmark

	lm[Wrist] = Landmark{X: 0.5, Y: 0.8}

	// Thumb out to the right of its IP joint.
	lm[ThumbCMC] = Landmark{X: 0.55, Y: 0.75}
	lm[ThumbMCP] = Landmark{X: 0.58, Y: 0.65}
	lm[ThumbIP] = Landmark{X: 0.60, Y: 0.50}
	lm[ThumbTip] = Landmark{X: 0.64, Y: 0.35}

	// Curled fingers: tips below the PIP joints.
	lm[IndexMCP] = Landmark{X: 0.55, Y: 0.70, Z: -0.02}
	lm[IndexPIP] = Landmark{X: 0.55, Y: 0.66, Z: -0.05}
	lm[IndexDIP] = Landmark{X: 0.52, Y: 0.70, Z: -0.04}
	lm[IndexTip] = Landmark{X: 0.50, Y: 0.72, Z: -0.02}

	lm[MiddleMCP] = Landmark{X: 0.50, Y: 0.68, Z: -0.02}
	lm[MiddlePIP] = Landmark{X: 0.50, Y: 0.64, Z: -0.05}
	lm[MiddleDIP] = Landmark{X: 0.47, Y: 0.68, Z: -0.04}
	lm[MiddleTip] = Landmark{X: 0.45, Y: 0.70, Z: -0.02}

	lm[RingMCP] = Landmark{X: 0.45, Y: 0.70, Z: -0.02}
	lm[RingPIP] = Landmark{X: 0.45, Y: 0.66, Z: -0.05}
	lm[RingDIP] = Landmark{X: 0.42, Y: 0.70, Z: -0.04}
	lm[RingTip] = Landmark{X: 0.40, Y: 0.72, Z: -0.02}

	lm[PinkyMCP] = Landmark{X: 0.40, Y: 0.72, Z: -0.02}
	lm[PinkyPIP] = Landmark{X: 0.40, Y: 0.68, Z: -0.05}
	lm[PinkyDIP] = Landmark{X: 0.37, Y: 0.72, Z: -0.04}
	lm[PinkyTip] = Landmark{X: 0.35, Y: 0.74, Z: -0.02}

	return lm
}

// OpenPalmLandmarks returns normalized landmarks of a right hand with all
// five fingers extended.
func OpenPalmLandmarks() [NumLandmarks]Landmark {
	var lm [NumLandmarks]Landmark

	lm[Wrist] = Landmark{X: 0.5, Y: 0.8}

	lm[ThumbCMC] = Landmark{X: 0.55, Y: 0.75, Z: 0.02}
	lm[ThumbMCP] = Landmark{X: 0.62, Y: 0.70, Z: 0.03}
	lm[ThumbIP] = Landmark{X: 0.68, Y: 0.65, Z: 0.03}
	lm[ThumbTip] = Landmark{X: 0.73, Y: 0.60, Z: 0.03}

	lm[IndexMCP] = Landmark{X: 0.55, Y: 0.68}
	lm[IndexPIP] = Landmark{X: 0.57, Y: 0.55}
	lm[IndexDIP] = Landmark{X: 0.58, Y: 0.45}
	lm[IndexTip] = Landmark{X: 0.58, Y: 0.35}

	lm[MiddleMCP] = Landmark{X: 0.50, Y: 0.66}
	lm[MiddlePIP] = Landmark{X: 0.50, Y: 0.52}
	lm[MiddleDIP] = Landmark{X: 0.50, Y: 0.40}
	lm[MiddleTip] = Landmark{X: 0.50, Y: 0.28}

	lm[RingMCP] = Landmark{X: 0.45, Y: 0.68}
	lm[RingPIP] = Landmark{X: 0.43, Y: 0.55}
	lm[RingDIP] = Landmark{X: 0.42, Y: 0.45}
	lm[RingTip] = Landmark{X: 0.42, Y: 0.35}

	lm[PinkyMCP] = Landmark{X: 0.40, Y: 0.70}
	lm[PinkyPIP] = Landmark{X: 0.37, Y: 0.60}
	lm[PinkyDIP] = Landmark{X: 0.35, Y: 0.50}
	lm[PinkyTip] = Landmark{X: 0.34, Y: 0.42}

	return lm
}
