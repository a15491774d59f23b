package objects

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns scripted detections, one slice per call.
// Once the script is exhausted it keeps returning the last entry.
type MockDetector struct {
	mu     sync.Mutex
	frames [][]DetectedObject
	index  int
	err    error
	calls  int
}

// NewMockDetector creates a MockDetector that replays frames in order.
func NewMockDetector(frames ...[]DetectedObject) *MockDetector {
	return &MockDetector{frames: frames}
}

// SetObjects replaces the script with a single frame returned forever.
func (m *MockDetector) SetObjects(objs []DetectedObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = [][]DetectedObject{objs}
	m.index = 0
}

// SetError sets the error returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted frame.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]DetectedObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.frames) == 0 {
		return nil, nil
	}

	objs := m.frames[m.index]
	if m.index < len(m.frames)-1 {
		m.index++
	}
	return objs, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
