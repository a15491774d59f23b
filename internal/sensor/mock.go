package sensor

import "sync"

// MockRanger replays scripted readings in metres, repeating the last one.
type MockRanger struct {
	mu       sync.Mutex
	readings []float64
	index    int
	err      error
}

// NewMockRanger creates a MockRanger.
func NewMockRanger(readings ...float64) *MockRanger {
	return &MockRanger{readings: readings}
}

func (m *MockRanger) Distance() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}
	if len(m.readings) == 0 {
		return 0, ErrNoReading
	}

	v := m.readings[m.index]
	if m.index < len(m.readings)-1 {
		m.index++
	}
	return v, nil
}

// SetError makes Distance fail with err.
func (m *MockRanger) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
