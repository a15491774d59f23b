package motor

import "sync"

// MockMotor records commands for tests and dry runs.
type MockMotor struct {
	mu       sync.Mutex
	speed    float64
	commands []float64
	err      error
}

// NewMockMotor creates a stopped mock motor.
func NewMockMotor() *MockMotor {
	return &MockMotor{}
}

func (m *MockMotor) Move(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.speed = clamp(speed)
	m.commands = append(m.commands, m.speed)
	return nil
}

func (m *MockMotor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.speed = 0
	m.commands = append(m.commands, 0)
	return nil
}

// Speed returns the current speed.
func (m *MockMotor) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Commands returns every speed commanded so far. Stops appear as 0.
func (m *MockMotor) Commands() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.commands))
	copy(out, m.commands)
	return out
}

// SetError makes subsequent commands fail with err.
func (m *MockMotor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
