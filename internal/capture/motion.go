package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/clock"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// MotionDetector detects motion between consecutive video frames
// using frame differencing with Gaussian blur for noise reduction.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a new MotionDetector with the given threshold,
// the percentage of pixels that must change to count as motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one. It returns whether motion was
// detected and the percentage of pixels that changed. The first frame only
// sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	grayBlur(frame, &blurred)

	if !m.initialized {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	// A resolution change resets the baseline.
	if blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changePercent := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changePercent > m.threshold, changePercent
}

func grayBlur(frame *gocv.Mat, dst *gocv.Mat) {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	gocv.GaussianBlur(gray, dst, image.Pt(GaussianBlurSize, GaussianBlurSize), 0, 0, gocv.BorderDefault)
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MotionDetector) reset() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold sets the motion detection threshold.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// Gate timing defaults.
const (
	IdleFPS     = 5
	ActiveFPS   = 15
	IdleTimeout = 2 * time.Second
)

// MotionGate tracks whether a scene is active. Motion switches it to active;
// IdleTimeout without motion switches it back to idle.
type MotionGate struct {
	detector    *MotionDetector
	idleTimeout time.Duration
	clock       clock.Clock

	active     bool
	lastMotion time.Time
}

// NewMotionGate creates an idle gate. A nil clock uses wall time.
func NewMotionGate(detector *MotionDetector, idleTimeout time.Duration, clk clock.Clock) *MotionGate {
	if idleTimeout <= 0 {
		idleTimeout = IdleTimeout
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &MotionGate{detector: detector, idleTimeout: idleTimeout, clock: clk}
}

// Update feeds one frame. It returns whether the gate is active and whether
// that changed on this frame.
func (g *MotionGate) Update(frame *gocv.Mat) (active, changed bool) {
	motion, _ := g.detector.Detect(frame)
	return g.observe(motion)
}

func (g *MotionGate) observe(motion bool) (active, changed bool) {
	now := g.clock.Now()

	if motion {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true, true
		}
		return true, false
	}

	if g.active && now.Sub(g.lastMotion) > g.idleTimeout {
		g.active = false
		return false, true
	}
	return g.active, false
}

// Active reports the current state.
func (g *MotionGate) Active() bool {
	return g.active
}

// FPS returns the frame rate for the current state.
func (g *MotionGate) FPS() int {
	if g.active {
		return ActiveFPS
	}
	return IdleFPS
}
