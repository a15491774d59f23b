// Package capture reads frames from cameras and video files using GoCV (OpenCV),
// and writes or shows them.
package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings. A camera keeps the device's own frame rate
// until SetFPS is called.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrEndOfStream is returned when a source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Size is the frame size reported by the source once open.
	Size() image.Point
}

// cameraImpl reads from a capture device or a video file using GoCV.
type cameraImpl struct {
	source  string
	device  int
	isFile  bool
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
	size    image.Point
}

// NewCamera creates a Camera for source, which is either a device index
// ("0", "8") or a file path / stream URL.
func NewCamera(source string) Camera {
	c := &cameraImpl{
		source: strings.TrimSpace(source),
	}
	if id, err := strconv.Atoi(c.source); err == nil && id >= 0 {
		c.device = id
	} else {
		c.isFile = true
	}
	return c
}

// NewDeviceCamera creates a Camera for a capture device index.
func NewDeviceCamera(deviceID int) Camera {
	return NewCamera(strconv.Itoa(deviceID))
}

// Open opens the source. Devices are asked for 640x480.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if c.isFile {
		capture, err = gocv.OpenVideoCapture(c.source)
	} else {
		capture, err = gocv.OpenVideoCapture(c.device)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", c.source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open %s: source not available", c.source)
	}

	if !c.isFile {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		if c.fps > 0 {
			capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
		}
	}

	c.size = image.Pt(
		int(capture.Get(gocv.VideoCaptureFrameWidth)),
		int(capture.Get(gocv.VideoCaptureFrameHeight)),
	)
	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if c.isFile {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("read frame from device %d: no data", c.device)
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil && !c.isFile {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the requested frames per second, or 0 for the device default.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func (c *cameraImpl) Size() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}
