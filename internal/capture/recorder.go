package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Recorder defaults.
const (
	DefaultCodec     = "XVID"
	DefaultRecordFPS = 20.0
)

// Recorder writes frames to a video file.
type Recorder struct {
	path   string
	size   image.Point
	writer *gocv.VideoWriter
	mu     sync.Mutex
	frames int
}

// NewRecorder opens path for writing color frames of size at fps using codec.
func NewRecorder(path, codec string, fps float64, size image.Point) (*Recorder, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	if fps <= 0 {
		fps = DefaultRecordFPS
	}
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(DefaultWidth, DefaultHeight)
	}

	writer, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer %s: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("open video writer %s: codec %s unavailable", path, codec)
	}

	return &Recorder{path: path, size: size, writer: writer}, nil
}

// Write appends frame, converting it to the recorder's size and to BGR when needed.
func (r *Recorder) Write(frame *gocv.Mat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return fmt.Errorf("recorder %s is closed", r.path)
	}
	if frame == nil || frame.Empty() {
		return fmt.Errorf("empty frame")
	}

	out := *frame

	if frame.Channels() == 1 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(out, &bgr, gocv.ColorGrayToBGR)
		out = bgr
	}

	if out.Cols() != r.size.X || out.Rows() != r.size.Y {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(out, &resized, r.size, 0, 0, gocv.InterpolationLinear)
		out = resized
	}

	if err := r.writer.Write(out); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	r.frames++
	return nil
}

// Frames returns how many frames were written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Path returns the output file.
func (r *Recorder) Path() string {
	return r.path
}

// Close finalizes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil
	}
	err := r.writer.Close()
	r.writer = nil
	return err
}
