package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// FrameBuffer holds the most recent annotated frame as JPEG.
type FrameBuffer struct {
	mu     sync.Mutex
	jpeg   []byte
	seq    uint64
	notify chan struct{}
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{notify: make(chan struct{})}
}

// Publish encodes frame as JPEG and makes it the latest frame.
func (b *FrameBuffer) Publish(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return fmt.Errorf("publish: empty frame")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	defer buf.Close()

	b.PublishJPEG(buf.GetBytes())
	return nil
}

// PublishJPEG stores an already encoded frame. data is copied.
func (b *FrameBuffer) PublishJPEG(data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)

	b.mu.Lock()
	b.jpeg = frame
	b.seq++
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()
}

// Latest returns the current frame, its sequence number and a channel closed
// on the next publish.
func (b *FrameBuffer) Latest() ([]byte, uint64, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jpeg, b.seq, b.notify
}

// StreamHandler serves MJPEG frames from a FrameBuffer.
type StreamHandler struct {
	frames   *FrameBuffer
	interval time.Duration
}

// NewStreamHandler creates a handler that sends at most one frame per interval.
func NewStreamHandler(frames *FrameBuffer, interval time.Duration) *StreamHandler {
	return &StreamHandler{frames: frames, interval: interval}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var sent uint64
	for {
		data, seq, next := h.frames.Latest()
		if seq == sent || data == nil {
			select {
			case <-r.Context().Done():
				return
			case <-next:
				continue
			}
		}
		sent = seq

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		if h.interval > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(h.interval):
			}
		}
	}
}
