package capture

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() before Open error = %v, want ErrCameraNotOpen", err)
	}

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	if cam.Size() != image.Pt(640, 480) {
		t.Errorf("Size() = %v, want (640,480)", cam.Size())
	}

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		f.Close()
	}

	// Third read should fail (no loop)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream after all frames consumed, got %v", err)
	}
	if cam.Reads() != 2 {
		t.Errorf("Reads() = %d, want 2", cam.Reads())
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_EmptyLoop(t *testing.T) {
	cam := NewMockCamera(nil, true)
	cam.Open()

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("empty looping camera error = %v, want ErrEndOfStream", err)
	}

	cam.SetFPS(15)
	if cam.FPS() != 15 {
		t.Errorf("FPS() = %d, want 15", cam.FPS())
	}

	var _ Camera = cam
}
