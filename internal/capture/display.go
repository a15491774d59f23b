package capture

import "gocv.io/x/gocv"

// Display shows frames in a desktop window. A nil *Display is headless.
type Display struct {
	window *gocv.Window
}

// NewDisplay opens a window titled title.
func NewDisplay(title string) *Display {
	return &Display{window: gocv.NewWindow(title)}
}

// Show draws frame and polls the keyboard for 1ms. It reports true when q was pressed.
func (d *Display) Show(frame *gocv.Mat) bool {
	if d == nil || d.window == nil || frame == nil || frame.Empty() {
		return false
	}
	d.window.IMShow(*frame)
	return IsQuitKey(d.window.WaitKey(1))
}

// Close destroys the window.
func (d *Display) Close() error {
	if d == nil || d.window == nil {
		return nil
	}
	err := d.window.Close()
	d.window = nil
	return err
}

// IsQuitKey reports whether a WaitKey result is the q key.
func IsQuitKey(key int) bool {
	return key >= 0 && key&0xFF == 'q'
}

// Gray converts a BGR frame to a new single-channel Mat. The caller closes it.
func Gray(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
		return gray
	}
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	return gray
}
