// Package detector finds hands in video frames and measures finger geometry.
package detector

import "image"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// TipIDs are the landmark indices of the five finger tips, thumb first.
var TipIDs = [5]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Landmark is a model output point. X and Y are normalized to the frame;
// Z is relative depth on the same scale as X.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point is a landmark in pixels. Z is scaled by the frame width.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// XY drops the depth.
func (p Point) XY() image.Point {
	return image.Pt(p.X, p.Y)
}

// BBox is an axis-aligned box in pixels.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the box to an image.Rectangle.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Hand is one detected hand in pixel coordinates.
type Hand struct {
	Landmarks [NumLandmarks]Point `json:"landmarks"`
	BBox      BBox                `json:"bbox"`
	Center    image.Point         `json:"center"`
	// Type is "Left" or "Right".
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// NewHand converts normalized landmarks to pixels for a width x height frame.
// With flip set the model's handedness label is swapped, which is correct
// for mirrored selfie-camera frames.
func NewHand(lms [NumLandmarks]Landmark, label string, score float64, width, height int, flip bool) Hand {
	h := Hand{Score: score, Type: label}

	minX, minY := 0, 0
	maxX, maxY := 0, 0
	for i, lm := range lms {
		p := Point{
			X: int(lm.X * float64(width)),
			Y: int(lm.Y * float64(height)),
			Z: int(lm.Z * float64(width)),
		}
		h.Landmarks[i] = p

		if i == 0 || p.X < minX {
			minX = p.X
		}
		if i == 0 || p.X > maxX {
			maxX = p.X
		}
		if i == 0 || p.Y < minY {
			minY = p.Y
		}
		if i == 0 || p.Y > maxY {
			maxY = p.Y
		}
	}

	h.BBox = BBox{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
	h.Center = image.Pt(h.BBox.X+h.BBox.W/2, h.BBox.Y+h.BBox.H/2)

	if flip {
		switch label {
		case "Right":
			h.Type = "Left"
		default:
			h.Type = "Right"
		}
	}

	return h
}
