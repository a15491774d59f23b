package detector

import (
	"errors"
	"image"
	"math"
	"slices"
	"testing"

	"github.com/ayusman/roadpilot/internal/inference"
)

const epsilon = 1e-9

func boxLandmarks() [NumLandmarks]Landmark {
	var lm [NumLandmarks]Landmark
	for i := range lm {
		lm[i] = Landmark{X: 0.5, Y: 0.5}
	}
	lm[Wrist] = Landmark{X: 0.25, Y: 0.75}
	lm[ThumbTip] = Landmark{X: 0.75, Y: 0.25}
	lm[IndexTip] = Landmark{X: 0.5, Y: 0.5, Z: -0.125}
	return lm
}

func TestNewHand(t *testing.T) {
	t.Run("pixel landmarks, bbox and center", func(t *testing.T) {
		h := NewHand(boxLandmarks(), "Right", 0.9, 640, 480, false)

		if got := h.Landmarks[Wrist]; got != (Point{X: 160, Y: 360}) {
			t.Errorf("wrist = %+v, want {160 360 0}", got)
		}
		if got := h.Landmarks[IndexTip].Z; got != -80 {
			t.Errorf("index tip Z = %d, want -80 (scaled by width)", got)
		}

		wantBox := BBox{X: 160, Y: 120, W: 320, H: 240}
		if h.BBox != wantBox {
			t.Errorf("BBox = %+v, want %+v", h.BBox, wantBox)
		}
		if h.Center != image.Pt(320, 240) {
			t.Errorf("Center = %v, want (320,240)", h.Center)
		}
		if h.BBox.Rect() != image.Rect(160, 120, 480, 360) {
			t.Errorf("Rect() = %v", h.BBox.Rect())
		}
		if h.Score != 0.9 {
			t.Errorf("Score = %f, want 0.9", h.Score)
		}
	})

	t.Run("hand type flip", func(t *testing.T) {
		tests := []struct {
			label string
			flip  bool
			want  string
		}{
			{"Right", false, "Right"},
			{"Left", false, "Left"},
			{"Right", true, "Left"},
			{"Left", true, "Right"},
		}
		for _, tt := range tests {
			h := NewHand(boxLandmarks(), tt.label, 1, 640, 480, tt.flip)
			if h.Type != tt.want {
				t.Errorf("NewHand(%q, flip=%v).Type = %q, want %q", tt.label, tt.flip, h.Type, tt.want)
			}
		}
	})

	t.Run("odd center uses integer division", func(t *testing.T) {
		var lm [NumLandmarks]Landmark
		lm[1] = Landmark{X: 0.5, Y: 0.5}
		h := NewHand(lm, "Left", 1, 3, 3, false)
		// Points span (0,0)-(1,1).
		if h.Center != image.Pt(0, 0) {
			t.Errorf("Center = %v, want (0,0)", h.Center)
		}
	})
}

func TestFingersUp(t *testing.T) {
	tests := []struct {
		name  string
		lm    [NumLandmarks]Landmark
		label string
		want  [5]bool
	}{
		{
			name:  "thumbs up right hand",
			lm:    ThumbsUpLandmarks(),
			label: "Right",
			want:  [5]bool{true, false, false, false, false},
		},
		{
			name:  "same pose as left hand folds the thumb",
			lm:    ThumbsUpLandmarks(),
			label: "Left",
			want:  [5]bool{false, false, false, false, false},
		},
		{
			name:  "open palm",
			lm:    OpenPalmLandmarks(),
			label: "Right",
			want:  [5]bool{true, true, true, true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHand(tt.lm, tt.label, 1, 640, 480, false)
			got := FingersUp(h)
			if got != tt.want {
				t.Errorf("FingersUp() = %v, want %v", got, tt.want)
			}
		})
	}

	if n := CountUp([5]bool{true, false, true, true, false}); n != 3 {
		t.Errorf("CountUp() = %d, want 3", n)
	}
}

func TestDistance(t *testing.T) {
	length, info := Distance(image.Pt(0, 0), image.Pt(3, 4))
	if math.Abs(length-5) > epsilon {
		t.Errorf("length = %f, want 5", length)
	}
	want := LineInfo{X1: 0, Y1: 0, X2: 3, Y2: 4, CX: 1, CY: 2}
	if info != want {
		t.Errorf("info = %+v, want %+v", info, want)
	}

	_, info = Distance(image.Pt(-3, 0), image.Pt(0, -1))
	if info.Mid() != image.Pt(-2, -1) {
		t.Errorf("Mid() = %v, want (-2,-1) (floored)", info.Mid())
	}
}

func TestDistance3D(t *testing.T) {
	length, info := Distance3D(Point{0, 0, 0}, Point{2, 3, 6})
	if math.Abs(length-7) > epsilon {
		t.Errorf("length = %f, want 7", length)
	}
	if info.CX != 1 || info.CY != 1 {
		t.Errorf("midpoint = (%d,%d), want (1,1)", info.CX, info.CY)
	}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Point
		want    float64
	}{
		{"right angle", Point{X: 10}, Point{}, Point{Y: 10}, 90},
		{"straight", Point{X: -5}, Point{}, Point{X: 5}, 180},
		{"same direction", Point{X: 5}, Point{}, Point{X: 9}, 0},
		{"45 degrees", Point{X: 1}, Point{}, Point{X: 1, Y: 1}, 45},
		{"degenerate arm", Point{}, Point{}, Point{X: 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle(tt.a.XY(), tt.b.XY(), tt.c.XY())
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Angle() = %f, want %f", got, tt.want)
			}
		})
	}

	t.Run("depth", func(t *testing.T) {
		got := Angle3D(Point{X: 1}, Point{}, Point{Z: 1})
		if math.Abs(got-90) > 1e-6 {
			t.Errorf("Angle3D() = %f, want 90", got)
		}
		// The same points projected onto the image plane collapse one arm.
		if got := Angle(image.Pt(1, 0), image.Pt(0, 0), image.Pt(0, 0)); got != 0 {
			t.Errorf("Angle() = %f, want 0", got)
		}
	})
}

func TestAngleCheck(t *testing.T) {
	tests := []struct {
		angle, target float64
		want          bool
	}{
		{90, 80, true},
		{60, 80, false},
		{100, 80, false},
		{99.9, 80, true},
	}
	for _, tt := range tests {
		if got := AngleCheck(tt.angle, tt.target, DefaultAngleOffset); got != tt.want {
			t.Errorf("AngleCheck(%v, %v) = %v, want %v", tt.angle, tt.target, got, tt.want)
		}
	}
}

func TestHandsReply_ToHands(t *testing.T) {
	lm := boxLandmarks()
	full := make([]Landmark, NumLandmarks)
	copy(full, lm[:])

	var reply handsReply
	reply.Hands = append(reply.Hands,
		struct {
			Points     []Landmark `json:"points"`
			Handedness string     `json:"handedness"`
			Score      float64    `json:"score"`
		}{Points: full[:5], Handedness: "Left", Score: 0.7},
		struct {
			Points     []Landmark `json:"points"`
			Handedness string     `json:"handedness"`
			Score      float64    `json:"score"`
		}{Points: full, Handedness: "Right", Score: 0.9},
		struct {
			Points     []Landmark `json:"points"`
			Handedness string     `json:"handedness"`
			Score      float64    `json:"score"`
		}{Points: full, Handedness: "Left", Score: 0.8},
	)

	config := DefaultConfig()
	hands := reply.toHands(640, 480, config)
	if len(hands) != 2 {
		t.Fatalf("got %d hands, want 2 (truncated reply skipped)", len(hands))
	}
	if hands[0].Type != "Left" || hands[1].Type != "Right" {
		t.Errorf("types = %q, %q; want flipped Left, Right", hands[0].Type, hands[1].Type)
	}

	config.MaxHands = 1
	if hands := reply.toHands(640, 480, config); len(hands) != 1 {
		t.Errorf("MaxHands=1 returned %d hands", len(hands))
	}
}

func TestConfig(t *testing.T) {
	c := DefaultConfig()
	if c.StaticMode || c.MaxHands != 2 || c.ModelComplexity != 1 || c.DetectionCon != 0.5 || c.MinTrackCon != 0.5 || !c.FlipType {
		t.Errorf("DefaultConfig() = %+v", c)
	}

	args := c.Args()
	if !slices.Contains(args, "--max-hands") || slices.Contains(args, "--static") {
		t.Errorf("Args() = %v", args)
	}

	c.StaticMode = true
	if !slices.Contains(c.Args(), "--static") {
		t.Errorf("Args() with StaticMode = %v", c.Args())
	}
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	_, err := NewMediaPipeDetector("no_such_hand_service.py", DefaultConfig(), nil)
	if !errors.Is(err, inference.ErrScriptNotFound) {
		t.Errorf("error = %v, want ErrScriptNotFound", err)
	}
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()

	hands, err := m.Detect(nil)
	if err != nil || len(hands) != 0 {
		t.Fatalf("Detect() = %v, %v; want no hands", hands, err)
	}

	want := []Hand{NewHand(OpenPalmLandmarks(), "Right", 1, 640, 480, true)}
	m.SetHands(want)
	hands, _ = m.Detect(nil)
	if len(hands) != 1 || hands[0].Type != "Left" {
		t.Errorf("Detect() = %+v", hands)
	}

	m.SetError(errors.New("boom"))
	if _, err := m.Detect(nil); err == nil {
		t.Error("expected error")
	}
	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}

	var _ Detector = m
	var _ Detector = (*MediaPipeDetector)(nil)
}
