package detector

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultAngleOffset is the tolerance used by AngleCheck.
const DefaultAngleOffset = 20.0

// LineInfo describes the segment measured by Distance.
type LineInfo struct {
	X1, Y1 int
	X2, Y2 int
	// CX, CY is the integer midpoint.
	CX, CY int
}

// Mid returns the midpoint.
func (l LineInfo) Mid() image.Point {
	return image.Pt(l.CX, l.CY)
}

func lineInfo(x1, y1, x2, y2 int) LineInfo {
	return LineInfo{X1: x1, Y1: y1, X2: x2, Y2: y2, CX: floorDiv(x1+x2, 2), CY: floorDiv(y1+y2, 2)}
}

// floorDiv rounds toward negative infinity, unlike Go's / operator.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FingersUp reports which fingers are extended, thumb first.
//
// The thumb counts as up when its tip is outside the IP joint horizontally,
// which depends on the hand type. The other fingers are up when the tip is
// above the PIP joint.
func FingersUp(h Hand) [5]bool {
	var up [5]bool
	lm := h.Landmarks

	tip, ip := lm[TipIDs[0]], lm[TipIDs[0]-1]
	if h.Type == "Right" {
		up[0] = tip.X > ip.X
	} else {
		up[0] = tip.X < ip.X
	}

	for i := 1; i < 5; i++ {
		up[i] = lm[TipIDs[i]].Y < lm[TipIDs[i]-2].Y
	}
	return up
}

// CountUp returns how many fingers are extended.
func CountUp(fingers [5]bool) int {
	n := 0
	for _, f := range fingers {
		if f {
			n++
		}
	}
	return n
}

// Distance returns the 2D distance between p1 and p2.
func Distance(p1, p2 image.Point) (float64, LineInfo) {
	length := math.Hypot(float64(p2.X-p1.X), float64(p2.Y-p1.Y))
	return length, lineInfo(p1.X, p1.Y, p2.X, p2.Y)
}

// Distance3D returns the Euclidean distance between p1 and p2 including depth.
// The line info is the XY projection.
func Distance3D(p1, p2 Point) (float64, LineInfo) {
	length := floats.Distance(vec(p1), vec(p2), 2)
	return length, lineInfo(p1.X, p1.Y, p2.X, p2.Y)
}

// Angle returns the angle at b formed by a-b-c in the image plane, in degrees.
func Angle(a, b, c image.Point) float64 {
	return Angle3D(Point{X: a.X, Y: a.Y}, Point{X: b.X, Y: b.Y}, Point{X: c.X, Y: c.Y})
}

// Angle3D returns the angle at b formed by a-b-c, in degrees.
// A zero-length arm yields 0.
func Angle3D(a, b, c Point) float64 {
	m := vec(a)
	n := vec(c)
	floats.Sub(m, vec(b))
	floats.Sub(n, vec(b))

	norms := floats.Norm(m, 2) * floats.Norm(n, 2)
	if norms == 0 {
		return 0
	}

	cos := floats.Dot(m, n) / norms
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// AngleCheck reports whether angle lies strictly within offset of target.
func AngleCheck(angle, target, offset float64) bool {
	return target-offset < angle && angle < target+offset
}

func vec(p Point) []float64 {
	return []float64{float64(p.X), float64(p.Y), float64(p.Z)}
}
