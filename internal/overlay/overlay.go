// Package overlay draws detections, hands and status text onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/detector"
	"github.com/ayusman/roadpilot/internal/objects"
	"github.com/ayusman/roadpilot/internal/road"
)

// Colors are given as RGBA; gocv converts them to BGR.
var (
	BoxColor   = color.RGBA{R: 0, G: 255, B: 10}
	HandColor  = color.RGBA{R: 255, G: 0, B: 255}
	PointColor = color.RGBA{R: 0, G: 0, B: 255}
	LineColor  = color.RGBA{R: 0, G: 255, B: 0}
	White      = color.RGBA{R: 255, G: 255, B: 255}
	Black      = color.RGBA{}
)

const (
	labelFont  = gocv.FontHersheySimplex
	labelScale = 0.7
	labelThick = 2
	handPad    = 20
)

// HandConnections are the landmark pairs joined when drawing a hand skeleton.
var HandConnections = [][2]int{
	{detector.Wrist, detector.ThumbCMC}, {detector.ThumbCMC, detector.ThumbMCP},
	{detector.ThumbMCP, detector.ThumbIP}, {detector.ThumbIP, detector.ThumbTip},
	{detector.Wrist, detector.IndexMCP}, {detector.IndexMCP, detector.IndexPIP},
	{detector.IndexPIP, detector.IndexDIP}, {detector.IndexDIP, detector.IndexTip},
	{detector.IndexMCP, detector.MiddleMCP}, {detector.MiddleMCP, detector.MiddlePIP},
	{detector.MiddlePIP, detector.MiddleDIP}, {detector.MiddleDIP, detector.MiddleTip},
	{detector.MiddleMCP, detector.RingMCP}, {detector.RingMCP, detector.RingPIP},
	{detector.RingPIP, detector.RingDIP}, {detector.RingDIP, detector.RingTip},
	{detector.RingMCP, detector.PinkyMCP}, {detector.Wrist, detector.PinkyMCP},
	{detector.PinkyMCP, detector.PinkyPIP}, {detector.PinkyPIP, detector.PinkyDIP},
	{detector.PinkyDIP, detector.PinkyTip},
}

// LabelText formats an object caption such as "Stop: 87%".
func LabelText(obj objects.DetectedObject) string {
	name := obj.Label
	if name == "" {
		name = fmt.Sprintf("class %d", obj.ClassID)
	}
	return fmt.Sprintf("%s: %d%%", name, int(obj.Score*100))
}

// LabelBox returns the filled background rectangle and the text origin for a
// caption of textSize drawn above box. The caption is pushed down when the box
// touches the top of the frame.
func LabelBox(box image.Rectangle, textSize image.Point, baseline int) (image.Rectangle, image.Point) {
	y := box.Min.Y
	if y < textSize.Y+10 {
		y = textSize.Y + 10
	}
	bg := image.Rect(box.Min.X, y-textSize.Y-10, box.Min.X+textSize.X, y+baseline-10)
	return bg, image.Pt(box.Min.X, y-7)
}

// FPSText formats the frame rate for one pass that took elapsed.
func FPSText(elapsed time.Duration) string {
	if elapsed <= 0 {
		return "-- FPS"
	}
	return fmt.Sprintf("%.1f FPS", 1/elapsed.Seconds())
}

// StateText summarizes a control decision.
func StateText(state road.CarState) string {
	return fmt.Sprintf("speed %d / limit %d", state.Speed, state.SpeedLimit)
}

// Objects draws a box and caption for every detection.
func Objects(frame *gocv.Mat, objs []objects.DetectedObject) {
	for _, obj := range objs {
		gocv.Rectangle(frame, obj.Box, BoxColor, 2)

		label := LabelText(obj)
		size := gocv.GetTextSize(label, labelFont, labelScale, labelThick)
		bg, origin := LabelBox(obj.Box, size, 0)
		gocv.Rectangle(frame, bg, White, -1)
		gocv.PutText(frame, label, origin, labelFont, labelScale, Black, labelThick)
	}
}

// Status writes text in the bottom-left corner.
func Status(frame *gocv.Mat, text string) {
	gocv.PutText(frame, text, image.Pt(10, frame.Rows()-10), labelFont, 1, White, 2)
}

// Banner writes text in the top-left corner.
func Banner(frame *gocv.Mat, text string) {
	gocv.PutText(frame, text, image.Pt(10, 30), labelFont, labelScale, White, labelThick)
}

// HandBox returns the padded rectangle drawn around a hand.
func HandBox(h detector.Hand) image.Rectangle {
	return h.BBox.Rect().Inset(-handPad)
}

// Hands draws the skeleton, padded box and handedness of each hand.
func Hands(frame *gocv.Mat, hands []detector.Hand) {
	for _, h := range hands {
		for _, c := range HandConnections {
			gocv.Line(frame, h.Landmarks[c[0]].XY(), h.Landmarks[c[1]].XY(), White, 2)
		}
		for _, p := range h.Landmarks {
			gocv.Circle(frame, p.XY(), 4, PointColor, -1)
		}
		gocv.Rectangle(frame, HandBox(h), HandColor, 2)
		gocv.PutText(frame, h.Type, image.Pt(h.BBox.X-30, h.BBox.Y-30), gocv.FontHersheyPlain, 2, HandColor, 2)
	}
}

// Distance marks both endpoints and the midpoint of a measurement line.
func Distance(frame *gocv.Mat, info detector.LineInfo, scale int) {
	if scale <= 0 {
		scale = 5
	}
	p1 := image.Pt(info.X1, info.Y1)
	p2 := image.Pt(info.X2, info.Y2)
	gocv.Circle(frame, p1, scale, HandColor, -1)
	gocv.Circle(frame, p2, scale, HandColor, -1)
	gocv.Line(frame, p1, p2, HandColor, max(1, scale/3))
	gocv.Circle(frame, info.Mid(), scale, HandColor, -1)
}

// Angle draws the two arms meeting at b and writes the angle below b.
func Angle(frame *gocv.Mat, a, b, c image.Point, degrees float64, scale int) {
	if scale <= 0 {
		scale = 5
	}
	thick := max(1, scale/5)
	gocv.Line(frame, a, b, White, thick)
	gocv.Line(frame, c, b, White, thick)
	for _, p := range []image.Point{a, b, c} {
		gocv.Circle(frame, p, scale, HandColor, -1)
		gocv.Circle(frame, p, scale+5, HandColor, thick)
	}
	gocv.PutText(frame, fmt.Sprintf("%d", int(degrees)), image.Pt(b.X-50, b.Y+50), gocv.FontHersheyPlain, 2, HandColor, 2)
}
