// Package fixtures builds synthetic road scenes and detection scripts for tests.
package fixtures

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/objects"
)

// Frame size of every fixture.
const (
	Width  = 640
	Height = 480
)

var (
	roadGray = color.RGBA{90, 90, 90, 0}
	signRed  = color.RGBA{200, 0, 0, 0}
)

// Near returns a detection tall enough to be acted on in a fixture frame.
func Near(classID int, label string) objects.DetectedObject {
	return objects.DetectedObject{ClassID: classID, Label: label, Score: 0.9, Box: image.Rect(400, 120, 480, 220)}
}

// Far returns a detection too small to be acted on in a fixture frame.
func Far(classID int, label string) objects.DetectedObject {
	return objects.DetectedObject{ClassID: classID, Label: label, Score: 0.6, Box: image.Rect(500, 100, 510, 110)}
}

// StopSignApproach is a drive past a stop sign: seen far away, then close
// for four frames, then gone.
func StopSignApproach() [][]objects.DetectedObject {
	far := Far(5, "Stop")
	near := Near(5, "Stop")
	return [][]objects.DetectedObject{
		{far},
		{near},
		{near},
		{near},
		{near},
		nil,
	}
}

// RoadFrame draws a gray road with a red patch for every detection.
// The caller closes the frame.
func RoadFrame(objs []objects.DetectedObject) *gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), Height, Width, gocv.MatTypeCV8UC3)
	road := gocv.NewPointsVectorFromPoints([][]image.Point{{
		{Width * 2 / 5, Height / 2},
		{Width * 3 / 5, Height / 2},
		{Width, Height},
		{0, Height},
	}})
	defer road.Close()

	gocv.FillPoly(&m, road, roadGray)
	for _, o := range objs {
		gocv.Rectangle(&m, o.Box, signRed, -1)
	}
	return &m
}

// Sequence renders one frame per scripted detection list.
func Sequence(script [][]objects.DetectedObject) []*gocv.Mat {
	frames := make([]*gocv.Mat, len(script))
	for i, objs := range script {
		frames[i] = RoadFrame(objs)
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
