package app

import (
	"fmt"
	"strings"

	"github.com/ayusman/roadpilot/internal/detector"
)

// Measurement is a distance between two landmarks in pixels.
type Measurement struct {
	Length float64
	Line   detector.LineInfo
}

// HandReport summarizes the first two hands of a frame.
type HandReport struct {
	// Types and Fingers are per hand.
	Types   []string
	Fingers []int
	// Pinch is the index-to-middle tip distance of the first hand.
	Pinch *Measurement
	// Between is the index-tip distance between the two hands.
	Between *Measurement
}

// DescribeHands measures up to two hands.
func DescribeHands(hands []detector.Hand) HandReport {
	var r HandReport
	if len(hands) > 2 {
		hands = hands[:2]
	}

	for _, h := range hands {
		r.Types = append(r.Types, h.Type)
		r.Fingers = append(r.Fingers, detector.CountUp(detector.FingersUp(h)))
	}

	if len(hands) >= 1 {
		lm := hands[0].Landmarks
		length, line := detector.Distance(lm[detector.IndexTip].XY(), lm[detector.MiddleTip].XY())
		r.Pinch = &Measurement{Length: length, Line: line}
	}
	if len(hands) == 2 {
		length, line := detector.Distance(
			hands[0].Landmarks[detector.IndexTip].XY(),
			hands[1].Landmarks[detector.IndexTip].XY(),
		)
		r.Between = &Measurement{Length: length, Line: line}
	}

	return r
}

func (r HandReport) String() string {
	parts := make([]string, 0, len(r.Types)+2)
	for i := range r.Types {
		parts = append(parts, fmt.Sprintf("%s hand: %d fingers up", r.Types[i], r.Fingers[i]))
	}
	if r.Pinch != nil {
		parts = append(parts, fmt.Sprintf("pinch %.0f px", r.Pinch.Length))
	}
	if r.Between != nil {
		parts = append(parts, fmt.Sprintf("between hands %.0f px", r.Between.Length))
	}
	if len(parts) == 0 {
		return "no hands"
	}
	return strings.Join(parts, ", ")
}
