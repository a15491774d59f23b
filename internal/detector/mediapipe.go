package detector

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/inference"
	"github.com/ayusman/roadpilot/internal/logger"
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
type MediaPipeDetector struct {
	config  Config
	service *inference.Service
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(script string, config Config, log *logger.Logger) (*MediaPipeDetector, error) {
	if script == "" {
		script = "mediapipe_service.py"
	}

	svc, err := inference.NewService(script, config.Args(), log)
	if err != nil {
		return nil, err
	}

	return &MediaPipeDetector{config: config, service: svc}, nil
}

// Detect analyzes a frame and returns detected hands in pixel coordinates.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	var reply handsReply
	if err := d.service.Infer(frame, &reply); err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}

	return reply.toHands(frame.Cols(), frame.Rows(), d.config), nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	return d.service.Close()
}

// handsReply is the JSON line the helper writes per frame.
type handsReply struct {
	Hands []struct {
		Points     []Landmark `json:"points"`
		Handedness string     `json:"handedness"`
		Score      float64    `json:"score"`
	} `json:"hands"`
}

func (r handsReply) toHands(width, height int, config Config) []Hand {
	hands := make([]Hand, 0, len(r.Hands))
	for _, h := range r.Hands {
		if config.MaxHands > 0 && len(hands) == config.MaxHands {
			break
		}
		if len(h.Points) < NumLandmarks {
			continue
		}

		var lms [NumLandmarks]Landmark
		copy(lms[:], h.Points)
		hands = append(hands, NewHand(lms, h.Handedness, h.Score, width, height, config.FlipType))
	}
	return hands
}
