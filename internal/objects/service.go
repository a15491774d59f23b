package objects

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/inference"
	"github.com/ayusman/roadpilot/internal/logger"
)

// ServiceDetector runs a TFLite model in a Python helper process.
type ServiceDetector struct {
	config  Config
	service *inference.Service
}

// NewServiceDetector prepares the helper; the process starts on the first frame.
func NewServiceDetector(script, modelPath string, config Config, log *logger.Logger) (*ServiceDetector, error) {
	args := []string{
		"--model", modelPath,
		"--min-confidence", strconv.FormatFloat(config.MinConfidence, 'f', -1, 64),
	}

	svc, err := inference.NewService(script, args, log)
	if err != nil {
		return nil, err
	}

	return &ServiceDetector{config: config, service: svc}, nil
}

// serviceReply is the helper's per-frame answer. Boxes are [ymin, xmin, ymax, xmax] in 0..1.
type serviceReply struct {
	Objects []struct {
		Class int        `json:"class"`
		Score float64    `json:"score"`
		Box   [4]float64 `json:"box"`
	} `json:"objects"`
}

// Detect sends frame to the helper.
func (d *ServiceDetector) Detect(frame *gocv.Mat) ([]DetectedObject, error) {
	var reply serviceReply
	if err := d.service.Infer(frame, &reply); err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}

	return d.toObjects(reply, frame.Cols(), frame.Rows()), nil
}

func (d *ServiceDetector) toObjects(reply serviceReply, width, height int) []DetectedObject {
	var results []DetectedObject
	for _, o := range reply.Objects {
		if o.Score <= d.config.MinConfidence || o.Score > 1.0 {
			continue
		}
		results = append(results, DetectedObject{
			ClassID: o.Class,
			Label:   d.config.Labels.Name(o.Class),
			Score:   o.Score,
			Box:     BoxFromNormalized(o.Box[0], o.Box[1], o.Box[2], o.Box[3], width, height),
		})
	}
	return results
}

// Close stops the helper process.
func (d *ServiceDetector) Close() error {
	return d.service.Close()
}
