package objects

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/logger"
)

// ErrNetworkNotLoaded is returned when Detect is called without a usable network.
var ErrNetworkNotLoaded = errors.New("detection network not loaded")

// SSD input geometry shared by the MobileNet road-sign exports.
const (
	ssdInputSize = 300
	ssdScale     = 1.0 / 127.5
	ssdMean      = 127.5
)

// DNNDetector runs an SSD network through OpenCV's DNN module.
type DNNDetector struct {
	config Config
	net    gocv.Net
	mu     sync.Mutex
	log    *logger.Logger
}

// NewDNNDetector loads the model (and optional config) into an OpenCV network.
func NewDNNDetector(modelPath, configPath string, config Config, log *logger.Logger) (*DNNDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("model config: %w", err)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNetworkNotLoaded, modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	log = logger.Or(log)
	log.Info("Loaded detection network %s", modelPath)

	return &DNNDetector{config: config, net: net, log: log}, nil
}

// Detect runs the network on frame.
func (d *DNNDetector) Detect(frame *gocv.Mat) ([]DetectedObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.net.Empty() {
		return nil, ErrNetworkNotLoaded
	}
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	blob := gocv.BlobFromImage(*frame, ssdScale, image.Pt(ssdInputSize, ssdInputSize),
		gocv.NewScalar(ssdMean, ssdMean, ssdMean, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// Each detection row is [batch, class, confidence, x1, y1, x2, y2].
	rows := output.Total() / 7
	if rows == 0 {
		return nil, nil
	}
	reshaped := output.Reshape(1, rows)
	defer reshaped.Close()

	detections := make([][7]float32, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < 7; j++ {
			detections[i][j] = reshaped.GetFloatAt(i, j)
		}
	}

	return ParseSSDRows(detections, frame.Cols(), frame.Rows(), d.config), nil
}

// ParseSSDRows converts raw SSD rows into objects above the confidence threshold.
func ParseSSDRows(rows [][7]float32, width, height int, config Config) []DetectedObject {
	var results []DetectedObject

	for _, row := range rows {
		confidence := float64(row[2])
		if confidence <= config.MinConfidence || confidence > 1.0 {
			continue
		}

		classID := int(row[1])
		results = append(results, DetectedObject{
			ClassID: classID,
			Label:   config.Labels.Name(classID),
			Score:   confidence,
			Box:     BoxFromNormalized(float64(row[4]), float64(row[3]), float64(row[6]), float64(row[5]), width, height),
		})
	}

	return results
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.net.Empty() {
		return nil
	}
	return d.net.Close()
}
