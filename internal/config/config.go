// Package config loads roadpilot settings from the environment and an optional .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the programs.
type Config struct {
	// Source is a camera index ("0", "8") or a video file / stream URL.
	Source     string
	SkipFrames int
	Display    bool

	// ObjectBackend is BackendService (TFLite helper process) or BackendDNN (OpenCV).
	ObjectBackend   string
	ObjectModel     string
	ObjectConfig    string // DNN config (pbtxt); optional for single-file models
	ObjectService   string // helper script for the service backend
	LabelsPath      string
	MinConfidence   float64
	CloseByRatio    float64
	SpeedLimit      int
	StopDwell       time.Duration // 0 disables the stopping dwell
	StopSignWait    time.Duration
	StopClearFrames int

	HandService string

	// Motor pins are gobot raspi header pins.
	LeftForwardPin   string
	LeftBackwardPin  string
	RightForwardPin  string
	RightBackwardPin string
	DryRun           bool

	SerialPort string
	SerialBaud int

	DataDir  string
	DBPath   string
	HTTPAddr string

	RecordPath  string
	RecordCodec string
	RecordFPS   float64

	LogLevel string
}

// Object detector backends.
const (
	BackendService = "service"
	BackendDNN     = "dnn"
)

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	dataDir := getEnv("ROADPILOT_DATA_DIR", defaultDataDir())

	return &Config{
		Source:     getEnv("ROADPILOT_SOURCE", "0"),
		SkipFrames: getEnvAsInt("ROADPILOT_SKIP_FRAMES", 0),
		Display:    getEnvAsBool("ROADPILOT_DISPLAY", false),

		ObjectBackend:   strings.ToLower(getEnv("ROADPILOT_OBJECT_BACKEND", BackendService)),
		ObjectModel:     getEnv("ROADPILOT_OBJECT_MODEL", filepath.Join("model_result", "road_signs_quantized.tflite")),
		ObjectConfig:    getEnv("ROADPILOT_OBJECT_CONFIG", ""),
		ObjectService:   getEnv("ROADPILOT_OBJECT_SERVICE", "tflite_service.py"),
		LabelsPath:      getEnv("ROADPILOT_LABELS", filepath.Join("model_result", "road_sign_labels.txt")),
		MinConfidence:   getEnvAsFloat("ROADPILOT_MIN_CONFIDENCE", 0.2),
		CloseByRatio:    getEnvAsFloat("ROADPILOT_CLOSE_BY_RATIO", 0.05),
		SpeedLimit:      getEnvAsInt("ROADPILOT_SPEED_LIMIT", 40),
		StopDwell:       getEnvAsDuration("ROADPILOT_STOP_DWELL", time.Second),
		StopSignWait:    getEnvAsDuration("ROADPILOT_STOP_SIGN_WAIT", 3*time.Second),
		StopClearFrames: getEnvAsInt("ROADPILOT_STOP_CLEAR_FRAMES", 1),

		HandService: getEnv("ROADPILOT_HAND_SERVICE", "mediapipe_service.py"),

		// BCM 18/23 and 24/25 on the 40-pin header.
		LeftForwardPin:   getEnv("ROADPILOT_LEFT_FORWARD_PIN", "12"),
		LeftBackwardPin:  getEnv("ROADPILOT_LEFT_BACKWARD_PIN", "16"),
		RightForwardPin:  getEnv("ROADPILOT_RIGHT_FORWARD_PIN", "18"),
		RightBackwardPin: getEnv("ROADPILOT_RIGHT_BACKWARD_PIN", "22"),
		DryRun:           getEnvAsBool("ROADPILOT_DRY_RUN", true),

		SerialPort: getEnv("ROADPILOT_SERIAL_PORT", "/dev/ttyUSB0"),
		SerialBaud: getEnvAsInt("ROADPILOT_SERIAL_BAUD", 9600),

		DataDir:  dataDir,
		DBPath:   getEnv("ROADPILOT_DB", filepath.Join(dataDir, "roadpilot.db")),
		HTTPAddr: getEnv("ROADPILOT_HTTP_ADDR", ":8080"),

		RecordPath:  getEnv("ROADPILOT_RECORD_PATH", ""),
		RecordCodec: getEnv("ROADPILOT_RECORD_CODEC", "XVID"),
		RecordFPS:   getEnvAsFloat("ROADPILOT_RECORD_FPS", 20),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// CameraIndex reports whether Source is a device index and returns it.
func (c *Config) CameraIndex() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Source))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roadpilot"
	}
	return filepath.Join(home, ".roadpilot")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("1500ms") or plain seconds ("1.5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
