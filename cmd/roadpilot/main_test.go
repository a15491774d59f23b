package main

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/roadpilot/internal/capture"
	"github.com/ayusman/roadpilot/internal/clock"
	"github.com/ayusman/roadpilot/internal/config"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/motor"
	"github.com/ayusman/roadpilot/internal/objects"
	"github.com/ayusman/roadpilot/internal/road"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd string
		wantErr bool
	}{
		{"drive", []string{"drive"}, "drive", false},
		{"flags before command", []string{"-source", "clip.mp4", "-skip", "3", "drive"}, "drive", false},
		{"photo with output", []string{"photo", "in.jpg", "out.png"}, "photo", false},
		{"photo without image", []string{"photo"}, "", true},
		{"missing command", nil, "", true},
		{"unknown command", []string{"fly"}, "", true},
		{"bad flag", []string{"-nope", "drive"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.FromEnv()
			opts, err := parseFlags(cfg, tt.argv)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, opts.command)
		})
	}
}

func TestParseFlags_Overrides(t *testing.T) {
	cfg := config.FromEnv()
	opts, err := parseFlags(cfg, []string{
		"-source", "clip.mp4", "-skip", "3", "-dry-run=false", "-http", "",
		"-speed-limit", "25", "-tray", "photo", "a.jpg", "b.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "clip.mp4", cfg.Source)
	assert.Equal(t, 3, cfg.SkipFrames)
	assert.False(t, cfg.DryRun)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 25, cfg.SpeedLimit)
	assert.True(t, opts.tray)
	assert.Equal(t, []string{"a.jpg", "b.png"}, opts.args)
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080"},
		{"0.0.0.0:9000", "http://localhost:9000"},
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"[::]:8080", "http://localhost:8080"},
		{"pi.local", "http://pi.local"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, dashboardURL(tt.addr))
		})
	}
}

func TestFindWebDir(t *testing.T) {
	dataDir := t.TempDir()
	assert.Empty(t, findWebDir(""), "no web dir in the package directory")
	assert.Empty(t, findWebDir(dataDir))

	web := filepath.Join(dataDir, "web")
	require.NoError(t, os.Mkdir(web, 0755))
	assert.Equal(t, web, findWebDir(dataDir))
}

func TestDryRunDrive(t *testing.T) {
	d := motor.NewDrive(dryRunWriter{log: logger.Discard()}, motor.Pins{
		LeftForward: "12", LeftBackward: "16", RightForward: "18", RightBackward: "22",
	})

	require.NoError(t, d.Move(0.4))
	assert.InDelta(t, 0.4, d.Left.Value(), 0.01)
	assert.InDelta(t, 0.4, d.Right.Value(), 0.01)
	require.NoError(t, d.Close())
	assert.Zero(t, d.Left.Value())
}

func TestParseFlags_Backend(t *testing.T) {
	cfg := config.FromEnv()
	_, err := parseFlags(cfg, []string{"-backend", "dnn", "-model", "signs.onnx", "drive"})
	require.NoError(t, err)

	assert.Equal(t, config.BackendDNN, cfg.ObjectBackend)
	assert.Equal(t, "signs.onnx", cfg.ObjectModel)
}

func TestNewObjectDetector(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "signs.onnx")
	objCfg := objects.Config{Labels: objects.DefaultLabels(), MinConfidence: 0.2}

	t.Run("dnn without config file", func(t *testing.T) {
		cfg := &config.Config{ObjectBackend: config.BackendDNN, ObjectModel: missing}
		_, _, err := newObjectDetector(cfg, objCfg, logger.Discard())
		require.Error(t, err)
		// Reaching the model check means the empty config path was accepted.
		assert.Contains(t, err.Error(), "model file")
	})

	t.Run("service without helper script", func(t *testing.T) {
		cfg := &config.Config{
			ObjectBackend: config.BackendService,
			ObjectModel:   missing,
			ObjectService: filepath.Join(t.TempDir(), "missing_service.py"),
		}
		_, _, err := newObjectDetector(cfg, objCfg, logger.Discard())
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{ObjectBackend: "coral", ObjectModel: missing}
		_, _, err := newObjectDetector(cfg, objCfg, logger.Discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown object backend")
	})
}

func TestStopDwell(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, stopDwell(250*time.Millisecond))
	assert.Negative(t, stopDwell(0), "an explicit zero disables the dwell")
	assert.Negative(t, stopDwell(-time.Second))
}

func TestStopDwell_ZeroDoesNotBlock(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMock(start)
	c := road.NewController(road.Config{StopDwell: stopDwell(0), Clock: clk, Logger: logger.Discard()})

	// A near person stops the car.
	person := objects.DetectedObject{ClassID: 1, Score: 0.9, Box: image.Rect(100, 100, 160, 200)}
	state, err := c.Control([]objects.DetectedObject{person}, 480)
	require.NoError(t, err)
	assert.Zero(t, state.Speed)
	assert.Equal(t, start, clk.Now(), "an explicit zero dwell must not block the pass")
}

func TestRecordsFrames(t *testing.T) {
	for cmd, want := range map[string]bool{
		"drive": true, "record": true,
		"avoid": false, "hands": false, "play": false, "photo": false, "serve": false,
	} {
		assert.Equal(t, want, recordsFrames(cmd), cmd)
	}
}

func TestRequestRecordFPS(t *testing.T) {
	tests := []struct {
		name   string
		source string
		fps    float64
		want   int
	}{
		{"device", "0", 20, 20},
		{"device rounds", "2", 29.97, 30},
		{"video file", "road.avi", 20, 0},
		{"unset rate", "0", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := capture.NewMockCamera(nil, false)
			requestRecordFPS(cam, &config.Config{Source: tt.source, RecordFPS: tt.fps})
			assert.Equal(t, tt.want, cam.FPS())
		})
	}
}
