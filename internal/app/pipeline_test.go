package app

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/roadpilot/internal/capture"
	"github.com/ayusman/roadpilot/internal/clock"
	"github.com/ayusman/roadpilot/internal/detector"
	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/motor"
	"github.com/ayusman/roadpilot/internal/objects"
	"github.com/ayusman/roadpilot/internal/road"
	"github.com/ayusman/roadpilot/internal/server"
	"github.com/ayusman/roadpilot/internal/store"
)

// solidFrames returns n 640x480 frames filled with the given gray levels in turn.
func solidFrames(t *testing.T, n int, levels ...float64) []*gocv.Mat {
	t.Helper()
	if len(levels) == 0 {
		levels = []float64{0}
	}
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		v := levels[i%len(levels)]
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 480, 640, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

func box(classID int) objects.DetectedObject {
	return objects.DetectedObject{ClassID: classID, Score: 0.9, Box: image.Rect(100, 100, 160, 220)}
}

type driveHarness struct {
	app     *App
	camera  *capture.MockCamera
	objects *objects.MockDetector
	motor   *motor.MockMotor
	store   *store.Store
	frames  *server.FrameBuffer
	states  []road.CarState
}

func newDriveHarness(t *testing.T, skip int, script ...[]objects.DetectedObject) *driveHarness {
	t.Helper()

	clk := clock.NewMock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	m := motor.NewMockMotor()
	log := logger.Discard()

	hc := road.DefaultHandlerConfig()
	hc.Clock = clk
	hc.Logger = log
	ctrl := road.NewController(road.Config{
		Handlers: road.DefaultHandlers(hc),
		Motor:    m,
		Clock:    clk,
		Logger:   log,
	})

	s, err := store.New(filepath.Join(t.TempDir(), "drive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := &driveHarness{
		camera:  capture.NewMockCamera(solidFrames(t, len(script)+skip), false),
		objects: objects.NewMockDetector(script...),
		motor:   m,
		store:   s,
		frames:  server.NewFrameBuffer(),
	}
	h.app = New(Config{
		Camera:     h.camera,
		Objects:    h.objects,
		Controller: ctrl,
		Store:      s,
		Frames:     h.frames,
		Source:     "test.mp4",
		SkipFrames: skip,
		OnDecision: func(state road.CarState) { h.states = append(h.states, state) },
		Clock:      clk,
		Logger:     log,
	})
	return h
}

func TestApp_RunDrive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	h := newDriveHarness(t, 0,
		[]objects.DetectedObject{box(3)}, // speed limit 25
		[]objects.DetectedObject{box(2)}, // red light
		nil,
	)

	require.NoError(t, h.app.RunDrive(context.Background()))

	want := []road.CarState{
		{Speed: 25, SpeedLimit: 25},
		{Speed: 0, SpeedLimit: 25},
		{Speed: 25, SpeedLimit: 25},
	}
	assert.Equal(t, want, h.states)
	assert.Equal(t, []float64{0.25, 0, 0.25, 0}, h.motor.Commands(), "motor stops on exit")
	assert.False(t, h.camera.IsOpen())
	assert.Zero(t, h.camera.FPS(), "drive keeps the source frame rate")
	assert.Nil(t, h.app.Session())

	_, seq, _ := h.frames.Latest()
	assert.Equal(t, uint64(3), seq)

	sessions, err := h.store.Sessions().List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	sess := sessions[0]
	assert.Equal(t, "drive", sess.Mode)
	assert.Equal(t, "test.mp4", sess.Source)
	assert.Equal(t, road.DefaultSpeedLimit, sess.SpeedLimit)
	assert.NotNil(t, sess.EndedAt)

	frames, err := h.store.Frames().ListBySession(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Seq)
		assert.Equal(t, want[i].Speed, f.Speed)
		assert.Empty(t, f.Error)
	}
	require.Len(t, frames[1].Objects, 1)
	assert.Equal(t, 2, frames[1].Objects[0].ClassID)
}

func TestApp_RunDrive_SkipFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	h := newDriveHarness(t, 2, nil, nil)

	require.NoError(t, h.app.RunDrive(context.Background()))
	assert.Equal(t, 4, h.camera.Reads())
	assert.Equal(t, 2, h.objects.Calls())
	assert.Len(t, h.states, 2)
}

func TestApp_RunDrive_Paused(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	h := newDriveHarness(t, 0, nil, nil, nil)
	h.app.SetPaused(true)

	require.NoError(t, h.app.RunDrive(context.Background()))
	assert.Equal(t, 0, h.objects.Calls())
	assert.Empty(t, h.states)
	assert.Equal(t, []float64{0, 0}, h.motor.Commands(), "one stop on pause and one on exit")
}

func TestApp_RunDrive_Cancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	h := newDriveHarness(t, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.app.RunDrive(ctx))
	assert.Equal(t, 0, h.camera.Reads())
	assert.Equal(t, []float64{0}, h.motor.Commands())
}

func TestApp_ProcessFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	t.Run("unknown class is reported and skipped", func(t *testing.T) {
		h := newDriveHarness(t, 0, []objects.DetectedObject{box(99), box(1)})
		frame := solidFrames(t, 1)[0]

		state, objs, err := h.app.ProcessFrame(frame)
		assert.ErrorIs(t, err, road.ErrUnrecognizedObject)
		assert.Equal(t, road.CarState{Speed: 0, SpeedLimit: 40}, state)
		assert.Len(t, objs, 2)
	})

	t.Run("detector failure keeps the last state", func(t *testing.T) {
		h := newDriveHarness(t, 0, []objects.DetectedObject{box(4)})
		frame := solidFrames(t, 1)[0]

		_, _, err := h.app.ProcessFrame(frame)
		require.NoError(t, err)

		h.objects.SetError(assert.AnError)
		state, objs, err := h.app.ProcessFrame(frame)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, objs)
		assert.Equal(t, road.CarState{Speed: 40, SpeedLimit: 40}, state)
		assert.Len(t, h.states, 1, "no decision on a failed frame")
	})
}

func TestApp_RunPlay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	fb := server.NewFrameBuffer()
	a := New(Config{
		Camera: capture.NewMockCamera(solidFrames(t, 3, 40, 200), false),
		Frames: fb,
		Logger: logger.Discard(),
	})

	require.NoError(t, a.RunPlay(context.Background()))
	data, seq, _ := fb.Latest()
	assert.Equal(t, uint64(3), seq)
	assert.NotEmpty(t, data)
}

func TestApp_RunRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	path := filepath.Join(t.TempDir(), "out.avi")
	rec, err := capture.NewRecorder(path, "MJPG", 5, image.Pt(640, 480))
	require.NoError(t, err)
	defer rec.Close()

	cam := capture.NewMockCamera(solidFrames(t, 4), false)
	a := New(Config{
		Camera:   cam,
		Recorder: rec,
		Logger:   logger.Discard(),
	})

	n, err := a.RunRecord(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Zero(t, cam.FPS(), "record keeps the source frame rate")
}

func TestApp_RunHands(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	palm := detector.NewHand(detector.OpenPalmLandmarks(), "Right", 1, 640, 480, false)

	tests := []struct {
		name      string
		levels    []float64
		wantCalls bool
	}{
		{"still scene stays idle", []float64{0}, false},
		{"moving scene tracks hands", []float64{0, 255}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands := detector.NewMockDetector()
			hands.SetHands([]detector.Hand{palm})
			fb := server.NewFrameBuffer()

			cam := capture.NewMockCamera(solidFrames(t, 4, tt.levels...), false)
			a := New(Config{
				Camera: cam,
				Hands:  hands,
				Frames: fb,
				Clock:  clock.NewMock(time.Unix(0, 0)),
				Logger: logger.Discard(),
			})

			require.NoError(t, a.RunHands(context.Background()))
			assert.Positive(t, cam.FPS(), "the motion gate paces the camera")
			_, seq, _ := fb.Latest()
			if tt.wantCalls {
				assert.Positive(t, hands.Calls())
				assert.Positive(t, seq)
			} else {
				assert.Zero(t, hands.Calls())
				assert.Zero(t, seq)
			}
		})
	}
}
