package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/roadpilot/internal/avoid"
	"github.com/ayusman/roadpilot/internal/capture"
	"github.com/ayusman/roadpilot/internal/objects"
	"github.com/ayusman/roadpilot/internal/overlay"
	"github.com/ayusman/roadpilot/internal/road"
	"github.com/ayusman/roadpilot/internal/server"
)

// errQuit ends a loop when the display's quit key is pressed.
var errQuit = errors.New("quit requested")

// readFrame reads the next frame. End of stream is reported as (nil, nil).
func (a *App) readFrame() (*gocv.Mat, error) {
	frame, err := a.config.Camera.ReadFrame()
	if errors.Is(err, capture.ErrEndOfStream) {
		a.log.Info("End of stream")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

// RunDrive reads frames, detects road objects and drives the car until ctx
// is cancelled, the stream ends, a read fails or the quit key is pressed.
// The motor is stopped on return.
func (a *App) RunDrive(ctx context.Context) error {
	if a.config.Objects == nil || a.config.Controller == nil {
		return fmt.Errorf("drive needs a detector and a controller: %w", ErrNotConfigured)
	}
	if err := a.openCamera(); err != nil {
		return err
	}
	defer a.closeCamera()

	a.startSession("drive")
	defer a.endSession()

	defer func() {
		if err := a.config.Controller.Stop(); err != nil {
			a.log.Error("Failed to stop motor: %v", err)
		}
	}()

	a.log.Info("Drive loop started")
	stopped := false
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := a.readFrame()
		if err != nil || frame == nil {
			return err
		}

		if i < a.config.SkipFrames {
			frame.Close()
			continue
		}

		if a.Paused() {
			if !stopped {
				if err := a.config.Controller.Stop(); err != nil {
					a.log.Error("Failed to stop motor: %v", err)
				}
				stopped = true
			}
			overlay.Banner(frame, "paused")
		} else {
			stopped = false
			if _, _, err := a.ProcessFrame(frame); err != nil {
				a.log.Warning("Frame %d: %v", i, err)
			}
		}

		quit := a.config.Display.Show(frame)
		frame.Close()
		if quit {
			return nil
		}
	}
}

// ProcessFrame runs one control pass: detect, control, annotate, then record,
// publish and broadcast the decision. The frame is annotated in place.
func (a *App) ProcessFrame(frame *gocv.Mat) (road.CarState, []objects.DetectedObject, error) {
	start := a.clock.Now()

	objs, err := a.config.Objects.Detect(frame)
	if err != nil {
		return a.config.Controller.State(), nil, fmt.Errorf("detect objects: %w", err)
	}
	if len(objs) == 0 {
		a.log.Debug("No object detected")
	}

	state, controlErr := a.config.Controller.Control(objs, frame.Rows())

	overlay.Objects(frame, objs)
	overlay.Banner(frame, overlay.StateText(state))
	overlay.Status(frame, overlay.FPSText(a.clock.Since(start)))

	a.record(state, objs, controlErr)
	a.publish(frame)
	a.broadcast(state, objs)

	if a.config.OnDecision != nil {
		a.config.OnDecision(state)
	}

	return state, objs, controlErr
}

func (a *App) publish(frame *gocv.Mat) {
	if a.config.Recorder != nil {
		if err := a.config.Recorder.Write(frame); err != nil {
			a.log.Warning("Failed to record frame: %v", err)
		}
	}
	if a.config.Frames != nil {
		if err := a.config.Frames.Publish(frame); err != nil {
			a.log.Warning("Failed to publish frame: %v", err)
		}
	}
}

func (a *App) broadcast(state road.CarState, objs []objects.DetectedObject) {
	if a.config.Hub == nil {
		return
	}
	err := a.config.Hub.Broadcast(server.StateMessage{
		Speed:      state.Speed,
		SpeedLimit: state.SpeedLimit,
		Objects:    objs,
		Timestamp:  a.clock.Now().UnixMilli(),
	})
	if err != nil {
		a.log.Warning("Failed to broadcast state: %v", err)
	}
}

// RunPhoto runs one control pass on an image file and writes the annotated
// image to out when out is not empty.
func (a *App) RunPhoto(path, out string) (road.CarState, error) {
	if a.config.Objects == nil || a.config.Controller == nil {
		return road.CarState{}, fmt.Errorf("photo needs a detector and a controller: %w", ErrNotConfigured)
	}

	frame := gocv.IMRead(path, gocv.IMReadColor)
	defer frame.Close()
	if frame.Empty() {
		return road.CarState{}, fmt.Errorf("read image %s: empty or unsupported", path)
	}

	a.startSession("photo")
	defer a.endSession()

	state, _, err := a.ProcessFrame(&frame)
	if err != nil {
		a.log.Warning("%s: %v", path, err)
	}

	if out != "" {
		if ok := gocv.IMWrite(out, frame); !ok {
			return state, fmt.Errorf("write image %s", out)
		}
		a.log.Info("Wrote %s", out)
	}
	a.config.Display.Show(&frame)

	return state, nil
}

// RunPlay shows the source in grayscale until it ends or the quit key is pressed.
func (a *App) RunPlay(ctx context.Context) error {
	if err := a.openCamera(); err != nil {
		return err
	}
	defer a.closeCamera()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := a.readFrame()
		if err != nil || frame == nil {
			return err
		}

		gray := capture.Gray(frame)
		frame.Close()

		if a.config.Frames != nil {
			if err := a.config.Frames.Publish(&gray); err != nil {
				a.log.Warning("Failed to publish frame: %v", err)
			}
		}
		quit := a.config.Display.Show(&gray)
		gray.Close()
		if quit {
			return nil
		}
	}
}

// RunRecord copies frames into the recorder until ctx is cancelled, a read
// fails or the quit key is pressed. It returns the number of frames written.
func (a *App) RunRecord(ctx context.Context) (int, error) {
	if a.config.Recorder == nil {
		return 0, fmt.Errorf("recorder: %w", ErrNotConfigured)
	}
	if err := a.openCamera(); err != nil {
		return 0, err
	}
	defer a.closeCamera()

	a.log.Info("Recording to %s", a.config.Recorder.Path())
	for {
		select {
		case <-ctx.Done():
			return a.config.Recorder.Frames(), nil
		default:
		}

		frame, err := a.readFrame()
		if err != nil || frame == nil {
			return a.config.Recorder.Frames(), err
		}

		if err := a.config.Recorder.Write(frame); err != nil {
			frame.Close()
			return a.config.Recorder.Frames(), err
		}
		quit := a.config.Display.Show(frame)
		frame.Close()
		if quit {
			return a.config.Recorder.Frames(), nil
		}
	}
}

// RunAvoid runs the obstacle-avoidance robot. When both a camera and a
// display are configured the camera is shown alongside; pressing the quit
// key stops the robot.
func (a *App) RunAvoid(ctx context.Context, robot *avoid.Robot) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return robot.Run(ctx)
	})

	if a.config.Camera != nil && a.config.Display != nil {
		g.Go(func() error {
			if err := a.openCamera(); err != nil {
				return err
			}
			defer a.closeCamera()

			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}

				frame, err := a.readFrame()
				if err != nil || frame == nil {
					return err
				}
				quit := a.config.Display.Show(frame)
				frame.Close()
				if quit {
					return errQuit
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

// RunHands tracks hands on moving scenes. Frames are only sent to the hand
// detector while the motion gate is active.
func (a *App) RunHands(ctx context.Context) error {
	if a.config.Hands == nil {
		return fmt.Errorf("hand detector: %w", ErrNotConfigured)
	}
	if err := a.openCamera(); err != nil {
		return err
	}
	defer a.closeCamera()

	motion := capture.NewMotionDetector(a.config.MotionThreshold)
	defer motion.Close()
	gate := capture.NewMotionGate(motion, capture.IdleTimeout, a.clock)
	a.config.Camera.SetFPS(gate.FPS())

	var tick <-chan time.Time
	var ticker *time.Ticker
	if a.config.Realtime {
		ticker = time.NewTicker(time.Second / time.Duration(gate.FPS()))
		defer ticker.Stop()
		tick = ticker.C
	}

	a.log.Info("Hand tracking started")
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}

		frame, err := a.readFrame()
		if err != nil || frame == nil {
			return err
		}

		active, changed := gate.Update(frame)
		if changed {
			a.config.Camera.SetFPS(gate.FPS())
			if ticker != nil {
				ticker.Reset(time.Second / time.Duration(gate.FPS()))
			}
			if active {
				a.log.Info("Switched to active mode")
			} else {
				a.log.Info("Switched to idle mode")
			}
		}

		if active {
			a.trackHands(frame)
		}

		quit := a.config.Display.Show(frame)
		frame.Close()
		if quit {
			return nil
		}
	}
}

func (a *App) trackHands(frame *gocv.Mat) {
	hands, err := a.config.Hands.Detect(frame)
	if err != nil {
		a.log.Warning("Error detecting hands: %v", err)
		return
	}
	if len(hands) == 0 {
		return
	}

	report := DescribeHands(hands)
	a.log.Info("%s", report)

	overlay.Hands(frame, hands)
	if report.Pinch != nil {
		overlay.Distance(frame, report.Pinch.Line, 0)
	}
	if report.Between != nil {
		overlay.Distance(frame, report.Between.Line, 0)
	}
	if a.config.Frames != nil {
		if err := a.config.Frames.Publish(frame); err != nil {
			a.log.Warning("Failed to publish frame: %v", err)
		}
	}
}
