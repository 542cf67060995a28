package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/kathakali/internal/capture"
	"github.com/ayusman/kathakali/internal/rig"
	"github.com/ayusman/kathakali/internal/store"
	"github.com/google/uuid"
)

// startSession launches a tracking session. Callers hold a.lifecycle.
func (a *App) startSession() {
	ctx, cancel := context.WithCancel(a.runCtx)
	end := make(chan struct{})
	id := uuid.New().String()

	a.mu.Lock()
	a.sessionID = id
	a.sessionCancel = cancel
	a.sessionEnd = end
	a.status = StatusLoading
	a.statusErr = nil
	a.mu.Unlock()

	a.faceVisible.Store(false)
	go a.runSession(ctx, id, end)
}

// stopSession cancels the running session and waits for it to release the
// camera. Callers hold a.lifecycle.
func (a *App) stopSession() {
	a.mu.Lock()
	cancel, end := a.sessionCancel, a.sessionEnd
	a.sessionCancel, a.sessionEnd = nil, nil
	// Cancelling under mu means no result can be published once this
	// returns; see publish.
	if cancel != nil {
		cancel()
	}
	a.mu.Unlock()

	if end != nil {
		<-end
	}
}

// runSession acquires the camera and model and feeds frames through the
// detector until ctx is cancelled or the camera fails. The camera is
// released on every path out, including cancellation while it is still
// opening.
func (a *App) runSession(ctx context.Context, id string, end chan struct{}) {
	defer close(end)

	log := a.log.With().Str("component", "tracker").Str("session", id).Logger()
	record := &store.Session{ID: id, Status: string(StatusLoading)}
	a.recordStart(record)

	final := StatusStopped
	var finalErr error
	defer func() {
		a.finish(final, finalErr)
		record.Status = string(final)
		if finalErr != nil {
			record.Error = finalErr.Error()
		}
		a.recordFinish(record)
	}()

	cam := a.newCamera()
	defer cam.Close()

	if err := cam.Open(); err != nil {
		if ctx.Err() == nil {
			final, finalErr = StatusCameraFailed, err
			log.Error().Err(err).Msg("camera unavailable")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	det, err := a.config.Detector.Get()
	if err != nil {
		if ctx.Err() == nil {
			final, finalErr = StatusModelFailed, err
			log.Error().Err(err).Msg("face model unavailable")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	var gate *capture.MotionGate
	if a.config.MotionThreshold > 0 {
		gate = capture.NewMotionGate(a.config.MotionThreshold, a.config.MotionMaxSkip)
		defer gate.Close()
	}

	a.setStatus(StatusTracking, nil)
	log.Info().Int("fps", cam.FPS()).Bool("motion_gate", gate != nil).Msg("tracking started")

	ticker := time.NewTicker(time.Second / time.Duration(max(cam.FPS(), 1)))
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("frames", a.frameCount.Load()).Msg("tracking stopped")
			return
		case <-ticker.C:
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			failures++
			log.Debug().Err(err).Int("failures", failures).Msg("frame read failed")
			if failures >= MaxReadFailures {
				final, finalErr = StatusCameraFailed, fmt.Errorf("%w: %v", capture.ErrCameraUnavailable, err)
				log.Error().Err(err).Msg("camera stopped delivering frames")
				return
			}
			continue
		}
		failures = 0
		a.frameCount.Add(1)
		record.Frames++
		now := a.clock()

		if a.config.PreviewQuality > 0 {
			if data, err := capture.EncodeJPEG(frame, a.config.PreviewQuality); err == nil {
				a.preview.Publish(&PreviewFrame{JPEG: data, CapturedAt: now})
			}
		}

		if gate != nil {
			if allowed, _ := gate.Allow(frame); !allowed {
				a.skipCount.Add(1)
				frame.Close()
				continue
			}
		}

		result, err := det.Detect(ctx, frame, a.nextTimestamp(now))
		frame.Close()
		if err != nil {
			if ctx.Err() == nil {
				log.Debug().Err(err).Msg("detection failed")
			}
			continue
		}
		a.detectionCount.Add(1)

		a.faceVisible.Store(result.HasFace())
		if result.HasFace() {
			a.faceCount.Add(1)
			record.Faces++
		}

		previous := a.frames.Load()
		next := rig.Normalize(result, previous)
		if next == previous {
			continue
		}
		if !a.publish(ctx, next) {
			return
		}
	}
}

// publish hands next to the render loop unless the session has been torn
// down. A detection that was in flight during teardown is dropped here.
func (a *App) publish(ctx context.Context, next *rig.FrameState) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	a.frames.Publish(next)
	return true
}

// nextTimestamp returns now in milliseconds, forced strictly past the
// previous timestamp handed to the detector.
func (a *App) nextTimestamp(now time.Time) int64 {
	ts := now.UnixMilli()
	if ts <= a.lastTimestamp {
		ts = a.lastTimestamp + 1
	}
	a.lastTimestamp = ts
	return ts
}

// finish records how the session ended. A failure stays visible until
// tracking is toggled.
func (a *App) finish(status Status, err error) {
	a.faceVisible.Store(false)
	a.setStatus(status, err)
}

func (a *App) recordStart(sess *store.Session) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Sessions().Start(sess); err != nil {
		a.log.Warn().Err(err).Msg("failed to record session start")
	}
}

func (a *App) recordFinish(sess *store.Session) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Sessions().Finish(sess); err != nil {
		a.log.Warn().Err(err).Msg("failed to record session end")
	}
}
