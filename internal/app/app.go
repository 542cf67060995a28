// Package app runs the face tracking session and the render loop that
// drives the avatar from it.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/kathakali/internal/avatar"
	"github.com/ayusman/kathakali/internal/capture"
	"github.com/ayusman/kathakali/internal/detector"
	"github.com/ayusman/kathakali/internal/rig"
	"github.com/ayusman/kathakali/internal/snapshot"
	"github.com/ayusman/kathakali/internal/store"
	"github.com/rs/zerolog"
)

// Pipeline defaults.
const (
	// DefaultRenderFPS is the rate the avatar pose is recomputed.
	DefaultRenderFPS = 30
	// MaxReadFailures is how many consecutive frame reads may fail before
	// the camera is considered lost.
	MaxReadFailures = 30
)

// PoseSink receives every rendered pose.
type PoseSink interface {
	Broadcast(pose *avatar.Pose)
}

// Config holds configuration options for the application.
type Config struct {
	Store    *store.Store
	Camera   capture.Config
	Detector *detector.Handle
	Model    *avatar.Model
	Sink     PoseSink
	Logger   zerolog.Logger

	// RenderFPS is the render loop rate (default 30).
	RenderFPS int
	// Smoothing is the head rotation filter rate; 0 mirrors the raw pose.
	Smoothing float64
	// MotionThreshold enables motion gating when > 0 (percent of pixels).
	MotionThreshold float64
	// MotionMaxSkip forces detection after this many gated frames.
	MotionMaxSkip int
	// PreviewQuality is the JPEG quality of preview frames; 0 disables them.
	PreviewQuality int

	Names       *rig.NameMap
	Expressions []rig.Expression

	// Enabled is the tracking state used when none is persisted.
	Enabled bool
}

// PreviewFrame is the latest camera frame as JPEG.
type PreviewFrame struct {
	JPEG       []byte
	CapturedAt time.Time
}

// App owns the tracking session and the render loop.
//
// The tracking session is the only writer of the frame state and the render
// loop its only reader; they meet through a snapshot.Handoff so rendering
// never waits for detection.
type App struct {
	config    Config
	log       zerolog.Logger
	newCamera func() capture.Camera
	clock     func() time.Time

	frames  *snapshot.Handoff[rig.FrameState]
	poses   *snapshot.Handoff[avatar.Pose]
	preview *snapshot.Handoff[PreviewFrame]
	applier atomic.Pointer[rig.Applier]
	// reloadMu orders ReloadNames calls so a stale store read is never
	// stored after a newer one.
	reloadMu sync.Mutex

	// lifecycle serializes Start, Stop and session transitions.
	lifecycle sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc
	renderEnd chan struct{}

	// mu guards the session fields and the publish-after-cancel check.
	mu            sync.Mutex
	enabled       bool
	status        Status
	statusErr     error
	sessionID     string
	sessionCancel context.CancelFunc
	sessionEnd    chan struct{}

	lastTimestamp int64 // owned by the running session

	frameCount     atomic.Uint64
	detectionCount atomic.Uint64
	faceCount      atomic.Uint64
	skipCount      atomic.Uint64
	faceVisible    atomic.Bool
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.RenderFPS <= 0 {
		config.RenderFPS = DefaultRenderFPS
	}
	if config.Model == nil {
		config.Model = avatar.ARKitModel()
	}
	if config.Names == nil {
		config.Names = rig.DefaultNameMap()
	}

	enabled := config.Enabled
	if config.Store != nil {
		enabled = config.Store.Settings().Bool(store.SettingTrackingEnabled, enabled)
	}

	a := &App{
		config:  config,
		log:     config.Logger.With().Str("component", "app").Logger(),
		clock:   time.Now,
		frames:  snapshot.New(rig.NewFrameState()),
		poses:   snapshot.New(config.Model.Pose()),
		preview: snapshot.New[PreviewFrame](nil),
		enabled: enabled,
		status:  StatusIdle,
	}
	a.newCamera = func() capture.Camera { return capture.NewCamera(config.Camera) }
	a.applier.Store(rig.NewApplier(config.Names, config.Expressions))

	if err := a.ReloadNames(); err != nil {
		a.log.Warn().Err(err).Msg("failed to load name mappings")
	}

	return a
}

// SetCameraFactory replaces how each session creates its camera.
func (a *App) SetCameraFactory(factory func() capture.Camera) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	a.newCamera = factory
}

// Start begins the render loop and, if tracking is enabled, a tracking
// session. Starting a running App is a no-op.
func (a *App) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.runCancel != nil {
		return nil
	}
	if a.config.Detector == nil {
		return errors.New("app: no detector configured")
	}

	a.runCtx, a.runCancel = context.WithCancel(ctx)
	a.renderEnd = make(chan struct{})
	go a.runRender(a.runCtx, a.renderEnd)

	if a.IsEnabled() {
		a.startSession()
	}

	a.log.Info().Int("render_fps", a.config.RenderFPS).Bool("tracking", a.IsEnabled()).Msg("pipeline started")
	return nil
}

// Stop ends the tracking session and the render loop and waits for both.
// The detector handle is left open; it lives until process exit.
func (a *App) Stop() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.runCancel == nil {
		return
	}

	a.stopSession()
	a.runCancel()
	<-a.renderEnd
	a.runCancel = nil
	a.runCtx = nil

	a.log.Info().Msg("pipeline stopped")
}

// SetEnabled turns tracking on or off. The choice is persisted when a
// store is configured. Re-enabling after a failure retries.
func (a *App) SetEnabled(enabled bool) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(store.SettingTrackingEnabled, enabled); err != nil {
			a.log.Warn().Err(err).Msg("failed to persist tracking state")
		}
	}

	if a.runCancel == nil {
		return
	}
	a.stopSession()
	if enabled {
		a.startSession()
	} else {
		a.setStatus(StatusIdle, nil)
	}
}

// IsEnabled returns whether tracking is enabled.
func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Status returns the tracker status and the error behind a failure.
func (a *App) Status() (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.statusErr
}

// Report returns a snapshot of the tracker state.
func (a *App) Report() Report {
	a.mu.Lock()
	r := Report{
		Status:  a.status,
		Enabled: a.enabled,
		Session: a.sessionID,
	}
	if a.statusErr != nil {
		r.Error = a.statusErr.Error()
	}
	a.mu.Unlock()

	r.FaceVisible = a.faceVisible.Load()
	r.Frames = a.frameCount.Load()
	r.Detections = a.detectionCount.Load()
	r.Faces = a.faceCount.Load()
	r.Skipped = a.skipCount.Load()
	r.Sequence = a.frames.Sequence()
	return r
}

func (a *App) setStatus(status Status, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
	a.statusErr = err
}

// ReloadNames rebuilds the name mapping from configuration and stored
// overrides. The render loop picks it up on its next tick.
func (a *App) ReloadNames() error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	names := a.config.Names
	if a.config.Store != nil {
		overrides, err := a.config.Store.Mappings().Overrides()
		if err != nil {
			return err
		}
		names = names.Merge(overrides)
	}
	a.applier.Store(rig.NewApplier(names, a.config.Expressions))
	return nil
}

// FrameState returns the latest published frame state.
func (a *App) FrameState() *rig.FrameState {
	return a.frames.Load()
}

// Pose returns the most recently rendered pose.
func (a *App) Pose() *avatar.Pose {
	return a.poses.Load()
}

// Preview returns the latest preview frame and its sequence number, or nil
// before the first frame.
func (a *App) Preview() (*PreviewFrame, uint64) {
	return a.preview.LoadWithSequence()
}

// Model returns the animation target.
func (a *App) Model() *avatar.Model {
	return a.config.Model
}

// Applier returns the current applier.
func (a *App) Applier() *rig.Applier {
	return a.applier.Load()
}
