package app

import (
	"context"
	"time"

	"github.com/ayusman/kathakali/internal/avatar"
	"github.com/ayusman/kathakali/internal/rig"
)

// renderer is the render loop's private state.
type renderer struct {
	smoother *rig.Smoother
	last     time.Time
	seq      uint64
	head     rig.Rotation
	applier  *rig.Applier
	tracking bool
	primed   bool
}

// runRender applies the latest frame state to the avatar at the render rate
// and broadcasts the resulting pose. It never waits on detection: each tick
// loads whatever snapshot is current.
func (a *App) runRender(ctx context.Context, end chan struct{}) {
	defer close(end)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.RenderFPS))
	defer ticker.Stop()

	r := &renderer{smoother: rig.NewSmoother(a.config.Smoothing)}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.renderFrame(r, now)
		}
	}
}

// renderFrame runs one render tick and returns the pose, or nil when
// nothing changed since the previous tick.
func (a *App) renderFrame(r *renderer, now time.Time) *avatar.Pose {
	state, seq := a.frames.LoadWithSequence()
	applier := a.applier.Load()

	var dt time.Duration
	if !r.last.IsZero() {
		dt = now.Sub(r.last)
	}
	r.last = now

	head := r.smoother.Update(state.HeadRotation, dt)
	tracking := a.faceVisible.Load()
	if r.primed && seq == r.seq && head == r.head && applier == r.applier && tracking == r.tracking {
		return nil
	}
	r.primed, r.seq, r.head, r.applier, r.tracking = true, seq, head, applier, tracking

	if head != state.HeadRotation {
		smoothed := *state
		smoothed.HeadRotation = head
		state = &smoothed
	}

	model := a.config.Model
	applier.Apply(state, model)

	pose := model.Pose()
	pose.Sequence = seq
	pose.TimestampMs = now.UnixMilli()
	pose.Tracking = tracking
	pose.Landmarks = state.Landmarks

	a.poses.Publish(pose)
	if a.config.Sink != nil {
		a.config.Sink.Broadcast(pose)
	}
	return pose
}
