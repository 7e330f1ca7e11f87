package app

import (
	"context"
	"time"

	"github.com/ayusman/posetrack/internal/scheduler"
)

// runLoop steps one frame per tick until ctx is cancelled.
func (a *App) runLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var frame int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Step(frame)
			frame++
		}
	}
}

// Step runs one host frame:
// 1. Advance the backend (and recorder) to frame
// 2. Invoke every host phase in order, so the scheduler runs its passes
// 3. Publish a snapshot to subscribers
func (a *App) Step(frame int64) {
	a.feed.Advance(frame)
	if a.recorder != nil {
		a.recorder.Advance(frame)
	}

	for _, phase := range scheduler.HostOrder {
		a.sched.OnFramePhase(phase, frame)
	}

	a.publish(a.capture(frame))
}

func (a *App) capture(frame int64) Snapshot {
	snap := Snapshot{
		Frame:     frame,
		Time:      time.Now(),
		Poses:     make([]PoseState, 0, len(a.poses)),
		Skeletons: make([]SkeletonState, 0, len(a.skeletons)),
	}
	for _, ps := range a.poses {
		snap.Poses = append(snap.Poses, PoseState{
			Role:    ps.Role().String(),
			Changed: ps.Changed(),
			Pose:    ps.Current(),
		})
	}
	for _, ss := range a.skeletons {
		snap.Skeletons = append(snap.Skeletons, SkeletonState{
			Role:    ss.Role().String(),
			Changed: ss.Changed(),
			Status:  ss.Status(),
			Level:   ss.TrackingLevel().String(),
			Curls:   ss.FingerCurls(true),
			Splays:  ss.FingerSplays(true),
			Bones:   ss.Bones(),
		})
	}
	return snap
}

func (a *App) publish(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot = snap
	for ch := range a.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
