// Package app wires a tracking backend, the frame scheduler and the pose and skeleton
// sources into a running tracking loop.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/posetrack/internal/config"
	"github.com/ayusman/posetrack/internal/pose"
	"github.com/ayusman/posetrack/internal/recorder"
	"github.com/ayusman/posetrack/internal/scheduler"
	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/tracking"
	"github.com/rs/zerolog"
)

// Feed is a backend that serves both poses and skeletons and is stepped once per frame.
type Feed interface {
	pose.Provider
	skeleton.Provider
	Advance(frame int64)
}

// PoseState is the published state of one pose source.
type PoseState struct {
	Role    string      `json:"role"`
	Changed bool        `json:"changed"`
	Pose    pose.Sample `json:"pose"`
}

// SkeletonState is the published state of one skeleton source.
type SkeletonState struct {
	Role    string          `json:"role"`
	Changed bool            `json:"changed"`
	Status  skeleton.Status `json:"status"`
	Level   string          `json:"level"`
	Curls   []float64       `json:"curls"`
	Splays  []float64       `json:"splays"`
	Bones   skeleton.Bones  `json:"bones"`
}

// Snapshot is the state of every source after a frame.
type Snapshot struct {
	Frame     int64           `json:"frame"`
	Time      time.Time       `json:"time"`
	Poses     []PoseState     `json:"poses"`
	Skeletons []SkeletonState `json:"skeletons"`
}

// App is the tracking loop. Sources are only touched from the loop goroutine, or
// from the caller of Step when the loop is not running.
type App struct {
	cfg       *config.Config
	feed      Feed
	sched     *scheduler.Scheduler
	poses     []*pose.Source
	skeletons []*skeleton.Source
	recorder  *recorder.Recorder
	logger    zerolog.Logger

	mu          sync.RWMutex
	snapshot    Snapshot
	subscribers map[chan Snapshot]struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates the sources for every configured role and attaches them to a scheduler
// running the configured policy. Hands also get a skeleton source.
func New(cfg *config.Config, feed Feed, logger zerolog.Logger) *App {
	a := &App{
		cfg:         cfg,
		feed:        feed,
		logger:      logger.With().Str("component", "app").Logger(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	a.sched = scheduler.New(cfg.Scheduler.Phase(), logger)

	motion, space, summary := cfg.Skeleton.Modes()
	for _, role := range cfg.Tracking.ParsedRoles() {
		ps := pose.New(pose.Config{
			Role:                   role,
			Provider:               feed,
			HistorySize:            cfg.Tracking.HistorySize,
			PeakWindow:             cfg.Tracking.PeakWindow,
			ChangeTolerance:        cfg.Tracking.PoseChangeTolerance,
			DisableDeviceBroadcast: !cfg.Tracking.BroadcastDeviceChanges,
			Logger:                 logger,
		})
		a.watchPose(ps)
		ps.Attach(a.sched)
		a.poses = append(a.poses, ps)

		if !role.IsHand() {
			continue
		}
		ss := skeleton.New(skeleton.Config{
			Role:              role,
			Provider:          feed,
			ChangeTolerance:   cfg.Skeleton.ChangeTolerance,
			MotionRange:       motion,
			TransformSpace:    space,
			SummaryType:       summary,
			OnlyUpdateSummary: cfg.Skeleton.OnlySummary,
			Logger:            logger,
		})
		a.watchSkeleton(ss)
		ss.Attach(a.sched)
		a.skeletons = append(a.skeletons, ss)
	}

	a.logger.Info().
		Str("policy", a.sched.Policy().String()).
		Int("poses", len(a.poses)).
		Int("skeletons", len(a.skeletons)).
		Msg("Tracking sources ready")
	return a
}

func (a *App) watchPose(ps *pose.Source) {
	ps.OnConnectedChanged(func(ev pose.ConnectedEvent) {
		a.logger.Info().Str("role", ev.Role.String()).Bool("connected", ev.Connected).Msg("Device connection changed")
	})
	ps.OnTrackingChanged(func(ev pose.TrackingEvent) {
		a.logger.Debug().Str("role", ev.Role.String()).Str("result", ev.Result.String()).Msg("Tracking result changed")
	})
	ps.OnDeviceIndexChanged(func(ev pose.DeviceIndexEvent) {
		a.logger.Info().Str("role", ev.Role.String()).Int("device", ev.Index).Msg("Device binding changed")
	})
}

func (a *App) watchSkeleton(ss *skeleton.Source) {
	ss.OnActiveChange(func(ev skeleton.ActiveEvent) {
		a.logger.Info().Str("role", ev.Role.String()).Bool("active", ev.Active).Msg("Skeleton action active changed")
	})
}

// SetRecorder records every source into rec from the next frame on. It must be
// called before Start.
func (a *App) SetRecorder(rec *recorder.Recorder) {
	a.recorder = rec
	for _, ps := range a.poses {
		rec.AttachPose(ps)
	}
	for _, ss := range a.skeletons {
		rec.AttachSkeleton(ss)
	}
}

// Scheduler returns the frame scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}

// Pose returns the pose source for role, or nil.
func (a *App) Pose(role tracking.Role) *pose.Source {
	for _, ps := range a.poses {
		if ps.Role() == role {
			return ps
		}
	}
	return nil
}

// Skeleton returns the skeleton source for role, or nil.
func (a *App) Skeleton(role tracking.Role) *skeleton.Source {
	for _, ss := range a.skeletons {
		if ss.Role() == role {
			return ss
		}
	}
	return nil
}

// Snapshot returns the state published after the last frame.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// Subscribe returns a channel receiving each new snapshot. Slow readers miss
// intermediate snapshots. Call the returned func to unsubscribe.
func (a *App) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subscribers, ch)
			a.mu.Unlock()
		})
	}
}

// Start runs the loop at the configured frame rate until Stop is called or ctx ends.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.cancel != nil {
		return
	}

	ctx, a.cancel = context.WithCancel(ctx)

	if a.recorder != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.recorder.Run(ctx); err != nil {
				a.logger.Error().Err(err).Msg("Recorder stopped")
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runLoop(ctx, a.cfg.Loop.FrameInterval())
	}()

	a.logger.Info().Int("frame_rate", a.cfg.Loop.FrameRate).Msg("Tracking loop started")
}

// Stop halts the loop, flushes the recorder and detaches every source.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		a.wg.Wait()
	}

	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to flush recording")
		}
	}

	a.sched.Close()
	for _, ps := range a.poses {
		ps.Detach()
	}
	for _, ss := range a.skeletons {
		ss.Detach()
	}

	a.mu.Lock()
	for ch := range a.subscribers {
		close(ch)
		delete(a.subscribers, ch)
	}
	a.mu.Unlock()

	a.logger.Info().Msg("Tracking loop stopped")
}
