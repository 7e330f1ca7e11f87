// Package recorder captures pose and skeleton updates into a stored session.
package recorder

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ayusman/posetrack/internal/event"
	"github.com/ayusman/posetrack/internal/metrics"
	"github.com/ayusman/posetrack/internal/pose"
	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/store"
	"github.com/ayusman/posetrack/internal/tracking"
	"github.com/rs/zerolog"
)

// DefaultFlushInterval is used when Config.FlushInterval is not set.
const DefaultFlushInterval = time.Second

// Config holds the recorder options.
type Config struct {
	Store         *store.Store
	Name          string
	FrameRate     int
	Roles         []tracking.Role
	FlushInterval time.Duration
	Logger        zerolog.Logger
}

// Recorder buffers raw samples from attached sources and writes them to the store
// in batches. Source events arrive on the loop goroutine while Run flushes on its own.
type Recorder struct {
	store    *store.Store
	session  *store.Session
	interval time.Duration
	logger   zerolog.Logger

	flushMu sync.Mutex

	mu        sync.Mutex
	frame     int64
	frames    int64
	started   bool
	poses     []store.PoseSample
	skeletons []store.SkeletonFrame
	lastSkel  map[tracking.Role]int // index into skeletons of the role's latest frame
	subs      []event.Subscription
}

// New creates the session row and returns a recorder writing into it.
func New(cfg Config) (*Recorder, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("recorder requires a store")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	roles := make([]string, len(cfg.Roles))
	for i, r := range cfg.Roles {
		roles[i] = r.String()
	}
	sess := &store.Session{Name: cfg.Name, FrameRate: cfg.FrameRate, Roles: roles}
	if err := cfg.Store.Sessions().Create(sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	r := &Recorder{
		store:    cfg.Store,
		session:  sess,
		interval: cfg.FlushInterval,
		lastSkel: make(map[tracking.Role]int),
	}
	r.logger = cfg.Logger.With().Str("component", "recorder").Str("session", sess.ID).Logger()
	r.logger.Info().Str("name", sess.Name).Msg("Recording session")
	return r, nil
}

// Session returns the session being recorded.
func (r *Recorder) Session() *store.Session {
	return r.session
}

// Advance marks the start of frame. Skeleton frames are stamped with it.
func (r *Recorder) Advance(frame int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started && frame == r.frame {
		return
	}
	r.started = true
	r.frame = frame
	r.frames++
}

// Frames returns how many distinct frames have been seen.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// AttachPose records every sample src pulls.
func (r *Recorder) AttachPose(src *pose.Source) {
	sub := src.OnUpdate(func(ev pose.UpdateEvent) {
		frame, _ := ev.Source.LastFrame()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.poses = append(r.poses, store.PoseSample{
			Frame:       frame,
			Role:        ev.Role,
			DeviceIndex: ev.Source.DeviceIndex(),
			Pose:        ev.Source.Raw(),
		})
	})
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
}

// AttachSkeleton records the skeleton state after each update. A second update within
// the same frame replaces the first.
func (r *Recorder) AttachSkeleton(src *skeleton.Source) {
	sub := src.OnUpdate(func(ev skeleton.UpdateEvent) {
		s := ev.Source
		f := store.SkeletonFrame{
			Role:    ev.Role,
			Status:  s.Status(),
			Bones:   skeleton.UnconvertBones(s.Bones()),
			Summary: s.SummaryData(s.SummaryType(), false),
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		f.Frame = r.frame
		if i, ok := r.lastSkel[ev.Role]; ok && i < len(r.skeletons) && r.skeletons[i].Frame == f.Frame {
			r.skeletons[i] = f
			return
		}
		r.lastSkel[ev.Role] = len(r.skeletons)
		r.skeletons = append(r.skeletons, f)
	})
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
}

// Pending returns the number of buffered pose samples and skeleton frames.
func (r *Recorder) Pending() (poses, skeletons int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.poses), len(r.skeletons)
}

// Flush writes buffered rows and the frame count to the store in one transaction.
// Rows stay buffered until the write commits, so a failed flush is retried by the next.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	poses := slices.Clone(r.poses)
	skeletons := slices.Clone(r.skeletons)
	frames := r.frames
	// Updates arriving during the write append rather than replace rows being written.
	for role, i := range r.lastSkel {
		if i < len(skeletons) {
			delete(r.lastSkel, role)
		}
	}
	r.mu.Unlock()

	if err := r.store.Frames().Append(r.session.ID, poses, skeletons, frames); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}

	r.mu.Lock()
	r.poses = slices.Delete(r.poses, 0, len(poses))
	r.skeletons = slices.Delete(r.skeletons, 0, len(skeletons))
	for role, i := range r.lastSkel {
		r.lastSkel[role] = i - len(skeletons)
	}
	r.session.Frames = frames
	r.mu.Unlock()

	metrics.RecorderFlushedTotal.WithLabelValues("pose").Add(float64(len(poses)))
	metrics.RecorderFlushedTotal.WithLabelValues("skeleton").Add(float64(len(skeletons)))
	r.logger.Debug().
		Int("poses", len(poses)).
		Int("skeletons", len(skeletons)).
		Int64("frames", frames).
		Msg("Flushed recording")
	return nil
}

// Run flushes every interval until ctx is cancelled, then flushes once more.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.Flush()
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error().Err(err).Msg("Flush failed")
			}
		}
	}
}

// Close detaches from all sources and writes what is left.
func (r *Recorder) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	return r.Flush()
}
