// Package scheduler decides, once per host frame, when registered tracking sources
// are refreshed relative to the host's update phases.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/posetrack/internal/metrics"
	"github.com/rs/zerolog"
)

// Phase is one of the host's per-frame callback points.
type Phase int

const (
	PhaseUpdate Phase = iota
	PhaseLateUpdate
	PhaseFixedUpdate
	PhasePreCull
)

// HostOrder is the order a typical host invokes the phases within one frame.
var HostOrder = []Phase{PhaseFixedUpdate, PhaseUpdate, PhaseLateUpdate, PhasePreCull}

func (p Phase) String() string {
	switch p {
	case PhaseUpdate:
		return "update"
	case PhaseLateUpdate:
		return "late_update"
	case PhaseFixedUpdate:
		return "fixed_update"
	case PhasePreCull:
		return "pre_cull"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase converts a configuration name such as "late_update" to a Phase.
func ParsePhase(s string) (Phase, error) {
	for p := PhaseUpdate; p <= PhasePreCull; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseLateUpdate, fmt.Errorf("unknown update phase %q", s)
}

// PoseUpdater is a pose source driven by the scheduler. Update must be idempotent
// for a repeated frame number.
type PoseUpdater interface {
	Update(frame int64)
}

// SkeletonUpdater is a skeleton source driven by the scheduler.
type SkeletonUpdater interface {
	Update(skipEvents bool)
}

// Scheduler owns the registration lists for one host session. Registration is
// guarded so attach/detach may race with an update pass; the pass itself runs on
// the caller's goroutine over a snapshot of the lists.
type Scheduler struct {
	policy Phase
	logger zerolog.Logger

	mu        sync.Mutex
	poses     []PoseUpdater
	skeletons []SkeletonUpdater
	handled   map[Phase]int64
}

// New creates a Scheduler that runs full update passes on policy.
func New(policy Phase, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		policy:  policy,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		handled: make(map[Phase]int64),
	}
}

// Policy returns the configured update phase.
func (s *Scheduler) Policy() Phase {
	return s.policy
}

// Register adds p in registration order. It returns false if p is already registered.
func (s *Scheduler) Register(p PoseUpdater) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.poses {
		if existing == p {
			return false
		}
	}
	s.poses = append(s.poses, p)
	metrics.RegisteredSources.WithLabelValues("pose").Set(float64(len(s.poses)))
	s.logger.Debug().Int("count", len(s.poses)).Msg("Pose source registered")
	return true
}

// Unregister removes p, keeping the order of the remaining sources. It returns
// false if p was not registered.
func (s *Scheduler) Unregister(p PoseUpdater) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.poses {
		if existing == p {
			s.poses = append(s.poses[:i:i], s.poses[i+1:]...)
			metrics.RegisteredSources.WithLabelValues("pose").Set(float64(len(s.poses)))
			s.logger.Debug().Int("count", len(s.poses)).Msg("Pose source unregistered")
			return true
		}
	}
	return false
}

// RegisterSkeleton adds k to the skeleton refresh pass.
func (s *Scheduler) RegisterSkeleton(k SkeletonUpdater) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.skeletons {
		if existing == k {
			return false
		}
	}
	s.skeletons = append(s.skeletons, k)
	metrics.RegisteredSources.WithLabelValues("skeleton").Set(float64(len(s.skeletons)))
	return true
}

// UnregisterSkeleton removes k from the skeleton refresh pass.
func (s *Scheduler) UnregisterSkeleton(k SkeletonUpdater) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.skeletons {
		if existing == k {
			s.skeletons = append(s.skeletons[:i:i], s.skeletons[i+1:]...)
			metrics.RegisteredSources.WithLabelValues("skeleton").Set(float64(len(s.skeletons)))
			return true
		}
	}
	return false
}

// PoseSources returns the registered pose sources in update order.
func (s *Scheduler) PoseSources() []PoseUpdater {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PoseUpdater, len(s.poses))
	copy(out, s.poses)
	return out
}

// SkeletonSources returns the registered skeleton sources in update order.
func (s *Scheduler) SkeletonSources() []SkeletonUpdater {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SkeletonUpdater, len(s.skeletons))
	copy(out, s.skeletons)
	return out
}

// OnFramePhase is called by the host once per phase per frame. When phase matches
// the policy every pose source is updated, then every skeleton source. When the
// policy is not late update, the late update callback still refreshes skeletons so
// bone data reflects animation applied earlier in the frame.
func (s *Scheduler) OnFramePhase(phase Phase, frame int64) {
	s.mu.Lock()
	if last, ok := s.handled[phase]; ok && last == frame {
		s.mu.Unlock()
		metrics.FramePassesTotal.WithLabelValues(phase.String(), "skipped").Inc()
		return
	}
	s.handled[phase] = frame
	s.mu.Unlock()

	switch {
	case phase == s.policy:
		s.UpdateVisual(frame, false)
		metrics.FramePassesTotal.WithLabelValues(phase.String(), "full").Inc()
	case phase == PhaseLateUpdate:
		s.UpdateSkeletons(false)
		metrics.FramePassesTotal.WithLabelValues(phase.String(), "skeleton").Inc()
	}
}

// UpdateVisual runs a full pass: pose sources, then skeleton sources.
func (s *Scheduler) UpdateVisual(frame int64, skipEvents bool) {
	start := time.Now()
	s.UpdatePoses(frame)
	s.UpdateSkeletons(skipEvents)
	metrics.FramePassDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())
}

// UpdatePoses updates every registered pose source in registration order.
func (s *Scheduler) UpdatePoses(frame int64) {
	for _, p := range s.PoseSources() {
		p.Update(frame)
	}
}

// UpdateSkeletons updates every registered skeleton source in registration order.
func (s *Scheduler) UpdateSkeletons(skipEvents bool) {
	for _, k := range s.SkeletonSources() {
		k.Update(skipEvents)
	}
}

// Close drains both registration lists.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poses = nil
	s.skeletons = nil
	s.handled = make(map[Phase]int64)
	metrics.RegisteredSources.WithLabelValues("pose").Set(0)
	metrics.RegisteredSources.WithLabelValues("skeleton").Set(0)
}
