package skeleton

import (
	"fmt"
	"math"
	"time"

	"github.com/ayusman/posetrack/internal/event"
	"github.com/ayusman/posetrack/internal/metrics"
	"github.com/ayusman/posetrack/internal/scheduler"
	"github.com/ayusman/posetrack/internal/spatial"
	"github.com/ayusman/posetrack/internal/tracking"
	"github.com/rs/zerolog"
)

// DefaultChangeTolerance is used when Config.ChangeTolerance is zero.
const DefaultChangeTolerance = math.SmallestNonzeroFloat32

// Event payloads.
type (
	UpdateEvent struct {
		Source *Source
		Role   tracking.Role
	}
	ActiveEvent struct {
		Source *Source
		Role   tracking.Role
		Active bool
	}
	TrackingEvent struct {
		Source *Source
		Role   tracking.Role
		Result tracking.TrackingResult
	}
	ValidEvent struct {
		Source *Source
		Role   tracking.Role
		Valid  bool
	}
	ConnectedEvent struct {
		Source    *Source
		Role      tracking.Role
		Connected bool
	}
)

// Config configures a Source.
type Config struct {
	Role     tracking.Role
	Provider Provider

	ChangeTolerance float64
	MotionRange     MotionRange
	TransformSpace  TransformSpace
	SummaryType     SummaryType

	// OnlyUpdateSummary skips bone fetches; only curls and splays are refreshed.
	OnlyUpdateSummary bool

	Clock  Clock
	Logger zerolog.Logger
}

// Source holds the bone and finger summary state for one hand. Current and previous
// buffers are allocated up front so accessors are valid before the first update.
// It is driven from a single goroutine.
type Source struct {
	role            tracking.Role
	provider        Provider
	changeTolerance float64
	motionRange     MotionRange
	space           TransformSpace
	summaryType     SummaryType
	onlySummary     bool
	clock           Clock
	logger          zerolog.Logger

	positions     []spatial.Vec
	rotations     []spatial.Quat
	lastPositions []spatial.Vec
	lastRotations []spatial.Quat
	curls         []float64
	splays        []float64
	lastCurls     []float64
	lastSplays    []float64

	status     Status
	lastStatus Status

	summaryFetched bool
	fetchedKind    SummaryType

	changed     bool
	poseChanged bool
	changedTime time.Time

	registrar *scheduler.Scheduler

	onUpdate              event.List[UpdateEvent]
	onChange              event.List[UpdateEvent]
	onActiveChange        event.List[ActiveEvent]
	onActiveBindingChange event.List[ActiveEvent]
	onTrackingChanged     event.List[TrackingEvent]
	onValidPoseChanged    event.List[ValidEvent]
	onConnectedChanged    event.List[ConnectedEvent]
}

// New creates a Source for cfg.Role with identity bones and zero summaries.
func New(cfg Config) *Source {
	if cfg.ChangeTolerance <= 0 {
		cfg.ChangeTolerance = DefaultChangeTolerance
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}

	s := &Source{
		role:            cfg.Role,
		provider:        cfg.Provider,
		changeTolerance: cfg.ChangeTolerance,
		motionRange:     cfg.MotionRange,
		space:           cfg.TransformSpace,
		summaryType:     cfg.SummaryType,
		onlySummary:     cfg.OnlyUpdateSummary,
		clock:           cfg.Clock,
		logger:          cfg.Logger.With().Str("component", "skeleton").Str("role", cfg.Role.String()).Logger(),

		positions:     make([]spatial.Vec, NumBones),
		rotations:     make([]spatial.Quat, NumBones),
		lastPositions: make([]spatial.Vec, NumBones),
		lastRotations: make([]spatial.Quat, NumBones),
		curls:         make([]float64, NumFingers),
		splays:        make([]float64, NumSplays),
		lastCurls:     make([]float64, NumFingers),
		lastSplays:    make([]float64, NumSplays),
	}
	for i := 0; i < NumBones; i++ {
		s.rotations[i] = spatial.Identity()
		s.lastRotations[i] = spatial.Identity()
	}
	return s
}

// Role returns the tracked hand.
func (s *Source) Role() tracking.Role { return s.role }

// Attach registers the source with sch for the skeleton refresh pass.
func (s *Source) Attach(sch *scheduler.Scheduler) {
	if s.registrar != nil && s.registrar != sch {
		s.registrar.UnregisterSkeleton(s)
	}
	s.registrar = sch
	sch.RegisterSkeleton(s)
}

// Detach unregisters the source. Detaching twice is a no-op.
func (s *Source) Detach() {
	if s.registrar != nil {
		s.registrar.UnregisterSkeleton(s)
		s.registrar = nil
	}
}

// UpdateWithoutEvents refreshes the state without notifying listeners.
func (s *Source) UpdateWithoutEvents() {
	s.Update(true)
}

// Update snapshots the current buffers into the previous ones, pulls and converts a
// new frame when the action is active, refreshes the summaries and runs change
// detection. Listeners are notified unless skipEvents is set.
func (s *Source) Update(skipEvents bool) {
	s.lastStatus = s.status
	s.poseChanged = s.changed
	s.changed = false

	if !s.onlySummary {
		copy(s.lastPositions, s.positions)
		copy(s.lastRotations, s.rotations)
	}
	copy(s.lastCurls, s.curls)
	copy(s.lastSplays, s.splays)

	if s.provider != nil {
		s.status = s.provider.Status(s.role)
	} else {
		s.status = Status{}
	}

	if s.status.Active {
		if !s.onlySummary {
			s.pullBones()
		}
		s.refreshSummary(s.summaryType, true)
	}

	if !s.onlySummary {
		s.changed = s.detectChange()
	}
	if s.changed {
		s.changedTime = s.clock.Now()
		metrics.SkeletonChangesTotal.WithLabelValues(s.role.String()).Inc()
	}

	if !skipEvents {
		s.sendEvents()
	}
}

func (s *Source) pullBones() {
	raw, err := s.provider.Bones(s.role, s.space, s.motionRange)
	if err != nil {
		metrics.BackendErrorsTotal.WithLabelValues("bones", s.role.String()).Inc()
		s.logger.Debug().Err(err).Msg("Bone fetch failed, keeping previous frame")
		s.status.PoseValid = false
		return
	}

	bones := ConvertBones(raw)
	for i, b := range bones {
		s.positions[i] = b.Position
		s.rotations[i] = b.Rotation
	}
}

// refreshSummary fetches finger summaries when forced, never fetched, or when kind
// differs from the last fetched kind.
func (s *Source) refreshSummary(kind SummaryType, force bool) {
	if !force && s.summaryFetched && kind == s.fetchedKind {
		return
	}
	sum, err := s.provider.Summary(s.role, kind)
	if err != nil {
		metrics.BackendErrorsTotal.WithLabelValues("summary", s.role.String()).Inc()
		s.logger.Debug().Err(err).Msg("Summary fetch failed, keeping previous values")
		return
	}
	copy(s.curls, sum.Curls[:])
	copy(s.splays, sum.Splays[:])
	s.summaryFetched = true
	s.fetchedKind = kind
}

func (s *Source) detectChange() bool {
	for i := 0; i < NumBones; i++ {
		if spatial.Distance(s.lastPositions[i], s.positions[i]) > s.changeTolerance {
			return true
		}
		if spatial.Angle(s.lastRotations[i], s.rotations[i]) > s.changeTolerance {
			return true
		}
	}
	return false
}

func (s *Source) sendEvents() {
	role := s.role
	cur, last := s.status, s.lastStatus

	if cur.Tracking != last.Tracking {
		s.onTrackingChanged.Emit(TrackingEvent{Source: s, Role: role, Result: cur.Tracking})
	}
	if cur.PoseValid != last.PoseValid {
		s.onValidPoseChanged.Emit(ValidEvent{Source: s, Role: role, Valid: cur.PoseValid})
	}
	if cur.DeviceConnected != last.DeviceConnected {
		s.onConnectedChanged.Emit(ConnectedEvent{Source: s, Role: role, Connected: cur.DeviceConnected})
	}
	if s.changed {
		s.onChange.Emit(UpdateEvent{Source: s, Role: role})
	}
	if cur.Active != last.Active {
		s.onActiveChange.Emit(ActiveEvent{Source: s, Role: role, Active: cur.Active})
	}
	if cur.ActiveBinding != last.ActiveBinding {
		s.onActiveBindingChange.Emit(ActiveEvent{Source: s, Role: role, Active: cur.ActiveBinding})
	}
	s.onUpdate.Emit(UpdateEvent{Source: s, Role: role})
}

// SummaryData returns the finger summaries, fetching them from the backend first when
// forced or when kind differs from the last fetched kind.
func (s *Source) SummaryData(kind SummaryType, force bool) Summary {
	if s.provider != nil && s.status.Active {
		s.refreshSummary(kind, force)
	}
	var out Summary
	copy(out.Curls[:], s.curls)
	copy(out.Splays[:], s.splays)
	return out
}

// ReferenceTransforms returns a reference pose in the engine convention. It does not
// read or modify the live buffers.
func (s *Source) ReferenceTransforms(space TransformSpace, pose ReferencePose) (Bones, error) {
	if s.provider == nil {
		return Bones{}, ErrNoReferencePose
	}
	raw, err := s.provider.ReferenceBones(s.role, space, pose)
	if err != nil {
		return Bones{}, fmt.Errorf("reference %s for %s: %w", pose, s.role, err)
	}
	return ConvertBones(raw), nil
}

// BonePositions returns the current bone positions. Without copy the live buffer is
// returned and is overwritten by the next update.
func (s *Source) BonePositions(copyOut bool) []spatial.Vec {
	if copyOut {
		return append([]spatial.Vec(nil), s.positions...)
	}
	return s.positions
}

// BoneRotations returns the current bone rotations. Without copy the live buffer is
// returned and is overwritten by the next update.
func (s *Source) BoneRotations(copyOut bool) []spatial.Quat {
	if copyOut {
		return append([]spatial.Quat(nil), s.rotations...)
	}
	return s.rotations
}

// LastBonePositions returns the bone positions from the previous update.
func (s *Source) LastBonePositions(copyOut bool) []spatial.Vec {
	if copyOut {
		return append([]spatial.Vec(nil), s.lastPositions...)
	}
	return s.lastPositions
}

// LastBoneRotations returns the bone rotations from the previous update.
func (s *Source) LastBoneRotations(copyOut bool) []spatial.Quat {
	if copyOut {
		return append([]spatial.Quat(nil), s.lastRotations...)
	}
	return s.lastRotations
}

// Bones returns a copy of the current bones as transforms.
func (s *Source) Bones() Bones {
	var out Bones
	for i := range out {
		out[i] = spatial.RigidTransform{Position: s.positions[i], Rotation: s.rotations[i]}
	}
	return out
}

// FingerCurls returns the five curl values, thumb first.
func (s *Source) FingerCurls(copyOut bool) []float64 {
	if copyOut {
		return append([]float64(nil), s.curls...)
	}
	return s.curls
}

// FingerSplays returns the four splay values, thumb-index first.
func (s *Source) FingerSplays(copyOut bool) []float64 {
	if copyOut {
		return append([]float64(nil), s.splays...)
	}
	return s.splays
}

// LastFingerCurls returns the curl values from the previous update.
func (s *Source) LastFingerCurls(copyOut bool) []float64 {
	if copyOut {
		return append([]float64(nil), s.lastCurls...)
	}
	return s.lastCurls
}

// LastFingerSplays returns the splay values from the previous update.
func (s *Source) LastFingerSplays(copyOut bool) []float64 {
	if copyOut {
		return append([]float64(nil), s.lastSplays...)
	}
	return s.lastSplays
}

// FingerCurl returns the curl of one finger.
func (s *Source) FingerCurl(f Finger) float64 { return s.curls[f] }

// FingerSplay returns the splay between two adjacent fingers.
func (s *Source) FingerSplay(sp Splay) float64 { return s.splays[sp] }

// ThumbCurl, IndexCurl, MiddleCurl, RingCurl and PinkyCurl return one finger's curl
// from the most recent update.
func (s *Source) ThumbCurl() float64  { return s.curls[Thumb] }
func (s *Source) IndexCurl() float64  { return s.curls[Index] }
func (s *Source) MiddleCurl() float64 { return s.curls[Middle] }
func (s *Source) RingCurl() float64   { return s.curls[Ring] }
func (s *Source) PinkyCurl() float64  { return s.curls[Pinky] }

// LastThumbCurl and the other Last*Curl accessors return curls from the update before
// the most recent one.
func (s *Source) LastThumbCurl() float64  { return s.lastCurls[Thumb] }
func (s *Source) LastIndexCurl() float64  { return s.lastCurls[Index] }
func (s *Source) LastMiddleCurl() float64 { return s.lastCurls[Middle] }
func (s *Source) LastRingCurl() float64   { return s.lastCurls[Ring] }
func (s *Source) LastPinkyCurl() float64  { return s.lastCurls[Pinky] }

// ThumbIndexSplay and the other *Splay accessors return the splay between two
// adjacent fingers from the most recent update.
func (s *Source) ThumbIndexSplay() float64  { return s.splays[ThumbIndex] }
func (s *Source) IndexMiddleSplay() float64 { return s.splays[IndexMiddleSplay] }
func (s *Source) MiddleRingSplay() float64  { return s.splays[MiddleRing] }
func (s *Source) RingPinkySplay() float64   { return s.splays[RingPinky] }

// LastThumbIndexSplay and the other Last*Splay accessors return splays from the update
// before the most recent one.
func (s *Source) LastThumbIndexSplay() float64  { return s.lastSplays[ThumbIndex] }
func (s *Source) LastIndexMiddleSplay() float64 { return s.lastSplays[IndexMiddleSplay] }
func (s *Source) LastMiddleRingSplay() float64  { return s.lastSplays[MiddleRing] }
func (s *Source) LastRingPinkySplay() float64   { return s.lastSplays[RingPinky] }

// Changed reports whether the most recent update moved a bone beyond tolerance.
func (s *Source) Changed() bool { return s.changed }

// PoseChanged reports the changed flag of the update before the most recent one.
func (s *Source) PoseChanged() bool { return s.poseChanged }

// ChangedTime returns when a change was last detected.
func (s *Source) ChangedTime() time.Time { return s.changedTime }

// Status returns the backend status from the most recent update.
func (s *Source) Status() Status { return s.status }

// LastStatus returns the backend status from the update before the most recent one.
func (s *Source) LastStatus() Status { return s.lastStatus }

// Active reports whether the skeletal action was active at the most recent update.
func (s *Source) Active() bool { return s.status.Active }

// TrackingLevel returns the accuracy of the bound device's skeletal data.
func (s *Source) TrackingLevel() TrackingLevel { return s.status.Level }

// MotionRange returns the requested range of motion.
func (s *Source) MotionRange() MotionRange { return s.motionRange }

// SetRangeOfMotion changes the range requested on subsequent updates.
func (s *Source) SetRangeOfMotion(r MotionRange) { s.motionRange = r }

// TransformSpace returns the space bones are requested in.
func (s *Source) TransformSpace() TransformSpace { return s.space }

// SetTransformSpace changes the space requested on subsequent updates.
func (s *Source) SetTransformSpace(t TransformSpace) { s.space = t }

// SummaryType returns the summary source used by Update.
func (s *Source) SummaryType() SummaryType { return s.summaryType }

// SetSummaryType changes the summary source used by Update.
func (s *Source) SetSummaryType(t SummaryType) { s.summaryType = t }

// SetOnlyUpdateSummary toggles whether updates skip bone fetches.
func (s *Source) SetOnlyUpdateSummary(only bool) { s.onlySummary = only }

// BoneCount returns the number of joints.
func (s *Source) BoneCount() int { return NumBones }

// BoneHierarchy returns the parent index of every joint.
func (s *Source) BoneHierarchy() []int { return Hierarchy() }

// BoneName returns the name of a joint.
func (s *Source) BoneName(bone int) string { return BoneName(bone) }

// OnUpdate registers fn to run after every update.
func (s *Source) OnUpdate(fn func(UpdateEvent)) event.Subscription { return s.onUpdate.Add(fn) }

// OnChange registers fn to run when a bone moved beyond tolerance.
func (s *Source) OnChange(fn func(UpdateEvent)) event.Subscription { return s.onChange.Add(fn) }

// OnActiveChange registers fn to run when the action becomes active or inactive.
func (s *Source) OnActiveChange(fn func(ActiveEvent)) event.Subscription {
	return s.onActiveChange.Add(fn)
}

// OnActiveBindingChange registers fn to run when the binding becomes active or inactive.
func (s *Source) OnActiveBindingChange(fn func(ActiveEvent)) event.Subscription {
	return s.onActiveBindingChange.Add(fn)
}

// OnTrackingChanged registers fn to run when the tracking result changes.
func (s *Source) OnTrackingChanged(fn func(TrackingEvent)) event.Subscription {
	return s.onTrackingChanged.Add(fn)
}

// OnValidPoseChanged registers fn to run when pose validity flips.
func (s *Source) OnValidPoseChanged(fn func(ValidEvent)) event.Subscription {
	return s.onValidPoseChanged.Add(fn)
}

// OnDeviceConnectedChanged registers fn to run when the device connects or disconnects.
func (s *Source) OnDeviceConnectedChanged(fn func(ConnectedEvent)) event.Subscription {
	return s.onConnectedChanged.Add(fn)
}
