package pose

import (
	"math"
	"time"

	"github.com/ayusman/posetrack/internal/event"
	"github.com/ayusman/posetrack/internal/history"
	"github.com/ayusman/posetrack/internal/metrics"
	"github.com/ayusman/posetrack/internal/scheduler"
	"github.com/ayusman/posetrack/internal/spatial"
	"github.com/ayusman/posetrack/internal/tracking"
	"github.com/rs/zerolog"
)

// Defaults for Config fields left at zero.
const (
	DefaultPeakWindow      = 10
	DefaultChangeTolerance = math.SmallestNonzeroFloat32

	// peakAverageCount is the number of samples averaged around a detected peak.
	peakAverageCount = 2
)

// Sample is the pose state produced by one update.
type Sample struct {
	Valid           bool                    `json:"valid"`
	Connected       bool                    `json:"connected"`
	Tracking        tracking.TrackingResult `json:"tracking"`
	Position        spatial.Vec             `json:"position"`
	Rotation        spatial.Quat            `json:"rotation"`
	Velocity        spatial.Vec             `json:"velocity"`
	AngularVelocity spatial.Vec             `json:"angular_velocity"`
	DeviceIndex     int                     `json:"device_index"`
	Time            time.Time               `json:"time"`
}

// Event payloads.
type (
	UpdateEvent struct {
		Source *Source
		Role   tracking.Role
	}
	ConnectedEvent struct {
		Source    *Source
		Role      tracking.Role
		Connected bool
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
	DeviceIndexEvent struct {
		Source *Source
		Role   tracking.Role
		Index  int
	}
)

// Config configures a Source.
type Config struct {
	Role     tracking.Role
	Provider Provider

	// Origin is the transform raw samples are relative to. When nil, Parent is used;
	// when both are nil the raw local pose is used as is.
	Origin Origin
	Parent Origin
	Target Target

	HistorySize     int
	PeakWindow      int
	ChangeTolerance float64

	// DisableDeviceBroadcast stops device listeners from being notified.
	DisableDeviceBroadcast bool

	Clock  Clock
	Logger zerolog.Logger
}

// Source tracks the root pose of one role. It is driven from a single goroutine;
// listeners run inline and must not call Update on the same source.
type Source struct {
	role            tracking.Role
	provider        Provider
	origin          Origin
	target          Target
	peakWindow      int
	changeTolerance float64
	broadcast       bool
	clock           Clock
	logger          zerolog.Logger

	history  *history.Buffer
	raw      tracking.RawPose
	current  Sample
	previous Sample
	changed  bool

	deviceIndex int
	lastFrame   int64
	updated     bool

	registrar *scheduler.Scheduler

	onUpdate             event.List[UpdateEvent]
	onChange             event.List[UpdateEvent]
	onConnectedChanged   event.List[ConnectedEvent]
	onTrackingChanged    event.List[TrackingEvent]
	onValidPoseChanged   event.List[ValidEvent]
	onDeviceIndexChanged event.List[DeviceIndexEvent]
	deviceListeners      event.List[DeviceIndexEvent]
}

// New creates a Source for cfg.Role.
func New(cfg Config) *Source {
	if cfg.PeakWindow <= 0 {
		cfg.PeakWindow = DefaultPeakWindow
	}
	if cfg.ChangeTolerance <= 0 {
		cfg.ChangeTolerance = DefaultChangeTolerance
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	origin := cfg.Origin
	if origin == nil {
		origin = cfg.Parent
	}

	initial := Sample{Rotation: spatial.Identity(), DeviceIndex: tracking.NoDevice}
	return &Source{
		role:            cfg.Role,
		provider:        cfg.Provider,
		origin:          origin,
		target:          cfg.Target,
		peakWindow:      cfg.PeakWindow,
		changeTolerance: cfg.ChangeTolerance,
		broadcast:       !cfg.DisableDeviceBroadcast,
		clock:           cfg.Clock,
		logger:          cfg.Logger.With().Str("component", "pose").Str("role", cfg.Role.String()).Logger(),
		history:         history.New(cfg.HistorySize),
		raw:             tracking.RawPose{Rotation: spatial.Identity()},
		current:         initial,
		previous:        initial,
		deviceIndex:     tracking.NoDevice,
	}
}

// Role returns the tracked role.
func (s *Source) Role() tracking.Role { return s.role }

// SetOrigin replaces the origin transform. nil reverts to the raw local pose.
func (s *Source) SetOrigin(o Origin) { s.origin = o }

// SetBroadcastDeviceChanges enables or disables device listener notification.
func (s *Source) SetBroadcastDeviceChanges(enabled bool) { s.broadcast = enabled }

// Attach registers the source with sch for per-frame updates.
func (s *Source) Attach(sch *scheduler.Scheduler) {
	if s.registrar != nil && s.registrar != sch {
		s.registrar.Unregister(s)
	}
	s.registrar = sch
	sch.Register(s)
}

// Detach unregisters the source and clears its history. Detaching twice is a no-op.
func (s *Source) Detach() {
	if s.registrar != nil {
		s.registrar.Unregister(s)
		s.registrar = nil
	}
	s.history.Clear()
}

// Update pulls one sample from the provider. Calling it again with the same frame
// number does nothing.
func (s *Source) Update(frame int64) {
	if s.updated && frame == s.lastFrame {
		return
	}
	s.updated = true
	s.lastFrame = frame

	raw := s.fetch()
	now := s.clock.Now()

	s.raw = raw
	s.previous = s.current

	next := s.previous
	next.Valid = raw.Valid
	next.Connected = raw.Connected
	next.Tracking = raw.Tracking
	next.Time = now
	if raw.Valid {
		s.history.Push(history.Sample{
			Time:            now,
			Position:        raw.Position,
			Rotation:        raw.Rotation,
			Velocity:        raw.Velocity,
			AngularVelocity: raw.AngularVelocity,
		})
		next.Position, next.Rotation = s.resolve(raw)
		next.Velocity = raw.Velocity
		next.AngularVelocity = raw.AngularVelocity
	} else {
		next.Velocity = spatial.Vec{}
		next.AngularVelocity = spatial.Vec{}
	}
	s.current = next

	s.CheckDeviceIndex()
	s.current.DeviceIndex = s.deviceIndex

	if s.current.Valid && s.target != nil {
		s.target.SetPose(s.current.Position, s.current.Rotation)
	}

	s.changed = spatial.Distance(s.previous.Position, s.current.Position) > s.changeTolerance ||
		spatial.Angle(s.previous.Rotation, s.current.Rotation) > s.changeTolerance

	metrics.PoseUpdatesTotal.WithLabelValues(s.role.String()).Inc()
	s.sendEvents()
}

func (s *Source) fetch() tracking.RawPose {
	if s.provider == nil {
		return tracking.RawPose{Rotation: spatial.Identity()}
	}
	raw, err := s.provider.Pose(s.role)
	if err != nil {
		metrics.BackendErrorsTotal.WithLabelValues("pose", s.role.String()).Inc()
		s.logger.Debug().Err(err).Msg("Pose fetch failed, treating as no data")
		return tracking.RawPose{
			Connected: s.raw.Connected,
			Tracking:  s.raw.Tracking,
			Rotation:  spatial.Identity(),
		}
	}
	raw.Rotation = spatial.Normalize(raw.Rotation)
	return raw
}

// resolve expresses raw in the origin's space when an origin is set.
func (s *Source) resolve(raw tracking.RawPose) (spatial.Vec, spatial.Quat) {
	if s.origin == nil {
		return raw.Position, raw.Rotation
	}
	o := s.origin.Transform()
	return o.TransformPoint(raw.Position), spatial.Mul(o.Rotation, raw.Rotation)
}

func (s *Source) sendEvents() {
	role := s.role
	prev, cur := s.previous, s.current

	if s.changed {
		metrics.PoseChangesTotal.WithLabelValues(role.String()).Inc()
		s.onChange.Emit(UpdateEvent{Source: s, Role: role})
	}
	if cur.Valid != prev.Valid {
		s.onValidPoseChanged.Emit(ValidEvent{Source: s, Role: role, Valid: cur.Valid})
	}
	if cur.Connected != prev.Connected {
		s.CheckDeviceIndex()
		s.onConnectedChanged.Emit(ConnectedEvent{Source: s, Role: role, Connected: cur.Connected})
	}
	if cur.Tracking != prev.Tracking {
		s.onTrackingChanged.Emit(TrackingEvent{Source: s, Role: role, Result: cur.Tracking})
	}
	s.onUpdate.Emit(UpdateEvent{Source: s, Role: role})
}

// CheckDeviceIndex re-resolves the bound device and notifies listeners when it changed.
func (s *Source) CheckDeviceIndex() {
	index := tracking.NoDevice
	if s.provider != nil {
		index = s.provider.DeviceIndex(s.role)
	}
	if index == s.deviceIndex {
		return
	}
	s.deviceIndex = index

	ev := DeviceIndexEvent{Source: s, Role: s.role, Index: index}
	if s.broadcast {
		s.deviceListeners.Emit(ev)
	}
	s.onDeviceIndexChanged.Emit(ev)
}

// DeviceIndex returns the bound device, resolving it first if still unbound.
func (s *Source) DeviceIndex() int {
	if s.deviceIndex == tracking.NoDevice {
		s.CheckDeviceIndex()
	}
	return s.deviceIndex
}

// Current returns the state from the most recent update.
func (s *Source) Current() Sample { return s.current }

// Previous returns the state from the update before the most recent one.
func (s *Source) Previous() Sample { return s.previous }

// Raw returns the last sample read from the provider.
func (s *Source) Raw() tracking.RawPose { return s.raw }

// Position returns the last known good position.
func (s *Source) Position() spatial.Vec { return s.current.Position }

// Rotation returns the last known good rotation.
func (s *Source) Rotation() spatial.Quat { return s.current.Rotation }

// Valid reports whether the most recent sample was valid.
func (s *Source) Valid() bool { return s.current.Valid }

// Connected reports whether the device was connected at the most recent update.
func (s *Source) Connected() bool { return s.current.Connected }

// Tracking returns the tracking result of the most recent update.
func (s *Source) Tracking() tracking.TrackingResult { return s.current.Tracking }

// Changed reports whether the most recent update moved the pose beyond tolerance.
func (s *Source) Changed() bool { return s.changed }

// LastFrame returns the frame number of the most recent update.
func (s *Source) LastFrame() (int64, bool) { return s.lastFrame, s.updated }

// History exposes the sample buffer.
func (s *Source) History() *history.Buffer { return s.history }

// Velocity returns the linear velocity of the most recent sample, zero when invalid.
func (s *Source) Velocity() spatial.Vec { return s.current.Velocity }

// AngularVelocity returns the angular velocity of the most recent sample, zero when invalid.
func (s *Source) AngularVelocity() spatial.Vec { return s.current.AngularVelocity }

// VelocitiesAtOffset returns the velocities secondsFromNow relative to the newest
// sample. Past offsets interpolate the history; future offsets hold the current
// velocities. It returns false when no sample has been recorded.
func (s *Source) VelocitiesAtOffset(secondsFromNow float64) (velocity, angularVelocity spatial.Vec, ok bool) {
	latest, ok := s.history.Latest()
	if !ok {
		return spatial.Vec{}, spatial.Vec{}, false
	}
	if secondsFromNow > 0 {
		return s.Velocity(), s.AngularVelocity(), true
	}
	at := latest.Time.Add(time.Duration(secondsFromNow * float64(time.Second)))
	return s.history.VelocitiesAt(at)
}

// EstimatedPeakVelocities finds the fastest of the recent samples and returns its
// velocities averaged with a neighbour to suppress single-sample noise.
func (s *Source) EstimatedPeakVelocities() (velocity, angularVelocity spatial.Vec) {
	top, ok := s.history.PeakVelocityOver(s.peakWindow, history.LinearSpeed)
	if !ok {
		return spatial.Vec{}, spatial.Vec{}
	}
	return s.history.AverageVelocities(peakAverageCount, top)
}

// OnUpdate registers fn to run after every update.
func (s *Source) OnUpdate(fn func(UpdateEvent)) event.Subscription { return s.onUpdate.Add(fn) }

// OnChange registers fn to run when the pose moved beyond tolerance.
func (s *Source) OnChange(fn func(UpdateEvent)) event.Subscription { return s.onChange.Add(fn) }

// OnConnectedChanged registers fn to run when the device connects or disconnects.
func (s *Source) OnConnectedChanged(fn func(ConnectedEvent)) event.Subscription {
	return s.onConnectedChanged.Add(fn)
}

// OnTrackingChanged registers fn to run when the tracking result changes.
func (s *Source) OnTrackingChanged(fn func(TrackingEvent)) event.Subscription {
	return s.onTrackingChanged.Add(fn)
}

// OnValidPoseChanged registers fn to run when sample validity flips.
func (s *Source) OnValidPoseChanged(fn func(ValidEvent)) event.Subscription {
	return s.onValidPoseChanged.Add(fn)
}

// OnDeviceIndexChanged registers fn to run when the bound device changes.
func (s *Source) OnDeviceIndexChanged(fn func(DeviceIndexEvent)) event.Subscription {
	return s.onDeviceIndexChanged.Add(fn)
}

// AddDeviceListener forwards role and device index changes to l while broadcasting is enabled.
func (s *Source) AddDeviceListener(l DeviceListener) event.Subscription {
	return s.deviceListeners.Add(func(ev DeviceIndexEvent) {
		l.SetInputSource(ev.Role)
		l.SetDeviceIndex(ev.Index)
	})
}
