// Package pose turns raw per-frame pose samples for a tracked role into stable,
// change-detected state with velocity estimation and update notifications.
package pose

import (
	"time"

	"github.com/ayusman/posetrack/internal/spatial"
	"github.com/ayusman/posetrack/internal/tracking"
)

// Provider is the tracking backend a Source reads from.
type Provider interface {
	// Pose returns the current sample for role. It is called at most once per
	// role per update and must not block.
	Pose(role tracking.Role) (tracking.RawPose, error)

	// DeviceIndex returns the device bound to role, or tracking.NoDevice.
	DeviceIndex(role tracking.Role) int
}

// Origin supplies the transform raw samples are expressed relative to.
type Origin interface {
	Transform() spatial.RigidTransform
}

// OriginFunc adapts a function to Origin.
type OriginFunc func() spatial.RigidTransform

// Transform calls f.
func (f OriginFunc) Transform() spatial.RigidTransform {
	return f()
}

// StaticOrigin is an Origin that never moves.
type StaticOrigin spatial.RigidTransform

// Transform returns o as a RigidTransform.
func (o StaticOrigin) Transform() spatial.RigidTransform {
	return spatial.RigidTransform(o)
}

// Target receives the computed pose after every valid update, typically the host's
// transform for the tracked object.
type Target interface {
	SetPose(position spatial.Vec, rotation spatial.Quat)
}

// DeviceListener is notified when the device bound to a source changes.
type DeviceListener interface {
	SetInputSource(role tracking.Role)
	SetDeviceIndex(index int)
}

// Clock provides the time stamped on samples. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}
