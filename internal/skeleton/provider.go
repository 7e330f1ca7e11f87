package skeleton

import (
	"errors"
	"time"

	"github.com/ayusman/posetrack/internal/tracking"
)

// ErrNoReferencePose is returned when the backend has no data for a reference pose.
var ErrNoReferencePose = errors.New("reference pose not available")

// Status is the per-update state of the skeletal action bound to a role.
type Status struct {
	Active          bool                    `json:"active"`
	ActiveBinding   bool                    `json:"active_binding"`
	PoseValid       bool                    `json:"pose_valid"`
	DeviceConnected bool                    `json:"device_connected"`
	Tracking        tracking.TrackingResult `json:"tracking"`
	Level           TrackingLevel           `json:"level"`
}

// Summary holds the finger curl and splay scalars, each in [0,1].
type Summary struct {
	Curls  [NumFingers]float64 `json:"curls"`
	Splays [NumSplays]float64  `json:"splays"`
}

// Provider is the skeletal tracking backend a Source reads from. Bone transforms are
// in the backend's right-handed convention.
type Provider interface {
	Status(role tracking.Role) Status
	Bones(role tracking.Role, space TransformSpace, motion MotionRange) (Bones, error)
	Summary(role tracking.Role, kind SummaryType) (Summary, error)
	ReferenceBones(role tracking.Role, space TransformSpace, pose ReferencePose) (Bones, error)
}

// Clock provides the time stamped on changes.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
