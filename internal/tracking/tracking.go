// Package tracking holds the vocabulary shared by pose and skeleton sources: input roles,
// tracking results and the raw pose sample delivered by a tracking backend.
package tracking

import (
	"fmt"

	"github.com/ayusman/posetrack/internal/spatial"
)

// NoDevice is the device index of an unbound source.
const NoDevice = -1

// Role identifies which tracked object a source follows.
type Role int

const (
	RoleAny Role = iota
	RoleLeftHand
	RoleRightHand
	RoleHead
	RoleWaist
	RoleLeftFoot
	RoleRightFoot
	RoleCamera
)

var roleNames = map[Role]string{
	RoleAny:       "any",
	RoleLeftHand:  "left_hand",
	RoleRightHand: "right_hand",
	RoleHead:      "head",
	RoleWaist:     "waist",
	RoleLeftFoot:  "left_foot",
	RoleRightFoot: "right_foot",
	RoleCamera:    "camera",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// IsHand reports whether the role carries a skeletal hand.
func (r Role) IsHand() bool {
	return r == RoleLeftHand || r == RoleRightHand
}

// ParseRole converts a configuration name such as "left_hand" to a Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleAny, fmt.Errorf("unknown role %q", s)
}

// TrackingResult describes the state of the tracking system for a device.
type TrackingResult int

const (
	TrackingUninitialized TrackingResult = iota
	TrackingCalibratingInProgress
	TrackingCalibratingOutOfRange
	TrackingRunningOK
	TrackingRunningOutOfRange
	TrackingFallbackRotationOnly
)

func (t TrackingResult) String() string {
	switch t {
	case TrackingUninitialized:
		return "uninitialized"
	case TrackingCalibratingInProgress:
		return "calibrating_in_progress"
	case TrackingCalibratingOutOfRange:
		return "calibrating_out_of_range"
	case TrackingRunningOK:
		return "running_ok"
	case TrackingRunningOutOfRange:
		return "running_out_of_range"
	case TrackingFallbackRotationOnly:
		return "fallback_rotation_only"
	default:
		return fmt.Sprintf("tracking(%d)", int(t))
	}
}

// ParseTrackingResult is the inverse of TrackingResult.String.
func ParseTrackingResult(s string) (TrackingResult, error) {
	for t := TrackingUninitialized; t <= TrackingFallbackRotationOnly; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return TrackingUninitialized, fmt.Errorf("unknown tracking result %q", s)
}

// RawPose is one sample read from the tracking backend for a role.
// Position and Rotation are local to the tracking origin.
type RawPose struct {
	Valid           bool           `json:"valid"`
	Connected       bool           `json:"connected"`
	Tracking        TrackingResult `json:"tracking"`
	Position        spatial.Vec    `json:"position"`
	Rotation        spatial.Quat   `json:"rotation"`
	Velocity        spatial.Vec    `json:"velocity"`
	AngularVelocity spatial.Vec    `json:"angular_velocity"`
}
