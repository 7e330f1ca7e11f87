package skeleton

import "fmt"

// MotionRange selects how far the backend lets fingers curl.
type MotionRange int

const (
	// WithController limits the hand to the shape it makes around the controller.
	WithController MotionRange = iota
	// WithoutController allows a full fist and a flat open hand.
	WithoutController
)

func (m MotionRange) String() string {
	switch m {
	case WithController:
		return "with_controller"
	case WithoutController:
		return "without_controller"
	default:
		return fmt.Sprintf("motion_range(%d)", int(m))
	}
}

// ParseMotionRange is the inverse of MotionRange.String.
func ParseMotionRange(s string) (MotionRange, error) {
	switch s {
	case "with_controller":
		return WithController, nil
	case "without_controller":
		return WithoutController, nil
	}
	return WithController, fmt.Errorf("unknown motion range %q", s)
}

// TransformSpace selects what bone transforms are relative to.
type TransformSpace int

const (
	// SpaceModel expresses every bone relative to the skeleton root.
	SpaceModel TransformSpace = iota
	// SpaceParent expresses every bone relative to its parent joint.
	SpaceParent
)

func (t TransformSpace) String() string {
	switch t {
	case SpaceModel:
		return "model"
	case SpaceParent:
		return "parent"
	default:
		return fmt.Sprintf("transform_space(%d)", int(t))
	}
}

// ParseTransformSpace is the inverse of TransformSpace.String.
func ParseTransformSpace(s string) (TransformSpace, error) {
	switch s {
	case "model":
		return SpaceModel, nil
	case "parent":
		return SpaceParent, nil
	}
	return SpaceParent, fmt.Errorf("unknown transform space %q", s)
}

// SummaryType selects where finger curl and splay values come from.
type SummaryType int

const (
	// FromAnimation derives summaries from the animated skeleton.
	FromAnimation SummaryType = iota
	// FromDevice uses the device's raw finger sensors.
	FromDevice
)

func (t SummaryType) String() string {
	switch t {
	case FromAnimation:
		return "from_animation"
	case FromDevice:
		return "from_device"
	default:
		return fmt.Sprintf("summary_type(%d)", int(t))
	}
}

// ParseSummaryType is the inverse of SummaryType.String.
func ParseSummaryType(s string) (SummaryType, error) {
	switch s {
	case "from_animation":
		return FromAnimation, nil
	case "from_device":
		return FromDevice, nil
	}
	return FromAnimation, fmt.Errorf("unknown summary type %q", s)
}

// ReferencePose names a fixed hand shape the backend can report.
type ReferencePose int

const (
	BindPose ReferencePose = iota
	OpenHand
	Fist
	GripLimit
)

func (p ReferencePose) String() string {
	switch p {
	case BindPose:
		return "bind_pose"
	case OpenHand:
		return "open_hand"
	case Fist:
		return "fist"
	case GripLimit:
		return "grip_limit"
	default:
		return fmt.Sprintf("reference_pose(%d)", int(p))
	}
}

// ParseReferencePose is the inverse of ReferencePose.String.
func ParseReferencePose(s string) (ReferencePose, error) {
	for p := BindPose; p <= GripLimit; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return BindPose, fmt.Errorf("unknown reference pose %q", s)
}

// TrackingLevel is the accuracy of the skeletal data a device can deliver.
type TrackingLevel int

const (
	// LevelEstimated poses are inferred from buttons and triggers.
	LevelEstimated TrackingLevel = iota
	// LevelPartial poses measure some joints directly, such as per-finger curl.
	LevelPartial
	// LevelFull poses measure every joint through its full range.
	LevelFull
)

func (l TrackingLevel) String() string {
	switch l {
	case LevelEstimated:
		return "estimated"
	case LevelPartial:
		return "partial"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("tracking_level(%d)", int(l))
	}
}
