// Package synth is a deterministic tracking backend that animates hands and trackers
// from the frame number. It serves the demo loop and tests in place of a device.
package synth

import (
	"math"
	"sync"

	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/spatial"
	"github.com/ayusman/posetrack/internal/tracking"
)

const (
	orbitRadius = 0.15 // meters
	orbitPeriod = 4.0  // seconds per revolution
	curlPeriod  = 2.5  // seconds per open-close cycle

	boneLength      = 0.03
	maxJointDegrees = 80.0
	controllerCurl  = 0.75 // curl ceiling while holding a controller
)

// wristOffset places the wrist behind the controller grip.
var wristOffset = spatial.Vec{Z: -0.05}

// anchors are the orbit centres per role, in meters relative to the tracking origin.
var anchors = map[tracking.Role]spatial.Vec{
	tracking.RoleLeftHand:  {X: -0.25, Y: 1.1, Z: 0.35},
	tracking.RoleRightHand: {X: 0.25, Y: 1.1, Z: 0.35},
	tracking.RoleHead:      {Y: 1.65},
	tracking.RoleWaist:     {Y: 1.0},
	tracking.RoleLeftFoot:  {X: -0.15, Y: 0.05},
	tracking.RoleRightFoot: {X: 0.15, Y: 0.05},
	tracking.RoleCamera:    {Y: 1.6, Z: -1},
}

// Feed is a synthetic backend for a fixed set of roles.
type Feed struct {
	frameRate int
	roles     map[tracking.Role]int // role -> device index

	mu    sync.RWMutex
	frame int64
}

// New creates a Feed producing roles at frameRate frames per second. Devices are
// numbered in role order starting at 1; 0 is reserved for the headset.
func New(frameRate int, roles []tracking.Role) *Feed {
	if frameRate <= 0 {
		frameRate = 90
	}
	f := &Feed{frameRate: frameRate, roles: make(map[tracking.Role]int)}
	for i, r := range roles {
		f.roles[r] = i + 1
	}
	return f
}

// Advance moves the feed to frame.
func (f *Feed) Advance(frame int64) {
	f.mu.Lock()
	f.frame = frame
	f.mu.Unlock()
}

// Frame returns the current frame.
func (f *Feed) Frame() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frame
}

func (f *Feed) seconds() float64 {
	return float64(f.Frame()) / float64(f.frameRate)
}

func (f *Feed) tracked(role tracking.Role) bool {
	_, ok := f.roles[role]
	return ok
}

// phase offsets each role so hands move out of step.
func phase(role tracking.Role) float64 {
	return float64(role) * math.Pi / 3
}

// Pose returns an orbit around the role's anchor, facing the direction of travel.
func (f *Feed) Pose(role tracking.Role) (tracking.RawPose, error) {
	if !f.tracked(role) {
		return tracking.RawPose{Rotation: spatial.Identity()}, nil
	}

	t := f.seconds()
	omega := 2 * math.Pi / orbitPeriod
	a := omega*t + phase(role)
	sin, cos := math.Sincos(a)

	anchor := anchors[role]
	return tracking.RawPose{
		Valid:     true,
		Connected: true,
		Tracking:  tracking.TrackingRunningOK,
		Position: spatial.Vec{
			X: anchor.X + orbitRadius*cos,
			Y: anchor.Y,
			Z: anchor.Z + orbitRadius*sin,
		},
		Rotation: spatial.AngleAxis(-a*180/math.Pi, spatial.Up),
		Velocity: spatial.Vec{
			X: -orbitRadius * omega * sin,
			Z: orbitRadius * omega * cos,
		},
		AngularVelocity: spatial.Vec{Y: -omega},
	}, nil
}

// DeviceIndex returns the device bound to role.
func (f *Feed) DeviceIndex(role tracking.Role) int {
	if idx, ok := f.roles[role]; ok {
		return idx
	}
	return tracking.NoDevice
}

// Status reports hands as actively tracked with per-finger curl sensing.
func (f *Feed) Status(role tracking.Role) skeleton.Status {
	if !role.IsHand() || !f.tracked(role) {
		return skeleton.Status{}
	}
	return skeleton.Status{
		Active:          true,
		ActiveBinding:   true,
		PoseValid:       true,
		DeviceConnected: true,
		Tracking:        tracking.TrackingRunningOK,
		Level:           skeleton.LevelPartial,
	}
}

// curls returns the animated curl of each finger at time t.
func curls(role tracking.Role, t float64) [skeleton.NumFingers]float64 {
	var out [skeleton.NumFingers]float64
	for i := range out {
		a := 2*math.Pi*t/curlPeriod + phase(role) + float64(i)*0.4
		out[i] = 0.5 - 0.5*math.Cos(a)
	}
	return out
}

// Summary returns the animated curls and splays. Device summaries are quantized
// to the sensor resolution.
func (f *Feed) Summary(role tracking.Role, kind skeleton.SummaryType) (skeleton.Summary, error) {
	if !role.IsHand() || !f.tracked(role) {
		return skeleton.Summary{}, nil
	}

	c := curls(role, f.seconds())
	var s skeleton.Summary
	s.Curls = c
	for i := range s.Splays {
		// Fingers spread as the hand opens.
		s.Splays[i] = 0.5 * (1 - (c[i]+c[i+1])/2)
	}
	if kind == skeleton.FromDevice {
		for i := range s.Curls {
			s.Curls[i] = quantize(s.Curls[i])
		}
		for i := range s.Splays {
			s.Splays[i] = quantize(s.Splays[i])
		}
	}
	return s, nil
}

func quantize(v float64) float64 {
	return math.Round(v*100) / 100
}

// Bones returns the animated hand in the backend convention.
func (f *Feed) Bones(role tracking.Role, space skeleton.TransformSpace, motion skeleton.MotionRange) (skeleton.Bones, error) {
	if !role.IsHand() || !f.tracked(role) {
		return skeleton.IdentityBones(), nil
	}

	c := curls(role, f.seconds())
	if motion == skeleton.WithController {
		for i := range c {
			c[i] *= controllerCurl
		}
	}
	return hand(role, c, space, wristOffset), nil
}

// ReferenceBones returns fixed hand shapes.
func (f *Feed) ReferenceBones(role tracking.Role, space skeleton.TransformSpace, pose skeleton.ReferencePose) (skeleton.Bones, error) {
	var curl float64
	switch pose {
	case skeleton.BindPose, skeleton.OpenHand:
		curl = 0
	case skeleton.Fist:
		curl = 1
	case skeleton.GripLimit:
		curl = controllerCurl
	default:
		return skeleton.Bones{}, skeleton.ErrNoReferencePose
	}

	var c [skeleton.NumFingers]float64
	for i := range c {
		c[i] = curl
	}
	wrist := wristOffset
	if pose == skeleton.BindPose {
		wrist = spatial.Vec{}
	}
	return hand(role, c, space, wrist), nil
}

// fingerChains lists the first joint of each finger chain and its spread across the palm.
var fingerChains = [skeleton.NumFingers]struct {
	first  int
	joints int
	spread float64 // meters along X from the wrist
}{
	{skeleton.ThumbProximal, 4, 0.035},
	{skeleton.IndexMetacarpal, 5, 0.02},
	{skeleton.MiddleMetacarpal, 5, 0},
	{skeleton.RingMetacarpal, 5, -0.02},
	{skeleton.PinkyMetacarpal, 5, -0.04},
}

// hand builds a parent-relative hand with every finger joint bent by its curl.
func hand(role tracking.Role, c [skeleton.NumFingers]float64, space skeleton.TransformSpace, wrist spatial.Vec) skeleton.Bones {
	b := skeleton.IdentityBones()
	side := 1.0
	if role == tracking.RoleLeftHand {
		side = -1
	}
	b[skeleton.Wrist].Position = wrist

	for finger, chain := range fingerChains {
		bend := spatial.AngleAxis(c[finger]*maxJointDegrees, spatial.Vec{X: 1})
		for j := 0; j < chain.joints; j++ {
			bone := chain.first + j
			if j == 0 {
				b[bone].Position = spatial.Vec{X: side * chain.spread, Z: boneLength}
				continue
			}
			b[bone].Position = spatial.Vec{Z: boneLength}
			b[bone].Rotation = bend
		}
	}

	if space == skeleton.SpaceModel {
		b = skeleton.ToModelSpace(b)
	}

	// Aux joints mirror the fingertips in model space regardless of the requested space.
	model := b
	if space == skeleton.SpaceParent {
		model = skeleton.ToModelSpace(b)
	}
	tips := [...]int{skeleton.ThumbTip, skeleton.IndexTip, skeleton.MiddleTip, skeleton.RingTip, skeleton.PinkyTip}
	for i, tip := range tips {
		b[skeleton.ThumbAux+i] = model[tip]
	}
	return b
}
