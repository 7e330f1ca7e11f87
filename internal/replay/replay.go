// Package replay plays a recorded session back as a tracking backend.
package replay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/spatial"
	"github.com/ayusman/posetrack/internal/store"
	"github.com/ayusman/posetrack/internal/tracking"
)

// ErrEmptySession is returned when a session has no recorded frames.
var ErrEmptySession = errors.New("session has no recorded frames")

type poseTrack struct {
	device []int
	poses  []tracking.RawPose
	set    []bool
}

type skeletonTrack struct {
	frames []store.SkeletonFrame
	set    []bool
}

// Player serves the frames of one session in order. Frame numbers passed to Advance
// are relative to the start of playback. Roles with no sample at a frame repeat
// their previous sample.
type Player struct {
	session *store.Session
	length  int64
	loop    bool

	poses     map[tracking.Role]*poseTrack
	skeletons map[tracking.Role]*skeletonTrack

	mu       sync.RWMutex
	cursor   int64
	finished bool
}

// Load reads a session from s. With loop set playback wraps around at the end,
// otherwise it holds the last frame.
func Load(s *store.Store, sessionID string, loop bool) (*Player, error) {
	sess, err := s.Sessions().GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	poses, err := s.Frames().Poses(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pose samples: %w", err)
	}
	skels, err := s.Frames().Skeletons(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load skeleton frames: %w", err)
	}
	return newPlayer(sess, poses, skels, loop)
}

func newPlayer(sess *store.Session, poses []store.PoseSample, skels []store.SkeletonFrame, loop bool) (*Player, error) {
	if len(poses) == 0 && len(skels) == 0 {
		return nil, ErrEmptySession
	}

	first, last := int64(-1), int64(-1)
	span := func(f int64) {
		if first < 0 || f < first {
			first = f
		}
		if f > last {
			last = f
		}
	}
	for _, p := range poses {
		span(p.Frame)
	}
	for _, k := range skels {
		span(k.Frame)
	}

	p := &Player{
		session:   sess,
		length:    last - first + 1,
		loop:      loop,
		poses:     make(map[tracking.Role]*poseTrack),
		skeletons: make(map[tracking.Role]*skeletonTrack),
	}

	for _, s := range poses {
		t, ok := p.poses[s.Role]
		if !ok {
			t = &poseTrack{
				device: make([]int, p.length),
				poses:  make([]tracking.RawPose, p.length),
				set:    make([]bool, p.length),
			}
			for i := range t.device {
				t.device[i] = tracking.NoDevice
				t.poses[i].Rotation = spatial.Identity()
			}
			p.poses[s.Role] = t
		}
		i := s.Frame - first
		t.device[i] = s.DeviceIndex
		t.poses[i] = s.Pose
		t.set[i] = true
	}
	for _, t := range p.poses {
		for i := int64(1); i < p.length; i++ {
			if !t.set[i] && t.set[i-1] {
				t.device[i] = t.device[i-1]
				t.poses[i] = t.poses[i-1]
				t.set[i] = true
			}
		}
	}

	for _, k := range skels {
		t, ok := p.skeletons[k.Role]
		if !ok {
			t = &skeletonTrack{frames: make([]store.SkeletonFrame, p.length), set: make([]bool, p.length)}
			p.skeletons[k.Role] = t
		}
		i := k.Frame - first
		t.frames[i] = k
		t.set[i] = true
	}
	for _, t := range p.skeletons {
		for i := int64(1); i < p.length; i++ {
			if !t.set[i] && t.set[i-1] {
				t.frames[i] = t.frames[i-1]
				t.set[i] = true
			}
		}
	}

	return p, nil
}

// Session returns the session being played.
func (p *Player) Session() *store.Session {
	return p.session
}

// Len returns the number of frames in the recording.
func (p *Player) Len() int64 {
	return p.length
}

// Advance moves playback to frame.
func (p *Player) Advance(frame int64) {
	if frame < 0 {
		frame = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.loop:
		p.cursor = frame % p.length
	case frame >= p.length:
		p.cursor = p.length - 1
		p.finished = true
	default:
		p.cursor = frame
	}
}

// Cursor returns the recorded frame index currently served.
func (p *Player) Cursor() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// Finished reports whether a non-looping playback ran past the end.
func (p *Player) Finished() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.finished
}

// Pose returns the recorded sample for role at the cursor.
func (p *Player) Pose(role tracking.Role) (tracking.RawPose, error) {
	t, ok := p.poses[role]
	if !ok {
		return tracking.RawPose{Rotation: spatial.Identity()}, nil
	}
	return t.poses[p.Cursor()], nil
}

// DeviceIndex returns the recorded device binding for role at the cursor.
func (p *Player) DeviceIndex(role tracking.Role) int {
	t, ok := p.poses[role]
	if !ok {
		return tracking.NoDevice
	}
	return t.device[p.Cursor()]
}

func (p *Player) skeletonFrame(role tracking.Role) (store.SkeletonFrame, bool) {
	t, ok := p.skeletons[role]
	if !ok {
		return store.SkeletonFrame{}, false
	}
	i := p.Cursor()
	return t.frames[i], t.set[i]
}

// Status returns the recorded skeleton status for role.
func (p *Player) Status(role tracking.Role) skeleton.Status {
	f, _ := p.skeletonFrame(role)
	return f.Status
}

// Bones returns the recorded bones. Recordings hold one transform space and motion
// range, so those arguments are ignored.
func (p *Player) Bones(role tracking.Role, _ skeleton.TransformSpace, _ skeleton.MotionRange) (skeleton.Bones, error) {
	f, ok := p.skeletonFrame(role)
	if !ok {
		return skeleton.Bones{}, fmt.Errorf("no skeleton recorded for %s", role)
	}
	return f.Bones, nil
}

// Summary returns the recorded finger summary regardless of kind.
func (p *Player) Summary(role tracking.Role, _ skeleton.SummaryType) (skeleton.Summary, error) {
	f, ok := p.skeletonFrame(role)
	if !ok {
		return skeleton.Summary{}, fmt.Errorf("no skeleton recorded for %s", role)
	}
	return f.Summary, nil
}

// ReferenceBones is not recorded.
func (p *Player) ReferenceBones(tracking.Role, skeleton.TransformSpace, skeleton.ReferencePose) (skeleton.Bones, error) {
	return skeleton.Bones{}, skeleton.ErrNoReferencePose
}
