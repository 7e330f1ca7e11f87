// Package skeleton tracks the 31-joint hand skeleton for one role: coordinate
// conversion from the backend convention, double-buffered bone and finger summary
// state, change detection and notifications.
package skeleton

import (
	"fmt"

	"github.com/ayusman/posetrack/internal/spatial"
)

// Joint indices into a bone array.
const (
	Root = iota
	Wrist
	ThumbProximal
	ThumbMiddle
	ThumbDistal
	ThumbTip
	IndexMetacarpal
	IndexProximal
	IndexMiddle
	IndexDistal
	IndexTip
	MiddleMetacarpal
	MiddleProximal
	MiddleMiddle
	MiddleDistal
	MiddleTip
	RingMetacarpal
	RingProximal
	RingMiddle
	RingDistal
	RingTip
	PinkyMetacarpal
	PinkyProximal
	PinkyMiddle
	PinkyDistal
	PinkyTip
	ThumbAux
	IndexAux
	MiddleAux
	RingAux
	PinkyAux

	NumBones
)

// Bones holds one transform per joint, indexed by the joint constants.
type Bones [NumBones]spatial.RigidTransform

// IdentityBones returns a skeleton with every joint at the origin with no rotation.
func IdentityBones() Bones {
	var b Bones
	for i := range b {
		b[i] = spatial.IdentityTransform()
	}
	return b
}

// hierarchy maps each joint to its parent; the root has none.
var hierarchy = [NumBones]int{
	Root:  -1,
	Wrist: Root,

	ThumbProximal: Wrist,
	ThumbMiddle:   ThumbProximal,
	ThumbDistal:   ThumbMiddle,
	ThumbTip:      ThumbDistal,

	IndexMetacarpal: Wrist,
	IndexProximal:   IndexMetacarpal,
	IndexMiddle:     IndexProximal,
	IndexDistal:     IndexMiddle,
	IndexTip:        IndexDistal,

	MiddleMetacarpal: Wrist,
	MiddleProximal:   MiddleMetacarpal,
	MiddleMiddle:     MiddleProximal,
	MiddleDistal:     MiddleMiddle,
	MiddleTip:        MiddleDistal,

	RingMetacarpal: Wrist,
	RingProximal:   RingMetacarpal,
	RingMiddle:     RingProximal,
	RingDistal:     RingMiddle,
	RingTip:        RingDistal,

	PinkyMetacarpal: Wrist,
	PinkyProximal:   PinkyMetacarpal,
	PinkyMiddle:     PinkyProximal,
	PinkyDistal:     PinkyMiddle,
	PinkyTip:        PinkyDistal,

	// Aux joints are fingertip helpers parented to the root.
	ThumbAux:  Root,
	IndexAux:  Root,
	MiddleAux: Root,
	RingAux:   Root,
	PinkyAux:  Root,
}

var boneNames = [NumBones]string{
	"root",
	"wrist",
	"finger_thumb_0", "finger_thumb_1", "finger_thumb_2", "finger_thumb_end",
	"finger_index_meta", "finger_index_0", "finger_index_1", "finger_index_2", "finger_index_end",
	"finger_middle_meta", "finger_middle_0", "finger_middle_1", "finger_middle_2", "finger_middle_end",
	"finger_ring_meta", "finger_ring_0", "finger_ring_1", "finger_ring_2", "finger_ring_end",
	"finger_pinky_meta", "finger_pinky_0", "finger_pinky_1", "finger_pinky_2", "finger_pinky_end",
	"finger_thumb_aux", "finger_index_aux", "finger_middle_aux", "finger_ring_aux", "finger_pinky_aux",
}

// Hierarchy returns a copy of the parent index table.
func Hierarchy() []int {
	out := make([]int, NumBones)
	copy(out, hierarchy[:])
	return out
}

// Parent returns the parent joint of bone, or -1 for the root.
func Parent(bone int) int {
	if bone < 0 || bone >= NumBones {
		return -1
	}
	return hierarchy[bone]
}

// BoneName returns the name of bone, or an empty string when out of range.
func BoneName(bone int) string {
	if bone < 0 || bone >= NumBones {
		return ""
	}
	return boneNames[bone]
}

// ToModelSpace composes parent-relative transforms into model space by walking the
// hierarchy from the root.
func ToModelSpace(parentRelative Bones) Bones {
	var out Bones
	for i := 0; i < NumBones; i++ {
		p := hierarchy[i]
		if p < 0 {
			out[i] = parentRelative[i]
			continue
		}
		out[i] = out[p].Compose(parentRelative[i])
	}
	return out
}

// Finger indexes the five-entry curl array.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky

	NumFingers = 5
)

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < 0 || int(f) >= NumFingers {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// Splay indexes the four-entry splay array. The thumb has no preceding finger, so
// there is one fewer splay than curl.
type Splay int

const (
	ThumbIndex Splay = iota
	IndexMiddleSplay
	MiddleRing
	RingPinky

	NumSplays = 4
)

var splayNames = [NumSplays]string{"thumb_index", "index_middle", "middle_ring", "ring_pinky"}

func (s Splay) String() string {
	if s < 0 || int(s) >= NumSplays {
		return fmt.Sprintf("splay(%d)", int(s))
	}
	return splayNames[s]
}
