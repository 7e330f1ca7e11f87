// Package spatial provides the vector, rotation and rigid transform math shared by the tracking sources.
//
// Rotations are unit quaternions stored as quat.Number with Real=w, Imag=x, Jmag=y, Kmag=z.
// Products follow the Hamilton convention, so Mul(a, b) applies b first, then a.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is a 3D vector in meters (positions) or meters/radians per second (velocities).
type Vec = r3.Vec

// Quat is a rotation quaternion.
type Quat = quat.Number

// dotEpsilon matches the tolerance used when two rotations are considered identical.
const dotEpsilon = 1e-6

// Up is the +Y axis.
var Up = Vec{Y: 1}

// Identity returns the identity rotation.
func Identity() Quat {
	return Quat{Real: 1}
}

// NewQuat builds a rotation from x, y, z, w components.
func NewQuat(x, y, z, w float64) Quat {
	return Quat{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// Mul composes two rotations: the result applies b first, then a.
func Mul(a, b Quat) Quat {
	return quat.Mul(a, b)
}

// Normalize returns q scaled to unit length. A zero quaternion becomes the identity.
func Normalize(q Quat) Quat {
	n := quat.Abs(q)
	if n < 1e-12 {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

// Inverse returns the inverse of a unit rotation.
func Inverse(q Quat) Quat {
	return quat.Conj(q)
}

// AngleAxis returns the rotation of degrees around axis.
func AngleAxis(degrees float64, axis Vec) Quat {
	n := r3.Norm(axis)
	if n < 1e-12 {
		return Identity()
	}
	axis = r3.Scale(1/n, axis)
	half := degrees * math.Pi / 360
	s := math.Sin(half)
	return Quat{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// Dot returns the 4D dot product of two quaternions.
func Dot(a, b Quat) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Angle returns the angle in degrees between two rotations. q and -q are the same
// rotation.
func Angle(a, b Quat) float64 {
	dot := math.Min(math.Abs(Dot(a, b)), 1)
	if dot > 1-dotEpsilon {
		return 0
	}
	return math.Acos(dot) * 2 * 180 / math.Pi
}

// Rotate applies q to v.
func Rotate(q Quat, v Vec) Vec {
	p := quat.Mul(quat.Mul(q, Quat{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b Vec, t float64) Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// RigidTransform is a position and rotation pair.
type RigidTransform struct {
	Position Vec  `json:"position"`
	Rotation Quat `json:"rotation"`
}

// IdentityTransform returns a transform at the origin with no rotation.
func IdentityTransform() RigidTransform {
	return RigidTransform{Rotation: Identity()}
}

// TransformPoint maps p from the transform's local space into its parent space.
func (t RigidTransform) TransformPoint(p Vec) Vec {
	return r3.Add(t.Position, Rotate(t.Rotation, p))
}

// Compose returns the transform equivalent to applying child inside t.
func (t RigidTransform) Compose(child RigidTransform) RigidTransform {
	return RigidTransform{
		Position: t.TransformPoint(child.Position),
		Rotation: Mul(t.Rotation, child.Rotation),
	}
}
