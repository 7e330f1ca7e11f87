package skeleton

import "github.com/ayusman/posetrack/internal/spatial"

// fixUpRotation turns the converted root 180 degrees about up so the hand faces +Z.
var fixUpRotation = spatial.Quat{Jmag: 1}

// ConvertPosition maps a backend (right-handed) position into the engine's
// left-handed convention by mirroring X.
func ConvertPosition(p spatial.Vec) spatial.Vec {
	return spatial.Vec{X: -p.X, Y: p.Y, Z: p.Z}
}

// ConvertRotation mirrors a backend rotation across the YZ plane. W and X are kept.
func ConvertRotation(q spatial.Quat) spatial.Quat {
	return spatial.Quat{Real: q.Real, Imag: q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

// ConvertBones converts every joint and applies the root fix-up.
func ConvertBones(raw Bones) Bones {
	var out Bones
	for i, b := range raw {
		out[i] = spatial.RigidTransform{
			Position: ConvertPosition(b.Position),
			Rotation: ConvertRotation(b.Rotation),
		}
	}
	out[Root].Rotation = spatial.Mul(fixUpRotation, out[Root].Rotation)
	return out
}

// UnconvertBones is the inverse of ConvertBones. The recorder uses it to store
// frames in the backend convention.
func UnconvertBones(converted Bones) Bones {
	converted[Root].Rotation = spatial.Mul(spatial.Inverse(fixUpRotation), converted[Root].Rotation)

	var out Bones
	for i, b := range converted {
		// Mirroring is its own inverse.
		out[i] = spatial.RigidTransform{
			Position: ConvertPosition(b.Position),
			Rotation: ConvertRotation(b.Rotation),
		}
	}
	return out
}
