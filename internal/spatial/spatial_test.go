package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const epsilon = 1e-9

func TestAngle(t *testing.T) {
	tests := []struct {
		name string
		a, b Quat
		want float64
	}{
		{"identical", Identity(), Identity(), 0},
		{"quarter turn about up", Identity(), AngleAxis(90, Up), 90},
		{"half turn about x", Identity(), AngleAxis(180, Vec{X: 1}), 180},
		{"sign flipped quaternion is the same rotation", AngleAxis(30, Up), Quat{Real: -math.Cos(math.Pi / 12), Jmag: -math.Sin(math.Pi / 12)}, 0},
		{"negated arbitrary rotation", Normalize(Quat{Real: 0.9, Imag: 0.1, Jmag: 0.2, Kmag: 0.3}), Normalize(Quat{Real: -0.9, Imag: -0.1, Jmag: -0.2, Kmag: -0.3}), 0},
		{"negated quarter turn", Identity(), Quat{Real: -math.Cos(math.Pi / 4), Jmag: -math.Sin(math.Pi / 4)}, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Angle(tt.a, tt.b), 1e-3)
		})
	}
}

func TestAngle_SignFlipIsExactlyZero(t *testing.T) {
	q := Normalize(Quat{Real: 0.9, Imag: 0.1, Jmag: 0.2, Kmag: 0.3})
	neg := Quat{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
	assert.Equal(t, 0.0, Angle(q, neg))
	assert.Equal(t, 0.0, Angle(neg, q))
}

func TestRotate(t *testing.T) {
	got := Rotate(AngleAxis(90, Up), Vec{X: 1})
	assert.InDelta(t, 0, got.X, epsilon)
	assert.InDelta(t, 0, got.Y, epsilon)
	assert.InDelta(t, -1, got.Z, epsilon)
}

func TestRigidTransform_TransformPoint(t *testing.T) {
	tr := RigidTransform{
		Position: Vec{X: 1, Y: 2, Z: 3},
		Rotation: AngleAxis(90, Up),
	}

	got := tr.TransformPoint(Vec{X: 1})
	assert.InDelta(t, 1, got.X, epsilon)
	assert.InDelta(t, 2, got.Y, epsilon)
	assert.InDelta(t, 2, got.Z, epsilon)
}

func TestRigidTransform_Compose(t *testing.T) {
	parent := RigidTransform{Position: Vec{Y: 1}, Rotation: AngleAxis(90, Up)}
	child := RigidTransform{Position: Vec{X: 1}, Rotation: Identity()}

	got := parent.Compose(child)
	assert.InDelta(t, 0, got.Position.X, epsilon)
	assert.InDelta(t, 1, got.Position.Y, epsilon)
	assert.InDelta(t, -1, got.Position.Z, epsilon)
	assert.InDelta(t, 0, Angle(got.Rotation, parent.Rotation), 1e-6)
}

func TestNormalize_ZeroIsIdentity(t *testing.T) {
	assert.Equal(t, Identity(), Normalize(Quat{}))
}

func TestLerp(t *testing.T) {
	got := Lerp(Vec{}, Vec{X: 2, Y: -2}, 0.25)
	assert.InDelta(t, 0.5, got.X, epsilon)
	assert.InDelta(t, -0.5, got.Y, epsilon)
	assert.InDelta(t, 2.0, Distance(Vec{}, Vec{Y: 2}), epsilon)
}
