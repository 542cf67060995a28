// Package rig turns detection results into a normalized frame state and
// applies that state to an animation target's morph channels and bones.
package rig

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Rotation is a head or eye rotation in radians.
//
// The angles are extrinsic X then Y then Z, so the equivalent matrix is
// Rz * Ry * Rx.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum of r and o.
func (r Rotation) Add(o Rotation) Rotation {
	return Rotation{X: r.X + o.X, Y: r.Y + o.Y, Z: r.Z + o.Z}
}

// Matrix recomposes the rotation into a homogeneous transform.
func (r Rotation) Matrix() mgl64.Mat4 {
	return mgl64.HomogRotate3DZ(r.Z).
		Mul4(mgl64.HomogRotate3DY(r.Y)).
		Mul4(mgl64.HomogRotate3DX(r.X))
}

// RowMajor returns Matrix as 16 row-major entries, the layout the face
// model reports its transformation matrix in.
func (r Rotation) RowMajor() []float64 {
	m := r.Matrix()
	out := make([]float64, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[4*row+col] = m.At(row, col)
		}
	}
	return out
}

// Quat returns the rotation as a unit quaternion.
func (r Rotation) Quat() mgl64.Quat {
	return mgl64.QuatRotate(r.Z, mgl64.Vec3{0, 0, 1}).
		Mul(mgl64.QuatRotate(r.Y, mgl64.Vec3{0, 1, 0})).
		Mul(mgl64.QuatRotate(r.X, mgl64.Vec3{1, 0, 0}))
}

// DecomposeEuler extracts the rotation from a row-major 4x4 (16 entries) or
// 3x4 (12 entries) rigid transform. Translation is ignored.
//
// It returns false when the matrix has the wrong length or contains NaN or
// infinite entries. At gimbal lock (|y| = pi/2) the individual X and Z
// angles are not unique; the returned triple still reproduces the rotation.
func DecomposeEuler(m []float64) (Rotation, bool) {
	if len(m) != 12 && len(m) != 16 {
		return Rotation{}, false
	}
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Rotation{}, false
		}
	}

	r00 := m[0]
	r10 := m[4]
	r20, r21, r22 := m[8], m[9], m[10]

	return Rotation{
		X: math.Atan2(r21, r22),
		Y: math.Atan2(-r20, math.Sqrt(r21*r21+r22*r22)),
		Z: math.Atan2(r10, r00),
	}, true
}
