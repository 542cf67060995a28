package rig

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func rowMajor(m mgl64.Mat4) []float64 {
	out := make([]float64, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[4*row+col] = m.At(row, col)
		}
	}
	return out
}

func assertRotationBlock(t *testing.T, want, got []float64) {
	t.Helper()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			idx := 4*row + col
			assert.InDelta(t, want[idx], got[idx], tolerance, "r%d%d", row, col)
		}
	}
}

func TestDecomposeEuler_QuarterTurnAboutY(t *testing.T) {
	m := []float64{
		0, 0, 1, 0,
		0, 1, 0, 0,
		-1, 0, 0, 0,
		0, 0, 0, 1,
	}

	r, ok := DecomposeEuler(m)

	require.True(t, ok)
	assert.InDelta(t, 0, r.X, tolerance)
	assert.InDelta(t, math.Pi/2, r.Y, tolerance)
	assert.InDelta(t, 0, r.Z, tolerance)
}

func TestDecomposeEuler_Identity(t *testing.T) {
	r, ok := DecomposeEuler(rowMajor(mgl64.Ident4()))

	require.True(t, ok)
	assert.Equal(t, Rotation{}, r)
}

func TestDecomposeEuler_SingleAxis(t *testing.T) {
	tests := []struct {
		name string
		m    mgl64.Mat4
		want Rotation
	}{
		{"pitch", mgl64.HomogRotate3DX(0.4), Rotation{X: 0.4}},
		{"yaw", mgl64.HomogRotate3DY(-0.7), Rotation{Y: -0.7}},
		{"roll", mgl64.HomogRotate3DZ(1.2), Rotation{Z: 1.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := DecomposeEuler(rowMajor(tt.m))

			require.True(t, ok)
			assert.InDelta(t, tt.want.X, r.X, tolerance)
			assert.InDelta(t, tt.want.Y, r.Y, tolerance)
			assert.InDelta(t, tt.want.Z, r.Z, tolerance)
		})
	}
}

func TestDecomposeEuler_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	t.Run("from angles", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			in := Rotation{
				X: (rng.Float64()*2 - 1) * (math.Pi - 0.01),
				Y: (rng.Float64()*2 - 1) * (math.Pi/2 - 0.01),
				Z: (rng.Float64()*2 - 1) * (math.Pi - 0.01),
			}

			out, ok := DecomposeEuler(in.RowMajor())

			require.True(t, ok)
			assert.InDelta(t, in.X, out.X, 1e-7)
			assert.InDelta(t, in.Y, out.Y, 1e-7)
			assert.InDelta(t, in.Z, out.Z, 1e-7)
		}
	})

	t.Run("from quaternions", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			q := mgl64.Quat{
				W: rng.NormFloat64(),
				V: mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()},
			}.Normalize()
			m := rowMajor(q.Mat4())

			r, ok := DecomposeEuler(m)

			require.True(t, ok)
			assertRotationBlock(t, m, r.RowMajor())
		}
	})

	t.Run("gimbal lock keeps the rotation", func(t *testing.T) {
		for _, y := range []float64{math.Pi / 2, -math.Pi / 2} {
			m := Rotation{X: 0.3, Y: y, Z: -0.2}.RowMajor()

			r, ok := DecomposeEuler(m)

			require.True(t, ok)
			assertRotationBlock(t, m, r.RowMajor())
		}
	})
}

func TestDecomposeEuler_IgnoresTranslation(t *testing.T) {
	m := Rotation{X: 0.1, Y: 0.2, Z: 0.3}.RowMajor()
	m[3], m[7], m[11] = 4, -2, -45

	r, ok := DecomposeEuler(m)

	require.True(t, ok)
	assert.InDelta(t, 0.1, r.X, tolerance)
	assert.InDelta(t, 0.2, r.Y, tolerance)
	assert.InDelta(t, 0.3, r.Z, tolerance)
}

func TestDecomposeEuler_ThreeByFour(t *testing.T) {
	m := Rotation{X: -0.25, Y: 0.5, Z: 0.05}.RowMajor()[:12]

	r, ok := DecomposeEuler(m)

	require.True(t, ok)
	assert.InDelta(t, -0.25, r.X, tolerance)
	assert.InDelta(t, 0.5, r.Y, tolerance)
	assert.InDelta(t, 0.05, r.Z, tolerance)
}

func TestDecomposeEuler_Malformed(t *testing.T) {
	withNaN := Rotation{}.RowMajor()
	withNaN[9] = math.NaN()
	withInf := Rotation{}.RowMajor()
	withInf[0] = math.Inf(1)

	tests := []struct {
		name string
		m    []float64
	}{
		{"nil", nil},
		{"empty", []float64{}},
		{"nine entries", []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}},
		{"seventeen entries", make([]float64, 17)},
		{"nan", withNaN},
		{"inf", withInf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DecomposeEuler(tt.m)
			assert.False(t, ok)
		})
	}
}

func TestRotation_QuatMatchesMatrix(t *testing.T) {
	r := Rotation{X: 0.3, Y: -0.8, Z: 1.1}

	assert.True(t, r.Quat().Mat4().ApproxEqualThreshold(r.Matrix(), tolerance))
}

func TestRotation_Add(t *testing.T) {
	got := Rotation{X: 1, Y: 2, Z: 3}.Add(Rotation{X: 0.5, Y: -2, Z: 1})

	assert.Equal(t, Rotation{X: 1.5, Y: 0, Z: 4}, got)
}
