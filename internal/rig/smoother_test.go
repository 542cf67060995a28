package rig

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSmoother(t *testing.T) {
	t.Run("disabled passes through", func(t *testing.T) {
		s := NewSmoother(0)
		s.Update(Rotation{Y: 1}, 16*time.Millisecond)

		got := s.Update(Rotation{Y: -1}, 16*time.Millisecond)

		assert.Equal(t, Rotation{Y: -1}, got)
	})

	t.Run("first update snaps", func(t *testing.T) {
		s := NewSmoother(10)

		assert.Equal(t, Rotation{X: 0.4}, s.Update(Rotation{X: 0.4}, time.Second))
	})

	t.Run("exponential decay", func(t *testing.T) {
		s := NewSmoother(5)
		s.Update(Rotation{}, 0)

		got := s.Update(Rotation{Y: 1}, 100*time.Millisecond)

		assert.InDelta(t, 1-math.Exp(-0.5), got.Y, 1e-12)
		assert.Zero(t, got.X)
	})

	t.Run("converges", func(t *testing.T) {
		s := NewSmoother(8)
		s.Update(Rotation{}, 0)

		var got Rotation
		for i := 0; i < 120; i++ {
			got = s.Update(Rotation{X: 0.3, Y: -0.2, Z: 0.1}, 16*time.Millisecond)
		}

		assert.InDelta(t, 0.3, got.X, 1e-4)
		assert.InDelta(t, -0.2, got.Y, 1e-4)
		assert.InDelta(t, 0.1, got.Z, 1e-4)
	})

	t.Run("takes the short way across pi", func(t *testing.T) {
		s := NewSmoother(1)
		s.Update(Rotation{Z: 3.0}, 0)

		got := s.Update(Rotation{Z: -3.0}, 100*time.Millisecond)

		assert.Greater(t, got.Z, 3.0)
	})

	t.Run("reset snaps again", func(t *testing.T) {
		s := NewSmoother(1)
		s.Update(Rotation{X: 1}, 0)
		s.Reset()

		assert.Equal(t, Rotation{X: -1}, s.Update(Rotation{X: -1}, time.Millisecond))
	})
}
