package rig

import (
	"math"
	"time"
)

// Smoother is an opt-in exponential filter for the head rotation. It runs
// on the rotation before Apply and keeps state between frames, so it is
// owned by a single render loop.
type Smoother struct {
	rate   float64
	value  Rotation
	primed bool
}

// NewSmoother creates a Smoother that closes 1-exp(-rate*dt) of the gap to
// the target each update. A rate of zero or less passes values through.
func NewSmoother(rate float64) *Smoother {
	return &Smoother{rate: rate}
}

// Update advances the filter by dt toward target and returns the result.
func (s *Smoother) Update(target Rotation, dt time.Duration) Rotation {
	if s.rate <= 0 || !s.primed {
		s.value = target
		s.primed = true
		return target
	}
	if dt <= 0 {
		return s.value
	}

	alpha := 1 - math.Exp(-s.rate*dt.Seconds())
	s.value = Rotation{
		X: approach(s.value.X, target.X, alpha),
		Y: approach(s.value.Y, target.Y, alpha),
		Z: approach(s.value.Z, target.Z, alpha),
	}
	return s.value
}

// Reset forgets the filtered value; the next Update snaps to its target.
func (s *Smoother) Reset() {
	s.value = Rotation{}
	s.primed = false
}

// approach moves from toward to along the shorter arc.
func approach(from, to, alpha float64) float64 {
	delta := math.Remainder(to-from, 2*math.Pi)
	return math.Remainder(from+alpha*delta, 2*math.Pi)
}
