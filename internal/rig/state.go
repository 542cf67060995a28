package rig

import (
	"github.com/ayusman/kathakali/internal/detector"
)

// FrameState is the normalized per-frame pose handed to the render loop.
//
// A name missing from Blendshapes has intensity 0. Once published a
// FrameState is never mutated; Normalize always builds a new one.
type FrameState struct {
	Blendshapes  map[string]float64 `json:"blendshapes"`
	HeadRotation Rotation           `json:"headRotation"`
	Landmarks    []detector.Point3D `json:"landmarks,omitempty"`
}

// NewFrameState returns the neutral pose: no blendshapes, zero rotation.
func NewFrameState() *FrameState {
	return &FrameState{Blendshapes: map[string]float64{}}
}

// Intensity returns the intensity for name, 0 when absent.
func (s *FrameState) Intensity(name string) float64 {
	if s == nil {
		return 0
	}
	return s.Blendshapes[name]
}

// Normalize folds a detection result into the previous frame state.
//
// Without a face, previous is returned as is and the avatar holds its last
// known pose. Otherwise each part of the state is replaced only when the
// result carries it: an empty category list keeps the previous blendshapes
// and a missing or malformed matrix keeps the previous rotation.
func Normalize(raw *detector.Result, previous *FrameState) *FrameState {
	if previous == nil {
		previous = NewFrameState()
	}
	face := raw.Primary()
	if face == nil {
		return previous
	}

	next := &FrameState{
		Blendshapes:  previous.Blendshapes,
		HeadRotation: previous.HeadRotation,
		Landmarks:    previous.Landmarks,
	}

	if len(face.Blendshapes) > 0 {
		scores := make(map[string]float64, len(face.Blendshapes))
		for _, c := range face.Blendshapes {
			scores[c.Name] = c.Score
		}
		next.Blendshapes = scores
	}

	if r, ok := DecomposeEuler(face.Matrix); ok {
		next.HeadRotation = r
	}

	if len(face.Landmarks) > 0 {
		next.Landmarks = append([]detector.Point3D(nil), face.Landmarks...)
	}

	return next
}
