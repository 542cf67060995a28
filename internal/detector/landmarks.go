// Package detector provides the face perception interfaces and result types
// consumed by the tracking pipeline.
package detector

// Point3D represents a 3D point in space with x, y, z coordinates.
// Face landmarks use normalized image coordinates for X and Y.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Category is a single named blendshape score reported by the model.
type Category struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Face is everything the model reports for one detected face.
type Face struct {
	Landmarks   []Point3D  `json:"landmarks,omitempty"`
	Blendshapes []Category `json:"blendshapes,omitempty"`
	// Matrix is the facial transformation matrix in row-major order.
	// It holds 16 entries (4x4) or 12 (3x4); anything else is malformed.
	Matrix []float64 `json:"matrix,omitempty"`
}

// Result is the output of a single Detect call.
type Result struct {
	Faces       []Face `json:"faces"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// HasFace reports whether the result contains at least one face.
func (r *Result) HasFace() bool {
	return r != nil && len(r.Faces) > 0
}

// Primary returns the first detected face, or nil.
func (r *Result) Primary() *Face {
	if !r.HasFace() {
		return nil
	}
	return &r.Faces[0]
}

// Score returns the score for the named category and whether it was present.
// When a name repeats, the last occurrence wins.
func (f *Face) Score(name string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	score, found := 0.0, false
	for _, c := range f.Blendshapes {
		if c.Name == name {
			score, found = c.Score, true
		}
	}
	return score, found
}
