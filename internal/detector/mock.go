package detector

import (
	"context"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	result     *Result
	sequence   []*Result
	err        error
	gate       chan struct{}
	timestamps []int64
	closed     bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetResult sets the result that will be returned by Detect.
func (m *MockDetector) SetResult(r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
}

// SetFaces is shorthand for SetResult with the given faces.
func (m *MockDetector) SetFaces(faces ...Face) {
	m.SetResult(&Result{Faces: faces})
}

// SetSequence makes Detect return results in order, then keep returning
// the last one. A nil entry means no face.
func (m *MockDetector) SetSequence(results ...*Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = results
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetGate makes every Detect call wait until gate is closed or receives.
// A nil gate disables waiting.
func (m *MockDetector) SetGate(gate chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// Detect returns the pre-configured result or error.
// The returned result carries the caller's timestamp.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) (*Result, error) {
	m.mu.Lock()
	gate := m.gate
	m.timestamps = append(m.timestamps, timestampMs)
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		if len(m.sequence) > 1 {
			m.sequence = m.sequence[1:]
		}
		if next == nil {
			return &Result{TimestampMs: timestampMs}, nil
		}
		r := *next
		r.TimestampMs = timestampMs
		return &r, nil
	}
	if m.result == nil {
		return &Result{TimestampMs: timestampMs}, nil
	}
	r := *m.result
	r.TimestampMs = timestampMs
	return &r, nil
}

// Timestamps returns the timestamps Detect was called with.
func (m *MockDetector) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timestamps)
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// IdentityMatrix returns a 4x4 row-major identity transform.
func IdentityMatrix() []float64 {
	return []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// YawMatrix returns a row-major 4x4 transform rotating by angle radians
// about the Y axis, translated back from the camera like a real face.
func YawMatrix(angle float64) []float64 {
	s, c := math.Sincos(angle)
	return []float64{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, -40,
		0, 0, 0, 1,
	}
}

// SmileFace returns a preset face with a broad smile and a neutral head.
func SmileFace() Face {
	return Face{
		Blendshapes: []Category{
			{Name: "_neutral", Score: 0.02},
			{Name: "mouthSmileLeft", Score: 0.85},
			{Name: "mouthSmileRight", Score: 0.82},
			{Name: "cheekSquintLeft", Score: 0.4},
			{Name: "cheekSquintRight", Score: 0.38},
			{Name: "jawOpen", Score: 0.12},
		},
		Matrix: IdentityMatrix(),
	}
}

// WinkLeftFace returns a preset face with the left eye closed, looking right,
// and the head turned by yaw radians.
func WinkLeftFace(yaw float64) Face {
	return Face{
		Blendshapes: []Category{
			{Name: "eyeBlinkLeft", Score: 0.93},
			{Name: "eyeBlinkRight", Score: 0.05},
			{Name: "eyeLookOutRight", Score: 0.6},
			{Name: "eyeLookInLeft", Score: 0.55},
			{Name: "browDownLeft", Score: 0.3},
		},
		Matrix: YawMatrix(yaw),
	}
}
