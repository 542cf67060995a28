package detector

import (
	"context"
	"errors"

	"gocv.io/x/gocv"
)

// ErrModelUnavailable is returned when the face model cannot be loaded.
// It is fatal to tracking, unlike a per-frame detection error.
var ErrModelUnavailable = errors.New("face model unavailable")

// Detector defines the interface for face perception implementations.
type Detector interface {
	// Detect analyzes a video frame captured at timestampMs and returns the
	// detected faces. The timestamp must be strictly increasing across calls.
	// A result with no faces is not an error.
	Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) (*Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// RunningMode selects how the model treats consecutive frames.
type RunningMode string

const (
	// RunningModeVideo tracks across frames and requires monotonic timestamps.
	RunningModeVideo RunningMode = "VIDEO"
	// RunningModeImage treats every frame independently.
	RunningModeImage RunningMode = "IMAGE"
)

// Config holds configuration options for face detection.
type Config struct {
	// ModelPath is the path or URL of the face_landmarker.task bundle.
	ModelPath string `json:"model_path"`

	// Mode is the model running mode (default: VIDEO).
	Mode RunningMode `json:"running_mode"`

	// MaxFaces is the maximum number of faces to detect (default: 1).
	MaxFaces int `json:"num_faces"`

	// Blendshapes enables blendshape score output.
	Blendshapes bool `json:"output_face_blendshapes"`

	// TransformMatrix enables facial transformation matrix output.
	TransformMatrix bool `json:"output_facial_transformation_matrixes"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `json:"min_face_detection_confidence"`

	// JPEGQuality is the quality frames are compressed at for the service.
	JPEGQuality int `json:"-"`

	// Script overrides the location of the model service script.
	Script string `json:"-"`

	// Python overrides the interpreter used to run the service script.
	Python string `json:"-"`
}

// DefaultModelURL is the published float16 Face Landmarker bundle.
const DefaultModelURL = "https://storage.googleapis.com/mediapipe-models/face_landmarker/face_landmarker/float16/latest/face_landmarker.task"

// DefaultConfig returns the streaming configuration used for puppeteering:
// video mode, a single face, blendshapes and transformation matrix enabled.
func DefaultConfig() Config {
	return Config{
		ModelPath:       DefaultModelURL,
		Mode:            RunningModeVideo,
		MaxFaces:        1,
		Blendshapes:     true,
		TransformMatrix: true,
		MinConfidence:   0.5,
		JPEGQuality:     90,
	}
}
