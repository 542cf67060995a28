package app

// Status is the state of the tracking session.
type Status string

const (
	// StatusIdle means tracking is disabled.
	StatusIdle Status = "idle"
	// StatusLoading means the camera or face model is being acquired.
	StatusLoading Status = "loading"
	// StatusTracking means frames are flowing through the detector.
	StatusTracking Status = "tracking"
	// StatusCameraFailed means the camera could not be opened or stopped
	// delivering frames. The avatar holds its last pose.
	StatusCameraFailed Status = "camera_failed"
	// StatusModelFailed means the face model could not be loaded.
	StatusModelFailed Status = "model_failed"
	// StatusStopped means the session was torn down.
	StatusStopped Status = "stopped"
)

// Failed reports whether s is a terminal failure.
func (s Status) Failed() bool {
	return s == StatusCameraFailed || s == StatusModelFailed
}

// Report is a point-in-time view of the tracker for the API and tray.
type Report struct {
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
	Enabled     bool   `json:"enabled"`
	Session     string `json:"session,omitempty"`
	FaceVisible bool   `json:"face_visible"`
	Frames      uint64 `json:"frames"`
	Detections  uint64 `json:"detections"`
	Faces       uint64 `json:"faces"`
	Skipped     uint64 `json:"skipped"`
	Sequence    uint64 `json:"sequence"`
}
