package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/kathakali/internal/capture"
)

const serviceScript = "face_landmarker_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe Face
// Landmarker subprocess.
//
// Wire protocol, per frame:
//
//	stdin:  uint32 BE jpeg length | int64 BE timestamp ms | jpeg bytes
//	stdout: one JSON line {"faces": [...], "error": "..."}
//
// On startup the service writes a single {"ready": true} or {"error": "..."}
// line once the model is loaded.
type MediaPipeDetector struct {
	config Config
	log    zerolog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	// started is set once the service reported the model as loaded.
	started bool
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, log zerolog.Logger) (*MediaPipeDetector, error) {
	if findServiceScript(config.Script) == "" {
		return nil, fmt.Errorf("%w: %s not found", ErrModelUnavailable, serviceScript)
	}

	return &MediaPipeDetector{
		config: config,
		log:    log.With().Str("component", "mediapipe").Logger(),
	}, nil
}

// Start launches the service and waits for the model to load.
// Calling Start on a running detector is a no-op.
func (d *MediaPipeDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureStarted()
}

// Detect analyzes a frame and returns the detected faces.
// The call blocks until the service answers; ctx is only checked before the
// frame is sent because the pipe protocol cannot abandon a request midway.
func (d *MediaPipeDetector) Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	data, err := capture.EncodeJPEG(frame, d.config.JPEGQuality)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(data)))
	binary.BigEndian.PutUint64(header[4:12], uint64(timestampMs))

	if _, err := d.stdin.Write(header); err != nil {
		d.reset()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.reset()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.reset()
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Faces []Face `json:"faces"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("detect: %s", response.Error)
	}

	return &Result{Faces: response.Faces, TimestampMs: timestampMs}, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	scriptPath := findServiceScript(d.config.Script)
	if scriptPath == "" {
		return fmt.Errorf("%w: %s not found", ErrModelUnavailable, serviceScript)
	}

	pythonPath := d.config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	options, err := json.Marshal(d.config)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	d.cmd = exec.Command(pythonPath, "-u", scriptPath, "--options", string(options))

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = d.log.With().Str("stream", "stderr").Logger()

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("%w: start service: %v", ErrModelUnavailable, err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)

	// The first line tells us whether the model loaded.
	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.kill()
		return fmt.Errorf("%w: service exited during model load: %v", ErrModelUnavailable, err)
	}

	var ready struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &ready); err != nil || !ready.Ready {
		d.kill()
		if ready.Error != "" {
			return fmt.Errorf("%w: %s", ErrModelUnavailable, ready.Error)
		}
		return fmt.Errorf("%w: unexpected handshake %q", ErrModelUnavailable, line)
	}

	d.started = true
	d.log.Info().Str("script", scriptPath).Str("python", pythonPath).Msg("face model loaded")

	return nil
}

// reset drops a broken service so the next call restarts it.
func (d *MediaPipeDetector) reset() {
	d.log.Warn().Msg("service pipe broken, restarting on next frame")
	d.kill()
}

func (d *MediaPipeDetector) kill() {
	if d.stdin != nil {
		d.stdin.Close()
	}
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
		d.cmd.Wait()
	}
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func findServiceScript(override string) string {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override
		}
		return ""
	}

	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".kathakali", "scripts", serviceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".kathakali/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
