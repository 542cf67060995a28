package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate constants
const (
	// AnalysisWidth is the width frames are downscaled to before differencing.
	AnalysisWidth = 160
	// GaussianBlurSize is the kernel size for Gaussian blur at analysis size.
	GaussianBlurSize = 5
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 12
)

// MotionGate decides whether a frame differs enough from the last analyzed
// frame to be worth running face detection on.
//
// Unlike plain frame differencing, the baseline only advances when a frame
// is let through, so slow drift accumulates until it crosses the threshold.
// After maxSkip consecutive rejected frames the next one is let through
// regardless.
type MotionGate struct {
	threshold   float64
	maxSkip     int
	skipped     int
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionGate creates a MotionGate. threshold is the percentage of pixels
// that must change; maxSkip <= 0 never forces a frame through.
func NewMotionGate(threshold float64, maxSkip int) *MotionGate {
	return &MotionGate{
		threshold: threshold,
		maxSkip:   maxSkip,
		prevGray:  gocv.NewMat(),
	}
}

// Allow reports whether frame should be analyzed and the percentage of
// pixels that changed since the last analyzed frame. The first frame is
// always allowed.
func (g *MotionGate) Allow(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := g.prepare(frame)
	defer gray.Close()

	if !g.initialized {
		gray.CopyTo(&g.prevGray)
		g.initialized = true
		g.skipped = 0
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changePercent := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	if changePercent <= g.threshold && (g.maxSkip <= 0 || g.skipped < g.maxSkip) {
		g.skipped++
		return false, changePercent
	}

	gray.CopyTo(&g.prevGray)
	g.skipped = 0
	return true, changePercent
}

// prepare converts frame to a small blurred grayscale image.
func (g *MotionGate) prepare(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if gray.Cols() > AnalysisWidth {
		height := gray.Rows() * AnalysisWidth / gray.Cols()
		small := gocv.NewMat()
		gocv.Resize(gray, &small, image.Point{X: AnalysisWidth, Y: max(height, 1)}, 0, 0, gocv.InterpolationArea)
		gray.Close()
		gray = small
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)
	gray.Close()
	return blurred
}

// Reset drops the baseline so the next frame is let through.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.prevGray.Empty() {
		g.prevGray.Close()
		g.prevGray = gocv.NewMat()
	}
	g.initialized = false
	g.skipped = 0
}

// Close releases resources used by the gate.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prevGray.Close()
	g.prevGray = gocv.NewMat()
	g.initialized = false
}

// SetThreshold sets the change percentage a frame must exceed.
// Values less than or equal to 0 are ignored.
func (g *MotionGate) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.threshold = threshold
}
