// Package fixtures holds recorded face detection results used by tests
// across the module.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/kathakali/internal/detector"
)

//go:embed faces/*.json
var facesFS embed.FS

// LoadResult loads a single recorded detection result by name, without the
// .json extension.
func LoadResult(name string) (*detector.Result, error) {
	data, err := facesFS.ReadFile("faces/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load result %s: %w", name, err)
	}

	var result detector.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", name, err)
	}
	return &result, nil
}

// LoadSequence loads a recorded run of detection results in capture order.
func LoadSequence(name string) ([]*detector.Result, error) {
	data, err := facesFS.ReadFile("faces/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}

	var results []*detector.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}
	return results, nil
}

// Names lists the available single-result fixtures.
func Names() []string {
	entries, _ := facesFS.ReadDir("faces")
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if name == "session.json" {
			continue
		}
		names = append(names, name[:len(name)-len(".json")])
	}
	return names
}

// BlankFrame returns a solid grey BGR frame of the given size. The caller
// must Close it.
func BlankFrame(width, height int) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), height, width, gocv.MatTypeCV8UC3)
	return &mat
}

// FaceFrame returns a frame with a bright ellipse roughly where a face would
// sit, offset horizontally by dx pixels. Consecutive frames with different
// offsets register as motion.
func FaceFrame(width, height, dx int) *gocv.Mat {
	frame := BlankFrame(width, height)
	gocv.Ellipse(frame, image.Pt(width/2+dx, height/2), image.Pt(width/6, height/4), 0, 0, 360,
		color.RGBA{R: 220, G: 190, B: 170, A: 255}, -1)
	return frame
}
