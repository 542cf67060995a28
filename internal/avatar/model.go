// Package avatar loads the animation target from a glTF asset and keeps the
// per-frame morph weights and bone rotations the browser copies onto its
// scene.
package avatar

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/qmuntal/gltf"

	"github.com/ayusman/kathakali/internal/rig"
)

// ErrNoMorphTargets is returned when an asset has no named morph targets.
var ErrNoMorphTargets = errors.New("avatar has no named morph targets")

// binding points a channel slot at one morph target of one mesh.
type binding struct {
	mesh   int
	target int
}

type meshState struct {
	name    string
	weights []float64
}

// Model is a headless animation target built from a glTF document.
//
// Morph target names are read from each mesh's extras.targetNames. A name
// shared by several meshes (face, teeth, tongue) is one channel that writes
// to all of them. Slots are assigned in order of first appearance.
type Model struct {
	name     string
	channels rig.ChannelTable
	bindings [][]binding
	bones    map[rig.Bone]string

	mu        sync.Mutex
	meshes    []meshState
	rotations map[rig.Bone]rig.Rotation
}

// LoadModel opens a .gltf or .glb file.
func LoadModel(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	m, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// FromDocument builds a Model from a parsed glTF document.
func FromDocument(doc *gltf.Document) (*Model, error) {
	m := &Model{
		channels:  rig.ChannelTable{},
		bones:     make(map[rig.Bone]string),
		rotations: make(map[rig.Bone]rig.Rotation),
	}

	for _, gm := range doc.Meshes {
		if gm == nil {
			continue
		}
		count := 0
		for _, prim := range gm.Primitives {
			count = max(count, len(prim.Targets))
		}
		if count == 0 {
			continue
		}

		weights := make([]float64, count)
		copy(weights, gm.Weights)
		meshIdx := len(m.meshes)
		m.meshes = append(m.meshes, meshState{name: gm.Name, weights: weights})

		for target, name := range targetNames(gm.Extras) {
			if target >= count || name == "" {
				continue
			}
			slot, ok := m.channels[name]
			if !ok {
				slot = len(m.bindings)
				m.channels[name] = slot
				m.bindings = append(m.bindings, nil)
			}
			m.bindings[slot] = append(m.bindings[slot], binding{mesh: meshIdx, target: target})
		}
	}

	if len(m.channels) == 0 {
		return nil, ErrNoMorphTargets
	}

	for _, node := range doc.Nodes {
		if node == nil {
			continue
		}
		if bone, ok := matchBone(node.Name); ok {
			if _, seen := m.bones[bone]; !seen {
				m.bones[bone] = node.Name
			}
		}
	}

	if len(doc.Scenes) > 0 && doc.Scenes[0] != nil {
		m.name = doc.Scenes[0].Name
	}

	return m, nil
}

// targetNames reads the conventional extras.targetNames array.
func targetNames(extras any) []string {
	fields, ok := extras.(map[string]any)
	if !ok {
		return nil
	}
	switch names := fields["targetNames"].(type) {
	case []string:
		return names
	case []any:
		out := make([]string, len(names))
		for i, n := range names {
			if s, ok := n.(string); ok {
				out[i] = s
			}
		}
		return out
	}
	return nil
}

// matchBone maps a node name to a rig bone. It accepts the plain names and
// the same names behind an exporter prefix such as "mixamorig:" or "Armature_".
func matchBone(nodeName string) (rig.Bone, bool) {
	name := strings.ToLower(nodeName)
	if i := strings.LastIndexAny(name, ":|"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimPrefix(name, "mixamorig")
	name = strings.TrimPrefix(name, "armature_")

	for _, bone := range rig.Bones {
		if name == strings.ToLower(string(bone)) {
			return bone, true
		}
	}
	return "", false
}

// ARKitModel returns a model with one mesh exposing the 52 ARKit channels in
// their canonical order and all three bones. It stands in for an asset when
// none is configured; the browser resolves channels by name.
func ARKitModel() *Model {
	m := &Model{
		name:      "arkit",
		channels:  make(rig.ChannelTable, len(rig.ARKitNames)),
		bindings:  make([][]binding, len(rig.ARKitNames)),
		bones:     make(map[rig.Bone]string, len(rig.Bones)),
		meshes:    []meshState{{name: "Face", weights: make([]float64, len(rig.ARKitNames))}},
		rotations: make(map[rig.Bone]rig.Rotation),
	}
	for i, name := range rig.ARKitNames {
		m.channels[name] = i
		m.bindings[i] = []binding{{mesh: 0, target: i}}
	}
	for _, bone := range rig.Bones {
		m.bones[bone] = string(bone)
	}
	return m
}

// Name returns the first scene's name, if any.
func (m *Model) Name() string {
	return m.name
}

// Channels implements rig.Target.
func (m *Model) Channels() rig.ChannelTable {
	return m.channels
}

// SetInfluence implements rig.Target.
func (m *Model) SetInfluence(slot int, value float64) {
	if slot < 0 || slot >= len(m.bindings) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bindings[slot] {
		m.meshes[b.mesh].weights[b.target] = value
	}
}

// SetBoneRotation implements rig.Target. Bones the asset does not have are
// ignored.
func (m *Model) SetBoneRotation(bone rig.Bone, r rig.Rotation) {
	if _, ok := m.bones[bone]; !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotations[bone] = r
}

// BoneNode returns the node name bound to bone.
func (m *Model) BoneNode(bone rig.Bone) (string, bool) {
	name, ok := m.bones[bone]
	return name, ok
}

// Meshes returns the names of meshes that carry morph targets.
func (m *Model) Meshes() []string {
	names := make([]string, len(m.meshes))
	for i, ms := range m.meshes {
		names[i] = ms.name
	}
	return names
}

// Targets returns how many meshes each channel writes to, by channel name.
func (m *Model) Targets() map[string]int {
	out := make(map[string]int, len(m.channels))
	for name, slot := range m.channels {
		out[name] = len(m.bindings[slot])
	}
	return out
}

var _ rig.Target = (*Model)(nil)
