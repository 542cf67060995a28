package avatar

import (
	"slices"

	"github.com/ayusman/kathakali/internal/detector"
	"github.com/ayusman/kathakali/internal/rig"
)

// MeshPose is the morph weights of one mesh, indexed like the mesh's
// morph targets.
type MeshPose struct {
	Name    string    `json:"name"`
	Weights []float64 `json:"weights"`
}

// BonePose is a bone rotation as Euler angles and as an (x, y, z, w)
// quaternion.
type BonePose struct {
	Euler      rig.Rotation `json:"euler"`
	Quaternion [4]float64   `json:"quaternion"`
}

// Pose is one rendered frame of the avatar, broadcast to browser clients.
type Pose struct {
	Sequence    uint64                `json:"seq"`
	TimestampMs int64                 `json:"ts"`
	Tracking    bool                  `json:"tracking"`
	Meshes      []MeshPose            `json:"meshes"`
	Bones       map[rig.Bone]BonePose `json:"bones"`
	Landmarks   []detector.Point3D    `json:"landmarks,omitempty"`
}

// Pose copies the current weights and bone rotations into a new Pose.
func (m *Model) Pose() *Pose {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &Pose{
		Meshes: make([]MeshPose, len(m.meshes)),
		Bones:  make(map[rig.Bone]BonePose, len(m.rotations)),
	}
	for i, ms := range m.meshes {
		p.Meshes[i] = MeshPose{Name: ms.name, Weights: slices.Clone(ms.weights)}
	}
	for bone, r := range m.rotations {
		q := r.Quat()
		p.Bones[bone] = BonePose{
			Euler:      r,
			Quaternion: [4]float64{q.V[0], q.V[1], q.V[2], q.W},
		}
	}
	return p
}

// Weight returns the current weight of a channel by name, read from the
// first mesh bound to it.
func (m *Model) Weight(channel string) (float64, bool) {
	slot, ok := m.channels[channel]
	if !ok || len(m.bindings[slot]) == 0 {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bindings[slot][0]
	return m.meshes[b.mesh].weights[b.target], true
}

// BoneRotation returns the last rotation written to bone.
func (m *Model) BoneRotation(bone rig.Bone) (rig.Rotation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rotations[bone]
	return r, ok
}
