package rig

import (
	"cmp"
	"slices"
)

// ChannelTable maps a morph channel name to its influence slot.
// It is owned by the animation target and read-only once the model loads.
type ChannelTable map[string]int

// Names returns the channel names ordered by slot.
func (t ChannelTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(t[a], t[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

// Bone names a rotatable joint of the avatar.
type Bone string

const (
	BoneHead     Bone = "Head"
	BoneLeftEye  Bone = "LeftEye"
	BoneRightEye Bone = "RightEye"
)

// Bones lists every bone the rig drives, in application order.
var Bones = []Bone{BoneHead, BoneLeftEye, BoneRightEye}

// Target is the animation target a FrameState is applied to.
type Target interface {
	// Channels returns the morph channel table.
	Channels() ChannelTable

	// SetInfluence sets the influence of a morph channel slot.
	SetInfluence(slot int, value float64)

	// SetBoneRotation sets the local rotation of a bone.
	SetBoneRotation(bone Bone, r Rotation)
}
