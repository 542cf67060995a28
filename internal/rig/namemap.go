package rig

import (
	"maps"
	"slices"
)

// ARKitNames are the 52 blendshape names reported by the face model and
// exposed by ARKit-compatible avatars.
var ARKitNames = [...]string{
	"browDownLeft",
	"browDownRight",
	"browInnerUp",
	"browOuterUpLeft",
	"browOuterUpRight",
	"cheekPuff",
	"cheekSquintLeft",
	"cheekSquintRight",
	"eyeBlinkLeft",
	"eyeBlinkRight",
	"eyeLookDownLeft",
	"eyeLookDownRight",
	"eyeLookInLeft",
	"eyeLookInRight",
	"eyeLookOutLeft",
	"eyeLookOutRight",
	"eyeLookUpLeft",
	"eyeLookUpRight",
	"eyeSquintLeft",
	"eyeSquintRight",
	"eyeWideLeft",
	"eyeWideRight",
	"jawForward",
	"jawLeft",
	"jawOpen",
	"jawRight",
	"mouthClose",
	"mouthDimpleLeft",
	"mouthDimpleRight",
	"mouthFrownLeft",
	"mouthFrownRight",
	"mouthFunnel",
	"mouthLeft",
	"mouthLowerDownLeft",
	"mouthLowerDownRight",
	"mouthPressLeft",
	"mouthPressRight",
	"mouthPucker",
	"mouthRight",
	"mouthRollLower",
	"mouthRollUpper",
	"mouthShrugLower",
	"mouthShrugUpper",
	"mouthSmileLeft",
	"mouthSmileRight",
	"mouthStretchLeft",
	"mouthStretchRight",
	"mouthUpperUpLeft",
	"mouthUpperUpRight",
	"noseSneerLeft",
	"noseSneerRight",
	"tongueOut",
}

var arkitSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(ARKitNames))
	for _, name := range ARKitNames {
		set[name] = struct{}{}
	}
	return set
}()

// IsARKitName reports whether name is one of the 52 standard blendshapes.
func IsARKitName(name string) bool {
	_, ok := arkitSet[name]
	return ok
}

// NameMap translates detector category names to avatar channel names.
// Names without an override map to themselves. A NameMap is immutable;
// build a new one to change the mapping.
type NameMap struct {
	overrides map[string]string
}

// DefaultNameMap returns the identity mapping.
func DefaultNameMap() *NameMap {
	return &NameMap{}
}

// NewNameMap returns a mapping with the given overrides applied on top of
// identity. An override to the empty string drops the source name.
func NewNameMap(overrides map[string]string) *NameMap {
	return &NameMap{overrides: maps.Clone(overrides)}
}

// Resolve returns the channel name for a detector category name.
func (m *NameMap) Resolve(source string) string {
	if m == nil {
		return source
	}
	if target, ok := m.overrides[source]; ok {
		return target
	}
	return source
}

// Overrides returns a copy of the non-identity entries.
func (m *NameMap) Overrides() map[string]string {
	if m == nil || m.overrides == nil {
		return map[string]string{}
	}
	return maps.Clone(m.overrides)
}

// Merge returns a new NameMap with extra layered over m's overrides.
func (m *NameMap) Merge(extra map[string]string) *NameMap {
	merged := m.Overrides()
	maps.Copy(merged, extra)
	return &NameMap{overrides: merged}
}

// Sources inverts the mapping over the standard names and every overridden
// name. It returns channel -> sorted detector names that drive it.
func (m *NameMap) Sources() map[string][]string {
	candidates := slices.Clone(ARKitNames[:])
	for source := range m.Overrides() {
		if !IsARKitName(source) {
			candidates = append(candidates, source)
		}
	}

	out := make(map[string][]string)
	for _, source := range candidates {
		if target := m.Resolve(source); target != "" {
			out[target] = append(out[target], source)
		}
	}
	for _, list := range out {
		slices.Sort(list)
	}
	return out
}
