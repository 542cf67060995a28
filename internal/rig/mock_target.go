package rig

import (
	"maps"
	"sync"
)

// MockTarget is an in-memory Target for tests.
// It records the last value written to each slot and bone.
type MockTarget struct {
	mu         sync.Mutex
	channels   ChannelTable
	influences map[int]float64
	bones      map[Bone]Rotation
	writes     int
}

// NewMockTarget creates a MockTarget exposing channels.
func NewMockTarget(channels ChannelTable) *MockTarget {
	return &MockTarget{
		channels:   channels,
		influences: make(map[int]float64),
		bones:      make(map[Bone]Rotation),
	}
}

func (t *MockTarget) Channels() ChannelTable {
	return t.channels
}

func (t *MockTarget) SetInfluence(slot int, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.influences[slot] = value
	t.writes++
}

func (t *MockTarget) SetBoneRotation(bone Bone, r Rotation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bones[bone] = r
}

// Influence returns the value last written to slot and whether it was set.
func (t *MockTarget) Influence(slot int) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.influences[slot]
	return v, ok
}

// Influences returns a copy of every written slot.
func (t *MockTarget) Influences() map[int]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.influences)
}

// BoneRotation returns the rotation last written to bone.
func (t *MockTarget) BoneRotation(bone Bone) (Rotation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.bones[bone]
	return r, ok
}

// Writes returns the number of SetInfluence calls.
func (t *MockTarget) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}
