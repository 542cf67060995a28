package rig

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// Axis selects a rotation component.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// ParseAxis parses "x", "y" or "z".
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("invalid axis %q", s)
	}
}

func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(text []byte) error {
	parsed, err := ParseAxis(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (r Rotation) with(axis Axis, delta float64) Rotation {
	switch axis {
	case AxisX:
		r.X += delta
	case AxisY:
		r.Y += delta
	case AxisZ:
		r.Z += delta
	}
	return r
}

// Term is one weighted blendshape contributing to an Expression.
type Term struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Expression derives a bone rotation from named blendshapes:
// Gain * sum(Weight * intensity) radians about Axis of Bone.
type Expression struct {
	Name  string  `json:"name"`
	Bone  Bone    `json:"bone"`
	Axis  Axis    `json:"axis"`
	Terms []Term  `json:"terms"`
	Gain  float64 `json:"gain"`
}

// Evaluate returns the expression's angle for state.
func (e Expression) Evaluate(state *FrameState) float64 {
	var sum float64
	for _, t := range e.Terms {
		sum += t.Weight * Clamp01(state.Intensity(t.Name))
	}
	return sum * e.Gain
}

// DefaultExpressions returns the eye expressions used when none are
// configured. Looking right turns both eyes the same way; looking in with
// both eyes converges them. None of them touch the head, so the head bone
// stays exactly the measured pose.
func DefaultExpressions() []Expression {
	const (
		eyeYawGain   = 0.35
		eyePitchGain = 0.25
	)
	return []Expression{
		{
			Name: "rightEyeYaw", Bone: BoneRightEye, Axis: AxisY, Gain: eyeYawGain,
			Terms: []Term{{"eyeLookOutRight", 1}, {"eyeLookInRight", -1}},
		},
		{
			Name: "leftEyeYaw", Bone: BoneLeftEye, Axis: AxisY, Gain: eyeYawGain,
			Terms: []Term{{"eyeLookInLeft", 1}, {"eyeLookOutLeft", -1}},
		},
		{
			Name: "rightEyePitch", Bone: BoneRightEye, Axis: AxisX, Gain: eyePitchGain,
			Terms: []Term{{"eyeLookDownRight", 1}, {"eyeLookUpRight", -1}},
		},
		{
			Name: "leftEyePitch", Bone: BoneLeftEye, Axis: AxisX, Gain: eyePitchGain,
			Terms: []Term{{"eyeLookDownLeft", 1}, {"eyeLookUpLeft", -1}},
		},
	}
}

// BrowTiltExpression pitches the head with the brows. It is layered on top
// of the measured head rotation, so it is opt-in.
func BrowTiltExpression() Expression {
	const browTiltGain = 0.06
	return Expression{
		Name: "browTilt", Bone: BoneHead, Axis: AxisX, Gain: browTiltGain,
		Terms: []Term{{"browInnerUp", 1}, {"browDownLeft", -0.5}, {"browDownRight", -0.5}},
	}
}

// Clamp01 limits v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Applier writes frame states onto an animation target.
// It is immutable and safe for concurrent use.
type Applier struct {
	names       *NameMap
	expressions []Expression
}

// NewApplier creates an Applier. A nil names uses the identity mapping and
// nil expressions disables derived bone motion.
func NewApplier(names *NameMap, expressions []Expression) *Applier {
	if names == nil {
		names = DefaultNameMap()
	}
	return &Applier{
		names:       names,
		expressions: slices.Clone(expressions),
	}
}

// Names returns the applier's name mapping.
func (a *Applier) Names() *NameMap {
	return a.names
}

// Expressions returns a copy of the derived expressions.
func (a *Applier) Expressions() []Expression {
	return slices.Clone(a.expressions)
}

// Apply copies state onto target.
//
// Every blendshape whose resolved name exists in the channel table is
// written clamped to [0,1]; other names are skipped and channels the state
// does not mention are left as they are. The head takes the measured
// rotation unchanged unless an expression targets the head, in which case
// that expression is added on top. Eye bones are only written when an
// expression drives them. Applying the same state twice has the same effect
// as applying it once.
func (a *Applier) Apply(state *FrameState, target Target) {
	if state == nil || target == nil {
		return
	}

	channels := target.Channels()
	// Sorted so that names resolving to the same channel always land in the
	// same order.
	for _, name := range slices.Sorted(maps.Keys(state.Blendshapes)) {
		slot, ok := channels[a.names.Resolve(name)]
		if !ok {
			continue
		}
		target.SetInfluence(slot, Clamp01(state.Blendshapes[name]))
	}

	bones := map[Bone]Rotation{BoneHead: state.HeadRotation}
	for _, e := range a.expressions {
		bones[e.Bone] = bones[e.Bone].with(e.Axis, e.Evaluate(state))
	}
	for _, bone := range Bones {
		if r, ok := bones[bone]; ok {
			target.SetBoneRotation(bone, r)
		}
	}
}
