package deform

import (
	"maps"
	"slices"

	"github.com/gekko3d/deform/rt/vex"
	"github.com/go-gl/mathgl/mgl32"
)

// AttributeMap holds per-instance uniform overrides, keyed by attribute
// name. Every program of the instance sees them as extra inputs.
type AttributeMap struct {
	Floats map[string]float32
	Vec3s  map[string]mgl32.Vec3
	Vec4s  map[string]mgl32.Vec4
	Ints   map[string]int32
}

func NewAttributeMap() AttributeMap {
	return AttributeMap{
		Floats: make(map[string]float32),
		Vec3s:  make(map[string]mgl32.Vec3),
		Vec4s:  make(map[string]mgl32.Vec4),
		Ints:   make(map[string]int32),
	}
}

func (m AttributeMap) Len() int {
	return len(m.Floats) + len(m.Vec3s) + len(m.Vec4s) + len(m.Ints)
}

// Has reports whether any of the four maps holds key.
func (m AttributeMap) Has(key string) bool {
	_, f := m.Floats[key]
	_, v3 := m.Vec3s[key]
	_, v4 := m.Vec4s[key]
	_, i := m.Ints[key]
	return f || v3 || v4 || i
}

func (m AttributeMap) Clone() AttributeMap {
	return AttributeMap{
		Floats: maps.Clone(m.Floats),
		Vec3s:  maps.Clone(m.Vec3s),
		Vec4s:  maps.Clone(m.Vec4s),
		Ints:   maps.Clone(m.Ints),
	}
}

// Uniforms returns the map as program inputs: floats, then ints, then
// vectors and four-vectors, each group sorted by name.
func (m AttributeMap) Uniforms() []vex.Value {
	out := make([]vex.Value, 0, m.Len())
	for _, k := range slices.Sorted(maps.Keys(m.Floats)) {
		out = append(out, vex.UniformFloat(k, m.Floats[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(m.Ints)) {
		out = append(out, vex.UniformInt(k, m.Ints[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(m.Vec3s)) {
		out = append(out, vex.UniformVec3(k, m.Vec3s[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(m.Vec4s)) {
		out = append(out, vex.UniformVec4(k, m.Vec4s[k]))
	}
	return out
}
