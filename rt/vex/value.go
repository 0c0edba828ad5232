// Package vex is the attribute-program capability driven by the engine:
// programs are Go kernels looked up by name, declare typed parameters,
// and run over N elements at a time against bound buffers.
package vex

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Kind is the value type of a program parameter.
type Kind int

const (
	KindInvalid Kind = iota
	Scalar
	Vector3
	Vector4
	Integer
)

// Width returns the number of components per element.
func (k Kind) Width() int {
	switch k {
	case Scalar, Integer:
		return 1
	case Vector3:
		return 3
	case Vector4:
		return 4
	}
	return 0
}

func (k Kind) IsFloat() bool { return k == Scalar || k == Vector3 || k == Vector4 }

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "float"
	case Vector3:
		return "vector"
	case Vector4:
		return "vector4"
	case Integer:
		return "int"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Role int

const (
	Input Role = iota
	Output
)

func (r Role) String() string {
	if r == Output {
		return "output"
	}
	return "input"
}

// Value is a named, typed buffer bound to a program parameter. Float kinds
// live in Floats, Integer in Ints; Width() components per element.
// A value that is not Varying holds one element that every index reads.
type Value struct {
	Name    string
	Kind    Kind
	Role    Role
	Varying bool
	Export  bool

	Floats []float32
	Ints   []int32
}

func UniformFloat(name string, f float32) Value {
	return Value{Name: name, Kind: Scalar, Floats: []float32{f}}
}

func UniformInt(name string, i int32) Value {
	return Value{Name: name, Kind: Integer, Ints: []int32{i}}
}

func UniformVec3(name string, v mgl32.Vec3) Value {
	return Value{Name: name, Kind: Vector3, Floats: []float32{v[0], v[1], v[2]}}
}

func UniformVec4(name string, v mgl32.Vec4) Value {
	return Value{Name: name, Kind: Vector4, Floats: []float32{v[0], v[1], v[2], v[3]}}
}

// Len returns the number of elements held.
func (v *Value) Len() int {
	w := v.Kind.Width()
	if w == 0 {
		return 0
	}
	if v.Kind == Integer {
		return len(v.Ints)
	}
	return len(v.Floats) / w
}

func (v *Value) index(i int) int {
	if !v.Varying {
		return 0
	}
	return i
}

// Float returns component comp of element i; uniforms broadcast.
func (v *Value) Float(i, comp int) float32 {
	w := v.Kind.Width()
	if comp >= w {
		return 0
	}
	i = v.index(i)
	if v.Kind == Integer {
		if i >= len(v.Ints) {
			return 0
		}
		return float32(v.Ints[i])
	}
	if i*w+comp >= len(v.Floats) {
		return 0
	}
	return v.Floats[i*w+comp]
}

func (v *Value) SetFloat(i, comp int, f float32) {
	w := v.Kind.Width()
	if comp >= w {
		return
	}
	i = v.index(i)
	if v.Kind == Integer {
		v.Ints[i] = int32(f)
		return
	}
	v.Floats[i*w+comp] = f
}

func (v *Value) Int(i int) int32 {
	i = v.index(i)
	if v.Kind != Integer {
		return int32(v.Float(i, 0))
	}
	if i >= len(v.Ints) {
		return 0
	}
	return v.Ints[i]
}

func (v *Value) SetInt(i int, n int32) {
	if v.Kind != Integer {
		v.SetFloat(i, 0, float32(n))
		return
	}
	v.Ints[v.index(i)] = n
}

func (v *Value) Vec3(i int) mgl32.Vec3 {
	return mgl32.Vec3{v.Float(i, 0), v.Float(i, 1), v.Float(i, 2)}
}

func (v *Value) SetVec3(i int, p mgl32.Vec3) {
	for c := 0; c < 3; c++ {
		v.SetFloat(i, c, p[c])
	}
}

func (v *Value) Vec4(i int) mgl32.Vec4 {
	return mgl32.Vec4{v.Float(i, 0), v.Float(i, 1), v.Float(i, 2), v.Float(i, 3)}
}

func (v *Value) SetVec4(i int, p mgl32.Vec4) {
	for c := 0; c < 4; c++ {
		v.SetFloat(i, c, p[c])
	}
}

// Element copies element i of src into element j of v. Both must share a Kind.
func (v *Value) Element(j int, src *Value, i int) {
	if v.Kind == Integer {
		v.SetInt(j, src.Int(i))
		return
	}
	for c := 0; c < v.Kind.Width(); c++ {
		v.SetFloat(j, c, src.Float(i, c))
	}
}

// Alloc sizes the buffer for n varying elements, zeroed.
func (v *Value) Alloc(n int) {
	v.Varying = true
	if v.Kind == Integer {
		v.Ints = make([]int32, n)
		v.Floats = nil
		return
	}
	v.Floats = make([]float32, n*v.Kind.Width())
	v.Ints = nil
}

func (v Value) Clone() Value {
	c := v
	c.Floats = append([]float32(nil), v.Floats...)
	c.Ints = append([]int32(nil), v.Ints...)
	return c
}
