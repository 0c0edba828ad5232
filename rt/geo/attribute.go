package geo

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

// Owner is the element class an attribute is stored on.
type Owner int

const (
	OwnerPoint Owner = iota
	OwnerPrimitive
	OwnerVertex
	OwnerDetail
	ownerCount
)

func (o Owner) String() string {
	switch o {
	case OwnerPoint:
		return "point"
	case OwnerPrimitive:
		return "primitive"
	case OwnerVertex:
		return "vertex"
	case OwnerDetail:
		return "detail"
	}
	return fmt.Sprintf("owner(%d)", int(o))
}

type StorageClass int

const (
	StorageFloat StorageClass = iota
	StorageInt
	StorageString
)

func (c StorageClass) String() string {
	switch c {
	case StorageFloat:
		return "float"
	case StorageInt:
		return "int"
	case StorageString:
		return "string"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Precision is the storage width in bits of numeric attribute components.
type Precision int

const (
	Precision16 Precision = 16
	Precision32 Precision = 32
	Precision64 Precision = 64
)

// Attribute is a named, typed column of values for one owner class.
// Numeric components are held as float64/int64 and rounded to Precision
// on every write, so reads always observe the stored width.
type Attribute struct {
	name      string
	owner     Owner
	class     StorageClass
	tupleSize int
	precision Precision

	floats  []float64
	ints    []int64
	strings []string
}

func newAttribute(name string, owner Owner, class StorageClass, tupleSize int, precision Precision, count int) *Attribute {
	if tupleSize < 1 {
		tupleSize = 1
	}
	switch precision {
	case Precision16, Precision32, Precision64:
	default:
		precision = Precision32
	}
	a := &Attribute{
		name:      name,
		owner:     owner,
		class:     class,
		tupleSize: tupleSize,
		precision: precision,
	}
	a.resize(count)
	return a
}

func (a *Attribute) Name() string               { return a.name }
func (a *Attribute) Owner() Owner               { return a.owner }
func (a *Attribute) StorageClass() StorageClass { return a.class }
func (a *Attribute) TupleSize() int             { return a.tupleSize }
func (a *Attribute) Precision() Precision       { return a.precision }

// Len returns the number of elements the attribute holds.
func (a *Attribute) Len() int {
	switch a.class {
	case StorageFloat:
		return len(a.floats) / a.tupleSize
	case StorageInt:
		return len(a.ints) / a.tupleSize
	default:
		return len(a.strings)
	}
}

func (a *Attribute) resize(count int) {
	switch a.class {
	case StorageFloat:
		n := count * a.tupleSize
		if n <= len(a.floats) {
			a.floats = a.floats[:n]
			return
		}
		a.floats = append(a.floats, make([]float64, n-len(a.floats))...)
	case StorageInt:
		n := count * a.tupleSize
		if n <= len(a.ints) {
			a.ints = a.ints[:n]
			return
		}
		a.ints = append(a.ints, make([]int64, n-len(a.ints))...)
	default:
		if count <= len(a.strings) {
			a.strings = a.strings[:count]
			return
		}
		a.strings = append(a.strings, make([]string, count-len(a.strings))...)
	}
}

func (a *Attribute) clone() *Attribute {
	c := *a
	c.floats = append([]float64(nil), a.floats...)
	c.ints = append([]int64(nil), a.ints...)
	c.strings = append([]string(nil), a.strings...)
	return &c
}

func (a *Attribute) quantizeFloat(v float64) float64 {
	switch a.precision {
	case Precision16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case Precision32:
		return float64(float32(v))
	}
	return v
}

func (a *Attribute) quantizeInt(v int64) int64 {
	switch a.precision {
	case Precision16:
		return int64(int16(v))
	case Precision32:
		return int64(int32(v))
	}
	return v
}

// Float returns component comp of element i. Missing components read 0.
func (a *Attribute) Float(i, comp int) float64 {
	if comp >= a.tupleSize {
		return 0
	}
	switch a.class {
	case StorageFloat:
		return a.floats[i*a.tupleSize+comp]
	case StorageInt:
		return float64(a.ints[i*a.tupleSize+comp])
	}
	return 0
}

// SetFloat writes component comp of element i, rounding to the storage precision.
func (a *Attribute) SetFloat(i, comp int, v float64) {
	if comp >= a.tupleSize {
		return
	}
	switch a.class {
	case StorageFloat:
		a.floats[i*a.tupleSize+comp] = a.quantizeFloat(v)
	case StorageInt:
		a.ints[i*a.tupleSize+comp] = a.quantizeInt(int64(v))
	}
}

func (a *Attribute) Int(i, comp int) int64 {
	if comp >= a.tupleSize {
		return 0
	}
	switch a.class {
	case StorageInt:
		return a.ints[i*a.tupleSize+comp]
	case StorageFloat:
		return int64(a.floats[i*a.tupleSize+comp])
	}
	return 0
}

func (a *Attribute) SetInt(i, comp int, v int64) {
	if comp >= a.tupleSize {
		return
	}
	switch a.class {
	case StorageInt:
		a.ints[i*a.tupleSize+comp] = a.quantizeInt(v)
	case StorageFloat:
		a.floats[i*a.tupleSize+comp] = a.quantizeFloat(float64(v))
	}
}

func (a *Attribute) Vec3(i int) mgl32.Vec3 {
	return mgl32.Vec3{float32(a.Float(i, 0)), float32(a.Float(i, 1)), float32(a.Float(i, 2))}
}

func (a *Attribute) SetVec3(i int, v mgl32.Vec3) {
	for c := 0; c < 3; c++ {
		a.SetFloat(i, c, float64(v[c]))
	}
}

func (a *Attribute) Vec4(i int) mgl32.Vec4 {
	return mgl32.Vec4{float32(a.Float(i, 0)), float32(a.Float(i, 1)), float32(a.Float(i, 2)), float32(a.Float(i, 3))}
}

func (a *Attribute) SetVec4(i int, v mgl32.Vec4) {
	for c := 0; c < 4; c++ {
		a.SetFloat(i, c, float64(v[c]))
	}
}

func (a *Attribute) Str(i int) string {
	if a.class != StorageString {
		return ""
	}
	return a.strings[i]
}

func (a *Attribute) SetStr(i int, s string) {
	if a.class != StorageString {
		return
	}
	a.strings[i] = s
}

// attributeDict keeps attributes of one owner in creation order.
type attributeDict struct {
	order []*Attribute
	index map[string]int
}

func (d *attributeDict) find(name string) *Attribute {
	if i, ok := d.index[name]; ok {
		return d.order[i]
	}
	return nil
}

func (d *attributeDict) add(a *Attribute) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	d.index[a.name] = len(d.order)
	d.order = append(d.order, a)
}

func (d *attributeDict) resize(count int) {
	for _, a := range d.order {
		a.resize(count)
	}
}

func (d *attributeDict) clone() attributeDict {
	c := attributeDict{index: make(map[string]int, len(d.order))}
	for _, a := range d.order {
		c.add(a.clone())
	}
	return c
}
