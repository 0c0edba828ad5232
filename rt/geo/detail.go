// Package geo is the geometry container the deformer operates on: points,
// polygon primitives, the vertices that link them, and per-owner attribute
// tables.
package geo

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// PositionAttrib is the point attribute every detail carries.
const PositionAttrib = "P"

var ErrAttributeExists = errors.New("attribute already exists with a different type")

// Detail is a polygon soup with attributes on points, primitives,
// vertices and the detail itself. Element offsets equal their indices.
type Detail struct {
	numPoints   int
	vertexPoint []int   // vertex -> point
	prims       [][]int // primitive -> vertices
	attribs     [ownerCount]attributeDict
}

func NewDetail() *Detail {
	d := &Detail{}
	d.attribs[OwnerPoint].add(newAttribute(PositionAttrib, OwnerPoint, StorageFloat, 3, Precision32, 0))
	return d
}

func (d *Detail) NumPoints() int     { return d.numPoints }
func (d *Detail) NumPrimitives() int { return len(d.prims) }
func (d *Detail) NumVertices() int   { return len(d.vertexPoint) }

// NumElements returns the element count for owner. The detail owner always has one element.
func (d *Detail) NumElements(owner Owner) int {
	switch owner {
	case OwnerPoint:
		return d.numPoints
	case OwnerPrimitive:
		return len(d.prims)
	case OwnerVertex:
		return len(d.vertexPoint)
	case OwnerDetail:
		return 1
	}
	return 0
}

// AddPoint appends a point at pos and returns its index.
func (d *Detail) AddPoint(pos mgl32.Vec3) int {
	idx := d.numPoints
	d.numPoints++
	d.attribs[OwnerPoint].resize(d.numPoints)
	d.attribs[OwnerPoint].find(PositionAttrib).SetVec3(idx, pos)
	return idx
}

// AddPolygon appends a primitive whose vertices reference points, in order.
func (d *Detail) AddPolygon(points ...int) (int, error) {
	for _, p := range points {
		if p < 0 || p >= d.numPoints {
			return -1, fmt.Errorf("polygon references point %d, detail has %d points", p, d.numPoints)
		}
	}
	verts := make([]int, len(points))
	for i, p := range points {
		verts[i] = len(d.vertexPoint)
		d.vertexPoint = append(d.vertexPoint, p)
	}
	d.prims = append(d.prims, verts)
	d.attribs[OwnerVertex].resize(len(d.vertexPoint))
	d.attribs[OwnerPrimitive].resize(len(d.prims))
	return len(d.prims) - 1, nil
}

func (d *Detail) VertexPoint(vertex int) int { return d.vertexPoint[vertex] }

// PrimitiveVertices returns the vertex indices of prim. The slice must not be modified.
func (d *Detail) PrimitiveVertices(prim int) []int { return d.prims[prim] }

// PrimitivePoints returns the point indices of prim in vertex order.
func (d *Detail) PrimitivePoints(prim int) []int {
	verts := d.prims[prim]
	pts := make([]int, len(verts))
	for i, v := range verts {
		pts[i] = d.vertexPoint[v]
	}
	return pts
}

// Attribs returns the attributes of owner in creation order.
func (d *Detail) Attribs(owner Owner) []*Attribute {
	if owner < 0 || owner >= ownerCount {
		return nil
	}
	return d.attribs[owner].order
}

func (d *Detail) FindAttribute(owner Owner, name string) *Attribute {
	if owner < 0 || owner >= ownerCount {
		return nil
	}
	return d.attribs[owner].find(name)
}

// Position returns the "P" attribute.
func (d *Detail) Position() *Attribute {
	return d.attribs[OwnerPoint].find(PositionAttrib)
}

// AddFloatTuple creates a float attribute, or returns the existing one if
// it already has a compatible layout.
func (d *Detail) AddFloatTuple(owner Owner, name string, size int) (*Attribute, error) {
	return d.AddAttribute(owner, name, StorageFloat, size, Precision32)
}

func (d *Detail) AddIntTuple(owner Owner, name string, size int) (*Attribute, error) {
	return d.AddAttribute(owner, name, StorageInt, size, Precision32)
}

func (d *Detail) AddStringAttribute(owner Owner, name string) (*Attribute, error) {
	return d.AddAttribute(owner, name, StorageString, 1, Precision32)
}

// AddAttribute creates an attribute with an explicit storage layout.
func (d *Detail) AddAttribute(owner Owner, name string, class StorageClass, size int, precision Precision) (*Attribute, error) {
	if owner < 0 || owner >= ownerCount {
		return nil, fmt.Errorf("invalid owner %v", owner)
	}
	if name == "" {
		return nil, errors.New("attribute name is empty")
	}
	if a := d.attribs[owner].find(name); a != nil {
		if a.class != class || a.tupleSize != size {
			return nil, fmt.Errorf("%w: %s %s", ErrAttributeExists, owner, name)
		}
		return a, nil
	}
	a := newAttribute(name, owner, class, size, precision, d.NumElements(owner))
	d.attribs[owner].add(a)
	return a, nil
}

// Translate moves every point by offset.
func (d *Detail) Translate(offset mgl32.Vec3) {
	p := d.Position()
	for i := 0; i < d.numPoints; i++ {
		p.SetVec3(i, p.Vec3(i).Add(offset))
	}
}

// BBox returns the bounds of all point positions.
func (d *Detail) BBox() Box {
	box := EmptyBox()
	p := d.Position()
	for i := 0; i < d.numPoints; i++ {
		box.EnlargePoint(p.Vec3(i))
	}
	return box
}

// Clone returns a deep copy.
func (d *Detail) Clone() *Detail {
	c := &Detail{
		numPoints:   d.numPoints,
		vertexPoint: append([]int(nil), d.vertexPoint...),
		prims:       make([][]int, len(d.prims)),
	}
	for i, p := range d.prims {
		c.prims[i] = append([]int(nil), p...)
	}
	for o := range d.attribs {
		c.attribs[o] = d.attribs[o].clone()
	}
	return c
}
