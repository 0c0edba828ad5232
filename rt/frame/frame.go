// Package frame computes per-element tangent frames (tangent, bitangent,
// normal) over polygon geometry.
package frame

import (
	"errors"
	"fmt"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrMissingDetail        = errors.New("frame: no geometry")
	ErrMissingTextureCoords = errors.New("frame: texture coordinates not found")
	ErrCreateAttribute      = errors.New("frame: cannot create attribute")
)

// Style selects how the tangent direction of a polygon is derived.
type Style int

const (
	FirstEdge Style = iota
	TwoEdges
	Centroid
	TextureCoords
	TextureAttrib
)

func (s Style) String() string {
	switch s {
	case FirstEdge:
		return "first-edge"
	case TwoEdges:
		return "two-edges"
	case Centroid:
		return "centroid"
	case TextureCoords:
		return "texture-coords"
	case TextureAttrib:
		return "texture-attrib"
	}
	return fmt.Sprintf("style(%d)", int(s))
}

// Which bits choose the attributes written.
const (
	WriteNormal    = 1 << iota
	WriteTangent
	WriteBitangent
)

// Name slots in Params.Names.
const (
	TangentSlot = iota
	BitangentSlot
	NormalSlot
)

// DefaultUVName is the attribute read by the TextureCoords style.
const DefaultUVName = "uv"

type Params struct {
	Style      Style
	Which      int
	Names      [3]string
	Orthogonal bool
	LeftHanded bool
	UVName     string
	Owner      geo.Owner
}

func DefaultParams() Params {
	return Params{
		Style: FirstEdge,
		Which: WriteNormal,
		Names: [3]string{"tangentu", "tangentv", geo.NormalAttrib},
		Owner: geo.OwnerPoint,
	}
}

// Clone returns an independent copy.
func (p Params) Clone() Params { return p }

type basis struct {
	t, b, n mgl32.Vec3
	ok      bool
}

// Compute writes the frame attributes selected by p.Which onto d.
// Per-primitive frames are averaged onto points when p.Owner is
// OwnerPoint and copied to every vertex for OwnerVertex.
func Compute(d *geo.Detail, p Params) error {
	if d == nil {
		return ErrMissingDetail
	}
	switch p.Owner {
	case geo.OwnerPoint, geo.OwnerPrimitive, geo.OwnerVertex:
	default:
		return fmt.Errorf("%w: frames cannot live on %s", ErrCreateAttribute, p.Owner)
	}

	var uv *geo.Attribute
	if p.Style == TextureCoords || p.Style == TextureAttrib {
		name := p.UVName
		if p.Style == TextureCoords || name == "" {
			name = DefaultUVName
		}
		if p.Style == TextureAttrib && p.UVName == "" {
			return fmt.Errorf("%w: no attribute name given", ErrMissingTextureCoords)
		}
		uv = d.FindAttribute(geo.OwnerVertex, name)
		if uv == nil {
			uv = d.FindAttribute(geo.OwnerPoint, name)
		}
		if uv == nil || uv.StorageClass() != geo.StorageFloat || uv.TupleSize() < 2 {
			return fmt.Errorf("%w: %s", ErrMissingTextureCoords, name)
		}
	}

	frames := make([]basis, d.NumPrimitives())
	for prim := range frames {
		frames[prim] = primFrame(d, prim, p, uv)
	}

	var outs [3]*geo.Attribute
	for slot, bit := range [3]int{WriteTangent, WriteBitangent, WriteNormal} {
		if p.Which&bit == 0 {
			continue
		}
		a, err := d.AddFloatTuple(p.Owner, p.Names[slot], 3)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCreateAttribute, p.Names[slot], err)
		}
		outs[slot] = a
	}

	write := func(elem int, f basis) {
		vals := [3]mgl32.Vec3{f.t, f.b, f.n}
		for slot, a := range outs {
			if a != nil {
				a.SetVec3(elem, vals[slot])
			}
		}
	}

	switch p.Owner {
	case geo.OwnerPrimitive:
		for prim, f := range frames {
			if f.ok {
				write(prim, f)
			}
		}
	case geo.OwnerVertex:
		for prim, f := range frames {
			if !f.ok {
				continue
			}
			for _, v := range d.PrimitiveVertices(prim) {
				write(v, f)
			}
		}
	case geo.OwnerPoint:
		acc := make([]basis, d.NumPoints())
		for prim, f := range frames {
			if !f.ok {
				continue
			}
			for _, pt := range d.PrimitivePoints(prim) {
				acc[pt].t = acc[pt].t.Add(f.t)
				acc[pt].b = acc[pt].b.Add(f.b)
				acc[pt].n = acc[pt].n.Add(f.n)
				acc[pt].ok = true
			}
		}
		for pt, f := range acc {
			if f.ok {
				write(pt, basis{t: safeNormalize(f.t), b: safeNormalize(f.b), n: safeNormalize(f.n)})
			}
		}
	}
	return nil
}

func primFrame(d *geo.Detail, prim int, p Params, uv *geo.Attribute) basis {
	verts := d.PrimitiveVertices(prim)
	if len(verts) < 3 {
		return basis{}
	}
	n := d.PolygonNormal(prim)
	if n.Len() == 0 {
		return basis{}
	}
	n = n.Normalize()

	pos := d.Position()
	p0 := pos.Vec3(d.VertexPoint(verts[0]))
	p1 := pos.Vec3(d.VertexPoint(verts[1]))

	var t, b mgl32.Vec3
	switch p.Style {
	case TwoEdges:
		t = p1.Sub(p0)
		b = pos.Vec3(d.VertexPoint(verts[len(verts)-1])).Sub(p0)
	case Centroid:
		t = p0.Sub(d.PolygonCentroid(prim))
	case TextureCoords, TextureAttrib:
		t, b = uvTangents(d, verts, uv)
	default:
		t = p1.Sub(p0)
	}
	if t.Len() == 0 {
		t = p1.Sub(p0)
	}
	if b.Len() == 0 || p.Orthogonal {
		t = t.Sub(n.Mul(n.Dot(t)))
		b = n.Cross(t)
	}
	if p.LeftHanded {
		b = b.Mul(-1)
	}
	return basis{t: safeNormalize(t), b: safeNormalize(b), n: n, ok: true}
}

// uvTangents derives tangent and bitangent from the first triangle's
// texture-space edges. A degenerate mapping returns zero vectors.
func uvTangents(d *geo.Detail, verts []int, uv *geo.Attribute) (mgl32.Vec3, mgl32.Vec3) {
	pos := d.Position()
	var p [3]mgl32.Vec3
	var st [3]mgl32.Vec2
	for i := 0; i < 3; i++ {
		pt := d.VertexPoint(verts[i])
		p[i] = pos.Vec3(pt)
		elem := verts[i]
		if uv.Owner() == geo.OwnerPoint {
			elem = pt
		}
		st[i] = mgl32.Vec2{float32(uv.Float(elem, 0)), float32(uv.Float(elem, 1))}
	}
	e1, e2 := p[1].Sub(p[0]), p[2].Sub(p[0])
	d1, d2 := st[1].Sub(st[0]), st[2].Sub(st[0])
	det := d1.X()*d2.Y() - d2.X()*d1.Y()
	if det == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	r := 1 / det
	t := e1.Mul(d2.Y()).Sub(e2.Mul(d1.Y())).Mul(r)
	b := e2.Mul(d1.X()).Sub(e1.Mul(d2.X())).Mul(r)
	return t, b
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}
