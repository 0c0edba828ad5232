package geo

import "github.com/go-gl/mathgl/mgl32"

// NormalAttrib is the point attribute written by ComputeNormals.
const NormalAttrib = "N"

// PolygonNormal returns the Newell normal of prim. Its length is twice
// the polygon area, so summing unnormalised results area-weights them.
func (d *Detail) PolygonNormal(prim int) mgl32.Vec3 {
	p := d.Position()
	verts := d.prims[prim]
	var n mgl32.Vec3
	for i := range verts {
		a := p.Vec3(d.vertexPoint[verts[i]])
		b := p.Vec3(d.vertexPoint[verts[(i+1)%len(verts)]])
		n[0] += (a.Y() - b.Y()) * (a.Z() + b.Z())
		n[1] += (a.Z() - b.Z()) * (a.X() + b.X())
		n[2] += (a.X() - b.X()) * (a.Y() + b.Y())
	}
	return n
}

// PolygonCentroid returns the average position of prim's points.
func (d *Detail) PolygonCentroid(prim int) mgl32.Vec3 {
	p := d.Position()
	verts := d.prims[prim]
	var c mgl32.Vec3
	if len(verts) == 0 {
		return c
	}
	for _, v := range verts {
		c = c.Add(p.Vec3(d.vertexPoint[v]))
	}
	return c.Mul(1 / float32(len(verts)))
}

// ComputeNormals writes area-weighted point normals into "N", creating
// the attribute if needed. Points without incident polygons get a zero normal.
func (d *Detail) ComputeNormals() error {
	n, err := d.AddFloatTuple(OwnerPoint, NormalAttrib, 3)
	if err != nil {
		return err
	}
	acc := make([]mgl32.Vec3, d.numPoints)
	for prim := range d.prims {
		pn := d.PolygonNormal(prim)
		for _, v := range d.prims[prim] {
			pt := d.vertexPoint[v]
			acc[pt] = acc[pt].Add(pn)
		}
	}
	for i, v := range acc {
		if v.Len() > 0 {
			v = v.Normalize()
		}
		n.SetVec3(i, v)
	}
	return nil
}
