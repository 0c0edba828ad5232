package deform

import (
	"fmt"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/go-gl/mathgl/mgl32"
)

// Point cloud attribute names. Every other point attribute is carried to
// the instance under PointAttribPrefix + its name.
const (
	PointCloudPositionAttrib = geo.PositionAttrib
	PointCloudFileAttrib     = "instancefile"
	PointAttribPrefix        = "point_"
)

// InstanceSpec describes one instance to build. It is consumed by
// NewDeformer and not referenced afterwards.
type InstanceSpec struct {
	Position   mgl32.Vec3
	SourcePath string
	Extra      AttributeMap
}

// ExpandReplicated returns count instances of path at the origin.
func ExpandReplicated(path string, count int) []InstanceSpec {
	if count <= 0 {
		return nil
	}
	specs := make([]InstanceSpec, count)
	for i := range specs {
		specs[i] = InstanceSpec{SourcePath: path, Extra: NewAttributeMap()}
	}
	return specs
}

// ExpandPointCloud loads path and returns one instance per point. A load
// failure or a missing required attribute is logged and yields no
// instances.
func ExpandPointCloud(load geo.Loader, path string, log Logger) ([]InstanceSpec, error) {
	log = orNop(log)
	if load == nil {
		load = geo.Load
	}
	d, err := load(path)
	if err != nil {
		err = fmt.Errorf("%w: point cloud %s: %v", ErrLoadFailure, path, err)
		log.Errorf("%v", err)
		return nil, err
	}
	specs, err := ExtractPointCloud(d)
	if err != nil {
		log.Warnf("%s: %v", path, err)
		return nil, err
	}
	log.Infof("Create %d instances based on point cloud %s", len(specs), path)
	return specs, nil
}

// ExtractPointCloud reads instances from the points of d. "P" must be a
// float vector and "instancefile" a string attribute.
func ExtractPointCloud(d *geo.Detail) ([]InstanceSpec, error) {
	pos := d.FindAttribute(geo.OwnerPoint, PointCloudPositionAttrib)
	if pos == nil || pos.StorageClass() != geo.StorageFloat || pos.TupleSize() < 3 {
		return nil, fmt.Errorf("%w: no position information in point cloud", ErrMissingAttribute)
	}
	files := d.FindAttribute(geo.OwnerPoint, PointCloudFileAttrib)
	if files == nil || files.StorageClass() != geo.StorageString {
		return nil, fmt.Errorf("%w: no %s information in point cloud", ErrMissingAttribute, PointCloudFileAttrib)
	}

	specs := make([]InstanceSpec, d.NumPoints())
	for i := range specs {
		extra := NewAttributeMap()
		for _, a := range d.Attribs(geo.OwnerPoint) {
			if a == pos || a == files {
				continue
			}
			key := PointAttribPrefix + a.Name()
			switch a.StorageClass() {
			case geo.StorageFloat:
				switch {
				case a.TupleSize() < 3:
					extra.Floats[key] = float32(a.Float(i, 0))
				case a.TupleSize() < 4:
					extra.Vec3s[key] = a.Vec3(i)
				default:
					extra.Vec4s[key] = a.Vec4(i)
				}
			case geo.StorageInt:
				extra.Ints[key] = int32(a.Int(i, 0))
			}
		}
		specs[i] = InstanceSpec{
			Position:   pos.Vec3(i),
			SourcePath: files.Str(i),
			Extra:      extra,
		}
	}
	return specs, nil
}
