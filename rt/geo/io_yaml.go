package geo

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

type yamlDetail struct {
	Points     [][3]float32    `yaml:"points"`
	Polygons   [][]int         `yaml:"polygons,omitempty"`
	Attributes []yamlAttribute `yaml:"attributes,omitempty"`
}

type yamlAttribute struct {
	Name      string    `yaml:"name"`
	Owner     string    `yaml:"owner"`
	Class     string    `yaml:"class"`
	Size      int       `yaml:"size,omitempty"`
	Precision int       `yaml:"precision,omitempty"`
	Floats    []float64 `yaml:"floats,omitempty,flow"`
	Ints      []int64   `yaml:"ints,omitempty,flow"`
	Strings   []string  `yaml:"strings,omitempty"`
}

func LoadYAMLFile(path string) (*Detail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := ReadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func ReadYAML(r io.Reader) (*Detail, error) {
	var doc yamlDetail
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	d := NewDetail()
	for _, p := range doc.Points {
		d.AddPoint(mgl32.Vec3(p))
	}
	for _, poly := range doc.Polygons {
		if _, err := d.AddPolygon(poly...); err != nil {
			return nil, err
		}
	}

	for _, ya := range doc.Attributes {
		owner, err := parseOwner(ya.Owner)
		if err != nil {
			return nil, err
		}
		class, err := parseClass(ya.Class)
		if err != nil {
			return nil, err
		}
		size := ya.Size
		if size == 0 {
			size = 1
		}
		prec := Precision(ya.Precision)
		if prec == 0 {
			prec = Precision32
		}
		a, err := d.AddAttribute(owner, ya.Name, class, size, prec)
		if err != nil {
			return nil, err
		}
		count := d.NumElements(owner)
		switch class {
		case StorageFloat:
			if len(ya.Floats) != count*size {
				return nil, fmt.Errorf("attribute %s: expected %d floats, got %d", ya.Name, count*size, len(ya.Floats))
			}
			for i, v := range ya.Floats {
				a.SetFloat(i/size, i%size, v)
			}
		case StorageInt:
			if len(ya.Ints) != count*size {
				return nil, fmt.Errorf("attribute %s: expected %d ints, got %d", ya.Name, count*size, len(ya.Ints))
			}
			for i, v := range ya.Ints {
				a.SetInt(i/size, i%size, v)
			}
		case StorageString:
			if len(ya.Strings) != count {
				return nil, fmt.Errorf("attribute %s: expected %d strings, got %d", ya.Name, count, len(ya.Strings))
			}
			for i, v := range ya.Strings {
				a.SetStr(i, v)
			}
		}
	}
	return d, nil
}

func SaveYAMLFile(path string, d *Detail) error {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, d); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func WriteYAML(w io.Writer, d *Detail) error {
	doc := yamlDetail{
		Points: make([][3]float32, d.NumPoints()),
	}
	p := d.Position()
	for i := range doc.Points {
		doc.Points[i] = p.Vec3(i)
	}
	for prim := 0; prim < d.NumPrimitives(); prim++ {
		doc.Polygons = append(doc.Polygons, d.PrimitivePoints(prim))
	}
	for owner := OwnerPoint; owner < ownerCount; owner++ {
		for _, a := range d.Attribs(owner) {
			if owner == OwnerPoint && a.Name() == PositionAttrib {
				continue
			}
			ya := yamlAttribute{
				Name:      a.name,
				Owner:     owner.String(),
				Class:     a.class.String(),
				Size:      a.tupleSize,
				Precision: int(a.precision),
			}
			switch a.class {
			case StorageFloat:
				ya.Floats = append([]float64{}, a.floats...)
			case StorageInt:
				ya.Ints = append([]int64{}, a.ints...)
			case StorageString:
				ya.Strings = append([]string{}, a.strings...)
			}
			doc.Attributes = append(doc.Attributes, ya)
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}
