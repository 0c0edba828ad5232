package vex

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Names of the uniform inputs the engine declares for every run.
const (
	InstanceInput = "instance"
	ShutterInput  = "shutter"
)

// Builtins returns a registry holding the stock kernels.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register("translate", newTranslate)
	r.Register("scale", newScale)
	r.Register("wave", newWave)
	r.Register("colorize", newColorize)
	r.Register("velocity", newVelocity)
	r.Register("procid", newProcID)
	r.Register("offset", newOffset)
	r.Register("tag", newTag)
	return r
}

// translate attrib=P offset=x,y,z
func newTranslate(args Args) (*Kernel, error) {
	offset, err := args.Vec3("offset", mgl32.Vec3{})
	if err != nil {
		return nil, err
	}
	attrib := args.Str("attrib", "P")
	return &Kernel{
		Params: []Param{{Name: attrib, Kind: Vector3, Export: true}},
		Run: func(n int, b *Bindings, rd *RunData) error {
			p := b.Value(attrib)
			for i := 0; i < n; i++ {
				p.SetVec3(i, p.Vec3(i).Add(offset))
			}
			return nil
		},
	}, nil
}

// scale factor=s pivot=x,y,z
func newScale(args Args) (*Kernel, error) {
	factor, err := args.Vec3("factor", mgl32.Vec3{1, 1, 1})
	if err != nil {
		return nil, err
	}
	pivot, err := args.Vec3("pivot", mgl32.Vec3{})
	if err != nil {
		return nil, err
	}
	return &Kernel{
		Params: []Param{{Name: "P", Kind: Vector3, Export: true}},
		Run: func(n int, b *Bindings, rd *RunData) error {
			p := b.Value("P")
			for i := 0; i < n; i++ {
				d := p.Vec3(i).Sub(pivot)
				p.SetVec3(i, pivot.Add(mgl32.Vec3{d[0] * factor[0], d[1] * factor[1], d[2] * factor[2]}))
			}
			return nil
		},
	}, nil
}

// wave amp=a freq=f speed=s displaces P along Y by a sine of X and the
// shutter offset, so every time sample sees a different phase.
func newWave(args Args) (*Kernel, error) {
	amp, err := args.Float("amp", 0.1)
	if err != nil {
		return nil, err
	}
	freq, err := args.Float("freq", 1)
	if err != nil {
		return nil, err
	}
	speed, err := args.Float("speed", 1)
	if err != nil {
		return nil, err
	}
	return &Kernel{
		Params: []Param{
			{Name: "P", Kind: Vector3, Export: true},
			{Name: ShutterInput, Kind: Scalar},
		},
		Run: func(n int, b *Bindings, rd *RunData) error {
			p := b.Value("P")
			t := b.Value(ShutterInput).Float(0, 0)
			for i := 0; i < n; i++ {
				v := p.Vec3(i)
				v[1] += amp * float32(math.Sin(float64(freq*v[0]+speed*t)))
				p.SetVec3(i, v)
			}
			return nil
		},
	}, nil
}

// colorize writes Cd from the instance index so instances can be told apart.
func newColorize(args Args) (*Kernel, error) {
	return &Kernel{
		Params: []Param{
			{Name: "Cd", Kind: Vector3, Export: true},
			{Name: InstanceInput, Kind: Integer},
		},
		Run: func(n int, b *Bindings, rd *RunData) error {
			cd := b.Value("Cd")
			c := instanceColor(b.Value(InstanceInput).Int(0))
			for i := 0; i < n; i++ {
				cd.SetVec3(i, c)
			}
			return nil
		},
	}, nil
}

func instanceColor(instance int32) mgl32.Vec3 {
	h := float64(uint32(instance)*2654435761%360) / 60
	x := float32(1 - math.Abs(math.Mod(h, 2)-1))
	switch int(h) {
	case 0:
		return mgl32.Vec3{1, x, 0}
	case 1:
		return mgl32.Vec3{x, 1, 0}
	case 2:
		return mgl32.Vec3{0, 1, x}
	case 3:
		return mgl32.Vec3{0, x, 1}
	case 4:
		return mgl32.Vec3{x, 0, 1}
	}
	return mgl32.Vec3{1, 0, x}
}

// velocity dir=x,y,z speed=s writes a constant v, or spins points around
// the Y axis when spin is set.
func newVelocity(args Args) (*Kernel, error) {
	dir, err := args.Vec3("dir", mgl32.Vec3{1, 0, 0})
	if err != nil {
		return nil, err
	}
	speed, err := args.Float("speed", 1)
	if err != nil {
		return nil, err
	}
	spin, err := args.Float("spin", 0)
	if err != nil {
		return nil, err
	}
	return &Kernel{
		Params: []Param{
			{Name: "P", Kind: Vector3},
			{Name: "v", Kind: Vector3, Export: true},
		},
		Run: func(n int, b *Bindings, rd *RunData) error {
			p := b.Value("P")
			v := b.Value("v")
			for i := 0; i < n; i++ {
				vel := dir.Mul(speed)
				if spin != 0 {
					pos := p.Vec3(i)
					vel = vel.Add(mgl32.Vec3{-pos[2], 0, pos[0]}.Mul(spin))
				}
				v.SetVec3(i, vel)
			}
			return nil
		},
	}, nil
}

// procid attrib=id stores each element's own offset.
func newProcID(args Args) (*Kernel, error) {
	attrib := args.Str("attrib", "id")
	return &Kernel{
		Params: []Param{{Name: attrib, Kind: Integer, Export: true}},
		Run: func(n int, b *Bindings, rd *RunData) error {
			id := b.Value(attrib)
			for i := 0; i < n; i++ {
				id.SetInt(i, int32(rd.Elem(i)))
			}
			return nil
		},
	}, nil
}

// offset moves P by the per-instance point_offset value carried over from
// a point cloud, scaled by gain.
func newOffset(args Args) (*Kernel, error) {
	gain, err := args.Float("gain", 1)
	if err != nil {
		return nil, err
	}
	name := args.Str("from", "point_offset")
	return &Kernel{
		Params: []Param{
			{Name: "P", Kind: Vector3, Export: true},
			{Name: name, Kind: Vector3},
		},
		Run: func(n int, b *Bindings, rd *RunData) error {
			if !b.Bound(name) {
				return nil
			}
			p := b.Value("P")
			off := b.Value(name)
			for i := 0; i < n; i++ {
				p.SetVec3(i, p.Vec3(i).Add(off.Vec3(i).Mul(gain)))
			}
			return nil
		},
	}, nil
}

// tag attrib=name every=k marks every k-th element through the command
// queue instead of a declared output.
func newTag(args Args) (*Kernel, error) {
	attrib := args.Str("attrib", "tagged")
	every, err := args.Int("every", 1)
	if err != nil {
		return nil, err
	}
	if every < 1 {
		every = 1
	}
	return &Kernel{
		Run: func(n int, b *Bindings, rd *RunData) error {
			for i := 0; i < n; i++ {
				elem := rd.Elem(i)
				if elem%every == 0 {
					rd.Commands.SetAttrib(attrib, elem, UniformInt(attrib, 1))
				}
			}
			return nil
		},
	}, nil
}
