package geo

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Box is an axis-aligned bounding box. An empty box has Min > Max.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func EmptyBox() Box {
	inf := float32(math.Inf(1))
	return Box{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// ZeroBox is the degenerate box at the origin reported by failed instances.
func ZeroBox() Box {
	return Box{}
}

func (b Box) IsEmpty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

// EnlargePoint grows the box to contain p. It never shrinks. Points with
// a NaN component are ignored.
func (b *Box) EnlargePoint(p mgl32.Vec3) {
	if p.X() != p.X() || p.Y() != p.Y() || p.Z() != p.Z() {
		return
	}
	b.Min = mgl32.Vec3{min(b.Min.X(), p.X()), min(b.Min.Y(), p.Y()), min(b.Min.Z(), p.Z())}
	b.Max = mgl32.Vec3{max(b.Max.X(), p.X()), max(b.Max.Y(), p.Y()), max(b.Max.Z(), p.Z())}
}

// EnlargeBox grows the box to contain o. Empty boxes are ignored.
func (b *Box) EnlargeBox(o Box) {
	if o.IsEmpty() {
		return
	}
	b.EnlargePoint(o.Min)
	b.EnlargePoint(o.Max)
}

func (b Box) Contains(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

func (b Box) Size() mgl32.Vec3 {
	if b.IsEmpty() {
		return mgl32.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

func (b Box) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}
