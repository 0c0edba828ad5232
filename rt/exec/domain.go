// Package exec runs attribute programs over geometry in fixed-size chunks,
// inline or with one goroutine per chunk, and merges their writes back in
// chunk order.
package exec

import (
	"fmt"

	"github.com/gekko3d/deform/rt/geo"
)

// Domain is the element class a program runs over. The numeric values are
// the codes hosts pass in parameter files.
type Domain int

const (
	DomainPoints Domain = iota
	DomainPrimitives
	DomainVertices
	DomainDetail
)

func (d Domain) Valid() bool { return d >= DomainPoints && d <= DomainDetail }

// Owner returns the attribute owner the domain binds to.
func (d Domain) Owner() geo.Owner {
	switch d {
	case DomainPrimitives:
		return geo.OwnerPrimitive
	case DomainVertices:
		return geo.OwnerVertex
	case DomainDetail:
		return geo.OwnerDetail
	}
	return geo.OwnerPoint
}

// Count returns the number of elements a program visits; the detail
// domain is a single element.
func (d Domain) Count(g *geo.Detail) int {
	if !d.Valid() || g == nil {
		return 0
	}
	return g.NumElements(d.Owner())
}

func (d Domain) String() string {
	switch d {
	case DomainPoints:
		return "points"
	case DomainPrimitives:
		return "primitives"
	case DomainVertices:
		return "vertices"
	case DomainDetail:
		return "detail"
	}
	return fmt.Sprintf("domain(%d)", int(d))
}
