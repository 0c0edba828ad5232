package deform

import (
	"sync"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/google/uuid"
)

type ObjectId string

func makeObjectId() ObjectId {
	return ObjectId(uuid.NewString())
}

// Procedural is anything the host can bound and expand.
type Procedural interface {
	BoundingBox() geo.Box
	Render(h Host)
}

// Host receives the output of a procedural: nested procedurals and
// finished geometry.
type Host interface {
	AddProcedural(p Procedural) ObjectId
	AddGeometry(g Geometry) ObjectId
}

// Segment is one motion segment of a geometry object. Time is the
// normalised shutter position in [0, 1].
type Segment struct {
	Detail *geo.Detail
	Time   float32
}

// VelocityBlur asks the host to blur along the point velocity attribute
// instead of interpolating segments. Pre and Post are the seconds of
// motion before and after the sample.
type VelocityBlur struct {
	Pre  float32
	Post float32
}

type Geometry struct {
	Instance     int
	Segments     []Segment
	Bounds       geo.Box
	VelocityBlur *VelocityBlur
}

// RenderServer is an in-process Host. Procedurals added to it are
// rendered immediately, depth first.
type RenderServer struct {
	mu       sync.Mutex
	order    []ObjectId
	geometry map[ObjectId]Geometry
	bounds   geo.Box
	depth    int
	MaxDepth int
}

func NewRenderServer() *RenderServer {
	return &RenderServer{
		geometry: make(map[ObjectId]Geometry),
		bounds:   geo.EmptyBox(),
		MaxDepth: 16,
	}
}

func (s *RenderServer) AddProcedural(p Procedural) ObjectId {
	id := makeObjectId()
	s.mu.Lock()
	s.bounds.EnlargeBox(p.BoundingBox())
	if s.depth >= s.MaxDepth {
		s.mu.Unlock()
		return id
	}
	s.depth++
	s.mu.Unlock()

	p.Render(s)

	s.mu.Lock()
	s.depth--
	s.mu.Unlock()
	return id
}

func (s *RenderServer) AddGeometry(g Geometry) ObjectId {
	id := makeObjectId()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometry[id] = g
	s.order = append(s.order, id)
	return id
}

// Objects returns the ids of registered geometry in registration order.
func (s *RenderServer) Objects() []ObjectId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ObjectId(nil), s.order...)
}

func (s *RenderServer) Geometry(id ObjectId) (Geometry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.geometry[id]
	return g, ok
}

// Bounds is the union of the boxes of every procedural added.
func (s *RenderServer) Bounds() geo.Box {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}
