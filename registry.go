package deform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
)

// ErrUnknownProcedural is returned by Factory.Create for unregistered names.
var ErrUnknownProcedural = errors.New("unknown procedural")

// Initializer is a procedural that configures itself from host arguments.
type Initializer interface {
	Procedural
	Initialize(ctx context.Context, src ParamSource) error
}

// ProcDef describes one procedural type a host may instantiate.
type ProcDef struct {
	Name string
	New  func(log Logger) Initializer
}

// Factory maps procedural names to definitions. The zero value is not
// usable; call NewFactory.
type Factory struct {
	mu   sync.RWMutex
	defs map[string]ProcDef
}

func NewFactory() *Factory {
	return &Factory{defs: make(map[string]ProcDef)}
}

func (f *Factory) Insert(def ProcDef) *Factory {
	f.mu.Lock()
	f.defs[def.Name] = def
	f.mu.Unlock()
	return f
}

func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.defs))
	for n := range f.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Create instantiates and initializes the named procedural.
func (f *Factory) Create(ctx context.Context, name string, src ParamSource, log Logger) (Initializer, error) {
	f.mu.RLock()
	def, ok := f.defs[name]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcedural, name)
	}
	p := def.New(orNop(log))
	if err := p.Initialize(ctx, src); err != nil {
		return nil, err
	}
	return p, nil
}

// DeformerProcedural is the name the instancer registers under.
const DeformerProcedural = "deformer"

// RegisterProcedural adds the instancer to f. load and loader may be nil
// to use the file loaders and the built-in programs.
func RegisterProcedural(f *Factory, load geo.Loader, loader vex.Loader) *Factory {
	return f.Insert(ProcDef{
		Name: DeformerProcedural,
		New: func(log Logger) Initializer {
			in := NewInstancer(log)
			in.Load = load
			in.Loader = loader
			return in
		},
	})
}
