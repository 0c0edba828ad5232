package vex

import (
	"errors"
	"fmt"
)

var ErrNotLoaded = errors.New("program not loaded")

// Context drives one program instance: inputs are declared before Load,
// buffers are attached to the inputs the program actually reads, and Run
// executes it over n elements. A Context is not safe for concurrent use;
// each goroutine loads its own.
type Context struct {
	loader Loader
	decls  []*Value
	byName map[string]*Value

	kernel  *Kernel
	inputs  []*Value
	outputs []*Value
	bind    *Bindings
}

func NewContext(l Loader) *Context {
	return &Context{loader: l, byName: make(map[string]*Value)}
}

// AddInput declares an input. Declaring an existing name replaces it.
// The returned value has no data; attach it after Load if FindInput
// reports that the program reads it.
func (c *Context) AddInput(name string, kind Kind, varying bool) *Value {
	v := &Value{Name: name, Kind: kind, Role: Input, Varying: varying}
	c.declare(v)
	return v
}

// AddUniform declares a non-varying input carrying its data.
func (c *Context) AddUniform(u Value) *Value {
	v := u.Clone()
	v.Role = Input
	v.Varying = false
	c.declare(&v)
	return &v
}

func (c *Context) declare(v *Value) {
	if old, ok := c.byName[v.Name]; ok {
		for i, d := range c.decls {
			if d == old {
				c.decls[i] = v
			}
		}
	} else {
		c.decls = append(c.decls, v)
	}
	c.byName[v.Name] = v
}

// Load resolves argv through the loader and matches declared inputs
// against the program's parameters.
func (c *Context) Load(argv []string) error {
	if c.loader == nil {
		return errors.New("no program loader")
	}
	k, err := c.loader.Load(argv)
	if err != nil {
		return err
	}
	if k.Run == nil {
		return fmt.Errorf("program %s has no body", k.Name)
	}

	c.kernel = k
	c.inputs = c.inputs[:0]
	c.outputs = c.outputs[:0]
	c.bind = &Bindings{values: make(map[string]*Value, len(k.Params)), bound: make(map[string]bool)}

	for _, p := range k.Params {
		if p.Kind.Width() == 0 {
			return fmt.Errorf("program %s: parameter %s has invalid kind", k.Name, p.Name)
		}
		in := c.byName[p.Name]
		if in != nil && in.Kind == p.Kind {
			c.inputs = append(c.inputs, in)
		} else {
			in = nil
		}
		if p.Export {
			out := &Value{Name: p.Name, Kind: p.Kind, Role: Output, Varying: true, Export: true}
			c.outputs = append(c.outputs, out)
			c.bind.values[p.Name] = out
			c.bind.bound[p.Name] = in != nil
			continue
		}
		if in != nil {
			c.bind.values[p.Name] = in
			c.bind.bound[p.Name] = true
			continue
		}
		c.bind.values[p.Name] = zeroUniform(p)
	}
	return nil
}

func zeroUniform(p Param) *Value {
	v := &Value{Name: p.Name, Kind: p.Kind, Role: Input}
	if p.Kind == Integer {
		v.Ints = []int32{0}
	} else {
		v.Floats = make([]float32, p.Kind.Width())
	}
	return v
}

func (c *Context) IsLoaded() bool { return c.kernel != nil }

// Kernel returns the loaded program, or nil.
func (c *Context) Kernel() *Kernel { return c.kernel }

// FindInput returns the declared input named name if the program reads it
// with the same kind.
func (c *Context) FindInput(name string, kind Kind) *Value {
	for _, in := range c.inputs {
		if in.Name == name && in.Kind == kind {
			return in
		}
	}
	return nil
}

// FindOutput returns the exported parameter named name with the given kind.
func (c *Context) FindOutput(name string, kind Kind) *Value {
	for _, out := range c.outputs {
		if out.Name == name && out.Kind == kind {
			return out
		}
	}
	return nil
}

// Inputs returns the declared inputs the program reads, in parameter order.
func (c *Context) Inputs() []*Value { return c.inputs }

// Outputs returns the exported parameters in declaration order.
func (c *Context) Outputs() []*Value { return c.outputs }

// Run executes the program over n elements. Output buffers that were not
// attached are allocated. Each output starts from the matching bound input,
// or zero when there is none.
func (c *Context) Run(n int, rd *RunData) error {
	if c.kernel == nil {
		return ErrNotLoaded
	}
	for _, in := range c.inputs {
		if in.Varying && in.Len() < n {
			return fmt.Errorf("input %s holds %d elements, need %d", in.Name, in.Len(), n)
		}
	}
	for _, out := range c.outputs {
		if out.Len() < n {
			out.Alloc(n)
		}
		in := c.FindInput(out.Name, out.Kind)
		if in == nil {
			continue
		}
		for i := 0; i < n; i++ {
			out.Element(i, in, i)
		}
	}
	if rd == nil {
		rd = &RunData{}
	}
	return c.kernel.Run(n, c.bind, rd)
}

// Bindings give a kernel access to its parameters by name.
type Bindings struct {
	values map[string]*Value
	bound  map[string]bool
}

// Value returns the buffer for a declared parameter, or nil for an
// undeclared name.
func (b *Bindings) Value(name string) *Value { return b.values[name] }

// Bound reports whether the parameter received data from a declared input.
func (b *Bindings) Bound(name string) bool { return b.bound[name] }
