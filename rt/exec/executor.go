package exec

import (
	"errors"
	"fmt"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
)

var ErrLoadFailure = errors.New("program load failure")

// Job describes one program pass over one geometry.
type Job struct {
	Program       string
	Domain        Domain
	Instance      int32
	Shutter       float32
	Extra         []vex.Value
	MultiThreaded bool
}

// Executor runs a program over a single chunk.
type Executor struct {
	Loader vex.Loader
	Log    Logger

	// inputs is the attribute table as it stood at the first Prepare.
	// Outputs created afterwards are not inputs of any chunk.
	inputs []inputDecl
}

type inputDecl struct {
	name string
	kind vex.Kind
}

// chunkResult is what one chunk hands back to the runner. The arena backs
// every buffer the queue references and is released after the merge.
type chunkResult struct {
	chunk Chunk
	queue *MutationQueue
	arena *Arena
	err   error
}

func (r *chunkResult) release() {
	if r != nil && r.arena != nil {
		r.arena.Release()
		r.arena = nil
	}
}

// Prepare declares every bindable attribute of the job's domain plus the
// uniform inputs and loads the program. The attribute list is captured on
// the first call; later calls, including those made by workers, declare
// the same inputs.
func (e *Executor) Prepare(d *geo.Detail, job Job) (*vex.Context, error) {
	if e.inputs == nil {
		e.inputs = declaredInputs(d, job.Domain.Owner())
	}
	ctx := vex.NewContext(e.Loader)
	for _, in := range e.inputs {
		ctx.AddInput(in.name, in.kind, true)
	}
	ctx.AddUniform(vex.UniformInt(vex.InstanceInput, job.Instance))
	ctx.AddUniform(vex.UniformFloat(vex.ShutterInput, job.Shutter))
	for _, x := range job.Extra {
		ctx.AddUniform(x)
	}

	if err := ctx.Load(vex.ParseArgs(job.Program)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailure, job.Program, err)
	}
	return ctx, nil
}

func declaredInputs(d *geo.Detail, owner geo.Owner) []inputDecl {
	attrs := d.Attribs(owner)
	decls := make([]inputDecl, 0, len(attrs))
	for _, a := range attrs {
		if k := KindOf(a); k != vex.KindInvalid {
			decls = append(decls, inputDecl{name: a.Name(), kind: k})
		}
	}
	return decls
}

// CreateOutputs adds a geometry attribute for every exported output the
// geometry lacks. It mutates the attribute table and must run before any
// worker starts.
func (e *Executor) CreateOutputs(ctx *vex.Context, d *geo.Detail, owner geo.Owner) {
	for _, out := range ctx.Outputs() {
		ensureAttribute(d, owner, out, e.Log)
	}
}

// Run executes the program over chunk c. A nil ctx is loaded here, which
// is what workers do so no program state is shared between goroutines.
func (e *Executor) Run(ctx *vex.Context, d *geo.Detail, job Job, c Chunk) *chunkResult {
	res := &chunkResult{chunk: c}
	if ctx == nil {
		var err error
		ctx, err = e.Prepare(d, job)
		if err != nil {
			res.err = err
			return res
		}
	}
	owner := job.Domain.Owner()
	n := c.Count

	floats, ints := 0, 0
	for _, v := range append(append([]*vex.Value(nil), ctx.Inputs()...), ctx.Outputs()...) {
		if v.Kind == vex.Integer {
			ints += n
		} else {
			floats += n * v.Kind.Width()
		}
	}
	ar := NewArena(floats, ints)
	res.arena = ar

	for _, in := range ctx.Inputs() {
		if !in.Varying {
			continue
		}
		if v, ok := GetTyped(ar, d, owner, in.Name, in.Kind, c.Start, n, e.Log); ok {
			in.Floats, in.Ints = v.Floats, v.Ints
			continue
		}
		in.Floats, in.Ints = nil, nil
		if in.Kind == vex.Integer {
			in.Ints = ar.Ints(n)
		} else {
			in.Floats = ar.Floats(n * in.Kind.Width())
		}
	}
	for _, out := range ctx.Outputs() {
		out.Varying = true
		out.Floats, out.Ints = nil, nil
		if out.Kind == vex.Integer {
			out.Ints = ar.Ints(n)
		} else {
			out.Floats = ar.Floats(n * out.Kind.Width())
		}
	}

	procID := make([]int, n)
	for i := range procID {
		procID[i] = c.Start + i
	}
	cmds := &vex.CommandQueue{}
	if err := ctx.Run(n, &vex.RunData{ProcID: procID, Commands: cmds}); err != nil {
		res.err = fmt.Errorf("%s: chunk %d: %w", job.Program, c.ID, err)
		return res
	}

	q := NewMutationQueue(c.ID)
	for _, out := range ctx.Outputs() {
		q.WriteRange(owner, c.Start, out, n)
	}
	for _, cmd := range cmds.Commands() {
		q.WriteElement(owner, cmd.Elem, cmd.Value)
	}
	res.queue = q
	return res
}
