package deform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/deform/rt/exec"
	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Instancer is the top level procedural. It expands its arguments into
// instances and owns one Deformer per instance.
type Instancer struct {
	Load   geo.Loader
	Loader vex.Loader
	Log    Logger

	params    Params
	runner    *exec.Runner
	deformers []*Deformer
	bbox      geo.Box
}

func NewInstancer(log Logger) *Instancer {
	return &Instancer{Log: orNop(log), bbox: geo.EmptyBox()}
}

func (in *Instancer) Params() Params         { return in.params }
func (in *Instancer) Deformers() []*Deformer { return in.deformers }
func (in *Instancer) Runner() *exec.Runner   { return in.runner }

// Initialize parses src, expands the instance list and builds every
// instance. Only configuration errors are returned; instances that fail
// on their own are logged and left out of the bounds.
func (in *Instancer) Initialize(ctx context.Context, src ParamSource) error {
	start := time.Now()
	defer func() { instancerDuration.Observe(time.Since(start).Seconds()) }()

	in.Log = orNop(in.Log)
	if in.Load == nil {
		in.Load = geo.Load
	}
	if in.Loader == nil {
		in.Loader = vex.Builtins()
	}

	ctx, span := otel.Tracer("deform").Start(ctx, "deform.Initialize")
	defer span.End()

	p, err := ParseParams(src)
	if err != nil {
		in.Log.Errorf("%v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "configuration")
		return err
	}
	in.params = p

	var specs []InstanceSpec
	if p.LoadPointCloud {
		// A broken point cloud leaves the procedural empty, not failed.
		specs, _ = ExpandPointCloud(in.Load, p.File, in.Log)
	} else {
		specs = ExpandReplicated(p.File, p.Instances)
	}
	span.SetAttributes(attribute.Int("instances", len(specs)))

	in.runner = exec.NewRunner(in.Loader, in.Log)
	in.deformers = make([]*Deformer, len(specs))
	if p.ParallelInstances > 0 && len(specs) > 1 {
		in.buildParallel(ctx, specs)
	} else {
		for i, s := range specs {
			in.deformers[i] = NewDeformer(ctx, i, s, p.Settings(), in.env())
		}
	}

	in.bbox = geo.EmptyBox()
	failed := 0
	for _, d := range in.deformers {
		if d.State() != StateReady {
			failed++
			continue
		}
		in.bbox.EnlargeBox(d.BoundingBox())
	}
	if failed > 0 {
		in.Log.Warnf("%d of %d instances failed", failed, len(in.deformers))
	}
	span.SetAttributes(attribute.Int("failed", failed))
	return nil
}

func (in *Instancer) env() Env {
	return Env{Load: in.Load, Runner: in.runner, Log: in.Log}
}

// buildParallel builds instances on a bounded pool. Each deformer writes
// only its own slot of in.deformers.
func (in *Instancer) buildParallel(ctx context.Context, specs []InstanceSpec) {
	pool := worker.NewDynamicWorkerPool(in.params.ParallelInstances, len(specs), time.Second)
	defer pool.Stop()

	var wg sync.WaitGroup
	for i, s := range specs {
		wg.Add(1)
		idx, spec := i, s
		pool.SubmitTask(worker.Task{
			ID:      idx,
			Payload: spec.SourcePath,
			Do: func() (res any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("instance %d panicked: %v", idx, r)
						in.deformers[idx] = failedDeformer(idx, spec, err, in.Log)
					}
				}()
				in.deformers[idx] = NewDeformer(ctx, idx, spec, in.params.Settings(), in.env())
				return in.deformers[idx], nil
			},
		})
	}
	wg.Wait()
}

func failedDeformer(index int, spec InstanceSpec, err error, log Logger) *Deformer {
	d := &Deformer{index: index, spec: spec, env: Env{Log: orNop(log)}}
	d.fail(err)
	instancesTotal.WithLabelValues(d.state.String()).Inc()
	return d
}

// BoundingBox is the union of every ready instance.
func (in *Instancer) BoundingBox() geo.Box { return in.bbox }

// Render hands every instance to h as a child procedural.
func (in *Instancer) Render(h Host) {
	for _, d := range in.deformers {
		h.AddProcedural(d)
	}
}

// Describe is used in logs and by deformrun.
func (in *Instancer) Describe() string {
	ready := 0
	for _, d := range in.deformers {
		if d.State() == StateReady {
			ready++
		}
	}
	return fmt.Sprintf("%d instances (%d ready), %d programs, bounds %v..%v",
		len(in.deformers), ready, len(in.params.Slots), in.bbox.Min, in.bbox.Max)
}

var (
	_ Procedural = (*Instancer)(nil)
	_ Procedural = (*Deformer)(nil)
)
