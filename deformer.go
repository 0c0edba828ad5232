package deform

import (
	"context"
	"fmt"

	"github.com/gekko3d/deform/rt/exec"
	"github.com/gekko3d/deform/rt/frame"
	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// VelocityAttrib is the point attribute used for analytic motion blur.
const VelocityAttrib = "v"

type State int

const (
	StateLoading State = iota
	StateTimeSampling
	StateExecuting
	StateBoundsFinalizing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateTimeSampling:
		return "time-sampling"
	case StateExecuting:
		return "executing"
	case StateBoundsFinalizing:
		return "bounds-finalizing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Settings is the configuration every instance receives its own copy of.
type Settings struct {
	Slots          []ProgramSlot
	MultiThreaded  bool
	VelocityBlur   bool
	TimeSamples    int
	ComputeNormals bool
	PreFrame       bool
	PostFrame      [MaxProgramSlots]bool
	Frame          frame.Params
	FPS            float32
	ShutterOpen    float32
	ShutterClose   float32
}

func (s Settings) Clone() Settings {
	c := s
	c.Slots = append([]ProgramSlot(nil), s.Slots...)
	c.Frame = s.Frame.Clone()
	return c
}

// Env holds the collaborators a deformer uses. A nil Load uses geo.Load;
// a nil Runner gets one over the built-in programs.
type Env struct {
	Load   geo.Loader
	Runner *exec.Runner
	Log    Logger
}

// TimeSample is one geometry snapshot. Shutter is the absolute shutter
// offset handed to programs, Norm its position within the shutter interval.
type TimeSample struct {
	Detail  *geo.Detail
	Shutter float32
	Norm    float32
}

// Deformer builds, deforms and bounds the geometry of one instance.
type Deformer struct {
	index    int
	spec     InstanceSpec
	settings Settings
	env      Env

	state   State
	err     error
	samples []TimeSample
	bbox    geo.Box
}

// NewDeformer runs the whole pipeline for spec before returning. The
// result is either Ready or Failed; a failed deformer renders nothing.
func NewDeformer(ctx context.Context, index int, spec InstanceSpec, s Settings, env Env) *Deformer {
	if env.Load == nil {
		env.Load = geo.Load
	}
	env.Log = orNop(env.Log)
	if env.Runner == nil {
		env.Runner = exec.NewRunner(vex.Builtins(), env.Log)
	}
	d := &Deformer{
		index:    index,
		spec:     InstanceSpec{Position: spec.Position, SourcePath: spec.SourcePath, Extra: spec.Extra.Clone()},
		settings: s.Clone(),
		env:      env,
		bbox:     geo.EmptyBox(),
	}
	d.preprocess(ctx)
	instancesTotal.WithLabelValues(d.state.String()).Inc()
	return d
}

func (d *Deformer) Index() int            { return d.index }
func (d *Deformer) State() State          { return d.state }
func (d *Deformer) Err() error            { return d.err }
func (d *Deformer) Samples() []TimeSample { return d.samples }
func (d *Deformer) Spec() InstanceSpec    { return d.spec }
func (d *Deformer) Settings() Settings    { return d.settings.Clone() }

// BoundingBox returns the instance bounds. A failed instance reports the
// zero box at the origin.
func (d *Deformer) BoundingBox() geo.Box {
	if d.state == StateFailed {
		return geo.ZeroBox()
	}
	return d.bbox
}

func (d *Deformer) fail(err error) {
	d.state = StateFailed
	d.err = err
	d.samples = nil
	d.bbox = geo.EmptyBox()
	d.env.Log.Errorf("instance %d: %v", d.index, err)
}

func (d *Deformer) preprocess(ctx context.Context) {
	ctx, span := otel.Tracer("deform").Start(ctx, "deform.Preprocess",
		trace.WithAttributes(
			attribute.Int("instance", d.index),
			attribute.String("source", d.spec.SourcePath),
			attribute.Int("slots", len(d.settings.Slots)),
		),
	)
	defer span.End()

	d.state = StateLoading
	if len(d.settings.Slots) > MaxProgramSlots {
		d.fail(fmt.Errorf("%w: %d program slots, at most %d supported", ErrConfiguration, len(d.settings.Slots), MaxProgramSlots))
		span.SetStatus(codes.Error, "configuration")
		return
	}

	base, err := d.env.Load(d.spec.SourcePath)
	if err != nil {
		d.fail(fmt.Errorf("%w: %s: %v", ErrLoadFailure, d.spec.SourcePath, err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return
	}
	d.samples = []TimeSample{{Detail: base, Shutter: d.settings.ShutterOpen}}

	d.state = StateTimeSampling
	if !d.settings.VelocityBlur {
		d.loadTimeSamples()
	}

	d.state = StateExecuting
	for i := range d.samples {
		d.deformSample(ctx, d.samples[i])
	}

	d.state = StateBoundsFinalizing
	d.bbox = d.samples[0].Detail.BBox()
	if d.settings.VelocityBlur {
		d.enlargeByVelocity()
	} else {
		for _, s := range d.samples[1:] {
			d.bbox.EnlargeBox(s.Detail.BBox())
		}
	}

	if d.settings.ComputeNormals {
		for _, s := range d.samples {
			if err := s.Detail.ComputeNormals(); err != nil {
				WarnOnce(d.env.Log, "instance %d: compute normals: %v", d.index, err)
			}
		}
	}

	span.SetAttributes(attribute.Int("samples", len(d.samples)))
	d.state = StateReady
}

// TimeSampleOffsets returns the shutter offset and normalised time of
// each of k samples spread evenly over [shutterOpen, shutterClose]. The
// step is zero when k <= 1.
func TimeSampleOffsets(shutterOpen, shutterClose float32, k int) (offsets, norms []float32) {
	if k < 1 {
		k = 1
	}
	interval := shutterClose - shutterOpen
	var step float32
	if k > 1 {
		step = interval / float32(k-1)
	}
	offsets = make([]float32, k)
	norms = make([]float32, k)
	for i := 0; i < k; i++ {
		offsets[i] = shutterOpen + float32(i)*step
		if interval != 0 {
			norms[i] = float32(i) * step / interval
		}
	}
	return offsets, norms
}

// loadTimeSamples adds samples 1..K-1. A sample that fails to load is
// dropped; the others are kept.
func (d *Deformer) loadTimeSamples() {
	k := d.settings.TimeSamples
	if k <= 1 || d.settings.ShutterClose == d.settings.ShutterOpen {
		return
	}
	offsets, norms := TimeSampleOffsets(d.settings.ShutterOpen, d.settings.ShutterClose, k)
	for i := 1; i < k; i++ {
		g, err := d.env.Load(d.spec.SourcePath)
		if err != nil {
			d.env.Log.Warnf("instance %d: time sample %d at shutter %g dropped: %v", d.index, i, offsets[i], err)
			continue
		}
		d.samples = append(d.samples, TimeSample{Detail: g, Shutter: offsets[i], Norm: norms[i]})
	}
}

func (d *Deformer) deformSample(ctx context.Context, s TimeSample) {
	s.Detail.Translate(d.spec.Position)
	if d.settings.PreFrame {
		d.framePass(s.Detail, "pre")
	}
	extra := d.spec.Extra.Uniforms()
	for i, slot := range d.settings.Slots {
		if !slot.Domain.Valid() {
			WarnOnce(d.env.Log, "program %s: unknown domain %d, skipped", slot.Path, int(slot.Domain))
			continue
		}
		d.env.Runner.Run(ctx, s.Detail, exec.Job{
			Program:       slot.Path,
			Domain:        slot.Domain,
			Instance:      int32(d.index),
			Shutter:       s.Shutter,
			Extra:         extra,
			MultiThreaded: d.settings.MultiThreaded,
		})
		if d.settings.PostFrame[i] {
			d.framePass(s.Detail, fmt.Sprintf("post %d", i+1))
		}
	}
}

func (d *Deformer) framePass(g *geo.Detail, which string) {
	if err := frame.Compute(g, d.settings.Frame); err != nil {
		WarnOnce(d.env.Log, "instance %d: %s frame pass: %v", d.index, which, err)
	}
}

// BlurDurations converts shutter offsets in frames to the time, in
// seconds, that velocity is integrated over before and after the sample.
func BlurDurations(shutterOpen, shutterClose, fps float32) (pre, post float32) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return -shutterOpen / fps, shutterClose / fps
}

func (d *Deformer) enlargeByVelocity() {
	g := d.samples[0].Detail
	p := g.FindAttribute(geo.OwnerPoint, geo.PositionAttrib)
	v := g.FindAttribute(geo.OwnerPoint, VelocityAttrib)
	if p == nil || v == nil || v.StorageClass() != geo.StorageFloat || v.TupleSize() < 3 {
		return
	}
	pre, post := BlurDurations(d.settings.ShutterOpen, d.settings.ShutterClose, d.settings.FPS)
	for i := 0; i < g.NumPoints(); i++ {
		pos, vel := p.Vec3(i), v.Vec3(i)
		d.bbox.EnlargePoint(pos.Sub(vel.Mul(pre)))
		d.bbox.EnlargePoint(pos.Add(vel.Mul(post)))
	}
}

// Render hands the instance geometry to h. Failed instances emit nothing.
func (d *Deformer) Render(h Host) {
	if d.state != StateReady || len(d.samples) == 0 {
		return
	}
	g := Geometry{Instance: d.index, Bounds: d.bbox}
	for _, s := range d.samples {
		g.Segments = append(g.Segments, Segment{Detail: s.Detail, Time: s.Norm})
	}
	if d.settings.VelocityBlur {
		pre, post := BlurDurations(d.settings.ShutterOpen, d.settings.ShutterClose, d.settings.FPS)
		g.VelocityBlur = &VelocityBlur{Pre: pre, Post: post}
	}
	h.AddGeometry(g)
}

// Position is a convenience for hosts that place the instance themselves.
func (d *Deformer) Position() mgl32.Vec3 { return d.spec.Position }
