package exec

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gekko3d/deform/rt/diag"
	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderFunc func(argv []string) (*vex.Kernel, error)

func (f loaderFunc) Load(argv []string) (*vex.Kernel, error) { return f(argv) }

func grid(t *testing.T, n int) *geo.Detail {
	t.Helper()
	d := geo.NewDetail()
	for i := 0; i < n; i++ {
		d.AddPoint(mgl32.Vec3{float32(i % 17), float32(i / 17), float32(i%5) * 0.25})
	}
	for i := 0; i+2 < n; i += 3 {
		_, err := d.AddPolygon(i, i+1, i+2)
		require.NoError(t, err)
	}
	return d
}

func positions(d *geo.Detail) []mgl32.Vec3 {
	p := d.Position()
	out := make([]mgl32.Vec3, d.NumPoints())
	for i := range out {
		out[i] = p.Vec3(i)
	}
	return out
}

func TestPartition_CoversRange(t *testing.T) {
	for _, total := range []int{0, 1, 7, 1023, 1024, 1025, 4096, 5000} {
		for _, size := range []int{1, 3, 256, ChunkSize} {
			chunks := Partition(total, size)
			assert.Equal(t, (total+size-1)/size, len(chunks), "total=%d size=%d", total, size)

			next := 0
			short := 0
			for i, c := range chunks {
				if c.Start != next {
					t.Errorf("Expected chunk %d to start at %d, got %d", i, next, c.Start)
				}
				if c.ID != i {
					t.Errorf("Expected chunk id %d, got %d", i, c.ID)
				}
				if c.Count < size {
					short++
					assert.Equal(t, len(chunks)-1, i, "only the last chunk may be short")
				}
				next = c.End()
			}
			assert.Equal(t, total, next, "total=%d size=%d", total, size)
			if total%size == 0 {
				assert.Zero(t, short)
			} else {
				assert.Equal(t, 1, short)
			}
		}
	}
}

func TestRunner_SingleAndMultiThreadedParity(t *testing.T) {
	base := grid(t, 3000)
	programs := []Job{
		{Program: "translate offset=1,2,3", Domain: DomainPoints},
		{Program: "wave amp=0.5 freq=2", Domain: DomainPoints, Shutter: 0.25},
		{Program: "procid", Domain: DomainPoints},
		{Program: "colorize", Domain: DomainPrimitives, Instance: 4},
		{Program: "procid attrib=vid", Domain: DomainVertices},
		{Program: "tag every=7", Domain: DomainPoints},
	}

	single := base.Clone()
	multi := base.Clone()
	st := NewRunner(vex.Builtins(), nil)
	mt := NewRunner(vex.Builtins(), nil)
	mt.ChunkSize = 256

	for _, job := range programs {
		job.MultiThreaded = false
		rs := st.Run(context.Background(), single, job)
		job.MultiThreaded = true
		rm := mt.Run(context.Background(), multi, job)

		assert.Equal(t, 1, rs.Chunks, job.Program)
		assert.Equal(t, (job.Domain.Count(base)+255)/256, rm.Chunks, job.Program)
		assert.Zero(t, rm.Failed, job.Program)
	}

	assert.Equal(t, positions(single), positions(multi))
	for _, owner := range []geo.Owner{geo.OwnerPoint, geo.OwnerPrimitive, geo.OwnerVertex} {
		sa, ma := single.Attribs(owner), multi.Attribs(owner)
		require.Equal(t, len(sa), len(ma))
		for i := range sa {
			assert.Equal(t, sa[i].Name(), ma[i].Name(), "attribute creation order")
			for e := 0; e < sa[i].Len(); e++ {
				for c := 0; c < sa[i].TupleSize(); c++ {
					if sa[i].Float(e, c) != ma[i].Float(e, c) {
						t.Fatalf("Expected %s[%d][%d] = %v, got %v", sa[i].Name(), e, c, sa[i].Float(e, c), ma[i].Float(e, c))
					}
				}
			}
		}
	}

	id := multi.FindAttribute(geo.OwnerPoint, "id")
	require.NotNil(t, id)
	assert.Equal(t, geo.StorageInt, id.StorageClass())
	assert.Equal(t, int64(2999), id.Int(2999, 0))
	assert.Equal(t, int64(1), multi.FindAttribute(geo.OwnerPoint, "tagged").Int(14, 0))
	assert.Equal(t, int64(0), multi.FindAttribute(geo.OwnerPoint, "tagged").Int(15, 0))
}

func TestRunner_MergeIgnoresCompletionOrder(t *testing.T) {
	base := grid(t, 2048)
	job := Job{Program: "translate offset=0,0,1", Domain: DomainPoints, MultiThreaded: true}

	var first []mgl32.Vec3
	for run := 0; run < 2; run++ {
		d := base.Clone()
		r := NewRunner(vex.Builtins(), nil)
		r.ChunkSize = 128
		var started int32
		// Later chunks finish first on the first run, in order on the second.
		r.Spawn = func(fn func()) error {
			delay := time.Duration(0)
			if run == 0 {
				delay = time.Duration(16-atomic.AddInt32(&started, 1)) * time.Millisecond
			}
			go func() {
				time.Sleep(delay)
				fn()
			}()
			return nil
		}
		res := r.Run(context.Background(), d, job)
		require.Equal(t, 16, res.Executed)
		if first == nil {
			first = positions(d)
			continue
		}
		assert.Equal(t, first, positions(d))
	}
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, first[0])
}

func TestRunner_ChunkLoadFailureSkipsOnlyThatChunk(t *testing.T) {
	diag.Messages.Reset()
	d := grid(t, 1000)
	before := positions(d)

	reg := vex.Builtins()
	var loads int32
	loader := loaderFunc(func(argv []string) (*vex.Kernel, error) {
		// The first load is the discovery load on the calling goroutine.
		if atomic.AddInt32(&loads, 1) == 3 {
			return nil, errors.New("disk hiccup")
		}
		return reg.Load(argv)
	})

	r := NewRunner(loader, nil)
	r.ChunkSize = 100
	res := r.Run(context.Background(), d, Job{Program: "translate offset=1,0,0", Domain: DomainPoints, MultiThreaded: true})

	assert.Equal(t, 10, res.Chunks)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 9, res.Executed)
	assert.False(t, res.Aborted)

	after := positions(d)
	unchanged := 0
	for i := range after {
		if after[i] == before[i] {
			unchanged++
		} else {
			assert.Equal(t, before[i].Add(mgl32.Vec3{1, 0, 0}), after[i])
		}
	}
	assert.Equal(t, 100, unchanged, "exactly one chunk keeps its prior values")
}

func TestRunner_SpawnFailureAbortsWholePass(t *testing.T) {
	d := grid(t, 1000)
	before := positions(d)

	r := NewRunner(vex.Builtins(), nil)
	r.ChunkSize = 100
	var spawned int32
	r.Spawn = func(fn func()) error {
		if atomic.AddInt32(&spawned, 1) == 4 {
			return errors.New("resource temporarily unavailable")
		}
		go fn()
		return nil
	}

	res := r.Run(context.Background(), d, Job{Program: "translate offset=5,5,5", Domain: DomainPoints, MultiThreaded: true})

	assert.True(t, res.Aborted)
	assert.Equal(t, 3, res.Executed)
	assert.Zero(t, res.Applied)
	assert.Equal(t, before, positions(d), "no element may change when the pass aborts")
	assert.Equal(t, 1, r.Stats().Aborted)
}

func TestRunner_PanickingChunkIsRecovered(t *testing.T) {
	diag.Messages.Reset()
	d := grid(t, 300)
	loader := loaderFunc(func(argv []string) (*vex.Kernel, error) {
		return &vex.Kernel{
			Params: []vex.Param{{Name: "P", Kind: vex.Vector3, Export: true}},
			Run: func(n int, b *vex.Bindings, rd *vex.RunData) error {
				if rd.Elem(0) == 100 {
					panic("bad element")
				}
				return nil
			},
		}, nil
	})

	r := NewRunner(loader, nil)
	r.ChunkSize = 100
	res := r.Run(context.Background(), d, Job{Program: "boom", Domain: DomainPoints, MultiThreaded: true})

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Executed)
}

func TestRunner_SkipsUnknownDomainAndProgram(t *testing.T) {
	d := grid(t, 10)
	before := positions(d)
	r := NewRunner(vex.Builtins(), nil)

	res := r.Run(context.Background(), d, Job{Program: "translate offset=1,1,1", Domain: Domain(7)})
	assert.True(t, res.Skipped)

	res = r.Run(context.Background(), d, Job{Program: "nosuchprogram", Domain: DomainPoints})
	assert.True(t, res.Skipped)

	assert.Equal(t, before, positions(d))
}

func TestRunner_EmptyDomainIsNoop(t *testing.T) {
	d := geo.NewDetail()
	r := NewRunner(vex.Builtins(), nil)
	res := r.Run(context.Background(), d, Job{Program: "translate", Domain: DomainPoints, MultiThreaded: true})

	assert.Equal(t, Result{}, res)
}

func TestRunner_DetailDomainRunsOnce(t *testing.T) {
	d := grid(t, 5)
	r := NewRunner(vex.Builtins(), nil)
	res := r.Run(context.Background(), d, Job{Program: "colorize", Domain: DomainDetail, Instance: 2, MultiThreaded: true})

	assert.Equal(t, 1, res.Chunks)
	cd := d.FindAttribute(geo.OwnerDetail, "Cd")
	require.NotNil(t, cd)
	assert.Equal(t, 3, cd.TupleSize())
}

func TestRunner_ExtraUniformsReachPrograms(t *testing.T) {
	d := grid(t, 4)
	r := NewRunner(vex.Builtins(), nil)
	r.Run(context.Background(), d, Job{
		Program: "offset gain=2",
		Domain:  DomainPoints,
		Extra:   []vex.Value{vex.UniformVec3("point_offset", mgl32.Vec3{0, 0, 1})},
	})

	assert.Equal(t, mgl32.Vec3{0, 0, 2}, d.Position().Vec3(0))
}

func TestGetTyped_SoftFailures(t *testing.T) {
	diag.Messages.Reset()
	d := grid(t, 4)
	ar := NewArena(0, 0)

	v, ok := GetTyped(ar, d, geo.OwnerPoint, "missing", vex.Scalar, 0, 4, nil)
	assert.False(t, ok)
	assert.Nil(t, v)

	v, ok = GetTyped(ar, d, geo.OwnerPoint, "P", vex.Scalar, 0, 4, nil)
	assert.False(t, ok)
	assert.Nil(t, v)

	assert.Zero(t, ar.fOff, "failed reads allocate nothing")
	assert.Equal(t, 1, ar.Blocks())
	assert.Equal(t, 2, diag.Messages.Len())

	GetTyped(ar, d, geo.OwnerPoint, "missing", vex.Scalar, 0, 4, nil)
	assert.Equal(t, 2, diag.Messages.Len(), "repeat failures are reported once")
}

func TestSetTyped_RoundsToStoragePrecision(t *testing.T) {
	d := grid(t, 2)
	_, err := d.AddAttribute(geo.OwnerPoint, "pscale", geo.StorageFloat, 1, geo.Precision16)
	require.NoError(t, err)

	v := &vex.Value{Name: "pscale", Kind: vex.Scalar, Varying: true, Floats: []float32{0.1, 1.0 / 3}}
	require.True(t, SetTyped(d, geo.OwnerPoint, v, 0, 2, nil))

	a := d.FindAttribute(geo.OwnerPoint, "pscale")
	assert.InDelta(t, 0.0999755859375, a.Float(0, 0), 1e-12)
	assert.InDelta(t, 0.333251953125, a.Float(1, 0), 1e-12)
}

func TestMerge_OrdersByChunkID(t *testing.T) {
	a := NewMutationQueue(2)
	a.WriteElement(geo.OwnerPoint, 20, vex.UniformInt("x", 2))
	b := NewMutationQueue(0)
	b.WriteElement(geo.OwnerPoint, 0, vex.UniformInt("x", 0))
	c := NewMutationQueue(1)
	c.WriteElement(geo.OwnerPoint, 10, vex.UniformInt("y", 1))

	m := Merge([]*MutationQueue{a, nil, b, c})
	require.Equal(t, 3, m.Len())
	assert.Equal(t, 0, m.Mutations()[0].Start)
	assert.Equal(t, 10, m.Mutations()[1].Start)
	assert.Equal(t, 20, m.Mutations()[2].Start)

	d := grid(t, 21)
	assert.Equal(t, 3, m.Apply(d, nil))
	names := []string{}
	for _, a := range d.Attribs(geo.OwnerPoint) {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"P", "x", "y"}, names)
}

func TestArena_GrowsWithoutMovingEarlierSlices(t *testing.T) {
	ar := NewArena(4, 0)
	a := ar.Floats(3)
	a[0] = 1
	b := ar.Floats(3)
	b[0] = 2

	assert.Equal(t, float32(1), a[0])
	assert.Equal(t, 2, ar.Blocks())
	assert.Len(t, ar.Ints(5), 5)
}

func TestRunner_CreatedOutputsAreNotInputs(t *testing.T) {
	// w is created by the pass itself, so no chunk may see it bound.
	loader := loaderFunc(func(argv []string) (*vex.Kernel, error) {
		return &vex.Kernel{
			Params: []vex.Param{{Name: "w", Kind: vex.Scalar, Export: true}},
			Run: func(n int, b *vex.Bindings, rd *vex.RunData) error {
				w := b.Value("w")
				v := float32(2)
				if b.Bound("w") {
					v = 1
				}
				for i := 0; i < n; i++ {
					w.SetFloat(i, 0, v)
				}
				return nil
			},
		}, nil
	})

	for _, mt := range []bool{false, true} {
		d := grid(t, 10)
		r := NewRunner(loader, nil)
		r.ChunkSize = 3
		res := r.Run(context.Background(), d, Job{Program: "bound", Domain: DomainPoints, MultiThreaded: mt})
		require.Zero(t, res.Failed)

		w := d.FindAttribute(geo.OwnerPoint, "w")
		require.NotNil(t, w)
		for i := 0; i < d.NumPoints(); i++ {
			if got := w.Float(i, 0); got != 2 {
				t.Errorf("Expected w[%d]=2 (multithreaded=%v), got %v", i, mt, got)
			}
		}
	}
}
