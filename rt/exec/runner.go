package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrThreadStart = errors.New("worker could not be started")

// Spawner starts fn on a new goroutine. It returns an error when the
// worker could not be started, in which case fn is never called.
type Spawner func(fn func()) error

// GoSpawner starts every worker with the go statement.
func GoSpawner(fn func()) error {
	go fn()
	return nil
}

// Result summarizes one program pass.
type Result struct {
	Chunks   int
	Executed int
	Failed   int
	Applied  int
	// Aborted is set when a worker failed to start; no chunk of the pass
	// was applied.
	Aborted bool
	// Skipped is set when the domain was not recognized or the program
	// could not be prepared.
	Skipped bool
}

// Stats are running totals over every pass of a Runner.
type Stats struct {
	Passes  int
	Chunks  int
	Failed  int
	Aborted int
}

// Runner partitions a domain into chunks and runs a program over them.
type Runner struct {
	Loader    vex.Loader
	Log       Logger
	Spawn     Spawner
	ChunkSize int

	// mu guards stats only. Attribute writes need no lock: chunks cover
	// disjoint ranges and are applied on the calling goroutine.
	mu    sync.Mutex
	stats Stats
}

func NewRunner(loader vex.Loader, log Logger) *Runner {
	return &Runner{Loader: loader, Log: orNop(log), Spawn: GoSpawner, ChunkSize: ChunkSize}
}

func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Runner) record(res Result) {
	r.mu.Lock()
	r.stats.Passes++
	r.stats.Chunks += res.Chunks
	r.stats.Failed += res.Failed
	if res.Aborted {
		r.stats.Aborted++
	}
	r.mu.Unlock()
}

func (r *Runner) executor() *Executor {
	return &Executor{Loader: r.Loader, Log: orNop(r.Log)}
}

// Run executes job.Program over every element of job.Domain in d and
// applies its writes. It never fails the caller: problems are logged and
// reflected in the Result.
func (r *Runner) Run(ctx context.Context, d *geo.Detail, job Job) Result {
	log := orNop(r.Log)
	_, span := otel.Tracer("deform").Start(ctx, "deform.exec.Run",
		trace.WithAttributes(
			attribute.String("program", job.Program),
			attribute.String("domain", job.Domain.String()),
			attribute.Bool("multithreaded", job.MultiThreaded),
		),
	)
	defer span.End()

	var res Result
	defer func() {
		r.record(res)
		span.SetAttributes(
			attribute.Int("chunks", res.Chunks),
			attribute.Int("failed", res.Failed),
			attribute.Bool("aborted", res.Aborted),
		)
	}()

	if !job.Domain.Valid() {
		errorOnce(log, "program %s: cannot identify run type %d", job.Program, int(job.Domain))
		res.Skipped = true
		return res
	}
	total := job.Domain.Count(d)
	if total == 0 {
		return res
	}

	timer := prometheus.NewTimer(passDuration.WithLabelValues(job.Domain.String()))
	defer timer.ObserveDuration()

	ex := r.executor()
	vc, err := ex.Prepare(d, job)
	if err != nil {
		programLoadFailures.Inc()
		errorOnce(log, "%v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "program load failed")
		res.Skipped = true
		return res
	}
	owner := job.Domain.Owner()
	ex.CreateOutputs(vc, d, owner)

	if !job.MultiThreaded {
		res.Chunks = 1
		cr := r.runChunk(ex, vc, d, job, Chunk{Start: 0, Count: total, ID: 0})
		defer cr.release()
		if cr.err != nil {
			res.Failed = 1
			chunksTotal.WithLabelValues("failed").Inc()
			return res
		}
		res.Executed = 1
		chunksTotal.WithLabelValues("executed").Inc()
		res.Applied = cr.queue.Apply(d, log)
		return res
	}

	size := r.ChunkSize
	if size <= 0 {
		size = ChunkSize
	}
	chunks := Partition(total, size)
	res.Chunks = len(chunks)
	results := make([]*chunkResult, len(chunks))
	spawn := r.Spawn
	if spawn == nil {
		spawn = GoSpawner
	}

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		err := spawn(func() {
			defer wg.Done()
			results[i] = r.runChunk(ex, nil, d, job, c)
		})
		if err != nil {
			wg.Done()
			res.Aborted = true
			err = fmt.Errorf("%w: %s: chunk %d: %v", ErrThreadStart, job.Program, c.ID, err)
			log.Errorf("%v", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "worker start failed")
			break
		}
	}
	wg.Wait()

	defer func() {
		for _, cr := range results {
			cr.release()
		}
	}()

	queues := make([]*MutationQueue, 0, len(results))
	for _, cr := range results {
		if cr == nil {
			continue
		}
		if cr.err != nil {
			res.Failed++
			chunksTotal.WithLabelValues("failed").Inc()
			continue
		}
		res.Executed++
		chunksTotal.WithLabelValues("executed").Inc()
		queues = append(queues, cr.queue)
	}

	if res.Aborted {
		passesAborted.Inc()
		chunksTotal.WithLabelValues("discarded").Add(float64(res.Executed))
		return res
	}
	res.Applied = Merge(queues).Apply(d, log)
	return res
}

// runChunk runs one chunk and turns load failures and panics into a
// logged chunk error so the remaining chunks are unaffected.
func (r *Runner) runChunk(ex *Executor, vc *vex.Context, d *geo.Detail, job Job, c Chunk) (cr *chunkResult) {
	defer func() {
		if p := recover(); p != nil {
			errorOnce(ex.Log, "%s: chunk %d panicked: %v", job.Program, c.ID, p)
			cr = &chunkResult{chunk: c, err: fmt.Errorf("chunk %d panicked: %v", c.ID, p)}
		}
	}()
	cr = ex.Run(vc, d, job, c)
	if cr.err != nil {
		if errors.Is(cr.err, ErrLoadFailure) {
			programLoadFailures.Inc()
		}
		errorOnce(ex.Log, "%v", cr.err)
	}
	return cr
}
