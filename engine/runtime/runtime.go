// Package runtime owns the worker pool that executes chunk build jobs. Jobs
// are pure: they consume owned snapshots and return owned results, never
// touching the chunk manager. Completions are drained by the main loop and
// sorted by job id so observed ordering is independent of scheduling jitter.
package runtime

import (
	"encoding/binary"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/edit"
	"github.com/stonelantern/stonelantern/engine/light"
	"github.com/stonelantern/stonelantern/engine/mesh"
	"github.com/stonelantern/stonelantern/engine/worldgen"
)

// JobKind is the lane a build job runs on.
type JobKind uint8

const (
	KindEdit JobKind = iota
	KindLight
	KindBg
)

func (k JobKind) String() string {
	switch k {
	case KindEdit:
		return "edit"
	case KindLight:
		return "light"
	}
	return "bg"
}

// BuildJob is a worker request: everything a build needs, cloned.
type BuildJob struct {
	Coord     chunk.Coord
	Neighbors uint8
	Rev       uint64
	JobID     uint64
	Kind      JobKind

	ChunkEdits  map[edit.WorldPos]block.Block
	RegionEdits map[[3]int32]block.Block
	PrevBuf     *chunk.Buf
	Profile     *worldgen.ColumnProfile
	Reg         *block.Registry
}

// JobID derives the deterministic completion-ordering id of a job. It is
// not used for deduplication; the manager dedups on (coord, rev).
func JobID(c chunk.Coord, rev uint64, neighbors uint8) uint64 {
	var b [21]byte
	binary.LittleEndian.PutUint32(b[0:], uint32(c.X))
	binary.LittleEndian.PutUint32(b[4:], uint32(c.Y))
	binary.LittleEndian.PutUint32(b[8:], uint32(c.Z))
	binary.LittleEndian.PutUint64(b[12:], rev)
	b[20] = neighbors
	return xxhash.Sum64(b[:])
}

// Timings reports per-phase worker durations in milliseconds.
type Timings struct {
	GenMs, LightMs, MeshMs, TotalMs uint32
}

// JobOut is a worker result. A populated chunk carries a mesh and buffer;
// a lighting-only pass carries only the grid and borders; an empty chunk
// carries neither. Errors are serialized here rather than panicking a
// worker.
type JobOut struct {
	Coord     chunk.Coord
	Rev       uint64
	JobID     uint64
	Kind      JobKind
	Occupancy chunk.Occupancy

	Mesh    *mesh.ChunkMesh
	Buf     *chunk.Buf
	Grid    *light.Grid
	Borders *light.Borders
	Micro   *light.MicroBorders
	Profile *worldgen.ColumnProfile

	Timings Timings
	Err     error
}

// Config tunes the runtime.
type Config struct {
	Log *slog.Logger
	// World samples base terrain for generation and seam overscan.
	World *worldgen.World
	// Lighting is the process-wide lighting store jobs seed from.
	Lighting *light.Store
	// WorkersPerLane is the goroutine count for each of the three lanes.
	// Values <= 0 default to 2.
	WorkersPerLane int
	// QueueSize bounds each lane's job channel. Values <= 0 default to 64.
	QueueSize int
}

// Runtime runs build jobs on three lanes: Edit, Lighting-only and
// Background.
type Runtime struct {
	log      *slog.Logger
	world    *worldgen.World
	lighting *light.Store

	lanes   [3]chan BuildJob
	results chan JobOut

	closing chan struct{}
	wg      sync.WaitGroup
}

// New starts the worker pool.
func New(cfg Config) *Runtime {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.WorkersPerLane <= 0 {
		cfg.WorkersPerLane = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	r := &Runtime{
		log:      cfg.Log,
		world:    cfg.World,
		lighting: cfg.Lighting,
		results:  make(chan JobOut, cfg.QueueSize*3),
		closing:  make(chan struct{}),
	}
	for lane := range r.lanes {
		r.lanes[lane] = make(chan BuildJob, cfg.QueueSize)
		for i := 0; i < cfg.WorkersPerLane; i++ {
			r.wg.Add(1)
			go r.worker(r.lanes[lane])
		}
	}
	return r
}

// Submit places a job on its lane. It reports false when the lane queue is
// full; the scheduler keeps the intent and retries next tick.
func (r *Runtime) Submit(job BuildJob) bool {
	select {
	case r.lanes[job.Kind] <- job:
		return true
	default:
		return false
	}
}

// DrainResults collects every finished job, sorted by job id.
func (r *Runtime) DrainResults() []JobOut {
	var out []JobOut
	for {
		select {
		case res := <-r.results:
			out = append(out, res)
		default:
			sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
			return out
		}
	}
}

// Close signals the workers to stop and waits for them to exit. Jobs still
// queued may be dropped, and a result finished after Close may be discarded.
func (r *Runtime) Close() {
	close(r.closing)
	for lane := range r.lanes {
		close(r.lanes[lane])
	}
	r.wg.Wait()
}

func (r *Runtime) worker(jobs <-chan BuildJob) {
	defer r.wg.Done()
	for job := range jobs {
		res := r.process(job)
		select {
		case r.results <- res:
		case <-r.closing:
			return
		}
	}
}

func (r *Runtime) process(job BuildJob) JobOut {
	start := time.Now()
	out := JobOut{Coord: job.Coord, Rev: job.Rev, JobID: job.JobID, Kind: job.Kind}
	reg := job.Reg

	buf := job.PrevBuf
	profile := job.Profile
	if buf == nil {
		buf, profile = r.world.GenerateChunk(reg, job.Coord, profile)
		out.Timings.GenMs = millisSince(start)
	}
	for pos, b := range job.ChunkEdits {
		lx, ly, lz := chunk.LocalOf(pos.X, pos.Y, pos.Z, buf.Sx, buf.Sy, buf.Sz)
		buf.SetLocal(lx, ly, lz, b)
	}
	out.Profile = profile
	out.Occupancy = buf.Classify()
	if out.Occupancy.IsEmpty() {
		out.Timings.TotalMs = millisSince(start)
		return out
	}

	lightStart := time.Now()
	grid := light.Compute(buf, r.lighting, reg)
	out.Timings.LightMs = millisSince(lightStart)
	out.Grid = grid
	out.Borders = light.BordersFromGrid(grid)
	out.Micro = light.MicroBordersFromGrid(grid)
	if job.Kind == KindLight {
		out.Timings.TotalMs = millisSince(start)
		return out
	}

	meshStart := time.Now()
	sampler := mesh.OverlaySampler(job.RegionEdits, func(wx, wy, wz int32) block.Block {
		return r.world.BlockAt(reg, wx, wy, wz)
	})
	out.Mesh = mesh.BuildChunk(buf, grid, reg, sampler)
	out.Buf = buf
	out.Timings.MeshMs = millisSince(meshStart)
	out.Timings.TotalMs = millisSince(start)
	return out
}

func millisSince(t time.Time) uint32 {
	ms := time.Since(t).Milliseconds()
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}
