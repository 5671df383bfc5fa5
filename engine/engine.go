// Package engine ties the voxel world core together: the chunk manager's
// residency and finalize machine, the intent scheduler and the
// deterministic per-tick event loop that drives worker jobs.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/edit"
	"github.com/stonelantern/stonelantern/engine/light"
	"github.com/stonelantern/stonelantern/engine/mesh"
	"github.com/stonelantern/stonelantern/engine/runtime"
	"github.com/stonelantern/stonelantern/engine/worldgen"
)

// maxEventsPerTick bounds same-tick fan-out; anything beyond it carries
// over and is a sign of a feedback loop.
const maxEventsPerTick = 20000

// Engine is the single-threaded orchestrator. All state mutation happens
// on the tick goroutine; external inputs enter through Enqueue and worker
// results through the runtime's result channel.
type Engine struct {
	conf Config
	log  *slog.Logger

	reg      atomic.Pointer[block.Registry]
	world    *worldgen.World
	edits    *edit.Store
	lighting *light.Store
	rt       *runtime.Runtime

	queue        *eventQueue
	mgr          *manager
	intents      map[chunk.Coord]intentEntry
	inflightKind map[chunk.Coord]runtime.JobKind
	center       chunk.Coord
	profiles     map[worldgen.ProfileKey]*worldgen.ColumnProfile

	inputMu sync.Mutex
	inputs  []Event

	closing chan struct{}
	o       sync.Once

	staleWarned uint64
}

// New assembles an engine from the configuration.
func New(conf Config) (*Engine, error) {
	conf, err := conf.withDefaults()
	if err != nil {
		return nil, err
	}
	params := worldgen.DefaultParams()
	if conf.Worldgen != nil {
		params = *conf.Worldgen
	}
	e := &Engine{
		conf:         conf,
		log:          conf.Log,
		world:        worldgen.New(conf.Seed, conf.ChunkSx, conf.ChunkSy, conf.ChunkSz, params),
		edits:        edit.NewStore(conf.ChunkSx, conf.ChunkSy, conf.ChunkSz),
		lighting:     light.NewStore(conf.ChunkSx, conf.ChunkSy, conf.ChunkSz),
		queue:        newEventQueue(),
		mgr:          newManager(),
		intents:      make(map[chunk.Coord]intentEntry),
		inflightKind: make(map[chunk.Coord]runtime.JobKind),
		profiles:     make(map[worldgen.ProfileKey]*worldgen.ColumnProfile),
		closing:      make(chan struct{}),
	}
	e.reg.Store(conf.Registry)
	e.rt = runtime.New(runtime.Config{
		Log:            conf.Log,
		World:          e.world,
		Lighting:       e.lighting,
		WorkersPerLane: conf.WorkersPerLane,
		QueueSize:      conf.QueueSize,
	})
	return e, nil
}

// Registry returns the active block registry. Jobs capture the pointer at
// submission, so in-flight work keeps the generation it started with.
func (e *Engine) Registry() *block.Registry { return e.reg.Load() }

// Edits exposes the edit store.
func (e *Engine) Edits() *edit.Store { return e.edits }

// Lighting exposes the lighting store.
func (e *Engine) Lighting() *light.Store { return e.lighting }

// World exposes the worldgen sampler.
func (e *Engine) World() *worldgen.World { return e.world }

// Tick returns the current loop tick.
func (e *Engine) Tick() uint64 { return e.queue.tick }

// MeshAt returns the last built mesh of a chunk, if any.
func (e *Engine) MeshAt(c chunk.Coord) (*mesh.ChunkMesh, bool) {
	m, ok := e.mgr.meshes[c]
	return m, ok
}

// AtlasAt returns the last packed light atlas of a chunk, if any.
func (e *Engine) AtlasAt(c chunk.Coord) (*light.Atlas, bool) {
	a, ok := e.mgr.atlas[c]
	return a, ok
}

// Enqueue hands an external input to the loop; it is delivered at the
// start of the next Step in insertion order.
func (e *Engine) Enqueue(ev Event) {
	e.inputMu.Lock()
	e.inputs = append(e.inputs, ev)
	e.inputMu.Unlock()
}

// Run ticks the engine until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	t := time.NewTicker(e.conf.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closing:
			return
		case <-t.C:
			e.Step()
		}
	}
}

// Close stops the worker pool. The engine must not be stepped afterwards.
func (e *Engine) Close() {
	e.o.Do(func() {
		close(e.closing)
		e.rt.Close()
	})
}

// Step advances one tick: accept inputs, reintroduce worker results in
// deterministic order, dispatch events, flush intents, advance.
func (e *Engine) Step() {
	e.inputMu.Lock()
	inputs := e.inputs
	e.inputs = nil
	e.inputMu.Unlock()
	for _, ev := range inputs {
		e.queue.EmitNow(ev)
	}

	for _, out := range e.rt.DrainResults() {
		e.acceptJobResult(out)
	}

	processed := 0
	for {
		ev, ok := e.queue.PopReady()
		if !ok {
			break
		}
		e.handleEvent(ev)
		processed++
		if processed >= maxEventsPerTick {
			break
		}
	}

	e.flushIntents()
	e.queue.AdvanceTick()
	if stale := e.queue.StaleCount(); stale > 0 && e.staleWarned != e.queue.tick {
		e.staleWarned = e.queue.tick
		e.log.Error("events stranded in past tick buckets", "count", stale, "tick", e.queue.tick)
	}
}

// acceptJobResult converts a drained worker result into loop events.
// Results arrive already sorted by job id.
func (e *Engine) acceptJobResult(out runtime.JobOut) {
	if out.Err != nil {
		e.log.Warn("chunk build failed", "coord", out.Coord, "rev", out.Rev, "kind", out.Kind.String(), "err", out.Err)
		e.clearInflight(out.Coord)
		return
	}
	if out.Kind == runtime.KindLight && !out.Occupancy.IsEmpty() {
		// Lighting-only lane: publish borders here so neighbors learn about
		// seam changes even without a mesh rebuild.
		var mask light.ChangeMask
		if out.Borders != nil {
			if changed, m := e.lighting.UpdateBorders(out.Coord, out.Borders); changed {
				mask = m
			}
		}
		if out.Micro != nil {
			if changed, m := e.lighting.UpdateMicroBorders(out.Coord, out.Micro); changed {
				mask.Or(m)
			}
		}
		if mask.Any() {
			e.queue.EmitNow(LightBordersUpdated{Coord: out.Coord, Mask: mask})
		}
		e.queue.EmitNow(ChunkLightingRecomputed{Coord: out.Coord, Rev: out.Rev, Grid: out.Grid})
		return
	}
	e.queue.EmitNow(BuildChunkJobCompleted{Out: out})
}

func (e *Engine) clearInflight(c chunk.Coord) {
	delete(e.mgr.inflight, c)
	delete(e.inflightKind, c)
}

// sampleWorldBlock answers block queries with edits layered over resident
// chunk buffers and worldgen.
func (e *Engine) sampleWorldBlock(wx, wy, wz int32) block.Block {
	if b, ok := e.edits.Get(wx, wy, wz); ok {
		return b
	}
	c := chunk.OwnerOf(wx, wy, wz, e.conf.ChunkSx, e.conf.ChunkSy, e.conf.ChunkSz)
	if ent := e.mgr.entry(c); ent != nil && ent.state == stateReady {
		if ent.occupancy.IsEmpty() {
			return block.Air
		}
		if ent.buf != nil {
			if b, ok := ent.buf.GetWorld(wx, wy, wz); ok {
				return b
			}
		}
	}
	return e.world.BlockAt(e.Registry(), wx, wy, wz)
}

// sphericalChunkCoords lists the chunk coordinates within the Euclidean
// radius of the center, in deterministic order.
func sphericalChunkCoords(center chunk.Coord, radius int32) []chunk.Coord {
	out := make([]chunk.Coord, 0, 1+4*int(radius)*int(radius)*int(radius))
	rSq := int64(radius) * int64(radius)
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			for dz := -radius; dz <= radius; dz++ {
				d := int64(dx)*int64(dx) + int64(dy)*int64(dy) + int64(dz)*int64(dz)
				if d <= rSq {
					out = append(out, center.Offset(dx, dy, dz))
				}
			}
		}
	}
	return out
}
