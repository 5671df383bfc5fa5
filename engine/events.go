package engine

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/light"
	"github.com/stonelantern/stonelantern/engine/runtime"
	"github.com/stonelantern/stonelantern/engine/worldgen"
)

// RebuildCause says why a chunk rebuild was requested. It decides both the
// intent priority and the worker lane.
type RebuildCause uint8

const (
	CauseEdit RebuildCause = iota
	CauseLight
	CauseHotReload
	CauseStreamLoad
)

func (c RebuildCause) String() string {
	switch c {
	case CauseEdit:
		return "edit"
	case CauseLight:
		return "light"
	case CauseHotReload:
		return "hot_reload"
	}
	return "stream_load"
}

// Event is a unit of work for the engine loop. Handlers are pure with
// respect to the loop: they mutate engine state and may emit further
// events, which land in the queue for this or later ticks.
type Event interface {
	eventName() string
}

// Tick is the no-op heartbeat event.
type Tick struct{}

// MovementRequested reports a new camera position; the handler derives the
// view center chunk and emits ViewCenterChanged when it moves.
type MovementRequested struct {
	Pos mgl64.Vec3
}

// ViewCenterChanged recenters streaming on a chunk coordinate.
type ViewCenterChanged struct {
	Center chunk.Coord
}

// EnsureChunkLoaded asks the manager to make a chunk resident.
type EnsureChunkLoaded struct {
	Coord chunk.Coord
}

// EnsureChunkUnloaded evicts a chunk and its cached lighting.
type EnsureChunkUnloaded struct {
	Coord chunk.Coord
}

// ChunkRebuildRequested queues a rebuild intent for a resident chunk.
type ChunkRebuildRequested struct {
	Coord chunk.Coord
	Cause RebuildCause
}

// BuildChunkJobRequested materialises an intent into a worker job.
type BuildChunkJobRequested struct {
	Coord     chunk.Coord
	Neighbors uint8
	Rev       uint64
	JobID     uint64
	Cause     RebuildCause
}

// BuildChunkJobCompleted carries a finished worker result back into the
// loop.
type BuildChunkJobCompleted struct {
	Out runtime.JobOut
}

// ChunkLightingRecomputed delivers a lighting-only pass result.
type ChunkLightingRecomputed struct {
	Coord chunk.Coord
	Rev   uint64
	Grid  *light.Grid
}

// LightBordersUpdated reports which faces of a chunk's published borders
// changed bytewise.
type LightBordersUpdated struct {
	Coord chunk.Coord
	Mask  light.ChangeMask
}

// BlockPlaced applies a block override at world coordinates.
type BlockPlaced struct {
	WX, WY, WZ int32
	Block      block.Block
}

// BlockRemoved clears a block at world coordinates.
type BlockRemoved struct {
	WX, WY, WZ int32
}

// LightEmitterAdded registers a light source.
type LightEmitterAdded struct {
	WX, WY, WZ int32
	Level      uint8
	Beacon     bool
}

// LightEmitterRemoved drops a light source.
type LightEmitterRemoved struct {
	WX, WY, WZ int32
}

// RaycastEditRequested resolves a camera ray against the world and places
// or removes a block at the hit.
type RaycastEditRequested struct {
	Origin, Dir mgl64.Vec3
	Place       bool
	Block       block.Block
}

// RegistryReloadRequested reloads the block catalogs and schedules full
// rebuilds.
type RegistryReloadRequested struct{}

// WorldgenReloadRequested swaps the worldgen parameters and invalidates
// cached buffers and column profiles.
type WorldgenReloadRequested struct {
	Params worldgen.Params
}

func (Tick) eventName() string                    { return "Tick" }
func (MovementRequested) eventName() string       { return "MovementRequested" }
func (ViewCenterChanged) eventName() string       { return "ViewCenterChanged" }
func (EnsureChunkLoaded) eventName() string       { return "EnsureChunkLoaded" }
func (EnsureChunkUnloaded) eventName() string     { return "EnsureChunkUnloaded" }
func (ChunkRebuildRequested) eventName() string   { return "ChunkRebuildRequested" }
func (BuildChunkJobRequested) eventName() string  { return "BuildChunkJobRequested" }
func (BuildChunkJobCompleted) eventName() string  { return "BuildChunkJobCompleted" }
func (ChunkLightingRecomputed) eventName() string { return "ChunkLightingRecomputed" }
func (LightBordersUpdated) eventName() string     { return "LightBordersUpdated" }
func (BlockPlaced) eventName() string             { return "BlockPlaced" }
func (BlockRemoved) eventName() string            { return "BlockRemoved" }
func (LightEmitterAdded) eventName() string       { return "LightEmitterAdded" }
func (LightEmitterRemoved) eventName() string     { return "LightEmitterRemoved" }
func (RaycastEditRequested) eventName() string    { return "RaycastEditRequested" }
func (RegistryReloadRequested) eventName() string { return "RegistryReloadRequested" }
func (WorldgenReloadRequested) eventName() string { return "WorldgenReloadRequested" }

// eventQueue buckets events by target tick. Within a bucket, delivery is
// FIFO in insertion order.
type eventQueue struct {
	buckets map[uint64][]Event
	tick    uint64
}

func newEventQueue() *eventQueue {
	return &eventQueue{buckets: make(map[uint64][]Event)}
}

// EmitNow schedules an event for the current tick.
func (q *eventQueue) EmitNow(ev Event) {
	q.buckets[q.tick] = append(q.buckets[q.tick], ev)
}

// EmitAfter schedules an event for a later tick.
func (q *eventQueue) EmitAfter(ev Event, delay uint64) {
	q.buckets[q.tick+delay] = append(q.buckets[q.tick+delay], ev)
}

// PopReady removes and returns the next event of the current tick.
func (q *eventQueue) PopReady() (Event, bool) {
	bucket := q.buckets[q.tick]
	if len(bucket) == 0 {
		return nil, false
	}
	ev := bucket[0]
	if len(bucket) == 1 {
		delete(q.buckets, q.tick)
	} else {
		q.buckets[q.tick] = bucket[1:]
	}
	return ev, true
}

// AdvanceTick moves the queue to the next tick.
func (q *eventQueue) AdvanceTick() {
	q.tick++
}

// StaleCount reports events stranded in past buckets; any non-zero value
// indicates a scheduling bug.
func (q *eventQueue) StaleCount() int {
	n := 0
	for t, b := range q.buckets {
		if t < q.tick {
			n += len(b)
		}
	}
	return n
}

// QueuedCount reports the total number of pending events.
func (q *eventQueue) QueuedCount() int {
	n := 0
	for _, b := range q.buckets {
		n += len(b)
	}
	return n
}
