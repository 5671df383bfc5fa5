package engine

import (
	"math"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/light"
	"github.com/stonelantern/stonelantern/engine/runtime"
	"github.com/stonelantern/stonelantern/engine/worldgen"
)

func (e *Engine) handleEvent(ev Event) {
	switch ev := ev.(type) {
	case Tick:
	case MovementRequested:
		c := chunk.Coord{
			X: floorDivF(ev.Pos.X(), e.conf.ChunkSx),
			Y: floorDivF(ev.Pos.Y(), e.conf.ChunkSy),
			Z: floorDivF(ev.Pos.Z(), e.conf.ChunkSz),
		}
		if c != e.center {
			e.queue.EmitNow(ViewCenterChanged{Center: c})
		}
	case ViewCenterChanged:
		e.handleViewCenterChanged(ev)
	case EnsureChunkLoaded:
		e.handleEnsureChunkLoaded(ev.Coord)
	case EnsureChunkUnloaded:
		e.handleEnsureChunkUnloaded(ev.Coord)
	case ChunkRebuildRequested:
		if !e.mgr.meshReady(ev.Coord) {
			return
		}
		e.recordIntent(ev.Coord, ev.Cause)
	case BuildChunkJobRequested:
		e.handleBuildJobRequested(ev)
	case BuildChunkJobCompleted:
		e.handleBuildCompleted(ev.Out)
	case ChunkLightingRecomputed:
		e.handleLightingRecomputed(ev)
	case LightBordersUpdated:
		e.handleLightBordersUpdated(ev)
	case BlockPlaced:
		e.handleBlockPlaced(ev)
	case BlockRemoved:
		e.handleBlockRemoved(ev)
	case LightEmitterAdded:
		e.lighting.AddEmitterWorld(ev.WX, ev.WY, ev.WZ, ev.Level, ev.Beacon)
		owner := e.ownerOf(ev.WX, ev.WY, ev.WZ)
		e.queue.EmitNow(ChunkRebuildRequested{Coord: owner, Cause: CauseEdit})
	case LightEmitterRemoved:
		e.lighting.RemoveEmitterWorld(ev.WX, ev.WY, ev.WZ)
		owner := e.ownerOf(ev.WX, ev.WY, ev.WZ)
		e.queue.EmitNow(ChunkRebuildRequested{Coord: owner, Cause: CauseEdit})
	case RaycastEditRequested:
		e.handleRaycastEdit(ev)
	case RegistryReloadRequested:
		e.handleRegistryReload()
	case WorldgenReloadRequested:
		e.handleWorldgenReload(ev)
	}
}

func (e *Engine) ownerOf(wx, wy, wz int32) chunk.Coord {
	return chunk.OwnerOf(wx, wy, wz, e.conf.ChunkSx, e.conf.ChunkSy, e.conf.ChunkSz)
}

func (e *Engine) handleViewCenterChanged(ev ViewCenterChanged) {
	e.center = ev.Center
	evict := e.conf.evictRadius()
	evictSq := int64(evict) * int64(evict)
	for _, c := range e.mgr.coords() {
		if e.center.DistanceSq(c) > evictSq {
			e.queue.EmitNow(EnsureChunkUnloaded{Coord: c})
		}
	}
	loadSq := int64(e.conf.LoadRadius) * int64(e.conf.LoadRadius)
	for c, ent := range e.intents {
		if ent.cause == CauseStreamLoad && e.center.DistanceSq(c) > loadSq {
			delete(e.intents, c)
		}
	}
	for _, c := range sphericalChunkCoords(e.center, e.conf.LoadRadius) {
		if e.mgr.meshReady(c) {
			continue
		}
		if _, busy := e.mgr.inflight[c]; busy {
			continue
		}
		e.queue.EmitNow(EnsureChunkLoaded{Coord: c})
	}
}

// initFinalizeBits primes a chunk's owner-ready bits from the current
// borders and neighbor state so finalize never waits for events that
// already happened.
func (e *Engine) initFinalizeBits(c chunk.Coord) {
	nb := e.lighting.NeighborBorders(c)
	st := e.mgr.finalizeEntry(c)
	if nb.Xn != nil {
		st.negXReady = true
	}
	if nb.Yn != nil {
		st.negYReady = true
	}
	if nb.Zn != nil {
		st.negZReady = true
	}
	check := func(n chunk.Coord, set func()) {
		ent := e.mgr.entry(n)
		if ent.empty() {
			set()
			return
		}
		if fs, ok := e.mgr.finalize[n]; ok && fs.finalized {
			set()
		}
	}
	check(c.Offset(-1, 0, 0), func() { st.negXReady = true })
	check(c.Offset(0, -1, 0), func() { st.negYReady = true })
	check(c.Offset(0, 0, -1), func() { st.negZReady = true })
}

func (e *Engine) handleEnsureChunkLoaded(c chunk.Coord) {
	if ent := e.mgr.entry(c); ent.empty() {
		e.markEmptyChunkReady(c)
		return
	}
	if e.mgr.meshReady(c) {
		return
	}
	if _, busy := e.mgr.inflight[c]; busy {
		return
	}
	e.mgr.markLoading(c)
	e.initFinalizeBits(c)
	e.recordIntent(c, CauseStreamLoad)
}

func (e *Engine) handleEnsureChunkUnloaded(c chunk.Coord) {
	e.mgr.markMissing(c)
	e.clearInflight(c)
	delete(e.mgr.finalize, c)
	delete(e.intents, c)
	e.lighting.ClearChunk(c)
}

// markEmptyChunkReady treats an all-air chunk as instantly finalized:
// its borders are published as zero so neighbors' owner bits flip without
// waiting for a build that will never run.
func (e *Engine) markEmptyChunkReady(c chunk.Coord) {
	st := e.mgr.finalizeEntry(c)
	st.finalized = true
	st.requested = false
	var mask light.ChangeMask
	if changed, m := e.lighting.UpdateBorders(c, light.NewBorders(e.conf.ChunkSx, e.conf.ChunkSy, e.conf.ChunkSz)); changed {
		mask = m
	}
	if changed, m := e.lighting.UpdateMicroBorders(c, light.NewMicroBorders(e.conf.ChunkSx, e.conf.ChunkSy, e.conf.ChunkSz)); changed {
		mask.Or(m)
	}
	if mask.Any() {
		e.queue.EmitNow(LightBordersUpdated{Coord: c, Mask: mask})
	}
}

func (e *Engine) handleBuildJobRequested(ev BuildChunkJobRequested) {
	c := ev.Coord
	chunkEdits := e.edits.SnapshotForChunk(c)
	region := e.edits.SnapshotForRegion(c, 1)
	regionEdits := make(map[[3]int32]block.Block, len(region))
	for p, b := range region {
		regionEdits[[3]int32{p.X, p.Y, p.Z}] = b
	}
	profile := e.profiles[worldgen.ProfileKeyOf(c)]
	var prevBuf *chunk.Buf
	if ent := e.mgr.entry(c); ent != nil {
		if profile == nil {
			profile = ent.profile
		}
		if ent.buf != nil {
			prevBuf = ent.buf.Clone()
		}
	}
	job := runtime.BuildJob{
		Coord:       c,
		Neighbors:   ev.Neighbors,
		Rev:         ev.Rev,
		JobID:       ev.JobID,
		Kind:        laneFor(ev.Cause),
		ChunkEdits:  chunkEdits,
		RegionEdits: regionEdits,
		PrevBuf:     prevBuf,
		Profile:     profile,
		Reg:         e.Registry(),
	}
	if !e.rt.Submit(job) {
		// Lane saturated: put the intent back and let the next flush retry.
		e.log.Warn("worker lane full, retrying next tick", "coord", c, "cause", ev.Cause.String())
		e.clearInflight(c)
		e.recordIntent(c, ev.Cause)
	}
}

func (e *Engine) handleBuildCompleted(out runtime.JobOut) {
	c := out.Coord
	curRev := e.edits.Rev(c)
	if out.Rev < curRev {
		// Stale result. Re-issue only when no newer job is already underway.
		inflight := e.mgr.inflight[c]
		if inflight < curRev {
			neighbors := e.neighborMask(c)
			jobID := runtime.JobID(c, curRev, neighbors)
			e.mgr.inflight[c] = curRev
			e.inflightKind[c] = runtime.KindEdit
			e.queue.EmitNow(BuildChunkJobRequested{
				Coord: c, Neighbors: neighbors, Rev: curRev, JobID: jobID, Cause: CauseEdit,
			})
		}
		return
	}
	evict := e.conf.evictRadius()
	if e.center.DistanceSq(c) > int64(evict)*int64(evict) {
		e.clearInflight(c)
		return
	}
	if out.Profile != nil {
		e.profiles[worldgen.ProfileKeyOf(c)] = out.Profile
	}
	if out.Occupancy.IsEmpty() {
		delete(e.mgr.meshes, c)
		delete(e.mgr.grids, c)
		delete(e.mgr.atlas, c)
		e.lighting.ClearChunk(c)
		ent := e.mgr.markReady(c, chunk.OccupancyEmpty, nil, out.Rev, out.Profile)
		ent.lightingReady = true
		ent.meshReady = false
		e.clearInflight(c)
		e.edits.MarkBuilt(c, out.Rev)
		e.markEmptyChunkReady(c)
		return
	}
	if out.Mesh == nil || out.Buf == nil {
		e.log.Warn("populated chunk build missing outputs", "coord", c, "rev", out.Rev)
		e.clearInflight(c)
		return
	}
	e.mgr.meshes[c] = out.Mesh
	e.mgr.grids[c] = out.Grid
	e.mgr.atlas[c] = light.PackAtlasWithNeighbors(out.Grid, e.lighting.NeighborBorders(c))
	ent := e.mgr.markReady(c, out.Occupancy, out.Buf, out.Rev, out.Profile)
	ent.meshReady = true
	ent.lightingReady = out.Grid != nil
	e.clearInflight(c)
	e.edits.MarkBuilt(c, out.Rev)

	var mask light.ChangeMask
	if out.Borders != nil {
		if changed, m := e.lighting.UpdateBorders(c, out.Borders); changed {
			mask = m
		}
	}
	if out.Micro != nil {
		if changed, m := e.lighting.UpdateMicroBorders(c, out.Micro); changed {
			mask.Or(m)
		}
	}
	if mask.Any() {
		e.queue.EmitNow(LightBordersUpdated{Coord: c, Mask: mask})
	}

	if st, ok := e.mgr.finalize[c]; ok {
		if st.requested {
			// This build ran with the owners that requested the finalize;
			// its lighting already used the known seams.
			st.requested = false
			st.finalized = true
		} else if st.allOwnersReady() && !st.finalized {
			e.tryScheduleFinalize(c)
		}
	}
}

func (e *Engine) handleLightingRecomputed(ev ChunkLightingRecomputed) {
	c := ev.Coord
	if ev.Rev < e.edits.Rev(c) {
		e.clearInflight(c)
		return
	}
	gate := e.conf.evictRadius() + 1
	if e.center.DistanceSq(c) > int64(gate)*int64(gate) {
		e.clearInflight(c)
		return
	}
	e.mgr.grids[c] = ev.Grid
	e.mgr.atlas[c] = light.PackAtlasWithNeighbors(ev.Grid, e.lighting.NeighborBorders(c))
	if ent := e.mgr.entry(c); ent != nil {
		ent.lightingReady = true
	}
	if st, ok := e.mgr.finalize[c]; ok && st.requested {
		st.requested = false
		st.finalized = true
	}
	e.clearInflight(c)
}

// tryScheduleFinalize queues the lighting-only finalize pass for a loaded
// chunk, at most once until the finalize state is reset.
func (e *Engine) tryScheduleFinalize(c chunk.Coord) {
	st := e.mgr.finalizeEntry(c)
	if st.finalized || st.requested {
		return
	}
	ent := e.mgr.entry(c)
	if ent == nil || ent.state != stateReady || ent.occupancy.IsEmpty() {
		return
	}
	st.requested = true
	e.recordIntent(c, CauseLight)
}

func (e *Engine) handleLightBordersUpdated(ev LightBordersUpdated) {
	gate := e.conf.evictRadius() + 1
	gateSq := int64(gate) * int64(gate)
	inGate := func(c chunk.Coord) bool { return e.center.DistanceSq(c) <= gateSq }

	// A changed positive face makes this chunk a known owner for the
	// neighbor in that direction.
	ownerFace := func(neighbor chunk.Coord, set func(*finalizeState), others func(*finalizeState) bool) {
		st := e.mgr.finalizeEntry(neighbor)
		set(st)
		switch {
		case inGate(neighbor) && !st.finalized && others(st):
			e.tryScheduleFinalize(neighbor)
		case st.finalized && inGate(neighbor) && e.mgr.meshReady(neighbor):
			e.queue.EmitNow(ChunkRebuildRequested{Coord: neighbor, Cause: CauseLight})
		}
	}
	if ev.Mask.Xp {
		ownerFace(ev.Coord.Offset(1, 0, 0),
			func(st *finalizeState) { st.negXReady = true },
			func(st *finalizeState) bool { return st.negYReady && st.negZReady })
	}
	if ev.Mask.Yp {
		ownerFace(ev.Coord.Offset(0, 1, 0),
			func(st *finalizeState) { st.negYReady = true },
			func(st *finalizeState) bool { return st.negXReady && st.negZReady })
	}
	if ev.Mask.Zp {
		ownerFace(ev.Coord.Offset(0, 0, 1),
			func(st *finalizeState) { st.negZReady = true },
			func(st *finalizeState) bool { return st.negXReady && st.negYReady })
	}
	// Negative faces only refresh already-meshed neighbors.
	refresh := func(neighbor chunk.Coord) {
		if inGate(neighbor) && e.mgr.meshReady(neighbor) {
			e.queue.EmitNow(ChunkRebuildRequested{Coord: neighbor, Cause: CauseLight})
		}
	}
	if ev.Mask.Xn {
		refresh(ev.Coord.Offset(-1, 0, 0))
	}
	if ev.Mask.Yn {
		refresh(ev.Coord.Offset(0, -1, 0))
	}
	if ev.Mask.Zn {
		refresh(ev.Coord.Offset(0, 0, -1))
	}
}

// prepareChunkForEdit makes sure a not-yet-meshed chunk gets built carrying
// the new edit, and tears down any reliance on its previous emptiness.
func (e *Engine) prepareChunkForEdit(c chunk.Coord) {
	if ent := e.mgr.entry(c); ent.empty() {
		e.mgr.resetPositiveNeighborsFinalize(c)
		st := e.mgr.finalizeEntry(c)
		st.finalized = false
		st.requested = false
	}
	if e.mgr.meshReady(c) {
		return
	}
	if _, busy := e.mgr.inflight[c]; busy {
		return
	}
	e.mgr.markLoading(c)
	e.initFinalizeBits(c)
	e.recordIntent(c, CauseEdit)
}

func (e *Engine) handleBlockPlaced(ev BlockPlaced) {
	wasEmpty := e.mgr.entry(e.ownerOf(ev.WX, ev.WY, ev.WZ)).empty()
	e.edits.Set(ev.WX, ev.WY, ev.WZ, ev.Block)
	if ty, ok := e.Registry().Get(ev.Block.ID); ok {
		if em := ty.LightEmission(ev.Block.State); em > 0 {
			e.queue.EmitNow(LightEmitterAdded{
				WX: ev.WX, WY: ev.WY, WZ: ev.WZ, Level: em, Beacon: ty.IsBeam(),
			})
		}
	}
	if wasEmpty {
		e.mgr.resetPositiveNeighborsFinalize(e.ownerOf(ev.WX, ev.WY, ev.WZ))
	}
	for _, c := range e.edits.GetAffectedChunks(ev.WX, ev.WY, ev.WZ) {
		if e.mgr.meshReady(c) {
			e.queue.EmitNow(ChunkRebuildRequested{Coord: c, Cause: CauseEdit})
		} else {
			e.prepareChunkForEdit(c)
		}
	}
}

func (e *Engine) handleBlockRemoved(ev BlockRemoved) {
	prev := e.sampleWorldBlock(ev.WX, ev.WY, ev.WZ)
	if ty, ok := e.Registry().Get(prev.ID); ok && ty.LightEmission(prev.State) > 0 {
		e.queue.EmitNow(LightEmitterRemoved{WX: ev.WX, WY: ev.WY, WZ: ev.WZ})
	}
	e.edits.Set(ev.WX, ev.WY, ev.WZ, block.Air)
	for _, c := range e.edits.GetAffectedChunks(ev.WX, ev.WY, ev.WZ) {
		if e.mgr.meshReady(c) {
			e.queue.EmitNow(ChunkRebuildRequested{Coord: c, Cause: CauseEdit})
		} else {
			e.prepareChunkForEdit(c)
		}
	}
}

func (e *Engine) handleRaycastEdit(ev RaycastEditRequested) {
	reg := e.Registry()
	hit, prev, ok := raycastVoxels(ev.Origin, ev.Dir, raycastRange, func(wx, wy, wz int32) bool {
		b := e.sampleWorldBlock(wx, wy, wz)
		ty, found := reg.Get(b.ID)
		return found && ty.IsSolid(b.State)
	})
	if !ok {
		return
	}
	if ev.Place {
		e.queue.EmitNow(BlockPlaced{WX: prev[0], WY: prev[1], WZ: prev[2], Block: ev.Block})
		return
	}
	e.queue.EmitNow(BlockRemoved{WX: hit[0], WY: hit[1], WZ: hit[2]})
}

func (e *Engine) handleRegistryReload() {
	if e.conf.MaterialsPath == "" || e.conf.BlocksPath == "" {
		e.log.Warn("registry reload requested without catalog paths")
		return
	}
	reg, err := block.LoadRegistry(e.conf.MaterialsPath, e.conf.BlocksPath)
	if err != nil {
		e.log.Warn("registry reload failed", "err", err)
		return
	}
	e.reg.Store(reg)
	e.log.Info("reloaded block registry", "generation", reg.Generation)
	for _, c := range e.mgr.readyCoords() {
		e.queue.EmitNow(ChunkRebuildRequested{Coord: c, Cause: CauseHotReload})
	}
}

func (e *Engine) handleWorldgenReload(ev WorldgenReloadRequested) {
	e.world.UpdateParams(ev.Params)
	for k := range e.profiles {
		delete(e.profiles, k)
	}
	for _, ent := range e.mgr.chunks {
		ent.buf = nil
		ent.profile = nil
	}
	e.log.Info("worldgen parameters changed, invalidated cached buffers", "rev", e.world.Rev())
	for _, c := range e.mgr.readyCoords() {
		e.queue.EmitNow(ChunkRebuildRequested{Coord: c, Cause: CauseHotReload})
	}
}

func floorDivF(v float64, size int) int32 {
	return int32(math.Floor(v / float64(size)))
}
