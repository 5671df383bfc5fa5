package engine

import (
	"sort"

	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/runtime"
)

// intentEntry is one pending rebuild/load desire for a chunk.
type intentEntry struct {
	cause       RebuildCause
	requestedAt uint64
}

// causePriority orders causes for scheduling: Edit > Light > HotReload >
// StreamLoad.
func causePriority(c RebuildCause) int {
	switch c {
	case CauseEdit:
		return 3
	case CauseLight:
		return 2
	case CauseHotReload:
		return 1
	}
	return 0
}

// recordIntent coalesces an intent into the table. Re-inserting with a
// higher-priority cause upgrades the entry; lower-priority inserts are
// ignored.
func (e *Engine) recordIntent(c chunk.Coord, cause RebuildCause) {
	if cur, ok := e.intents[c]; ok {
		if causePriority(cause) > causePriority(cur.cause) {
			cur.cause = cause
			e.intents[c] = cur
		}
		return
	}
	e.intents[c] = intentEntry{cause: cause, requestedAt: e.queue.tick}
}

func laneFor(cause RebuildCause) runtime.JobKind {
	switch cause {
	case CauseEdit:
		return runtime.KindEdit
	case CauseLight:
		return runtime.KindLight
	}
	return runtime.KindBg
}

// flushIntents converts the highest-priority intents into build jobs,
// respecting the per-lane inflight caps. Unscheduled intents stay in the
// table and are re-scored next tick.
func (e *Engine) flushIntents() {
	if len(e.intents) == 0 {
		return
	}
	loadSq := int64(e.conf.LoadRadius) * int64(e.conf.LoadRadius)
	type scored struct {
		coord chunk.Coord
		entry intentEntry
		dist  int64
	}
	pending := make([]scored, 0, len(e.intents))
	for c, ent := range e.intents {
		dist := e.center.DistanceSq(c)
		if ent.cause == CauseStreamLoad && dist > loadSq {
			delete(e.intents, c)
			continue
		}
		pending = append(pending, scored{coord: c, entry: ent, dist: dist})
	}
	sort.Slice(pending, func(i, j int) bool {
		pi, pj := causePriority(pending[i].entry.cause), causePriority(pending[j].entry.cause)
		if pi != pj {
			return pi > pj
		}
		if pending[i].dist != pending[j].dist {
			return pending[i].dist < pending[j].dist
		}
		return pending[i].coord.Less(pending[j].coord)
	})

	laneInflight := [3]int{}
	for c := range e.mgr.inflight {
		if kind, ok := e.inflightKind[c]; ok {
			laneInflight[kind]++
		}
	}
	for _, p := range pending {
		lane := laneFor(p.entry.cause)
		if laneInflight[lane] >= e.conf.MaxInflightPerLane {
			continue
		}
		if _, busy := e.mgr.inflight[p.coord]; busy {
			continue
		}
		rev := e.edits.Rev(p.coord)
		neighbors := e.neighborMask(p.coord)
		jobID := runtime.JobID(p.coord, rev, neighbors)
		e.mgr.inflight[p.coord] = rev
		e.inflightKind[p.coord] = lane
		laneInflight[lane]++
		delete(e.intents, p.coord)
		// The flush runs after this tick's dispatch loop; target the next
		// tick so the request is never stranded in a past bucket.
		e.queue.EmitAfter(BuildChunkJobRequested{
			Coord:     p.coord,
			Neighbors: neighbors,
			Rev:       rev,
			JobID:     jobID,
			Cause:     p.entry.cause,
		}, 1)
	}
}

// neighborMask reports which of the six neighbor borders are currently
// published, one bit per face in lighting face order.
func (e *Engine) neighborMask(c chunk.Coord) uint8 {
	var mask uint8
	offsets := [6]chunk.Coord{
		c.Offset(0, 1, 0), c.Offset(0, -1, 0),
		c.Offset(1, 0, 0), c.Offset(-1, 0, 0),
		c.Offset(0, 0, 1), c.Offset(0, 0, -1),
	}
	for i, n := range offsets {
		if _, ok := e.lighting.Borders(n); ok {
			mask |= 1 << uint(i)
		}
	}
	return mask
}
