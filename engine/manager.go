package engine

import (
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/light"
	"github.com/stonelantern/stonelantern/engine/mesh"
	"github.com/stonelantern/stonelantern/engine/worldgen"
)

// entryState is the residency phase of a chunk.
type entryState uint8

const (
	stateMissing entryState = iota
	stateLoading
	stateReady
)

// chunkEntry is one resident (or loading) chunk. The manager exclusively
// owns the lifecycle; workers only ever see clones of the buffer.
type chunkEntry struct {
	state         entryState
	occupancy     chunk.Occupancy
	buf           *chunk.Buf
	builtRev      uint64
	lightingReady bool
	meshReady     bool
	profile       *worldgen.ColumnProfile
}

func (e *chunkEntry) empty() bool {
	return e != nil && e.state == stateReady && e.occupancy.IsEmpty()
}

// finalizeState tracks the three negative-owner readiness bits of a chunk.
// A chunk counts as finalized only after a lighting pass ran with all three
// negative neighbor borders known.
type finalizeState struct {
	negXReady, negYReady, negZReady bool
	requested                       bool
	finalized                       bool
}

func (f *finalizeState) allOwnersReady() bool {
	return f.negXReady && f.negYReady && f.negZReady
}

// manager holds chunk residency, finalize tracking and the rendered
// outputs retained for the renderer collaborator.
type manager struct {
	chunks   map[chunk.Coord]*chunkEntry
	finalize map[chunk.Coord]*finalizeState
	inflight map[chunk.Coord]uint64

	meshes map[chunk.Coord]*mesh.ChunkMesh
	grids  map[chunk.Coord]*light.Grid
	atlas  map[chunk.Coord]*light.Atlas
}

func newManager() *manager {
	return &manager{
		chunks:   make(map[chunk.Coord]*chunkEntry),
		finalize: make(map[chunk.Coord]*finalizeState),
		inflight: make(map[chunk.Coord]uint64),
		meshes:   make(map[chunk.Coord]*mesh.ChunkMesh),
		grids:    make(map[chunk.Coord]*light.Grid),
		atlas:    make(map[chunk.Coord]*light.Atlas),
	}
}

func (m *manager) entry(c chunk.Coord) *chunkEntry {
	return m.chunks[c]
}

func (m *manager) meshReady(c chunk.Coord) bool {
	e := m.chunks[c]
	return e != nil && e.state == stateReady && e.meshReady
}

func (m *manager) markLoading(c chunk.Coord) {
	e := m.chunks[c]
	if e == nil {
		e = &chunkEntry{}
		m.chunks[c] = e
	}
	e.state = stateLoading
	e.meshReady = false
}

func (m *manager) markReady(c chunk.Coord, occ chunk.Occupancy, buf *chunk.Buf, rev uint64, profile *worldgen.ColumnProfile) *chunkEntry {
	e := m.chunks[c]
	if e == nil {
		e = &chunkEntry{}
		m.chunks[c] = e
	}
	e.state = stateReady
	e.occupancy = occ
	e.buf = buf
	e.builtRev = rev
	if profile != nil {
		e.profile = profile
	}
	return e
}

func (m *manager) markMissing(c chunk.Coord) {
	delete(m.chunks, c)
	delete(m.meshes, c)
	delete(m.grids, c)
	delete(m.atlas, c)
}

func (m *manager) finalizeEntry(c chunk.Coord) *finalizeState {
	st := m.finalize[c]
	if st == nil {
		st = &finalizeState{}
		m.finalize[c] = st
	}
	return st
}

// resetPositiveNeighborsFinalize clears the owner bits that the positive
// neighbors of c derived from c's previous state, used when an edit
// repopulates a chunk a neighbor relied on being empty.
func (m *manager) resetPositiveNeighborsFinalize(c chunk.Coord) {
	reset := func(n chunk.Coord, clear func(*finalizeState)) {
		if st, ok := m.finalize[n]; ok {
			clear(st)
			st.finalized = false
			st.requested = false
		}
	}
	reset(c.Offset(1, 0, 0), func(st *finalizeState) { st.negXReady = false })
	reset(c.Offset(0, 1, 0), func(st *finalizeState) { st.negYReady = false })
	reset(c.Offset(0, 0, 1), func(st *finalizeState) { st.negZReady = false })
}

// coords returns every tracked chunk coordinate, resident or loading.
func (m *manager) coords() []chunk.Coord {
	out := make([]chunk.Coord, 0, len(m.chunks))
	for c := range m.chunks {
		out = append(out, c)
	}
	return out
}

func (m *manager) readyCoords() []chunk.Coord {
	out := make([]chunk.Coord, 0, len(m.chunks))
	for c, e := range m.chunks {
		if e.state == stateReady {
			out = append(out, c)
		}
	}
	return out
}
