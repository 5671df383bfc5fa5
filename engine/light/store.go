package light

import (
	"sync"
	"sync/atomic"

	"github.com/stonelantern/stonelantern/engine/chunk"
)

// Emitter is one registered light source, addressed by chunk-local
// coordinates. Inserts are idempotent on the local cell.
type Emitter struct {
	Lx, Ly, Lz int
	Level      uint8
	Beacon     bool
}

// Store is the process-wide lighting state: last-published border planes and
// micro seams per chunk, the emitter registry, and the day-cycle skylight
// ceiling. Each internal map is guarded by its own mutex.
type Store struct {
	sx, sy, sz int

	skylightMax atomic.Uint32

	bordersMu sync.Mutex
	borders   map[chunk.Coord]*Borders

	emittersMu sync.Mutex
	emitters   map[chunk.Coord][]Emitter

	microMu sync.Mutex
	micro   map[chunk.Coord]*MicroBorders
}

// NewStore creates an empty lighting store for the given chunk dimensions.
// The skylight ceiling starts at full daylight.
func NewStore(sx, sy, sz int) *Store {
	s := &Store{
		sx: sx, sy: sy, sz: sz,
		borders:  make(map[chunk.Coord]*Borders),
		emitters: make(map[chunk.Coord][]Emitter),
		micro:    make(map[chunk.Coord]*MicroBorders),
	}
	s.skylightMax.Store(255)
	return s
}

// Dims returns the chunk dimensions the store was created for.
func (s *Store) Dims() (int, int, int) { return s.sx, s.sy, s.sz }

// SkylightMax returns the current day-cycle sky value.
func (s *Store) SkylightMax() uint8 { return uint8(s.skylightMax.Load()) }

// SetSkylightMax updates the day-cycle sky value used by later recomputes.
func (s *Store) SetSkylightMax(v uint8) { s.skylightMax.Store(uint32(v)) }

// UpdateBorders replaces the stored planes of a chunk. It returns whether
// any byte differed together with a per-face change mask; the caller uses
// the mask as the single truth for neighbor notification.
func (s *Store) UpdateBorders(c chunk.Coord, b *Borders) (bool, ChangeMask) {
	s.bordersMu.Lock()
	defer s.bordersMu.Unlock()
	prev, ok := s.borders[c]
	if !ok {
		s.borders[c] = b
		return true, ChangeMask{Xn: true, Xp: true, Yn: true, Yp: true, Zn: true, Zp: true}
	}
	mask := diffBorders(prev, b)
	if !mask.Any() {
		return false, mask
	}
	s.borders[c] = b
	return true, mask
}

// Borders returns the stored planes of a chunk, if published.
func (s *Store) Borders(c chunk.Coord) (*Borders, bool) {
	s.bordersMu.Lock()
	defer s.bordersMu.Unlock()
	b, ok := s.borders[c]
	return b, ok
}

// NeighborBorders aggregates the published planes of the six neighbors,
// mirrored so each neighbor's facing plane lands in this chunk's slot for
// that direction.
func (s *Store) NeighborBorders(c chunk.Coord) *NeighborBorders {
	s.bordersMu.Lock()
	defer s.bordersMu.Unlock()
	nb := &NeighborBorders{}
	if b, ok := s.borders[c.Offset(-1, 0, 0)]; ok {
		nb.Xn, nb.SkXn, nb.BcnXn, nb.BcnDirXn = b.Xp, b.SkXp, b.BcnXp, b.BcnDirXp
	}
	if b, ok := s.borders[c.Offset(1, 0, 0)]; ok {
		nb.Xp, nb.SkXp, nb.BcnXp, nb.BcnDirXp = b.Xn, b.SkXn, b.BcnXn, b.BcnDirXn
	}
	if b, ok := s.borders[c.Offset(0, 0, -1)]; ok {
		nb.Zn, nb.SkZn, nb.BcnZn, nb.BcnDirZn = b.Zp, b.SkZp, b.BcnZp, b.BcnDirZp
	}
	if b, ok := s.borders[c.Offset(0, 0, 1)]; ok {
		nb.Zp, nb.SkZp, nb.BcnZp, nb.BcnDirZp = b.Zn, b.SkZn, b.BcnZn, b.BcnDirZn
	}
	if b, ok := s.borders[c.Offset(0, -1, 0)]; ok {
		nb.Yn, nb.SkYn, nb.BcnYn = b.Yp, b.SkYp, b.BcnYp
	}
	if b, ok := s.borders[c.Offset(0, 1, 0)]; ok {
		nb.Yp, nb.SkYp, nb.BcnYp = b.Yn, b.SkYn, b.BcnYn
	}
	return nb
}

// UpdateMicroBorders replaces the stored micro seams of a chunk, returning
// whether any byte differed and the per-face change mask.
func (s *Store) UpdateMicroBorders(c chunk.Coord, mb *MicroBorders) (bool, ChangeMask) {
	s.microMu.Lock()
	defer s.microMu.Unlock()
	prev, ok := s.micro[c]
	if !ok {
		s.micro[c] = mb
		return true, ChangeMask{Xn: true, Xp: true, Yn: true, Yp: true, Zn: true, Zp: true}
	}
	mask := diffMicroBorders(prev, mb)
	if !mask.Any() {
		return false, mask
	}
	s.micro[c] = mb
	return true, mask
}

// NeighborMicroBorders aggregates the published micro seams of the six
// neighbors, mirrored like NeighborBorders.
func (s *Store) NeighborMicroBorders(c chunk.Coord) *NeighborMicroBorders {
	s.microMu.Lock()
	defer s.microMu.Unlock()
	nb := &NeighborMicroBorders{Mxs: 2 * s.sx, Mys: 2 * s.sy, Mzs: 2 * s.sz}
	if m, ok := s.micro[c.Offset(-1, 0, 0)]; ok {
		nb.XmSkNeg, nb.XmBlNeg = m.XmSkPos, m.XmBlPos
	}
	if m, ok := s.micro[c.Offset(1, 0, 0)]; ok {
		nb.XmSkPos, nb.XmBlPos = m.XmSkNeg, m.XmBlNeg
	}
	if m, ok := s.micro[c.Offset(0, 0, -1)]; ok {
		nb.ZmSkNeg, nb.ZmBlNeg = m.ZmSkPos, m.ZmBlPos
	}
	if m, ok := s.micro[c.Offset(0, 0, 1)]; ok {
		nb.ZmSkPos, nb.ZmBlPos = m.ZmSkNeg, m.ZmBlNeg
	}
	if m, ok := s.micro[c.Offset(0, -1, 0)]; ok {
		nb.YmSkNeg, nb.YmBlNeg = m.YmSkPos, m.YmBlPos
	}
	if m, ok := s.micro[c.Offset(0, 1, 0)]; ok {
		nb.YmSkPos, nb.YmBlPos = m.YmSkNeg, m.YmBlNeg
	}
	return nb
}

// AddEmitterWorld registers a light source at world coordinates. The insert
// is idempotent for the owning cell.
func (s *Store) AddEmitterWorld(wx, wy, wz int32, level uint8, beacon bool) {
	c := chunk.OwnerOf(wx, wy, wz, s.sx, s.sy, s.sz)
	lx, ly, lz := chunk.LocalOf(wx, wy, wz, s.sx, s.sy, s.sz)
	s.emittersMu.Lock()
	defer s.emittersMu.Unlock()
	for _, e := range s.emitters[c] {
		if e.Lx == lx && e.Ly == ly && e.Lz == lz {
			return
		}
	}
	s.emitters[c] = append(s.emitters[c], Emitter{Lx: lx, Ly: ly, Lz: lz, Level: level, Beacon: beacon})
}

// RemoveEmitterWorld removes the light source at world coordinates.
func (s *Store) RemoveEmitterWorld(wx, wy, wz int32) {
	c := chunk.OwnerOf(wx, wy, wz, s.sx, s.sy, s.sz)
	lx, ly, lz := chunk.LocalOf(wx, wy, wz, s.sx, s.sy, s.sz)
	s.emittersMu.Lock()
	defer s.emittersMu.Unlock()
	list := s.emitters[c]
	kept := list[:0]
	for _, e := range list {
		if !(e.Lx == lx && e.Ly == ly && e.Lz == lz) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(s.emitters, c)
		return
	}
	s.emitters[c] = kept
}

// EmittersForChunk returns a copy of the chunk's registered emitters.
func (s *Store) EmittersForChunk(c chunk.Coord) []Emitter {
	s.emittersMu.Lock()
	defer s.emittersMu.Unlock()
	list := s.emitters[c]
	out := make([]Emitter, len(list))
	copy(out, list)
	return out
}

// ClearChunk drops borders, emitters and micro seams for a chunk.
func (s *Store) ClearChunk(c chunk.Coord) {
	s.bordersMu.Lock()
	delete(s.borders, c)
	s.bordersMu.Unlock()
	s.emittersMu.Lock()
	delete(s.emitters, c)
	s.emittersMu.Unlock()
	s.microMu.Lock()
	delete(s.micro, c)
	s.microMu.Unlock()
}

// ClearAllBorders drops every macro border plane. Micro seams are retained.
func (s *Store) ClearAllBorders() {
	s.bordersMu.Lock()
	s.borders = make(map[chunk.Coord]*Borders)
	s.bordersMu.Unlock()
}
