// Package edit holds the world-sparse block overrides applied on top of
// worldgen, together with the per-chunk revision counters that drive rebuild
// scheduling.
package edit

import (
	"sync"

	"github.com/brentp/intintmap"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

// WorldPos is a world-space block position used as the override key.
type WorldPos struct {
	X, Y, Z int32
}

// Store maps world positions to block overrides and tracks a monotonically
// increasing revision per chunk. All methods are safe for concurrent use.
type Store struct {
	sx, sy, sz int

	mu       sync.Mutex
	edits    map[WorldPos]block.Block
	rev      *intintmap.Map
	builtRev *intintmap.Map
}

// NewStore creates an empty store for the given chunk dimensions.
func NewStore(sx, sy, sz int) *Store {
	return &Store{
		sx: sx, sy: sy, sz: sz,
		edits:    make(map[WorldPos]block.Block),
		rev:      intintmap.New(1024, 0.6),
		builtRev: intintmap.New(1024, 0.6),
	}
}

// Set writes an override and bumps the revision of the owning chunk and of
// any face neighbor whose seam the position touches.
func (s *Store) Set(wx, wy, wz int32, b block.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[WorldPos{wx, wy, wz}] = b
	for _, c := range s.affected(wx, wy, wz) {
		s.bumpLocked(c)
	}
}

// Get returns the override at a world position, if present.
func (s *Store) Get(wx, wy, wz int32) (block.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.edits[WorldPos{wx, wy, wz}]
	return b, ok
}

// BumpRegionAround bumps the revision of the owning chunk and seam
// neighbors of a position without writing an override. Returns the touched
// chunks.
func (s *Store) BumpRegionAround(wx, wy, wz int32) []chunk.Coord {
	s.mu.Lock()
	defer s.mu.Unlock()
	coords := s.affected(wx, wy, wz)
	for _, c := range coords {
		s.bumpLocked(c)
	}
	return coords
}

// GetAffectedChunks enumerates the owning chunk plus up to three face
// neighbors whose seams intersect the position.
func (s *Store) GetAffectedChunks(wx, wy, wz int32) []chunk.Coord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.affected(wx, wy, wz)
}

func (s *Store) affected(wx, wy, wz int32) []chunk.Coord {
	owner := chunk.OwnerOf(wx, wy, wz, s.sx, s.sy, s.sz)
	lx, ly, lz := chunk.LocalOf(wx, wy, wz, s.sx, s.sy, s.sz)
	coords := append(make([]chunk.Coord, 0, 4), owner)
	if lx == 0 {
		coords = append(coords, owner.Offset(-1, 0, 0))
	} else if lx == s.sx-1 {
		coords = append(coords, owner.Offset(1, 0, 0))
	}
	if ly == 0 {
		coords = append(coords, owner.Offset(0, -1, 0))
	} else if ly == s.sy-1 {
		coords = append(coords, owner.Offset(0, 1, 0))
	}
	if lz == 0 {
		coords = append(coords, owner.Offset(0, 0, -1))
	} else if lz == s.sz-1 {
		coords = append(coords, owner.Offset(0, 0, 1))
	}
	return coords
}

func (s *Store) bumpLocked(c chunk.Coord) {
	key := c.Pack()
	cur, _ := s.rev.Get(key)
	s.rev.Put(key, cur+1)
}

// Rev returns the current revision of a chunk.
func (s *Store) Rev(c chunk.Coord) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.rev.Get(c.Pack())
	return uint64(v)
}

// BuiltRev returns the revision last marked as built for a chunk.
func (s *Store) BuiltRev(c chunk.Coord) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.builtRev.Get(c.Pack())
	return uint64(v)
}

// MarkBuilt records that a build at the given revision completed. The value
// is monotone: older revisions never overwrite newer ones.
func (s *Store) MarkBuilt(c chunk.Coord, rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.Pack()
	if cur, _ := s.builtRev.Get(key); uint64(cur) < rev {
		s.builtRev.Put(key, int64(rev))
	}
}

// SnapshotForChunk clones the overrides belonging to one chunk so a worker
// can consume them without re-entering the store.
func (s *Store) SnapshotForChunk(c chunk.Coord) map[WorldPos]block.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[WorldPos]block.Block)
	for p, b := range s.edits {
		if chunk.OwnerOf(p.X, p.Y, p.Z, s.sx, s.sy, s.sz) == c {
			out[p] = b
		}
	}
	return out
}

// SnapshotForRegion clones the overrides of the (2r+1)^3 chunk neighborhood
// centred on c.
func (s *Store) SnapshotForRegion(c chunk.Coord, r int32) map[WorldPos]block.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[WorldPos]block.Block)
	for p, b := range s.edits {
		o := chunk.OwnerOf(p.X, p.Y, p.Z, s.sx, s.sy, s.sz)
		if o.X >= c.X-r && o.X <= c.X+r && o.Y >= c.Y-r && o.Y <= c.Y+r && o.Z >= c.Z-r && o.Z <= c.Z+r {
			out[p] = b
		}
	}
	return out
}

// All returns a copy of every override, used by the persistence layer.
func (s *Store) All() map[WorldPos]block.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[WorldPos]block.Block, len(s.edits))
	for p, b := range s.edits {
		out[p] = b
	}
	return out
}

// Replay applies persisted overrides without bumping revisions, used when
// loading a saved world before the first build.
func (s *Store) Replay(edits map[WorldPos]block.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, b := range edits {
		s.edits[p] = b
	}
}
