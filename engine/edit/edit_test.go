package edit

import (
	"testing"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

func TestSetThenGet(t *testing.T) {
	s := NewStore(16, 16, 16)
	want := block.Block{ID: 5, State: 3}
	s.Set(10, 20, 30, want)
	got, ok := s.Get(10, 20, 30)
	if !ok || got != want {
		t.Fatalf("Get = %v ok=%v, want %v", got, ok, want)
	}
	if _, ok := s.Get(10, 20, 31); ok {
		t.Fatalf("unexpected override at untouched position")
	}
}

func TestInteriorEditBumpsOwnerOnly(t *testing.T) {
	s := NewStore(16, 16, 16)
	s.Set(5, 5, 5, block.Block{ID: 1})
	owner := chunk.At(0, 0, 0)
	if got := s.Rev(owner); got != 1 {
		t.Fatalf("owner rev = %d, want 1", got)
	}
	if got := s.Rev(chunk.At(-1, 0, 0)); got != 0 {
		t.Fatalf("neighbor rev bumped by interior edit")
	}
}

func TestSeamEditBumpsNeighbors(t *testing.T) {
	s := NewStore(16, 16, 16)
	// Corner voxel touches three face neighbors.
	s.Set(0, 0, 0, block.Block{ID: 1})
	for _, c := range []chunk.Coord{
		chunk.At(0, 0, 0), chunk.At(-1, 0, 0), chunk.At(0, -1, 0), chunk.At(0, 0, -1),
	} {
		if got := s.Rev(c); got != 1 {
			t.Fatalf("rev(%v) = %d, want 1", c, got)
		}
	}
	if got := s.Rev(chunk.At(1, 0, 0)); got != 0 {
		t.Fatalf("far neighbor rev bumped")
	}
}

func TestGetAffectedChunks(t *testing.T) {
	s := NewStore(16, 16, 16)
	got := s.GetAffectedChunks(15, 8, 8)
	if len(got) != 2 {
		t.Fatalf("affected = %v, want owner plus +X neighbor", got)
	}
	if got[0] != chunk.At(0, 0, 0) || got[1] != chunk.At(1, 0, 0) {
		t.Fatalf("affected = %v", got)
	}
}

func TestMarkBuiltMonotone(t *testing.T) {
	s := NewStore(16, 16, 16)
	c := chunk.At(2, 0, 2)
	s.MarkBuilt(c, 5)
	s.MarkBuilt(c, 3)
	if got := s.BuiltRev(c); got != 5 {
		t.Fatalf("built rev regressed to %d", got)
	}
}

func TestSnapshots(t *testing.T) {
	s := NewStore(4, 4, 4)
	s.Set(0, 0, 0, block.Block{ID: 1})
	s.Set(5, 0, 0, block.Block{ID: 2})  // chunk (1,0,0)
	s.Set(17, 0, 0, block.Block{ID: 3}) // chunk (4,0,0), outside region r=1

	snap := s.SnapshotForChunk(chunk.At(0, 0, 0))
	if len(snap) != 1 {
		t.Fatalf("chunk snapshot = %v", snap)
	}
	region := s.SnapshotForRegion(chunk.At(0, 0, 0), 1)
	if len(region) != 2 {
		t.Fatalf("region snapshot = %v", region)
	}
	// Mutating a snapshot must not leak into the store.
	snap[WorldPos{0, 0, 0}] = block.Block{ID: 99}
	if got, _ := s.Get(0, 0, 0); got.ID != 1 {
		t.Fatalf("snapshot aliases store")
	}
}
