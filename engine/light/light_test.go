package light

import (
	"bytes"
	"testing"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

func u16(v uint16) *uint16 { return &v }
func bp(v bool) *bool      { return &v }

func testRegistry(t *testing.T) *block.Registry {
	t.Helper()
	mats := block.NewMaterialCatalog([]block.Material{{Key: "stone"}})
	cfg := block.BlocksConfig{Blocks: []block.BlockDef{
		{Name: "air", ID: u16(0), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true)},
		{Name: "stone", ID: u16(1), Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "stone"}}},
		{Name: "fence", ID: u16(2), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true),
			Shape: &block.ShapeConfig{Simple: "fence"}},
		{Name: "slab", ID: u16(3), BlocksSkylight: bp(false), PropagatesLight: bp(true),
			Shape:       &block.ShapeConfig{Detailed: &block.ShapeDetailed{Kind: "slab", Half: &block.PropFrom{From: "half"}}},
			StateSchema: map[string][]string{"half": {"bottom", "top"}}},
		{Name: "slab_same", ID: u16(4), BlocksSkylight: bp(false), PropagatesLight: bp(true),
			Shape:       &block.ShapeConfig{Detailed: &block.ShapeDetailed{Kind: "slab", Half: &block.PropFrom{From: "half"}}},
			StateSchema: map[string][]string{"half": {"bottom", "top"}},
			Seam:        &block.SeamDef{DontOccludeSame: true}},
	}}
	reg, err := block.NewRegistry(mats, cfg)
	if err != nil {
		t.Fatalf("compile registry: %v", err)
	}
	return reg
}

func fillBuf(c chunk.Coord, sx, sy, sz int, fill func(x, y, z int) block.Block) *chunk.Buf {
	buf := chunk.NewBuf(c, sx, sy, sz)
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				buf.SetLocal(x, y, z, fill(x, y, z))
			}
		}
	}
	return buf
}

func airBuf(c chunk.Coord, sx, sy, sz int) *chunk.Buf {
	return chunk.NewBuf(c, sx, sy, sz)
}

func TestCoarseNeighborBlockSeeding(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 2, 2, 2
	store := NewStore(sx, sy, sz)
	store.SetSkylightMax(0)
	buf := airBuf(chunk.At(0, 0, 0), sx, sy, sz)

	nb := NewBorders(sx, sy, sz)
	for i := range nb.Xp {
		nb.Xp[i] = 200
	}
	store.UpdateBorders(chunk.At(-1, 0, 0), nb)

	g := Compute(buf, store, reg)
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			if got := g.BlockLight[g.Idx(0, y, z)]; got != 168 {
				t.Fatalf("block_light[0,%d,%d] = %d, want 168", y, z, got)
			}
			if got := g.BlockLight[g.Idx(sx-1, y, z)]; got != 136 {
				t.Fatalf("block_light[1,%d,%d] = %d, want 136", y, z, got)
			}
		}
	}
	b := BordersFromGrid(g)
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			if b.Xn[y*sz+z] != 168 {
				t.Fatalf("extracted xn plane = %d, want 168", b.Xn[y*sz+z])
			}
		}
	}
}

func TestMicroNeighborOverridesCoarse(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 2, 2, 2
	store := NewStore(sx, sy, sz)
	store.SetSkylightMax(0)
	buf := airBuf(chunk.At(0, 0, 0), sx, sy, sz)

	coarse := NewBorders(sx, sy, sz)
	for i := range coarse.Xp {
		coarse.Xp[i] = 200
	}
	store.UpdateBorders(chunk.At(-1, 0, 0), coarse)

	mb := NewMicroBorders(sx, sy, sz)
	for i := range mb.XmBlPos {
		mb.XmBlPos[i] = 200
	}
	store.UpdateMicroBorders(chunk.At(-1, 0, 0), mb)

	g := Compute(buf, store, reg)
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			if got := g.BlockLight[g.Idx(0, y, z)]; got != 184 {
				t.Fatalf("block_light[0,%d,%d] = %d, want 184", y, z, got)
			}
		}
	}
}

func TestSkylightCoarseAndMicroPrecedence(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 2, 2, 2
	stoneID, _ := reg.IDByName("stone")
	// Stone roof: column seeding stops at the top layer.
	roof := func(x, y, z int) block.Block {
		if y == sy-1 {
			return block.Block{ID: stoneID}
		}
		return block.Air
	}
	buf := fillBuf(chunk.At(0, 0, 0), sx, sy, sz, roof)

	store := NewStore(sx, sy, sz)
	nb := NewBorders(sx, sy, sz)
	for i := range nb.SkXp {
		nb.SkXp[i] = 200
	}
	store.UpdateBorders(chunk.At(-1, 0, 0), nb)
	g := Compute(buf, store, reg)
	for z := 0; z < sz; z++ {
		if got := g.Skylight[g.Idx(0, 0, z)]; got != 168 {
			t.Fatalf("skylight[0,0,%d] = %d, want 168", z, got)
		}
		if got := g.Skylight[g.Idx(sx-1, 0, z)]; got != 136 {
			t.Fatalf("skylight[1,0,%d] = %d, want 136", z, got)
		}
	}

	store2 := NewStore(sx, sy, sz)
	store2.UpdateBorders(chunk.At(-1, 0, 0), nb)
	mb := NewMicroBorders(sx, sy, sz)
	for i := range mb.XmSkPos {
		mb.XmSkPos[i] = 200
	}
	store2.UpdateMicroBorders(chunk.At(-1, 0, 0), mb)
	g2 := Compute(buf, store2, reg)
	for z := 0; z < sz; z++ {
		if got := g2.Skylight[g2.Idx(0, 0, z)]; got != 184 {
			t.Fatalf("skylight[0,0,%d] = %d, want 184 via micro seam", z, got)
		}
	}
}

func TestEmitterThenRemove(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 2, 1, 1
	store := NewStore(sx, sy, sz)
	store.SetSkylightMax(0)
	buf := airBuf(chunk.At(0, 0, 0), sx, sy, sz)

	store.AddEmitterWorld(0, 0, 0, 200, false)
	g := Compute(buf, store, reg)
	if got := g.BlockLight[g.Idx(0, 0, 0)]; got != 200 {
		t.Fatalf("block_light[0] = %d, want 200", got)
	}
	if got := g.BlockLight[g.Idx(1, 0, 0)]; got != 184 {
		t.Fatalf("block_light[1] = %d, want 184", got)
	}

	store.RemoveEmitterWorld(0, 0, 0)
	g2 := Compute(buf, store, reg)
	if g2.BlockLight[g2.Idx(0, 0, 0)] != 0 || g2.BlockLight[g2.Idx(1, 0, 0)] != 0 {
		t.Fatalf("light remains after emitter removal: %v", g2.BlockLight)
	}
}

func TestVerticalNeighborSeeding(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 2, 2, 2
	store := NewStore(sx, sy, sz)
	store.SetSkylightMax(0)
	buf := airBuf(chunk.At(0, 0, 0), sx, sy, sz)

	below := NewBorders(sx, sy, sz)
	for i := range below.Yp {
		below.Yp[i] = 200
	}
	store.UpdateBorders(chunk.At(0, -1, 0), below)
	above := NewBorders(sx, sy, sz)
	for i := range above.Yn {
		above.Yn[i] = 180
	}
	store.UpdateBorders(chunk.At(0, 1, 0), above)

	g := Compute(buf, store, reg)
	for z := 0; z < sz; z++ {
		for x := 0; x < sx; x++ {
			if got := g.BlockLight[g.Idx(x, 0, z)]; got != 168 {
				t.Fatalf("block_light[%d,0,%d] = %d, want 168", x, z, got)
			}
			if got := g.BlockLight[g.Idx(x, sy-1, z)]; got != 148 {
				t.Fatalf("block_light[%d,1,%d] = %d, want 148", x, z, got)
			}
		}
	}
}

func TestSkylightColumnOpenAndBlocked(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 1, 2, 1
	store := NewStore(sx, sy, sz)
	stoneID, _ := reg.IDByName("stone")

	gAir := Compute(airBuf(chunk.At(0, 0, 0), sx, sy, sz), store, reg)
	if gAir.Skylight[gAir.Idx(0, 0, 0)] != 255 || gAir.Skylight[gAir.Idx(0, 1, 0)] != 255 {
		t.Fatalf("open column skylight = %v", gAir.Skylight)
	}

	roofed := fillBuf(chunk.At(0, 0, 0), sx, sy, sz, func(x, y, z int) block.Block {
		if y == sy-1 {
			return block.Block{ID: stoneID}
		}
		return block.Air
	})
	gBlk := Compute(roofed, store, reg)
	if gBlk.Skylight[gBlk.Idx(0, 1, 0)] != 0 {
		t.Fatalf("stone roof lit: %d", gBlk.Skylight[gBlk.Idx(0, 1, 0)])
	}
	if gBlk.Skylight[gBlk.Idx(0, 0, 0)] != 0 {
		t.Fatalf("column below roof lit: %d", gBlk.Skylight[gBlk.Idx(0, 0, 0)])
	}
}

func TestBorderMirroring(t *testing.T) {
	const sx, sy, sz = 2, 2, 2
	store := NewStore(sx, sy, sz)
	b := NewBorders(sx, sy, sz)
	for i := range b.Xn {
		b.Xn[i] = uint8(40 + i)
		b.SkXn[i] = uint8(50 + i)
		b.BcnXn[i] = uint8(60 + i)
	}
	for i := range b.Yn {
		b.Yn[i] = uint8(70 + i)
	}
	store.UpdateBorders(chunk.At(1, 0, 0), b)
	nb := store.NeighborBorders(chunk.At(0, 0, 0))
	if !bytes.Equal(nb.Xp, b.Xn) || !bytes.Equal(nb.SkXp, b.SkXn) || !bytes.Equal(nb.BcnXp, b.BcnXn) {
		t.Fatalf("+X neighbor planes not mirrored from the neighbor's -X face")
	}
	// Vertical mirroring: the upper chunk's -Y plane serves the chunk below
	// as its +Y input.
	store2 := NewStore(sx, sy, sz)
	store2.UpdateBorders(chunk.At(0, 1, 0), b)
	nb2 := store2.NeighborBorders(chunk.At(0, 0, 0))
	if !bytes.Equal(nb2.Yp, b.Yn) {
		t.Fatalf("upper -Y plane not exposed as lower +Y neighbor input")
	}
}

func TestUpdateBordersChangeMask(t *testing.T) {
	const sx, sy, sz = 2, 2, 2
	store := NewStore(sx, sy, sz)
	c := chunk.At(0, 0, 0)

	b := NewBorders(sx, sy, sz)
	changed, mask := store.UpdateBorders(c, b)
	if !changed || !mask.Any() {
		t.Fatalf("first publish should report change")
	}
	changed, mask = store.UpdateBorders(c, NewBorders(sx, sy, sz))
	if changed || mask.Any() {
		t.Fatalf("identical publish reported change: %+v", mask)
	}
	b2 := NewBorders(sx, sy, sz)
	b2.Xp[0] = 9
	changed, mask = store.UpdateBorders(c, b2)
	if !changed || !mask.Xp {
		t.Fatalf("xp byte change not detected: %+v", mask)
	}
	if mask.Xn || mask.Yn || mask.Yp || mask.Zn || mask.Zp {
		t.Fatalf("unrelated faces flagged: %+v", mask)
	}
}

func TestComputeIdempotent(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 2, 2, 2
	store := NewStore(sx, sy, sz)
	store.AddEmitterWorld(0, 1, 0, 190, false)
	nb := NewBorders(sx, sy, sz)
	for i := range nb.Xp {
		nb.Xp[i] = 120
	}
	store.UpdateBorders(chunk.At(-1, 0, 0), nb)
	stoneID, _ := reg.IDByName("stone")
	buf := fillBuf(chunk.At(0, 0, 0), sx, sy, sz, func(x, y, z int) block.Block {
		if x == 1 && y == 0 && z == 1 {
			return block.Block{ID: stoneID}
		}
		return block.Air
	})

	g1 := Compute(buf, store, reg)
	g2 := Compute(buf, store, reg)
	if !bytes.Equal(g1.Skylight, g2.Skylight) || !bytes.Equal(g1.BlockLight, g2.BlockLight) ||
		!bytes.Equal(g1.BeaconLight, g2.BeaconLight) {
		t.Fatalf("recompute with identical inputs differs")
	}
	b1 := BordersFromGrid(g1)
	b2 := BordersFromGrid(g2)
	if !bytes.Equal(b1.Xn, b2.Xn) || !bytes.Equal(b1.SkYp, b2.SkYp) {
		t.Fatalf("extracted borders differ between identical computes")
	}
}

func TestClearChunkAndAllBorders(t *testing.T) {
	const sx, sy, sz = 2, 2, 2
	store := NewStore(sx, sy, sz)
	n := chunk.At(-1, 0, 0)
	store.UpdateBorders(n, NewBorders(sx, sy, sz))
	store.UpdateMicroBorders(n, NewMicroBorders(sx, sy, sz))
	store.AddEmitterWorld(-1, 0, 0, 100, false)

	if nb := store.NeighborBorders(chunk.At(0, 0, 0)); nb.Xn == nil {
		t.Fatalf("expected -X neighbor planes before clear")
	}
	store.ClearChunk(n)
	nb := store.NeighborBorders(chunk.At(0, 0, 0))
	if nb.Xn != nil {
		t.Fatalf("macro planes survived ClearChunk")
	}
	if m := store.NeighborMicroBorders(chunk.At(0, 0, 0)); m.XmSkNeg != nil {
		t.Fatalf("micro planes survived ClearChunk")
	}
	if got := store.EmittersForChunk(n); len(got) != 0 {
		t.Fatalf("emitters survived ClearChunk: %v", got)
	}

	store.UpdateBorders(n, NewBorders(sx, sy, sz))
	store.UpdateMicroBorders(n, NewMicroBorders(sx, sy, sz))
	store.ClearAllBorders()
	if nb := store.NeighborBorders(chunk.At(0, 0, 0)); nb.Xn != nil {
		t.Fatalf("macro borders survived ClearAllBorders")
	}
	if m := store.NeighborMicroBorders(chunk.At(0, 0, 0)); m.XmSkNeg == nil {
		t.Fatalf("micro seams should be retained by ClearAllBorders")
	}
}

func TestCanCrossFaceSlabVersusStone(t *testing.T) {
	reg := testRegistry(t)
	slabID, _ := reg.IDByName("slab_same")
	stoneID, _ := reg.IDByName("stone")
	const sx, sy, sz = 2, 2, 1

	slabs := fillBuf(chunk.At(0, 0, 0), sx, sy, sz, func(x, y, z int) block.Block {
		return block.Block{ID: slabID}
	})
	if !CanCrossFace(reg, slabs, 0, 0, 0, block.FacePosX) {
		t.Fatalf("light should cross between adjacent bottom slabs")
	}

	mixed := fillBuf(chunk.At(0, 0, 0), sx, sy, sz, func(x, y, z int) block.Block {
		if x == 1 {
			return block.Block{ID: stoneID}
		}
		return block.Block{ID: slabID}
	})
	if CanCrossFace(reg, mixed, 0, 0, 0, block.FacePosX) {
		t.Fatalf("light must not cross into a full stone cube")
	}
	if CanCrossFace(reg, mixed, 1, 0, 0, block.FacePosX) {
		t.Fatalf("out-of-bounds crossing must be closed")
	}
}

func TestBeaconBeamDirectionality(t *testing.T) {
	reg := testRegistry(t)
	const sx, sy, sz = 4, 1, 1
	store := NewStore(sx, sy, sz)
	store.SetSkylightMax(0)
	buf := airBuf(chunk.At(0, 0, 0), sx, sy, sz)
	store.AddEmitterWorld(0, 0, 0, 200, true)

	g := Compute(buf, store, reg)
	want := []uint8{200, 199, 198, 197}
	for x, w := range want {
		if got := g.BeaconLight[g.Idx(x, 0, 0)]; got != w {
			t.Fatalf("beacon_light[%d] = %d, want %d", x, got, w)
		}
	}
	if g.BeaconDir[g.Idx(0, 0, 0)] != BeaconOrigin {
		t.Fatalf("origin dir = %d", g.BeaconDir[g.Idx(0, 0, 0)])
	}
	for x := 1; x < sx; x++ {
		if g.BeaconDir[g.Idx(x, 0, 0)] != BeaconPosX {
			t.Fatalf("dir[%d] = %d, want +X", x, g.BeaconDir[g.Idx(x, 0, 0)])
		}
	}
	b := BordersFromGrid(g)
	if b.BcnDirXp[0] != BeaconPosX {
		t.Fatalf("+X border dir = %d, want %d", b.BcnDirXp[0], BeaconPosX)
	}
	// The origin sits on the -X face, and an origin radiates every way, so
	// the -X plane advertises a -X continuation.
	if b.BcnDirXn[0] != BeaconNegX {
		t.Fatalf("-X border dir = %d, want %d", b.BcnDirXn[0], BeaconNegX)
	}
}
