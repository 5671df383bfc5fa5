package worldgen

import (
	"testing"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

func u16(v uint16) *uint16 { return &v }
func bp(v bool) *bool      { return &v }

func testRegistry(t *testing.T) *block.Registry {
	t.Helper()
	mats := block.NewMaterialCatalog(nil)
	cfg := block.BlocksConfig{Blocks: []block.BlockDef{
		{Name: "air", ID: u16(0), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true)},
		{Name: "stone", ID: u16(1)},
		{Name: "dirt", ID: u16(2)},
		{Name: "grass", ID: u16(3)},
		{Name: "sand", ID: u16(4)},
		{Name: "water", ID: u16(5), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true)},
	}}
	reg, err := block.NewRegistry(mats, cfg)
	if err != nil {
		t.Fatalf("compile registry: %v", err)
	}
	return reg
}

func TestDeterministicForSeed(t *testing.T) {
	a := New(42, 8, 8, 8, DefaultParams())
	b := New(42, 8, 8, 8, DefaultParams())
	for wx := int32(-20); wx < 20; wx += 7 {
		for wz := int32(-20); wz < 20; wz += 5 {
			if a.HeightAt(wx, wz) != b.HeightAt(wx, wz) {
				t.Fatalf("heights diverge at (%d,%d)", wx, wz)
			}
		}
	}
	c := New(43, 8, 8, 8, DefaultParams())
	same := true
	for wx := int32(0); wx < 64; wx += 16 {
		if a.HeightAt(wx, 0) != c.HeightAt(wx, 0) {
			same = false
		}
	}
	if same {
		t.Fatalf("different seeds produced identical terrain samples")
	}
}

func TestGenerateChunkMatchesBlockAt(t *testing.T) {
	reg := testRegistry(t)
	w := New(7, 4, 4, 4, DefaultParams())
	c := chunk.At(1, 0, -2)
	buf, profile := w.GenerateChunk(reg, c, nil)
	if profile == nil || profile.Rev != w.Rev() {
		t.Fatalf("profile missing or stale")
	}
	bx, by, bz := buf.Base()
	for y := 0; y < 4; y++ {
		for z := 0; z < 4; z++ {
			for x := 0; x < 4; x++ {
				want := w.BlockAt(reg, bx+int32(x), by+int32(y), bz+int32(z))
				if got := buf.GetLocal(x, y, z); got != want {
					t.Fatalf("buf(%d,%d,%d) = %v, want %v", x, y, z, got, want)
				}
			}
		}
	}
}

func TestUpdateParamsBumpsRev(t *testing.T) {
	w := New(1, 4, 4, 4, DefaultParams())
	rev := w.Rev()
	w.UpdateParams(Params{FlatThickness: 3})
	if w.Rev() != rev+1 {
		t.Fatalf("rev = %d, want %d", w.Rev(), rev+1)
	}
	if w.HeightAt(100, -5) != 3 {
		t.Fatalf("flat params not applied")
	}
	// A profile from the old revision must be rejected on reuse.
	stale := &ColumnProfile{CX: 0, CZ: 0, Rev: rev, Heights: make([]int, 16)}
	reg := testRegistry(t)
	_, fresh := w.GenerateChunk(reg, chunk.At(0, 0, 0), stale)
	if fresh.Rev != w.Rev() {
		t.Fatalf("stale profile reused across revisions")
	}
}
