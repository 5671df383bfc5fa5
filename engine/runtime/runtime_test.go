package runtime

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/light"
	"github.com/stonelantern/stonelantern/engine/worldgen"
)

func u16(v uint16) *uint16 { return &v }
func bp(v bool) *bool      { return &v }

func testRegistry(t *testing.T) *block.Registry {
	t.Helper()
	mats := block.NewMaterialCatalog([]block.Material{
		{Key: "stone"}, {Key: "dirt"}, {Key: "grass_top"}, {Key: "sand"},
		{Key: "water", RenderTag: "water"},
	})
	cfg := block.BlocksConfig{Blocks: []block.BlockDef{
		{Name: "air", ID: u16(0), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true)},
		{Name: "stone", ID: u16(1), Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "stone"}}},
		{Name: "dirt", ID: u16(2), Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "dirt"}}},
		{Name: "grass", ID: u16(3), Materials: &block.MaterialsDef{
			All: &block.SelectorDef{Key: "dirt"}, Top: &block.SelectorDef{Key: "grass_top"}}},
		{Name: "sand", ID: u16(4), Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "sand"}}},
		{Name: "water", ID: u16(5), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true),
			Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "water"}}},
	}}
	reg, err := block.NewRegistry(mats, cfg)
	if err != nil {
		t.Fatalf("compile registry: %v", err)
	}
	return reg
}

func TestJobIDDeterministic(t *testing.T) {
	c := chunk.At(3, -1, 7)
	a := JobID(c, 9, 0b101)
	b := JobID(c, 9, 0b101)
	if a != b {
		t.Fatalf("job id not deterministic: %d vs %d", a, b)
	}
	if JobID(c, 10, 0b101) == a || JobID(c, 9, 0b100) == a {
		t.Fatalf("job id ignores rev or neighbor mask")
	}
	if JobID(chunk.At(3, -1, 8), 9, 0b101) == a {
		t.Fatalf("job id ignores coordinate")
	}
}

func TestBuildJobProducesMeshAndBorders(t *testing.T) {
	reg := testRegistry(t)
	params := worldgen.Params{FlatThickness: 2, SeaLevel: 0}
	world := worldgen.New(1, 4, 4, 4, params)
	store := light.NewStore(4, 4, 4)
	rt := New(Config{Log: slog.New(slog.DiscardHandler), World: world, Lighting: store})
	defer rt.Close()

	c := chunk.At(0, 0, 0)
	job := BuildJob{
		Coord: c, Rev: 0, JobID: JobID(c, 0, 0), Kind: KindBg, Reg: reg,
	}
	if !rt.Submit(job) {
		t.Fatalf("submit failed")
	}
	deadline := time.Now().Add(5 * time.Second)
	var results []JobOut
	for len(results) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no result")
		}
		results = rt.DrainResults()
		time.Sleep(time.Millisecond)
	}
	out := results[0]
	if out.Err != nil {
		t.Fatalf("job error: %v", out.Err)
	}
	if out.Occupancy.IsEmpty() {
		t.Fatalf("flat terrain chunk classified empty")
	}
	if out.Mesh == nil || out.Mesh.Quads() == 0 {
		t.Fatalf("no mesh emitted")
	}
	if out.Buf == nil || out.Grid == nil || out.Borders == nil || out.Micro == nil {
		t.Fatalf("result missing outputs: %+v", out)
	}
	// The flat slab's surface is sunlit.
	if out.Grid.Skylight[out.Grid.Idx(0, 3, 0)] != store.SkylightMax() {
		t.Fatalf("air above terrain not at full skylight")
	}
}

func TestEmptyChunkResult(t *testing.T) {
	reg := testRegistry(t)
	world := worldgen.New(1, 2, 2, 2, worldgen.Params{FlatThickness: 0, SeaLevel: 0})
	store := light.NewStore(2, 2, 2)
	rt := New(Config{Log: slog.New(slog.DiscardHandler), World: world, Lighting: store})
	defer rt.Close()

	c := chunk.At(0, 3, 0) // well above the flat slab
	if !rt.Submit(BuildJob{Coord: c, JobID: JobID(c, 0, 0), Kind: KindBg, Reg: reg}) {
		t.Fatalf("submit failed")
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("no result")
		}
		if results := rt.DrainResults(); len(results) > 0 {
			out := results[0]
			if !out.Occupancy.IsEmpty() {
				t.Fatalf("sky chunk not classified empty")
			}
			if out.Mesh != nil || out.Buf != nil {
				t.Fatalf("empty chunk carries outputs")
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
}
