package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/light"
)

func u16(v uint16) *uint16 { return &v }
func bp(v bool) *bool      { return &v }

func testRegistry(t *testing.T) *block.Registry {
	t.Helper()
	mats := block.NewMaterialCatalog([]block.Material{
		{Key: "stone"},
		{Key: "planks"},
		{Key: "water", RenderTag: "water"},
		{Key: "wool"},
	})
	cfg := block.BlocksConfig{Blocks: []block.BlockDef{
		{Name: "air", ID: u16(0), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true)},
		{Name: "stone", ID: u16(1), Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "stone"}}},
		{Name: "water", ID: u16(2), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true),
			Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "water"}}},
		{Name: "plank_slab", ID: u16(3), BlocksSkylight: bp(false), PropagatesLight: bp(true),
			Shape:       &block.ShapeConfig{Detailed: &block.ShapeDetailed{Kind: "slab", Half: &block.PropFrom{From: "half"}}},
			StateSchema: map[string][]string{"half": {"bottom", "top"}},
			Materials:   &block.MaterialsDef{All: &block.SelectorDef{Key: "planks"}}},
		{Name: "carpet", ID: u16(4), Solid: bp(false), BlocksSkylight: bp(false), PropagatesLight: bp(true),
			Shape:     &block.ShapeConfig{Simple: "carpet"},
			Materials: &block.MaterialsDef{All: &block.SelectorDef{Key: "wool"}}},
	}}
	reg, err := block.NewRegistry(mats, cfg)
	if err != nil {
		t.Fatalf("compile registry: %v", err)
	}
	return reg
}

func airSampler(wx, wy, wz int32) block.Block { return block.Air }

func matID(t *testing.T, reg *block.Registry, key string) block.MaterialID {
	t.Helper()
	id, ok := reg.Materials.IDByKey(key)
	if !ok {
		t.Fatalf("material %q missing", key)
	}
	return id
}

func TestSingleCubeEmitsSixFaces(t *testing.T) {
	reg := testRegistry(t)
	stoneID, _ := reg.IDByName("stone")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 2, 2, 2)
	buf.SetLocal(0, 0, 0, block.Block{ID: stoneID})

	cm := BuildChunk(buf, light.NewGrid(2, 2, 2), reg, airSampler)
	part := cm.Parts[matID(t, reg, "stone")]
	if part == nil || part.Quads() != 6 {
		t.Fatalf("single cube quads = %v, want 6", cm.Quads())
	}
}

func TestGreedyMergeAndBoundaryOwnership(t *testing.T) {
	reg := testRegistry(t)
	stoneID, _ := reg.IDByName("stone")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 2, 2, 2)
	buf.SetLocal(0, 0, 0, block.Block{ID: stoneID})
	buf.SetLocal(1, 0, 0, block.Block{ID: stoneID})

	cm := BuildChunk(buf, light.NewGrid(2, 2, 2), reg, airSampler)
	part := cm.Parts[matID(t, reg, "stone")]
	if part == nil {
		t.Fatalf("no stone part emitted")
	}
	// The shared face cancels by parity. The +X face at the chunk boundary
	// belongs to the +X neighbor's mesh, and each remaining orientation
	// greedy-merges to a single rectangle: -X, +Y, -Y, +Z, -Z.
	if got := part.Quads(); got != 5 {
		t.Fatalf("two-cube quads = %d, want 5", got)
	}
}

func TestSeamOverscanSuppressesBoundaryFace(t *testing.T) {
	reg := testRegistry(t)
	stoneID, _ := reg.IDByName("stone")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 2, 2, 2)
	buf.SetLocal(0, 0, 0, block.Block{ID: stoneID})

	neighbor := func(wx, wy, wz int32) block.Block {
		if wx == -1 && wy == 0 && wz == 0 {
			return block.Block{ID: stoneID}
		}
		return block.Air
	}
	cm := BuildChunk(buf, light.NewGrid(2, 2, 2), reg, neighbor)
	part := cm.Parts[matID(t, reg, "stone")]
	if part == nil || part.Quads() != 5 {
		t.Fatalf("quads with occupied -X neighbor = %v, want 5", cm.Quads())
	}
}

func TestWaterPassSkipsWaterToSolid(t *testing.T) {
	reg := testRegistry(t)
	stoneID, _ := reg.IDByName("stone")
	waterID, _ := reg.IDByName("water")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 2, 1, 1)
	buf.SetLocal(0, 0, 0, block.Block{ID: waterID})
	buf.SetLocal(1, 0, 0, block.Block{ID: stoneID})

	cm := BuildChunk(buf, light.NewGrid(2, 1, 1), reg, airSampler)
	water := cm.Parts[matID(t, reg, "water")]
	stone := cm.Parts[matID(t, reg, "stone")]
	// Water emits -X, +Y and -Y; its +X contact with stone is dropped and
	// the -Z face plus +Z boundary face follow the seam ownership rules.
	if water == nil || water.Quads() != 4 {
		t.Fatalf("water quads = %v", cm.Quads())
	}
	if stone == nil || stone.Quads() != 4 {
		t.Fatalf("stone quads = %v", cm.Quads())
	}
}

func TestSlabEmitsHalfHeightFaces(t *testing.T) {
	reg := testRegistry(t)
	slabID, _ := reg.IDByName("plank_slab")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 2, 2, 2)
	buf.SetLocal(0, 0, 0, block.Block{ID: slabID}) // state 0 = bottom half

	cm := BuildChunk(buf, light.NewGrid(2, 2, 2), reg, airSampler)
	part := cm.Parts[matID(t, reg, "planks")]
	if part == nil || part.Quads() != 6 {
		t.Fatalf("slab quads = %v, want 6", cm.Quads())
	}
	// The top face must sit at the half-voxel plane.
	foundHalf := false
	for i := 1; i < len(part.Pos); i += 3 {
		if part.Pos[i] == 0.5 {
			foundHalf = true
			break
		}
	}
	if !foundHalf {
		t.Fatalf("no vertex at y=0.5 for a bottom slab")
	}
}

func TestCarpetBox(t *testing.T) {
	reg := testRegistry(t)
	carpetID, _ := reg.IDByName("carpet")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 1, 1, 1)
	buf.SetLocal(0, 0, 0, block.Block{ID: carpetID})

	cm := BuildChunk(buf, light.NewGrid(1, 1, 1), reg, airSampler)
	part := cm.Parts[matID(t, reg, "wool")]
	if part == nil || part.Quads() != 6 {
		t.Fatalf("carpet quads = %v, want 6", cm.Quads())
	}
}

// rectSink records raw emission for property checks.
type rectSink struct {
	rects []rectRec
}

type rectRec struct {
	mid    block.MaterialID
	face   Face
	origin mgl32.Vec3
	u1, v1 float32
}

func (s *rectSink) EmitFaceRect(mid block.MaterialID, face Face, origin mgl32.Vec3, u1, v1 float32, rgba [4]uint8) {
	s.rects = append(s.rects, rectRec{mid: mid, face: face, origin: origin, u1: u1, v1: v1})
}

func TestParityToSurfaceCorrespondence(t *testing.T) {
	reg := testRegistry(t)
	stoneID, _ := reg.IDByName("stone")
	slabID, _ := reg.IDByName("plank_slab")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 2, 2, 2)
	buf.SetLocal(0, 0, 0, block.Block{ID: stoneID})
	buf.SetLocal(1, 1, 0, block.Block{ID: stoneID})
	buf.SetLocal(0, 1, 1, block.Block{ID: slabID})

	pm := NewParityMesher(buf, reg, MicroSteps, airSampler)
	pm.BuildOccupancy()
	pm.SeedSeamLayers()
	pm.ComputeParity()
	sink := &rectSink{}
	pm.EmitInto(sink)
	pm.Recycle()

	// Occupancy oracle at micro resolution; everything outside is open.
	occ := func(mx, my, mz int) bool {
		if mx < 0 || my < 0 || mz < 0 || mx >= 4 || my >= 4 || mz >= 4 {
			return false
		}
		b := buf.GetLocal(mx/2, my/2, mz/2)
		return block.MicroCellSolid(reg, b, mx&1, my&1, mz&1)
	}
	covered := 0
	for _, r := range sink.rects {
		mx0 := int(r.origin.X() * 2)
		my0 := int(r.origin.Y() * 2)
		mz0 := int(r.origin.Z() * 2)
		du := int(r.u1 * 2)
		dv := int(r.v1 * 2)
		for a := 0; a < du; a++ {
			for b := 0; b < dv; b++ {
				var before, after bool
				switch r.face {
				case FacePosX, FaceNegX:
					before = occ(mx0-1, my0+b, mz0+a)
					after = occ(mx0, my0+b, mz0+a)
				case FacePosY, FaceNegY:
					before = occ(mx0+a, my0-1, mz0+b)
					after = occ(mx0+a, my0, mz0+b)
				default:
					before = occ(mx0+a, my0+b, mz0-1)
					after = occ(mx0+a, my0+b, mz0)
				}
				if before == after {
					t.Fatalf("rect %+v covers a non-surface cell at (%d,%d)", r, a, b)
				}
				covered++
			}
		}
	}
	if covered == 0 {
		t.Fatalf("nothing emitted")
	}
}

func TestGreedyNoOverlap(t *testing.T) {
	reg := testRegistry(t)
	stoneID, _ := reg.IDByName("stone")
	buf := chunk.NewBuf(chunk.At(0, 0, 0), 2, 2, 2)
	for z := 0; z < 2; z++ {
		for x := 0; x < 2; x++ {
			buf.SetLocal(x, 0, z, block.Block{ID: stoneID})
		}
	}

	pm := NewParityMesher(buf, reg, MicroSteps, airSampler)
	pm.BuildOccupancy()
	pm.SeedSeamLayers()
	pm.ComputeParity()
	sink := &rectSink{}
	pm.EmitInto(sink)
	pm.Recycle()

	// Per (face, plane), rectangles must not overlap.
	type cellKey struct {
		face       Face
		px, py, pz int
	}
	seen := make(map[cellKey]bool)
	for _, r := range sink.rects {
		mx0 := int(r.origin.X() * 2)
		my0 := int(r.origin.Y() * 2)
		mz0 := int(r.origin.Z() * 2)
		for a := 0; a < int(r.u1*2); a++ {
			for b := 0; b < int(r.v1*2); b++ {
				var k cellKey
				switch r.face {
				case FacePosX, FaceNegX:
					k = cellKey{r.face, mx0, my0 + b, mz0 + a}
				case FacePosY, FaceNegY:
					k = cellKey{r.face, mx0 + a, my0, mz0 + b}
				default:
					k = cellKey{r.face, mx0 + a, my0 + b, mz0}
				}
				if seen[k] {
					t.Fatalf("overlapping emission at %+v", k)
				}
				seen[k] = true
			}
		}
	}
}
