package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/light"
)

// MicroSteps is the sub-voxel resolution of the parity mesher.
const MicroSteps = 2

// BuildChunk runs the full meshing pipeline over an already lit chunk:
// occupancy scan, seam overscan, parity, greedy emission and the thin-shape
// pass. The sampler answers out-of-chunk block queries for overscan and
// occlusion.
func BuildChunk(buf *chunk.Buf, grid *light.Grid, reg *block.Registry, sample Sampler) *ChunkMesh {
	sink := newBuilds(reg.Materials.Len())
	BuildChunkInto(buf, grid, reg, sample, sink)
	bx, by, bz := buf.Base()
	min := mgl32.Vec3{float32(bx), float32(by), float32(bz)}
	max := mgl32.Vec3{
		float32(bx) + float32(buf.Sx),
		float32(by) + float32(buf.Sy),
		float32(bz) + float32(buf.Sz),
	}
	return sink.finish(min, max)
}

// BuildChunkInto is BuildChunk writing into a caller-provided sink.
func BuildChunkInto(buf *chunk.Buf, grid *light.Grid, reg *block.Registry, sample Sampler, sink BuildSink) {
	pm := NewParityMesher(buf, reg, MicroSteps, sample)
	pm.BuildOccupancy()
	pm.SeedSeamLayers()
	pm.ComputeParity()
	pm.EmitInto(sink)
	pm.Recycle()
	EmitThinShapes(buf, reg, grid, sample, sink)
}

// OverlaySampler layers sparse edits over a base sampler, the composition
// workers use for seam overscan.
func OverlaySampler(edits map[[3]int32]block.Block, base Sampler) Sampler {
	if len(edits) == 0 {
		return base
	}
	return func(wx, wy, wz int32) block.Block {
		if b, ok := edits[[3]int32{wx, wy, wz}]; ok {
			return b
		}
		return base(wx, wy, wz)
	}
}
