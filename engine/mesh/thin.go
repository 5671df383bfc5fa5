package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/light"
)

// isOccluder reports whether the voxel in the face direction is a full
// occluder for the emitting block, hiding that face entirely.
func isOccluder(reg *block.Registry, buf *chunk.Buf, sample Sampler, face Face, wx, wy, wz int32) bool {
	b, ok := buf.GetWorld(wx, wy, wz)
	if !ok {
		b = sample(wx, wy, wz)
	}
	ty, found := reg.Get(b.ID)
	if !found {
		return false
	}
	return ty.IsSolid(b.State) && ty.IsFullCube()
}

func neighborShapeIn(reg *block.Registry, buf *chunk.Buf, sample Sampler, wx, wy, wz int32, kinds ...block.ShapeKind) bool {
	b, ok := buf.GetWorld(wx, wy, wz)
	if !ok {
		b = sample(wx, wy, wz)
	}
	ty, found := reg.Get(b.ID)
	if !found {
		return false
	}
	for _, k := range kinds {
		if ty.Shape.Kind == k {
			return true
		}
	}
	return false
}

// EmitThinShapes walks the chunk and emits explicit boxes for the shapes
// that carry no occupancy: panes, fences and carpets. Faces are occlusion
// culled against full neighbor cubes and lit through the seam-aware face
// sampler.
func EmitThinShapes(buf *chunk.Buf, reg *block.Registry, grid *light.Grid, sample Sampler, sink BuildSink) {
	baseX, baseY, baseZ := buf.Base()
	cmin := mgl32.Vec3{float32(baseX), float32(baseY), float32(baseZ)}
	cmax := mgl32.Vec3{
		float32(baseX) + float32(buf.Sx),
		float32(baseY) + float32(buf.Sy),
		float32(baseZ) + float32(buf.Sz),
	}
	for z := 0; z < buf.Sz; z++ {
		for y := 0; y < buf.Sy; y++ {
			for x := 0; x < buf.Sx; x++ {
				here := buf.GetLocal(x, y, z)
				ty, ok := reg.Get(here.ID)
				if !ok {
					continue
				}
				if _, micro := ty.Occupancy(here.State); micro {
					continue
				}
				fx := float32(baseX + int32(x))
				fy := float32(baseY + int32(y))
				fz := float32(baseZ + int32(z))
				wx, wy, wz := baseX+int32(x), baseY+int32(y), baseZ+int32(z)
				material := func(face Face) block.MaterialID {
					return ty.MaterialFor(face.Role(), here.State)
				}
				occluded := func(face Face) bool {
					dx, dy, dz := face.Delta()
					return isOccluder(reg, buf, sample, face, wx+dx, wy+dy, wz+dz)
				}
				open := func(Face) bool { return false }
				lit := func(face Face) uint8 {
					return grid.SampleFaceLocalS2(buf, reg, x, y, z, face.Index())
				}
				switch ty.Shape.Kind {
				case block.ShapePane:
					const t = 0.0625
					emitBoxClipped(sink,
						mgl32.Vec3{fx + 0.5 - t, fy, fz}, mgl32.Vec3{fx + 0.5 + t, fy + 1, fz + 1},
						material, occluded, lit, cmin, cmax)
					// Connectors toward adjacent panes.
					if neighborShapeIn(reg, buf, sample, wx-1, wy, wz, block.ShapePane) {
						emitBoxClipped(sink,
							mgl32.Vec3{fx, fy, fz + 0.5 - t}, mgl32.Vec3{fx + 0.5 - t, fy + 1, fz + 0.5 + t},
							material, open, lit, cmin, cmax)
					}
					if neighborShapeIn(reg, buf, sample, wx+1, wy, wz, block.ShapePane) {
						emitBoxClipped(sink,
							mgl32.Vec3{fx + 0.5 + t, fy, fz + 0.5 - t}, mgl32.Vec3{fx + 1, fy + 1, fz + 0.5 + t},
							material, open, lit, cmin, cmax)
					}
					if neighborShapeIn(reg, buf, sample, wx, wy, wz-1, block.ShapePane) {
						emitBoxClipped(sink,
							mgl32.Vec3{fx + 0.5 - t, fy, fz}, mgl32.Vec3{fx + 0.5 + t, fy + 1, fz + 0.5 - t},
							material, open, lit, cmin, cmax)
					}
					if neighborShapeIn(reg, buf, sample, wx, wy, wz+1, block.ShapePane) {
						emitBoxClipped(sink,
							mgl32.Vec3{fx + 0.5 - t, fy, fz + 0.5 + t}, mgl32.Vec3{fx + 0.5 + t, fy + 1, fz + 1},
							material, open, lit, cmin, cmax)
					}
				case block.ShapeFence:
					const t = 0.125
					const p = 0.375
					emitBoxClipped(sink,
						mgl32.Vec3{fx + 0.5 - t, fy, fz + 0.5 - t}, mgl32.Vec3{fx + 0.5 + t, fy + 1, fz + 0.5 + t},
						material, occluded, lit, cmin, cmax)
					for _, sn := range sideNeighbors {
						if !neighborShapeIn(reg, buf, sample, wx+sn.dx, wy, wz+sn.dz, block.ShapeFence, block.ShapePane) {
							continue
						}
						// Vertical top-half connector.
						emitBoxClipped(sink,
							mgl32.Vec3{fx + 0.5 - t, fy + 0.5, fz + 0.5 - t}, mgl32.Vec3{fx + 0.5 + t, fy + 1, fz + 0.5 + t},
							material, occluded, lit, cmin, cmax)
						// Two horizontal bars toward the neighbor.
						x0, z0 := fx+0.5+sn.ox*p, fz+0.5+sn.oz*p
						x1, z1 := fx+0.5+sn.ox*0.5, fz+0.5+sn.oz*0.5
						lo := func(a, b float32) float32 {
							if a < b {
								return a
							}
							return b
						}
						hi := func(a, b float32) float32 {
							if a > b {
								return a
							}
							return b
						}
						for _, barY := range [2]float32{0.375, 0.75} {
							emitBoxClipped(sink,
								mgl32.Vec3{lo(x0, x1) - t, fy + barY, lo(z0, z1) - t},
								mgl32.Vec3{hi(x0, x1) + t, fy + barY + 0.125, hi(z0, z1) + t},
								material, occluded, lit, cmin, cmax)
						}
					}
				case block.ShapeCarpet:
					const h = 0.0625
					emitBoxClipped(sink,
						mgl32.Vec3{fx, fy, fz}, mgl32.Vec3{fx + 1, fy + h, fz + 1},
						material, occluded, lit, cmin, cmax)
				}
			}
		}
	}
}
