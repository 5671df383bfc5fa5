package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stonelantern/stonelantern/engine/block"
)

// BuildSink receives the rectangles produced by the meshers. Records arrive
// in a deterministic order: the solid pass, then the water pass, each in
// X-axis layers, then Y, then Z, layers ascending, rows before columns within
// a layer; thin-shape boxes follow in voxel order.
type BuildSink interface {
	EmitFaceRect(mid block.MaterialID, face Face, origin mgl32.Vec3, u1, v1 float32, rgba [4]uint8)
}

// MeshBuild accumulates the geometry of one material: quad vertices with
// normals and colors, plus a triangle index list.
type MeshBuild struct {
	Pos []float32
	Nrm []float32
	Col []uint8
	Idx []uint32
}

// Empty reports whether nothing was emitted into the build.
func (m *MeshBuild) Empty() bool { return len(m.Pos) == 0 }

// Quads returns the number of emitted rectangles.
func (m *MeshBuild) Quads() int { return len(m.Pos) / 12 }

// ReserveQuads grows the position buffer for the expected quad count; the
// normal, color and index buffers are not pre-grown.
func (m *MeshBuild) ReserveQuads(n int) {
	if cap(m.Pos) < n*12 {
		grow := make([]float32, len(m.Pos), n*12)
		copy(grow, m.Pos)
		m.Pos = grow
	}
}

var faceNormals = [6][3]float32{
	{0, 1, 0}, {0, -1, 0}, {1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1},
}

// corners returns the four quad corners of a face rectangle. X faces span
// (u=z, v=y), Y faces (u=x, v=z), Z faces (u=x, v=y); winding flips with
// the normal sign so front faces stay counter-clockwise.
func corners(face Face, o mgl32.Vec3, u1, v1 float32) [4]mgl32.Vec3 {
	var q [4]mgl32.Vec3
	switch face {
	case FacePosX, FaceNegX:
		q = [4]mgl32.Vec3{
			o,
			{o.X(), o.Y(), o.Z() + u1},
			{o.X(), o.Y() + v1, o.Z() + u1},
			{o.X(), o.Y() + v1, o.Z()},
		}
		if face == FacePosX {
			q[1], q[3] = q[3], q[1]
		}
	case FacePosY, FaceNegY:
		q = [4]mgl32.Vec3{
			o,
			{o.X() + u1, o.Y(), o.Z()},
			{o.X() + u1, o.Y(), o.Z() + v1},
			{o.X(), o.Y(), o.Z() + v1},
		}
		if face == FacePosY {
			q[1], q[3] = q[3], q[1]
		}
	default:
		q = [4]mgl32.Vec3{
			o,
			{o.X() + u1, o.Y(), o.Z()},
			{o.X() + u1, o.Y() + v1, o.Z()},
			{o.X(), o.Y() + v1, o.Z()},
		}
		if face == FaceNegZ {
			q[1], q[3] = q[3], q[1]
		}
	}
	return q
}

// EmitFaceRect appends one rectangle as a quad with two triangles.
func (m *MeshBuild) EmitFaceRect(face Face, origin mgl32.Vec3, u1, v1 float32, rgba [4]uint8) {
	base := uint32(len(m.Pos) / 3)
	n := faceNormals[face]
	for _, c := range corners(face, origin, u1, v1) {
		m.Pos = append(m.Pos, c.X(), c.Y(), c.Z())
		m.Nrm = append(m.Nrm, n[0], n[1], n[2])
		m.Col = append(m.Col, rgba[0], rgba[1], rgba[2], rgba[3])
	}
	m.Idx = append(m.Idx, base, base+1, base+2, base, base+2, base+3)
}

// ChunkMesh is the CPU-side mesh of one chunk, sparse per material.
type ChunkMesh struct {
	Parts map[block.MaterialID]*MeshBuild
	Min   mgl32.Vec3
	Max   mgl32.Vec3
}

// Quads sums the emitted rectangles across all materials.
func (c *ChunkMesh) Quads() int {
	n := 0
	for _, p := range c.Parts {
		n += p.Quads()
	}
	return n
}

// builds is the dense per-material sink the meshers write into before the
// result is condensed into a sparse ChunkMesh.
type builds struct {
	v []MeshBuild
}

func newBuilds(matCount int) *builds {
	return &builds{v: make([]MeshBuild, matCount)}
}

func (b *builds) EmitFaceRect(mid block.MaterialID, face Face, origin mgl32.Vec3, u1, v1 float32, rgba [4]uint8) {
	if int(mid) >= len(b.v) || mid == 0 {
		// Malformed material references drop the rectangle instead of
		// crashing the worker.
		return
	}
	b.v[mid].EmitFaceRect(face, origin, u1, v1, rgba)
}

func (b *builds) finish(min, max mgl32.Vec3) *ChunkMesh {
	out := &ChunkMesh{Parts: make(map[block.MaterialID]*MeshBuild), Min: min, Max: max}
	for i := range b.v {
		if !b.v[i].Empty() {
			mb := b.v[i]
			out.Parts[block.MaterialID(i)] = &mb
		}
	}
	return out
}

// emitFaceRectClipped clips a rectangle to the chunk's world bounds before
// handing it to the sink. Rectangles fully outside the bounds vanish.
func emitFaceRectClipped(sink BuildSink, mid block.MaterialID, face Face, origin mgl32.Vec3, u1, v1 float32, rgba [4]uint8, min, max mgl32.Vec3) {
	clip := func(start, length, lo, hi float32) (float32, float32, bool) {
		end := start + length
		if start < lo {
			start = lo
		}
		if end > hi {
			end = hi
		}
		if end <= start {
			return 0, 0, false
		}
		return start, end - start, true
	}
	o := origin
	switch face {
	case FacePosX, FaceNegX:
		if o.X() < min.X() || o.X() > max.X() {
			return
		}
		z, du, ok := clip(o.Z(), u1, min.Z(), max.Z())
		if !ok {
			return
		}
		y, dv, ok := clip(o.Y(), v1, min.Y(), max.Y())
		if !ok {
			return
		}
		sink.EmitFaceRect(mid, face, mgl32.Vec3{o.X(), y, z}, du, dv, rgba)
	case FacePosY, FaceNegY:
		if o.Y() < min.Y() || o.Y() > max.Y() {
			return
		}
		x, du, ok := clip(o.X(), u1, min.X(), max.X())
		if !ok {
			return
		}
		z, dv, ok := clip(o.Z(), v1, min.Z(), max.Z())
		if !ok {
			return
		}
		sink.EmitFaceRect(mid, face, mgl32.Vec3{x, o.Y(), z}, du, dv, rgba)
	default:
		if o.Z() < min.Z() || o.Z() > max.Z() {
			return
		}
		x, du, ok := clip(o.X(), u1, min.X(), max.X())
		if !ok {
			return
		}
		y, dv, ok := clip(o.Y(), v1, min.Y(), max.Y())
		if !ok {
			return
		}
		sink.EmitFaceRect(mid, face, mgl32.Vec3{x, y, o.Z()}, du, dv, rgba)
	}
}

// emitBoxClipped emits the six faces of an axis-aligned box, skipping faces
// the occluder predicate reports as hidden and shading each with the light
// sampler.
func emitBoxClipped(sink BuildSink, bmin, bmax mgl32.Vec3, material func(Face) block.MaterialID, occluded func(Face) bool, light func(Face) uint8, cmin, cmax mgl32.Vec3) {
	emit := func(face Face, origin mgl32.Vec3, u1, v1 float32) {
		mid := material(face)
		if mid == 0 || occluded(face) {
			return
		}
		l := light(face)
		rgba := [4]uint8{l, l, l, 255}
		emitFaceRectClipped(sink, mid, face, origin, u1, v1, rgba, cmin, cmax)
	}
	dx := bmax.X() - bmin.X()
	dy := bmax.Y() - bmin.Y()
	dz := bmax.Z() - bmin.Z()
	emit(FacePosY, mgl32.Vec3{bmin.X(), bmax.Y(), bmin.Z()}, dx, dz)
	emit(FaceNegY, bmin, dx, dz)
	emit(FacePosX, mgl32.Vec3{bmax.X(), bmin.Y(), bmin.Z()}, dz, dy)
	emit(FaceNegX, bmin, dz, dy)
	emit(FacePosZ, mgl32.Vec3{bmin.X(), bmin.Y(), bmax.Z()}, dx, dy)
	emit(FaceNegZ, bmin, dx, dy)
}
