package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

// Sampler answers block queries at world coordinates, used for the seam
// overscan outside the chunk being meshed. Implementations layer edits over
// worldgen.
type Sampler func(wx, wy, wz int32) block.Block

// ParityMesher builds the face parity grids of one chunk at micro
// resolution S and greedy-emits rectangles per material and orientation.
// Water occupancy lives in a separate grid so its surfaces are emitted in a
// distinct pass that skips water-to-solid contacts.
type ParityMesher struct {
	s          int
	sx, sy, sz int
	baseX      int32
	baseY      int32
	baseZ      int32

	includeWater bool
	reg          *block.Registry
	buf          *chunk.Buf
	sample       Sampler
	waterID      uint16

	sc *scratch
}

// NewParityMesher prepares a mesher over the buffer with pooled scratch.
func NewParityMesher(buf *chunk.Buf, reg *block.Registry, s int, sample Sampler) *ParityMesher {
	bx, by, bz := buf.Base()
	waterID := uint16(0)
	if id, ok := reg.IDByName("water"); ok {
		waterID = id
	}
	return &ParityMesher{
		s: s, sx: buf.Sx, sy: buf.Sy, sz: buf.Sz,
		baseX: bx, baseY: by, baseZ: bz,
		includeWater: true,
		reg:          reg, buf: buf, sample: sample, waterID: waterID,
		sc: acquireScratch(s, buf.Sx, buf.Sy, buf.Sz),
	}
}

// Recycle returns the scratch buffers to the pool. The mesher must not be
// used afterwards.
func (m *ParityMesher) Recycle() {
	m.sc.recycle()
	m.sc = nil
}

func (m *ParityMesher) isWater(id uint16) bool {
	return m.includeWater && id != 0 && id == m.waterID
}

// BuildOccupancy scans the buffer into the micro occupancy grids. Solids
// fill all S^3 cells of their voxel, micro-occupied shapes follow their
// occupancy byte, water goes to the separate water grid, and air and thin
// shapes contribute nothing.
func (m *ParityMesher) BuildOccupancy() {
	s := m.s
	for z := 0; z < m.sz; z++ {
		for y := 0; y < m.sy; y++ {
			for x := 0; x < m.sx; x++ {
				b := m.buf.GetLocal(x, y, z)
				if b.IsAir() {
					continue
				}
				ty, ok := m.reg.Get(b.ID)
				if !ok {
					continue
				}
				if m.isWater(b.ID) {
					fillCells(m.sc.occsWater, x, y, z, s)
					continue
				}
				if s > 1 {
					if occ, micro := ty.Occupancy(b.State); micro {
						for mz := 0; mz < s; mz++ {
							for my := 0; my < s; my++ {
								for mx := 0; mx < s; mx++ {
									if block.OccBit(occ, mx, my, mz) {
										m.sc.occs.set(x*s+mx, y*s+my, z*s+mz)
									}
								}
							}
						}
						continue
					}
				}
				if ty.IsSolid(b.State) && ty.IsFullCube() {
					fillCells(m.sc.occs, x, y, z, s)
				}
			}
		}
	}
}

func fillCells(o *occGrids, x, y, z, s int) {
	for iz := z * s; iz < (z+1)*s; iz++ {
		for iy := y * s; iy < (y+1)*s; iy++ {
			for ix := x * s; ix < (x+1)*s; ix++ {
				o.set(ix, iy, iz)
			}
		}
	}
}

// SeedSeamLayers samples one voxel layer of the -X and -Z neighbors from
// worldgen and edits into the seam overscan grids, making face parity at
// chunk boundaries correct without requiring the neighbors to be meshed.
func (m *ParityMesher) SeedSeamLayers() {
	s := m.s
	for ly := 0; ly < m.sy; ly++ {
		for lz := 0; lz < m.sz; lz++ {
			nb := m.sample(m.baseX-1, m.baseY+int32(ly), m.baseZ+int32(lz))
			if nb.IsAir() {
				continue
			}
			ty, ok := m.reg.Get(nb.ID)
			if !ok {
				continue
			}
			y0, z0 := ly*s, lz*s
			switch {
			case m.isWater(nb.ID):
				for iz := z0; iz < z0+s; iz++ {
					for iy := y0; iy < y0+s; iy++ {
						m.sc.occsWater.seamX.set(m.sc.occsWater.idxSX(iy, iz), true)
					}
				}
			case ty.IsSolid(nb.State) && ty.IsFullCube():
				for iz := z0; iz < z0+s; iz++ {
					for iy := y0; iy < y0+s; iy++ {
						m.sc.occs.seamX.set(m.sc.occs.idxSX(iy, iz), true)
					}
				}
			case s > 1:
				if occ, micro := ty.Occupancy(nb.State); micro {
					for mz := 0; mz < s; mz++ {
						for my := 0; my < s; my++ {
							if block.OccBit(occ, 1, my, mz) {
								m.sc.occs.seamX.set(m.sc.occs.idxSX(y0+my, z0+mz), true)
							}
						}
					}
				}
			}
		}
	}
	for ly := 0; ly < m.sy; ly++ {
		for lx := 0; lx < m.sx; lx++ {
			nb := m.sample(m.baseX+int32(lx), m.baseY+int32(ly), m.baseZ-1)
			if nb.IsAir() {
				continue
			}
			ty, ok := m.reg.Get(nb.ID)
			if !ok {
				continue
			}
			x0, y0 := lx*s, ly*s
			switch {
			case m.isWater(nb.ID):
				for ix := x0; ix < x0+s; ix++ {
					for iy := y0; iy < y0+s; iy++ {
						m.sc.occsWater.seamZ.set(m.sc.occsWater.idxSZ(ix, iy), true)
					}
				}
			case ty.IsSolid(nb.State) && ty.IsFullCube():
				for ix := x0; ix < x0+s; ix++ {
					for iy := y0; iy < y0+s; iy++ {
						m.sc.occs.seamZ.set(m.sc.occs.idxSZ(ix, iy), true)
					}
				}
			case s > 1:
				if occ, micro := ty.Occupancy(nb.State); micro {
					for my := 0; my < s; my++ {
						for mx := 0; mx < s; mx++ {
							if block.OccBit(occ, mx, my, 1) {
								m.sc.occs.seamZ.set(m.sc.occs.idxSZ(x0+mx, y0+my), true)
							}
						}
					}
				}
			}
		}
	}
}

func (m *ParityMesher) ownerMaterial(face Face, bx, by, bz int) block.MaterialID {
	here := m.buf.GetLocal(bx, by, bz)
	ty, ok := m.reg.Get(here.ID)
	if !ok {
		return 0
	}
	return ty.MaterialFor(face.Role(), here.State)
}

func (m *ParityMesher) neighborMaterial(face Face, wx, wy, wz int32) block.MaterialID {
	nb := m.sample(wx, wy, wz)
	ty, ok := m.reg.Get(nb.ID)
	if !ok {
		return 0
	}
	return ty.MaterialFor(face.Role(), nb.State)
}

// ComputeParity fills the parity, owner-sign and material grids for the
// three face axes, for both the solid and the water occupancy.
func (m *ParityMesher) ComputeParity() {
	m.computeParityX(m.sc.occs, m.sc.grids, nil)
	m.computeParityX(m.sc.occsWater, m.sc.gridsWater, m.sc.occs)
	m.computeParityY(m.sc.occs, m.sc.grids, nil)
	m.computeParityY(m.sc.occsWater, m.sc.gridsWater, m.sc.occs)
	m.computeParityZ(m.sc.occs, m.sc.grids, nil)
	m.computeParityZ(m.sc.occsWater, m.sc.gridsWater, m.sc.occs)
}

// computeParityX walks every X-face plane. For the water grid, `solids` is
// the solid occupancy used to suppress water-to-solid faces.
func (m *ParityMesher) computeParityX(occs *occGrids, grids *faceGrids, solids *occGrids) {
	s := m.s
	nx, ny, nz := occs.nx, occs.ny, occs.nz
	for ix := 0; ix <= nx; ix++ {
		for iy := 0; iy < ny; iy++ {
			for iz := 0; iz < nz; iz++ {
				a := ix > 0 && occs.get(ix-1, iy, iz)
				if ix == 0 {
					a = occs.seamX.get(occs.idxSX(iy, iz))
				}
				b := ix < nx && occs.get(ix, iy, iz)
				idx := grids.idxX(ix, iy, iz)
				if a == b {
					grids.px.set(idx, false)
					grids.kx[idx] = 0
					continue
				}
				grids.px.set(idx, true)
				ownerPos := a
				grids.ox.set(idx, ownerPos)
				if solids != nil {
					aS := ix > 0 && solids.get(ix-1, iy, iz)
					if ix == 0 {
						aS = solids.seamX.get(solids.idxSX(iy, iz))
					}
					bS := ix < nx && solids.get(ix, iy, iz)
					solidOther := bS
					if !ownerPos {
						solidOther = aS
					}
					if solidOther {
						grids.kx[idx] = 0
						continue
					}
				}
				face := FaceNegX
				if ownerPos {
					face = FacePosX
				}
				var mid block.MaterialID
				if ownerPos {
					if ix == 0 {
						by := minInt(iy/s, m.sy-1)
						bz := minInt(iz/s, m.sz-1)
						mid = m.neighborMaterial(face, m.baseX-1, m.baseY+int32(by), m.baseZ+int32(bz))
					} else {
						mid = m.ownerMaterial(face, minInt((ix-1)/s, m.sx-1), minInt(iy/s, m.sy-1), minInt(iz/s, m.sz-1))
					}
				} else {
					mid = m.ownerMaterial(face, minInt(ix/s, m.sx-1), minInt(iy/s, m.sy-1), minInt(iz/s, m.sz-1))
				}
				grids.kx[idx] = mid
			}
		}
	}
}

func (m *ParityMesher) computeParityY(occs *occGrids, grids *faceGrids, solids *occGrids) {
	s := m.s
	nx, ny, nz := occs.nx, occs.ny, occs.nz
	for iy := 0; iy <= ny; iy++ {
		for iz := 0; iz < nz; iz++ {
			for ix := 0; ix < nx; ix++ {
				a := iy > 0 && occs.get(ix, iy-1, iz)
				b := iy < ny && occs.get(ix, iy, iz)
				idx := grids.idxY(ix, iy, iz)
				if a == b {
					grids.py.set(idx, false)
					grids.ky[idx] = 0
					continue
				}
				grids.py.set(idx, true)
				ownerPos := a
				grids.oy.set(idx, ownerPos)
				if solids != nil {
					aS := iy > 0 && solids.get(ix, iy-1, iz)
					bS := iy < ny && solids.get(ix, iy, iz)
					solidOther := bS
					if !ownerPos {
						solidOther = aS
					}
					if solidOther {
						grids.ky[idx] = 0
						continue
					}
				}
				face := FaceNegY
				byOwner := iy
				if ownerPos {
					face = FacePosY
					if iy > 0 {
						byOwner = iy - 1
					}
				}
				grids.ky[idx] = m.ownerMaterial(face, minInt(ix/s, m.sx-1), minInt(byOwner/s, m.sy-1), minInt(iz/s, m.sz-1))
			}
		}
	}
}

func (m *ParityMesher) computeParityZ(occs *occGrids, grids *faceGrids, solids *occGrids) {
	s := m.s
	nx, ny, nz := occs.nx, occs.ny, occs.nz
	for iz := 0; iz <= nz; iz++ {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				a := iz > 0 && occs.get(ix, iy, iz-1)
				if iz == 0 {
					a = occs.seamZ.get(occs.idxSZ(ix, iy))
				}
				b := iz < nz && occs.get(ix, iy, iz)
				idx := grids.idxZ(ix, iy, iz)
				if a == b {
					grids.pz.set(idx, false)
					grids.kz[idx] = 0
					continue
				}
				grids.pz.set(idx, true)
				ownerPos := a
				grids.oz.set(idx, ownerPos)
				if solids != nil {
					aS := iz > 0 && solids.get(ix, iy, iz-1)
					if iz == 0 {
						aS = solids.seamZ.get(solids.idxSZ(ix, iy))
					}
					bS := iz < nz && solids.get(ix, iy, iz)
					solidOther := bS
					if !ownerPos {
						solidOther = aS
					}
					if solidOther {
						grids.kz[idx] = 0
						continue
					}
				}
				face := FaceNegZ
				if ownerPos {
					face = FacePosZ
				}
				var mid block.MaterialID
				if ownerPos {
					if iz == 0 {
						bx := minInt(ix/s, m.sx-1)
						by := minInt(iy/s, m.sy-1)
						mid = m.neighborMaterial(face, m.baseX+int32(bx), m.baseY+int32(by), m.baseZ-1)
					} else {
						mid = m.ownerMaterial(face, minInt(ix/s, m.sx-1), minInt(iy/s, m.sy-1), minInt((iz-1)/s, m.sz-1))
					}
				} else {
					mid = m.ownerMaterial(face, minInt(ix/s, m.sx-1), minInt(iy/s, m.sy-1), minInt(iz/s, m.sz-1))
				}
				grids.kz[idx] = mid
			}
		}
	}
}

// EmitInto greedy-emits the computed faces into the sink: solids first,
// then the water grids, each in X, Y, Z axis order.
func (m *ParityMesher) EmitInto(sink BuildSink) {
	m.emitPlaneX(m.sc.grids, sink)
	m.emitPlaneY(m.sc.grids, sink)
	m.emitPlaneZ(m.sc.grids, sink)
	if m.includeWater {
		m.emitPlaneX(m.sc.gridsWater, sink)
		m.emitPlaneY(m.sc.gridsWater, sink)
		m.emitPlaneZ(m.sc.gridsWater, sink)
	}
}

// greedyPlane runs the shared 2D greedy sweep for one axis. Layer faces are
// indexed through at/origin callbacks so the three axes share the visited
// epoch machinery.
func (m *ParityMesher) greedyPlane(sink BuildSink, layers, width, height int,
	at func(layer, u, v int) int, grids *faceGrids, axis int) {
	visited := m.sc.visited
	needed := width * height
	for i := 0; i < needed; i++ {
		visited[i] = 0
	}
	scale := float32(1) / float32(m.s)
	var parity *bitset
	var owner *bitset
	var mats []block.MaterialID
	var posFace, negFace Face
	switch axis {
	case 0:
		parity, owner, mats = &grids.px, &grids.ox, grids.kx
		posFace, negFace = FacePosX, FaceNegX
	case 1:
		parity, owner, mats = &grids.py, &grids.oy, grids.ky
		posFace, negFace = FacePosY, FaceNegY
	default:
		parity, owner, mats = &grids.pz, &grids.oz, grids.kz
		posFace, negFace = FacePosZ, FaceNegZ
	}
	epoch := uint8(1)
	for layer := 0; layer < layers; layer++ {
		epoch++
		if epoch == 0 {
			for i := 0; i < needed; i++ {
				visited[i] = 0
			}
			epoch = 1
		}
		idx2d := func(u, v int) int { return v*width + u }
		for v := 0; v < height; v++ {
			for u := 0; u < width; {
				if visited[idx2d(u, v)] == epoch {
					u++
					continue
				}
				idx := at(layer, u, v)
				if !parity.get(idx) {
					u++
					continue
				}
				mid := mats[idx]
				if mid == 0 {
					u++
					continue
				}
				pos := owner.get(idx)
				runW := 1
				for u+runW < width {
					if visited[idx2d(u+runW, v)] == epoch {
						break
					}
					n := at(layer, u+runW, v)
					if !parity.get(n) || mats[n] != mid || owner.get(n) != pos {
						break
					}
					runW++
				}
				runH := 1
			heightScan:
				for v+runH < height {
					for uu := u; uu < u+runW; uu++ {
						if visited[idx2d(uu, v+runH)] == epoch {
							break heightScan
						}
						n := at(layer, uu, v+runH)
						if !parity.get(n) || mats[n] != mid || owner.get(n) != pos {
							break heightScan
						}
					}
					runH++
				}
				face := negFace
				if pos {
					face = posFace
				}
				var origin mgl32.Vec3
				switch axis {
				case 0:
					origin = mgl32.Vec3{
						float32(m.baseX) + float32(layer)*scale,
						float32(m.baseY) + float32(v)*scale,
						float32(m.baseZ) + float32(u)*scale,
					}
				case 1:
					origin = mgl32.Vec3{
						float32(m.baseX) + float32(u)*scale,
						float32(m.baseY) + float32(layer)*scale,
						float32(m.baseZ) + float32(v)*scale,
					}
				default:
					origin = mgl32.Vec3{
						float32(m.baseX) + float32(u)*scale,
						float32(m.baseY) + float32(v)*scale,
						float32(m.baseZ) + float32(layer)*scale,
					}
				}
				rgba := [4]uint8{255, 255, 255, 255}
				cmin, cmax := m.clipBounds()
				emitFaceRectClipped(sink, mid, face, origin, float32(runW)*scale, float32(runH)*scale, rgba, cmin, cmax)
				for dv := 0; dv < runH; dv++ {
					for du := 0; du < runW; du++ {
						visited[idx2d(u+du, v+dv)] = epoch
					}
				}
				u += runW
			}
		}
	}
}

func (m *ParityMesher) clipBounds() (mgl32.Vec3, mgl32.Vec3) {
	return mgl32.Vec3{float32(m.baseX), float32(m.baseY), float32(m.baseZ)},
		mgl32.Vec3{
			float32(m.baseX) + float32(m.sx),
			float32(m.baseY) + float32(m.sy),
			float32(m.baseZ) + float32(m.sz),
		}
}

// emitPlaneX sweeps the X-face layers with u along Z and v along Y. The
// +X boundary layer is owned and emitted by the +X neighbor chunk through
// its seam overscan, so the sweep stops short of it.
func (m *ParityMesher) emitPlaneX(grids *faceGrids, sink BuildSink) {
	s := m.s
	m.greedyPlane(sink, s*m.sx, s*m.sz, s*m.sy, func(layer, u, v int) int {
		return grids.idxX(layer, v, u)
	}, grids, 0)
}

// emitPlaneY sweeps the Y-face layers with u along X and v along Z. There
// is no vertical seam overscan, so the top boundary layer is emitted here.
func (m *ParityMesher) emitPlaneY(grids *faceGrids, sink BuildSink) {
	s := m.s
	m.greedyPlane(sink, s*m.sy+1, s*m.sx, s*m.sz, func(layer, u, v int) int {
		return grids.idxY(u, layer, v)
	}, grids, 1)
}

// emitPlaneZ sweeps the Z-face layers with u along X and v along Y; the +Z
// boundary layer belongs to the +Z neighbor like the X axis.
func (m *ParityMesher) emitPlaneZ(grids *faceGrids, sink BuildSink) {
	s := m.s
	m.greedyPlane(sink, s*m.sz, s*m.sx, s*m.sy, func(layer, u, v int) int {
		return grids.idxZ(u, v, layer)
	}, grids, 2)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
