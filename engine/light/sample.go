package light

import (
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

func planeAt(p []uint8, i int) uint8 {
	if p == nil || i < 0 || i >= len(p) {
		return 0
	}
	return p[i]
}

func (g *Grid) combined(i int) uint8 {
	return max8(max8(g.Skylight[i], g.BlockLight[i]), g.BeaconLight[i])
}

// NeighborLightMax returns the strongest channel visible across the given
// face of (x,y,z). In-bounds neighbors sample the grid; at the chunk
// boundary the captured neighbor planes answer, falling back to the local
// edge voxel when no plane was published.
func (g *Grid) NeighborLightMax(x, y, z, face int) uint8 {
	nx, ny, nz := x, y, z
	switch face {
	case block.FacePosY:
		ny++
	case block.FaceNegY:
		ny--
	case block.FacePosX:
		nx++
	case block.FaceNegX:
		nx--
	case block.FacePosZ:
		nz++
	case block.FaceNegZ:
		nz--
	default:
		return 0
	}
	if nx >= 0 && ny >= 0 && nz >= 0 && nx < g.Sx && ny < g.Sy && nz < g.Sz {
		return g.combined(g.Idx(nx, ny, nz))
	}
	if g.nb == nil {
		return 0
	}
	var sky, blk, bcn uint8
	var edge int
	switch face {
	case block.FacePosX:
		i := y*g.Sz + z
		sky, blk, bcn = planeAt(g.nb.SkXp, i), planeAt(g.nb.Xp, i), planeAt(g.nb.BcnXp, i)
		edge = g.Idx(g.Sx-1, y, z)
	case block.FaceNegX:
		i := y*g.Sz + z
		sky, blk, bcn = planeAt(g.nb.SkXn, i), planeAt(g.nb.Xn, i), planeAt(g.nb.BcnXn, i)
		edge = g.Idx(0, y, z)
	case block.FacePosZ:
		i := y*g.Sx + x
		sky, blk, bcn = planeAt(g.nb.SkZp, i), planeAt(g.nb.Zp, i), planeAt(g.nb.BcnZp, i)
		edge = g.Idx(x, y, g.Sz-1)
	case block.FaceNegZ:
		i := y*g.Sx + x
		sky, blk, bcn = planeAt(g.nb.SkZn, i), planeAt(g.nb.Zn, i), planeAt(g.nb.BcnZn, i)
		edge = g.Idx(x, y, 0)
	case block.FacePosY:
		i := z*g.Sx + x
		sky, blk, bcn = planeAt(g.nb.SkYp, i), planeAt(g.nb.Yp, i), planeAt(g.nb.BcnYp, i)
		edge = g.Idx(x, g.Sy-1, z)
	case block.FaceNegY:
		i := z*g.Sx + x
		sky, blk, bcn = planeAt(g.nb.SkYn, i), planeAt(g.nb.Yn, i), planeAt(g.nb.BcnYn, i)
		edge = g.Idx(x, 0, z)
	}
	if m := max8(max8(sky, blk), bcn); m > 0 {
		return m
	}
	return g.combined(edge)
}

// SampleFaceLocal returns the light for a face as the max of the local
// voxel and the plain neighbor sample.
func (g *Grid) SampleFaceLocal(x, y, z, face int) uint8 {
	local := g.combined(g.Idx(x, y, z))
	return max8(local, g.NeighborLightMax(x, y, z, face))
}

// SampleFaceLocalS2 is the seam- and occupancy-aware face light sample.
// When micro fields are present the face value is the max over the two
// micro voxels straddling each plane cell, using neighbor micro seams past
// the chunk boundary. Without micro fields it falls back to a conservative
// sample of the four micro-adjacent voxels, short-circuiting to the local
// value when the neighbor's facing side is fully sealed.
func (g *Grid) SampleFaceLocalS2(buf *chunk.Buf, reg *block.Registry, x, y, z, face int) uint8 {
	if g.mSky != nil && g.mBlk != nil {
		return g.sampleFaceMicro(x, y, z, face)
	}
	local := g.combined(g.Idx(x, y, z))
	nx, ny, nz := x, y, z
	switch face {
	case block.FacePosY:
		ny++
	case block.FaceNegY:
		ny--
	case block.FacePosX:
		nx++
	case block.FaceNegX:
		nx--
	case block.FacePosZ:
		nz++
	case block.FaceNegZ:
		nz--
	default:
		return local
	}
	if nx < 0 || ny < 0 || nz < 0 || nx >= buf.Sx || ny >= buf.Sy || nz >= buf.Sz {
		return max8(local, g.NeighborLightMax(x, y, z, face))
	}
	there := buf.GetLocal(nx, ny, nz)
	if block.FaceFullyCovered(reg, there, oppositeFace(face)) {
		return local
	}
	// Approximate the neighbor contribution by the best of the voxels
	// micro-adjacent to the shared plane.
	var nbMax uint8
	upd := func(px, py, pz int) {
		if px >= 0 && py >= 0 && pz >= 0 && px < buf.Sx && py < buf.Sy && pz < buf.Sz {
			nbMax = max8(nbMax, g.combined(g.Idx(px, py, pz)))
		}
	}
	switch face {
	case block.FacePosX, block.FaceNegX:
		for my := 0; my <= 1; my++ {
			for mz := 0; mz <= 1; mz++ {
				upd(nx, ny+my, nz+mz)
			}
		}
	case block.FacePosY, block.FaceNegY:
		for mx := 0; mx <= 1; mx++ {
			for mz := 0; mz <= 1; mz++ {
				upd(nx+mx, ny, nz+mz)
			}
		}
	case block.FacePosZ, block.FaceNegZ:
		for mx := 0; mx <= 1; mx++ {
			for my := 0; my <= 1; my++ {
				upd(nx+mx, ny+my, nz)
			}
		}
	}
	return max8(local, nbMax)
}

func (g *Grid) sampleFaceMicro(x, y, z, face int) uint8 {
	lval := func(mx, my, mz int) uint8 {
		if mx < 0 || my < 0 || mz < 0 || mx >= g.mxs || my >= g.mys || mz >= g.mzs {
			return 0
		}
		mi := g.midx(mx, my, mz)
		return max8(g.mSky[mi], g.mBlk[mi])
	}
	microPlane := func(sk, bl []uint8, i int) uint8 {
		return max8(planeAt(sk, i), planeAt(bl, i))
	}
	var maxV uint8
	bx, by, bz := 2*x, 2*y, 2*z
	switch face {
	case block.FacePosX, block.FaceNegX:
		mxHere, mxNb := bx+1, bx+2
		if face == block.FaceNegX {
			mxHere, mxNb = bx, bx-1
		}
		for oy := 0; oy < 2; oy++ {
			for oz := 0; oz < 2; oz++ {
				my, mz := by+oy, bz+oz
				a := lval(mxHere, my, mz)
				var b uint8
				if mxNb >= 0 && mxNb < g.mxs {
					b = lval(mxNb, my, mz)
				} else if g.mnb != nil {
					if face == block.FacePosX {
						b = microPlane(g.mnb.XmSkPos, g.mnb.XmBlPos, my*g.mzs+mz)
					} else {
						b = microPlane(g.mnb.XmSkNeg, g.mnb.XmBlNeg, my*g.mzs+mz)
					}
				}
				maxV = max8(maxV, max8(a, b))
			}
		}
	case block.FacePosZ, block.FaceNegZ:
		mzHere, mzNb := bz+1, bz+2
		if face == block.FaceNegZ {
			mzHere, mzNb = bz, bz-1
		}
		for oy := 0; oy < 2; oy++ {
			for ox := 0; ox < 2; ox++ {
				my, mx := by+oy, bx+ox
				a := lval(mx, my, mzHere)
				var b uint8
				if mzNb >= 0 && mzNb < g.mzs {
					b = lval(mx, my, mzNb)
				} else if g.mnb != nil {
					if face == block.FacePosZ {
						b = microPlane(g.mnb.ZmSkPos, g.mnb.ZmBlPos, my*g.mxs+mx)
					} else {
						b = microPlane(g.mnb.ZmSkNeg, g.mnb.ZmBlNeg, my*g.mxs+mx)
					}
				}
				maxV = max8(maxV, max8(a, b))
			}
		}
	case block.FacePosY, block.FaceNegY:
		myHere, myNb := by+1, by+2
		if face == block.FaceNegY {
			myHere, myNb = by, by-1
		}
		for oz := 0; oz < 2; oz++ {
			for ox := 0; ox < 2; ox++ {
				mz, mx := bz+oz, bx+ox
				a := lval(mx, myHere, mz)
				var b uint8
				if myNb >= 0 && myNb < g.mys {
					b = lval(mx, myNb, mz)
				} else if g.mnb != nil {
					if face == block.FacePosY {
						b = microPlane(g.mnb.YmSkPos, g.mnb.YmBlPos, mz*g.mxs+mx)
					} else {
						b = microPlane(g.mnb.YmSkNeg, g.mnb.YmBlNeg, mz*g.mxs+mx)
					}
				}
				maxV = max8(maxV, max8(a, b))
			}
		}
	}
	// Beacons only exist at macro resolution; keep them visible on faces.
	return max8(maxV, g.BeaconLight[g.Idx(x, y, z)])
}

func oppositeFace(face int) int {
	switch face {
	case block.FacePosY:
		return block.FaceNegY
	case block.FaceNegY:
		return block.FacePosY
	case block.FacePosX:
		return block.FaceNegX
	case block.FaceNegX:
		return block.FacePosX
	case block.FacePosZ:
		return block.FaceNegZ
	case block.FaceNegZ:
		return block.FacePosZ
	}
	return face
}
