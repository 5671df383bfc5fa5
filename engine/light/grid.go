package light

import (
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

// Attenuation constants. Macro seam seeds lose CoarseSeamAttenuation when
// crossing a chunk boundary; micro seam seeds and interior micro steps cost
// MicroStepAttenuation each.
const (
	CoarseSeamAttenuation = 32
	MicroStepAttenuation  = 16
)

// Grid is the computed lighting of one chunk: macro skylight, omni block
// light and beacon fields, plus the S=2 micro fields the macro values are
// reduced from. Neighbor planes captured at compute time allow seam-aware
// face sampling without touching the store again.
type Grid struct {
	Sx, Sy, Sz int

	Skylight    []uint8
	BlockLight  []uint8
	BeaconLight []uint8
	BeaconDir   []uint8

	mSky, mBlk    []uint8
	mxs, mys, mzs int

	nb  *NeighborBorders
	mnb *NeighborMicroBorders
}

// NewGrid allocates a dark grid for the given dimensions.
func NewGrid(sx, sy, sz int) *Grid {
	g := &Grid{
		Sx: sx, Sy: sy, Sz: sz,
		Skylight:    make([]uint8, sx*sy*sz),
		BlockLight:  make([]uint8, sx*sy*sz),
		BeaconLight: make([]uint8, sx*sy*sz),
		BeaconDir:   make([]uint8, sx*sy*sz),
		mxs:         2 * sx, mys: 2 * sy, mzs: 2 * sz,
	}
	return g
}

// Idx converts macro coordinates to the flat index.
func (g *Grid) Idx(x, y, z int) int { return (y*g.Sz+z)*g.Sx + x }

func (g *Grid) midx(mx, my, mz int) int { return (my*g.mzs+mz)*g.mxs + mx }

type microSeed struct {
	mx, my, mz int
	level      uint8
	att        uint8 // per-macro-step attenuation carried by the seed
}

type beaconSeed struct {
	x, y, z    int
	level      uint8
	dir        uint8
	sc, tc, vc uint8
}

func skylightTransparent(reg *block.Registry, b block.Block) bool {
	if b.IsAir() {
		return true
	}
	ty, ok := reg.Get(b.ID)
	return ok && !ty.BlocksSkylightAt(b.State)
}

// skyMicroEnterable gates micro skylight BFS entry into a voxel. Full
// opaque cubes block; micro-occupied shapes are enterable (cell solidity is
// checked separately); other shapes follow the coarse flag.
func skyMicroEnterable(reg *block.Registry, b block.Block) bool {
	if b.IsAir() {
		return true
	}
	ty, ok := reg.Get(b.ID)
	if !ok {
		return false
	}
	if ty.IsSolid(b.State) && ty.IsFullCube() {
		return !ty.BlocksSkylightAt(b.State)
	}
	if _, micro := ty.Occupancy(b.State); micro {
		return true
	}
	return !ty.BlocksSkylightAt(b.State)
}

func blockLightPassable(reg *block.Registry, b block.Block) bool {
	if b.IsAir() {
		return true
	}
	ty, ok := reg.Get(b.ID)
	return ok && ty.PropagatesLightAt(b.State)
}

// CanCrossFace decides whether light may cross the face between (x,y,z) and
// its neighbor in the given direction: the face is open when any of the
// four micro cells straddling the shared plane is open on both sides.
// Out-of-bounds neighbors are closed.
func CanCrossFace(reg *block.Registry, buf *chunk.Buf, x, y, z, face int) bool {
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
		return false
	}
	if nx < 0 || ny < 0 || nz < 0 || nx >= buf.Sx || ny >= buf.Sy || nz >= buf.Sz {
		return false
	}
	here := buf.GetLocal(x, y, z)
	there := buf.GetLocal(nx, ny, nz)
	for i0 := 0; i0 < 2; i0++ {
		for i1 := 0; i1 < 2; i1++ {
			if block.MicroFaceCellOpen(reg, here, there, face, i0, i1) {
				return true
			}
		}
	}
	return false
}

// Compute runs a full lighting pass over the chunk, seeded by the store's
// neighbor borders, micro seams and emitter registry. The result is
// deterministic for identical inputs and values only grow within the pass.
func Compute(buf *chunk.Buf, store *Store, reg *block.Registry) *Grid {
	sx, sy, sz := buf.Sx, buf.Sy, buf.Sz
	g := NewGrid(sx, sy, sz)
	g.mSky = make([]uint8, g.mxs*g.mys*g.mzs)
	g.mBlk = make([]uint8, g.mxs*g.mys*g.mzs)
	skyMax := store.SkylightMax()

	var qSky, qBlk []microSeed
	var qBcn []beaconSeed

	// Skylight column seeding: walk each column from the top while the
	// blocks stay skylight-transparent; open micro cells get the full sky
	// value.
	for z := 0; z < sz; z++ {
		for x := 0; x < sx; x++ {
			for y := sy - 1; y >= 0; y-- {
				b := buf.GetLocal(x, y, z)
				if !skylightTransparent(reg, b) {
					break
				}
				for my := 2*y + 1; my >= 2*y; my-- {
					for mz := 2 * z; mz < 2*z+2; mz++ {
						for mx := 2 * x; mx < 2*x+2; mx++ {
							if block.MicroCellSolid(reg, b, mx&1, my&1, mz&1) {
								continue
							}
							mi := g.midx(mx, my, mz)
							if g.mSky[mi] < skyMax {
								g.mSky[mi] = skyMax
								qSky = append(qSky, microSeed{mx, my, mz, skyMax, CoarseSeamAttenuation})
							}
						}
					}
				}
			}
		}
	}

	// Emitter seeding: blocks with emission plus the store's registry. The
	// emitter's own cells light up even when solid; the glow escapes during
	// propagation.
	seedOmni := func(x, y, z int, level, att uint8) {
		for my := 2 * y; my < 2*y+2; my++ {
			for mz := 2 * z; mz < 2*z+2; mz++ {
				for mx := 2 * x; mx < 2*x+2; mx++ {
					mi := g.midx(mx, my, mz)
					if g.mBlk[mi] < level {
						g.mBlk[mi] = level
						qBlk = append(qBlk, microSeed{mx, my, mz, level, att})
					}
				}
			}
		}
	}
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				b := buf.GetLocal(x, y, z)
				ty, ok := reg.Get(b.ID)
				if !ok {
					continue
				}
				em := ty.LightEmission(b.State)
				if em == 0 {
					continue
				}
				if ty.IsBeam() {
					idx := g.Idx(x, y, z)
					g.BeaconLight[idx] = em
					g.BeaconDir[idx] = BeaconOrigin
					sc, tc, vc := ty.BeamParams()
					qBcn = append(qBcn, beaconSeed{x, y, z, em, BeaconOrigin, sc, tc, vc})
					continue
				}
				seedOmni(x, y, z, em, ty.OmniAttenuation())
			}
		}
	}
	for _, e := range store.EmittersForChunk(buf.Coord) {
		if e.Beacon {
			idx := g.Idx(e.Lx, e.Ly, e.Lz)
			if g.BeaconLight[idx] < e.Level {
				g.BeaconLight[idx] = e.Level
				g.BeaconDir[idx] = BeaconOrigin
				qBcn = append(qBcn, beaconSeed{e.Lx, e.Ly, e.Lz, e.Level, BeaconOrigin, 1, 32, 32})
			}
			continue
		}
		seedOmni(e.Lx, e.Ly, e.Lz, e.Level, block.DefaultOmniAttenuation)
	}

	// Neighbor seeding. Coarse planes lose the seam attenuation and land on
	// the four micro cells behind the face; micro planes lose the smaller
	// micro cost and land on their exact cell. Micro seeds win ties by
	// writing higher values.
	nb := store.NeighborBorders(buf.Coord)
	mnb := store.NeighborMicroBorders(buf.Coord)
	g.nb, g.mnb = nb, mnb

	seedCoarsePlane := func(field []uint8, q *[]microSeed, plane []uint8, face int) {
		if plane == nil {
			return
		}
		writeCell := func(mx, my, mz int, v uint8) {
			mi := g.midx(mx, my, mz)
			if field[mi] < v {
				field[mi] = v
				*q = append(*q, microSeed{mx, my, mz, v, CoarseSeamAttenuation})
			}
		}
		switch face {
		case block.FaceNegX, block.FacePosX:
			mx := 0
			if face == block.FacePosX {
				mx = g.mxs - 1
			}
			for y := 0; y < sy; y++ {
				for z := 0; z < sz; z++ {
					v := int(plane[y*sz+z]) - CoarseSeamAttenuation
					if v <= 0 {
						continue
					}
					for oy := 0; oy < 2; oy++ {
						for oz := 0; oz < 2; oz++ {
							writeCell(mx, 2*y+oy, 2*z+oz, uint8(v))
						}
					}
				}
			}
		case block.FaceNegZ, block.FacePosZ:
			mz := 0
			if face == block.FacePosZ {
				mz = g.mzs - 1
			}
			for y := 0; y < sy; y++ {
				for x := 0; x < sx; x++ {
					v := int(plane[y*sx+x]) - CoarseSeamAttenuation
					if v <= 0 {
						continue
					}
					for oy := 0; oy < 2; oy++ {
						for ox := 0; ox < 2; ox++ {
							writeCell(2*x+ox, 2*y+oy, mz, uint8(v))
						}
					}
				}
			}
		case block.FaceNegY, block.FacePosY:
			my := 0
			if face == block.FacePosY {
				my = g.mys - 1
			}
			for z := 0; z < sz; z++ {
				for x := 0; x < sx; x++ {
					v := int(plane[z*sx+x]) - CoarseSeamAttenuation
					if v <= 0 {
						continue
					}
					for oz := 0; oz < 2; oz++ {
						for ox := 0; ox < 2; ox++ {
							writeCell(2*x+ox, my, 2*z+oz, uint8(v))
						}
					}
				}
			}
		}
	}
	seedCoarsePlane(g.mBlk, &qBlk, nb.Xn, block.FaceNegX)
	seedCoarsePlane(g.mBlk, &qBlk, nb.Xp, block.FacePosX)
	seedCoarsePlane(g.mBlk, &qBlk, nb.Zn, block.FaceNegZ)
	seedCoarsePlane(g.mBlk, &qBlk, nb.Zp, block.FacePosZ)
	seedCoarsePlane(g.mBlk, &qBlk, nb.Yn, block.FaceNegY)
	seedCoarsePlane(g.mBlk, &qBlk, nb.Yp, block.FacePosY)
	seedCoarsePlane(g.mSky, &qSky, nb.SkXn, block.FaceNegX)
	seedCoarsePlane(g.mSky, &qSky, nb.SkXp, block.FacePosX)
	seedCoarsePlane(g.mSky, &qSky, nb.SkZn, block.FaceNegZ)
	seedCoarsePlane(g.mSky, &qSky, nb.SkZp, block.FacePosZ)
	seedCoarsePlane(g.mSky, &qSky, nb.SkYn, block.FaceNegY)
	seedCoarsePlane(g.mSky, &qSky, nb.SkYp, block.FacePosY)

	seedMicroPlane := func(field []uint8, q *[]microSeed, plane []uint8, face int) {
		if plane == nil {
			return
		}
		writeCell := func(mx, my, mz int, v uint8) {
			mi := g.midx(mx, my, mz)
			if field[mi] < v {
				field[mi] = v
				*q = append(*q, microSeed{mx, my, mz, v, CoarseSeamAttenuation})
			}
		}
		switch face {
		case block.FaceNegX, block.FacePosX:
			mx := 0
			if face == block.FacePosX {
				mx = g.mxs - 1
			}
			for my := 0; my < g.mys; my++ {
				for mz := 0; mz < g.mzs; mz++ {
					v := int(plane[my*g.mzs+mz]) - MicroStepAttenuation
					if v > 0 {
						writeCell(mx, my, mz, uint8(v))
					}
				}
			}
		case block.FaceNegZ, block.FacePosZ:
			mz := 0
			if face == block.FacePosZ {
				mz = g.mzs - 1
			}
			for my := 0; my < g.mys; my++ {
				for mx2 := 0; mx2 < g.mxs; mx2++ {
					v := int(plane[my*g.mxs+mx2]) - MicroStepAttenuation
					if v > 0 {
						writeCell(mx2, my, mz, uint8(v))
					}
				}
			}
		case block.FaceNegY, block.FacePosY:
			my := 0
			if face == block.FacePosY {
				my = g.mys - 1
			}
			for mz := 0; mz < g.mzs; mz++ {
				for mx2 := 0; mx2 < g.mxs; mx2++ {
					v := int(plane[mz*g.mxs+mx2]) - MicroStepAttenuation
					if v > 0 {
						writeCell(mx2, my, mz, uint8(v))
					}
				}
			}
		}
	}
	seedMicroPlane(g.mSky, &qSky, mnb.XmSkNeg, block.FaceNegX)
	seedMicroPlane(g.mSky, &qSky, mnb.XmSkPos, block.FacePosX)
	seedMicroPlane(g.mSky, &qSky, mnb.ZmSkNeg, block.FaceNegZ)
	seedMicroPlane(g.mSky, &qSky, mnb.ZmSkPos, block.FacePosZ)
	seedMicroPlane(g.mSky, &qSky, mnb.YmSkNeg, block.FaceNegY)
	seedMicroPlane(g.mSky, &qSky, mnb.YmSkPos, block.FacePosY)
	seedMicroPlane(g.mBlk, &qBlk, mnb.XmBlNeg, block.FaceNegX)
	seedMicroPlane(g.mBlk, &qBlk, mnb.XmBlPos, block.FacePosX)
	seedMicroPlane(g.mBlk, &qBlk, mnb.ZmBlNeg, block.FaceNegZ)
	seedMicroPlane(g.mBlk, &qBlk, mnb.ZmBlPos, block.FacePosZ)
	seedMicroPlane(g.mBlk, &qBlk, mnb.YmBlNeg, block.FaceNegY)
	seedMicroPlane(g.mBlk, &qBlk, mnb.YmBlPos, block.FacePosY)

	// Beacon neighbor planes seed the macro beacon queue. Continuing along
	// the beam's direction costs a single step, anything else pays the full
	// seam attenuation.
	seedBeaconPlane := func(plane, dirPlane []uint8, face int) {
		if plane == nil {
			return
		}
		seed := func(x, y, z, ii int) {
			dir := uint8(BeaconNone)
			if dirPlane != nil {
				dir = dirPlane[ii]
			}
			att := CoarseSeamAttenuation
			if dir >= BeaconPosX && dir <= BeaconNegZ {
				att = 1
			}
			v := int(plane[ii]) - att
			if v <= 0 {
				return
			}
			idx := g.Idx(x, y, z)
			if g.BeaconLight[idx] < uint8(v) {
				g.BeaconLight[idx] = uint8(v)
				g.BeaconDir[idx] = dir
				qBcn = append(qBcn, beaconSeed{x, y, z, uint8(v), dir, 1, 32, 32})
			}
		}
		switch face {
		case block.FaceNegX:
			for y := 0; y < sy; y++ {
				for z := 0; z < sz; z++ {
					seed(0, y, z, y*sz+z)
				}
			}
		case block.FacePosX:
			for y := 0; y < sy; y++ {
				for z := 0; z < sz; z++ {
					seed(sx-1, y, z, y*sz+z)
				}
			}
		case block.FaceNegZ:
			for y := 0; y < sy; y++ {
				for x := 0; x < sx; x++ {
					seed(x, y, 0, y*sx+x)
				}
			}
		case block.FacePosZ:
			for y := 0; y < sy; y++ {
				for x := 0; x < sx; x++ {
					seed(x, y, sz-1, y*sx+x)
				}
			}
		}
	}
	seedBeaconPlane(nb.BcnXn, nb.BcnDirXn, block.FaceNegX)
	seedBeaconPlane(nb.BcnXp, nb.BcnDirXp, block.FacePosX)
	seedBeaconPlane(nb.BcnZn, nb.BcnDirZn, block.FaceNegZ)
	seedBeaconPlane(nb.BcnZp, nb.BcnDirZp, block.FacePosZ)

	// Micro BFS over the sky and block channels.
	g.propagateMicro(buf, reg, qSky, true)
	g.propagateMicro(buf, reg, qBlk, false)

	// Direction-aware macro BFS for beacons.
	g.propagateBeacon(buf, reg, qBcn)

	// Reduce micro fields to the macro grids.
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				var sk, bl uint8
				for my := 2 * y; my < 2*y+2; my++ {
					for mz := 2 * z; mz < 2*z+2; mz++ {
						for mx := 2 * x; mx < 2*x+2; mx++ {
							mi := g.midx(mx, my, mz)
							sk = max8(sk, g.mSky[mi])
							bl = max8(bl, g.mBlk[mi])
						}
					}
				}
				idx := g.Idx(x, y, z)
				g.Skylight[idx] = sk
				g.BlockLight[idx] = bl
			}
		}
	}
	return g
}

func (g *Grid) propagateMicro(buf *chunk.Buf, reg *block.Registry, queue []microSeed, sky bool) {
	field := g.mBlk
	if sky {
		field = g.mSky
	}
	for head := 0; head < len(queue); head++ {
		s := queue[head]
		if s.level <= 1 {
			continue
		}
		// A solid source cell holds its value (border seeds land on sealed
		// edge voxels) but only radiates if its block emits light.
		src := buf.GetLocal(s.mx/2, s.my/2, s.mz/2)
		if block.MicroCellSolid(reg, src, s.mx&1, s.my&1, s.mz&1) {
			ty, ok := reg.Get(src.ID)
			if !ok || ty.LightEmission(src.State) == 0 {
				continue
			}
		}
		cost := int(s.att) / 2
		if cost < 1 {
			cost = 1
		}
		for face := 0; face < 6; face++ {
			nmx, nmy, nmz := s.mx, s.my, s.mz
			switch face {
			case block.FacePosY:
				nmy++
			case block.FaceNegY:
				nmy--
			case block.FacePosX:
				nmx++
			case block.FaceNegX:
				nmx--
			case block.FacePosZ:
				nmz++
			case block.FaceNegZ:
				nmz--
			}
			if nmx < 0 || nmy < 0 || nmz < 0 || nmx >= g.mxs || nmy >= g.mys || nmz >= g.mzs {
				continue
			}
			nb := buf.GetLocal(nmx/2, nmy/2, nmz/2)
			if block.MicroCellSolid(reg, nb, nmx&1, nmy&1, nmz&1) {
				continue
			}
			if sky {
				if !skyMicroEnterable(reg, nb) {
					continue
				}
			} else if !blockLightPassable(reg, nb) {
				continue
			}
			v := int(s.level) - cost
			if v <= 0 {
				continue
			}
			mi := g.midx(nmx, nmy, nmz)
			if field[mi] < uint8(v) {
				field[mi] = uint8(v)
				queue = append(queue, microSeed{nmx, nmy, nmz, uint8(v), s.att})
			}
		}
	}
}

func (g *Grid) propagateBeacon(buf *chunk.Buf, reg *block.Registry, queue []beaconSeed) {
	for head := 0; head < len(queue); head++ {
		s := queue[head]
		if s.level <= 1 {
			continue
		}
		step := func(nx, ny, nz int, stepDir uint8, face int) {
			if nx < 0 || ny < 0 || nz < 0 || nx >= g.Sx || ny >= g.Sy || nz >= g.Sz {
				return
			}
			nb := buf.GetLocal(nx, ny, nz)
			if !blockLightPassable(reg, nb) {
				return
			}
			if !CanCrossFace(reg, buf, s.x, s.y, s.z, face) {
				return
			}
			var cost int
			switch {
			case stepDir == BeaconNone:
				cost = int(s.vc)
			case s.dir == BeaconOrigin || s.dir == stepDir:
				cost = int(s.sc)
			default:
				cost = int(s.tc)
			}
			v := int(s.level) - cost
			if v <= 0 {
				return
			}
			idx := g.Idx(nx, ny, nz)
			if g.BeaconLight[idx] < uint8(v) {
				g.BeaconLight[idx] = uint8(v)
				g.BeaconDir[idx] = stepDir
				queue = append(queue, beaconSeed{nx, ny, nz, uint8(v), stepDir, s.sc, s.tc, s.vc})
			}
		}
		step(s.x+1, s.y, s.z, BeaconPosX, block.FacePosX)
		step(s.x-1, s.y, s.z, BeaconNegX, block.FaceNegX)
		step(s.x, s.y, s.z+1, BeaconPosZ, block.FacePosZ)
		step(s.x, s.y, s.z-1, BeaconNegZ, block.FaceNegZ)
		step(s.x, s.y+1, s.z, BeaconNone, block.FacePosY)
		step(s.x, s.y-1, s.z, BeaconNone, block.FaceNegY)
	}
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
