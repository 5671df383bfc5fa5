package mesh

import (
	"sync"

	"github.com/stonelantern/stonelantern/engine/block"
)

const (
	bitsPerWord    = 64
	wordIndexShift = 6
	wordIndexMask  = bitsPerWord - 1
)

// bitset is a plain dense bitmap.
type bitset struct {
	data []uint64
}

func newBitset(nbits int) bitset {
	return bitset{data: make([]uint64, (nbits+wordIndexMask)/bitsPerWord)}
}

func (b *bitset) set(i int, v bool) {
	w, s := i>>wordIndexShift, uint(i&wordIndexMask)
	if v {
		b.data[w] |= 1 << s
	} else {
		b.data[w] &^= 1 << s
	}
}

func (b *bitset) get(i int) bool {
	return b.data[i>>wordIndexShift]>>(uint(i&wordIndexMask))&1 != 0
}

func (b *bitset) clear() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// faceGrids holds, per axis, the parity bit, the owner-sign bit and the
// material id of every candidate face position.
type faceGrids struct {
	px, py, pz bitset
	ox, oy, oz bitset
	kx, ky, kz []block.MaterialID
	s          int
	sx, sy, sz int
}

func newFaceGrids(s, sx, sy, sz int) *faceGrids {
	nx := (s*sx + 1) * (s * sy) * (s * sz)
	ny := (s * sx) * (s*sy + 1) * (s * sz)
	nz := (s * sx) * (s * sy) * (s*sz + 1)
	return &faceGrids{
		px: newBitset(nx), py: newBitset(ny), pz: newBitset(nz),
		ox: newBitset(nx), oy: newBitset(ny), oz: newBitset(nz),
		kx: make([]block.MaterialID, nx), ky: make([]block.MaterialID, ny), kz: make([]block.MaterialID, nz),
		s: s, sx: sx, sy: sy, sz: sz,
	}
}

func (g *faceGrids) reset() {
	g.px.clear()
	g.py.clear()
	g.pz.clear()
	g.ox.clear()
	g.oy.clear()
	g.oz.clear()
	clearMaterials(g.kx)
	clearMaterials(g.ky)
	clearMaterials(g.kz)
}

func clearMaterials(v []block.MaterialID) {
	for i := range v {
		v[i] = 0
	}
}

func (g *faceGrids) idxX(ix, iy, iz int) int {
	wy, wz := g.s*g.sy, g.s*g.sz
	return (ix*wy+iy)*wz + iz
}

func (g *faceGrids) idxY(ix, iy, iz int) int {
	wx, wz := g.s*g.sx, g.s*g.sz
	return (iy*wz+iz)*wx + ix
}

func (g *faceGrids) idxZ(ix, iy, iz int) int {
	wx, wy := g.s*g.sx, g.s*g.sy
	return (iz*wy+iy)*wx + ix
}

// occGrids is the dense micro occupancy of a chunk plus the one-micro-cell
// seam overscan layers at ix=-1 and iz=-1.
type occGrids struct {
	occ        bitset
	seamX      bitset // ny*nz, index iy*nz+iz
	seamZ      bitset // nx*ny, index iy*nx+ix
	nx, ny, nz int
}

func newOccGrids(nx, ny, nz int) *occGrids {
	return &occGrids{
		occ:   newBitset(nx * ny * nz),
		seamX: newBitset(ny * nz),
		seamZ: newBitset(nx * ny),
		nx:    nx, ny: ny, nz: nz,
	}
}

func (o *occGrids) reset() {
	o.occ.clear()
	o.seamX.clear()
	o.seamZ.clear()
}

func (o *occGrids) idx(ix, iy, iz int) int  { return (ix*o.ny+iy)*o.nz + iz }
func (o *occGrids) idxSX(iy, iz int) int    { return iy*o.nz + iz }
func (o *occGrids) idxSZ(ix, iy int) int    { return iy*o.nx + ix }
func (o *occGrids) get(ix, iy, iz int) bool { return o.occ.get(o.idx(ix, iy, iz)) }
func (o *occGrids) set(ix, iy, iz int)      { o.occ.set(o.idx(ix, iy, iz), true) }

// scratch bundles the reusable buffers of one mesh job. Buffers are pooled
// and recycled at job teardown; a dimension mismatch reallocates.
type scratch struct {
	grids, gridsWater *faceGrids
	occs, occsWater   *occGrids
	visited           []uint8
	s, sx, sy, sz     int
}

var scratchPool = sync.Pool{New: func() any { return &scratch{} }}

func acquireScratch(s, sx, sy, sz int) *scratch {
	sc := scratchPool.Get().(*scratch)
	nx, ny, nz := s*sx, s*sy, s*sz
	if sc.s == s && sc.sx == sx && sc.sy == sy && sc.sz == sz && sc.grids != nil {
		sc.grids.reset()
		sc.gridsWater.reset()
		sc.occs.reset()
		sc.occsWater.reset()
		return sc
	}
	sc.s, sc.sx, sc.sy, sc.sz = s, sx, sy, sz
	sc.grids = newFaceGrids(s, sx, sy, sz)
	sc.gridsWater = newFaceGrids(s, sx, sy, sz)
	sc.occs = newOccGrids(nx, ny, nz)
	sc.occsWater = newOccGrids(nx, ny, nz)
	need := maxInt(nz*ny, maxInt(nx*nz, nx*ny))
	sc.visited = make([]uint8, need)
	return sc
}

func (sc *scratch) recycle() {
	scratchPool.Put(sc)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
