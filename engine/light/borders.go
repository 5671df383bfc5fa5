package light

import "bytes"

// Borders holds the six boundary planes of a chunk for each light channel,
// plus beacon direction planes at the four horizontal faces.
//
// Plane layouts: X faces are sy*sz with index y*sz+z, Z faces sy*sx with
// index y*sx+x, Y faces sx*sz with index z*sx+x.
type Borders struct {
	Xn, Xp, Zn, Zp, Yn, Yp             []uint8 // block light
	SkXn, SkXp, SkZn, SkZp, SkYn, SkYp []uint8 // skylight
	BcnXn, BcnXp, BcnZn, BcnZp         []uint8 // beacon level
	BcnYn, BcnYp                       []uint8
	BcnDirXn, BcnDirXp                 []uint8 // beacon direction, 5 = none
	BcnDirZn, BcnDirZp                 []uint8
}

// BeaconDir codes stored in direction planes and the grid's direction field.
const (
	BeaconOrigin = 0
	BeaconPosX   = 1
	BeaconNegX   = 2
	BeaconPosZ   = 3
	BeaconNegZ   = 4
	BeaconNone   = 5
)

// NewBorders allocates zeroed planes for the given chunk dimensions.
// Direction planes start at the "none" sentinel.
func NewBorders(sx, sy, sz int) *Borders {
	xPlane := func() []uint8 { return make([]uint8, sy*sz) }
	zPlane := func() []uint8 { return make([]uint8, sy*sx) }
	yPlane := func() []uint8 { return make([]uint8, sx*sz) }
	dir := func(n int) []uint8 {
		p := make([]uint8, n)
		for i := range p {
			p[i] = BeaconNone
		}
		return p
	}
	return &Borders{
		Xn: xPlane(), Xp: xPlane(), Zn: zPlane(), Zp: zPlane(), Yn: yPlane(), Yp: yPlane(),
		SkXn: xPlane(), SkXp: xPlane(), SkZn: zPlane(), SkZp: zPlane(), SkYn: yPlane(), SkYp: yPlane(),
		BcnXn: xPlane(), BcnXp: xPlane(), BcnZn: zPlane(), BcnZp: zPlane(), BcnYn: yPlane(), BcnYp: yPlane(),
		BcnDirXn: dir(sy * sz), BcnDirXp: dir(sy * sz), BcnDirZn: dir(sy * sx), BcnDirZp: dir(sy * sx),
	}
}

// BordersFromGrid extracts the six boundary planes of a computed grid. The
// stored beacon direction on each horizontal face encodes the direction by
// which the beam would continue across that seam.
func BordersFromGrid(g *Grid) *Borders {
	sx, sy, sz := g.Sx, g.Sy, g.Sz
	b := NewBorders(sx, sy, sz)
	keepDir := func(d, cont uint8) uint8 {
		if d == cont || d == BeaconOrigin {
			return cont
		}
		return BeaconNone
	}
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			ii := y*sz + z
			i0 := g.Idx(0, y, z)
			i1 := g.Idx(sx-1, y, z)
			b.Xn[ii], b.SkXn[ii], b.BcnXn[ii] = g.BlockLight[i0], g.Skylight[i0], g.BeaconLight[i0]
			b.BcnDirXn[ii] = keepDir(g.BeaconDir[i0], BeaconNegX)
			b.Xp[ii], b.SkXp[ii], b.BcnXp[ii] = g.BlockLight[i1], g.Skylight[i1], g.BeaconLight[i1]
			b.BcnDirXp[ii] = keepDir(g.BeaconDir[i1], BeaconPosX)
		}
	}
	for x := 0; x < sx; x++ {
		for y := 0; y < sy; y++ {
			ii := y*sx + x
			i0 := g.Idx(x, y, 0)
			i1 := g.Idx(x, y, sz-1)
			b.Zn[ii], b.SkZn[ii], b.BcnZn[ii] = g.BlockLight[i0], g.Skylight[i0], g.BeaconLight[i0]
			b.BcnDirZn[ii] = keepDir(g.BeaconDir[i0], BeaconNegZ)
			b.Zp[ii], b.SkZp[ii], b.BcnZp[ii] = g.BlockLight[i1], g.Skylight[i1], g.BeaconLight[i1]
			b.BcnDirZp[ii] = keepDir(g.BeaconDir[i1], BeaconPosZ)
		}
	}
	for z := 0; z < sz; z++ {
		for x := 0; x < sx; x++ {
			ii := z*sx + x
			i0 := g.Idx(x, 0, z)
			i1 := g.Idx(x, sy-1, z)
			b.Yn[ii], b.SkYn[ii], b.BcnYn[ii] = g.BlockLight[i0], g.Skylight[i0], g.BeaconLight[i0]
			b.Yp[ii], b.SkYp[ii], b.BcnYp[ii] = g.BlockLight[i1], g.Skylight[i1], g.BeaconLight[i1]
		}
	}
	return b
}

// ChangeMask records which faces changed bytewise on a border update.
type ChangeMask struct {
	Xn, Xp, Yn, Yp, Zn, Zp bool
}

// Any reports whether any face changed.
func (m ChangeMask) Any() bool {
	return m.Xn || m.Xp || m.Yn || m.Yp || m.Zn || m.Zp
}

// Or merges another mask into this one.
func (m *ChangeMask) Or(o ChangeMask) {
	m.Xn = m.Xn || o.Xn
	m.Xp = m.Xp || o.Xp
	m.Yn = m.Yn || o.Yn
	m.Yp = m.Yp || o.Yp
	m.Zn = m.Zn || o.Zn
	m.Zp = m.Zp || o.Zp
}

func diffBorders(a, b *Borders) ChangeMask {
	eq := bytes.Equal
	return ChangeMask{
		Xn: !(eq(a.Xn, b.Xn) && eq(a.SkXn, b.SkXn) && eq(a.BcnXn, b.BcnXn) && eq(a.BcnDirXn, b.BcnDirXn)),
		Xp: !(eq(a.Xp, b.Xp) && eq(a.SkXp, b.SkXp) && eq(a.BcnXp, b.BcnXp) && eq(a.BcnDirXp, b.BcnDirXp)),
		Zn: !(eq(a.Zn, b.Zn) && eq(a.SkZn, b.SkZn) && eq(a.BcnZn, b.BcnZn) && eq(a.BcnDirZn, b.BcnDirZn)),
		Zp: !(eq(a.Zp, b.Zp) && eq(a.SkZp, b.SkZp) && eq(a.BcnZp, b.BcnZp) && eq(a.BcnDirZp, b.BcnDirZp)),
		Yn: !(eq(a.Yn, b.Yn) && eq(a.SkYn, b.SkYn) && eq(a.BcnYn, b.BcnYn)),
		Yp: !(eq(a.Yp, b.Yp) && eq(a.SkYp, b.SkYp) && eq(a.BcnYp, b.BcnYp)),
	}
}

// NeighborBorders aggregates the mirrored planes of the six neighbors of a
// chunk: each neighbor's positive-face plane appears in this chunk's
// negative-face slot and vice versa. A nil plane means the neighbor has not
// published yet.
type NeighborBorders struct {
	Xn, Xp, Zn, Zp, Yn, Yp             []uint8
	SkXn, SkXp, SkZn, SkZp, SkYn, SkYp []uint8
	BcnXn, BcnXp, BcnZn, BcnZp         []uint8
	BcnDirXn, BcnDirXp                 []uint8
	BcnDirZn, BcnDirZp                 []uint8
}

// MicroBorders holds the S=2 seam planes for the sky and block channels.
// X faces are mys*mzs with index my*mzs+mz, Z faces mys*mxs with index
// my*mxs+mx, Y faces mzs*mxs with index mz*mxs+mx.
type MicroBorders struct {
	XmSkNeg, XmSkPos []uint8
	YmSkNeg, YmSkPos []uint8
	ZmSkNeg, ZmSkPos []uint8
	XmBlNeg, XmBlPos []uint8
	YmBlNeg, YmBlPos []uint8
	ZmBlNeg, ZmBlPos []uint8
	Mxs, Mys, Mzs    int
}

// NewMicroBorders allocates zeroed micro seam planes for a chunk of the
// given macro dimensions.
func NewMicroBorders(sx, sy, sz int) *MicroBorders {
	mxs, mys, mzs := 2*sx, 2*sy, 2*sz
	return &MicroBorders{
		XmSkNeg: make([]uint8, mys*mzs), XmSkPos: make([]uint8, mys*mzs),
		YmSkNeg: make([]uint8, mzs*mxs), YmSkPos: make([]uint8, mzs*mxs),
		ZmSkNeg: make([]uint8, mys*mxs), ZmSkPos: make([]uint8, mys*mxs),
		XmBlNeg: make([]uint8, mys*mzs), XmBlPos: make([]uint8, mys*mzs),
		YmBlNeg: make([]uint8, mzs*mxs), YmBlPos: make([]uint8, mzs*mxs),
		ZmBlNeg: make([]uint8, mys*mxs), ZmBlPos: make([]uint8, mys*mxs),
		Mxs: mxs, Mys: mys, Mzs: mzs,
	}
}

// MicroBordersFromGrid extracts the 12 micro seam planes of a computed grid.
func MicroBordersFromGrid(g *Grid) *MicroBorders {
	mb := NewMicroBorders(g.Sx, g.Sy, g.Sz)
	mxs, mys, mzs := g.mxs, g.mys, g.mzs
	for my := 0; my < mys; my++ {
		for mz := 0; mz < mzs; mz++ {
			ii := my*mzs + mz
			mb.XmSkNeg[ii], mb.XmBlNeg[ii] = g.mSky[g.midx(0, my, mz)], g.mBlk[g.midx(0, my, mz)]
			mb.XmSkPos[ii], mb.XmBlPos[ii] = g.mSky[g.midx(mxs-1, my, mz)], g.mBlk[g.midx(mxs-1, my, mz)]
		}
	}
	for my := 0; my < mys; my++ {
		for mx := 0; mx < mxs; mx++ {
			ii := my*mxs + mx
			mb.ZmSkNeg[ii], mb.ZmBlNeg[ii] = g.mSky[g.midx(mx, my, 0)], g.mBlk[g.midx(mx, my, 0)]
			mb.ZmSkPos[ii], mb.ZmBlPos[ii] = g.mSky[g.midx(mx, my, mzs-1)], g.mBlk[g.midx(mx, my, mzs-1)]
		}
	}
	for mz := 0; mz < mzs; mz++ {
		for mx := 0; mx < mxs; mx++ {
			ii := mz*mxs + mx
			mb.YmSkNeg[ii], mb.YmBlNeg[ii] = g.mSky[g.midx(mx, 0, mz)], g.mBlk[g.midx(mx, 0, mz)]
			mb.YmSkPos[ii], mb.YmBlPos[ii] = g.mSky[g.midx(mx, mys-1, mz)], g.mBlk[g.midx(mx, mys-1, mz)]
		}
	}
	return mb
}

func diffMicroBorders(a, b *MicroBorders) ChangeMask {
	eq := bytes.Equal
	return ChangeMask{
		Xn: !(eq(a.XmSkNeg, b.XmSkNeg) && eq(a.XmBlNeg, b.XmBlNeg)),
		Xp: !(eq(a.XmSkPos, b.XmSkPos) && eq(a.XmBlPos, b.XmBlPos)),
		Yn: !(eq(a.YmSkNeg, b.YmSkNeg) && eq(a.YmBlNeg, b.YmBlNeg)),
		Yp: !(eq(a.YmSkPos, b.YmSkPos) && eq(a.YmBlPos, b.YmBlPos)),
		Zn: !(eq(a.ZmSkNeg, b.ZmSkNeg) && eq(a.ZmBlNeg, b.ZmBlNeg)),
		Zp: !(eq(a.ZmSkPos, b.ZmSkPos) && eq(a.ZmBlPos, b.ZmBlPos)),
	}
}

// NeighborMicroBorders aggregates the mirrored micro seam planes of the six
// neighbors.
type NeighborMicroBorders struct {
	XmSkNeg, XmSkPos []uint8
	YmSkNeg, YmSkPos []uint8
	ZmSkNeg, ZmSkPos []uint8
	XmBlNeg, XmBlPos []uint8
	YmBlNeg, YmBlPos []uint8
	ZmBlNeg, ZmBlPos []uint8
	Mxs, Mys, Mzs    int
}
