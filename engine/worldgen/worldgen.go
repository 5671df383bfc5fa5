// Package worldgen produces the deterministic base terrain that chunk
// builds start from before edits are applied. Only its outputs matter to
// the engine core: block samples and cached column profiles.
package worldgen

import (
	"sync/atomic"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
)

// Params are the tunable terrain knobs. They can be hot-reloaded; doing so
// bumps the worldgen revision and invalidates cached buffers and profiles.
type Params struct {
	// FlatThickness, when non-negative, replaces the noise heightmap with a
	// constant surface height; the usual stone/dirt/grass-or-sand layering
	// and the water fill below SeaLevel still apply.
	FlatThickness int
	BaseHeight    int
	Amplitude     int
	SeaLevel      int
}

// DefaultParams returns the standard rolling terrain configuration.
func DefaultParams() Params {
	return Params{FlatThickness: -1, BaseHeight: 12, Amplitude: 10, SeaLevel: 10}
}

// World samples seed-driven terrain. It is safe for concurrent use; the
// parameter set is swapped atomically on hot reload.
type World struct {
	Seed       int64
	Sx, Sy, Sz int

	rev    atomic.Uint64
	params atomic.Pointer[Params]
}

// palette resolves the terrain block ids against a registry. Ids are looked
// up per build so a hot-reloaded catalog takes effect on the next chunk.
type palette struct {
	stone, dirt, grass, water, sand uint16
}

func resolvePalette(reg *block.Registry) palette {
	lookup := func(name string) uint16 {
		id, _ := reg.IDByName(name)
		return id
	}
	return palette{
		stone: lookup("stone"),
		dirt:  lookup("dirt"),
		grass: lookup("grass"),
		water: lookup("water"),
		sand:  lookup("sand"),
	}
}

// New creates a world sampler for the given seed and chunk dimensions.
func New(seed int64, sx, sy, sz int, params Params) *World {
	w := &World{Seed: seed, Sx: sx, Sy: sy, Sz: sz}
	p := params
	w.params.Store(&p)
	w.rev.Store(1)
	return w
}

// Rev returns the current worldgen revision. It increments whenever the
// parameters change, so stale column profiles can be detected.
func (w *World) Rev() uint64 { return w.rev.Load() }

// Params returns the active parameter set.
func (w *World) Params() Params { return *w.params.Load() }

// UpdateParams swaps the parameter set and bumps the revision.
func (w *World) UpdateParams(p Params) {
	w.params.Store(&p)
	w.rev.Add(1)
}

// HeightAt returns the terrain surface height of a world column.
func (w *World) HeightAt(wx, wz int32) int {
	p := *w.params.Load()
	if p.FlatThickness >= 0 {
		return p.FlatThickness
	}
	// Value noise on a coarse lattice, bilinearly interpolated. Good enough
	// for streaming and seam tests; real biomes live outside the core.
	const cell = 16
	cx, fx := floorDivMod(wx, cell)
	cz, fz := floorDivMod(wz, cell)
	h00 := w.latticeHeight(cx, cz, p)
	h10 := w.latticeHeight(cx+1, cz, p)
	h01 := w.latticeHeight(cx, cz+1, p)
	h11 := w.latticeHeight(cx+1, cz+1, p)
	tx := float64(fx) / cell
	tz := float64(fz) / cell
	h := (h00*(1-tx)+h10*tx)*(1-tz) + (h01*(1-tx)+h11*tx)*tz
	return int(h)
}

func (w *World) latticeHeight(cx, cz int32, p Params) float64 {
	h := fnv1a.HashUint64(uint64(w.Seed))
	h = fnv1a.AddUint64(h, uint64(uint32(cx)))
	h = fnv1a.AddUint64(h, uint64(uint32(cz)))
	frac := float64(h%1024) / 1024
	return float64(p.BaseHeight) + frac*float64(p.Amplitude)
}

// BlockAt samples the base terrain block at world coordinates.
func (w *World) BlockAt(reg *block.Registry, wx, wy, wz int32) block.Block {
	pal := resolvePalette(reg)
	p := *w.params.Load()
	h := w.HeightAt(wx, wz)
	y := int(wy)
	switch {
	case y < 0, y < h-3:
		return block.Block{ID: pal.stone}
	case y < h-1:
		return block.Block{ID: pal.dirt}
	case y < h:
		if h <= p.SeaLevel {
			return block.Block{ID: pal.sand}
		}
		return block.Block{ID: pal.grass}
	case y < p.SeaLevel:
		return block.Block{ID: pal.water}
	}
	return block.Air
}

// ColumnProfile caches the expensive per-column outputs of one chunk
// column, keyed by the worldgen revision that produced it.
type ColumnProfile struct {
	CX, CZ  int32
	Rev     uint64
	Heights []int // sx*sz, index z*sx+x
}

// ProfileKey identifies a chunk column in the profile cache.
type ProfileKey struct {
	CX, CZ int32
}

// ProfileKeyOf returns the column key of a chunk coordinate.
func ProfileKeyOf(c chunk.Coord) ProfileKey {
	return ProfileKey{CX: c.X, CZ: c.Z}
}

// BuildColumnProfile computes the heights of every column in a chunk
// footprint.
func (w *World) BuildColumnProfile(c chunk.Coord) *ColumnProfile {
	cp := &ColumnProfile{CX: c.X, CZ: c.Z, Rev: w.Rev(), Heights: make([]int, w.Sx*w.Sz)}
	baseX := c.X * int32(w.Sx)
	baseZ := c.Z * int32(w.Sz)
	for z := 0; z < w.Sz; z++ {
		for x := 0; x < w.Sx; x++ {
			cp.Heights[z*w.Sx+x] = w.HeightAt(baseX+int32(x), baseZ+int32(z))
		}
	}
	return cp
}

// GenerateChunk fills a buffer with base terrain, optionally reusing a
// column profile from a previous build of the same column.
func (w *World) GenerateChunk(reg *block.Registry, c chunk.Coord, profile *ColumnProfile) (*chunk.Buf, *ColumnProfile) {
	pal := resolvePalette(reg)
	if profile == nil || profile.Rev != w.Rev() || profile.CX != c.X || profile.CZ != c.Z {
		profile = w.BuildColumnProfile(c)
	}
	p := *w.params.Load()
	buf := chunk.NewBuf(c, w.Sx, w.Sy, w.Sz)
	baseY := int(c.Y) * w.Sy
	for z := 0; z < w.Sz; z++ {
		for x := 0; x < w.Sx; x++ {
			h := profile.Heights[z*w.Sx+x]
			for y := 0; y < w.Sy; y++ {
				wy := baseY + y
				var b block.Block
				switch {
				case wy < 0 || wy < h-3:
					b = block.Block{ID: pal.stone}
				case wy < h-1:
					b = block.Block{ID: pal.dirt}
				case wy < h:
					if h <= p.SeaLevel {
						b = block.Block{ID: pal.sand}
					} else {
						b = block.Block{ID: pal.grass}
					}
				case wy < p.SeaLevel:
					b = block.Block{ID: pal.water}
				default:
					continue
				}
				buf.SetLocal(x, y, z, b)
			}
		}
	}
	return buf, profile
}

func floorDivMod(a, b int32) (int32, int32) {
	q := a / b
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		q--
		m += b
	}
	return q, m
}
