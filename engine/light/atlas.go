package light

import "math"

// Atlas is the per-chunk light texture consumed by the renderer: the chunk's
// (block, sky, beacon) levels packed into RGB of an RGBA8 image, tiled by Y
// slice. Each tile carries a one-texel ring mirroring the neighbor border
// planes so shader sampling at face centers needs no conditionals. Ring
// texels for unpublished neighbors are zero, and corners are always zero.
type Atlas struct {
	Width, Height      int
	Sx, Sy, Sz         int
	GridCols, GridRows int
	Data               []uint8
}

// PackAtlas builds the light atlas for a computed grid using the neighbor
// planes captured at compute time.
func PackAtlas(g *Grid) *Atlas {
	return PackAtlasWithNeighbors(g, g.nb)
}

// PackAtlasWithNeighbors builds the light atlas, ringing each Y-slice tile
// with the given neighbor planes.
func PackAtlasWithNeighbors(g *Grid, nb *NeighborBorders) *Atlas {
	sx, sy, sz := g.Sx, g.Sy, g.Sz
	tw, th := sx+2, sz+2
	cols := int(math.Ceil(math.Sqrt(float64(sy))))
	if cols < 1 {
		cols = 1
	}
	rows := (sy + cols - 1) / cols
	a := &Atlas{
		Width: cols * tw, Height: rows * th,
		Sx: sx, Sy: sy, Sz: sz,
		GridCols: cols, GridRows: rows,
		Data: make([]uint8, cols*tw*rows*th*4),
	}
	put := func(px, py int, r, gg, b uint8) {
		o := (py*a.Width + px) * 4
		a.Data[o], a.Data[o+1], a.Data[o+2], a.Data[o+3] = r, gg, b, 255
	}
	if nb == nil {
		nb = &NeighborBorders{}
	}
	for y := 0; y < sy; y++ {
		tx0 := (y % cols) * tw
		ty0 := (y / cols) * th
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				i := g.Idx(x, y, z)
				put(tx0+1+x, ty0+1+z, g.BlockLight[i], g.Skylight[i], g.BeaconLight[i])
			}
		}
		// Edge rings mirror the neighbor planes; missing planes stay zero.
		for z := 0; z < sz; z++ {
			i := y*sz + z
			put(tx0, ty0+1+z, planeAt(nb.Xn, i), planeAt(nb.SkXn, i), planeAt(nb.BcnXn, i))
			put(tx0+tw-1, ty0+1+z, planeAt(nb.Xp, i), planeAt(nb.SkXp, i), planeAt(nb.BcnXp, i))
		}
		for x := 0; x < sx; x++ {
			i := y*sx + x
			put(tx0+1+x, ty0, planeAt(nb.Zn, i), planeAt(nb.SkZn, i), planeAt(nb.BcnZn, i))
			put(tx0+1+x, ty0+th-1, planeAt(nb.Zp, i), planeAt(nb.SkZp, i), planeAt(nb.BcnZp, i))
		}
		// Corners are zero.
		put(tx0, ty0, 0, 0, 0)
		put(tx0+tw-1, ty0, 0, 0, 0)
		put(tx0, ty0+th-1, 0, 0, 0)
		put(tx0+tw-1, ty0+th-1, 0, 0, 0)
	}
	return a
}
