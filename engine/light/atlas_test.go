package light

import "testing"

func TestAtlasInteriorAndRing(t *testing.T) {
	const sx, sy, sz = 2, 2, 2
	g := NewGrid(sx, sy, sz)
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				i := g.Idx(x, y, z)
				g.BlockLight[i] = uint8(10 + i)
				g.Skylight[i] = uint8(100 + i)
				g.BeaconLight[i] = uint8(200 + i)
			}
		}
	}
	nb := &NeighborBorders{
		Xn:   make([]uint8, sy*sz),
		SkXn: make([]uint8, sy*sz),
	}
	for i := range nb.Xn {
		nb.Xn[i] = uint8(60 + i)
		nb.SkXn[i] = uint8(70 + i)
	}

	a := PackAtlasWithNeighbors(g, nb)
	tw, th := sx+2, sz+2
	if a.GridCols*a.GridRows < sy {
		t.Fatalf("grid %dx%d cannot hold %d slices", a.GridCols, a.GridRows, sy)
	}
	if a.Width != a.GridCols*tw || a.Height != a.GridRows*th {
		t.Fatalf("atlas dims %dx%d", a.Width, a.Height)
	}
	pixel := func(px, py int) (uint8, uint8, uint8) {
		o := (py*a.Width + px) * 4
		return a.Data[o], a.Data[o+1], a.Data[o+2]
	}
	for y := 0; y < sy; y++ {
		tx0 := (y % a.GridCols) * tw
		ty0 := (y / a.GridCols) * th
		// Interior texels carry (block, sky, beacon).
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				i := g.Idx(x, y, z)
				r, gg, b := pixel(tx0+1+x, ty0+1+z)
				if r != g.BlockLight[i] || gg != g.Skylight[i] || b != g.BeaconLight[i] {
					t.Fatalf("interior texel (%d,%d,%d) = (%d,%d,%d)", x, y, z, r, gg, b)
				}
			}
		}
		// -X ring mirrors the published neighbor plane.
		for z := 0; z < sz; z++ {
			i := y*sz + z
			r, gg, b := pixel(tx0, ty0+1+z)
			if r != nb.Xn[i] || gg != nb.SkXn[i] || b != 0 {
				t.Fatalf("-X ring texel y=%d z=%d = (%d,%d,%d)", y, z, r, gg, b)
			}
		}
		// +X neighbor is unpublished: its ring stays zero.
		for z := 0; z < sz; z++ {
			if r, gg, b := pixel(tx0+tw-1, ty0+1+z); r != 0 || gg != 0 || b != 0 {
				t.Fatalf("+X ring not zero: (%d,%d,%d)", r, gg, b)
			}
		}
		// Corners are always zero.
		for _, p := range [4][2]int{{tx0, ty0}, {tx0 + tw - 1, ty0}, {tx0, ty0 + th - 1}, {tx0 + tw - 1, ty0 + th - 1}} {
			if r, gg, b := pixel(p[0], p[1]); r != 0 || gg != 0 || b != 0 {
				t.Fatalf("corner (%d,%d) not zero", p[0], p[1])
			}
		}
	}
}
