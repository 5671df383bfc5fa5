package block

// The S=2 micro grid subdivides every voxel into 2x2x2 cells. An occupancy
// byte marks filled cells with bit i = (y<<2)|(z<<1)|x for x,y,z in {0,1}.

// OccBit reports whether the occupancy byte fills the micro cell (x,y,z).
func OccBit(occ uint8, x, y, z int) bool {
	i := uint((y&1)<<2 | (z&1)<<1 | x&1)
	return occ&(1<<i) != 0
}

// Occupancy derives the S=2 occupancy byte for the block under its state.
// Full cubes and thin shapes return false: only shapes that partially fill
// their voxel (slabs, stairs) carry micro occupancy.
func (t *BlockType) Occupancy(state uint16) (uint8, bool) {
	switch t.Shape.Kind {
	case ShapeSlab:
		if t.StatePropIs(state, t.Shape.HalfFrom, "top") {
			return 0xf0, true
		}
		return 0x0f, true
	case ShapeStairs:
		base, back := uint8(0x0f), stairsBackMask(t.facing(state), true)
		if t.StatePropIs(state, t.Shape.HalfFrom, "top") {
			base, back = 0xf0, stairsBackMask(t.facing(state), false)
		}
		return base | back, true
	}
	return 0, false
}

func (t *BlockType) facing(state uint16) string {
	v, _ := t.StateProp(state, t.Shape.FacingFrom)
	return v
}

// stairsBackMask selects the two cells at the stair's facing side of one
// layer: the top layer for bottom stairs and the bottom layer for top
// stairs.
func stairsBackMask(facing string, topLayer bool) uint8 {
	var mask uint8
	for z := 0; z < 2; z++ {
		for x := 0; x < 2; x++ {
			hit := false
			switch facing {
			case "east":
				hit = x == 1
			case "west":
				hit = x == 0
			case "south":
				hit = z == 1
			default: // north
				hit = z == 0
			}
			if !hit {
				continue
			}
			y := 1
			if !topLayer {
				y = 0
			}
			mask |= 1 << uint(y<<2|z<<1|x)
		}
	}
	return mask
}

// MicroCellSolid reports whether the micro cell (mx,my,mz) of the block is
// filled. Full solid cubes fill all eight cells; micro-occupied shapes
// follow their occupancy byte; everything else (air, thin shapes) is open.
func MicroCellSolid(reg *Registry, b Block, mx, my, mz int) bool {
	ty, ok := reg.Get(b.ID)
	if !ok {
		return false
	}
	if occ, ok := ty.Occupancy(b.State); ok {
		return OccBit(occ, mx, my, mz)
	}
	return ty.IsSolid(b.State) && ty.IsFullCube()
}

// MicroFaceCellOpen reports whether one of the four micro cells straddling
// the shared face plane between `here` and `there` is open on both sides.
// (i0,i1) index the plane cell; the axis order per face matches the plane
// layouts used by the seam stores: X faces use (y,z), Y faces (x,z), Z
// faces (x,y). Blocks sharing a type whose seam policy is dont_occlude_same
// treat the shared plane as open regardless of occupancy.
func MicroFaceCellOpen(reg *Registry, here, there Block, face, i0, i1 int) bool {
	var hx, hy, hz, nx, ny, nz int
	switch face {
	case FacePosY:
		hx, hy, hz, nx, ny, nz = i0, 1, i1, i0, 0, i1
	case FaceNegY:
		hx, hy, hz, nx, ny, nz = i0, 0, i1, i0, 1, i1
	case FacePosX:
		hx, hy, hz, nx, ny, nz = 1, i0, i1, 0, i0, i1
	case FaceNegX:
		hx, hy, hz, nx, ny, nz = 0, i0, i1, 1, i0, i1
	case FacePosZ:
		hx, hy, hz, nx, ny, nz = i0, i1, 1, i0, i1, 0
	case FaceNegZ:
		hx, hy, hz, nx, ny, nz = i0, i1, 0, i0, i1, 1
	default:
		return false
	}
	if here.ID == there.ID {
		if ty, ok := reg.Get(here.ID); ok && ty.Seam.DontOccludeSame {
			return true
		}
	}
	return !MicroCellSolid(reg, here, hx, hy, hz) && !MicroCellSolid(reg, there, nx, ny, nz)
}

// FaceFullyCovered reports whether every micro cell of the given face of
// block b is solid, i.e. no light can reach the shared plane from b's side.
func FaceFullyCovered(reg *Registry, b Block, face int) bool {
	for i0 := 0; i0 < 2; i0++ {
		for i1 := 0; i1 < 2; i1++ {
			var x, y, z int
			switch face {
			case FacePosY:
				x, y, z = i0, 1, i1
			case FaceNegY:
				x, y, z = i0, 0, i1
			case FacePosX:
				x, y, z = 1, i0, i1
			case FaceNegX:
				x, y, z = 0, i0, i1
			case FacePosZ:
				x, y, z = i0, i1, 1
			case FaceNegZ:
				x, y, z = i0, i1, 0
			}
			if !MicroCellSolid(reg, b, x, y, z) {
				return false
			}
		}
	}
	return true
}
