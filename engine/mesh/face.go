package mesh

import "github.com/stonelantern/stonelantern/engine/block"

// Face identifies an axis-aligned face orientation. The numeric order
// matches the face indices used by the lighting pass.
type Face uint8

const (
	FacePosY Face = iota
	FaceNegY
	FacePosX
	FaceNegX
	FacePosZ
	FaceNegZ
)

// Index returns the shared face index of the orientation.
func (f Face) Index() int { return int(f) }

// Role maps the face to the material role its owner block uses for it.
func (f Face) Role() block.FaceRole {
	switch f {
	case FacePosY:
		return block.RoleTop
	case FaceNegY:
		return block.RoleBottom
	}
	return block.RoleSide
}

// Delta returns the unit offset toward the voxel the face looks at.
func (f Face) Delta() (int32, int32, int32) {
	switch f {
	case FacePosY:
		return 0, 1, 0
	case FaceNegY:
		return 0, -1, 0
	case FacePosX:
		return 1, 0, 0
	case FaceNegX:
		return -1, 0, 0
	case FacePosZ:
		return 0, 0, 1
	}
	return 0, 0, -1
}

// Opposite returns the face looking back at this one.
func (f Face) Opposite() Face {
	switch f {
	case FacePosY:
		return FaceNegY
	case FaceNegY:
		return FacePosY
	case FacePosX:
		return FaceNegX
	case FaceNegX:
		return FacePosX
	case FacePosZ:
		return FaceNegZ
	}
	return FacePosZ
}

// sideNeighbors lists the four horizontal directions with their face and
// the outward sign pair used by connector geometry.
var sideNeighbors = [4]struct {
	dx, dz int32
	face   Face
	ox, oz float32
}{
	{1, 0, FacePosX, 1, 0},
	{-1, 0, FaceNegX, -1, 0},
	{0, 1, FacePosZ, 0, 1},
	{0, -1, FaceNegZ, 0, -1},
}
