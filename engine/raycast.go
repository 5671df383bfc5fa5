package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// raycastRange is how far edit rays reach, in world units.
const raycastRange = 8.0

// raycastVoxels walks the voxel grid along a ray using 3D DDA and returns
// the first solid voxel hit plus the voxel stepped through just before it
// (where a placement goes).
func raycastVoxels(origin, dir mgl64.Vec3, maxDist float64, solid func(wx, wy, wz int32) bool) (hit, prev [3]int32, ok bool) {
	if dir.Len() == 0 {
		return hit, prev, false
	}
	d := dir.Normalize()
	x := int32(math.Floor(origin.X()))
	y := int32(math.Floor(origin.Y()))
	z := int32(math.Floor(origin.Z()))

	step := func(v float64) int32 {
		if v > 0 {
			return 1
		}
		if v < 0 {
			return -1
		}
		return 0
	}
	sx, sy, sz := step(d.X()), step(d.Y()), step(d.Z())

	next := func(o, dv float64, i int32, s int32) float64 {
		if s == 0 {
			return math.Inf(1)
		}
		var bound float64
		if s > 0 {
			bound = float64(i) + 1
		} else {
			bound = float64(i)
		}
		return (bound - o) / dv
	}
	tMaxX := next(origin.X(), d.X(), x, sx)
	tMaxY := next(origin.Y(), d.Y(), y, sy)
	tMaxZ := next(origin.Z(), d.Z(), z, sz)
	tDeltaX, tDeltaY, tDeltaZ := math.Inf(1), math.Inf(1), math.Inf(1)
	if sx != 0 {
		tDeltaX = math.Abs(1 / d.X())
	}
	if sy != 0 {
		tDeltaY = math.Abs(1 / d.Y())
	}
	if sz != 0 {
		tDeltaZ = math.Abs(1 / d.Z())
	}

	prev = [3]int32{x, y, z}
	for t := 0.0; t <= maxDist; {
		if solid(x, y, z) {
			return [3]int32{x, y, z}, prev, true
		}
		prev = [3]int32{x, y, z}
		switch {
		case tMaxX <= tMaxY && tMaxX <= tMaxZ:
			t = tMaxX
			tMaxX += tDeltaX
			x += sx
		case tMaxY <= tMaxZ:
			t = tMaxY
			tMaxY += tDeltaY
			y += sy
		default:
			t = tMaxZ
			tMaxZ += tDeltaZ
			z += sz
		}
	}
	return hit, prev, false
}
