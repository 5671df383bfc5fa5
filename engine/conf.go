package engine

import (
	"log/slog"
	"time"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/worldgen"
)

// Config contains options for assembling an Engine. The zero value is
// usable for tests; sensible defaults are applied by New.
type Config struct {
	// Log is the logger used by the engine and its workers. If nil, Log is
	// set to slog.Default().
	Log *slog.Logger
	// MaterialsPath and BlocksPath locate the registry catalogs. They are
	// read at init and again on RegistryReloadRequested.
	MaterialsPath, BlocksPath string
	// Registry may supply an already compiled registry instead of catalog
	// paths, mainly for tests and embedding.
	Registry *block.Registry
	// Seed drives worldgen.
	Seed int64
	// ChunkSx, ChunkSy, ChunkSz are the chunk dimensions in voxels. Zero
	// values default to 16.
	ChunkSx, ChunkSy, ChunkSz int
	// LoadRadius is the streaming radius in chunks, Euclidean. Chunks
	// beyond LoadRadius+1 are evicted. Defaults to 4.
	LoadRadius int32
	// MaxInflightPerLane caps concurrently running jobs per scheduler lane.
	// Defaults to 8.
	MaxInflightPerLane int
	// WorkersPerLane and QueueSize tune the worker runtime.
	WorkersPerLane, QueueSize int
	// TickInterval is the cadence of Run's tick loop. Defaults to 50ms.
	TickInterval time.Duration
	// Worldgen overrides the terrain parameters.
	Worldgen *worldgen.Params
}

func (c Config) withDefaults() (Config, error) {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.ChunkSx <= 0 {
		c.ChunkSx = 16
	}
	if c.ChunkSy <= 0 {
		c.ChunkSy = 16
	}
	if c.ChunkSz <= 0 {
		c.ChunkSz = 16
	}
	if c.LoadRadius <= 0 {
		c.LoadRadius = 4
	}
	if c.MaxInflightPerLane <= 0 {
		c.MaxInflightPerLane = 8
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 50 * time.Millisecond
	}
	if c.Registry == nil {
		reg, err := block.LoadRegistry(c.MaterialsPath, c.BlocksPath)
		if err != nil {
			return c, err
		}
		c.Registry = reg
	}
	return c, nil
}

// evictRadius is the drop threshold: one chunk beyond the load radius.
func (c Config) evictRadius() int32 {
	return c.LoadRadius + 1
}
