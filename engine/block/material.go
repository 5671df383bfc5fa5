package block

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Material is one renderable surface in the catalog. The render tag is
// interpreted by the renderer collaborator: "water" and "leaves" get special
// shaders, everything else is drawn with the default pipeline.
type Material struct {
	Key               string   `toml:"key"`
	RenderTag         string   `toml:"render_tag"`
	TextureCandidates []string `toml:"texture_candidates"`
}

// MaterialCatalog is the immutable, index-stable material list. Index 0 is a
// reserved empty slot so that MaterialID 0 can mean "none".
type MaterialCatalog struct {
	Materials []Material
	byKey     map[string]MaterialID
}

type materialsFile struct {
	Materials []Material `toml:"materials"`
}

// NewMaterialCatalog builds a catalog from a material list. The reserved
// empty slot is inserted at index 0 automatically.
func NewMaterialCatalog(mats []Material) *MaterialCatalog {
	c := &MaterialCatalog{
		Materials: make([]Material, 1, len(mats)+1),
		byKey:     make(map[string]MaterialID, len(mats)),
	}
	for _, m := range mats {
		id := MaterialID(len(c.Materials))
		c.Materials = append(c.Materials, m)
		c.byKey[m.Key] = id
	}
	return c
}

// LoadMaterialCatalog reads the materials catalog file.
func LoadMaterialCatalog(path string) (*MaterialCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Kind: ErrParse, Err: err}
	}
	var f materialsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Kind: ErrParse, Err: err}
	}
	return NewMaterialCatalog(f.Materials), nil
}

// IDByKey resolves a material key to its id.
func (c *MaterialCatalog) IDByKey(key string) (MaterialID, bool) {
	id, ok := c.byKey[key]
	return id, ok
}

// Get returns the material for an id, or false when out of range or zero.
func (c *MaterialCatalog) Get(id MaterialID) (Material, bool) {
	if id == 0 || int(id) >= len(c.Materials) {
		return Material{}, false
	}
	return c.Materials[id], true
}

// Len returns the number of catalog slots including the reserved empty one.
func (c *MaterialCatalog) Len() int {
	return len(c.Materials)
}

func (c *MaterialCatalog) String() string {
	return fmt.Sprintf("MaterialCatalog(%d materials)", len(c.Materials)-1)
}
