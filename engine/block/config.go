package block

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// ConfigErrorKind classifies catalog loading failures.
type ConfigErrorKind uint8

const (
	ErrParse ConfigErrorKind = iota
	ErrUnresolvedMaterial
	ErrDuplicateBlockID
	ErrBadSchema
)

func (k ConfigErrorKind) String() string {
	switch k {
	case ErrParse:
		return "parse"
	case ErrUnresolvedMaterial:
		return "unresolved_material"
	case ErrDuplicateBlockID:
		return "duplicate_block_id"
	case ErrBadSchema:
		return "bad_schema"
	}
	return "unknown"
}

// ConfigError is returned when a registry catalog cannot be loaded. It only
// occurs at init or hot reload; a running registry never produces it.
type ConfigError struct {
	Kind ConfigErrorKind
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("block config: %v: %v", e.Kind, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// BlocksConfig is the TOML shape of the block catalog file.
type BlocksConfig struct {
	Blocks       []BlockDef `toml:"blocks"`
	UnknownBlock string     `toml:"unknown_block"`
}

// BlockDef describes a single block in the catalog.
type BlockDef struct {
	Name            string              `toml:"name"`
	ID              *uint16             `toml:"id"`
	Solid           *bool               `toml:"solid"`
	BlocksSkylight  *bool               `toml:"blocks_skylight"`
	PropagatesLight *bool               `toml:"propagates_light"`
	Emission        uint8               `toml:"emission"`
	Shape           *ShapeConfig        `toml:"shape"`
	Materials       *MaterialsDef       `toml:"materials"`
	StateSchema     map[string][]string `toml:"state_schema"`
	Light           *LightDef           `toml:"light"`
	Seam            *SeamDef            `toml:"seam"`
}

// ShapeConfig accepts either a bare string ("cube") or a detailed table.
type ShapeConfig struct {
	Simple   string
	Detailed *ShapeDetailed
}

// ShapeDetailed holds the table form of a shape with its state bindings.
type ShapeDetailed struct {
	Kind   string    `toml:"kind"`
	Axis   *PropFrom `toml:"axis"`
	Half   *PropFrom `toml:"half"`
	Facing *PropFrom `toml:"facing"`
}

// PropFrom binds a shape parameter to a state property by name.
type PropFrom struct {
	From string `toml:"from"`
}

// UnmarshalTOML lets a shape be written as "cube" or {kind = "slab", ...}.
func (s *ShapeConfig) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		s.Simple = t
		return nil
	case map[string]any:
		d := &ShapeDetailed{}
		if k, ok := t["kind"].(string); ok {
			d.Kind = k
		}
		for key, dst := range map[string]**PropFrom{"axis": &d.Axis, "half": &d.Half, "facing": &d.Facing} {
			if m, ok := t[key].(map[string]any); ok {
				if from, ok := m["from"].(string); ok {
					*dst = &PropFrom{From: from}
				}
			}
		}
		s.Detailed = d
		return nil
	}
	return fmt.Errorf("shape must be a string or a table, got %T", v)
}

// MaterialsDef selects materials per face role. Each selector is either a
// material key string or a {by = "prop", map = {value = key}} table.
type MaterialsDef struct {
	All    *SelectorDef `toml:"all"`
	Top    *SelectorDef `toml:"top"`
	Bottom *SelectorDef `toml:"bottom"`
	Side   *SelectorDef `toml:"side"`
}

// SelectorDef is the config form of a material selector.
type SelectorDef struct {
	Key string
	By  string
	Map map[string]string
}

// UnmarshalTOML accepts a bare key or a by/map table.
func (s *SelectorDef) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		s.Key = t
		return nil
	case map[string]any:
		if by, ok := t["by"].(string); ok {
			s.By = by
		}
		if m, ok := t["map"].(map[string]any); ok {
			s.Map = make(map[string]string, len(m))
			for k, raw := range m {
				if val, ok := raw.(string); ok {
					s.Map[k] = val
				}
			}
		}
		return nil
	}
	return fmt.Errorf("material selector must be a string or a table, got %T", v)
}

// LightDef tunes a block's light behaviour beyond the plain emission level.
type LightDef struct {
	Attenuation uint8    `toml:"attenuation"`
	Beam        *BeamDef `toml:"beam"`
}

// BeamDef carries directional beacon propagation costs.
type BeamDef struct {
	StraightCost uint8 `toml:"straight_cost"`
	TurnCost     uint8 `toml:"turn_cost"`
	VerticalCost uint8 `toml:"vertical_cost"`
}

// SeamDef controls seam behaviour between adjacent blocks of the same type.
type SeamDef struct {
	DontOccludeSame bool `toml:"dont_occlude_same"`
}

// LoadBlocksConfig reads and parses the block catalog file.
func LoadBlocksConfig(path string) (BlocksConfig, error) {
	var cfg BlocksConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &ConfigError{Kind: ErrParse, Err: err}
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Kind: ErrParse, Err: err}
	}
	return cfg, nil
}
