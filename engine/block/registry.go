package block

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/google/uuid"
)

// ShapeKind enumerates the geometric families a block can take.
type ShapeKind uint8

const (
	ShapeCube ShapeKind = iota
	ShapeAxisCube
	ShapeSlab
	ShapeStairs
	ShapePane
	ShapeFence
	ShapeCarpet
	ShapeNone
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCube:
		return "cube"
	case ShapeAxisCube:
		return "axis_cube"
	case ShapeSlab:
		return "slab"
	case ShapeStairs:
		return "stairs"
	case ShapePane:
		return "pane"
	case ShapeFence:
		return "fence"
	case ShapeCarpet:
		return "carpet"
	}
	return "none"
}

// Shape couples a shape kind with the names of the state properties that
// parameterise it.
type Shape struct {
	Kind       ShapeKind
	AxisFrom   string
	HalfFrom   string
	FacingFrom string
}

// StateField is one property window inside the packed state bitfield.
// Fields are laid out in ascending property-name order, each taking
// ceil(log2(len(values))) bits.
type StateField struct {
	Name   string
	Values []string
	Bits   uint32
	Offset uint32
}

// ResolvedSelector is a compiled material selector: either a fixed id or a
// state-property lookup table.
type ResolvedSelector struct {
	Fixed MaterialID
	By    string
	Map   map[string]MaterialID
}

// CompiledMaterials holds the per-role selectors of a block with fallback to
// the "all" selector.
type CompiledMaterials struct {
	All, Top, Bottom, Side *ResolvedSelector
}

// BlockType is the immutable description of one block id.
type BlockType struct {
	ID              uint16
	Name            string
	Solid           bool
	BlocksSkylight  bool
	PropagatesLight bool
	Emission        uint8
	Shape           Shape
	Materials       CompiledMaterials
	Seam            SeamDef

	omniAttenuation uint8
	beam            *BeamDef

	fields    []StateField
	propIndex map[string]int
}

// DefaultOmniAttenuation is subtracted per macro step of omni block light.
const DefaultOmniAttenuation = 32

// IsSolid reports whether the block occupies space for meshing/collision.
func (t *BlockType) IsSolid(_ uint16) bool { return t.Solid }

// BlocksSkylightAt reports whether the block stops the skylight column walk.
func (t *BlockType) BlocksSkylightAt(_ uint16) bool { return t.BlocksSkylight }

// PropagatesLightAt reports whether omni block light may enter this block.
func (t *BlockType) PropagatesLightAt(_ uint16) bool { return t.PropagatesLight }

// LightEmission returns the emission level of the block.
func (t *BlockType) LightEmission(_ uint16) uint8 { return t.Emission }

// OmniAttenuation returns the per-step cost of the block's omni light.
func (t *BlockType) OmniAttenuation() uint8 {
	if t.omniAttenuation == 0 {
		return DefaultOmniAttenuation
	}
	return t.omniAttenuation
}

// IsBeam reports whether the block emits a directional beacon beam rather
// than omni light.
func (t *BlockType) IsBeam() bool { return t.beam != nil }

// BeamParams returns the (straight, turn, vertical) step costs of the beam.
func (t *BlockType) BeamParams() (sc, tc, vc uint8) {
	if t.beam == nil {
		return 1, 32, 32
	}
	return t.beam.StraightCost, t.beam.TurnCost, t.beam.VerticalCost
}

// IsFullCube reports whether the shape fills its voxel entirely when solid.
func (t *BlockType) IsFullCube() bool {
	return t.Shape.Kind == ShapeCube || t.Shape.Kind == ShapeAxisCube
}

// StateProp decodes a named property from a packed state.
func (t *BlockType) StateProp(state uint16, prop string) (string, bool) {
	i, ok := t.propIndex[prop]
	if !ok {
		return "", false
	}
	f := &t.fields[i]
	if f.Bits == 0 {
		if len(f.Values) == 0 {
			return "", false
		}
		return f.Values[0], true
	}
	mask := uint32(1)<<f.Bits - 1
	idx := int(uint32(state) >> f.Offset & mask)
	if idx >= len(f.Values) {
		return "", false
	}
	return f.Values[idx], true
}

// StatePropIs reports whether a property decodes to the expected value.
func (t *BlockType) StatePropIs(state uint16, prop, expect string) bool {
	v, ok := t.StateProp(state, prop)
	return ok && v == expect
}

// PackState encodes named property values into a state bitfield. Unknown
// keys and values contribute zero bits; packing order matches decoding.
func (t *BlockType) PackState(props map[string]string) uint16 {
	var acc uint32
	for i := range t.fields {
		f := &t.fields[i]
		if f.Bits == 0 {
			continue
		}
		var sel uint32
		if val, ok := props[f.Name]; ok {
			for vi, v := range f.Values {
				if v == val {
					sel = uint32(vi)
					break
				}
			}
		}
		acc |= (sel & (uint32(1)<<f.Bits - 1)) << f.Offset
	}
	return uint16(acc)
}

// UnpackAll decodes every schema property of a state.
func (t *BlockType) UnpackAll(state uint16) map[string]string {
	out := make(map[string]string, len(t.fields))
	for i := range t.fields {
		if v, ok := t.StateProp(state, t.fields[i].Name); ok {
			out[t.fields[i].Name] = v
		}
	}
	return out
}

// StateFields exposes the computed bit layout, mainly for tooling.
func (t *BlockType) StateFields() []StateField { return t.fields }

// MaterialFor resolves the material id for a face role under a state. A
// missing selector or unmapped property value yields id 0, which drops the
// face instead of crashing.
func (t *BlockType) MaterialFor(role FaceRole, state uint16) MaterialID {
	sel := t.Materials.All
	switch role {
	case RoleTop:
		if t.Materials.Top != nil {
			sel = t.Materials.Top
		}
	case RoleBottom:
		if t.Materials.Bottom != nil {
			sel = t.Materials.Bottom
		}
	case RoleSide:
		if t.Materials.Side != nil {
			sel = t.Materials.Side
		}
	}
	if sel == nil {
		return 0
	}
	if sel.By == "" {
		return sel.Fixed
	}
	v, ok := t.StateProp(state, sel.By)
	if !ok {
		return 0
	}
	return sel.Map[v]
}

// Registry is the immutable block catalog. It is shared by reference and
// replaced wholesale on hot reload; Generation identifies one loaded
// instance in job results and logs.
type Registry struct {
	Materials  *MaterialCatalog
	Generation uuid.UUID

	blocks   []*BlockType
	byName   map[string]uint16
	unknown  uint16
	hasUnkwn bool
}

// Fallback returns the id of the configured unknown-block substitute.
func (r *Registry) Fallback() (uint16, bool) {
	return r.unknown, r.hasUnkwn
}

// Get returns the type for a block id.
func (r *Registry) Get(id uint16) (*BlockType, bool) {
	if int(id) >= len(r.blocks) || r.blocks[id] == nil {
		return nil, false
	}
	return r.blocks[id], true
}

// IDByName resolves a block name to its id.
func (r *Registry) IDByName(name string) (uint16, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Len returns the number of allocated id slots.
func (r *Registry) Len() int { return len(r.blocks) }

// MakeBlock builds a block by name with optional property values.
func (r *Registry) MakeBlock(name string, props map[string]string) (Block, bool) {
	id, ok := r.byName[name]
	if !ok {
		return Block{}, false
	}
	state := uint16(0)
	if props != nil {
		if ty, ok := r.Get(id); ok {
			state = ty.PackState(props)
		}
	}
	return Block{ID: id, State: state}, true
}

// LoadRegistry reads both catalog files and compiles the registry.
func LoadRegistry(materialsPath, blocksPath string) (*Registry, error) {
	mats, err := LoadMaterialCatalog(materialsPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadBlocksConfig(blocksPath)
	if err != nil {
		return nil, err
	}
	return NewRegistry(mats, cfg)
}

// NewRegistry compiles a parsed catalog into an immutable registry.
func NewRegistry(mats *MaterialCatalog, cfg BlocksConfig) (*Registry, error) {
	r := &Registry{
		Materials:  mats,
		Generation: uuid.New(),
		byName:     make(map[string]uint16, len(cfg.Blocks)),
	}
	next := uint16(0)
	for _, def := range cfg.Blocks {
		id := next
		if def.ID != nil {
			id = *def.ID
		}
		if int(id) < len(r.blocks) && r.blocks[id] != nil {
			return nil, &ConfigError{Kind: ErrDuplicateBlockID, Err: fmt.Errorf("block %q reuses id %d (%q)", def.Name, id, r.blocks[id].Name)}
		}
		solid := true
		if def.Solid != nil {
			solid = *def.Solid
		}
		blocksSky := solid
		if def.BlocksSkylight != nil {
			blocksSky = *def.BlocksSkylight
		}
		propagates := false
		if def.PropagatesLight != nil {
			propagates = *def.PropagatesLight
		}
		fields, index, err := stateLayout(def.StateSchema)
		if err != nil {
			return nil, err
		}
		compiled, err := compileMaterials(mats, def.Materials, def.Name)
		if err != nil {
			return nil, err
		}
		ty := &BlockType{
			ID:              id,
			Name:            def.Name,
			Solid:           solid,
			BlocksSkylight:  blocksSky,
			PropagatesLight: propagates,
			Emission:        def.Emission,
			Shape:           compileShape(def.Shape),
			Materials:       compiled,
			fields:          fields,
			propIndex:       index,
		}
		if def.Seam != nil {
			ty.Seam = *def.Seam
		}
		if def.Light != nil {
			ty.omniAttenuation = def.Light.Attenuation
			ty.beam = def.Light.Beam
		}
		for int(id) >= len(r.blocks) {
			r.blocks = append(r.blocks, nil)
		}
		r.blocks[id] = ty
		r.byName[ty.Name] = id
		if id >= next {
			next = id + 1
		}
	}
	if cfg.UnknownBlock != "" {
		if id, ok := r.byName[cfg.UnknownBlock]; ok {
			r.unknown, r.hasUnkwn = id, true
		}
	}
	return r, nil
}

func compileShape(cfg *ShapeConfig) Shape {
	if cfg == nil {
		return Shape{Kind: ShapeCube}
	}
	if cfg.Detailed == nil {
		return Shape{Kind: simpleShapeKind(cfg.Simple)}
	}
	d := cfg.Detailed
	sh := Shape{Kind: simpleShapeKind(d.Kind)}
	switch sh.Kind {
	case ShapeAxisCube:
		sh.AxisFrom = "axis"
		if d.Axis != nil {
			sh.AxisFrom = d.Axis.From
		}
	case ShapeSlab:
		sh.HalfFrom = "half"
		if d.Half != nil {
			sh.HalfFrom = d.Half.From
		}
	case ShapeStairs:
		sh.HalfFrom, sh.FacingFrom = "half", "facing"
		if d.Half != nil {
			sh.HalfFrom = d.Half.From
		}
		if d.Facing != nil {
			sh.FacingFrom = d.Facing.From
		}
	}
	return sh
}

func simpleShapeKind(s string) ShapeKind {
	switch s {
	case "cube", "":
		return ShapeCube
	case "axis_cube":
		return ShapeAxisCube
	case "slab":
		return ShapeSlab
	case "stairs":
		return ShapeStairs
	case "pane":
		return ShapePane
	case "fence":
		return ShapeFence
	case "carpet":
		return ShapeCarpet
	}
	return ShapeNone
}

func compileMaterials(mats *MaterialCatalog, def *MaterialsDef, blockName string) (CompiledMaterials, error) {
	var out CompiledMaterials
	if def == nil {
		return out, nil
	}
	resolve := func(sel *SelectorDef) (*ResolvedSelector, error) {
		if sel == nil {
			return nil, nil
		}
		if sel.By == "" {
			id, ok := mats.IDByKey(sel.Key)
			if !ok {
				return nil, &ConfigError{Kind: ErrUnresolvedMaterial, Err: fmt.Errorf("block %q references unknown material %q", blockName, sel.Key)}
			}
			return &ResolvedSelector{Fixed: id}, nil
		}
		m := make(map[string]MaterialID, len(sel.Map))
		for val, key := range sel.Map {
			id, ok := mats.IDByKey(key)
			if !ok {
				return nil, &ConfigError{Kind: ErrUnresolvedMaterial, Err: fmt.Errorf("block %q maps %q to unknown material %q", blockName, val, key)}
			}
			m[val] = id
		}
		return &ResolvedSelector{By: sel.By, Map: m}, nil
	}
	var err error
	if out.All, err = resolve(def.All); err != nil {
		return out, err
	}
	if out.Top, err = resolve(def.Top); err != nil {
		return out, err
	}
	if out.Bottom, err = resolve(def.Bottom); err != nil {
		return out, err
	}
	if out.Side, err = resolve(def.Side); err != nil {
		return out, err
	}
	return out, nil
}

func stateLayout(schema map[string][]string) ([]StateField, map[string]int, error) {
	if len(schema) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]StateField, 0, len(keys))
	index := make(map[string]int, len(keys))
	offset := uint32(0)
	for _, k := range keys {
		vals := schema[k]
		if len(vals) == 0 {
			return nil, nil, &ConfigError{Kind: ErrBadSchema, Err: fmt.Errorf("state property %q has no values", k)}
		}
		var nbits uint32
		if len(vals) > 1 {
			nbits = uint32(bits.Len(uint(len(vals) - 1)))
		}
		if offset+nbits > 16 {
			return nil, nil, &ConfigError{Kind: ErrBadSchema, Err: fmt.Errorf("state schema exceeds 16 bits at property %q", k)}
		}
		index[k] = len(fields)
		fields = append(fields, StateField{Name: k, Values: vals, Bits: nbits, Offset: offset})
		offset += nbits
	}
	return fields, index, nil
}
