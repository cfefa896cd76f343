package data

import (
	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/tile"
)

// Table is a name-keyed, insertion-ordered set of configs. Keys are
// normalised the same way tile def names are.
type Table[T any] struct {
	byName map[string]*T
	list   []*T
	name   func(*T) string
}

func newTable[T any](name func(*T) string) *Table[T] {
	return &Table[T]{byName: make(map[string]*T), name: name}
}

// put inserts or replaces an entry, keeping the original position on
// replacement.
func (t *Table[T]) put(v *T) {
	key := tile.NormalizeName(t.name(v))
	if _, ok := t.byName[key]; ok {
		for i, e := range t.list {
			if tile.NormalizeName(t.name(e)) == key {
				t.list[i] = v
			}
		}
	} else {
		t.list = append(t.list, v)
	}
	t.byName[key] = v
}

// Get finds an entry by name.
func (t *Table[T]) Get(name string) (*T, bool) {
	v, ok := t.byName[tile.NormalizeName(name)]
	return v, ok
}

// All returns the entries in load order.
func (t *Table[T]) All() []*T { return t.list }

// Count returns the number of entries.
func (t *Table[T]) Count() int { return len(t.list) }

// Names lists entry names in load order.
func (t *Table[T]) Names() []string {
	out := make([]string, len(t.list))
	for i, v := range t.list {
		out[i] = t.name(v)
	}
	return out
}

type BuildingTable = Table[BuildingConfig]

type UnitTable = Table[UnitConfig]

type PropTable = Table[PropConfig]

// Configs bundles every entity table with the tile sets they reference.
type Configs struct {
	Tiles     *tile.Sets
	Buildings *BuildingTable
	Units     *UnitTable
	Props     *PropTable

	fallbackUnit *UnitConfig
	fallbackProp *PropConfig
	log          *zap.Logger
}

// BuildingsOfKind lists building configs of a kind in load order.
func (c *Configs) BuildingsOfKind(k BuildingKind) []*BuildingConfig {
	var out []*BuildingConfig
	for _, b := range c.Buildings.All() {
		if k.Has(b.Kind) {
			out = append(out, b)
		}
	}
	return out
}

// Unit resolves a unit config, substituting the default unit for unknown
// names.
func (c *Configs) Unit(name string) *UnitConfig {
	if u, ok := c.Units.Get(name); ok {
		return u
	}
	c.log.Warn("unknown unit config, using default", zap.String("unit", name))
	return c.fallbackUnit
}

// Prop resolves a prop config, substituting the default prop for unknown
// names.
func (c *Configs) Prop(name string) *PropConfig {
	if p, ok := c.Props.Get(name); ok {
		return p
	}
	c.log.Warn("unknown prop config, using default", zap.String("prop", name))
	return c.fallbackProp
}

// Snapshot summarises the loaded configs for save documents.
type Snapshot struct {
	TileDefs  int      `json:"tile_defs"`
	Buildings []string `json:"buildings"`
	Units     []string `json:"units"`
	Props     []string `json:"props"`
}

func (c *Configs) Snapshot() Snapshot {
	return Snapshot{
		TileDefs:  c.Tiles.Count(),
		Buildings: c.Buildings.Names(),
		Units:     c.Units.Names(),
		Props:     c.Props.Names(),
	}
}
