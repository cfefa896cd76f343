package tile

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateDef = errors.New("tile: duplicate def")
	ErrUnknownDef   = errors.New("tile: unknown def")
)

// Category is a named, ordered group of defs on one layer.
type Category struct {
	Name string
	Defs []*Def
}

// Sets is the registry of all tile defs, grouped by layer and category.
// It owns the defs; everything else borrows them.
type Sets struct {
	categories [LayerCount][]*Category
	byHash     map[uint64]*Def
}

func NewSets() *Sets {
	return &Sets{byHash: make(map[uint64]*Def)}
}

// Add registers def under its layer and category. NameHash is recomputed.
func (s *Sets) Add(def *Def) error {
	if def.Layer >= LayerCount {
		return fmt.Errorf("add %q: invalid layer %d", def.Name, def.Layer)
	}
	if !def.Size.IsValid() {
		def.Size.W, def.Size.H = 1, 1
	}
	def.NameHash = HashName(def.Name)
	if _, dup := s.byHash[def.NameHash]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateDef, def.Name)
	}
	s.byHash[def.NameHash] = def

	cats := s.categories[def.Layer]
	for _, c := range cats {
		if c.Name == def.Category {
			c.Defs = append(c.Defs, def)
			return nil
		}
	}
	s.categories[def.Layer] = append(cats, &Category{Name: def.Category, Defs: []*Def{def}})
	return nil
}

// ByHash finds a def by name hash.
func (s *Sets) ByHash(h uint64) (*Def, bool) {
	d, ok := s.byHash[h]
	return d, ok
}

// ByName finds a def by (normalised) name.
func (s *Sets) ByName(name string) (*Def, error) {
	d, ok := s.byHash[HashName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDef, name)
	}
	return d, nil
}

// Find looks a def up by layer, category and name.
func (s *Sets) Find(layer Layer, category, name string) (*Def, error) {
	d, err := s.ByName(name)
	if err != nil {
		return nil, err
	}
	if d.Layer != layer || (category != "" && d.Category != category) {
		return nil, fmt.Errorf("%w: %q in %s/%s", ErrUnknownDef, name, layer, category)
	}
	return d, nil
}

// Categories lists the categories of a layer in registration order.
func (s *Sets) Categories(layer Layer) []*Category {
	if layer >= LayerCount {
		return nil
	}
	return s.categories[layer]
}

func (s *Sets) Count() int { return len(s.byHash) }
