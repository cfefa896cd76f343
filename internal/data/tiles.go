package data

import (
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// TileConfig is one entry of configs/tiles/*.json. Variations may be given
// in full or as a bare count of visual alternatives.
type TileConfig struct {
	Name           string           `yaml:"name"`
	Kind           tile.Kind        `yaml:"kind"`
	Layer          tile.Layer       `yaml:"layer"`
	Category       string           `yaml:"category"`
	Size           coord.Size       `yaml:"size"`
	Placeable      bool             `yaml:"placeable"`
	Walkable       bool             `yaml:"walkable"`
	Hidden         bool             `yaml:"hidden"`
	PathKind       nav.NodeKind     `yaml:"path_kind"`
	Variations     []tile.Variation `yaml:"variations"`
	VariationCount int              `yaml:"variation_count"`
}

func (c *TileConfig) toDef() (*tile.Def, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("tile with empty name")
	}
	if c.Kind == tile.KindNone || c.Kind == tile.KindBlocker {
		return nil, fmt.Errorf("tile %s: invalid kind %s", c.Name, c.Kind)
	}
	if c.Size == (coord.Size{}) {
		c.Size = coord.Size{W: 1, H: 1}
	}
	if !c.Size.IsValid() {
		return nil, fmt.Errorf("tile %s: invalid size %s", c.Name, c.Size)
	}
	if c.Layer != tile.LayerBuildings && (c.Size.W > 1 || c.Size.H > 1) {
		return nil, fmt.Errorf("tile %s: multi-cell tiles must be on the buildings layer", c.Name)
	}
	var flags tile.Flags
	if c.Placeable {
		flags |= tile.FlagPlaceable
	}
	if c.Walkable {
		flags |= tile.FlagWalkable
	}
	if c.Hidden {
		flags |= tile.FlagHidden
	}
	variations := c.Variations
	if len(variations) == 0 {
		n := max(c.VariationCount, 1)
		variations = make([]tile.Variation, n)
		for i := range variations {
			variations[i] = tile.Variation{AnimSets: []tile.AnimSet{{Name: "idle"}}}
		}
	}
	category := c.Category
	if category == "" {
		category = c.Layer.String()
	}
	return &tile.Def{
		Name:       c.Name,
		Kind:       c.Kind,
		Layer:      c.Layer,
		Category:   category,
		Size:       c.Size,
		Flags:      flags,
		PathKind:   c.PathKind,
		Variations: variations,
	}, nil
}
