package data

import (
	"fmt"

	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// UnitConfig is one entry of configs/units/*.json.
type UnitConfig struct {
	Name          string       `yaml:"name"`
	TileDef       string       `yaml:"tile_def"`
	MovementSpeed float32      `yaml:"movement_speed"` // cells per second
	Traversable   nav.NodeKind `yaml:"traversable"`
	CarryCapacity uint32       `yaml:"carry_capacity"`

	TileDefHash uint64 `yaml:"-"`
}

func (c *UnitConfig) validate(sets *tile.Sets) error {
	if c.Name == "" {
		return fmt.Errorf("unit with empty name")
	}
	if c.TileDef == "" {
		c.TileDef = c.Name
	}
	def, err := sets.ByName(c.TileDef)
	if err != nil {
		return fmt.Errorf("unit %s: %w", c.Name, err)
	}
	if def.Layer != tile.LayerObjects {
		return fmt.Errorf("unit %s: tile def %s is on layer %s", c.Name, def.Name, def.Layer)
	}
	c.TileDefHash = def.NameHash
	if c.MovementSpeed <= 0 {
		c.MovementSpeed = 1
	}
	if c.Traversable == nav.NodeNone {
		c.Traversable = nav.NodeGround | nav.NodeRoad
	}
	if c.CarryCapacity == 0 {
		c.CarryCapacity = 4
	}
	return nil
}

// PropConfig is one entry of configs/props/*.json.
type PropConfig struct {
	Name        string             `yaml:"name"`
	TileDef     string             `yaml:"tile_def"`
	Harvest     resource.StockItem `yaml:"harvest"`
	RespawnSecs float32            `yaml:"respawn_secs"`

	TileDefHash uint64 `yaml:"-"`
}

func (c *PropConfig) IsHarvestable() bool { return !c.Harvest.IsEmpty() }

func (c *PropConfig) validate(sets *tile.Sets) error {
	if c.Name == "" {
		return fmt.Errorf("prop with empty name")
	}
	if c.TileDef == "" {
		c.TileDef = c.Name
	}
	def, err := sets.ByName(c.TileDef)
	if err != nil {
		return fmt.Errorf("prop %s: %w", c.Name, err)
	}
	if def.Layer != tile.LayerObjects {
		return fmt.Errorf("prop %s: tile def %s is on layer %s", c.Name, def.Name, def.Layer)
	}
	c.TileDefHash = def.NameHash
	if c.IsHarvestable() && c.RespawnSecs <= 0 {
		c.RespawnSecs = 60
	}
	return nil
}
