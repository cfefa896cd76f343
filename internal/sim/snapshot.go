package sim

import (
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/system"
	"github.com/heritagebuilder/heritage/internal/tile"
	"github.com/heritagebuilder/heritage/internal/world"
)

// ItemKind tells the renderer what an item is.
type ItemKind uint8

const (
	ItemTerrain ItemKind = iota
	ItemObject
	ItemProp
	ItemBuilding
	ItemUnit
	ItemEffect
)

var itemKindNames = [...]string{"terrain", "object", "prop", "building", "unit", "effect"}

func (k ItemKind) String() string {
	if int(k) < len(itemKindNames) {
		return itemKindNames[k]
	}
	return fmt.Sprintf("item(%d)", k)
}

// Item is one drawable thing. Pos is the interpolated position of units;
// for everything else it is the cell.
type Item struct {
	Kind      ItemKind
	Cell      coord.Cell
	Size      coord.Size
	Pos       coord.Vec2
	Name      string
	Variation uint32
	AnimSet   uint32
	State     string
}

// Snapshot is what the renderer reads after a frame's steps.
type Snapshot struct {
	Tick       uint64
	Paused     bool
	Size       coord.Size
	Population uint32
	Gold       uint32
	Items      []Item
}

// Snapshot lists terrain, objects, buildings, units and effects in that
// drawing order.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:       s.clock.StepsRun(),
		Paused:     s.paused,
		Size:       s.tiles.Size(),
		Population: s.world.Population(),
		Gold:       s.world.Treasury.Count(resource.Gold),
	}
	for _, t := range s.tiles.OwnerTiles(tile.LayerTerrain) {
		snap.Items = append(snap.Items, tileItem(ItemTerrain, t))
	}
	for _, t := range s.tiles.OwnerTiles(tile.LayerObjects) {
		switch t.Def.Kind {
		case tile.KindUnit:
			continue
		case tile.KindProp:
			it := tileItem(ItemProp, t)
			if p, ok := s.world.PropAt(s.tiles, t.Cell); ok && p.Harvested {
				it.State = "harvested"
			}
			snap.Items = append(snap.Items, it)
		default:
			snap.Items = append(snap.Items, tileItem(ItemObject, t))
		}
	}
	for _, t := range s.tiles.OwnerTiles(tile.LayerBuildings) {
		it := tileItem(ItemBuilding, t)
		if b, ok := s.world.BuildingByRef(t.GameState); ok {
			it.Name = b.Name
			it.State = buildingState(b)
		}
		snap.Items = append(snap.Items, it)
	}
	s.world.Units.Each(func(_ pool.Handle, u *world.Unit) {
		it := Item{Kind: ItemUnit, Cell: u.Cell, Size: coord.Size{W: 1, H: 1}, Pos: u.Pos, Name: u.Config, AnimSet: u.AnimSet}
		if !u.Inventory.IsEmpty() {
			it.State = u.Inventory.String()
		}
		snap.Items = append(snap.Items, it)
	})
	if fx, ok := system.FindByType[*system.AmbientEffects](s.systems); ok {
		for _, e := range fx.Effects {
			snap.Items = append(snap.Items, Item{
				Kind: ItemEffect, Cell: e.Cell, Size: coord.Size{W: 1, H: 1},
				Pos: coord.CellCenter(e.Cell), Name: e.Kind.String(), Variation: e.Variation,
			})
		}
	}
	return snap
}

func tileItem(kind ItemKind, t *tile.Tile) Item {
	return Item{
		Kind:      kind,
		Cell:      t.Cell,
		Size:      t.Def.Size,
		Pos:       coord.CellCenter(t.Cell),
		Name:      t.Def.Name,
		Variation: t.Variation,
		AnimSet:   t.AnimSet,
	}
}

func buildingState(b *world.Building) string {
	switch {
	case b.Producer != nil:
		return fmt.Sprintf("out %d workers %d/%d", b.Producer.Output.Total(), b.Workers.Current, b.Workers.Max)
	case b.Storage != nil:
		return fmt.Sprintf("stored %d", b.Storage.Stock.Total())
	case b.Service != nil:
		return fmt.Sprintf("stock %d active %t", b.Service.Stock.Total(), b.Service.Active)
	case b.Household != nil:
		return fmt.Sprintf("level %d residents %d", b.Household.Level, b.Household.Residents)
	}
	return ""
}
