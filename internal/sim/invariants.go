package sim

import (
	"errors"
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/tile"
	"github.com/heritagebuilder/heritage/internal/world"
)

var ErrInvariant = errors.New("sim: invariant violated")

// CheckInvariants verifies that tiles and entities point at each other:
// every building owns its footprint on placeable ground clear of objects,
// every blocker has exactly one owner, and props and placed units sit on
// their tiles.
func (s *Simulation) CheckInvariants() error {
	var errs []error
	m := s.tiles
	w := s.world

	w.EachBuilding(func(b *world.Building) {
		owner := m.Tile(b.Cell, tile.LayerBuildings)
		if owner == nil || owner.IsBlocker() || owner.GameState != b.Ref() {
			errs = append(errs, fmt.Errorf("building %s is not on its tile", b))
			return
		}
		if owner.Def.Size != b.Footprint {
			errs = append(errs, fmt.Errorf("building %s footprint %s, tile %s", b, b.Footprint, owner.Def.Size))
		}
		if err := m.CheckPlacement(tile.LayerBuildings, b.Cell); err != nil {
			errs = append(errs, fmt.Errorf("building %s: %w", b, err))
		}
		b.Range().Each(func(c coord.Cell) {
			if c == b.Cell {
				return
			}
			t := m.Tile(c, tile.LayerBuildings)
			if t == nil || !t.IsBlocker() || t.OwnerCell != b.Cell {
				errs = append(errs, fmt.Errorf("building %s: cell %s is not its blocker", b, c))
			}
		})
	})

	for _, t := range m.OwnerTiles(tile.LayerBuildings) {
		if _, ok := w.BuildingByRef(t.GameState); !ok {
			errs = append(errs, fmt.Errorf("building tile %s at %s has dangling handle %v", t.Name(), t.Cell, t.GameState))
		}
	}
	size := m.Size()
	coord.NewRange(coord.Cell{}, size).Each(func(c coord.Cell) {
		t := m.Tile(c, tile.LayerBuildings)
		if t == nil || !t.IsBlocker() {
			return
		}
		owner := m.Tile(t.OwnerCell, tile.LayerBuildings)
		if owner == nil || owner.IsBlocker() || !owner.Range().Contains(c) {
			errs = append(errs, fmt.Errorf("blocker at %s has no owner at %s", c, t.OwnerCell))
		}
	})

	w.Props.Each(func(id pool.Handle, p *world.Prop) {
		t := m.Tile(p.Cell, tile.LayerObjects)
		if t == nil || t.GameState != p.Ref() {
			errs = append(errs, fmt.Errorf("prop %s %s is not on its tile at %s", p.Name, id, p.Cell))
		}
	})
	w.Units.Each(func(id pool.Handle, u *world.Unit) {
		if !w.Tasks.Alive(u.Task) {
			errs = append(errs, fmt.Errorf("unit %s has dead task %s", id, u.Task))
		}
		if !u.OnMap {
			return
		}
		t := m.Tile(u.Cell, tile.LayerObjects)
		if t == nil || t.GameState != u.Ref() {
			errs = append(errs, fmt.Errorf("unit %s is not on its tile at %s", id, u.Cell))
		}
	})

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvariant, errors.Join(errs...))
	}
	return nil
}
