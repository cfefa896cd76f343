package sim

import (
	"errors"
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/tile"
	"github.com/heritagebuilder/heritage/internal/world"
)

var (
	ErrNothingToUndo = errors.New("sim: nothing to undo")
	ErrNothingToRedo = errors.New("sim: nothing to redo")
)

// savedTile is a plain map tile with no world entity behind it.
type savedTile struct {
	Cell      coord.Cell
	Def       *tile.Def
	Variation uint32
}

// Region is a saved rectangle of the map together with full copies of the
// buildings and props on it. Units are never captured.
type Region struct {
	Area      coord.CellRange
	Terrain   []savedTile
	Objects   []savedTile
	Buildings []world.Building
	Props     []world.Prop
}

// Edit is one undoable command: the region before and after it ran.
type Edit struct {
	Label  string
	Before *Region
	After  *Region
}

// History is a bounded undo/redo stack. Pushing a new edit drops the redo
// side; the oldest edit falls off once depth is reached.
type History struct {
	depth int
	undo  []Edit
	redo  []Edit
}

func NewHistory(depth int) *History {
	return &History{depth: max(depth, 1)}
}

func (h *History) Push(e Edit) {
	if len(h.undo) == h.depth {
		h.undo = append(h.undo[:0], h.undo[1:]...)
	}
	h.undo = append(h.undo, e)
	h.redo = h.redo[:0]
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
func (h *History) Len() int      { return len(h.undo) }
func (h *History) Depth() int    { return h.depth }

func (h *History) Clear() {
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

func (h *History) popUndo() (Edit, bool) {
	if len(h.undo) == 0 {
		return Edit{}, false
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return e, true
}

func (h *History) popRedo() (Edit, bool) {
	if len(h.redo) == 0 {
		return Edit{}, false
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return e, true
}

// expand grows area until it covers every building footprint touching it.
func (s *Simulation) expand(area coord.CellRange) coord.CellRange {
	size := s.tiles.Size()
	area = area.Clamp(size)
	for {
		grown := area
		s.tiles.ForEachInRange(area, tile.LayerBuildings, tile.KindBuilding|tile.KindBlocker, func(t *tile.Tile) bool {
			grown = grown.Union(s.tiles.Owner(t, tile.LayerBuildings).Range())
			return true
		})
		grown = grown.Clamp(size)
		if grown == area {
			return area
		}
		area = grown
	}
}

// capture saves the contents of area, widened to whole building
// footprints.
func (s *Simulation) capture(area coord.CellRange) *Region {
	r := &Region{Area: s.expand(area)}
	s.tiles.ForEachInRange(r.Area, tile.LayerTerrain, tile.KindTerrain, func(t *tile.Tile) bool {
		r.Terrain = append(r.Terrain, savedTile{Cell: t.Cell, Def: t.Def, Variation: t.Variation})
		return true
	})
	s.tiles.ForEachInRange(r.Area, tile.LayerObjects, tile.KindObject|tile.KindProp, func(t *tile.Tile) bool {
		if p, ok := s.world.PropAt(s.tiles, t.Cell); ok {
			r.Props = append(r.Props, *p)
			return true
		}
		r.Objects = append(r.Objects, savedTile{Cell: t.Cell, Def: t.Def, Variation: t.Variation})
		return true
	})
	s.tiles.ForEachInRange(r.Area, tile.LayerBuildings, tile.KindBuilding, func(t *tile.Tile) bool {
		if b, ok := s.world.BuildingByRef(t.GameState); ok {
			r.Buildings = append(r.Buildings, b.Clone())
		}
		return true
	})
	return r
}

// apply replaces whatever occupies the region's area with the saved
// contents. Restored entities get new handles. The treasury is left alone.
func (s *Simulation) apply(r *Region) error {
	q := s.commandQuery()
	var errs []error

	var owners []coord.Cell
	s.tiles.ForEachInRange(r.Area, tile.LayerBuildings, tile.KindBuilding|tile.KindBlocker, func(t *tile.Tile) bool {
		owners = append(owners, s.tiles.Owner(t, tile.LayerBuildings).Cell)
		return true
	})
	for _, c := range owners {
		if _, ok := s.world.BuildingAt(s.tiles, c); !ok {
			continue // already removed through another footprint cell
		}
		if _, err := s.world.RemoveBuilding(q, c); err != nil {
			errs = append(errs, err)
		}
	}

	var objects []coord.Cell
	s.tiles.ForEachInRange(r.Area, tile.LayerObjects, tile.KindObject|tile.KindProp, func(t *tile.Tile) bool {
		objects = append(objects, t.Cell)
		return true
	})
	for _, c := range objects {
		if _, ok := s.world.RemoveProp(q, c); !ok {
			s.tiles.Clear(tile.LayerObjects, c)
		}
	}

	r.Area.Each(func(c coord.Cell) { s.tiles.Clear(tile.LayerTerrain, c) })
	for _, t := range r.Terrain {
		if _, err := s.tiles.Place(tile.LayerTerrain, t.Cell, t.Def, t.Variation); err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range r.Objects {
		if _, err := s.tiles.Place(tile.LayerObjects, t.Cell, t.Def, t.Variation); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range r.Props {
		if _, err := s.world.RestoreProp(q, p); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range r.Buildings {
		if _, err := s.world.RestoreBuilding(q, b.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("restore region %s: %w", r.Area, err)
	}
	return nil
}

// record runs fn and pushes an edit covering area when it succeeds.
func (s *Simulation) record(label string, area coord.CellRange, fn func() error) error {
	before := s.capture(area)
	if err := fn(); err != nil {
		return err
	}
	after := s.capture(before.Area)
	s.history.Push(Edit{Label: label, Before: before, After: after})
	return nil
}

// Undo restores the region saved before the last edit. When that fails the
// map is put back and the edit stays on the undo side.
func (s *Simulation) Undo() error {
	e, ok := s.history.popUndo()
	if !ok {
		return ErrNothingToUndo
	}
	if err := s.swapIn(e.Before); err != nil {
		s.history.undo = append(s.history.undo, e)
		return err
	}
	s.history.redo = append(s.history.redo, e)
	return nil
}

// Redo re-applies the last undone edit.
func (s *Simulation) Redo() error {
	e, ok := s.history.popRedo()
	if !ok {
		return ErrNothingToRedo
	}
	if err := s.swapIn(e.After); err != nil {
		s.history.redo = append(s.history.redo, e)
		return err
	}
	s.history.undo = append(s.history.undo, e)
	return nil
}

// swapIn applies r, rolling the area back to its current contents if any
// part of it fails.
func (s *Simulation) swapIn(r *Region) error {
	current := s.capture(r.Area)
	err := s.apply(r)
	if err == nil {
		return nil
	}
	if rerr := s.apply(current); rerr != nil {
		return errors.Join(err, fmt.Errorf("roll back %s: %w", current.Area, rerr))
	}
	return err
}
