package tile

import (
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
)

// GameState links a tile to the world entity it represents. Kind is owned
// by the world package; the tile map treats it as opaque.
type GameState struct {
	Kind uint32      `json:"kind"`
	ID   pool.Handle `json:"id"`
}

func (g GameState) IsValid() bool { return g.Kind != 0 && g.ID.IsValid() }

// Tile is the live occupant of one cell on one layer.
type Tile struct {
	Def       *Def
	Cell      coord.Cell // base cell; for blockers, the blocker's own cell
	Variation uint32
	AnimSet   uint32
	Flags     Flags
	GameState GameState
	OwnerCell coord.Cell // blockers only: the owner tile's cell
}

func (t *Tile) IsEmpty() bool { return t == nil || t.Def == nil }

func (t *Tile) IsBlocker() bool { return !t.IsEmpty() && t.Flags.Has(FlagBlocker) }

// Kind reports KindBlocker for blockers and the def kind otherwise.
func (t *Tile) Kind() Kind {
	switch {
	case t.IsEmpty():
		return KindNone
	case t.IsBlocker():
		return KindBlocker
	}
	return t.Def.Kind
}

func (t *Tile) IsWalkable() bool { return t.IsEmpty() || t.Flags.Has(FlagWalkable) }

// Range is the footprint covered by an owner tile.
func (t *Tile) Range() coord.CellRange {
	return coord.NewRange(t.Cell, t.Def.Size)
}

func (t *Tile) Name() string {
	if t.IsEmpty() {
		return ""
	}
	return t.Def.Name
}
