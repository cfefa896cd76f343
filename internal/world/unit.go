package world

import (
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// Unit is a mobile agent. Gameplay uses Cell; Pos is the interpolated
// position for drawing. A unit owns an objects-layer tile only while its
// cell is free of other objects and buildings (OnMap).
type Unit struct {
	ID        pool.Handle        `json:"id"`
	Config    string             `json:"config"`
	Cell      coord.Cell         `json:"cell"`
	Pos       coord.Vec2         `json:"pos"`
	Progress  float32            `json:"progress"`
	AnimSet   uint32             `json:"anim_set"`
	Inventory resource.StockItem `json:"inventory"`
	Task      pool.Handle        `json:"task"`
	OnMap     bool               `json:"on_map"`

	config *data.UnitConfig
}

func (u *Unit) Ref() tile.GameState { return tile.GameState{Kind: RefUnit, ID: u.ID} }

func (u *Unit) UnitConfig() *data.UnitConfig { return u.config }

func (u *Unit) def(q *Query) *tile.Def {
	d, _ := q.Sets.ByHash(u.config.TileDefHash)
	return d
}

func cellFree(m *tile.Map, c coord.Cell) bool {
	return m.InBounds(c) && m.Tile(c, tile.LayerObjects) == nil && m.Tile(c, tile.LayerBuildings) == nil
}

// settle puts the unit's tile on the map if its cell is free.
func (u *Unit) settle(q *Query) {
	if u.OnMap || !cellFree(q.Map, u.Cell) {
		return
	}
	def := u.def(q)
	if def == nil {
		return
	}
	t, err := q.Map.Place(tile.LayerObjects, u.Cell, def, 0)
	if err != nil {
		return
	}
	t.GameState = u.Ref()
	t.AnimSet = u.AnimSet
	u.OnMap = true
}

// lift removes the unit's tile from the map.
func (u *Unit) lift(q *Query) {
	if !u.OnMap {
		return
	}
	u.OnMap = false
	if t := q.Map.Tile(u.Cell, tile.LayerObjects); t != nil && t.GameState == u.Ref() {
		q.Map.Clear(tile.LayerObjects, u.Cell)
	}
}

// moveTo steps the unit onto an adjacent cell, carrying its tile along
// when the destination is free.
func (u *Unit) moveTo(q *Query, next coord.Cell) {
	if u.OnMap && cellFree(q.Map, next) {
		if t, err := q.Map.Move(tile.LayerObjects, u.Cell, next); err == nil {
			u.Cell = next
			t.AnimSet = u.AnimSet
			return
		}
	}
	u.lift(q)
	u.Cell = next
	u.settle(q)
}

func (u *Unit) setAnim(q *Query, name string) {
	def := u.def(q)
	if def == nil {
		return
	}
	u.AnimSet = def.AnimSetIndex(0, name)
	if u.OnMap {
		if t := q.Map.Tile(u.Cell, tile.LayerObjects); t != nil && t.GameState == u.Ref() {
			t.AnimSet = u.AnimSet
		}
	}
}
