package world

import (
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// Host notifications emitted on the event bus.

type BuildingPlaced struct {
	Ref  tile.GameState
	Name string
	Cell coord.Cell
}

type BuildingRemoved struct {
	Ref  tile.GameState
	Name string
	Cell coord.Cell
}

// HouseholdUpgraded also reports downgrades; compare Level with Previous.
type HouseholdUpgraded struct {
	Ref       tile.GameState
	Cell      coord.Cell
	Previous  uint32
	Level     uint32
	Variation uint32
}

type TaskFinished struct {
	Task   pool.Handle
	Kind   TaskKind
	Failed bool
}

type UnitDespawned struct {
	Unit pool.Handle
	Cell coord.Cell
}
