// Package world owns the simulation entities: buildings partitioned by
// archetype, units, their tasks and props. Tiles on the map refer to these
// entities through tile.GameState handles only.
package world

import (
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// Values stored in tile.GameState.Kind. Buildings use 1 + archetype.
const (
	RefNone uint32 = iota
	RefProducer
	RefStorage
	RefService
	RefHousehold
	RefUnit
	RefProp
)

func buildingRef(a data.Archetype, h pool.Handle) tile.GameState {
	return tile.GameState{Kind: uint32(a) + RefProducer, ID: h}
}

// refArchetype maps a game-state kind back to a building archetype.
func refArchetype(kind uint32) (data.Archetype, bool) {
	if kind < RefProducer || kind > RefHousehold {
		return 0, false
	}
	return data.Archetype(kind - RefProducer), true
}

// Cheats are engine-context switches that relax gameplay rules.
type Cheats struct {
	IgnoreWorkerRequirements bool `json:"ignore_worker_requirements"`
	FreeConstruction         bool `json:"free_construction"`
	InstantUpgrades          bool `json:"instant_upgrades"`
}
