package world

import (
	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/clock"
	"github.com/heritagebuilder/heritage/internal/core/event"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/core/rng"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// Tuning supplies optional formula overrides. Implementations must be
// deterministic.
type Tuning interface {
	ProducerCycleSecs(building string, base float32, workers resource.Workers) float32
	SettlersToSpawn(vacancies, population, base uint32) uint32
}

// Settings are the game options the world and systems read each tick.
type Settings struct {
	WorkersSearchRadius        int32
	WorkersUpdateFrequencySecs float32
	SettlersSpawnFrequencySecs float32
	PopulationPerSettlerUnit   uint32
}

// Query is the mutable per-tick view handed to behaviors and game systems.
// It is the only way they observe or change the world.
type Query struct {
	Step     clock.Step
	Rng      *rng.Random
	Map      *tile.Map
	Sets     *tile.Sets
	World    *World
	Finder   *nav.Finder
	Configs  *data.Configs
	Settings Settings
	Cheats   Cheats
	Tuning   Tuning // may be nil
	Events   *event.Bus
	Log      *zap.Logger
}

// Seconds is the fixed step length.
func (q *Query) Seconds() float32 { return q.Step.Seconds }

func (q *Query) staffed(w resource.Workers) bool {
	return q.Cheats.IgnoreWorkerRequirements || w.HasMinimum()
}

// IsNearBuilding reports whether a building of kind has a footprint cell in
// the square around start, where the radius extends from every side of the
// given footprint: dx in [-radius, radius+w-1], dy in [-radius, radius+h-1].
// Cells of the footprint itself are skipped.
func (q *Query) IsNearBuilding(start coord.Cell, footprint coord.Size, kind data.BuildingKind, radius int32) bool {
	return q.nearBuilding(start, footprint, kind, radius, nil) != nil
}

// IsNearActiveBuilding is IsNearBuilding counting services only while they
// are active.
func (q *Query) IsNearActiveBuilding(start coord.Cell, footprint coord.Size, kind data.BuildingKind, radius int32) bool {
	return q.nearBuilding(start, footprint, kind, radius, func(b *Building) bool {
		return b.Service == nil || b.Service.Active
	}) != nil
}

func (q *Query) nearBuilding(start coord.Cell, footprint coord.Size, kind data.BuildingKind, radius int32, accept func(*Building) bool) *Building {
	if radius < 0 {
		return nil
	}
	if !footprint.IsValid() {
		footprint = coord.Size{W: 1, H: 1}
	}
	own := coord.NewRange(start, footprint)
	fw, fh := footprint.W-1, footprint.H-1
	for dx := -radius; dx <= radius+fw; dx++ {
		for dy := -radius; dy <= radius+fh; dy++ {
			c := start.Add(dx, dy)
			if own.Contains(c) {
				continue
			}
			t := q.Map.Find(c, tile.LayerBuildings, tile.KindBuilding)
			if t == nil {
				continue
			}
			b, ok := q.World.BuildingByRef(t.GameState)
			if !ok || !kind.Has(b.Kind) {
				continue
			}
			if accept != nil && !accept(b) {
				continue
			}
			return b
		}
	}
	return nil
}

// FindNearestBuilding returns the building closest to from (Chebyshev gap
// between footprints) within radius that satisfies pred. Ties go to the
// lower (x, y) cell.
func (q *Query) FindNearestBuilding(from coord.CellRange, radius int32, pred func(*Building) bool) *Building {
	var best *Building
	var bestDist int32
	q.World.EachBuilding(func(b *Building) {
		d := from.DistanceToRange(b.Range())
		if d > radius || !pred(b) {
			return
		}
		if best == nil || d < bestDist || (d == bestDist && b.Cell.Less(best.Cell)) {
			best, bestDist = b, d
		}
	})
	return best
}

// FindNearestProp returns the closest prop within radius of from that
// satisfies pred, ties by (x, y).
func (q *Query) FindNearestProp(from coord.CellRange, radius int32, pred func(*Prop) bool) *Prop {
	var best *Prop
	var bestDist int32
	q.World.Props.Each(func(_ pool.Handle, p *Prop) {
		d := from.DistanceTo(p.Cell)
		if d > radius || !pred(p) {
			return
		}
		if best == nil || d < bestDist || (d == bestDist && p.Cell.Less(best.Cell)) {
			best, bestDist = p, d
		}
	})
	return best
}
