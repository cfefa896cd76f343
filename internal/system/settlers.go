package system

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/world"
)

const (
	callbackSettlerArrived = "settlers.arrived"
	settlerUnit            = "settler"
	settlersPerWave        = 1
)

// SettlersSpawner sends settlers from the map's spawn cell to households
// with room. Each settler that moves in adds population_per_settler_unit
// residents.
type SettlersSpawner struct {
	Timer   float32 `json:"timer"`
	Spawned uint64  `json:"spawned"`
	Arrived uint64  `json:"arrived"`
	Failed  uint64  `json:"failed"`
}

func NewSettlersSpawner() *SettlersSpawner { return &SettlersSpawner{} }

func (*SettlersSpawner) gameSystem()  {}
func (*SettlersSpawner) Name() string { return "settlers_spawner" }

func (s *SettlersSpawner) Reset() { *s = SettlersSpawner{} }

func (s *SettlersSpawner) Update(q *world.Query) {
	frequency := q.Settings.SettlersSpawnFrequencySecs
	if frequency <= 0 {
		return
	}
	s.Timer += q.Seconds()
	if s.Timer < frequency {
		return
	}
	s.Timer = 0

	vacancies := householdVacancies(q.World)
	if vacancies == 0 {
		return
	}
	per := max(q.Settings.PopulationPerSettlerUnit, 1)
	needed := (vacancies + per - 1) / per
	count := min(needed, settlersPerWave)
	if q.Tuning != nil {
		count = q.Tuning.SettlersToSpawn(needed, q.World.Population(), count)
	}

	size := q.Map.Size()
	radius := max(size.W, size.H)
	for range count {
		_, err := q.World.SpawnUnit(q, settlerUnit, q.World.SpawnCell, world.Task{
			Kind:         world.Settle,
			SearchRadius: radius,
			Callback:     callbackSettlerArrived,
		})
		if err != nil {
			q.Log.Warn("settler not spawned", zap.Stringer("cell", q.World.SpawnCell), zap.Error(err))
			return
		}
		s.Spawned++
	}
}

func householdVacancies(w *world.World) uint32 {
	var n uint32
	w.Buildings(data.ArchetypeHousehold).Each(func(_ pool.Handle, b *world.Building) {
		n += b.Household.Vacancies(b.Config().Household)
	})
	return n
}

func (s *SettlersSpawner) RegisterCallbacks(cb *world.Callbacks) error {
	return cb.Register(callbackSettlerArrived, func(q *world.Query, t *world.Task, failed bool) {
		if failed {
			s.Failed++
			return
		}
		s.Arrived++
	})
}

func (*SettlersSpawner) PostLoad(world.PostLoadContext) error { return nil }

func (s *SettlersSpawner) MarshalState() (json.RawMessage, error) { return marshalState(s) }

func (s *SettlersSpawner) UnmarshalState(raw json.RawMessage) error {
	var st SettlersSpawner
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	*s = st
	return nil
}
