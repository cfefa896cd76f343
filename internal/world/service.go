package world

import (
	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/resource"
)

// ServiceState serves households within its effect radius. A service with
// a shopping list is active only while its stock holds something from the
// list; a service without one (a well) only needs its workers.
type ServiceState struct {
	Stock        resource.Stock `json:"stock"`
	Active       bool           `json:"active"`
	ConsumeTimer float32        `json:"consume_timer"`
	PatrolTimer  float32        `json:"patrol_timer"`
	Cooldown     float32        `json:"cooldown"`
	Fetcher      pool.Handle    `json:"fetcher"`
	Patrol       pool.Handle    `json:"patrol"`
	Consumed     uint64         `json:"consumed"`
}

func (s *ServiceState) update(ctx *BuildingContext) {
	q := ctx.Query
	b := ctx.Building
	cfg := b.config.Service
	step := q.Seconds()
	if s.Cooldown > 0 {
		s.Cooldown = max(s.Cooldown-step, 0)
	}
	staffed := q.staffed(b.Workers)
	s.Active = staffed && s.hasStock(cfg)
	if !staffed {
		return
	}
	s.restock(ctx, cfg)
	if !s.Active {
		s.ConsumeTimer = 0
		return
	}
	if len(cfg.ShoppingList) > 0 {
		s.ConsumeTimer += step
		if s.ConsumeTimer >= cfg.ConsumeFrequencySecs {
			s.ConsumeTimer = 0
			for _, it := range cfg.ShoppingList {
				s.Consumed += uint64(s.Stock.Remove(it.Kind, 1))
			}
		}
	}
	if cfg.PatrolUnit != "" {
		s.PatrolTimer += step
		if s.PatrolTimer >= cfg.PatrolFrequencySecs && !q.World.Tasks.Alive(s.Patrol) {
			s.PatrolTimer = 0
			s.sendPatrol(ctx, cfg)
		}
	}
}

func (s *ServiceState) hasStock(cfg *data.ServiceConfig) bool {
	if len(cfg.ShoppingList) == 0 {
		return true
	}
	for _, it := range cfg.ShoppingList {
		if s.Stock.Count(it.Kind) > 0 {
			return true
		}
	}
	return false
}

// restock sends a fetcher for the first shopping-list entry that is short.
func (s *ServiceState) restock(ctx *BuildingContext, cfg *data.ServiceConfig) {
	q := ctx.Query
	if s.Cooldown > 0 || q.World.Tasks.Alive(s.Fetcher) {
		return
	}
	missing := cfg.ShoppingList.Missing(&s.Stock)
	if len(missing) == 0 {
		return
	}
	unit := q.Configs.Unit(cfg.RunnerUnit)
	want := missing[0]
	want.Count = min(want.Count, unit.CarryCapacity)
	id, err := q.World.SpawnTask(q, unit.Name, ctx.Building, Task{
		Kind:         FetchFromStorage,
		Wanted:       resource.ShoppingList{want},
		SearchRadius: cfg.SearchRadius,
		Callback:     callbackRunnerDone,
	})
	if err != nil {
		q.Log.Warn("fetcher not spawned", zap.String("building", ctx.DebugName()), zap.Error(err))
		return
	}
	s.Fetcher = id
}

func (s *ServiceState) sendPatrol(ctx *BuildingContext, cfg *data.ServiceConfig) {
	q := ctx.Query
	id, err := q.World.SpawnTask(q, cfg.PatrolUnit, ctx.Building, Task{
		Kind:         Patrol,
		SearchRadius: cfg.PatrolRadius,
	})
	if err != nil {
		q.Log.Debug("patrol not spawned", zap.String("building", ctx.DebugName()), zap.Error(err))
		return
	}
	s.Patrol = id
}
