package world

import (
	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/resource"
)

// runnerRetrySecs is how long a building waits after a failed runner
// before sending another.
const runnerRetrySecs float32 = 5

// ProducerState turns inputs and worker time into output goods and sends
// runners to move the output to storage.
type ProducerState struct {
	Output    resource.Stock `json:"output"`
	Input     resource.Stock `json:"input"`
	Timer     float32        `json:"timer"`
	Cooldown  float32        `json:"cooldown"`
	Runner    pool.Handle    `json:"runner"`
	Fetcher   pool.Handle    `json:"fetcher"`
	Harvester pool.Handle    `json:"harvester"`
	Produced  uint64         `json:"produced"`
	Consumed  uint64         `json:"consumed"`
}

func (p *ProducerState) update(ctx *BuildingContext) {
	q := ctx.Query
	b := ctx.Building
	cfg := b.config.Producer
	if p.Cooldown > 0 {
		p.Cooldown = max(p.Cooldown-q.Seconds(), 0)
	}
	if !q.staffed(b.Workers) {
		return
	}
	if cfg.IsHarvester() {
		p.harvest(ctx, cfg)
	} else {
		p.produce(ctx, cfg)
		p.requestInputs(ctx, cfg)
	}
	p.dispatchRunner(ctx, cfg)
}

func (p *ProducerState) hasInputs(cfg *data.ProducerConfig) bool {
	for _, in := range cfg.Inputs {
		if !p.Input.Has(in.Kind, in.Count) {
			return false
		}
	}
	return true
}

func (p *ProducerState) produce(ctx *BuildingContext, cfg *data.ProducerConfig) {
	q := ctx.Query
	if p.Output.Remaining(cfg.Output) < cfg.OutputPerCycle || !p.hasInputs(cfg) {
		return
	}
	cycle := cfg.ProductionFrequencySecs
	if q.Tuning != nil {
		cycle = q.Tuning.ProducerCycleSecs(ctx.Building.Name, cycle, ctx.Building.Workers)
	}
	p.Timer += q.Seconds()
	if p.Timer < cycle {
		return
	}
	p.Timer -= cycle
	if p.Timer >= cycle {
		p.Timer = 0
	}
	for _, in := range cfg.Inputs {
		p.Consumed += uint64(p.Input.Remove(in.Kind, in.Count))
	}
	p.Produced += uint64(p.Output.Add(cfg.Output, cfg.OutputPerCycle))
}

// requestInputs sends one fetcher at a time for the first input that is
// short of a full cycle.
func (p *ProducerState) requestInputs(ctx *BuildingContext, cfg *data.ProducerConfig) {
	q := ctx.Query
	if len(cfg.Inputs) == 0 || p.Cooldown > 0 || q.World.Tasks.Alive(p.Fetcher) {
		return
	}
	for _, in := range cfg.Inputs {
		if p.Input.Has(in.Kind, in.Count) {
			continue
		}
		unit := q.Configs.Unit(cfg.RunnerUnit)
		want := min(p.Input.Remaining(in.Kind), unit.CarryCapacity)
		if want == 0 {
			return
		}
		id, err := q.World.SpawnTask(q, unit.Name, ctx.Building, Task{
			Kind:         FetchFromStorage,
			Wanted:       resource.ShoppingList{{Kind: in.Kind, Count: want}},
			SearchRadius: cfg.SearchRadius,
			Callback:     callbackRunnerDone,
		})
		if err != nil {
			q.Log.Warn("fetcher not spawned", zap.String("building", ctx.DebugName()), zap.Error(err))
			return
		}
		p.Fetcher = id
		return
	}
}

// dispatchRunner sends output to storage once the send threshold is met.
func (p *ProducerState) dispatchRunner(ctx *BuildingContext, cfg *data.ProducerConfig) {
	q := ctx.Query
	if p.Cooldown > 0 || q.World.Tasks.Alive(p.Runner) {
		return
	}
	count := p.Output.Count(cfg.Output)
	if count == 0 || count < cfg.SendThreshold {
		return
	}
	unit := q.Configs.Unit(cfg.RunnerUnit)
	cargo := p.Output.Remove(cfg.Output, min(count, unit.CarryCapacity))
	id, err := q.World.SpawnTask(q, unit.Name, ctx.Building, Task{
		Kind:                  DeliverToStorage,
		Cargo:                 resource.StockItem{Kind: cfg.Output, Count: cargo},
		SearchRadius:          cfg.SearchRadius,
		AllowProducerFallback: cfg.AllowProducerFallback,
		Callback:              callbackRunnerDone,
	})
	if err != nil {
		p.Output.Add(cfg.Output, cargo)
		q.Log.Warn("runner not spawned", zap.String("building", ctx.DebugName()), zap.Error(err))
		return
	}
	p.Runner = id
}

// harvest sends one harvester at a time while output has room for a full
// load.
func (p *ProducerState) harvest(ctx *BuildingContext, cfg *data.ProducerConfig) {
	q := ctx.Query
	h := cfg.Harvest
	if p.Cooldown > 0 || q.World.Tasks.Alive(p.Harvester) {
		return
	}
	prop := q.Configs.Prop(h.Prop)
	if p.Output.Remaining(cfg.Output) < max(prop.Harvest.Count, 1) {
		return
	}
	id, err := q.World.SpawnTask(q, h.Unit, ctx.Building, Task{
		Kind:         HarvestWood,
		PropName:     prop.Name,
		SearchRadius: h.SearchRadius,
		Timer:        h.HarvestSecs,
		Callback:     callbackRunnerDone,
	})
	if err != nil {
		q.Log.Warn("harvester not spawned", zap.String("building", ctx.DebugName()), zap.Error(err))
		return
	}
	p.Harvester = id
}
