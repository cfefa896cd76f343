package world

import (
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// Building is one placed building. Exactly one of the behavior pointers is
// set, matching Archetype.
type Building struct {
	ID          pool.Handle       `json:"id"`
	Kind        data.BuildingKind `json:"kind"`
	Archetype   data.Archetype    `json:"archetype"`
	Name        string            `json:"name"`
	Cell        coord.Cell        `json:"cell"`
	Footprint   coord.Size        `json:"footprint"`
	Variation   uint32            `json:"variation"`
	TileDefName string            `json:"tile_def"`
	Workers     resource.Workers  `json:"workers"`

	Producer  *ProducerState  `json:"producer,omitempty"`
	Storage   *StorageState   `json:"storage,omitempty"`
	Service   *ServiceState   `json:"service,omitempty"`
	Household *HouseholdState `json:"household,omitempty"`

	TileDefHash uint64               `json:"-"`
	config      *data.BuildingConfig `json:"-"`
}

func newBuilding(cfg *data.BuildingConfig, cell coord.Cell, def *tile.Def, variation uint32) Building {
	b := Building{
		Kind:        cfg.Kind,
		Archetype:   cfg.Archetype(),
		Name:        cfg.Name,
		Cell:        cell,
		Footprint:   def.Size,
		Variation:   variation,
		TileDefName: def.Name,
		TileDefHash: def.NameHash,
		Workers:     resource.NewWorkers(cfg.Workers.Min, cfg.Workers.Max),
		config:      cfg,
	}
	switch b.Archetype {
	case data.ArchetypeProducer:
		p := cfg.Producer
		var inputs resource.Kinds
		for _, in := range p.Inputs {
			inputs = inputs.With(in.Kind)
		}
		b.Producer = &ProducerState{
			Output: resource.NewStock(resource.KindsOf(p.Output), p.OutputCapacity),
			Input:  resource.NewStock(inputs, p.InputCapacity),
		}
	case data.ArchetypeStorage:
		b.Storage = &StorageState{Stock: resource.NewStock(resource.KindsOf(cfg.Storage.Accepted...), cfg.Storage.Capacity)}
	case data.ArchetypeService:
		b.Service = &ServiceState{Stock: resource.NewStock(resource.KindsOf(cfg.Service.Accepted...), cfg.Service.Capacity)}
	case data.ArchetypeHousehold:
		b.Household = &HouseholdState{}
	}
	return b
}

// Ref is the tile game-state handle of the building.
func (b *Building) Ref() tile.GameState { return buildingRef(b.Archetype, b.ID) }

// Range is the footprint on the map.
func (b *Building) Range() coord.CellRange { return coord.NewRange(b.Cell, b.Footprint) }

func (b *Building) Config() *data.BuildingConfig { return b.config }

// Clone copies the building including its archetype state.
func (b *Building) Clone() Building {
	c := *b
	switch {
	case b.Producer != nil:
		p := *b.Producer
		c.Producer = &p
	case b.Storage != nil:
		s := *b.Storage
		c.Storage = &s
	case b.Service != nil:
		s := *b.Service
		c.Service = &s
	case b.Household != nil:
		h := *b.Household
		c.Household = &h
	}
	return c
}

func (b *Building) String() string {
	return fmt.Sprintf("%s%s%s", b.Name, b.ID, b.Cell)
}

// Accepts reports how many units of kind the building can take right now.
func (b *Building) Accepts(kind resource.Kind) uint32 {
	switch b.Archetype {
	case data.ArchetypeStorage:
		return b.Storage.Stock.Remaining(kind)
	case data.ArchetypeProducer:
		if !b.Producer.Input.Accepted().Has(kind) {
			return 0
		}
		return b.Producer.Input.Remaining(kind)
	case data.ArchetypeService:
		if !b.Service.Stock.Accepted().Has(kind) {
			return 0
		}
		return b.Service.Stock.Remaining(kind)
	}
	return 0
}

// Accept inserts up to count units and returns how many were taken.
func (b *Building) Accept(kind resource.Kind, count uint32) uint32 {
	n := min(count, b.Accepts(kind))
	if n == 0 {
		return 0
	}
	switch b.Archetype {
	case data.ArchetypeStorage:
		return b.Storage.Stock.Add(kind, n)
	case data.ArchetypeProducer:
		return b.Producer.Input.Add(kind, n)
	case data.ArchetypeService:
		return b.Service.Stock.Add(kind, n)
	}
	return 0
}

// Withdraw takes what a storage building holds of each list entry.
func (b *Building) Withdraw(list resource.ShoppingList) []resource.StockItem {
	if b.Storage == nil {
		return nil
	}
	return list.Withdraw(&b.Storage.Stock)
}

// StockTotal sums every unit held by the building.
func (b *Building) StockTotal() uint64 {
	switch b.Archetype {
	case data.ArchetypeProducer:
		return b.Producer.Output.Total() + b.Producer.Input.Total()
	case data.ArchetypeStorage:
		return b.Storage.Stock.Total()
	case data.ArchetypeService:
		return b.Service.Stock.Total()
	}
	return 0
}

// BuildingContext is what a behavior sees of itself during update.
type BuildingContext struct {
	Query    *Query
	Building *Building
}

func (c *BuildingContext) MapCell() coord.Cell          { return c.Building.Cell }
func (c *BuildingContext) Footprint() coord.Size        { return c.Building.Footprint }
func (c *BuildingContext) KindAndID() tile.GameState    { return c.Building.Ref() }
func (c *BuildingContext) TileInfo() *tile.Tile         { return c.Query.Map.Tile(c.Building.Cell, tile.LayerBuildings) }
func (c *BuildingContext) DebugName() string            { return c.Building.String() }
func (c *BuildingContext) Config() *data.BuildingConfig { return c.Building.config }

func (b *Building) update(ctx *BuildingContext) {
	switch b.Archetype {
	case data.ArchetypeProducer:
		b.Producer.update(ctx)
	case data.ArchetypeStorage:
		b.Storage.update(ctx)
	case data.ArchetypeService:
		b.Service.update(ctx)
	case data.ArchetypeHousehold:
		b.Household.update(ctx)
	}
}

// StorageState is passive: runners deliver into it and fetchers withdraw.
type StorageState struct {
	Stock resource.Stock `json:"stock"`
}

func (s *StorageState) update(*BuildingContext) {}
