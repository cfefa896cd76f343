package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/event"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

var (
	ErrUnknownBuilding   = errors.New("world: unknown building")
	ErrUnknownProp       = errors.New("world: unknown prop")
	ErrInsufficientFunds = errors.New("world: insufficient funds")
	ErrNoBuilding        = errors.New("world: no building at cell")
)

// Pool size hints.
var buildingCapacity = [data.ArchetypeCount]int{
	data.ArchetypeProducer:  32,
	data.ArchetypeStorage:   32,
	data.ArchetypeService:   128,
	data.ArchetypeHousehold: 256,
}

const (
	unitCapacity = 512
	taskCapacity = 1024
	propCapacity = 512
)

// World exclusively owns the building lists, units, tasks and props.
type World struct {
	buildings [data.ArchetypeCount]*pool.Pool[Building]
	Units     *pool.Pool[Unit]
	Tasks     *pool.Pool[Task]
	Props     *pool.Pool[Prop]

	Treasury  resource.Stock
	SpawnCell coord.Cell

	callbacks *Callbacks
}

func New(startingGold uint32) *World {
	w := &World{
		Units:     pool.New[Unit](unitCapacity),
		Tasks:     pool.New[Task](taskCapacity),
		Props:     pool.New[Prop](propCapacity),
		Treasury:  resource.NewStock(resource.KindsOf(resource.Gold), 0),
		callbacks: NewCallbacks(),
	}
	for a := range w.buildings {
		w.buildings[a] = pool.New[Building](buildingCapacity[a])
	}
	w.Treasury.Add(resource.Gold, startingGold)
	registerBuiltinCallbacks(w.callbacks)
	return w
}

// Callbacks is the task callback registry game systems register into.
func (w *World) Callbacks() *Callbacks { return w.callbacks }

// Buildings is the list for one archetype.
func (w *World) Buildings(a data.Archetype) *pool.Pool[Building] { return w.buildings[a] }

// EachBuilding visits buildings by archetype declaration order, then
// insertion order.
func (w *World) EachBuilding(fn func(*Building)) {
	for _, p := range w.buildings {
		p.Each(func(_ pool.Handle, b *Building) { fn(b) })
	}
}

// BuildingCount is the number of live buildings of all archetypes.
func (w *World) BuildingCount() int {
	n := 0
	for _, p := range w.buildings {
		n += p.Len()
	}
	return n
}

// BuildingByRef resolves a tile game-state handle to a building.
func (w *World) BuildingByRef(ref tile.GameState) (*Building, bool) {
	a, ok := refArchetype(ref.Kind)
	if !ok {
		return nil, false
	}
	return w.buildings[a].Get(ref.ID)
}

// BuildingAt resolves the building covering cell.
func (w *World) BuildingAt(m *tile.Map, c coord.Cell) (*Building, bool) {
	t := m.Find(c, tile.LayerBuildings, tile.KindBuilding)
	if t == nil {
		return nil, false
	}
	return w.BuildingByRef(t.GameState)
}

// PropAt resolves the prop at cell.
func (w *World) PropAt(m *tile.Map, c coord.Cell) (*Prop, bool) {
	t := m.Tile(c, tile.LayerObjects)
	if t == nil || t.GameState.Kind != RefProp {
		return nil, false
	}
	return w.Props.Get(t.GameState.ID)
}

// Update runs one simulation step: buildings by archetype, then props,
// then units advancing their tasks.
func (w *World) Update(q *Query) {
	for _, p := range w.buildings {
		p.Each(func(_ pool.Handle, b *Building) {
			ctx := BuildingContext{Query: q, Building: b}
			b.update(&ctx)
		})
	}
	w.Props.Each(func(_ pool.Handle, p *Prop) { p.update(q) })
	for _, id := range w.Units.Handles() {
		w.runUnit(q, id)
	}
}

// PlaceBuilding builds the named building with its base at cell, paying
// its cost from the treasury.
func (w *World) PlaceBuilding(q *Query, name string, c coord.Cell) (*Building, error) {
	cfg, ok := q.Configs.Buildings.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBuilding, name)
	}
	def, ok := q.Sets.ByHash(cfg.TileDefHash)
	if !ok {
		return nil, fmt.Errorf("place %s: %w: %s", name, tile.ErrUnknownDef, cfg.TileDef)
	}
	if err := q.Map.CanPlace(tile.LayerBuildings, c, def); err != nil {
		return nil, fmt.Errorf("place %s: %w", name, err)
	}
	if !q.Cheats.FreeConstruction && !w.Treasury.Has(resource.Gold, cfg.Cost) {
		return nil, fmt.Errorf("place %s: %w: cost %d, have %d", name, ErrInsufficientFunds, cfg.Cost, w.Treasury.Count(resource.Gold))
	}
	variation := uint32(q.Rng.IntN(def.VariationCount()))
	b, err := w.insertBuilding(q, newBuilding(cfg, c, def, variation), def)
	if err != nil {
		return nil, err
	}
	if !q.Cheats.FreeConstruction {
		w.Treasury.Remove(resource.Gold, cfg.Cost)
	}
	return b, nil
}

// RestoreBuilding re-inserts a copy of a removed building, keeping its
// state but giving it a new handle.
func (w *World) RestoreBuilding(q *Query, saved Building) (*Building, error) {
	cfg, ok := q.Configs.Buildings.Get(saved.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBuilding, saved.Name)
	}
	def, err := q.Sets.ByName(saved.TileDefName)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", saved.Name, err)
	}
	saved.config = cfg
	saved.TileDefHash = def.NameHash
	saved.Footprint = def.Size
	saved.clearTasks()
	return w.insertBuilding(q, saved, def)
}

func (w *World) insertBuilding(q *Query, b Building, def *tile.Def) (*Building, error) {
	t, err := q.Map.Place(tile.LayerBuildings, b.Cell, def, b.Variation)
	if err != nil {
		return nil, fmt.Errorf("place %s: %w", b.Name, err)
	}
	id, stored := w.buildings[b.Archetype].Insert(b)
	stored.ID = id
	t.GameState = stored.Ref()
	event.Emit(q.Events, BuildingPlaced{Ref: stored.Ref(), Name: stored.Name, Cell: stored.Cell})
	q.Log.Debug("building placed", zap.Stringer("building", stored))
	return stored, nil
}

// clearTasks forgets task handles that belonged to a previous life.
func (b *Building) clearTasks() {
	switch {
	case b.Producer != nil:
		b.Producer.Runner, b.Producer.Fetcher, b.Producer.Harvester = pool.Invalid, pool.Invalid, pool.Invalid
	case b.Service != nil:
		b.Service.Fetcher, b.Service.Patrol = pool.Invalid, pool.Invalid
	case b.Household != nil:
		b.Household.Incoming = 0
	}
}

// RemoveBuilding demolishes the building covering cell and returns a copy
// of its final state. Units working for it abort when they next need it.
func (w *World) RemoveBuilding(q *Query, c coord.Cell) (Building, error) {
	b, ok := w.BuildingAt(q.Map, c)
	if !ok {
		return Building{}, fmt.Errorf("%w: %s", ErrNoBuilding, c)
	}
	removed := *b
	q.Map.Clear(tile.LayerBuildings, b.Cell)
	w.buildings[b.Archetype].Remove(b.ID)
	event.Emit(q.Events, BuildingRemoved{Ref: removed.Ref(), Name: removed.Name, Cell: removed.Cell})
	q.Log.Debug("building removed", zap.Stringer("building", &removed))
	return removed, nil
}

// PlaceProp places the named prop on the objects layer.
func (w *World) PlaceProp(q *Query, name string, c coord.Cell) (*Prop, error) {
	cfg, ok := q.Configs.Props.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProp, name)
	}
	def, ok := q.Sets.ByHash(cfg.TileDefHash)
	if !ok {
		return nil, fmt.Errorf("place %s: %w: %s", name, tile.ErrUnknownDef, cfg.TileDef)
	}
	if err := q.Map.CanPlace(tile.LayerObjects, c, def); err != nil {
		return nil, fmt.Errorf("place %s: %w", name, err)
	}
	p := Prop{
		Name:      cfg.Name,
		Cell:      c,
		Variation: uint32(q.Rng.IntN(def.VariationCount())),
		Remaining: cfg.Harvest.Count,
		config:    cfg,
	}
	return w.insertProp(q, p, def)
}

// RestoreProp re-inserts a copy of a removed prop with a new handle.
func (w *World) RestoreProp(q *Query, saved Prop) (*Prop, error) {
	cfg, ok := q.Configs.Props.Get(saved.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProp, saved.Name)
	}
	def, ok := q.Sets.ByHash(cfg.TileDefHash)
	if !ok {
		return nil, fmt.Errorf("restore %s: %w: %s", saved.Name, tile.ErrUnknownDef, cfg.TileDef)
	}
	saved.config = cfg
	saved.Reserved = pool.Invalid
	return w.insertProp(q, saved, def)
}

func (w *World) insertProp(q *Query, p Prop, def *tile.Def) (*Prop, error) {
	t, err := q.Map.Place(tile.LayerObjects, p.Cell, def, p.Variation)
	if err != nil {
		return nil, fmt.Errorf("place %s: %w", p.Name, err)
	}
	id, stored := w.Props.Insert(p)
	stored.ID = id
	t.GameState = stored.Ref()
	return stored, nil
}

// RemoveProp removes the prop at cell and returns its final state.
func (w *World) RemoveProp(q *Query, c coord.Cell) (Prop, bool) {
	p, ok := w.PropAt(q.Map, c)
	if !ok {
		return Prop{}, false
	}
	removed := *p
	q.Map.Clear(tile.LayerObjects, p.Cell)
	w.Props.Remove(p.ID)
	return removed, true
}

// Population sums residents over all households.
func (w *World) Population() uint32 {
	var n uint32
	w.buildings[data.ArchetypeHousehold].Each(func(_ pool.Handle, b *Building) {
		n += b.Household.Residents
	})
	return n
}

// GoodsTotal sums every resource unit held in building stocks and carried
// by units. The treasury is not included.
func (w *World) GoodsTotal() uint64 {
	var n uint64
	w.EachBuilding(func(b *Building) { n += b.StockTotal() })
	w.Units.Each(func(_ pool.Handle, u *Unit) { n += uint64(u.Inventory.Count) })
	return n
}

// Reset empties the world. Registered callbacks survive.
func (w *World) Reset(startingGold uint32) {
	for _, p := range w.buildings {
		p.Clear()
	}
	w.Units.Clear()
	w.Tasks.Clear()
	w.Props.Clear()
	w.Treasury.Clear()
	w.Treasury.Add(resource.Gold, startingGold)
	w.SpawnCell = coord.Cell{}
}
