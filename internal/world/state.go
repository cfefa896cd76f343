package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

var ErrPostLoad = errors.New("world: post-load fixup failed")

// State is the serialisable form of the world. Pools keep their handles,
// generations and free stacks.
type State struct {
	Producers  pool.State[Building] `json:"producers"`
	Storage    pool.State[Building] `json:"storage"`
	Services   pool.State[Building] `json:"services"`
	Households pool.State[Building] `json:"households"`
	Units      pool.State[Unit]     `json:"units"`
	Tasks      pool.State[Task]     `json:"tasks"`
	Props      pool.State[Prop]     `json:"props"`
	Treasury   resource.Stock       `json:"treasury"`
	SpawnCell  coord.Cell           `json:"spawn_cell"`
}

func (w *World) State() State {
	return State{
		Producers:  w.buildings[data.ArchetypeProducer].State(),
		Storage:    w.buildings[data.ArchetypeStorage].State(),
		Services:   w.buildings[data.ArchetypeService].State(),
		Households: w.buildings[data.ArchetypeHousehold].State(),
		Units:      w.Units.State(),
		Tasks:      w.Tasks.State(),
		Props:      w.Props.State(),
		Treasury:   w.Treasury,
		SpawnCell:  w.SpawnCell,
	}
}

// Restore replaces the world contents with st. Config links are not set;
// call PostLoad afterwards.
func (w *World) Restore(st State) error {
	lists := [data.ArchetypeCount]pool.State[Building]{st.Producers, st.Storage, st.Services, st.Households}
	for a, l := range lists {
		if err := w.buildings[a].Restore(l); err != nil {
			return fmt.Errorf("restore %s list: %w", data.Archetype(a), err)
		}
	}
	if err := w.Units.Restore(st.Units); err != nil {
		return fmt.Errorf("restore units: %w", err)
	}
	if err := w.Tasks.Restore(st.Tasks); err != nil {
		return fmt.Errorf("restore tasks: %w", err)
	}
	if err := w.Props.Restore(st.Props); err != nil {
		return fmt.Errorf("restore props: %w", err)
	}
	w.Treasury = st.Treasury
	w.SpawnCell = st.SpawnCell
	return nil
}

// PostLoadContext carries what post-load fixups need.
type PostLoadContext struct {
	Configs *data.Configs
	Map     *tile.Map
	Log     *zap.Logger
}

// PostLoad re-links configs, recomputes config-derived fields and checks
// that every entity and its tile point at each other.
func (w *World) PostLoad(ctx PostLoadContext) error {
	var errs []error
	for a, p := range w.buildings {
		p.Each(func(id pool.Handle, b *Building) {
			if err := b.postLoad(ctx, data.Archetype(a), id); err != nil {
				errs = append(errs, err)
			}
		})
	}
	w.Units.Each(func(id pool.Handle, u *Unit) {
		u.config = ctx.Configs.Unit(u.Config)
		if u.ID != id {
			errs = append(errs, fmt.Errorf("unit %s stored as %s", u.ID, id))
		}
		if !w.Tasks.Alive(u.Task) {
			errs = append(errs, fmt.Errorf("unit %s references dead task %s", id, u.Task))
		}
		if u.OnMap {
			t := ctx.Map.Tile(u.Cell, tile.LayerObjects)
			if t == nil || t.GameState != u.Ref() {
				errs = append(errs, fmt.Errorf("unit %s not on its tile at %s", id, u.Cell))
			}
		}
	})
	w.Tasks.Each(func(id pool.Handle, t *Task) {
		if !w.Units.Alive(t.Unit) {
			errs = append(errs, fmt.Errorf("task %s references dead unit %s", id, t.Unit))
		}
		if t.Callback != "" && !w.callbacks.Has(t.Callback) {
			ctx.Log.Error("saved task names an unregistered callback", zap.Stringer("task", t), zap.String("callback", t.Callback))
			t.Callback = ""
		}
	})
	w.Props.Each(func(id pool.Handle, p *Prop) {
		p.config = ctx.Configs.Prop(p.Name)
		t := ctx.Map.Tile(p.Cell, tile.LayerObjects)
		if p.ID != id || t == nil || t.GameState != p.Ref() {
			errs = append(errs, fmt.Errorf("prop %s at %s is not linked to its tile", id, p.Cell))
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPostLoad, errors.Join(errs...))
	}
	return nil
}

func (b *Building) postLoad(ctx PostLoadContext, a data.Archetype, id pool.Handle) error {
	cfg, ok := ctx.Configs.Buildings.Get(b.Name)
	if !ok {
		return fmt.Errorf("building %s: %w", b.Name, ErrUnknownBuilding)
	}
	if b.ID != id || b.Archetype != a || cfg.Archetype() != a {
		return fmt.Errorf("building %s stored as %s in %s list", b, id, a)
	}
	b.config = cfg
	b.TileDefHash = tile.HashName(b.TileDefName)
	t := ctx.Map.Tile(b.Cell, tile.LayerBuildings)
	if t == nil || t.IsBlocker() || t.GameState != b.Ref() {
		return fmt.Errorf("building %s is not linked to its tile", b)
	}
	if t.Def.NameHash != b.TileDefHash || t.Def.Size != b.Footprint {
		return fmt.Errorf("building %s expects tile %s, map has %s", b, b.TileDefName, t.Def.Name)
	}
	return nil
}
