package world

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/event"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

const (
	// maxTransitions bounds the instantaneous state changes one unit may
	// make in a tick.
	maxTransitions = 16
	maxReroutes    = 3

	callbackRunnerDone = "building.runner_done"
)

func registerBuiltinCallbacks(c *Callbacks) {
	_ = c.Register(callbackRunnerDone, func(q *Query, t *Task, failed bool) {
		if !failed {
			return
		}
		b, ok := q.World.BuildingByRef(t.Origin)
		if !ok {
			return
		}
		switch {
		case b.Producer != nil:
			b.Producer.Cooldown = runnerRetrySecs
		case b.Service != nil:
			b.Service.Cooldown = runnerRetrySecs
		}
	})
}

// SpawnTask creates a unit at origin's cell that runs task on behalf of
// origin. It returns the task handle.
func (w *World) SpawnTask(q *Query, unitName string, origin *Building, task Task) (pool.Handle, error) {
	task.Origin = origin.Ref()
	task.OriginCell = origin.Cell
	task.OriginFingerprint = origin.TileDefHash
	return w.SpawnUnit(q, unitName, origin.Cell, task)
}

// SpawnUnit creates a unit at cell running task and returns the task
// handle. The unit appears on the objects layer once its cell is free.
func (w *World) SpawnUnit(q *Query, unitName string, cell coord.Cell, task Task) (pool.Handle, error) {
	if !q.Map.InBounds(cell) {
		return pool.Invalid, fmt.Errorf("spawn %s: %w: %s", unitName, tile.ErrOutOfBounds, cell)
	}
	if _, ok := taskKindNames[task.Kind]; !ok {
		return pool.Invalid, fmt.Errorf("spawn %s: invalid task kind %d", unitName, task.Kind)
	}
	cfg := q.Configs.Unit(unitName)
	if task.Completion == 0 {
		task.Completion = Despawn
	}
	task.State = Plan
	if task.Cargo.Count > cfg.CarryCapacity {
		return pool.Invalid, fmt.Errorf("spawn %s: cargo %s exceeds capacity %d", unitName, task.Cargo, cfg.CarryCapacity)
	}

	uid, u := w.Units.Insert(Unit{
		Config:    cfg.Name,
		Cell:      cell,
		Pos:       coord.CellCenter(cell),
		Inventory: task.Cargo,
		config:    cfg,
	})
	u.ID = uid
	task.Unit = uid
	tid, t := w.Tasks.Insert(task)
	t.ID = tid
	u.Task = tid
	u.setAnim(q, "idle")
	u.settle(q)
	return tid, nil
}

func (w *World) runUnit(q *Query, id pool.Handle) {
	for range maxTransitions {
		u, ok := w.Units.Get(id)
		if !ok {
			return
		}
		t, ok := w.Tasks.Get(u.Task)
		if !ok {
			q.Log.Error("unit without live task, despawning", zap.Stringer("unit", id))
			w.despawn(q, u, nil)
			return
		}
		if !w.advance(q, u, t) {
			return
		}
	}
	q.Log.Warn("unit task did not settle this tick", zap.Stringer("unit", id))
}

// advance runs one state of the task. It returns true when the task
// changed state and should continue within the same tick.
func (w *World) advance(q *Query, u *Unit, t *Task) bool {
	if t.Kind == Despawn {
		w.despawn(q, u, t)
		return false
	}
	switch t.State {
	case Plan:
		return w.plan(q, u, t)
	case Route:
		return w.route(q, u, t)
	case Travel:
		return w.travel(q, u, t)
	case Act:
		return w.act(q, u, t)
	case Notify:
		w.finish(q, u, t, false)
		return true
	case Abort:
		w.finish(q, u, t, true)
		return true
	}
	return w.fail(q, t, fmt.Sprintf("unknown state %d", t.State))
}

func (w *World) fail(q *Query, t *Task, reason string) bool {
	q.Log.Debug("task aborted", zap.Stringer("task", t), zap.String("reason", reason))
	t.State = Abort
	return true
}

// unitRange is the building footprint the unit stands in, or its cell.
func (w *World) unitRange(q *Query, u *Unit) coord.CellRange {
	if !u.OnMap {
		if owner := q.Map.Find(u.Cell, tile.LayerBuildings, tile.KindBuilding); owner != nil {
			return owner.Range()
		}
	}
	return coord.SingleCell(u.Cell)
}

// origin resolves the task's origin building if it is still the one that
// spawned the unit.
func (w *World) origin(t *Task) (*Building, bool) {
	b, ok := w.BuildingByRef(t.Origin)
	if !ok || b.Cell != t.OriginCell || b.TileDefHash != t.OriginFingerprint {
		return nil, false
	}
	return b, true
}

func (w *World) targetProp(t *Task) (*Prop, bool) {
	if t.Target.Kind != RefProp {
		return nil, false
	}
	return w.Props.Get(t.Target.ID)
}

func (w *World) destination(t *Task) (coord.CellRange, bool) {
	if t.Returning {
		b, ok := w.origin(t)
		if !ok {
			return coord.CellRange{}, false
		}
		return b.Range(), true
	}
	switch t.Kind {
	case HarvestWood:
		p, ok := w.targetProp(t)
		if !ok {
			return coord.CellRange{}, false
		}
		return coord.SingleCell(p.Cell), true
	case Patrol:
		return coord.SingleCell(t.TargetCell), true
	}
	b, ok := w.BuildingByRef(t.Target)
	if !ok {
		return coord.CellRange{}, false
	}
	return b.Range(), true
}

func (w *World) plan(q *Query, u *Unit, t *Task) bool {
	from := w.unitRange(q, u)
	switch t.Kind {
	case DeliverToStorage:
		kind := u.Inventory.Kind
		b := q.FindNearestBuilding(from, t.SearchRadius, func(b *Building) bool {
			return b.Storage != nil && b.Accepts(kind) > 0
		})
		if b == nil && t.AllowProducerFallback {
			b = q.FindNearestBuilding(from, t.SearchRadius, func(b *Building) bool {
				return b.Producer != nil && b.Ref() != t.Origin && b.Accepts(kind) > 0
			})
		}
		if b == nil {
			return w.fail(q, t, "no building accepts "+kind.String())
		}
		t.Target, t.TargetCell = b.Ref(), b.Cell

	case FetchFromStorage:
		if len(t.Wanted) == 0 {
			return w.fail(q, t, "empty shopping list")
		}
		want := t.Wanted[0]
		b := q.FindNearestBuilding(from, t.SearchRadius, func(b *Building) bool {
			return b.Storage != nil && b.Ref() != t.Origin && b.Storage.Stock.Count(want.Kind) > 0
		})
		if b == nil {
			return w.fail(q, t, "no storage holds "+want.Kind.String())
		}
		t.Target, t.TargetCell = b.Ref(), b.Cell

	case HarvestWood:
		name := tile.NormalizeName(t.PropName)
		p := q.FindNearestProp(from, t.SearchRadius, func(p *Prop) bool {
			return tile.NormalizeName(p.Name) == name && p.Harvestable(w)
		})
		if p == nil {
			return w.fail(q, t, "no harvestable "+t.PropName)
		}
		p.Reserved = t.ID
		t.Reserved = true
		t.Target, t.TargetCell = p.Ref(), p.Cell

	case Settle:
		b := q.FindNearestBuilding(from, t.SearchRadius, func(b *Building) bool {
			return b.Household != nil && b.Household.Vacancies(b.config.Household) > 0
		})
		if b == nil {
			return w.fail(q, t, "no household vacancy")
		}
		b.Household.Incoming++
		t.Reserved = true
		t.Target, t.TargetCell = b.Ref(), b.Cell

	case Patrol:
		if !w.pickPatrolCell(q, u, t) {
			return w.fail(q, t, "no patrol cell")
		}
	}
	t.State = Route
	return true
}

func (w *World) pickPatrolCell(q *Query, u *Unit, t *Task) bool {
	r := int(max(t.SearchRadius, 1))
	for range 8 {
		c := t.OriginCell.Add(int32(q.Rng.Range(-r, r)), int32(q.Rng.Range(-r, r)))
		if q.Map.NodeKind(c).Intersects(u.config.Traversable) {
			t.TargetCell = c
			return true
		}
	}
	return false
}

func (w *World) route(q *Query, u *Unit, t *Task) bool {
	dest, ok := w.destination(t)
	if !ok {
		return w.fail(q, t, "destination gone")
	}
	t.Path, t.PathStep = nil, 0
	u.Progress = 0
	if dest.Contains(u.Cell) {
		t.State = Act
		return true
	}
	path, err := q.Finder.Find(nav.Request{
		From:        w.unitRange(q, u),
		To:          dest,
		Traversable: u.config.Traversable,
	})
	if err != nil {
		return w.fail(q, t, err.Error())
	}
	if len(path) == 0 {
		t.State = Act
		return true
	}
	t.Path = path
	t.State = Travel
	u.setAnim(q, "walk")
	return true
}

func (w *World) travel(q *Query, u *Unit, t *Task) bool {
	dest, ok := w.destination(t)
	if !ok {
		return w.fail(q, t, "destination gone")
	}
	here := w.unitRange(q, u)
	u.Progress += u.config.MovementSpeed * q.Seconds()
	for u.Progress >= 1 && t.PathStep < len(t.Path) {
		next := t.Path[t.PathStep]
		if !dest.Contains(next) && !here.Contains(next) && !q.Map.NodeKind(next).Intersects(u.config.Traversable) {
			t.Reroutes++
			if t.Reroutes > maxReroutes {
				return w.fail(q, t, "path blocked")
			}
			t.State = Route
			return true
		}
		u.moveTo(q, next)
		here = coord.SingleCell(next)
		t.PathStep++
		u.Progress--
	}
	if t.PathStep >= len(t.Path) {
		u.Progress = 0
		u.Pos = coord.CellCenter(u.Cell)
		u.setAnim(q, "idle")
		t.State = Act
		return true
	}
	u.Pos = coord.Lerp(coord.CellCenter(u.Cell), coord.CellCenter(t.Path[t.PathStep]), u.Progress)
	return false
}

func (w *World) act(q *Query, u *Unit, t *Task) bool {
	switch t.Kind {
	case DeliverToStorage:
		b, ok := w.BuildingByRef(t.Target)
		if !ok {
			return w.fail(q, t, "target gone")
		}
		w.unload(q, u, t, b.Accept(u.Inventory.Kind, u.Inventory.Count))

	case FetchFromStorage:
		if !t.Returning {
			b, ok := w.BuildingByRef(t.Target)
			if !ok || b.Storage == nil {
				return w.fail(q, t, "storage gone")
			}
			want := t.Wanted[0]
			got := b.Storage.Stock.Remove(want.Kind, min(want.Count, u.config.CarryCapacity))
			if got == 0 {
				return w.fail(q, t, "storage empty")
			}
			u.Inventory = resource.StockItem{Kind: want.Kind, Count: got}
			t.Returning = true
			t.State = Route
			return true
		}
		b, ok := w.origin(t)
		if !ok {
			return w.fail(q, t, "origin gone")
		}
		w.unload(q, u, t, b.Accept(u.Inventory.Kind, u.Inventory.Count))

	case HarvestWood:
		if !t.Returning {
			p, ok := w.targetProp(t)
			if !ok || p.Reserved != t.ID {
				return w.fail(q, t, "prop gone")
			}
			t.Timer -= q.Seconds()
			if t.Timer > 0 {
				return false
			}
			n := p.take()
			t.Reserved = false
			u.Inventory = resource.StockItem{Kind: p.config.Harvest.Kind, Count: n}
			if b, ok := w.origin(t); ok && b.Producer != nil {
				b.Producer.Produced += uint64(n)
			}
			t.Returning = true
			t.State = Route
			return true
		}
		b, ok := w.origin(t)
		if !ok || b.Producer == nil {
			return w.fail(q, t, "origin gone")
		}
		w.unload(q, u, t, b.Producer.Output.Add(u.Inventory.Kind, u.Inventory.Count))

	case Settle:
		b, ok := w.BuildingByRef(t.Target)
		if !ok || b.Household == nil {
			return w.fail(q, t, "household gone")
		}
		h := b.Household
		if t.Reserved {
			h.Incoming = max(h.Incoming, 1) - 1
			t.Reserved = false
		}
		capacity := b.config.Household.Level(h.Level).MaxResidents
		if h.Residents < capacity {
			h.Residents += min(max(q.Settings.PopulationPerSettlerUnit, 1), capacity-h.Residents)
		}

	case Patrol:
		if !t.Returning {
			t.Returning = true
			t.State = Route
			return true
		}
	}
	t.State = Notify
	return true
}

// unload clears the unit's inventory after accepted units were handed over;
// whatever was not accepted is dropped.
func (w *World) unload(q *Query, u *Unit, t *Task, accepted uint32) {
	if residual := u.Inventory.Count - min(accepted, u.Inventory.Count); residual > 0 {
		q.Log.Debug("residual cargo dropped", zap.Stringer("task", t),
			zap.Stringer("kind", u.Inventory.Kind), zap.Uint32("count", residual))
	}
	u.Inventory = resource.StockItem{}
}

// release gives back whatever the task reserved.
func (w *World) release(t *Task) {
	if !t.Reserved {
		return
	}
	t.Reserved = false
	switch t.Kind {
	case HarvestWood:
		if p, ok := w.targetProp(t); ok && p.Reserved == t.ID {
			p.Reserved = pool.Invalid
		}
	case Settle:
		if b, ok := w.BuildingByRef(t.Target); ok && b.Household != nil {
			b.Household.Incoming = max(b.Household.Incoming, 1) - 1
		}
	}
}

// restoreCargo puts an aborted unit's inventory back into its origin.
func (w *World) restoreCargo(q *Query, u *Unit, t *Task) {
	item := u.Inventory
	if item.IsEmpty() {
		return
	}
	var restored uint32
	if b, ok := w.origin(t); ok {
		switch {
		case b.Producer != nil && b.Producer.Output.Accepts(item.Kind):
			restored = b.Producer.Output.Add(item.Kind, item.Count)
		default:
			restored = b.Accept(item.Kind, item.Count)
		}
	}
	if restored < item.Count {
		q.Log.Debug("aborted cargo dropped", zap.Stringer("task", t),
			zap.Stringer("kind", item.Kind), zap.Uint32("count", item.Count-restored))
	}
	u.Inventory = resource.StockItem{}
}

// finish fires the callback, reports the outcome and swaps in the
// completion task.
func (w *World) finish(q *Query, u *Unit, t *Task, failed bool) {
	if failed {
		t.Failed = true
		w.release(t)
		w.restoreCargo(q, u, t)
	}
	w.callbacks.invoke(q, t, failed)
	event.Emit(q.Events, TaskFinished{Task: t.ID, Kind: t.Kind, Failed: failed})

	next := Task{
		Kind:       t.Completion,
		State:      Plan,
		Unit:       u.ID,
		Origin:     t.Origin,
		OriginCell: t.OriginCell,
		Completion: Despawn,
	}
	if next.Kind == 0 {
		next.Kind = Despawn
	}
	w.Tasks.Remove(t.ID)
	id, nt := w.Tasks.Insert(next)
	nt.ID = id
	u.Task = id
}

func (w *World) despawn(q *Query, u *Unit, t *Task) {
	u.lift(q)
	if !u.Inventory.IsEmpty() {
		q.Log.Debug("despawned unit dropped cargo", zap.Stringer("unit", u.ID), zap.Stringer("cargo", u.Inventory))
	}
	event.Emit(q.Events, UnitDespawned{Unit: u.ID, Cell: u.Cell})
	if t != nil {
		w.Tasks.Remove(t.ID)
	}
	w.Units.Remove(u.ID)
}
