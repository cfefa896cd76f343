package world

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

type fixture struct {
	t *testing.T
	q *Query
	w *World
	m *tile.Map
}

func newFixture(t *testing.T, w, h int32) *fixture {
	t.Helper()
	cfgs := data.Builtin(nil)
	m := tile.NewMap(coord.Size{W: w, H: h})
	grass, err := cfgs.Tiles.ByName("grass")
	require.NoError(t, err)
	m.Fill(tile.LayerTerrain, grass)
	wld := New(1000)
	q := &Query{
		Step:    clock.Step{Seconds: 0.5},
		Rng:     rng.New(rng.DefaultSeed),
		Map:     m,
		Sets:    cfgs.Tiles,
		World:   wld,
		Finder:  nav.NewFinder(m, nav.DefaultOptions()),
		Configs: cfgs,
		Settings: Settings{
			WorkersSearchRadius:      20,
			PopulationPerSettlerUnit: 1,
		},
		Events: event.NewBus(),
		Log:    zap.NewNop(),
	}
	return &fixture{t: t, q: q, w: wld, m: m}
}

func (f *fixture) tick(n int) {
	for range n {
		f.q.Step.Number++
		f.w.Update(f.q)
	}
}

func (f *fixture) place(name string, x, y int32) *Building {
	f.t.Helper()
	b, err := f.w.PlaceBuilding(f.q, name, coord.Cell{X: x, Y: y})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) road(from, to coord.Cell) {
	f.t.Helper()
	road, err := f.q.Sets.ByName("road")
	require.NoError(f.t, err)
	coord.CellRange{Start: from, End: to}.Each(func(c coord.Cell) {
		f.m.Clear(tile.LayerTerrain, c)
		_, err := f.m.Place(tile.LayerTerrain, c, road, 0)
		require.NoError(f.t, err)
	})
}

// get re-resolves a building; pointers returned by place do not survive
// later inserts into the same list.
func (f *fixture) get(b *Building) *Building {
	f.t.Helper()
	out, ok := f.w.BuildingByRef(b.Ref())
	require.True(f.t, ok)
	return out
}

// assertCoherent checks that every building tile and entity agree.
func (f *fixture) assertCoherent() {
	f.t.Helper()
	f.w.EachBuilding(func(b *Building) {
		owner := f.m.Tile(b.Cell, tile.LayerBuildings)
		require.NotNil(f.t, owner, "building %s has no tile", b)
		assert.Equal(f.t, b.Ref(), owner.GameState)
		assert.Equal(f.t, b.Footprint, owner.Def.Size)
		b.Range().Each(func(c coord.Cell) {
			if c == b.Cell {
				return
			}
			blocker := f.m.Tile(c, tile.LayerBuildings)
			require.NotNil(f.t, blocker)
			assert.True(f.t, blocker.IsBlocker())
			assert.Equal(f.t, b.Cell, blocker.OwnerCell)
		})
	})
}

func TestIsNearBuildingRadius(t *testing.T) {
	f := newFixture(t, 20, 20)
	house := f.place("house", 5, 0)
	f.place("market", 0, 0)

	near := func() bool {
		return f.q.IsNearBuilding(house.Cell, house.Footprint, data.KindMarket, 5)
	}
	assert.True(t, near())

	_, err := f.w.RemoveBuilding(f.q, coord.Cell{X: 1, Y: 1})
	require.NoError(t, err)
	assert.False(t, near())

	f.place("market", 10, 0)
	assert.True(t, near())
	_, err = f.w.RemoveBuilding(f.q, coord.Cell{X: 10, Y: 0})
	require.NoError(t, err)

	f.place("market", 11, 0)
	assert.False(t, near(), "dx = 6 is outside radius 5")
}

func TestIsNearBuildingRadiusZeroAndSelf(t *testing.T) {
	f := newFixture(t, 10, 10)
	house := f.place("house", 5, 5)
	f.place("well", 6, 5)

	assert.False(t, f.q.IsNearBuilding(house.Cell, house.Footprint, data.KindWell, 0))
	assert.True(t, f.q.IsNearBuilding(house.Cell, house.Footprint, data.KindWell, 1))
	assert.False(t, f.q.IsNearBuilding(house.Cell, house.Footprint, data.KindHouse, 3), "own footprint is skipped")
	assert.False(t, f.q.IsNearBuilding(house.Cell, house.Footprint, data.KindWell, -1))
}

func TestHouseholdUpgradesNearWell(t *testing.T) {
	run := func() (uint32, uint32) {
		f := newFixture(t, 32, 32)
		f.place("well", 10, 10)
		house := f.place("house", 11, 10)
		f.tick(40)

		house = f.get(house)
		require.Equal(t, uint32(1), house.Household.Level)
		assert.Equal(t, "house_1", house.TileDefName)
		assert.Equal(t, data.KindWell, house.Household.Nearby)

		tl := f.m.Tile(house.Cell, tile.LayerBuildings)
		require.NotNil(t, tl)
		assert.Equal(t, "house_1", tl.Def.Name)
		assert.Equal(t, house.Ref(), tl.GameState)
		assert.Equal(t, uint32(0), house.Variation, "third draw of the default seed")
		assert.Equal(t, house.Variation, tl.Variation)

		f.q.Events.SwapBuffers()
		ups := event.Pending[HouseholdUpgraded](f.q.Events)
		require.Len(t, ups, 1)
		assert.Equal(t, uint32(0), ups[0].Previous)
		f.assertCoherent()
		return house.Household.Level, house.Variation
	}
	l1, v1 := run()
	l2, v2 := run()
	assert.Equal(t, l1, l2)
	assert.Equal(t, v1, v2, "variation follows the seeded RNG")
}

func TestHouseholdUpgradeWaitsForRoom(t *testing.T) {
	f := newFixture(t, 32, 32)
	f.q.Cheats = Cheats{IgnoreWorkerRequirements: true, InstantUpgrades: true}
	f.place("well", 10, 10)
	market := f.place("market", 8, 12)
	f.get(market).Service.Stock.Add(resource.Food, 20)
	house := f.place("house", 11, 10)
	rock, err := f.q.Sets.ByName("rock")
	require.NoError(t, err)
	_, err = f.m.Place(tile.LayerObjects, coord.Cell{X: 12, Y: 11}, rock, 0)
	require.NoError(t, err)

	f.tick(10)
	got := f.get(house)
	assert.Equal(t, uint32(1), got.Household.Level, "level 2 needs the rock cell")
	assert.Equal(t, data.KindWell|data.KindMarket, got.Household.Nearby)
	assert.Nil(t, f.m.Tile(coord.Cell{X: 12, Y: 11}, tile.LayerBuildings))
	assert.Equal(t, "rock", f.m.Tile(coord.Cell{X: 12, Y: 11}, tile.LayerObjects).Def.Name)
	f.assertCoherent()

	f.m.Clear(tile.LayerObjects, coord.Cell{X: 12, Y: 11})
	f.tick(1)
	got = f.get(house)
	assert.Equal(t, uint32(2), got.Household.Level)
	assert.Equal(t, coord.Size{W: 2, H: 2}, got.Footprint)
	f.assertCoherent()
}

func TestHouseholdStaysAtLevelWithoutRequirements(t *testing.T) {
	f := newFixture(t, 16, 16)
	house := f.place("house", 3, 3)
	f.tick(100)
	assert.Equal(t, uint32(0), f.get(house).Household.Level)
}

func TestHouseholdDowngradeWhenAllowed(t *testing.T) {
	f := newFixture(t, 32, 32)
	cfg, ok := f.q.Configs.Buildings.Get("house")
	require.True(t, ok)
	cfg.Household.AllowDowngrade = true

	f.place("well", 10, 10)
	house := f.place("house", 11, 10)
	f.tick(20)
	require.Equal(t, uint32(1), f.get(house).Household.Level)

	_, err := f.w.RemoveBuilding(f.q, coord.Cell{X: 10, Y: 10})
	require.NoError(t, err)
	f.tick(19)
	assert.Equal(t, uint32(1), f.get(house).Household.Level)
	f.tick(1)
	assert.Equal(t, uint32(0), f.get(house).Household.Level)
	assert.Equal(t, "house_0", f.get(house).TileDefName)
	f.assertCoherent()
}

func TestProducerFillsAdjacentStorage(t *testing.T) {
	f := newFixture(t, 16, 16)
	f.q.Cheats.IgnoreWorkerRequirements = true
	farm := f.place("farm", 2, 2)
	granary := f.place("granary", 4, 2)

	conserved := func() {
		t.Helper()
		fm := f.get(farm)
		assert.Equal(t, fm.Producer.Produced, f.w.GoodsTotal(), "goods only appear through production")
	}

	f.tick(66) // four 8 s cycles and the last runner's trip
	conserved()
	assert.Equal(t, uint64(4), f.get(farm).Producer.Produced)
	assert.Equal(t, uint32(4), f.get(granary).Storage.Stock.Count(resource.Food))

	f.tick(2000)
	conserved()
	assert.Equal(t, uint32(100), f.get(granary).Storage.Stock.Count(resource.Food))
	fm := f.get(farm)
	assert.LessOrEqual(t, fm.Producer.Output.Count(resource.Food), uint32(10))
	assert.Positive(t, fm.Producer.Output.Count(resource.Food), "residual stays at the producer")

	f.tick(200)
	assert.Equal(t, uint32(100), f.get(granary).Storage.Stock.Count(resource.Food))
	conserved()
}

func TestProducerIdleWithoutWorkers(t *testing.T) {
	f := newFixture(t, 16, 16)
	farm := f.place("farm", 2, 2)
	f.tick(100)
	assert.Zero(t, f.get(farm).Producer.Produced)

	f.get(farm).Workers.Add(1)
	f.tick(16)
	assert.Equal(t, uint64(1), f.get(farm).Producer.Produced)
}

func TestRunnerAbortsWithoutPathAndRestoresCargo(t *testing.T) {
	f := newFixture(t, 16, 8)
	f.q.Cheats.IgnoreWorkerRequirements = true
	farm := f.place("farm", 1, 2)
	granary := f.place("granary", 10, 2)
	f.get(farm).Producer.Output.Add(resource.Food, 2)

	f.tick(1)
	fm := f.get(farm)
	assert.Equal(t, 0, f.w.Units.Len(), "runner despawned in the tick it aborted")
	assert.Equal(t, 0, f.w.Tasks.Len())
	assert.Equal(t, uint32(2), fm.Producer.Output.Count(resource.Food))
	assert.Equal(t, runnerRetrySecs, fm.Producer.Cooldown)

	f.q.Events.SwapBuffers()
	finished := event.Pending[TaskFinished](f.q.Events)
	require.Len(t, finished, 1)
	assert.True(t, finished[0].Failed)
	assert.Equal(t, DeliverToStorage, finished[0].Kind)
	assert.Len(t, event.Pending[UnitDespawned](f.q.Events), 1)

	f.road(coord.Cell{X: 3, Y: 2}, coord.Cell{X: 9, Y: 2})
	f.tick(40)
	assert.GreaterOrEqual(t, f.get(granary).Storage.Stock.Count(resource.Food), uint32(2))
	assert.Equal(t, f.get(farm).Producer.Produced+2, f.w.GoodsTotal())
}

func TestHarvesterBringsWoodHome(t *testing.T) {
	f := newFixture(t, 16, 8)
	f.q.Cheats.IgnoreWorkerRequirements = true
	yard := f.place("lumberyard", 2, 2)
	tree, err := f.w.PlaceProp(f.q, "tree", coord.Cell{X: 7, Y: 2})
	require.NoError(t, err)
	treeID := tree.ID

	f.tick(40)
	p, ok := f.w.Props.Get(treeID)
	require.True(t, ok)
	assert.True(t, p.Harvested)
	assert.False(t, f.w.Tasks.Alive(p.Reserved))

	y := f.get(yard)
	assert.Equal(t, uint64(2), y.Producer.Produced)
	assert.Equal(t, uint32(2), y.Producer.Output.Count(resource.Wood), "no storage, so wood stays home")

	f.tick(60)
	p, _ = f.w.Props.Get(treeID)
	assert.True(t, p.Harvested || p.Remaining == 2)
	assert.Equal(t, f.get(yard).Producer.Produced, f.w.GoodsTotal())
}

func TestSettlerMovesIntoHousehold(t *testing.T) {
	f := newFixture(t, 16, 16)
	house := f.place("house", 8, 8)
	_, err := f.w.SpawnUnit(f.q, "settler", coord.Cell{X: 0, Y: 0}, Task{Kind: Settle, SearchRadius: 64})
	require.NoError(t, err)

	f.tick(1)
	assert.Equal(t, uint32(1), f.get(house).Household.Incoming)
	assert.Equal(t, 1, f.w.Units.Len())

	f.tick(40)
	h := f.get(house).Household
	assert.Equal(t, uint32(1), h.Residents)
	assert.Zero(t, h.Incoming)
	assert.Equal(t, 0, f.w.Units.Len())
	assert.Nil(t, f.m.Tile(coord.Cell{X: 0, Y: 0}, tile.LayerObjects), "unit tile removed on despawn")
}

func TestSettlerAbortReleasesVacancy(t *testing.T) {
	f := newFixture(t, 16, 16)
	house := f.place("house", 8, 8)
	_, err := f.w.SpawnUnit(f.q, "settler", coord.Cell{X: 0, Y: 0}, Task{Kind: Settle, SearchRadius: 64})
	require.NoError(t, err)
	f.tick(1)
	require.Equal(t, uint32(1), f.get(house).Household.Incoming)

	_, err = f.w.RemoveBuilding(f.q, house.Cell)
	require.NoError(t, err)
	f.tick(1)
	assert.Equal(t, 0, f.w.Units.Len())
	assert.Equal(t, 0, f.w.Tasks.Len())
}

func TestPlaceBuildingErrors(t *testing.T) {
	f := newFixture(t, 16, 16)
	f.w.Treasury.Clear()
	f.w.Treasury.Add(resource.Gold, 45)

	f.place("market", 2, 2)
	assert.Equal(t, uint32(5), f.w.Treasury.Count(resource.Gold))

	_, err := f.w.PlaceBuilding(f.q, "granary", coord.Cell{X: 6, Y: 6})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.w.PlaceBuilding(f.q, "house", coord.Cell{X: 3, Y: 3})
	assert.ErrorIs(t, err, tile.ErrOccupied)

	_, err = f.w.PlaceBuilding(f.q, "castle", coord.Cell{X: 9, Y: 9})
	assert.ErrorIs(t, err, ErrUnknownBuilding)

	_, err = f.w.PlaceBuilding(f.q, "granary", coord.Cell{X: 15, Y: 15})
	assert.ErrorIs(t, err, tile.ErrOutOfBounds)

	f.q.Cheats.FreeConstruction = true
	f.place("granary", 6, 6)
	assert.Equal(t, uint32(5), f.w.Treasury.Count(resource.Gold))
	f.assertCoherent()
}

func TestStaleHandlesAfterRemoval(t *testing.T) {
	f := newFixture(t, 16, 16)
	well := f.place("well", 2, 2)
	ref := well.Ref()
	_, err := f.w.RemoveBuilding(f.q, coord.Cell{X: 2, Y: 2})
	require.NoError(t, err)
	again := f.place("well", 2, 2)

	_, ok := f.w.BuildingByRef(ref)
	assert.False(t, ok)
	assert.Equal(t, ref.ID.Index, again.ID.Index, "slot reused")
	assert.NotEqual(t, ref.ID.Generation, again.ID.Generation)
}

func TestStateRoundTripAndPostLoad(t *testing.T) {
	f := newFixture(t, 24, 24)
	f.q.Cheats.IgnoreWorkerRequirements = true
	f.place("well", 10, 10)
	f.place("house", 11, 10)
	f.place("lumberyard", 2, 2)
	f.place("storage_yard", 2, 5)
	_, err := f.w.PlaceProp(f.q, "tree", coord.Cell{X: 6, Y: 3})
	require.NoError(t, err)
	f.tick(13)
	require.Positive(t, f.w.Units.Len(), "a harvester is under way")

	first, err := json.Marshal(f.w.State())
	require.NoError(t, err)

	var st State
	require.NoError(t, json.Unmarshal(first, &st))
	loaded := New(0)
	require.NoError(t, loaded.Restore(st))
	require.NoError(t, loaded.PostLoad(PostLoadContext{Configs: f.q.Configs, Map: f.m, Log: zap.NewNop()}))

	second, err := json.Marshal(loaded.State())
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, string(first), string(second))

	house, ok := loaded.BuildingAt(f.m, coord.Cell{X: 11, Y: 10})
	require.True(t, ok)
	assert.NotNil(t, house.Config())
	assert.Equal(t, tile.HashName("house_0"), house.TileDefHash)
}

func TestPostLoadDetectsBrokenLinks(t *testing.T) {
	f := newFixture(t, 16, 16)
	f.place("well", 2, 2)
	st := f.w.State()

	f.m.SetGameState(tile.LayerBuildings, coord.Cell{X: 2, Y: 2}, tile.GameState{Kind: RefService, ID: pool.Handle{Generation: 9, Index: 9}})
	loaded := New(0)
	require.NoError(t, loaded.Restore(st))
	err := loaded.PostLoad(PostLoadContext{Configs: f.q.Configs, Map: f.m, Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrPostLoad)
}
