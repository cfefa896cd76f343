package sim

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritagebuilder/heritage/internal/config"
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/event"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/persist"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
	"github.com/heritagebuilder/heritage/internal/world"
)

func newSim(t *testing.T, mutate func(*config.Game)) *Simulation {
	t.Helper()
	g := config.DefaultGame()
	if mutate != nil {
		mutate(g)
	}
	s, err := New(Options{Game: g, Configs: data.Builtin(nil)})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func withPreset(n int) func(*config.Game) {
	return func(g *config.Game) {
		g.Save.LoadMapSetting = config.LoadMapSetting{Kind: config.MapPreset, PresetNumber: n}
	}
}

func ticks(s *Simulation, n int) {
	for range n {
		s.Tick(0.5)
	}
}

func do(t *testing.T, s *Simulation, cmd Command) {
	t.Helper()
	require.NoError(t, s.HandleCommand(cmd))
}

func placeCmd(name string, x, y int32) Command {
	return Command{Kind: CommandPlace, Name: name, Cell: coord.Cell{X: x, Y: y}}
}

func at(kind CommandKind, x, y int32) Command {
	return Command{Kind: kind, Cell: coord.Cell{X: x, Y: y}}
}

func encoded(t *testing.T, s *Simulation) ([]byte, *persist.Document) {
	t.Helper()
	doc, err := s.Document()
	require.NoError(t, err)
	b, err := persist.Encode(doc)
	require.NoError(t, err)
	return b, doc
}

// requireSameState compares two simulations byte for byte and dumps the
// worlds when they diverge.
func requireSameState(t *testing.T, a, b *Simulation) {
	t.Helper()
	ba, da := encoded(t, a)
	bb, db := encoded(t, b)
	if !bytes.Equal(ba, bb) {
		t.Logf("first world:\n%s", spew.Sdump(da.World))
		t.Logf("second world:\n%s", spew.Sdump(db.World))
	}
	require.Equal(t, persist.Digest(ba), persist.Digest(bb))
	require.True(t, bytes.Equal(ba, bb))
}

func buildingAt(t *testing.T, s *Simulation, x, y int32) *world.Building {
	t.Helper()
	b, ok := s.World().BuildingAt(s.Map(), coord.Cell{X: x, Y: y})
	require.True(t, ok, "no building at (%d,%d)", x, y)
	return b
}

// Values drawn from the default seed with a well and a house placed on an
// empty 64x64 map: the house upgrades on step 20, after three bird flocks.
const (
	seededHouseVariation   uint32 = 0
	seededUpgradeVariation uint32 = 0
	seededUpgradeStep             = 20
)

var seededBirds = []coord.Cell{{X: 62, Y: 16}, {X: 45, Y: 41}, {X: 62, Y: 47}}

func effectCells(s *Simulation) []coord.Cell {
	var out []coord.Cell
	for _, it := range s.Snapshot().Items {
		if it.Kind == ItemEffect {
			out = append(out, it.Cell)
		}
	}
	return out
}

func TestSeededHouseholdUpgrade(t *testing.T) {
	run := func() *Simulation {
		s := newSim(t, nil)
		do(t, s, placeCmd("well", 10, 10))
		do(t, s, placeCmd("house_0", 11, 10))
		house := buildingAt(t, s, 11, 10)
		require.Equal(t, seededHouseVariation, house.Variation)

		ticks(s, seededUpgradeStep-1)
		require.Equal(t, uint32(0), buildingAt(t, s, 11, 10).Household.Level)
		assert.Equal(t, seededBirds, effectCells(s))

		ticks(s, 1)
		house = buildingAt(t, s, 11, 10)
		require.Equal(t, uint32(1), house.Household.Level)
		assert.Equal(t, "house_1", house.TileDefName)
		assert.Equal(t, seededUpgradeVariation, house.Variation)
		tl := s.Map().Tile(house.Cell, tile.LayerBuildings)
		require.NotNil(t, tl)
		assert.Equal(t, "house_1", tl.Def.Name)
		assert.Equal(t, seededUpgradeVariation, tl.Variation)

		ticks(s, 40-seededUpgradeStep)
		require.Equal(t, uint64(40), s.StepsRun())
		assert.Equal(t, uint32(1), buildingAt(t, s, 11, 10).Household.Level)
		require.NoError(t, s.CheckInvariants())
		return s
	}
	requireSameState(t, run(), run())
}

func TestBlockerIntegrity(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("farm", 5, 5))

	owner := s.Map().Tile(coord.Cell{X: 5, Y: 5}, tile.LayerBuildings)
	require.NotNil(t, owner)
	assert.False(t, owner.IsBlocker())
	for _, c := range []coord.Cell{{X: 6, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}} {
		bl := s.Map().Tile(c, tile.LayerBuildings)
		require.NotNil(t, bl, "cell %s", c)
		assert.True(t, bl.IsBlocker())
		assert.Equal(t, coord.Cell{X: 5, Y: 5}, bl.OwnerCell)
	}
	require.NoError(t, s.CheckInvariants())

	do(t, s, at(CommandClear, 6, 6))
	coord.NewRange(coord.Cell{X: 5, Y: 5}, coord.Size{W: 2, H: 2}).Each(func(c coord.Cell) {
		assert.Nil(t, s.Map().Tile(c, tile.LayerBuildings), "cell %s", c)
	})
	assert.Equal(t, 0, s.World().BuildingCount())
	require.NoError(t, s.CheckInvariants())
}

func TestDeterministicRuns(t *testing.T) {
	script := map[int][]Command{
		10:  {placeCmd("house", 33, 30)},
		40:  {placeCmd("road", 20, 28), placeCmd("tree", 10, 40)},
		80:  {at(CommandDemolish, 16, 30)},
		120: {{Kind: CommandUndo}},
	}
	run := func() *Simulation {
		s := newSim(t, withPreset(0))
		for i := range 300 {
			for _, cmd := range script[i] {
				do(t, s, cmd)
			}
			s.Tick(0.5)
		}
		require.NoError(t, s.CheckInvariants())
		return s
	}
	a, b := run(), run()
	assert.Positive(t, a.World().Population())
	requireSameState(t, a, b)
}

func TestRestoreKeepsPartialFrame(t *testing.T) {
	a := newSim(t, nil)
	require.Equal(t, 1, a.Tick(0.75))
	doc, err := a.Document()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, doc.ClockRemainder, 1e-6)

	b := newSim(t, nil)
	require.NoError(t, b.Restore(doc))
	assert.Equal(t, 1, a.Tick(0.25))
	assert.Equal(t, 1, b.Tick(0.25), "the saved quarter second is not lost")
	assert.Equal(t, a.StepsRun(), b.StepsRun())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round_trip.json")

	a := newSim(t, withPreset(0))
	ticks(a, 100)
	_, err := a.SaveFile(path)
	require.NoError(t, err)

	require.NoError(t, a.NewEmptyMap(coord.Size{W: 8, H: 8}, "", "grass"))
	require.NoError(t, a.LoadFile(path))
	assert.Equal(t, uint64(100), a.StepsRun())
	ticks(a, 100)

	b := newSim(t, nil)
	require.NoError(t, b.LoadFile(path))
	ticks(b, 100)

	assert.Equal(t, uint64(200), b.StepsRun())
	require.NoError(t, b.CheckInvariants())
	requireSameState(t, a, b)
}

func TestLoadThenSaveIsIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idempotent.json")
	a := newSim(t, withPreset(0))
	ticks(a, 60)
	_, err := a.SaveFile(path)
	require.NoError(t, err)
	first, _ := encoded(t, a)

	b := newSim(t, nil)
	require.NoError(t, b.LoadFile(path))
	second, _ := encoded(t, b)
	assert.True(t, bytes.Equal(first, second))
}

func TestRestoreKeepsStateOnError(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("well", 3, 3))
	ticks(s, 4)
	before, doc := encoded(t, s)

	doc.SchemaVersion = persist.SchemaVersion + 1
	require.ErrorIs(t, s.Restore(doc), persist.ErrSchemaVersion)

	doc.SchemaVersion = persist.SchemaVersion
	doc.TileMap.Layers[tile.LayerBuildings][0].Def = "no_such_tile"
	require.ErrorIs(t, s.Restore(doc), ErrRestore)

	err := s.HandleCommand(Command{Kind: CommandLoad, Path: filepath.Join(t.TempDir(), "missing.json")})
	require.ErrorIs(t, err, persist.ErrSlotNotFound)

	after, _ := encoded(t, s)
	assert.True(t, bytes.Equal(before, after))
}

func TestSaveAndLoadCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slot.json")
	s := newSim(t, nil)
	do(t, s, placeCmd("well", 3, 3))
	do(t, s, Command{Kind: CommandSave, Path: path})
	do(t, s, placeCmd("granary", 8, 8))
	require.Equal(t, 2, s.World().BuildingCount())

	do(t, s, Command{Kind: CommandLoad, Path: path})
	assert.Equal(t, 1, s.World().BuildingCount())
	assert.False(t, s.History().CanUndo(), "history does not survive a load")

	require.ErrorIs(t, s.HandleCommand(Command{Kind: CommandSave}), ErrMissingPath)
}

func TestLoadMapSettingSaveGame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "start.json")
	a := newSim(t, withPreset(1))
	ticks(a, 10)
	_, err := a.SaveFile(path)
	require.NoError(t, err)

	b := newSim(t, func(g *config.Game) {
		g.Save.LoadMapSetting = config.LoadMapSetting{Kind: config.MapSaveGame, SaveFilePath: path}
	})
	assert.Equal(t, uint64(10), b.StepsRun())
	assert.Equal(t, coord.Size{W: 32, H: 32}, b.Map().Size())

	c := newSim(t, func(g *config.Game) {
		g.Save.LoadMapSetting = config.LoadMapSetting{Kind: config.MapSaveGame, SaveFilePath: path + ".missing"}
	})
	assert.Equal(t, coord.Size{W: 64, H: 64}, c.Map().Size(), "falls back to the default map")
	assert.Equal(t, 0, c.World().BuildingCount())
}

func TestLoadMapSettingNone(t *testing.T) {
	s := newSim(t, func(g *config.Game) {
		g.Save.LoadMapSetting = config.LoadMapSetting{Kind: config.MapNone}
	})
	assert.Equal(t, coord.Size{W: 64, H: 64}, s.Map().Size())
	assert.Nil(t, s.Map().Tile(coord.Cell{}, tile.LayerTerrain))
}

func TestPresets(t *testing.T) {
	s := newSim(t, withPreset(0))
	assert.Equal(t, 10, s.World().BuildingCount())
	assert.Equal(t, 12, s.World().Props.Len())
	assert.Equal(t, coord.Cell{X: 0, Y: 29}, s.World().SpawnCell)
	assert.Equal(t, uint32(1000), s.World().Treasury.Count(resource.Gold), "presets are built for free")
	require.NoError(t, s.CheckInvariants())

	require.NoError(t, s.LoadPreset(1))
	assert.Equal(t, coord.Size{W: 32, H: 32}, s.Map().Size())
	assert.Equal(t, 5, s.World().BuildingCount())
	assert.Positive(t, s.World().Props.Len())
	road := s.Map().Tile(coord.Cell{X: 8, Y: 3}, tile.LayerTerrain)
	require.NotNil(t, road)
	assert.Equal(t, "road", road.Def.Name)
	require.NoError(t, s.CheckInvariants())

	require.ErrorIs(t, s.LoadPreset(7), ErrUnknownPreset)
}

func TestPausedSimulationDoesNotStep(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, Command{Kind: CommandPause})
	assert.True(t, s.Paused())
	assert.Equal(t, 0, s.Tick(5))
	assert.Equal(t, uint64(0), s.StepsRun())

	do(t, s, Command{Kind: CommandResume})
	assert.Equal(t, 2, s.Tick(1))
	assert.Equal(t, uint64(2), s.StepsRun())
}

func TestHandleCommandErrors(t *testing.T) {
	s := newSim(t, nil)
	require.ErrorIs(t, s.HandleCommand(Command{Kind: "Fly"}), ErrUnknownCommand)
	require.ErrorIs(t, s.HandleCommand(placeCmd("castle", 1, 1)), ErrUnknownName)
	require.ErrorIs(t, s.HandleCommand(placeCmd("settler", 1, 1)), ErrUnknownName)
	require.ErrorIs(t, s.HandleCommand(placeCmd("well", 99, 1)), tile.ErrOutOfBounds)
	require.ErrorIs(t, s.HandleCommand(at(CommandClear, 1, 1)), ErrNothingToClear)
	require.ErrorIs(t, s.HandleCommand(at(CommandDemolish, 1, 1)), world.ErrNoBuilding)

	do(t, s, placeCmd("well", 1, 1))
	require.ErrorIs(t, s.HandleCommand(placeCmd("well", 1, 1)), tile.ErrOccupied)
	require.ErrorIs(t, s.HandleCommand(at(CommandUpgrade, 1, 1)), ErrNotHousehold)
	assert.Equal(t, 1, s.History().Len(), "failed commands are not recorded")
}

func TestUpgradeCommand(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("house", 4, 4))
	do(t, s, at(CommandUpgrade, 4, 4))
	do(t, s, at(CommandUpgrade, 4, 4))
	house := buildingAt(t, s, 4, 4)
	assert.Equal(t, uint32(2), house.Household.Level)
	assert.Equal(t, coord.Size{W: 2, H: 2}, house.Footprint)
	require.Error(t, s.HandleCommand(at(CommandUpgrade, 4, 4)))

	do(t, s, Command{Kind: CommandUndo})
	house = buildingAt(t, s, 4, 4)
	assert.Equal(t, uint32(1), house.Household.Level)
	assert.Nil(t, s.Map().Tile(coord.Cell{X: 5, Y: 5}, tile.LayerBuildings))
	require.NoError(t, s.CheckInvariants())
}

func TestUpgradeBlockedByObjectsAndTerrain(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("house", 4, 4))
	do(t, s, placeCmd("tree", 5, 5))
	do(t, s, placeCmd("rock", 4, 5))
	do(t, s, placeCmd("water", 5, 4))
	do(t, s, at(CommandUpgrade, 4, 4))
	require.Equal(t, uint32(1), buildingAt(t, s, 4, 4).Household.Level)
	edits := s.History().Len()

	blocked := func() {
		t.Helper()
		require.Error(t, s.HandleCommand(at(CommandUpgrade, 4, 4)))
		house := buildingAt(t, s, 4, 4)
		assert.Equal(t, uint32(1), house.Household.Level)
		assert.Equal(t, coord.Size{W: 1, H: 1}, house.Footprint)
		for _, c := range []coord.Cell{{X: 5, Y: 4}, {X: 4, Y: 5}, {X: 5, Y: 5}} {
			assert.Nil(t, s.Map().Tile(c, tile.LayerBuildings), "cell %s", c)
		}
		require.NoError(t, s.CheckInvariants())
	}

	blocked()
	assert.Equal(t, edits, s.History().Len(), "failed upgrades are not recorded")
	assert.Equal(t, "tree", s.Map().Tile(coord.Cell{X: 5, Y: 5}, tile.LayerObjects).Def.Name)
	assert.Equal(t, "rock", s.Map().Tile(coord.Cell{X: 4, Y: 5}, tile.LayerObjects).Def.Name)

	do(t, s, at(CommandClear, 5, 5))
	blocked()
	do(t, s, at(CommandClear, 4, 5))
	blocked()
	do(t, s, placeCmd("grass", 5, 4))

	do(t, s, at(CommandUpgrade, 4, 4))
	house := buildingAt(t, s, 4, 4)
	assert.Equal(t, uint32(2), house.Household.Level)
	assert.Equal(t, coord.Size{W: 2, H: 2}, house.Footprint)
	require.NoError(t, s.CheckInvariants())
}

func TestInvariantsRejectBuildingOverObject(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("farm", 4, 4))
	require.NoError(t, s.CheckInvariants())

	rock, err := s.configs.Tiles.ByName("rock")
	require.NoError(t, err)
	_, err = s.Map().Place(tile.LayerObjects, coord.Cell{X: 5, Y: 5}, rock, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CheckInvariants(), ErrInvariant)
}

func TestUndoRedoPlacement(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("well", 5, 5))
	gold := s.World().Treasury.Count(resource.Gold)
	assert.Equal(t, uint32(990), gold)

	do(t, s, Command{Kind: CommandUndo})
	assert.Equal(t, 0, s.World().BuildingCount())
	assert.Equal(t, gold, s.World().Treasury.Count(resource.Gold), "undo does not refund")

	do(t, s, Command{Kind: CommandRedo})
	well := buildingAt(t, s, 5, 5)
	assert.Equal(t, "well", well.Name)
	require.ErrorIs(t, s.HandleCommand(Command{Kind: CommandRedo}), ErrNothingToRedo)
	require.NoError(t, s.CheckInvariants())
}

func TestFailedUndoKeepsHistoryAndMap(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("well", 3, 3))
	s.history.undo[0].Before.Buildings = []world.Building{{Name: "castle", Cell: coord.Cell{X: 3, Y: 3}}}

	err := s.HandleCommand(Command{Kind: CommandUndo})
	require.ErrorIs(t, err, world.ErrUnknownBuilding)
	assert.True(t, s.History().CanUndo())
	assert.False(t, s.History().CanRedo())
	assert.Equal(t, "well", buildingAt(t, s, 3, 3).Name)
	require.NoError(t, s.CheckInvariants())
}

func TestUndoRestoresDemolishedBuildingState(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("farm", 5, 5))
	farm := buildingAt(t, s, 5, 5)
	farm.Producer.Output.Add(resource.Food, 3)
	oldRef := farm.Ref()

	do(t, s, at(CommandDemolish, 6, 6))
	assert.Equal(t, 0, s.World().BuildingCount())

	do(t, s, Command{Kind: CommandUndo})
	farm = buildingAt(t, s, 6, 5)
	assert.Equal(t, uint32(3), farm.Producer.Output.Count(resource.Food))
	assert.NotEqual(t, oldRef, farm.Ref(), "restored entities get new handles")
	_, stale := s.World().BuildingByRef(oldRef)
	assert.False(t, stale)
	require.NoError(t, s.CheckInvariants())

	do(t, s, Command{Kind: CommandRedo})
	assert.Equal(t, 0, s.World().BuildingCount())
	do(t, s, Command{Kind: CommandUndo})
	assert.Equal(t, uint32(3), buildingAt(t, s, 5, 5).Producer.Output.Count(resource.Food))
}

func TestUndoTerrainAndProps(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("road", 3, 3))
	assert.Equal(t, "road", s.Map().Tile(coord.Cell{X: 3, Y: 3}, tile.LayerTerrain).Def.Name)
	do(t, s, Command{Kind: CommandUndo})
	assert.Equal(t, "grass", s.Map().Tile(coord.Cell{X: 3, Y: 3}, tile.LayerTerrain).Def.Name)

	do(t, s, placeCmd("tree", 7, 7))
	do(t, s, at(CommandClear, 7, 7))
	assert.Equal(t, 0, s.World().Props.Len())
	do(t, s, Command{Kind: CommandUndo})
	p, ok := s.World().PropAt(s.Map(), coord.Cell{X: 7, Y: 7})
	require.True(t, ok)
	assert.Equal(t, "tree", p.Name)

	do(t, s, placeCmd("water", 9, 9))
	require.ErrorIs(t, s.HandleCommand(placeCmd("well", 9, 9)), tile.ErrNotPlaceable)
	require.NoError(t, s.CheckInvariants())
}

func TestHistoryIsBounded(t *testing.T) {
	s := newSim(t, func(g *config.Game) { g.Sim.UndoDepth = 4 })
	for i := range int32(6) {
		do(t, s, placeCmd("well", i*2, 0))
	}
	assert.Equal(t, 4, s.History().Len())
	for range 4 {
		do(t, s, Command{Kind: CommandUndo})
	}
	require.ErrorIs(t, s.HandleCommand(Command{Kind: CommandUndo}), ErrNothingToUndo)
	assert.Equal(t, 2, s.World().BuildingCount())

	do(t, s, Command{Kind: CommandRedo})
	do(t, s, placeCmd("well", 20, 20))
	assert.False(t, s.History().CanRedo(), "a new edit drops the redo side")
}

func TestEventsDispatchAfterTick(t *testing.T) {
	s := newSim(t, nil)
	var placed []world.BuildingPlaced
	event.Subscribe(s.Events(), func(e world.BuildingPlaced) { placed = append(placed, e) })

	do(t, s, placeCmd("well", 2, 2))
	assert.Empty(t, placed, "events wait for the next tick")
	s.Tick(0)
	require.Len(t, placed, 1)
	assert.Equal(t, "well", placed[0].Name)
	assert.Len(t, event.Pending[world.BuildingPlaced](s.Events()), 1)
}

func TestSnapshot(t *testing.T) {
	s := newSim(t, withPreset(0))
	ticks(s, 60)
	snap := s.Snapshot()
	assert.Equal(t, uint64(60), snap.Tick)
	assert.Equal(t, coord.Size{W: 64, H: 64}, snap.Size)
	assert.Equal(t, uint32(1000), snap.Gold)

	counts := map[ItemKind]int{}
	last := ItemTerrain
	for _, it := range snap.Items {
		counts[it.Kind]++
		assert.GreaterOrEqual(t, it.Kind, last, "items are in drawing order")
		last = it.Kind
	}
	assert.Equal(t, 64*64, counts[ItemTerrain])
	assert.Equal(t, 10, counts[ItemBuilding])
	assert.Equal(t, 12, counts[ItemProp])
	assert.Equal(t, s.World().Units.Len(), counts[ItemUnit])
}

func TestCheckInvariantsDetectsBrokenLinks(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("farm", 5, 5))
	require.NoError(t, s.CheckInvariants())

	s.Map().Clear(tile.LayerBuildings, coord.Cell{X: 5, Y: 5})
	err := s.CheckInvariants()
	require.ErrorIs(t, err, ErrInvariant)

	s.debug = true
	assert.Panics(t, func() { s.mustHold(err) })
}

func TestDebugStepsPanicOnBrokenWorld(t *testing.T) {
	s := newSim(t, nil)
	do(t, s, placeCmd("granary", 5, 5))
	s.Map().Clear(tile.LayerBuildings, coord.Cell{X: 5, Y: 5})

	assert.NotPanics(t, func() { s.Tick(0.5) }, "release builds log and carry on")
	s.debug = true
	assert.Panics(t, func() { s.Tick(0.5) })
}
