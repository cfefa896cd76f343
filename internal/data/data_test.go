package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

func TestBuiltinConfigsResolve(t *testing.T) {
	c := Builtin(zap.NewNop())

	house, ok := c.Buildings.Get("House")
	require.True(t, ok)
	assert.Equal(t, ArchetypeHousehold, house.Archetype())
	assert.Equal(t, uint32(2), house.Household.MaxLevel())
	assert.Equal(t, tile.HashName("house_0"), house.TileDefHash)
	assert.Equal(t, tile.HashName("house_2"), house.Household.Levels[2].TileDefHash)

	yard, ok := c.Buildings.Get("lumberyard")
	require.True(t, ok)
	assert.True(t, yard.Producer.IsHarvester())
	assert.Equal(t, uint32(1), yard.Producer.OutputPerCycle)

	runner := c.Unit("runner")
	assert.Equal(t, nav.NodeRoad, runner.Traversable)

	assert.Len(t, c.BuildingsOfKind(KindGranary|KindStorageYard), 2)
	assert.Equal(t, []string{"well", "market", "house", "farm", "lumberyard", "workshop", "granary", "storage_yard"}, c.Buildings.Names())
}

func TestUnknownUnitFallsBackAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := Builtin(zap.New(core))

	u := c.Unit("dragon")
	assert.Equal(t, "settler", u.Name)
	require.Equal(t, 1, logs.FilterMessage("unknown unit config, using default").Len())
	assert.Equal(t, "config", logs.All()[0].LoggerName)
}

func TestBuildingKindParsing(t *testing.T) {
	k, err := ParseBuildingKind("Well | market")
	require.NoError(t, err)
	assert.Equal(t, KindWell|KindMarket, k)
	assert.False(t, k.IsSingle())
	assert.Equal(t, "well|market", k.String())

	_, err = ParseBuildingKind("castle")
	assert.Error(t, err)

	a, ok := KindGranary.Archetype()
	assert.True(t, ok)
	assert.Equal(t, ArchetypeStorage, a)
	assert.Equal(t, KindGranary|KindStorageYard, KindsOf(ArchetypeStorage))
}

func TestLoadOverridesAndSkipsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	write := func(sub, name, body string) {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, sub, name), []byte(body), 0o644))
	}
	write("tiles", "extra.json", `[
		{"name": "bakery", "kind": "building", "layer": "buildings", "size": {"w": 2, "h": 1}},
		{"name": "", "kind": "terrain", "layer": "terrain"},
		{"name": "lava", "kind": "volcano", "layer": "terrain"}
	]`)
	write("buildings", "food.yaml", `
- name: granary
  kind: granary
  tile_def: granary
  storage: {accepted: [food], capacity: 250}
- name: bakery
  kind: farm
  tile_def: bakery
  producer: {output: food, production_frequency_secs: 5}
- name: castle
  kind: fortress
  tile_def: bakery
- name: ghost
  kind: house
  tile_def: missing_tile
`)
	write("units", "units.json", `[{"name": "runner", "movement_speed": 4, "traversable": "road|ground"}]`)

	core, logs := observer.New(zap.WarnLevel)
	c, err := Load(dir, zap.New(core))
	require.NoError(t, err)

	granary, ok := c.Buildings.Get("granary")
	require.True(t, ok)
	assert.Equal(t, uint32(250), granary.Storage.Capacity)
	assert.Equal(t, []resource.Kind{resource.Food}, granary.Storage.Accepted)

	bakery, ok := c.Buildings.Get("bakery")
	require.True(t, ok)
	assert.Equal(t, float32(5), bakery.Producer.ProductionFrequencySecs)
	assert.Equal(t, uint32(10), bakery.Producer.OutputCapacity)

	_, ok = c.Buildings.Get("castle")
	assert.False(t, ok)
	_, ok = c.Buildings.Get("ghost")
	assert.False(t, ok)
	_, err = c.Tiles.ByName("lava")
	assert.Error(t, err)

	assert.Equal(t, float32(4), c.Unit("runner").MovementSpeed)
	assert.Equal(t, nav.NodeRoad|nav.NodeGround, c.Unit("runner").Traversable)

	assert.GreaterOrEqual(t, logs.Len(), 4)
	for _, e := range logs.All() {
		assert.Equal(t, "config", e.LoggerName)
	}
}

func TestLoadMissingDirKeepsBuiltins(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.Equal(t, Builtin(nil).Snapshot(), c.Snapshot())
}
