package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/rng"
)

func TestGameDefaultsForMissingKeys(t *testing.T) {
	cfg, err := ParseGame([]byte(`{"sim": {"starting_gold_units": 500}, "unknown": {"x": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, rng.DefaultSeed, cfg.Sim.RandomSeed)
	assert.Equal(t, float32(0.5), cfg.Sim.UpdateFrequencySecs)
	assert.Equal(t, uint32(500), cfg.Sim.StartingGoldUnits)
	assert.Equal(t, int32(20), cfg.Sim.WorkersSearchRadius)
	assert.Equal(t, float32(20), cfg.Sim.WorkersUpdateFrequencySecs)
	assert.Equal(t, float32(20), cfg.Sim.SettlersSpawnFrequencySecs)
	assert.Equal(t, uint32(1), cfg.Sim.PopulationPerSettlerUnit)
	assert.Equal(t, float32(60), cfg.Save.AutosaveFrequencySecs)
	assert.Equal(t, MapEmpty, cfg.Save.LoadMapSetting.Kind)
}

func TestGameLargeSeedAndMapSetting(t *testing.T) {
	cfg, err := ParseGame([]byte(`{
		"sim": {"random_seed": 14627506418404750138, "update_frequency_secs": 0.25},
		"save": {"enable_autosave": true, "load_map_setting": {"kind": "preset", "preset_number": 1}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(0xCAFE1CAFE2CAFE3A), cfg.Sim.RandomSeed)
	assert.Equal(t, float32(0.25), cfg.Sim.UpdateFrequencySecs)
	assert.True(t, cfg.Save.EnableAutosave)
	assert.Equal(t, LoadMapSetting{Kind: MapPreset, PresetNumber: 1,
		SizeInCells:         coord.Size{W: 64, H: 64},
		TerrainTileCategory: "ground",
		TerrainTileName:     "grass",
	}, cfg.Save.LoadMapSetting)
}

func TestGameRejectsBadMapSetting(t *testing.T) {
	_, err := ParseGame([]byte(`{"save": {"load_map_setting": {"kind": "save_game"}}}`))
	assert.Error(t, err)
	_, err = ParseGame([]byte(`{"save": {"load_map_setting": {"kind": "teleport"}}}`))
	assert.Error(t, err)
	_, err = ParseGame([]byte(`{"sim": [`))
	assert.Error(t, err)
}

func TestGameSanitizesNonsense(t *testing.T) {
	cfg, err := ParseGame([]byte(`{"sim": {"update_frequency_secs": -1, "undo_depth": 1000}}`))
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), cfg.Sim.UpdateFrequencySecs)
	assert.Equal(t, 16, cfg.Sim.UndoDepth)
}

func TestLoadEngineToml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logging]
level = "debug"
file = "logs/heritage.log"

[save]
backend = "postgres"

[host]
frame_rate = "20ms"
view = true
`), 0o644))

	cfg, err := LoadEngine(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "logs/heritage.log", cfg.Logging.File)
	assert.Equal(t, "postgres", cfg.Save.Backend)
	assert.Equal(t, 20*time.Millisecond, cfg.Host.FrameRate)
	assert.True(t, cfg.Host.View)
	assert.Equal(t, "configs", cfg.Host.ConfigsDir)
}

func TestMissingFilesYieldDefaults(t *testing.T) {
	e, err := LoadEngine(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "file", e.Save.Backend)

	g, err := LoadGame(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultGame(), g)
}
