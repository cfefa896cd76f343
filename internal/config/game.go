package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/rng"
)

// Game holds the simulation options from configs/game.json. The file is
// JSON; it is decoded with the YAML decoder, which accepts JSON documents
// and ignores unknown keys.
type Game struct {
	Sim    SimConfig    `yaml:"sim"`
	Save   GameSave     `yaml:"save"`
	Cheats CheatsConfig `yaml:"cheats"`
}

type SimConfig struct {
	RandomSeed                 uint64  `yaml:"random_seed"`
	UpdateFrequencySecs        float32 `yaml:"update_frequency_secs"`
	StartingGoldUnits          uint32  `yaml:"starting_gold_units"`
	WorkersSearchRadius        int32   `yaml:"workers_search_radius"`
	WorkersUpdateFrequencySecs float32 `yaml:"workers_update_frequency_secs"`
	SettlersSpawnFrequencySecs float32 `yaml:"settlers_spawn_frequency_secs"`
	PopulationPerSettlerUnit   uint32  `yaml:"population_per_settler_unit"`
	DiagonalPaths              bool    `yaml:"diagonal_paths"`
	RoadStepCost               float64 `yaml:"road_step_cost"`
	UndoDepth                  int     `yaml:"undo_depth"`
}

type GameSave struct {
	EnableAutosave        bool           `yaml:"enable_autosave"`
	AutosaveFrequencySecs float32        `yaml:"autosave_frequency_secs"`
	LoadMapSetting        LoadMapSetting `yaml:"load_map_setting"`
}

type CheatsConfig struct {
	IgnoreWorkerRequirements bool `yaml:"ignore_worker_requirements"`
	FreeConstruction         bool `yaml:"free_construction"`
	InstantUpgrades          bool `yaml:"instant_upgrades"`
}

// MapSettingKind selects how the initial map is produced.
type MapSettingKind string

const (
	MapNone     MapSettingKind = "none"
	MapEmpty    MapSettingKind = "empty_map"
	MapPreset   MapSettingKind = "preset"
	MapSaveGame MapSettingKind = "save_game"
)

// LoadMapSetting is a tagged union keyed by Kind.
type LoadMapSetting struct {
	Kind                MapSettingKind `yaml:"kind"`
	SizeInCells         coord.Size     `yaml:"size_in_cells"`
	TerrainTileCategory string         `yaml:"terrain_tile_category"`
	TerrainTileName     string         `yaml:"terrain_tile_name"`
	PresetNumber        int            `yaml:"preset_number"`
	SaveFilePath        string         `yaml:"save_file_path"`
}

// Validate checks the fields required by the selected kind.
func (s LoadMapSetting) Validate() error {
	switch s.Kind {
	case MapNone, "":
		return nil
	case MapEmpty:
		if !s.SizeInCells.IsValid() {
			return fmt.Errorf("empty_map: invalid size %s", s.SizeInCells)
		}
		if s.TerrainTileName == "" {
			return fmt.Errorf("empty_map: terrain_tile_name is required")
		}
	case MapPreset:
		if s.PresetNumber < 0 {
			return fmt.Errorf("preset: negative preset_number %d", s.PresetNumber)
		}
	case MapSaveGame:
		if strings.TrimSpace(s.SaveFilePath) == "" {
			return fmt.Errorf("save_game: save_file_path is required")
		}
	default:
		return fmt.Errorf("unknown load_map_setting kind %q", s.Kind)
	}
	return nil
}

// DefaultGame returns the documented defaults.
func DefaultGame() *Game {
	return &Game{
		Sim: SimConfig{
			RandomSeed:                 rng.DefaultSeed,
			UpdateFrequencySecs:        0.5,
			StartingGoldUnits:          1000,
			WorkersSearchRadius:        20,
			WorkersUpdateFrequencySecs: 20,
			SettlersSpawnFrequencySecs: 20,
			PopulationPerSettlerUnit:   1,
			RoadStepCost:               0.5,
			UndoDepth:                  16,
		},
		Save: GameSave{
			AutosaveFrequencySecs: 60,
			LoadMapSetting: LoadMapSetting{
				Kind:                MapEmpty,
				SizeInCells:         coord.Size{W: 64, H: 64},
				TerrainTileCategory: "ground",
				TerrainTileName:     "grass",
			},
		},
	}
}

// ParseGame decodes a game.json document over the defaults. Missing keys
// keep their defaults; unknown keys are ignored.
func ParseGame(data []byte) (*Game, error) {
	cfg := DefaultGame()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse game config: %w", err)
	}
	cfg.sanitize()
	if err := cfg.Save.LoadMapSetting.Validate(); err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}
	return cfg, nil
}

// LoadGame reads and parses game.json. A missing file yields the defaults.
func LoadGame(path string) (*Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGame(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseGame(data)
}

// sanitize replaces nonsensical values with defaults.
func (g *Game) sanitize() {
	d := DefaultGame()
	if g.Sim.UpdateFrequencySecs <= 0 {
		g.Sim.UpdateFrequencySecs = d.Sim.UpdateFrequencySecs
	}
	if g.Sim.WorkersUpdateFrequencySecs <= 0 {
		g.Sim.WorkersUpdateFrequencySecs = d.Sim.WorkersUpdateFrequencySecs
	}
	if g.Sim.SettlersSpawnFrequencySecs <= 0 {
		g.Sim.SettlersSpawnFrequencySecs = d.Sim.SettlersSpawnFrequencySecs
	}
	if g.Sim.PopulationPerSettlerUnit == 0 {
		g.Sim.PopulationPerSettlerUnit = 1
	}
	if g.Sim.WorkersSearchRadius < 0 {
		g.Sim.WorkersSearchRadius = d.Sim.WorkersSearchRadius
	}
	if g.Sim.RoadStepCost <= 0 {
		g.Sim.RoadStepCost = d.Sim.RoadStepCost
	}
	if g.Sim.UndoDepth < 4 || g.Sim.UndoDepth > 32 {
		g.Sim.UndoDepth = d.Sim.UndoDepth
	}
	if g.Save.AutosaveFrequencySecs <= 0 {
		g.Save.AutosaveFrequencySecs = d.Save.AutosaveFrequencySecs
	}
}
