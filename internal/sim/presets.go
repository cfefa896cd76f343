package sim

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/config"
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/tile"
	"github.com/heritagebuilder/heritage/internal/world"
)

var ErrUnknownPreset = errors.New("sim: unknown preset")

const defaultMapSide = 64

// loadInitialMap builds the first map according to load_map_setting. A
// save that cannot be loaded falls back to the default empty map.
func (s *Simulation) loadInitialMap(setting config.LoadMapSetting) error {
	switch setting.Kind {
	case config.MapEmpty:
		return s.NewEmptyMap(setting.SizeInCells, setting.TerrainTileCategory, setting.TerrainTileName)
	case config.MapPreset:
		return s.LoadPreset(setting.PresetNumber)
	case config.MapSaveGame:
		if err := s.LoadFile(setting.SaveFilePath); err != nil {
			s.log.Error("cannot load save game, starting on an empty map",
				zap.String("path", setting.SaveFilePath), zap.Error(err))
			d := config.DefaultGame().Save.LoadMapSetting
			return s.NewEmptyMap(d.SizeInCells, d.TerrainTileCategory, d.TerrainTileName)
		}
		return nil
	}
	s.reset(tile.NewMap(coord.Size{W: defaultMapSide, H: defaultMapSide}))
	return nil
}

// NewEmptyMap starts over on a map filled with one terrain tile.
func (s *Simulation) NewEmptyMap(size coord.Size, category, terrain string) error {
	if !size.IsValid() {
		return fmt.Errorf("empty map: invalid size %s", size)
	}
	def, err := s.configs.Tiles.Find(tile.LayerTerrain, category, terrain)
	if err != nil {
		return fmt.Errorf("empty map: %w", err)
	}
	m := tile.NewMap(size)
	m.Fill(tile.LayerTerrain, def)
	s.reset(m)
	s.log.Info("new map", zap.Stringer("size", size), zap.String("terrain", def.Name))
	return nil
}

// LoadPreset starts over on one of the built-in maps.
func (s *Simulation) LoadPreset(n int) error {
	if n < 0 || n >= len(presets) {
		return fmt.Errorf("%w: %d", ErrUnknownPreset, n)
	}
	p := presets[n]
	if err := s.NewEmptyMap(p.size, "", "grass"); err != nil {
		return err
	}
	b := &presetBuilder{s: s, q: s.commandQuery()}
	b.q.Cheats.FreeConstruction = true
	s.world.SpawnCell = p.spawn
	p.build(b)
	if err := errors.Join(b.errs...); err != nil {
		return fmt.Errorf("preset %d: %w", n, err)
	}
	s.log.Info("preset loaded", zap.Int("preset", n), zap.Int("buildings", s.world.BuildingCount()))
	return nil
}

type preset struct {
	size  coord.Size
	spawn coord.Cell
	build func(*presetBuilder)
}

var presets = []preset{
	{
		// Starter village along one road.
		size:  coord.Size{W: 64, H: 64},
		spawn: coord.Cell{X: 0, Y: 29},
		build: func(b *presetBuilder) {
			b.road(coord.Cell{X: 12, Y: 29}, coord.Cell{X: 48, Y: 29})
			b.building("well", 30, 30)
			b.building("house", 31, 30)
			b.building("house", 32, 30)
			b.building("house", 31, 31)
			b.building("house", 32, 31)
			b.building("market", 34, 30)
			b.building("farm", 24, 30)
			b.building("granary", 27, 30)
			b.building("lumberyard", 16, 30)
			b.building("storage_yard", 19, 30)
			for x := int32(8); x <= 13; x += 2 {
				for y := int32(32); y <= 38; y += 2 {
					b.prop("tree", x, y)
				}
			}
		},
	},
	{
		// Road grid with a forest in the far corner.
		size:  coord.Size{W: 32, H: 32},
		spawn: coord.Cell{X: 0, Y: 0},
		build: func(b *presetBuilder) {
			for i := int32(0); i < 32; i += 8 {
				b.road(coord.Cell{X: 0, Y: i}, coord.Cell{X: 31, Y: i})
				b.road(coord.Cell{X: i, Y: 0}, coord.Cell{X: i, Y: 31})
			}
			b.building("lumberyard", 9, 9)
			b.building("storage_yard", 12, 9)
			b.building("well", 14, 12)
			b.building("house", 12, 12)
			b.building("house", 13, 12)
			for x := int32(18); x <= 30; x++ {
				for y := int32(18); y <= 30; y++ {
					if (x+y)%3 == 0 && x%8 != 0 && y%8 != 0 {
						b.prop("tree", x, y)
					}
				}
			}
		},
	},
}

// presetBuilder places preset content through the regular world paths,
// collecting errors instead of stopping at the first.
type presetBuilder struct {
	s    *Simulation
	q    *world.Query
	errs []error
}

func (b *presetBuilder) road(from, to coord.Cell) {
	def, err := b.s.configs.Tiles.Find(tile.LayerTerrain, "", "road")
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	coord.CellRange{Start: from, End: to}.Each(func(c coord.Cell) {
		b.s.tiles.Clear(tile.LayerTerrain, c)
		if _, err := b.s.tiles.Place(tile.LayerTerrain, c, def, 0); err != nil {
			b.errs = append(b.errs, err)
		}
	})
}

func (b *presetBuilder) building(name string, x, y int32) {
	if _, err := b.s.world.PlaceBuilding(b.q, name, coord.Cell{X: x, Y: y}); err != nil {
		b.errs = append(b.errs, err)
	}
}

func (b *presetBuilder) prop(name string, x, y int32) {
	if _, err := b.s.world.PlaceProp(b.q, name, coord.Cell{X: x, Y: y}); err != nil {
		b.errs = append(b.errs, err)
	}
}
