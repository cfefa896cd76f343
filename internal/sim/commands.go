package sim

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/tile"
	"github.com/heritagebuilder/heritage/internal/world"
)

// CommandKind enumerates the host commands.
type CommandKind string

const (
	CommandPlace    CommandKind = "Place"
	CommandClear    CommandKind = "Clear"
	CommandUpgrade  CommandKind = "Upgrade"
	CommandDemolish CommandKind = "Demolish"
	CommandUndo     CommandKind = "Undo"
	CommandRedo     CommandKind = "Redo"
	CommandSave     CommandKind = "Save"
	CommandLoad     CommandKind = "Load"
	CommandPause    CommandKind = "Pause"
	CommandResume   CommandKind = "Resume"
)

var (
	ErrUnknownCommand = errors.New("sim: unknown command")
	ErrUnknownName    = errors.New("sim: nothing placeable by that name")
	ErrNothingToClear = errors.New("sim: nothing to clear")
	ErrNotHousehold   = errors.New("sim: not a household")
	ErrMissingPath    = errors.New("sim: command needs a file path")
)

// Command is an editor or host request applied between steps.
type Command struct {
	Kind CommandKind `json:"kind"`
	Cell coord.Cell  `json:"cell"`
	Name string      `json:"name,omitempty"` // Place: building, prop or tile def
	Path string      `json:"path,omitempty"` // Save, Load
}

func (c Command) String() string {
	switch c.Kind {
	case CommandPlace:
		return fmt.Sprintf("%s %s at %s", c.Kind, c.Name, c.Cell)
	case CommandClear, CommandUpgrade, CommandDemolish:
		return fmt.Sprintf("%s at %s", c.Kind, c.Cell)
	case CommandSave, CommandLoad:
		return fmt.Sprintf("%s %s", c.Kind, c.Path)
	}
	return string(c.Kind)
}

// HandleCommand applies cmd. Map edits are recorded for undo; failed
// commands leave the world unchanged.
func (s *Simulation) HandleCommand(cmd Command) error {
	var err error
	switch cmd.Kind {
	case CommandPlace:
		err = s.place(cmd.Name, cmd.Cell)
	case CommandClear:
		err = s.clear(cmd.Cell)
	case CommandUpgrade:
		err = s.upgrade(cmd.Cell)
	case CommandDemolish:
		err = s.demolish(cmd.Cell)
	case CommandUndo:
		err = s.Undo()
	case CommandRedo:
		err = s.Redo()
	case CommandSave:
		if cmd.Path == "" {
			return ErrMissingPath
		}
		_, err = s.SaveFile(cmd.Path)
	case CommandLoad:
		if cmd.Path == "" {
			return ErrMissingPath
		}
		err = s.LoadFile(cmd.Path)
	case CommandPause:
		s.Pause()
	case CommandResume:
		s.Resume()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
	if err != nil {
		s.log.Debug("command failed", zap.Stringer("command", cmd), zap.Error(err))
		return fmt.Errorf("%s: %w", cmd, err)
	}
	if s.debug {
		s.mustHold(s.CheckInvariants())
	}
	return nil
}

func (s *Simulation) inBounds(c coord.Cell) error {
	if !s.tiles.InBounds(c) {
		return fmt.Errorf("%w: %s", tile.ErrOutOfBounds, c)
	}
	return nil
}

// buildingNamed resolves a building config by name or by its base tile
// def, so "house" and "house_0" both place a house.
func (s *Simulation) buildingNamed(name string) (*data.BuildingConfig, bool) {
	if cfg, ok := s.configs.Buildings.Get(name); ok {
		return cfg, true
	}
	h := tile.HashName(name)
	for _, cfg := range s.configs.Buildings.All() {
		if cfg.TileDefHash == h {
			return cfg, true
		}
	}
	return nil, false
}

// place builds a building, a prop, or a plain tile by name.
func (s *Simulation) place(name string, c coord.Cell) error {
	if err := s.inBounds(c); err != nil {
		return err
	}
	q := s.commandQuery()
	if cfg, ok := s.buildingNamed(name); ok {
		def, ok := s.configs.Tiles.ByHash(cfg.TileDefHash)
		if !ok {
			return fmt.Errorf("%w: %s", tile.ErrUnknownDef, cfg.TileDef)
		}
		return s.record(string(CommandPlace), coord.NewRange(c, def.Size), func() error {
			_, err := s.world.PlaceBuilding(q, cfg.Name, c)
			return err
		})
	}
	if _, ok := s.configs.Props.Get(name); ok {
		return s.record(string(CommandPlace), coord.SingleCell(c), func() error {
			_, err := s.world.PlaceProp(q, name, c)
			return err
		})
	}
	def, err := s.configs.Tiles.ByName(name)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	switch {
	case def.Layer == tile.LayerTerrain:
		return s.record(string(CommandPlace), coord.NewRange(c, def.Size), func() error {
			return s.placeTerrain(def, c)
		})
	case def.Layer == tile.LayerObjects && def.Kind == tile.KindObject:
		return s.record(string(CommandPlace), coord.NewRange(c, def.Size), func() error {
			if err := s.tiles.CanPlace(tile.LayerObjects, c, def); err != nil {
				return err
			}
			_, err := s.tiles.Place(tile.LayerObjects, c, def, uint32(s.rng.IntN(def.VariationCount())))
			return err
		})
	}
	return fmt.Errorf("%w: %q is a %s tile", ErrUnknownName, name, def.Kind)
}

// placeTerrain swaps the terrain under a footprint. Terrain that stops
// being placeable cannot go under buildings or objects.
func (s *Simulation) placeTerrain(def *tile.Def, c coord.Cell) error {
	fp := coord.NewRange(c, def.Size)
	if !s.tiles.InBounds(fp.End) {
		return fmt.Errorf("%w: %s at %s", tile.ErrOutOfBounds, def.Name, c)
	}
	var err error
	fp.Each(func(cell coord.Cell) {
		if err != nil || def.Flags.Has(tile.FlagPlaceable) {
			return
		}
		if s.tiles.Tile(cell, tile.LayerBuildings) != nil || s.tiles.Tile(cell, tile.LayerObjects) != nil {
			err = fmt.Errorf("%w: %s at %s", tile.ErrNotPlaceable, def.Name, cell)
		}
	})
	if err != nil {
		return err
	}
	fp.Each(func(cell coord.Cell) { s.tiles.Clear(tile.LayerTerrain, cell) })
	variation := uint32(s.rng.IntN(def.VariationCount()))
	_, err = s.tiles.Place(tile.LayerTerrain, c, def, variation)
	return err
}

// clear removes the building at c, or failing that the prop or object.
func (s *Simulation) clear(c coord.Cell) error {
	if err := s.inBounds(c); err != nil {
		return err
	}
	if _, ok := s.world.BuildingAt(s.tiles, c); ok {
		return s.demolish(c)
	}
	t := s.tiles.Find(c, tile.LayerObjects, tile.KindObject|tile.KindProp)
	if t == nil {
		return fmt.Errorf("%w at %s", ErrNothingToClear, c)
	}
	q := s.commandQuery()
	return s.record(string(CommandClear), coord.SingleCell(c), func() error {
		if _, ok := s.world.RemoveProp(q, c); !ok {
			s.tiles.Clear(tile.LayerObjects, c)
		}
		return nil
	})
}

func (s *Simulation) demolish(c coord.Cell) error {
	if err := s.inBounds(c); err != nil {
		return err
	}
	b, ok := s.world.BuildingAt(s.tiles, c)
	if !ok {
		return fmt.Errorf("%w: %s", world.ErrNoBuilding, c)
	}
	q := s.commandQuery()
	return s.record(string(CommandDemolish), b.Range(), func() error {
		_, err := s.world.RemoveBuilding(q, c)
		return err
	})
}

func (s *Simulation) upgrade(c coord.Cell) error {
	if err := s.inBounds(c); err != nil {
		return err
	}
	b, ok := s.world.BuildingAt(s.tiles, c)
	if !ok {
		return fmt.Errorf("%w: %s", world.ErrNoBuilding, c)
	}
	if b.Household == nil {
		return fmt.Errorf("%w: %s", ErrNotHousehold, b)
	}
	area := b.Range()
	hh := b.Config().Household
	if next := b.Household.Level + 1; next <= hh.MaxLevel() {
		if def, ok := s.configs.Tiles.ByHash(hh.Level(next).TileDefHash); ok {
			area = area.Union(coord.NewRange(b.Cell, def.Size))
		}
	}
	ref := b.Ref()
	q := s.commandQuery()
	return s.record(string(CommandUpgrade), area, func() error {
		b, ok := s.world.BuildingByRef(ref)
		if !ok {
			return fmt.Errorf("%w: %s", world.ErrNoBuilding, c)
		}
		return world.TryUpgrade(q, b)
	})
}
