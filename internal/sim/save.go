package sim

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/persist"
	"github.com/heritagebuilder/heritage/internal/world"
)

var ErrRestore = errors.New("sim: restore failed")

// Document captures the whole simulation as a save document.
func (s *Simulation) Document() (*persist.Document, error) {
	rngState, err := s.rng.State()
	if err != nil {
		return nil, err
	}
	systems, err := s.systems.Save()
	if err != nil {
		return nil, err
	}
	return &persist.Document{
		SchemaVersion:  persist.SchemaVersion,
		RngState:       rngState,
		Tick:           s.clock.StepsRun(),
		ClockRemainder: s.clock.Remainder(),
		TileMap:        persist.CaptureMap(s.tiles),
		World:          s.world.State(),
		GameSystems:    systems,
		Configs:        s.configs.Snapshot(),
	}, nil
}

// Restore replaces the simulation state with doc. Everything is rebuilt
// aside first: tile map, world, game systems, then post-load fixups. On
// any error the current state is kept. Undo history is cleared and the
// simulation is left paused or running as it was.
func (s *Simulation) Restore(doc *persist.Document) error {
	if doc.SchemaVersion != persist.SchemaVersion {
		return fmt.Errorf("%w: %w: %d", ErrRestore, persist.ErrSchemaVersion, doc.SchemaVersion)
	}
	m, err := persist.RestoreMap(doc.TileMap, s.configs.Tiles)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	w, systems, err := s.newWorld()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	if err := w.Restore(doc.World); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	if err := systems.Load(doc.GameSystems); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	ctx := world.PostLoadContext{Configs: s.configs, Map: m, Log: s.log}
	if err := w.PostLoad(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	if err := systems.PostLoad(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	if err := s.rng.SetState(doc.RngState); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}

	s.world = w
	s.systems = systems
	s.clock.Restore(doc.Tick, doc.ClockRemainder)
	s.history.Clear()
	s.setMap(m)
	s.log.Info("simulation restored",
		zap.Uint64("tick", doc.Tick),
		zap.Int("buildings", w.BuildingCount()),
		zap.Int("units", w.Units.Len()))
	return nil
}

// SaveFile writes the current state to path and returns the document
// digest.
func (s *Simulation) SaveFile(path string) (string, error) {
	doc, err := s.Document()
	if err != nil {
		return "", err
	}
	digest, err := persist.SaveFile(path, doc)
	if err != nil {
		return "", err
	}
	s.log.Named("save").Info("saved", zap.String("path", path), zap.String("digest", digest))
	return digest, nil
}

// LoadFile restores the state saved at path.
func (s *Simulation) LoadFile(path string) error {
	doc, err := persist.LoadFile(path)
	if err != nil {
		return err
	}
	return s.Restore(doc)
}
