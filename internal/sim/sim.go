// Package sim drives the deterministic simulation: it turns host frame
// time into fixed steps, builds the per-step Query, runs the world and the
// game systems, and handles editor commands, undo, presets and saves.
package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/config"
	"github.com/heritagebuilder/heritage/internal/core/clock"
	"github.com/heritagebuilder/heritage/internal/core/event"
	"github.com/heritagebuilder/heritage/internal/core/rng"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/system"
	"github.com/heritagebuilder/heritage/internal/tile"
	"github.com/heritagebuilder/heritage/internal/world"
)

const defaultPathCacheSize = 4096

// Options configure a Simulation. Zero values pick the defaults.
type Options struct {
	Game    *config.Game
	Configs *data.Configs
	Tuning  world.Tuning // optional formula overrides

	// PathCacheSize bounds memoised paths; negative disables the cache.
	PathCacheSize int64

	// Debug turns invariant violations into panics.
	Debug bool

	Log *zap.Logger
}

// Simulation owns the world and everything a step needs. It is driven from
// a single goroutine.
type Simulation struct {
	game    *config.Game
	configs *data.Configs
	tuning  world.Tuning
	log     *zap.Logger
	debug   bool

	clock   *clock.SimClock
	rng     *rng.Random
	tiles   *tile.Map
	world   *world.World
	systems *system.Registry
	finder  *nav.Finder
	cache   *nav.PathCache
	events  *event.Bus
	history *History

	settings world.Settings
	cheats   world.Cheats
	paused   bool
}

// New builds a simulation and its initial map from the game's
// load_map_setting.
func New(opts Options) (*Simulation, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Game == nil {
		opts.Game = config.DefaultGame()
	}
	if opts.Configs == nil {
		opts.Configs = data.Builtin(opts.Log)
	}
	g := opts.Game
	log := opts.Log.Named("sim")

	s := &Simulation{
		game:    g,
		configs: opts.Configs,
		tuning:  opts.Tuning,
		log:     log,
		debug:   opts.Debug,
		clock:   clock.New(g.Sim.UpdateFrequencySecs),
		rng:     rng.New(g.Sim.RandomSeed),
		events:  event.NewBus(),
		history: NewHistory(g.Sim.UndoDepth),
		settings: world.Settings{
			WorkersSearchRadius:        g.Sim.WorkersSearchRadius,
			WorkersUpdateFrequencySecs: g.Sim.WorkersUpdateFrequencySecs,
			SettlersSpawnFrequencySecs: g.Sim.SettlersSpawnFrequencySecs,
			PopulationPerSettlerUnit:   g.Sim.PopulationPerSettlerUnit,
		},
		cheats: world.Cheats{
			IgnoreWorkerRequirements: g.Cheats.IgnoreWorkerRequirements,
			FreeConstruction:         g.Cheats.FreeConstruction,
			InstantUpgrades:          g.Cheats.InstantUpgrades,
		},
	}
	var err error
	if s.world, s.systems, err = s.newWorld(); err != nil {
		return nil, err
	}
	if opts.PathCacheSize >= 0 {
		size := opts.PathCacheSize
		if size == 0 {
			size = defaultPathCacheSize
		}
		if s.cache, err = nav.NewPathCache(size); err != nil {
			return nil, fmt.Errorf("path cache: %w", err)
		}
	}
	if err := s.loadInitialMap(g.Save.LoadMapSetting); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// newWorld creates an empty world with the default game systems wired to
// its callback registry.
func (s *Simulation) newWorld() (*world.World, *system.Registry, error) {
	w := world.New(s.game.Sim.StartingGoldUnits)
	systems, err := system.NewDefault(s.log)
	if err != nil {
		return nil, nil, err
	}
	if err := systems.RegisterCallbacks(w.Callbacks()); err != nil {
		return nil, nil, fmt.Errorf("register callbacks: %w", err)
	}
	return w, systems, nil
}

// Close releases the path cache.
func (s *Simulation) Close() {
	if s.cache != nil {
		s.cache.Close()
		s.cache = nil
	}
}

// setMap swaps in a tile map and a finder over it. Cached paths belong to
// the previous map's revisions and are dropped.
func (s *Simulation) setMap(m *tile.Map) {
	s.tiles = m
	s.finder = nav.NewFinder(m, nav.Options{
		Diagonal: s.game.Sim.DiagonalPaths,
		BaseCost: 1,
		RoadCost: s.game.Sim.RoadStepCost,
	})
	if s.cache != nil {
		s.cache.Invalidate()
		s.finder.WithCache(s.cache)
	}
}

// reset empties the world and systems and installs m. The RNG and clock
// restart from the configured seed.
func (s *Simulation) reset(m *tile.Map) {
	s.world.Reset(s.game.Sim.StartingGoldUnits)
	s.systems.Reset()
	s.history.Clear()
	s.rng.Reseed(s.game.Sim.RandomSeed)
	s.clock.Reset()
	s.paused = false
	s.setMap(m)
}

func (s *Simulation) query(step clock.Step) *world.Query {
	return &world.Query{
		Step:     step,
		Rng:      s.rng,
		Map:      s.tiles,
		Sets:     s.configs.Tiles,
		World:    s.world,
		Finder:   s.finder,
		Configs:  s.configs,
		Settings: s.settings,
		Cheats:   s.cheats,
		Tuning:   s.tuning,
		Events:   s.events,
		Log:      s.log,
	}
}

// commandQuery is the Query commands run with between steps.
func (s *Simulation) commandQuery() *world.Query {
	return s.query(clock.Step{Number: s.clock.StepsRun(), Seconds: s.clock.Frequency()})
}

// Tick feeds host frame time to the clock and runs the resulting steps.
// Events raised since the previous call become pending on the bus and are
// dispatched to subscribers. It returns the number of steps run.
func (s *Simulation) Tick(deltaSecs float32) int {
	n := 0
	if !s.paused {
		for _, step := range s.clock.Tick(deltaSecs) {
			s.step(step)
			n++
		}
	}
	s.events.SwapBuffers()
	s.events.DispatchAll()
	return n
}

func (s *Simulation) step(step clock.Step) {
	defer s.recoverStep(step)
	q := s.query(step)
	s.world.Update(q)
	s.systems.Update(q)
	if s.debug {
		s.mustHold(s.CheckInvariants())
	}
}

func (s *Simulation) recoverStep(step clock.Step) {
	r := recover()
	if r == nil {
		return
	}
	if s.debug {
		panic(r)
	}
	s.log.Error("step aborted", zap.Uint64("step", step.Number), zap.Any("panic", r))
}

// mustHold panics on err in debug builds and logs it otherwise.
func (s *Simulation) mustHold(err error) {
	if err == nil {
		return
	}
	if s.debug {
		panic(err)
	}
	s.log.Error("invariant violated", zap.Error(err))
}

func (s *Simulation) Pause()  { s.paused = true }
func (s *Simulation) Resume() { s.paused = false }

func (s *Simulation) Paused() bool           { return s.paused }
func (s *Simulation) StepsRun() uint64       { return s.clock.StepsRun() }
func (s *Simulation) World() *world.World    { return s.world }
func (s *Simulation) Map() *tile.Map         { return s.tiles }
func (s *Simulation) Configs() *data.Configs { return s.configs }
func (s *Simulation) Events() *event.Bus     { return s.events }
func (s *Simulation) History() *History      { return s.history }
func (s *Simulation) Game() *config.Game     { return s.game }

// Systems is the game-system registry of the current world.
func (s *Simulation) Systems() *system.Registry { return s.systems }

// Cheats is the live cheat set; edits apply from the next step.
func (s *Simulation) Cheats() *world.Cheats { return &s.cheats }
