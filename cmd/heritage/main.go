package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/heritagebuilder/heritage/internal/config"
	"github.com/heritagebuilder/heritage/internal/core/event"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/persist"
	"github.com/heritagebuilder/heritage/internal/scripting"
	"github.com/heritagebuilder/heritage/internal/sim"
	"github.com/heritagebuilder/heritage/internal/world"
)

const (
	autosaveSlot  = "autosave"
	quicksaveSlot = "quicksave"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Environment and engine config
	_ = godotenv.Load()
	cfgPath := "configs/engine.toml"
	if p := os.Getenv("HERITAGE_ENGINE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadEngine(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if p := os.Getenv("HERITAGE_GAME_CONFIG"); p != "" {
		cfg.Host.GameConfig = p
	}
	if cfg.Host.FrameRate <= 0 {
		cfg.Host.FrameRate = time.Second / 60
	}

	// 2. Logger. The viewer owns the terminal, so console output is off
	// while it runs.
	log, err := newLogger(cfg.Logging, !cfg.Host.View)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Game options, data configs and tuning scripts
	game, err := config.LoadGame(cfg.Host.GameConfig)
	if err != nil {
		return err
	}
	configs, err := data.Load(cfg.Host.ConfigsDir, log)
	if err != nil {
		return fmt.Errorf("load configs: %w", err)
	}
	log.Info("configs loaded",
		zap.Int("tiles", configs.Tiles.Count()),
		zap.Int("buildings", configs.Buildings.Count()))

	tuning, err := scripting.NewEngine(cfg.Host.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}
	defer tuning.Close()

	// 4. Save store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	defer closeStore()

	// 5. Simulation
	s, err := sim.New(sim.Options{
		Game:    game,
		Configs: configs,
		Tuning:  tuning,
		Debug:   os.Getenv("HERITAGE_DEBUG") != "",
		Log:     log,
	})
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	defer s.Close()
	watchEvents(s, log)

	if slot := os.Getenv("HERITAGE_LOAD_SLOT"); slot != "" {
		if err := loadSlot(ctx, store, s, slot); err != nil {
			return fmt.Errorf("load slot %s: %w", slot, err)
		}
	}

	// 6. Optional terminal viewer
	var (
		view   *viewer
		inputs <-chan tcell.Event
	)
	if cfg.Host.View {
		if view, err = newViewer(configs); err != nil {
			return fmt.Errorf("viewer: %w", err)
		}
		defer view.close()
		inputs = view.events()
	}

	// 7. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Host.FrameRate)
	defer ticker.Stop()

	log.Info("simulation running",
		zap.Duration("frame_rate", cfg.Host.FrameRate),
		zap.Float32("update_frequency_secs", game.Sim.UpdateFrequencySecs),
		zap.String("save_backend", cfg.Save.Backend))

	var sinceAutosave float32
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			steps := s.Tick(float32(now.Sub(last).Seconds()))
			last = now
			if game.Save.EnableAutosave {
				sinceAutosave += float32(steps) * game.Sim.UpdateFrequencySecs
				if sinceAutosave >= game.Save.AutosaveFrequencySecs {
					sinceAutosave = 0
					saveSlot(context.Background(), store, s, autosaveSlot, log)
				}
			}
			if view != nil {
				view.draw(s.Snapshot())
			}
		case raw, ok := <-inputs:
			if !ok {
				inputs = nil
				continue
			}
			ev := view.handle(raw)
			switch {
			case ev.quit:
				log.Info("viewer closed")
				saveSlot(context.Background(), store, s, autosaveSlot, log)
				return nil
			case ev.save:
				view.status(saveSlot(context.Background(), store, s, quicksaveSlot, log))
			case ev.load:
				if err := loadSlot(context.Background(), store, s, quicksaveSlot); err != nil {
					log.Warn("quickload failed", zap.Error(err))
					view.status(err.Error())
				} else {
					view.status("loaded " + quicksaveSlot)
				}
			case ev.cmd != nil:
				if err := s.HandleCommand(*ev.cmd); err != nil {
					view.status(err.Error())
				} else {
					view.status(ev.cmd.String())
				}
			}
			view.draw(s.Snapshot())
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			saveSlot(context.Background(), store, s, autosaveSlot, log)
			log.Info("simulation stopped", zap.Uint64("steps", s.StepsRun()))
			return nil
		}
	}
}

// openStore picks the save backend named in engine.toml.
func openStore(ctx context.Context, cfg *config.Engine, log *zap.Logger) (persist.Store, func(), error) {
	switch cfg.Save.Backend {
	case "postgres":
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		return persist.NewSlotRepo(db), db.Close, nil
	case "file", "":
		fs, err := persist.NewFileStore(cfg.Save.Dir, log)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown save backend %q", cfg.Save.Backend)
}

// saveSlot stores the current state under slot and returns a status line.
// Failures are logged; the simulation keeps running.
func saveSlot(ctx context.Context, store persist.Store, s *sim.Simulation, slot string, log *zap.Logger) string {
	doc, err := s.Document()
	if err != nil {
		log.Error("save failed", zap.String("slot", slot), zap.Error(err))
		return "save failed: " + err.Error()
	}
	info, err := store.Save(ctx, slot, doc)
	if err != nil {
		log.Error("save failed", zap.String("slot", slot), zap.Error(err))
		return "save failed: " + err.Error()
	}
	log.Debug("saved",
		zap.String("slot", info.Name),
		zap.Uint64("tick", info.Tick),
		zap.Int("bytes", info.Size),
		zap.String("digest", info.Digest))
	return "saved " + info.Name
}

func loadSlot(ctx context.Context, store persist.Store, s *sim.Simulation, slot string) error {
	doc, err := store.Load(ctx, slot)
	if err != nil {
		return err
	}
	return s.Restore(doc)
}

// watchEvents logs host notifications.
func watchEvents(s *sim.Simulation, log *zap.Logger) {
	log = log.Named("events")
	bus := s.Events()
	event.Subscribe(bus, func(e world.BuildingPlaced) {
		log.Debug("building placed", zap.String("name", e.Name), zap.Stringer("cell", e.Cell))
	})
	event.Subscribe(bus, func(e world.BuildingRemoved) {
		log.Debug("building removed", zap.String("name", e.Name), zap.Stringer("cell", e.Cell))
	})
	event.Subscribe(bus, func(e world.HouseholdUpgraded) {
		msg := "household upgraded"
		if e.Level < e.Previous {
			msg = "household downgraded"
		}
		log.Info(msg, zap.Stringer("cell", e.Cell), zap.Uint32("from", e.Previous), zap.Uint32("to", e.Level))
	})
	event.Subscribe(bus, func(e world.TaskFinished) {
		if e.Failed {
			log.Debug("task failed", zap.Stringer("task", e.Task), zap.Stringer("kind", e.Kind))
		}
	})
}

// newLogger builds the console logger and, when a file is configured, tees
// JSON output into a rotating log file.
func newLogger(cfg config.LoggingConfig, console bool) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var cores []zapcore.Core
	if console {
		var zapCfg zap.Config
		if cfg.Format == "json" {
			zapCfg = zap.NewProductionConfig()
		} else {
			zapCfg = zap.NewDevelopmentConfig()
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
			zapCfg.EncoderConfig.ConsoleSeparator = "  "
			zapCfg.DisableCaller = true
			zapCfg.DisableStacktrace = true
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		log, err := zapCfg.Build()
		if err != nil {
			return nil, err
		}
		cores = append(cores, log.Core())
	}
	if cfg.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotate), level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
