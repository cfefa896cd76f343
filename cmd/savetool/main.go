// savetool inspects and moves Heritage save documents.
//
// Usage:
//
//	go run ./cmd/savetool <command> [-config path] [-backend file|postgres] [args]
//
// Commands: list, export <slot> <file>, import <file> <slot>, verify <file>, dump <file>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/heritagebuilder/heritage/internal/config"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/persist"
	"github.com/heritagebuilder/heritage/internal/world"
)

// summary is the YAML form printed by dump.
type summary struct {
	SchemaVersion uint32            `yaml:"schema_version"`
	Tick          uint64            `yaml:"tick"`
	MapSize       string            `yaml:"map_size"`
	Tiles         map[string]int    `yaml:"tiles"`
	Buildings     []buildingSummary `yaml:"buildings"`
	Units         int               `yaml:"units"`
	Tasks         int               `yaml:"tasks"`
	Props         int               `yaml:"props"`
	Treasury      map[string]uint32 `yaml:"treasury"`
	GameSystems   []string          `yaml:"game_systems"`
}

type buildingSummary struct {
	Name  string `yaml:"name"`
	Cell  string `yaml:"cell"`
	Level uint32 `yaml:"level,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "configs/engine.toml", "engine config")
	backend := fs.String("backend", "", "save backend override (file or postgres)")
	_ = fs.Parse(os.Args[2:])

	commands := map[string]func(context.Context, persist.Store, []string) error{
		"list":   list,
		"export": export,
		"import": importFile,
		"verify": func(_ context.Context, _ persist.Store, args []string) error { return verify(args) },
		"dump":   func(_ context.Context, _ persist.Store, args []string) error { return dump(os.Stdout, args) },
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var store persist.Store
	if cmd != "verify" && cmd != "dump" {
		s, closeStore, err := openStore(ctx, *cfgPath, *backend)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()
		store = s
	}
	if err := fn(ctx, store, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: savetool <command> [-config path] [-backend file|postgres] [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  list                    list save slots")
	fmt.Fprintln(os.Stderr, "  export <slot> <file>    copy a slot to a save file")
	fmt.Fprintln(os.Stderr, "  import <file> <slot>    copy a save file into a slot")
	fmt.Fprintln(os.Stderr, "  verify <file>           check a save file's digest and schema")
	fmt.Fprintln(os.Stderr, "  dump <file>             print a YAML summary of a save file")
}

func openStore(ctx context.Context, cfgPath, backend string) (persist.Store, func(), error) {
	cfg, err := config.LoadEngine(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if backend != "" {
		cfg.Save.Backend = backend
	}
	log := zap.NewNop()
	if cfg.Save.Backend == "postgres" {
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		return persist.NewSlotRepo(db), db.Close, nil
	}
	fs, err := persist.NewFileStore(cfg.Save.Dir, log)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

func list(ctx context.Context, store persist.Store, _ []string) error {
	slots, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range slots {
		fmt.Printf("%-24s tick %-8d %7d bytes  %s  %s\n",
			s.Name, s.Tick, s.Size, s.SavedAt.Format(time.DateTime), s.Digest)
	}
	fmt.Printf("%d slot(s)\n", len(slots))
	return nil
}

func export(ctx context.Context, store persist.Store, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("export needs <slot> <file>")
	}
	doc, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	digest, err := persist.SaveFile(args[1], doc)
	if err != nil {
		return err
	}
	fmt.Printf("exported %s -> %s (%s)\n", args[0], args[1], digest)
	return nil
}

func importFile(ctx context.Context, store persist.Store, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("import needs <file> <slot>")
	}
	doc, err := persist.LoadFile(args[0])
	if err != nil {
		return err
	}
	info, err := store.Save(ctx, args[1], doc)
	if err != nil {
		return err
	}
	fmt.Printf("imported %s -> %s (tick %d, %s)\n", args[0], info.Name, info.Tick, info.Digest)
	return nil
}

func verify(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("verify needs <file>")
	}
	doc, err := persist.LoadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: schema %d, tick %d, ok\n", args[0], doc.SchemaVersion, doc.Tick)
	return nil
}

func dump(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("dump needs <file>")
	}
	doc, err := persist.LoadFile(args[0])
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(summarize(doc))
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func summarize(doc *persist.Document) summary {
	s := summary{
		SchemaVersion: doc.SchemaVersion,
		Tick:          doc.Tick,
		MapSize:       doc.TileMap.Size.String(),
		Tiles:         map[string]int{},
		Units:         len(doc.World.Units.Entries),
		Tasks:         len(doc.World.Tasks.Entries),
		Props:         len(doc.World.Props.Entries),
		Treasury:      map[string]uint32{},
	}
	for _, layer := range doc.TileMap.Layers {
		for _, t := range layer {
			s.Tiles[t.Def]++
		}
	}
	for _, st := range [][]world.Building{
		buildingsOf(doc.World.Producers.Entries),
		buildingsOf(doc.World.Storage.Entries),
		buildingsOf(doc.World.Services.Entries),
		buildingsOf(doc.World.Households.Entries),
	} {
		for _, b := range st {
			bs := buildingSummary{Name: b.Name, Cell: b.Cell.String()}
			if b.Household != nil {
				bs.Level = b.Household.Level
			}
			s.Buildings = append(s.Buildings, bs)
		}
	}
	for _, it := range doc.World.Treasury.Items() {
		s.Treasury[it.Kind.String()] = it.Count
	}
	for _, g := range doc.GameSystems {
		s.GameSystems = append(s.GameSystems, g.Name)
	}
	return s
}

func buildingsOf(entries []pool.Entry[world.Building]) []world.Building {
	out := make([]world.Building, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}
