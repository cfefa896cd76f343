package data

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/heritagebuilder/heritage/internal/tile"
)

// Load reads configs/{tiles,buildings,units,props}. Entries from files
// override built-in entries of the same name; a missing directory keeps the
// built-ins. Invalid entries are logged and skipped.
func Load(dir string, log *zap.Logger) (*Configs, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config")

	tiles, err := readEntries[TileConfig](filepath.Join(dir, "tiles"), log)
	if err != nil {
		return nil, err
	}
	buildings, err := readEntries[BuildingConfig](filepath.Join(dir, "buildings"), log)
	if err != nil {
		return nil, err
	}
	units, err := readEntries[UnitConfig](filepath.Join(dir, "units"), log)
	if err != nil {
		return nil, err
	}
	props, err := readEntries[PropConfig](filepath.Join(dir, "props"), log)
	if err != nil {
		return nil, err
	}
	return build(mergeByName(builtinTiles(), tiles, func(t *TileConfig) string { return t.Name }),
		mergeByName(builtinBuildings(), buildings, func(b *BuildingConfig) string { return b.Name }),
		mergeByName(builtinUnits(), units, func(u *UnitConfig) string { return u.Name }),
		mergeByName(builtinProps(), props, func(p *PropConfig) string { return p.Name }),
		log)
}

// Builtin returns the configs compiled into the binary.
func Builtin(log *zap.Logger) *Configs {
	if log == nil {
		log = zap.NewNop()
	}
	c, err := build(builtinTiles(), builtinBuildings(), builtinUnits(), builtinProps(), log.Named("config"))
	if err != nil {
		panic(fmt.Sprintf("data: built-in configs are invalid: %v", err))
	}
	return c
}

func build(tiles []TileConfig, buildings []BuildingConfig, units []UnitConfig, props []PropConfig, log *zap.Logger) (*Configs, error) {
	c := &Configs{
		Tiles:     tile.NewSets(),
		Buildings: newTable(func(b *BuildingConfig) string { return b.Name }),
		Units:     newTable(func(u *UnitConfig) string { return u.Name }),
		Props:     newTable(func(p *PropConfig) string { return p.Name }),
		log:       log,
	}
	for i := range tiles {
		def, err := tiles[i].toDef()
		if err != nil {
			log.Warn("tile def skipped", zap.Error(err))
			continue
		}
		if err := c.Tiles.Add(def); err != nil {
			log.Warn("tile def skipped", zap.Error(err))
		}
	}
	for i := range buildings {
		b := buildings[i]
		if err := b.validate(c.Tiles, log); err != nil {
			log.Warn("building config skipped", zap.Error(err))
			continue
		}
		c.Buildings.put(&b)
	}
	for i := range units {
		u := units[i]
		if err := u.validate(c.Tiles); err != nil {
			log.Warn("unit config skipped", zap.Error(err))
			continue
		}
		c.Units.put(&u)
	}
	for i := range props {
		p := props[i]
		if err := p.validate(c.Tiles); err != nil {
			log.Warn("prop config skipped", zap.Error(err))
			continue
		}
		c.Props.put(&p)
	}

	c.fallbackUnit = &UnitConfig{Name: "settler"}
	if err := c.fallbackUnit.validate(c.Tiles); err != nil {
		return nil, fmt.Errorf("default unit: %w", err)
	}
	c.fallbackProp = &PropConfig{Name: "tree"}
	if err := c.fallbackProp.validate(c.Tiles); err != nil {
		return nil, fmt.Errorf("default prop: %w", err)
	}
	return c, nil
}

// readEntries decodes every *.json, *.yaml and *.yml file of dir in name
// order. Each file holds a list; entries that fail to decode are logged
// and skipped without rejecting the rest of the file.
func readEntries[T any](dir string, log *zap.Logger) ([]T, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config dir %s: %w", dir, err)
	}
	var names []string
	for _, f := range files {
		switch strings.ToLower(filepath.Ext(f.Name())) {
		case ".json", ".yaml", ".yml":
			if !f.IsDir() {
				names = append(names, f.Name())
			}
		}
	}
	slices.Sort(names)

	var out []T
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var nodes []yaml.Node
		if err := yaml.Unmarshal(raw, &nodes); err != nil {
			log.Warn("config file skipped", zap.String("file", path), zap.Error(err))
			continue
		}
		for i := range nodes {
			var v T
			if err := nodes[i].Decode(&v); err != nil {
				log.Warn("config entry skipped", zap.String("file", path), zap.Int("entry", i), zap.Error(err))
				continue
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// mergeByName returns base with entries of extra replacing same-named ones
// and new names appended.
func mergeByName[T any](base, extra []T, name func(*T) string) []T {
	out := slices.Clone(base)
	for i := range extra {
		key := tile.NormalizeName(name(&extra[i]))
		idx := slices.IndexFunc(out, func(v T) bool { return tile.NormalizeName(name(&v)) == key })
		if idx >= 0 {
			out[idx] = extra[i]
		} else {
			out = append(out, extra[i])
		}
	}
	return out
}
