package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/heritagebuilder/heritage/internal/config"
	"github.com/heritagebuilder/heritage/internal/persist"
	"github.com/heritagebuilder/heritage/internal/sim"
)

func savedPreset(t *testing.T) string {
	t.Helper()
	game := config.DefaultGame()
	game.Save.LoadMapSetting = config.LoadMapSetting{Kind: config.MapPreset, PresetNumber: 1}
	s, err := sim.New(sim.Options{Game: game})
	require.NoError(t, err)
	defer s.Close()
	s.Tick(5)

	path := filepath.Join(t.TempDir(), "village.json")
	_, err = s.SaveFile(path)
	require.NoError(t, err)
	return path
}

func TestDumpSummarisesSave(t *testing.T) {
	path := savedPreset(t)

	var buf bytes.Buffer
	require.NoError(t, dump(&buf, []string{path}))

	var got summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, persist.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, "32x32", got.MapSize)
	assert.Len(t, got.Buildings, 5)
	assert.Positive(t, got.Tiles["road"])
	assert.Positive(t, got.Tiles["tree"])
	assert.NotEmpty(t, got.GameSystems)

	names := map[string]int{}
	for _, b := range got.Buildings {
		names[b.Name]++
	}
	assert.Equal(t, 2, names["house"])
	assert.Equal(t, 1, names["lumberyard"])
}

func TestImportExportRoundTrip(t *testing.T) {
	path := savedPreset(t)
	store, err := persist.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, importFile(ctx, store, []string{path, "village"}))
	slots, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "village", slots[0].Name)

	out := filepath.Join(t.TempDir(), "copy.json")
	require.NoError(t, export(ctx, store, []string{"village", out}))
	require.NoError(t, verify([]string{out}))

	assert.Error(t, export(ctx, store, []string{"village"}))
	assert.Error(t, importFile(ctx, store, []string{path, "bad name!"}))
	assert.Error(t, verify([]string{filepath.Join(t.TempDir(), "missing.json")}))
}
