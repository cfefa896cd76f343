package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/config"
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/sim"
)

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heritage.log")
	log, err := newLogger(config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1}, false)
	require.NoError(t, err)

	log.Info("hello", zap.String("who", "file"))
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
	assert.Contains(t, string(raw), `"who":"file"`)
}

func TestNewLoggerWithoutSinksIsNop(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "info"}, false)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.ErrorLevel))
}

func TestOpenStoreAndSlots(t *testing.T) {
	cfg := &config.Engine{Save: config.SaveConfig{Backend: "file", Dir: t.TempDir()}}
	store, closeStore, err := openStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()

	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.HandleCommand(sim.Command{Kind: sim.CommandPlace, Name: "well", Cell: coord.Cell{X: 3, Y: 3}}))

	assert.Equal(t, "saved quicksave", saveSlot(context.Background(), store, s, quicksaveSlot, zap.NewNop()))
	require.NoError(t, s.HandleCommand(sim.Command{Kind: sim.CommandDemolish, Cell: coord.Cell{X: 3, Y: 3}}))
	assert.Zero(t, s.World().BuildingCount())

	require.NoError(t, loadSlot(context.Background(), store, s, quicksaveSlot))
	assert.Equal(t, 1, s.World().BuildingCount())

	cfg.Save.Backend = "tape"
	_, _, err = openStore(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func newTestViewer(t *testing.T) *viewer {
	t.Helper()
	screen := tcell.NewSimulationScreen("")
	require.NoError(t, screen.Init())
	screen.SetSize(40, 20)
	v := newViewerOn(screen, data.Builtin(nil))
	t.Cleanup(v.close)
	return v
}

func key(r rune) *tcell.EventKey { return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone) }

func TestViewerKeysBecomeCommands(t *testing.T) {
	v := newTestViewer(t)

	v.handle(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	v.handle(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone))
	assert.Equal(t, coord.Cell{X: 1, Y: 1}, v.cursor)

	v.handle(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	v.handle(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	assert.Equal(t, coord.Cell{X: 0, Y: 1}, v.cursor, "cursor stays on the map")

	ev := v.handle(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	require.NotNil(t, ev.cmd)
	assert.Equal(t, sim.CommandPlace, ev.cmd.Kind)
	assert.Equal(t, v.palette[0], ev.cmd.Name)
	assert.Equal(t, coord.Cell{X: 0, Y: 1}, ev.cmd.Cell)

	v.handle(key(']'))
	assert.Equal(t, v.palette[1], v.command(sim.CommandPlace).cmd.Name)
	v.handle(key('['))
	v.handle(key('['))
	assert.Equal(t, len(v.palette)-1, v.tool)

	assert.Equal(t, sim.CommandUndo, v.handle(key('z')).cmd.Kind)
	assert.Equal(t, sim.CommandRedo, v.handle(key('y')).cmd.Kind)
	assert.Equal(t, sim.CommandPause, v.handle(key(' ')).cmd.Kind)
	v.paused = true
	assert.Equal(t, sim.CommandResume, v.handle(key(' ')).cmd.Kind)

	assert.True(t, v.handle(key('s')).save)
	assert.True(t, v.handle(key('l')).load)
	assert.True(t, v.handle(key('q')).quit)
	assert.True(t, v.handle(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)).quit)
}

func TestViewerDrawsSnapshot(t *testing.T) {
	v := newTestViewer(t)
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.HandleCommand(sim.Command{Kind: sim.CommandPlace, Name: "well", Cell: coord.Cell{X: 2, Y: 2}}))
	require.NoError(t, s.HandleCommand(sim.Command{Kind: sim.CommandPlace, Name: "tree", Cell: coord.Cell{X: 4, Y: 2}}))

	v.draw(s.Snapshot())

	r, _, _, _ := v.screen.GetContent(2, 2)
	assert.Equal(t, 'W', r)
	r, _, _, _ = v.screen.GetContent(4, 2)
	assert.Equal(t, 'T', r)
	r, _, _, _ = v.screen.GetContent(5, 5)
	assert.Equal(t, '.', r)
	assert.Equal(t, coord.Size{W: 64, H: 64}, v.size)
}

func TestViewerScrollsWithCursor(t *testing.T) {
	v := newTestViewer(t)
	v.size = coord.Size{W: 64, H: 64}
	for range 45 {
		v.move(1, 0)
	}
	v.follow(40, 18)
	assert.Equal(t, int32(45), v.cursor.X)
	assert.Equal(t, int32(6), v.off.X)
}

func TestGlyph(t *testing.T) {
	r, _ := glyph(sim.Item{Kind: sim.ItemBuilding, Name: "market"})
	assert.Equal(t, 'M', r)
	r, _ = glyph(sim.Item{Kind: sim.ItemProp, State: "harvested"})
	assert.Equal(t, 't', r)
	r, _ = glyph(sim.Item{Kind: sim.ItemTerrain, Name: "road"})
	assert.Equal(t, '=', r)
	r, _ = glyph(sim.Item{Kind: sim.ItemUnit})
	assert.Equal(t, '@', r)
}
