package main

import (
	"fmt"
	"math"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/sim"
)

// viewEvent is what a key press asks the frame loop to do.
type viewEvent struct {
	cmd  *sim.Command
	save bool
	load bool
	quit bool
}

// viewer draws snapshots on the terminal and turns keys into commands.
// Only the frame loop goroutine touches it; events() polls on its own.
type viewer struct {
	screen  tcell.Screen
	palette []string
	tool    int
	cursor  coord.Cell
	off     coord.Cell
	size    coord.Size
	paused  bool
	msg     string
}

func newViewer(configs *data.Configs) (*viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return newViewerOn(screen, configs), nil
}

func newViewerOn(screen tcell.Screen, configs *data.Configs) *viewer {
	palette := configs.Buildings.Names()
	palette = append(palette, "road", "dirt", "water", "tree", "rock")
	return &viewer{screen: screen, palette: palette, msg: "arrows move  [ ] tool  enter place  x clear  u upgrade  z/y undo/redo  space pause  s/l save/load  q quit"}
}

func (v *viewer) close() { v.screen.Fini() }

// events forwards terminal events until the screen is finalised.
func (v *viewer) events() <-chan tcell.Event {
	ch := make(chan tcell.Event, 64)
	go func() {
		defer close(ch)
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			ch <- ev
		}
	}()
	return ch
}

func (v *viewer) status(msg string) { v.msg = msg }

func (v *viewer) handle(ev tcell.Event) viewEvent {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return viewEvent{quit: true}
		case tcell.KeyUp:
			v.move(0, -1)
		case tcell.KeyDown:
			v.move(0, 1)
		case tcell.KeyLeft:
			v.move(-1, 0)
		case tcell.KeyRight:
			v.move(1, 0)
		case tcell.KeyEnter:
			return v.command(sim.CommandPlace)
		case tcell.KeyDelete, tcell.KeyBackspace, tcell.KeyBackspace2:
			return v.command(sim.CommandClear)
		case tcell.KeyRune:
			return v.handleRune(ev.Rune())
		}
	}
	return viewEvent{}
}

func (v *viewer) handleRune(r rune) viewEvent {
	switch r {
	case 'q':
		return viewEvent{quit: true}
	case ' ':
		if v.paused {
			return v.command(sim.CommandResume)
		}
		return v.command(sim.CommandPause)
	case 'x':
		return v.command(sim.CommandClear)
	case 'd':
		return v.command(sim.CommandDemolish)
	case 'u':
		return v.command(sim.CommandUpgrade)
	case 'z':
		return v.command(sim.CommandUndo)
	case 'y':
		return v.command(sim.CommandRedo)
	case 's':
		return viewEvent{save: true}
	case 'l':
		return viewEvent{load: true}
	case ']':
		v.tool = (v.tool + 1) % len(v.palette)
	case '[':
		v.tool = (v.tool + len(v.palette) - 1) % len(v.palette)
	}
	return viewEvent{}
}

func (v *viewer) command(kind sim.CommandKind) viewEvent {
	cmd := sim.Command{Kind: kind, Cell: v.cursor}
	if kind == sim.CommandPlace {
		cmd.Name = v.palette[v.tool]
	}
	return viewEvent{cmd: &cmd}
}

func (v *viewer) move(dx, dy int32) {
	c := v.cursor.Add(dx, dy)
	if v.size.IsValid() && !v.size.Contains(c) {
		return
	}
	if c.IsValid() {
		v.cursor = c
	}
}

// follow scrolls so the cursor stays inside a w x h map area.
func (v *viewer) follow(w, h int32) {
	if v.cursor.X < v.off.X {
		v.off.X = v.cursor.X
	} else if v.cursor.X >= v.off.X+w {
		v.off.X = v.cursor.X - w + 1
	}
	if v.cursor.Y < v.off.Y {
		v.off.Y = v.cursor.Y
	} else if v.cursor.Y >= v.off.Y+h {
		v.off.Y = v.cursor.Y - h + 1
	}
}

// draw renders snap with two status lines under the map.
func (v *viewer) draw(snap sim.Snapshot) {
	v.paused = snap.Paused
	v.size = snap.Size

	v.screen.Clear()
	sw, sh := v.screen.Size()
	w, h := int32(sw), int32(sh-2)
	if h <= 0 {
		v.screen.Show()
		return
	}
	v.follow(w, h)

	put := func(c coord.Cell, r rune, style tcell.Style) {
		x, y := c.X-v.off.X, c.Y-v.off.Y
		if x < 0 || y < 0 || x >= w || y >= h {
			return
		}
		v.screen.SetContent(int(x), int(y), r, nil, style)
	}
	for _, it := range snap.Items {
		r, style := glyph(it)
		if it.Kind == sim.ItemUnit {
			put(coord.Cell{X: int32(math.Round(float64(it.Pos.X))), Y: int32(math.Round(float64(it.Pos.Y)))}, r, style)
			continue
		}
		coord.NewRange(it.Cell, it.Size).Each(func(c coord.Cell) { put(c, r, style) })
	}

	cx, cy := int(v.cursor.X-v.off.X), int(v.cursor.Y-v.off.Y)
	r, _, style, _ := v.screen.GetContent(cx, cy)
	if r == 0 {
		r = ' '
	}
	v.screen.SetContent(cx, cy, r, nil, style.Reverse(true))

	state := "running"
	if snap.Paused {
		state = "paused"
	}
	v.text(0, sh-2, fmt.Sprintf("tick %d  %s  pop %d  gold %d  cursor %s  tool %s",
		snap.Tick, state, snap.Population, snap.Gold, v.cursor, v.palette[v.tool]), tcell.StyleDefault.Bold(true))
	v.text(0, sh-1, v.msg, tcell.StyleDefault)
	v.screen.Show()
}

func (v *viewer) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func glyph(it sim.Item) (rune, tcell.Style) {
	st := tcell.StyleDefault
	switch it.Kind {
	case sim.ItemTerrain:
		switch it.Name {
		case "grass":
			return '.', st.Foreground(tcell.ColorGreen)
		case "dirt":
			return ',', st.Foreground(tcell.ColorOlive)
		case "road":
			return '=', st.Foreground(tcell.ColorGray)
		case "water":
			return '~', st.Foreground(tcell.ColorBlue)
		}
		return ' ', st
	case sim.ItemObject:
		return '^', st.Foreground(tcell.ColorGray)
	case sim.ItemProp:
		if it.State == "harvested" {
			return 't', st.Foreground(tcell.ColorOlive)
		}
		return 'T', st.Foreground(tcell.ColorGreen)
	case sim.ItemBuilding:
		r := '#'
		if it.Name != "" {
			r = unicode.ToUpper(rune(it.Name[0]))
		}
		return r, st.Foreground(tcell.ColorYellow).Bold(true)
	case sim.ItemUnit:
		return '@', st.Foreground(tcell.ColorWhite).Bold(true)
	case sim.ItemEffect:
		return '*', st.Foreground(tcell.ColorAqua)
	}
	return '?', st
}
