package persist

import (
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// SavedTile is one owner tile. Blockers are rebuilt by placement.
type SavedTile struct {
	Cell      coord.Cell     `json:"cell"`
	Def       string         `json:"def"`
	Variation uint32         `json:"variation,omitempty"`
	AnimSet   uint32         `json:"anim_set,omitempty"`
	GameState tile.GameState `json:"game_state"`
}

// MapState lists the owner tiles of every layer in row-major order.
type MapState struct {
	Size   coord.Size                    `json:"size"`
	Layers [tile.LayerCount][]SavedTile `json:"layers"`
}

func CaptureMap(m *tile.Map) MapState {
	st := MapState{Size: m.Size()}
	for l := range tile.LayerCount {
		tiles := m.OwnerTiles(l)
		out := make([]SavedTile, 0, len(tiles))
		for _, t := range tiles {
			out = append(out, SavedTile{
				Cell:      t.Cell,
				Def:       t.Def.Name,
				Variation: t.Variation,
				AnimSet:   t.AnimSet,
				GameState: t.GameState,
			})
		}
		st.Layers[l] = out
	}
	return st
}

// RestoreMap rebuilds a tile map, resolving defs by name.
func RestoreMap(st MapState, sets *tile.Sets) (*tile.Map, error) {
	if !st.Size.IsValid() {
		return nil, fmt.Errorf("restore map: invalid size %s", st.Size)
	}
	m := tile.NewMap(st.Size)
	for l := range tile.LayerCount {
		for _, s := range st.Layers[l] {
			def, err := sets.ByName(s.Def)
			if err != nil {
				return nil, fmt.Errorf("restore %s tile at %s: %w", l, s.Cell, err)
			}
			t, err := m.Place(l, s.Cell, def, s.Variation)
			if err != nil {
				return nil, fmt.Errorf("restore %s tile at %s: %w", l, s.Cell, err)
			}
			t.AnimSet = s.AnimSet
			t.GameState = s.GameState
		}
	}
	return m, nil
}
