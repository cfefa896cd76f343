package tile

import (
	"errors"
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/nav"
)

var (
	ErrOutOfBounds  = errors.New("tile: out of bounds")
	ErrOccupied     = errors.New("tile: occupied")
	ErrNotPlaceable = errors.New("tile: terrain not placeable")
	ErrEmpty        = errors.New("tile: empty cell")
)

// Map is three parallel dense grids of fixed size. Each cell of each layer
// holds at most one tile; a multi-cell tile owns its base cell and reserves
// the rest of its footprint with blocker tiles pointing back at it.
//
// The map emits no events. Mutations that can change node kinds bump
// Revision so the path cache can tell the map changed; unit tiles are
// walkable and never do.
type Map struct {
	size     coord.Size
	layers   [LayerCount][]Tile
	revision uint64
}

func NewMap(size coord.Size) *Map {
	if size.W < 0 {
		size.W = 0
	}
	if size.H < 0 {
		size.H = 0
	}
	m := &Map{size: size}
	for l := range m.layers {
		m.layers[l] = make([]Tile, size.Area())
	}
	return m
}

func (m *Map) Size() coord.Size { return m.size }

func (m *Map) Revision() uint64 { return m.revision }

func (m *Map) InBounds(c coord.Cell) bool { return m.size.Contains(c) }

func (m *Map) index(c coord.Cell) int { return int(c.Y)*int(m.size.W) + int(c.X) }

func (m *Map) at(c coord.Cell, l Layer) *Tile {
	if l >= LayerCount || !m.InBounds(c) {
		return nil
	}
	return &m.layers[l][m.index(c)]
}

// Tile returns the occupant of a cell, or nil when empty or out of bounds.
func (m *Map) Tile(c coord.Cell, l Layer) *Tile {
	t := m.at(c, l)
	if t.IsEmpty() {
		return nil
	}
	return t
}

// TryTile is Tile with an explicit found flag.
func (m *Map) TryTile(c coord.Cell, l Layer) (*Tile, bool) {
	t := m.Tile(c, l)
	return t, t != nil
}

// Owner resolves a blocker to its owner tile. Non-blockers are returned
// unchanged.
func (m *Map) Owner(t *Tile, l Layer) *Tile {
	if !t.IsBlocker() {
		return t
	}
	owner := m.Tile(t.OwnerCell, l)
	if owner == nil || owner.IsBlocker() {
		panic(fmt.Sprintf("tile: blocker at %s on %s has no owner at %s", t.Cell, l, t.OwnerCell))
	}
	return owner
}

// Find returns the tile at c if its kind is in kinds. Blockers are resolved
// to their owner unless kinds asks for blockers explicitly.
func (m *Map) Find(c coord.Cell, l Layer, kinds Kind) *Tile {
	t := m.Tile(c, l)
	if t == nil {
		return nil
	}
	if t.IsBlocker() {
		if kinds.Has(KindBlocker) {
			return t
		}
		t = m.Owner(t, l)
	}
	if !kinds.Has(t.Def.Kind) {
		return nil
	}
	return t
}

// ForEachInRange visits non-empty tiles in range whose kind is in kinds,
// in x-major order. Returning false stops the walk.
func (m *Map) ForEachInRange(r coord.CellRange, l Layer, kinds Kind, fn func(*Tile) bool) {
	r = r.Clamp(m.size)
	for x := r.Start.X; x <= r.End.X; x++ {
		for y := r.Start.Y; y <= r.End.Y; y++ {
			t := m.Tile(coord.Cell{X: x, Y: y}, l)
			if t == nil || !kinds.Has(t.Kind()) {
				continue
			}
			if !fn(t) {
				return
			}
		}
	}
}

// CanPlace reports whether def fits at cell on layer without touching any
// existing tile, also checking the cross-layer placement rules for buildings
// and objects.
func (m *Map) CanPlace(l Layer, c coord.Cell, def *Def) error {
	fp := coord.NewRange(c, def.Size)
	if !m.InBounds(fp.Start) || !m.InBounds(fp.End) {
		return fmt.Errorf("%w: %s at %s", ErrOutOfBounds, def.Name, c)
	}
	var err error
	fp.Each(func(cell coord.Cell) {
		if err == nil {
			err = m.cellFree(l, cell)
		}
	})
	return err
}

// cellFree applies the placement rules to a single cell.
func (m *Map) cellFree(l Layer, cell coord.Cell) error {
	if m.Tile(cell, l) != nil {
		return fmt.Errorf("%w: %s at %s", ErrOccupied, l, cell)
	}
	return m.crossLayer(l, cell)
}

// crossLayer checks the terrain under cell and the layer that shares it
// with l.
func (m *Map) crossLayer(l Layer, cell coord.Cell) error {
	if l == LayerTerrain {
		return nil
	}
	if terrain := m.Tile(cell, LayerTerrain); terrain != nil && !terrain.Flags.Has(FlagPlaceable) {
		return fmt.Errorf("%w: %s at %s", ErrNotPlaceable, terrain.Name(), cell)
	}
	other := LayerObjects
	if l == LayerObjects {
		other = LayerBuildings
	}
	if t := m.Tile(cell, other); t != nil && !(l == LayerBuildings && t.IsWalkable()) {
		return fmt.Errorf("%w: %s at %s", ErrOccupied, other, cell)
	}
	return nil
}

// CheckPlacement reports the first footprint cell of the tile at c that
// breaks the cross-layer placement rules.
func (m *Map) CheckPlacement(l Layer, c coord.Cell) error {
	t := m.Tile(c, l)
	if t == nil {
		return nil
	}
	t = m.Owner(t, l)
	var err error
	t.Range().Each(func(cell coord.Cell) {
		if err == nil {
			if err = m.crossLayer(l, cell); err != nil {
				err = fmt.Errorf("%s at %s: %w", t.Name(), t.Cell, err)
			}
		}
	})
	return err
}

// Place writes an owner tile at cell and blockers over the rest of the
// footprint. It fails with ErrOccupied if any footprint cell on the layer
// is taken; nothing is written in that case.
func (m *Map) Place(l Layer, c coord.Cell, def *Def, variation uint32) (*Tile, error) {
	if l >= LayerCount {
		return nil, fmt.Errorf("%w: layer %d", ErrOutOfBounds, l)
	}
	fp := coord.NewRange(c, def.Size)
	if !m.InBounds(fp.Start) || !m.InBounds(fp.End) {
		return nil, fmt.Errorf("%w: %s at %s", ErrOutOfBounds, def.Name, c)
	}
	var err error
	fp.Each(func(cell coord.Cell) {
		if err == nil && m.Tile(cell, l) != nil {
			err = fmt.Errorf("%w: %s at %s", ErrOccupied, l, cell)
		}
	})
	if err != nil {
		return nil, err
	}
	if int(variation) >= def.VariationCount() {
		variation = 0
	}
	fp.Each(func(cell coord.Cell) {
		t := m.at(cell, l)
		*t = Tile{Def: def, Cell: cell, Variation: variation, Flags: def.Flags, OwnerCell: coord.InvalidCell}
		if cell != c {
			t.Flags |= FlagBlocker
			t.OwnerCell = c
		}
	})
	m.touch(def)
	return m.at(c, l), nil
}

// Clear removes the tile at cell. Clearing a blocker clears its owner, and
// clearing an owner clears all of its blockers.
func (m *Map) Clear(l Layer, c coord.Cell) bool {
	t := m.Tile(c, l)
	if t == nil {
		return false
	}
	owner := m.Owner(t, l)
	def := owner.Def
	owner.Range().Each(func(cell coord.Cell) {
		*m.at(cell, l) = Tile{}
	})
	m.touch(def)
	return true
}

// Replace swaps the owner tile at cell for def, keeping its game state.
// Cells the new footprint adds must pass the same rules as CanPlace; cells
// already owned by the tile are kept as they are.
func (m *Map) Replace(l Layer, c coord.Cell, def *Def, variation uint32) (*Tile, error) {
	old := m.Tile(c, l)
	if old == nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrEmpty, l, c)
	}
	old = m.Owner(old, l)
	base := old.Cell
	oldRange := old.Range()
	newRange := coord.NewRange(base, def.Size)
	if !m.InBounds(newRange.Start) || !m.InBounds(newRange.End) {
		return nil, fmt.Errorf("%w: %s at %s", ErrOutOfBounds, def.Name, base)
	}
	var err error
	newRange.Each(func(cell coord.Cell) {
		if err == nil && !oldRange.Contains(cell) {
			err = m.cellFree(l, cell)
		}
	})
	if err != nil {
		return nil, err
	}
	state := old.GameState
	m.Clear(l, base)
	t, err := m.Place(l, base, def, variation)
	if err != nil {
		return nil, err
	}
	t.GameState = state
	return t, nil
}

// Move relocates a 1x1 tile to an empty cell of the same layer.
func (m *Map) Move(l Layer, from, to coord.Cell) (*Tile, error) {
	t := m.Tile(from, l)
	if t == nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrEmpty, l, from)
	}
	if t.Def.IsMultiCell() || t.IsBlocker() {
		return nil, fmt.Errorf("move %s: multi-cell tiles cannot move", t.Name())
	}
	dst := m.at(to, l)
	if dst == nil {
		return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, to)
	}
	if !dst.IsEmpty() {
		return nil, fmt.Errorf("%w: %s at %s", ErrOccupied, l, to)
	}
	*dst = *t
	dst.Cell = to
	*t = Tile{}
	m.touch(dst.Def)
	return dst, nil
}

func (m *Map) touch(def *Def) {
	if def == nil || def.Kind != KindUnit {
		m.revision++
	}
}

// SetGameState links the owner tile at cell to a world entity.
func (m *Map) SetGameState(l Layer, c coord.Cell, gs GameState) bool {
	t := m.Tile(c, l)
	if t == nil {
		return false
	}
	m.Owner(t, l).GameState = gs
	return true
}

// SetVariation changes the variation of the owner tile at cell.
func (m *Map) SetVariation(l Layer, c coord.Cell, variation uint32) bool {
	t := m.Tile(c, l)
	if t == nil {
		return false
	}
	t = m.Owner(t, l)
	if int(variation) >= t.Def.VariationCount() {
		return false
	}
	t.Variation = variation
	m.revision++
	return true
}

// Fill places def on every empty cell of the layer. Used for terrain.
func (m *Map) Fill(l Layer, def *Def) {
	for y := int32(0); y < m.size.H; y++ {
		for x := int32(0); x < m.size.W; x++ {
			c := coord.Cell{X: x, Y: y}
			if m.Tile(c, l) == nil {
				_, _ = m.Place(l, c, def, 0)
			}
		}
	}
}

// IsWalkable holds when the objects layer is empty or walkable and the
// buildings layer is empty.
func (m *Map) IsWalkable(c coord.Cell) bool {
	if !m.InBounds(c) {
		return false
	}
	return m.Tile(c, LayerBuildings) == nil && m.at(c, LayerObjects).IsWalkable()
}

// NodeKind reports what a cell offers to the pathfinder.
func (m *Map) NodeKind(c coord.Cell) nav.NodeKind {
	if !m.InBounds(c) {
		return nav.NodeNone
	}
	if m.Tile(c, LayerBuildings) != nil {
		return nav.NodeBuilding
	}
	if !m.at(c, LayerObjects).IsWalkable() {
		return nav.NodeNone
	}
	if t := m.Tile(c, LayerTerrain); t != nil && t.Def.PathKind != nav.NodeNone {
		return t.Def.PathKind
	}
	return nav.NodeGround
}

// OwnerTiles returns the non-blocker tiles of a layer in row-major order.
func (m *Map) OwnerTiles(l Layer) []*Tile {
	var out []*Tile
	tiles := m.layers[l]
	for i := range tiles {
		t := &tiles[i]
		if !t.IsEmpty() && !t.IsBlocker() {
			out = append(out, t)
		}
	}
	return out
}

// Reset empties every layer.
func (m *Map) Reset() {
	for l := range m.layers {
		clear(m.layers[l])
	}
	m.revision++
}
