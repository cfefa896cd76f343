package nav

import (
	"container/heap"
	"errors"

	"github.com/heritagebuilder/heritage/internal/coord"
)

// ErrNoPath is returned when the goal cannot be reached.
var ErrNoPath = errors.New("nav: no path")

// Options tunes the search.
type Options struct {
	Diagonal bool    // 8-connected when true, 4-connected otherwise
	BaseCost float64 // per step on non-road terrain
	RoadCost float64 // per step onto a road cell
	MaxNodes int     // expansion budget; 0 = grid area
}

func DefaultOptions() Options {
	return Options{BaseCost: 1, RoadCost: 0.5}
}

// Request describes one search. The unit starts on From.Start; any cell in
// To is a goal. Cells in From and To are admissible regardless of their
// node kind so units can leave and enter building footprints.
type Request struct {
	From        coord.CellRange
	To          coord.CellRange
	Traversable NodeKind
}

// Path lists cells from (exclusive) start to (inclusive) goal.
type Path []coord.Cell

type offset struct{ dx, dy int32 }

// Fixed expansion order; ties in the open set are broken by cell order.
var (
	straightOffsets = [...]offset{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	diagonalOffsets = [...]offset{{1, -1}, {1, 1}, {-1, 1}, {-1, -1}}
)

// Finder runs A* over a Grid.
type Finder struct {
	grid  Grid
	opts  Options
	cache *PathCache
}

func NewFinder(grid Grid, opts Options) *Finder {
	if opts.BaseCost <= 0 {
		opts.BaseCost = 1
	}
	if opts.RoadCost <= 0 {
		opts.RoadCost = opts.BaseCost
	}
	return &Finder{grid: grid, opts: opts}
}

// WithCache attaches a path cache. Cached and uncached searches return
// identical paths.
func (f *Finder) WithCache(c *PathCache) *Finder {
	f.cache = c
	return f
}

func (f *Finder) Options() Options { return f.opts }

// Find searches for a path.
func (f *Finder) Find(req Request) (Path, error) {
	if f.cache != nil {
		if p, ok := f.cache.Get(f.grid.Revision(), req); ok {
			return p, nil
		}
	}
	p, err := f.search(req)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.Set(f.grid.Revision(), req, p)
	}
	return p, nil
}

type pathNode struct {
	cell  coord.Cell
	g     float64
	f     float64
	index int
}

type openSet []*pathNode

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].cell.Less(o[j].cell)
}
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*o)
	*o = append(*o, n)
}
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*o = old[:len(old)-1]
	return n
}

func (f *Finder) search(req Request) (Path, error) {
	size := f.grid.Size()
	start := req.From.Start
	if !size.Contains(start) || !req.To.IsValid() {
		return nil, ErrNoPath
	}
	if req.To.Contains(start) {
		return Path{}, nil
	}
	goal := req.To.Clamp(size)
	if !goal.IsValid() {
		return nil, ErrNoPath
	}

	idx := func(c coord.Cell) int { return int(c.Y)*int(size.W) + int(c.X) }
	budget := f.opts.MaxNodes
	if budget <= 0 {
		budget = size.Area()
	}
	minStep := min(f.opts.BaseCost, f.opts.RoadCost)

	open := &openSet{}
	heap.Init(open)
	startNode := &pathNode{cell: start, g: 0, f: f.heuristic(start, goal) * minStep}
	heap.Push(open, startNode)
	gScore := map[int]float64{idx(start): 0}
	cameFrom := map[int]coord.Cell{}
	closed := make(map[int]struct{})

	expanded := 0
	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		currIdx := idx(current.cell)
		if _, seen := closed[currIdx]; seen {
			continue
		}
		if goal.Contains(current.cell) {
			return reconstruct(cameFrom, idx, start, current.cell), nil
		}
		closed[currIdx] = struct{}{}
		expanded++
		if expanded > budget {
			break
		}

		f.neighbors(current.cell, func(next coord.Cell, diagonal bool) {
			nIdx := idx(next)
			if _, seen := closed[nIdx]; seen {
				return
			}
			kind := f.grid.NodeKind(next)
			endpoint := req.From.Contains(next) || goal.Contains(next)
			if !endpoint && !kind.Intersects(req.Traversable) {
				return
			}
			if diagonal && !f.cornerOpen(current.cell, next, req) {
				return
			}
			step := f.opts.BaseCost
			if kind&NodeRoad != 0 {
				step = f.opts.RoadCost
			}
			tentative := current.g + step
			if prev, ok := gScore[nIdx]; ok && tentative >= prev {
				return
			}
			gScore[nIdx] = tentative
			cameFrom[nIdx] = current.cell
			heap.Push(open, &pathNode{
				cell: next,
				g:    tentative,
				f:    tentative + f.heuristic(next, goal)*minStep,
			})
		})
	}
	return nil, ErrNoPath
}

func (f *Finder) neighbors(c coord.Cell, fn func(coord.Cell, bool)) {
	size := f.grid.Size()
	for _, o := range straightOffsets {
		if n := c.Add(o.dx, o.dy); size.Contains(n) {
			fn(n, false)
		}
	}
	if !f.opts.Diagonal {
		return
	}
	for _, o := range diagonalOffsets {
		if n := c.Add(o.dx, o.dy); size.Contains(n) {
			fn(n, true)
		}
	}
}

// cornerOpen forbids cutting diagonally past blocked cells.
func (f *Finder) cornerOpen(from, to coord.Cell, req Request) bool {
	a := coord.Cell{X: to.X, Y: from.Y}
	b := coord.Cell{X: from.X, Y: to.Y}
	pass := func(c coord.Cell) bool {
		return f.grid.NodeKind(c).Intersects(req.Traversable) || req.From.Contains(c) || req.To.Contains(c)
	}
	return pass(a) && pass(b)
}

func (f *Finder) heuristic(c coord.Cell, goal coord.CellRange) float64 {
	if f.opts.Diagonal {
		return float64(goal.DistanceTo(c))
	}
	return float64(goal.ManhattanTo(c))
}

func reconstruct(cameFrom map[int]coord.Cell, idx func(coord.Cell) int, start, end coord.Cell) Path {
	var rev Path
	for c := end; c != start; {
		rev = append(rev, c)
		c = cameFrom[idx(c)]
	}
	out := make(Path, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}
