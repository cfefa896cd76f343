package system

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/heritagebuilder/heritage/internal/world"
)

// Workforce periodically re-employs residents. Every period it releases
// all workers, then staffs buildings in world order from the nearest
// households within workers_search_radius: first up to each building's
// minimum, then up to its maximum. Between periods it redistributes as soon
// as the books stop balancing, which happens when a staffed house or an
// employer is removed or a house drops a level.
type Workforce struct {
	Timer    float32 `json:"timer"`
	Employed uint32  `json:"employed"`
}

func NewWorkforce() *Workforce { return &Workforce{} }

func (*Workforce) gameSystem()  {}
func (*Workforce) Name() string { return "workforce" }

func (w *Workforce) Reset() { *w = Workforce{} }

func (w *Workforce) Update(q *world.Query) {
	w.Timer += q.Seconds()
	if w.Timer >= q.Settings.WorkersUpdateFrequencySecs {
		w.Timer = 0
		w.Employed = Redistribute(q)
		return
	}
	if !balanced(q.World) {
		w.Employed = Redistribute(q)
	}
}

// balanced reports whether the workers households say they supply match
// the workers employers hold.
func balanced(wld *world.World) bool {
	var supplied, held uint32
	wld.EachBuilding(func(b *world.Building) {
		switch {
		case b.Household != nil:
			supplied += b.Household.Employed
		case b.Workers.Max > 0:
			held += b.Workers.Current
		}
	})
	return supplied == held
}

// Redistribute reassigns every resident to work and returns how many are
// employed afterwards.
func Redistribute(q *world.Query) uint32 {
	var households, employers []*world.Building
	q.World.EachBuilding(func(b *world.Building) {
		switch {
		case b.Household != nil:
			b.Household.Employed = 0
			households = append(households, b)
		case b.Workers.Max > 0:
			b.Workers.Current = 0
			employers = append(employers, b)
		}
	})

	var employed uint32
	fill := func(b *world.Building, target uint32) {
		for _, h := range nearest(b, households, q.Settings.WorkersSearchRadius) {
			if b.Workers.Current >= target {
				return
			}
			take := min(h.Household.Unemployed(), target-b.Workers.Current)
			if take == 0 {
				continue
			}
			take = b.Workers.Add(take)
			h.Household.Employed += take
			employed += take
		}
	}
	for _, b := range employers {
		fill(b, b.Workers.Min)
	}
	for _, b := range employers {
		fill(b, b.Workers.Max)
	}
	return employed
}

// nearest lists the households within radius of b, closest first, ties by
// cell.
func nearest(b *world.Building, households []*world.Building, radius int32) []*world.Building {
	type candidate struct {
		b    *world.Building
		dist int32
	}
	from := b.Range()
	var out []candidate
	for _, h := range households {
		if d := from.DistanceToRange(h.Range()); d <= radius {
			out = append(out, candidate{h, d})
		}
	}
	slices.SortStableFunc(out, func(x, y candidate) int {
		if c := cmp.Compare(x.dist, y.dist); c != 0 {
			return c
		}
		if x.b.Cell.Less(y.b.Cell) {
			return -1
		}
		if y.b.Cell.Less(x.b.Cell) {
			return 1
		}
		return 0
	})
	list := make([]*world.Building, len(out))
	for i, c := range out {
		list[i] = c.b
	}
	return list
}

func (*Workforce) RegisterCallbacks(*world.Callbacks) error { return nil }

func (*Workforce) PostLoad(world.PostLoadContext) error { return nil }

func (w *Workforce) MarshalState() (json.RawMessage, error) { return marshalState(w) }

func (w *Workforce) UnmarshalState(raw json.RawMessage) error {
	var st Workforce
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	*w = st
	return nil
}
