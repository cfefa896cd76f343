package resource

// ShoppingList is an ordered list of wanted kinds with desired counts.
type ShoppingList []StockItem

// Missing returns, in list order, what stock lacks to reach each desired
// count.
func (l ShoppingList) Missing(stock *Stock) ShoppingList {
	var out ShoppingList
	for _, it := range l {
		have := stock.Count(it.Kind)
		if have < it.Count {
			out = append(out, StockItem{Kind: it.Kind, Count: it.Count - have})
		}
	}
	return out
}

func (l ShoppingList) Kinds() Kinds {
	var s Kinds
	for _, it := range l {
		s = s.With(it.Kind)
	}
	return s
}

// Withdraw takes what it can of each list entry from stock, in order.
func (l ShoppingList) Withdraw(stock *Stock) []StockItem {
	var granted []StockItem
	for _, it := range l {
		if n := stock.Remove(it.Kind, it.Count); n > 0 {
			granted = append(granted, StockItem{Kind: it.Kind, Count: n})
		}
	}
	return granted
}

// Workers tracks employment demand against fill.
type Workers struct {
	Current uint32 `json:"current"`
	Min     uint32 `json:"min"`
	Max     uint32 `json:"max"`
}

func NewWorkers(minimum, maximum uint32) Workers {
	if maximum < minimum {
		maximum = minimum
	}
	return Workers{Min: minimum, Max: maximum}
}

func (w Workers) HasMinimum() bool { return w.Current >= w.Min }
func (w Workers) IsMaxed() bool    { return w.Current >= w.Max }
func (w Workers) Needed() uint32 {
	if w.Current >= w.Max {
		return 0
	}
	return w.Max - w.Current
}

// Add employs up to n workers and returns how many were taken.
func (w *Workers) Add(n uint32) uint32 {
	take := min(n, w.Needed())
	w.Current += take
	return take
}

// Remove releases up to n workers and returns how many left.
func (w *Workers) Remove(n uint32) uint32 {
	take := min(n, w.Current)
	w.Current -= take
	return take
}
