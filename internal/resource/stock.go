package resource

import (
	"encoding/json"
	"fmt"
)

// StockItem is a kind/count pair.
type StockItem struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Count uint32 `json:"count" yaml:"count"`
}

func (i StockItem) IsEmpty() bool { return !i.Kind.IsValid() || i.Count == 0 }

func (i StockItem) String() string { return fmt.Sprintf("%d %s", i.Count, i.Kind) }

// Stock maps kinds to counts. An accepted set, when non-empty, restricts
// which kinds may be inserted; a capacity, when non-zero, bounds each kind.
type Stock struct {
	counts   [kindCount]uint32
	accepted Kinds
	capacity uint32
}

// NewStock creates a stock limited to accepted kinds (empty = any kind) and
// capacity per kind (0 = unbounded).
func NewStock(accepted Kinds, capacity uint32) Stock {
	return Stock{accepted: accepted, capacity: capacity}
}

func (s *Stock) Accepted() Kinds  { return s.accepted }
func (s *Stock) Capacity() uint32 { return s.capacity }

func (s *Stock) Accepts(k Kind) bool {
	if !k.IsValid() {
		return false
	}
	return s.accepted.IsEmpty() || s.accepted.Has(k)
}

func (s *Stock) Count(k Kind) uint32 {
	if !k.IsValid() {
		return 0
	}
	return s.counts[k]
}

func (s *Stock) Has(k Kind, n uint32) bool { return s.Count(k) >= n }

// Remaining returns how many more units of k fit.
func (s *Stock) Remaining(k Kind) uint32 {
	if !s.Accepts(k) {
		return 0
	}
	if s.capacity == 0 {
		return ^uint32(0) - s.counts[k]
	}
	if s.counts[k] >= s.capacity {
		return 0
	}
	return s.capacity - s.counts[k]
}

func (s *Stock) IsFull(k Kind) bool { return s.Remaining(k) == 0 }

// Add inserts up to n units of k and returns how many were taken.
func (s *Stock) Add(k Kind, n uint32) uint32 {
	take := min(n, s.Remaining(k))
	if take > 0 {
		s.counts[k] += take
	}
	return take
}

// Remove takes up to n units of k and returns how many were removed.
func (s *Stock) Remove(k Kind, n uint32) uint32 {
	if !k.IsValid() {
		return 0
	}
	take := min(n, s.counts[k])
	s.counts[k] -= take
	return take
}

// Total is the sum of all counts.
func (s *Stock) Total() uint64 {
	var t uint64
	for _, c := range s.counts {
		t += uint64(c)
	}
	return t
}

func (s *Stock) IsEmpty() bool { return s.Total() == 0 }

// Items lists non-zero entries in kind order.
func (s *Stock) Items() []StockItem {
	var out []StockItem
	for _, k := range All() {
		if c := s.counts[k]; c > 0 {
			out = append(out, StockItem{Kind: k, Count: c})
		}
	}
	return out
}

func (s *Stock) Clear() { s.counts = [kindCount]uint32{} }

type stockJSON struct {
	Accepted []Kind      `json:"accepted,omitempty"`
	Capacity uint32      `json:"capacity,omitempty"`
	Items    []StockItem `json:"items,omitempty"`
}

func (s Stock) MarshalJSON() ([]byte, error) {
	return json.Marshal(stockJSON{Accepted: s.accepted.List(), Capacity: s.capacity, Items: s.Items()})
}

func (s *Stock) UnmarshalJSON(b []byte) error {
	var raw stockJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = NewStock(KindsOf(raw.Accepted...), raw.Capacity)
	for _, it := range raw.Items {
		if !it.Kind.IsValid() {
			return fmt.Errorf("stock item with invalid kind %v", it.Kind)
		}
		s.counts[it.Kind] = it.Count
	}
	return nil
}
