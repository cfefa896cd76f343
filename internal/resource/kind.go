// Package resource models goods: kinds, local stocks, shopping lists and
// worker demand.
package resource

import (
	"fmt"
	"strings"
)

// Kind is a closed enum of resource kinds.
type Kind uint8

const (
	None Kind = iota
	Wood
	Food
	Gold
	Water
	Stone
	Iron
	Tools

	kindCount
)

var kindNames = [kindCount]string{
	None:  "none",
	Wood:  "wood",
	Food:  "food",
	Gold:  "gold",
	Water: "water",
	Stone: "stone",
	Iron:  "iron",
	Tools: "tools",
}

// All lists every real kind in declaration order.
func All() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := Wood; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) IsValid() bool { return k > None && k < kindCount }

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a config name to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := Wood; k < kindCount; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown resource kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	if len(b) == 0 || string(b) == "none" {
		*k = None
		return nil
	}
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Kinds is a set of resource kinds.
type Kinds uint32

func KindsOf(ks ...Kind) Kinds {
	var s Kinds
	for _, k := range ks {
		s = s.With(k)
	}
	return s
}

// AllKinds is the set of every real kind.
func AllKinds() Kinds { return KindsOf(All()...) }

func (s Kinds) Has(k Kind) bool { return k.IsValid() && s&(1<<k) != 0 }

func (s Kinds) With(k Kind) Kinds {
	if !k.IsValid() {
		return s
	}
	return s | 1<<k
}

func (s Kinds) IsEmpty() bool { return s == 0 }

// List returns the members in declaration order.
func (s Kinds) List() []Kind {
	var out []Kind
	for _, k := range All() {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s Kinds) String() string {
	parts := make([]string, 0, 4)
	for _, k := range s.List() {
		parts = append(parts, k.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
