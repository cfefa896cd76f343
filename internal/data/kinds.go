package data

import (
	"fmt"
	"strings"
)

// Archetype selects the behavior variant of a building.
type Archetype uint8

const (
	ArchetypeProducer Archetype = iota
	ArchetypeStorage
	ArchetypeService
	ArchetypeHousehold

	ArchetypeCount
)

var archetypeNames = [ArchetypeCount]string{"producer", "storage", "service", "household"}

func (a Archetype) String() string {
	if a < ArchetypeCount {
		return archetypeNames[a]
	}
	return fmt.Sprintf("archetype(%d)", uint8(a))
}

func (a Archetype) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Archetype) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range archetypeNames {
		if n == s {
			*a = Archetype(i)
			return nil
		}
	}
	return fmt.Errorf("unknown archetype %q", s)
}

// BuildingKind is a bit flag so queries can ask for several kinds at once.
type BuildingKind uint32

const (
	KindHouse BuildingKind = 1 << iota
	KindWell
	KindMarket
	KindFarm
	KindLumberyard
	KindWorkshop
	KindGranary
	KindStorageYard

	KindNone BuildingKind = 0
)

var buildingKinds = []struct {
	kind      BuildingKind
	name      string
	archetype Archetype
}{
	{KindHouse, "house", ArchetypeHousehold},
	{KindWell, "well", ArchetypeService},
	{KindMarket, "market", ArchetypeService},
	{KindFarm, "farm", ArchetypeProducer},
	{KindLumberyard, "lumberyard", ArchetypeProducer},
	{KindWorkshop, "workshop", ArchetypeProducer},
	{KindGranary, "granary", ArchetypeStorage},
	{KindStorageYard, "storage_yard", ArchetypeStorage},
}

// KindsOf returns every kind belonging to an archetype.
func KindsOf(a Archetype) BuildingKind {
	var out BuildingKind
	for _, k := range buildingKinds {
		if k.archetype == a {
			out |= k.kind
		}
	}
	return out
}

func (k BuildingKind) Has(o BuildingKind) bool { return k&o != 0 }

// IsSingle reports whether exactly one known kind bit is set.
func (k BuildingKind) IsSingle() bool {
	for _, e := range buildingKinds {
		if e.kind == k {
			return true
		}
	}
	return false
}

// Archetype of a single kind. Masks and unknown kinds report false.
func (k BuildingKind) Archetype() (Archetype, bool) {
	for _, e := range buildingKinds {
		if e.kind == k {
			return e.archetype, true
		}
	}
	return 0, false
}

func (k BuildingKind) String() string {
	if k == KindNone {
		return "none"
	}
	var parts []string
	for _, e := range buildingKinds {
		if k&e.kind != 0 {
			parts = append(parts, e.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("building_kind(%#x)", uint32(k))
	}
	return strings.Join(parts, "|")
}

// ParseBuildingKind accepts one name or several joined with '|'.
func ParseBuildingKind(s string) (BuildingKind, error) {
	var out BuildingKind
	for _, part := range strings.Split(s, "|") {
		part = strings.ToLower(strings.TrimSpace(part))
		found := false
		for _, e := range buildingKinds {
			if e.name == part {
				out |= e.kind
				found = true
				break
			}
		}
		if !found {
			return KindNone, fmt.Errorf("unknown building kind %q", part)
		}
	}
	return out, nil
}

func (k BuildingKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *BuildingKind) UnmarshalText(b []byte) error {
	v, err := ParseBuildingKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
