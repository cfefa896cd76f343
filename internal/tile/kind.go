// Package tile holds the tile templates loaded from configs and the layered
// tile map that the simulation uses as its spatial substrate.
package tile

import (
	"fmt"
	"strings"
)

// Kind classifies tiles. It is a bit set so queries can match several kinds.
type Kind uint8

const (
	KindTerrain Kind = 1 << iota
	KindObject
	KindBuilding
	KindBlocker
	KindProp
	KindUnit

	KindNone Kind = 0
	KindAny       = KindTerrain | KindObject | KindBuilding | KindBlocker | KindProp | KindUnit
)

var kindNames = []struct {
	k    Kind
	name string
}{
	{KindTerrain, "terrain"},
	{KindObject, "object"},
	{KindBuilding, "building"},
	{KindBlocker, "blocker"},
	{KindProp, "prop"},
	{KindUnit, "unit"},
}

func (k Kind) Has(o Kind) bool { return k&o != 0 }

func (k Kind) String() string {
	var parts []string
	for _, n := range kindNames {
		if k&n.k != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

func ParseKind(s string) (Kind, error) {
	for _, n := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), n.name) {
			return n.k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown tile kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Flags are per-tile state bits.
type Flags uint8

const (
	FlagPlaceable Flags = 1 << iota // other tiles may be built on top (terrain)
	FlagWalkable                    // units may pass (objects layer)
	FlagBlocker                     // reserves a cell for a multi-cell owner
	FlagHidden                      // not drawn; still occupies the cell

	FlagNone Flags = 0
)

func (f Flags) Has(o Flags) bool { return f&o == o }

// Layer indexes the parallel grids of the map.
type Layer uint8

const (
	LayerTerrain Layer = iota
	LayerObjects
	LayerBuildings

	LayerCount
)

var layerNames = [LayerCount]string{"terrain", "objects", "buildings"}

func (l Layer) String() string {
	if l < LayerCount {
		return layerNames[l]
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

func ParseLayer(s string) (Layer, error) {
	for i, n := range layerNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return Layer(i), nil
		}
	}
	return LayerCount, fmt.Errorf("unknown layer %q", s)
}

func (l Layer) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Layer) UnmarshalText(b []byte) error {
	v, err := ParseLayer(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
