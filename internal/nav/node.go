// Package nav finds deterministic grid paths for units.
package nav

import (
	"fmt"
	"strings"

	"github.com/heritagebuilder/heritage/internal/coord"
)

// NodeKind is a bitset describing what a cell offers to movement.
type NodeKind uint8

const (
	NodeNone     NodeKind = 0
	NodeGround   NodeKind = 1 << 0
	NodeRoad     NodeKind = 1 << 1
	NodeWater    NodeKind = 1 << 2
	NodeBuilding NodeKind = 1 << 3 // reserved by a building; only endpoints may use it
)

var nodeNames = []struct {
	kind NodeKind
	name string
}{
	{NodeGround, "ground"},
	{NodeRoad, "road"},
	{NodeWater, "water"},
	{NodeBuilding, "building"},
}

func (k NodeKind) Intersects(o NodeKind) bool { return k&o != 0 }

func (k NodeKind) String() string {
	if k == NodeNone {
		return "none"
	}
	var parts []string
	for _, n := range nodeNames {
		if k&n.kind != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseNodeKinds parses "ground|road" style lists.
func ParseNodeKinds(s string) (NodeKind, error) {
	var k NodeKind
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		found := false
		for _, n := range nodeNames {
			if strings.EqualFold(part, n.name) {
				k |= n.kind
				found = true
				break
			}
		}
		if !found {
			return NodeNone, fmt.Errorf("unknown node kind %q", part)
		}
	}
	return k, nil
}

func (k NodeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *NodeKind) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*k = NodeNone
		return nil
	}
	v, err := ParseNodeKinds(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Grid is the read-only view the pathfinder needs from the tile map.
type Grid interface {
	Size() coord.Size
	NodeKind(c coord.Cell) NodeKind
	Revision() uint64
}
