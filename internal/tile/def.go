package tile

import (
	"hash/fnv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/nav"
)

// AnimSet is one named animation bundle of a variation.
type AnimSet struct {
	Name         string   `json:"name" yaml:"name"`
	Frames       []string `json:"frames,omitempty" yaml:"frames"`
	DurationSecs float32  `json:"duration_secs,omitempty" yaml:"duration_secs"`
	Looping      bool     `json:"looping,omitempty" yaml:"looping"`
}

// Variation is a visual alternative of a tile definition.
type Variation struct {
	AnimSets []AnimSet `json:"anim_sets" yaml:"anim_sets"`
}

// Def is an immutable tile template. Defs are owned by Sets and borrowed by
// every tile placed from them.
type Def struct {
	Name       string
	NameHash   uint64
	Kind       Kind
	Layer      Layer
	Category   string
	Size       coord.Size
	Flags      Flags        // copied onto placed tiles
	PathKind   nav.NodeKind // terrain: what movement the cell offers
	Variations []Variation
}

func (d *Def) IsMultiCell() bool { return d.Size.W > 1 || d.Size.H > 1 }

// VariationCount is at least 1 so callers can pick a variation blindly.
func (d *Def) VariationCount() int { return max(1, len(d.Variations)) }

// AnimSetIndex returns the index of the named anim set in a variation, or
// 0 when absent.
func (d *Def) AnimSetIndex(variation uint32, name string) uint32 {
	if int(variation) >= len(d.Variations) {
		return 0
	}
	for i, a := range d.Variations[variation].AnimSets {
		if a.Name == name {
			return uint32(i)
		}
	}
	return 0
}

// NormalizeName canonicalises a def name: trimmed, NFC and case-folded, so
// names typed differently in config files hash identically.
func NormalizeName(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// HashName returns the FNV-1a/64 hash of the normalised name.
func HashName(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(NormalizeName(name)))
	return h.Sum64()
}
