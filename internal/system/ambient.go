package system

import (
	"encoding/json"
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/world"
)

type EffectKind uint8

const (
	EffectBirds EffectKind = iota + 1
	EffectSmoke
)

func (k EffectKind) String() string {
	switch k {
	case EffectBirds:
		return "birds"
	case EffectSmoke:
		return "smoke"
	}
	return fmt.Sprintf("effect(%d)", k)
}

// Effect is a short-lived decoration drawn over a cell.
type Effect struct {
	Kind      EffectKind `json:"kind"`
	Cell      coord.Cell `json:"cell"`
	Variation uint32     `json:"variation"`
	TTL       float32    `json:"ttl"`
}

const (
	ambientIntervalSecs float32 = 1
	maxAmbientEffects           = 32
	birdsChance         float32 = 0.2
	smokeChance         float32 = 0.25
	birdsTTLMin                 = 4
	birdsTTLMax                 = 8
	smokeTTL            float32 = 3
	effectVariations            = 3
)

// AmbientEffects spawns bird flocks over random cells and chimney smoke over
// producers that are working. Effects only feed the render snapshot.
type AmbientEffects struct {
	Timer   float32  `json:"timer"`
	Effects []Effect `json:"effects"`
}

func NewAmbientEffects() *AmbientEffects { return &AmbientEffects{} }

func (*AmbientEffects) gameSystem()  {}
func (*AmbientEffects) Name() string { return "ambient_effects" }

func (a *AmbientEffects) Reset() { *a = AmbientEffects{} }

func (a *AmbientEffects) Update(q *world.Query) {
	step := q.Seconds()
	live := a.Effects[:0]
	for _, e := range a.Effects {
		e.TTL -= step
		if e.TTL > 0 {
			live = append(live, e)
		}
	}
	a.Effects = live

	a.Timer += step
	if a.Timer < ambientIntervalSecs {
		return
	}
	a.Timer = 0

	size := q.Map.Size()
	if len(a.Effects) < maxAmbientEffects && q.Rng.Chance(birdsChance) {
		a.Effects = append(a.Effects, Effect{
			Kind:      EffectBirds,
			Cell:      coord.Cell{X: int32(q.Rng.IntN(int(size.W))), Y: int32(q.Rng.IntN(int(size.H)))},
			Variation: uint32(q.Rng.IntN(effectVariations)),
			TTL:       float32(q.Rng.Range(birdsTTLMin, birdsTTLMax)),
		})
	}
	q.World.Buildings(data.ArchetypeProducer).Each(func(_ pool.Handle, b *world.Building) {
		if len(a.Effects) >= maxAmbientEffects || b.Producer.Timer <= 0 {
			return
		}
		if !q.Rng.Chance(smokeChance) {
			return
		}
		a.Effects = append(a.Effects, Effect{
			Kind:      EffectSmoke,
			Cell:      b.Cell,
			Variation: uint32(q.Rng.IntN(effectVariations)),
			TTL:       smokeTTL,
		})
	})
}

func (*AmbientEffects) RegisterCallbacks(*world.Callbacks) error { return nil }

// PostLoad drops effects that fall outside the loaded map.
func (a *AmbientEffects) PostLoad(ctx world.PostLoadContext) error {
	size := ctx.Map.Size()
	live := a.Effects[:0]
	for _, e := range a.Effects {
		if size.Contains(e.Cell) {
			live = append(live, e)
		}
	}
	a.Effects = live
	return nil
}

func (a *AmbientEffects) MarshalState() (json.RawMessage, error) { return marshalState(a) }

func (a *AmbientEffects) UnmarshalState(raw json.RawMessage) error {
	var st AmbientEffects
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	*a = st
	return nil
}
