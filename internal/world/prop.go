package world

import (
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// Prop is a mostly static objects-layer tile such as a tree. Harvestable
// props give their resource once and regrow after RespawnSecs.
type Prop struct {
	ID           pool.Handle `json:"id"`
	Name         string      `json:"name"`
	Cell         coord.Cell  `json:"cell"`
	Variation    uint32      `json:"variation"`
	Remaining    uint32      `json:"remaining"`
	Harvested    bool        `json:"harvested"`
	RespawnTimer float32     `json:"respawn_timer"`
	Reserved     pool.Handle `json:"reserved"` // harvest task holding the prop

	config *data.PropConfig
}

func (p *Prop) Ref() tile.GameState { return tile.GameState{Kind: RefProp, ID: p.ID} }

func (p *Prop) PropConfig() *data.PropConfig { return p.config }

// Harvestable reports whether a harvester may claim the prop.
func (p *Prop) Harvestable(w *World) bool {
	return !p.Harvested && p.Remaining > 0 && !w.Tasks.Alive(p.Reserved)
}

// take empties the prop and starts its respawn timer.
func (p *Prop) take() uint32 {
	n := p.Remaining
	p.Remaining = 0
	p.Harvested = true
	p.RespawnTimer = p.config.RespawnSecs
	p.Reserved = pool.Invalid
	return n
}

func (p *Prop) update(q *Query) {
	if !p.Harvested {
		return
	}
	p.RespawnTimer -= q.Seconds()
	if p.RespawnTimer > 0 {
		return
	}
	p.RespawnTimer = 0
	p.Harvested = false
	p.Remaining = p.config.Harvest.Count
	if t := q.Map.Tile(p.Cell, tile.LayerObjects); t != nil {
		p.Variation = uint32(q.Rng.IntN(t.Def.VariationCount()))
		q.Map.SetVariation(tile.LayerObjects, p.Cell, p.Variation)
	}
}
