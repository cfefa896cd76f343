package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/core/event"
	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/tile"
)

var ErrMaxLevel = errors.New("world: household at max level")

// HouseholdState tracks a house's level, residents and which required
// services it currently sees.
type HouseholdState struct {
	Level          uint32            `json:"level"`
	UpgradeTimer   float32           `json:"upgrade_timer"`
	DowngradeTimer float32           `json:"downgrade_timer"`
	Residents      uint32            `json:"residents"`
	Incoming       uint32            `json:"incoming"`
	Employed       uint32            `json:"employed"`
	Nearby         data.BuildingKind `json:"nearby"`
}

// Vacancies is the room left for settlers, counting those on their way.
func (h *HouseholdState) Vacancies(cfg *data.HouseholdConfig) uint32 {
	capacity := cfg.Level(h.Level).MaxResidents
	taken := h.Residents + h.Incoming
	if taken >= capacity {
		return 0
	}
	return capacity - taken
}

// Unemployed is the number of residents free for work.
func (h *HouseholdState) Unemployed() uint32 {
	if h.Employed >= h.Residents {
		return 0
	}
	return h.Residents - h.Employed
}

func (h *HouseholdState) update(ctx *BuildingContext) {
	q := ctx.Query
	b := ctx.Building
	cfg := b.config.Household
	step := q.Seconds()

	met := h.checkRequirements(ctx, cfg.Level(h.Level).Requirements)
	frequency := cfg.UpgradeFrequencySecs
	if q.Cheats.InstantUpgrades {
		frequency = 0
	}

	if met && h.Level < cfg.MaxLevel() {
		h.UpgradeTimer += step
		if h.UpgradeTimer >= frequency {
			h.UpgradeTimer = 0
			if err := TryUpgrade(q, b); err != nil {
				q.Log.Debug("household upgrade failed, retrying later",
					zap.String("building", ctx.DebugName()), zap.Error(err))
			}
		}
	} else {
		h.UpgradeTimer = 0
	}

	if !cfg.AllowDowngrade || h.Level == 0 {
		h.DowngradeTimer = 0
		return
	}
	// Staying at a level requires what was needed to reach it.
	if h.holds(ctx, cfg.Level(h.Level-1).Requirements) {
		h.DowngradeTimer = 0
		return
	}
	h.DowngradeTimer += step
	if h.DowngradeTimer >= cfg.UpgradeFrequencySecs {
		h.DowngradeTimer = 0
		if err := setLevel(q, b, h.Level-1); err != nil {
			q.Log.Debug("household downgrade failed", zap.String("building", ctx.DebugName()), zap.Error(err))
		}
	}
}

// checkRequirements refreshes Nearby and reports whether all hold.
func (h *HouseholdState) checkRequirements(ctx *BuildingContext, reqs []data.Requirement) bool {
	h.Nearby = data.KindNone
	met := true
	for _, r := range reqs {
		if ctx.Query.IsNearActiveBuilding(ctx.MapCell(), ctx.Footprint(), r.Kind, r.Radius) {
			h.Nearby |= r.Kind
		} else {
			met = false
		}
	}
	return met
}

func (h *HouseholdState) holds(ctx *BuildingContext, reqs []data.Requirement) bool {
	for _, r := range reqs {
		if !ctx.Query.IsNearActiveBuilding(ctx.MapCell(), ctx.Footprint(), r.Kind, r.Radius) {
			return false
		}
	}
	return true
}

// TryUpgrade moves a household to its next level, replacing its tile with
// the next level's def and a random variation. On failure the building is
// unchanged.
func TryUpgrade(q *Query, b *Building) error {
	if b.Household == nil {
		return fmt.Errorf("upgrade %s: not a household", b)
	}
	if b.Household.Level >= b.config.Household.MaxLevel() {
		return fmt.Errorf("upgrade %s: %w", b, ErrMaxLevel)
	}
	return setLevel(q, b, b.Household.Level+1)
}

func setLevel(q *Query, b *Building, level uint32) error {
	h := b.Household
	lvl := b.config.Household.Level(level)
	def, ok := q.Sets.ByHash(lvl.TileDefHash)
	if !ok {
		return fmt.Errorf("level %d of %s: %w: %s", level, b.Name, tile.ErrUnknownDef, lvl.TileDef)
	}
	variation := uint32(q.Rng.IntN(def.VariationCount()))
	if _, err := q.Map.Replace(tile.LayerBuildings, b.Cell, def, variation); err != nil {
		return fmt.Errorf("level %d of %s: %w", level, b.Name, err)
	}
	previous := h.Level
	h.Level = level
	h.Residents = min(h.Residents, lvl.MaxResidents)
	h.Employed = min(h.Employed, h.Residents)
	b.Footprint = def.Size
	b.Variation = variation
	b.TileDefName = def.Name
	b.TileDefHash = def.NameHash
	event.Emit(q.Events, HouseholdUpgraded{
		Ref:       b.Ref(),
		Cell:      b.Cell,
		Previous:  previous,
		Level:     level,
		Variation: variation,
	})
	q.Log.Debug("household level changed",
		zap.Stringer("building", b), zap.Uint32("from", previous), zap.Uint32("to", level))
	return nil
}
