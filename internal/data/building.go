package data

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// WorkersConfig is the employment demand of a building.
type WorkersConfig struct {
	Min uint32 `yaml:"min" json:"min"`
	Max uint32 `yaml:"max" json:"max"`
}

// BuildingConfig is one entry of configs/buildings/*.json.
type BuildingConfig struct {
	Name    string        `yaml:"name"`
	Kind    BuildingKind  `yaml:"kind"`
	TileDef string        `yaml:"tile_def"`
	Cost    uint32        `yaml:"cost"`
	Workers WorkersConfig `yaml:"workers"`

	Producer  *ProducerConfig  `yaml:"producer"`
	Storage   *StorageConfig   `yaml:"storage"`
	Service   *ServiceConfig   `yaml:"service"`
	Household *HouseholdConfig `yaml:"household"`

	// TileDefHash is derived from TileDef after loading.
	TileDefHash uint64 `yaml:"-"`
}

type ProducerConfig struct {
	Output                  resource.Kind        `yaml:"output"`
	Inputs                  []resource.StockItem `yaml:"inputs"`
	ProductionFrequencySecs float32              `yaml:"production_frequency_secs"`
	OutputPerCycle          uint32               `yaml:"output_per_cycle"`
	OutputCapacity          uint32               `yaml:"output_capacity"`
	InputCapacity           uint32               `yaml:"input_capacity"`
	SendThreshold           uint32               `yaml:"send_threshold"`
	SearchRadius            int32                `yaml:"search_radius"`
	AllowProducerFallback   bool                 `yaml:"allow_producer_fallback"`
	RunnerUnit              string               `yaml:"runner_unit"`
	Harvest                 *HarvestConfig       `yaml:"harvest"`
}

// HarvestConfig turns a producer into a gatherer: instead of a production
// timer it sends units to harvest props.
type HarvestConfig struct {
	Prop         string  `yaml:"prop"`
	Unit         string  `yaml:"unit"`
	SearchRadius int32   `yaml:"search_radius"`
	HarvestSecs  float32 `yaml:"harvest_secs"`
}

type StorageConfig struct {
	Accepted []resource.Kind `yaml:"accepted"`
	Capacity uint32          `yaml:"capacity"`
}

type ServiceConfig struct {
	EffectRadius         int32                 `yaml:"effect_radius"`
	Accepted             []resource.Kind       `yaml:"accepted"`
	Capacity             uint32                `yaml:"capacity"`
	ShoppingList         resource.ShoppingList `yaml:"shopping_list"`
	ConsumeFrequencySecs float32               `yaml:"consume_frequency_secs"`
	SearchRadius         int32                 `yaml:"search_radius"`
	RunnerUnit           string                `yaml:"runner_unit"`
	PatrolUnit           string                `yaml:"patrol_unit"`
	PatrolFrequencySecs  float32               `yaml:"patrol_frequency_secs"`
	PatrolRadius         int32                 `yaml:"patrol_radius"`
}

type HouseholdConfig struct {
	Levels               []HouseLevel `yaml:"levels"`
	UpgradeFrequencySecs float32      `yaml:"upgrade_frequency_secs"`
	AllowDowngrade       bool         `yaml:"allow_downgrade"`
}

// HouseLevel describes one household level. Requirements must all hold
// for the house to advance to the next level.
type HouseLevel struct {
	TileDef      string        `yaml:"tile_def"`
	MaxResidents uint32        `yaml:"max_residents"`
	Requirements []Requirement `yaml:"requirements"`

	TileDefHash uint64 `yaml:"-"`
}

// Requirement asks for an active building of Kind within Radius cells.
type Requirement struct {
	Kind   BuildingKind `yaml:"kind"`
	Radius int32        `yaml:"radius"`
}

// Archetype follows from the kind.
func (c *BuildingConfig) Archetype() Archetype {
	a, _ := c.Kind.Archetype()
	return a
}

// MaxLevel is the highest household level index.
func (h *HouseholdConfig) MaxLevel() uint32 {
	if len(h.Levels) == 0 {
		return 0
	}
	return uint32(len(h.Levels) - 1)
}

// Level clamps lvl into range.
func (h *HouseholdConfig) Level(lvl uint32) *HouseLevel {
	return &h.Levels[min(lvl, h.MaxLevel())]
}

func (p *ProducerConfig) IsHarvester() bool { return p.Harvest != nil }

// validate fills defaults and checks references against sets. Problems
// that can be repaired are logged; anything else rejects the entry.
func (c *BuildingConfig) validate(sets *tile.Sets, log *zap.Logger) error {
	if c.Name == "" {
		return fmt.Errorf("building with empty name")
	}
	arch, ok := c.Kind.Archetype()
	if !ok {
		return fmt.Errorf("building %s: kind %s is not a single known kind", c.Name, c.Kind)
	}
	if c.TileDef == "" {
		c.TileDef = c.Name
	}
	def, err := sets.ByName(c.TileDef)
	if err != nil {
		return fmt.Errorf("building %s: %w", c.Name, err)
	}
	if def.Layer != tile.LayerBuildings {
		return fmt.Errorf("building %s: tile def %s is on layer %s", c.Name, def.Name, def.Layer)
	}
	c.TileDefHash = def.NameHash
	if c.Workers.Max < c.Workers.Min {
		c.Workers.Max = c.Workers.Min
	}

	switch arch {
	case ArchetypeProducer:
		if c.Producer == nil {
			log.Warn("building missing producer block, using defaults", zap.String("building", c.Name))
			c.Producer = &ProducerConfig{}
		}
		c.Producer.fill(c.Name, log)
	case ArchetypeStorage:
		if c.Storage == nil {
			log.Warn("building missing storage block, using defaults", zap.String("building", c.Name))
			c.Storage = &StorageConfig{}
		}
		if c.Storage.Capacity == 0 {
			c.Storage.Capacity = 100
		}
	case ArchetypeService:
		if c.Service == nil {
			log.Warn("building missing service block, using defaults", zap.String("building", c.Name))
			c.Service = &ServiceConfig{}
		}
		c.Service.fill()
	case ArchetypeHousehold:
		if c.Household == nil {
			c.Household = &HouseholdConfig{}
		}
		if err := c.Household.fill(c.TileDef, sets, log); err != nil {
			return fmt.Errorf("building %s: %w", c.Name, err)
		}
	}
	return nil
}

func (p *ProducerConfig) fill(name string, log *zap.Logger) {
	if !p.Output.IsValid() {
		log.Warn("producer without output kind, defaulting to wood", zap.String("building", name))
		p.Output = resource.Wood
	}
	if p.ProductionFrequencySecs <= 0 {
		p.ProductionFrequencySecs = 10
	}
	if p.OutputPerCycle == 0 {
		p.OutputPerCycle = 1
	}
	if p.OutputCapacity == 0 {
		p.OutputCapacity = 10
	}
	if p.InputCapacity == 0 {
		p.InputCapacity = 10
	}
	if p.SendThreshold == 0 {
		p.SendThreshold = 1
	}
	if p.SearchRadius <= 0 {
		p.SearchRadius = 20
	}
	if p.RunnerUnit == "" {
		p.RunnerUnit = "runner"
	}
	valid := p.Inputs[:0]
	for _, in := range p.Inputs {
		if in.IsEmpty() {
			log.Warn("producer input skipped", zap.String("building", name), zap.Stringer("item", in))
			continue
		}
		valid = append(valid, in)
	}
	p.Inputs = valid
	if h := p.Harvest; h != nil {
		if h.Prop == "" {
			h.Prop = "tree"
		}
		if h.Unit == "" {
			h.Unit = "lumberjack"
		}
		if h.SearchRadius <= 0 {
			h.SearchRadius = 10
		}
		if h.HarvestSecs <= 0 {
			h.HarvestSecs = 4
		}
	}
}

func (s *ServiceConfig) fill() {
	if s.EffectRadius < 0 {
		s.EffectRadius = 0
	}
	if s.ConsumeFrequencySecs <= 0 {
		s.ConsumeFrequencySecs = 20
	}
	if s.SearchRadius <= 0 {
		s.SearchRadius = 20
	}
	if s.RunnerUnit == "" {
		s.RunnerUnit = "runner"
	}
	if s.Capacity == 0 && len(s.ShoppingList) > 0 {
		for _, it := range s.ShoppingList {
			s.Capacity = max(s.Capacity, it.Count)
		}
	}
	if len(s.Accepted) == 0 {
		s.Accepted = s.ShoppingList.Kinds().List()
	}
	if s.PatrolFrequencySecs <= 0 {
		s.PatrolFrequencySecs = 30
	}
	if s.PatrolRadius <= 0 {
		s.PatrolRadius = max(s.EffectRadius, 1)
	}
}

func (h *HouseholdConfig) fill(baseDef string, sets *tile.Sets, log *zap.Logger) error {
	if len(h.Levels) == 0 {
		h.Levels = []HouseLevel{{TileDef: baseDef, MaxResidents: 2}}
	}
	for i := range h.Levels {
		lvl := &h.Levels[i]
		def, err := sets.ByName(lvl.TileDef)
		if err != nil {
			return fmt.Errorf("level %d: %w", i, err)
		}
		lvl.TileDefHash = def.NameHash
		valid := lvl.Requirements[:0]
		for _, r := range lvl.Requirements {
			if !r.Kind.IsSingle() {
				log.Warn("household requirement skipped", zap.Int("level", i), zap.Stringer("kind", r.Kind))
				continue
			}
			valid = append(valid, r)
		}
		lvl.Requirements = valid
	}
	if h.UpgradeFrequencySecs <= 0 {
		h.UpgradeFrequencySecs = 10
	}
	return nil
}
