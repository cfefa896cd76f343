package data

import (
	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

func builtinTiles() []TileConfig {
	one := coord.Size{W: 1, H: 1}
	two := coord.Size{W: 2, H: 2}
	terrain := func(name, category string, kind nav.NodeKind, placeable bool, variations int) TileConfig {
		return TileConfig{Name: name, Kind: tile.KindTerrain, Layer: tile.LayerTerrain, Category: category,
			Size: one, Placeable: placeable, Walkable: true, PathKind: kind, VariationCount: variations}
	}
	building := func(name string, size coord.Size, variations int) TileConfig {
		return TileConfig{Name: name, Kind: tile.KindBuilding, Layer: tile.LayerBuildings, Category: "buildings",
			Size: size, VariationCount: variations}
	}
	unit := func(name string) TileConfig {
		return TileConfig{Name: name, Kind: tile.KindUnit, Layer: tile.LayerObjects, Category: "units",
			Size: one, Walkable: true, Variations: []tile.Variation{{AnimSets: []tile.AnimSet{
				{Name: "idle", Looping: true}, {Name: "walk", Looping: true}}}}}
	}
	return []TileConfig{
		terrain("grass", "ground", nav.NodeGround, true, 3),
		terrain("dirt", "ground", nav.NodeGround, true, 2),
		terrain("road", "roads", nav.NodeRoad, true, 1),
		terrain("water", "water", nav.NodeWater, false, 1),
		{Name: "tree", Kind: tile.KindProp, Layer: tile.LayerObjects, Category: "vegetation", Size: one, VariationCount: 3},
		{Name: "rock", Kind: tile.KindObject, Layer: tile.LayerObjects, Category: "rocks", Size: one, VariationCount: 2},
		unit("settler"),
		unit("runner"),
		unit("lumberjack"),
		unit("patrol"),
		building("well", one, 1),
		building("market", two, 1),
		building("house_0", one, 3),
		building("house_1", one, 3),
		building("house_2", two, 2),
		building("farm", two, 1),
		building("lumberyard", two, 1),
		building("workshop", two, 1),
		building("granary", two, 1),
		building("storage_yard", two, 1),
	}
}

func builtinBuildings() []BuildingConfig {
	return []BuildingConfig{
		{
			Name: "well", Kind: KindWell, TileDef: "well", Cost: 10,
			Service: &ServiceConfig{EffectRadius: 3},
		},
		{
			Name: "market", Kind: KindMarket, TileDef: "market", Cost: 40,
			Workers: WorkersConfig{Min: 1, Max: 2},
			Service: &ServiceConfig{
				EffectRadius:         5,
				Accepted:             []resource.Kind{resource.Food},
				Capacity:             20,
				ShoppingList:         resource.ShoppingList{{Kind: resource.Food, Count: 10}},
				ConsumeFrequencySecs: 10,
				PatrolUnit:           "patrol",
				PatrolFrequencySecs:  30,
			},
		},
		{
			Name: "house", Kind: KindHouse, TileDef: "house_0", Cost: 5,
			Household: &HouseholdConfig{
				UpgradeFrequencySecs: 10,
				Levels: []HouseLevel{
					{TileDef: "house_0", MaxResidents: 2, Requirements: []Requirement{{Kind: KindWell, Radius: 3}}},
					{TileDef: "house_1", MaxResidents: 4, Requirements: []Requirement{{Kind: KindWell, Radius: 3}, {Kind: KindMarket, Radius: 5}}},
					{TileDef: "house_2", MaxResidents: 8},
				},
			},
		},
		{
			Name: "farm", Kind: KindFarm, TileDef: "farm", Cost: 30,
			Workers: WorkersConfig{Min: 1, Max: 3},
			Producer: &ProducerConfig{
				Output: resource.Food, ProductionFrequencySecs: 8,
				OutputCapacity: 10, SendThreshold: 2,
			},
		},
		{
			Name: "lumberyard", Kind: KindLumberyard, TileDef: "lumberyard", Cost: 25,
			Workers: WorkersConfig{Min: 1, Max: 2},
			Producer: &ProducerConfig{
				Output: resource.Wood, OutputCapacity: 10, SendThreshold: 2,
				Harvest: &HarvestConfig{Prop: "tree", Unit: "lumberjack", SearchRadius: 10, HarvestSecs: 4},
			},
		},
		{
			Name: "workshop", Kind: KindWorkshop, TileDef: "workshop", Cost: 50,
			Workers: WorkersConfig{Min: 1, Max: 2},
			Producer: &ProducerConfig{
				Output: resource.Tools, Inputs: []resource.StockItem{{Kind: resource.Wood, Count: 1}},
				ProductionFrequencySecs: 6, OutputCapacity: 5, InputCapacity: 4,
				AllowProducerFallback: true,
			},
		},
		{
			Name: "granary", Kind: KindGranary, TileDef: "granary", Cost: 20,
			Storage: &StorageConfig{Accepted: []resource.Kind{resource.Food}, Capacity: 100},
		},
		{
			Name: "storage_yard", Kind: KindStorageYard, TileDef: "storage_yard", Cost: 20,
			Storage: &StorageConfig{Accepted: []resource.Kind{resource.Wood, resource.Stone, resource.Tools}, Capacity: 100},
		},
	}
}

func builtinUnits() []UnitConfig {
	return []UnitConfig{
		{Name: "settler", MovementSpeed: 1.5, Traversable: nav.NodeGround | nav.NodeRoad},
		{Name: "runner", MovementSpeed: 2, Traversable: nav.NodeRoad, CarryCapacity: 4},
		{Name: "lumberjack", MovementSpeed: 1, Traversable: nav.NodeGround | nav.NodeRoad, CarryCapacity: 2},
		{Name: "patrol", MovementSpeed: 1, Traversable: nav.NodeRoad},
	}
}

func builtinProps() []PropConfig {
	return []PropConfig{
		{Name: "tree", Harvest: resource.StockItem{Kind: resource.Wood, Count: 2}, RespawnSecs: 30},
		{Name: "rock"},
	}
}
