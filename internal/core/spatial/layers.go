package spatial

import "strings"

// Layer is a bitmask classifying an entity for query filtering. Callers
// assign layers when registering an entity and pass a mask to queries;
// entities with no layers set only match LayerAll.
type Layer uint32

const (
	LayerPlayers Layer = 1 << iota
	LayerCreatures
	LayerTerrain
	LayerVegetation
	LayerWater
	LayerItems
	LayerProjectiles
	LayerTriggers
	LayerNPCs
	LayerBuildings
)

const (
	LayerNone Layer = 0
	LayerAll  Layer = ^Layer(0)

	// Common combinations.
	LayerStatic        = LayerTerrain | LayerBuildings
	LayerDynamic       = LayerPlayers | LayerCreatures | LayerItems | LayerProjectiles
	LayerInteractables = LayerItems | LayerNPCs | LayerTriggers
)

// Contains reports whether the mask and layer share any bit.
func (l Layer) Contains(other Layer) bool {
	return l&other != 0
}

// With returns the mask with the given layers added.
func (l Layer) With(other Layer) Layer {
	return l | other
}

// Without returns the mask with the given layers removed.
func (l Layer) Without(other Layer) Layer {
	return l &^ other
}

var layerNames = []struct {
	layer Layer
	name  string
}{
	{LayerPlayers, "players"},
	{LayerCreatures, "creatures"},
	{LayerTerrain, "terrain"},
	{LayerVegetation, "vegetation"},
	{LayerWater, "water"},
	{LayerItems, "items"},
	{LayerProjectiles, "projectiles"},
	{LayerTriggers, "triggers"},
	{LayerNPCs, "npcs"},
	{LayerBuildings, "buildings"},
}

func (l Layer) String() string {
	switch l {
	case LayerNone:
		return "none"
	case LayerAll:
		return "all"
	}

	var parts []string
	for _, ln := range layerNames {
		if l.Contains(ln.layer) {
			parts = append(parts, ln.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}
