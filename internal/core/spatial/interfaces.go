package spatial

import (
	"github.com/oktant/oktant/internal/core/geometry"
)

// EntityID identifies an entity tracked by the subsystem. Ids are minted by
// the entity store; the subsystem only uses them as map keys and query
// results.
type EntityID uint64

// Partition is the surface other subsystems consume for spatial queries.
// Implementations are not internally synchronized: all mutation and all
// queries must happen on the goroutine driving the per-frame update, with
// the frame's position updates applied before its queries are issued.
type Partition interface {
	AddEntity(id EntityID, position geometry.Vec3, layers Layer)
	RemoveEntity(id EntityID)
	UpdateEntity(id EntityID, position geometry.Vec3)
	UpdateEntityLayers(id EntityID, layers Layer)

	QueryRegion(region geometry.AABB, mask Layer) []EntityID
	QueryRadius(center geometry.Vec3, radius float64, mask Layer) []EntityID
	QueryFrustum(frustum geometry.Frustum, mask Layer) []EntityID

	FindNearestEntities(position geometry.Vec3, count int, maxDistance float64, mask Layer) []EntityID
	FindNearestEntity(position geometry.Vec3, maxDistance float64, mask Layer) (EntityID, bool)

	EntityCount() int
	Statistics() Statistics
	Clear()
}

var _ Partition = (*Manager)(nil)
