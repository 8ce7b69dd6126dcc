package spatial

import (
	"sort"
	"time"

	"github.com/oktant/oktant/internal/core/geometry"
	"github.com/oktant/oktant/internal/core/observability/log"
)

// Manager is the facade the rest of the simulation talks to. It owns the
// octree, the id→position map and the query cache, and is the single
// source of truth for where the index currently thinks each entity is.
//
// The Manager is not internally synchronized. The frame loop that feeds it
// position updates is the only execution context allowed to touch it:
// apply all of a frame's mutations first, then answer that frame's
// queries. If concurrent readers ever become necessary, the extension
// point is a double-buffered cache pair swapped once per frame, not shared
// buffers behind atomic pointers.
type Manager struct {
	cfg    Config
	bounds geometry.AABB
	logger log.Log

	tree      *octree
	positions map[EntityID]geometry.Vec3
	layers    map[EntityID]Layer
	cache     *queryCache // nil when disabled

	totalQueries uint64
}

// Option tweaks Manager construction.
type Option func(*managerOptions)

type managerOptions struct {
	clock func() time.Time
}

// WithClock overrides the time source used for cache TTLs. Tests use this
// for deterministic expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *managerOptions) {
		o.clock = clock
	}
}

// NewManager validates the config and builds an empty manager. The logger
// is required; pass log.NewNop() to silence it.
func NewManager(cfg Config, logger log.Log, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options managerOptions
	for _, opt := range opts {
		opt(&options)
	}

	m := &Manager{
		cfg:       cfg,
		bounds:    cfg.WorldBounds(),
		logger:    logger,
		tree:      newOctree(cfg.WorldBounds(), cfg.MaxEntitiesPerNode, cfg.MaxDepth),
		positions: make(map[EntityID]geometry.Vec3),
		layers:    make(map[EntityID]Layer),
	}
	if cfg.CacheEnabled {
		m.cache = newQueryCache(cfg, logger, options.clock)
	}

	logger.Info("spatial manager initialized",
		log.Any("world_min", cfg.WorldMin),
		log.Any("world_max", cfg.WorldMax),
		log.Bool("cache_enabled", cfg.CacheEnabled),
	)
	return m, nil
}

// AddEntity registers an entity at position. Registering an id that is
// already tracked is treated as an update. A position outside the world
// bounds keeps the entity tracked but out of the index (and therefore out
// of query results) until an update brings it back in.
func (m *Manager) AddEntity(id EntityID, position geometry.Vec3, layers Layer) {
	if _, ok := m.positions[id]; ok {
		m.logger.Warn("entity already tracked, treating add as update",
			log.Uint64("entity_id", uint64(id)),
		)
		m.UpdateEntity(id, position)
		m.layers[id] = layers
		return
	}

	m.positions[id] = position
	m.layers[id] = layers
	if m.bounds.Contains(position) {
		m.tree.insert(id, position)
	} else {
		m.logger.Warn("entity position outside world bounds, excluded from index",
			log.Uint64("entity_id", uint64(id)),
			log.Any("position", position),
		)
		instrumentOutOfBounds()
	}
	m.invalidateAround(position, position)
}

// RemoveEntity forgets an entity. Removing an id that was never added is a
// warning, not an error: entity lifetime and spatial registration may race
// by one frame.
func (m *Manager) RemoveEntity(id EntityID) {
	position, ok := m.positions[id]
	if !ok {
		m.logger.Warn("remove for untracked entity ignored",
			log.Uint64("entity_id", uint64(id)),
		)
		return
	}

	if m.bounds.Contains(position) {
		m.tree.remove(id, position)
	}
	delete(m.positions, id)
	delete(m.layers, id)
	m.invalidateAround(position, position)
}

// UpdateEntity moves a tracked entity to a new position. Unknown ids are
// ignored with a warning.
func (m *Manager) UpdateEntity(id EntityID, position geometry.Vec3) {
	oldPosition, ok := m.positions[id]
	if !ok {
		m.logger.Warn("update for untracked entity ignored",
			log.Uint64("entity_id", uint64(id)),
		)
		return
	}

	oldIn := m.bounds.Contains(oldPosition)
	newIn := m.bounds.Contains(position)
	switch {
	case oldIn && newIn:
		m.tree.update(id, oldPosition, position)
	case oldIn && !newIn:
		m.tree.remove(id, oldPosition)
		m.logger.Warn("entity moved outside world bounds, excluded from index",
			log.Uint64("entity_id", uint64(id)),
			log.Any("position", position),
		)
		instrumentOutOfBounds()
	case !oldIn && newIn:
		m.tree.insert(id, position)
	}

	m.positions[id] = position
	m.invalidateAround(oldPosition, position)
}

// UpdateEntityLayers changes the layer mask of a tracked entity.
func (m *Manager) UpdateEntityLayers(id EntityID, layers Layer) {
	if _, ok := m.positions[id]; !ok {
		m.logger.Warn("layer update for untracked entity ignored",
			log.Uint64("entity_id", uint64(id)),
		)
		return
	}
	m.layers[id] = layers
	// Layer changes alter query results the same way movement does.
	position := m.positions[id]
	m.invalidateAround(position, position)
}

// QueryRegion returns the ids of entities inside region. A degenerate
// region matches nothing.
func (m *Manager) QueryRegion(region geometry.AABB, mask Layer) []EntityID {
	if region.IsEmpty() {
		return nil
	}

	desc := regionDescriptor(region, mask)
	if results, ok := m.probeCache(desc); ok {
		return results
	}

	start := time.Now()
	results := m.filterLayers(m.tree.queryBox(region, nil), mask)
	instrumentQueryLatency(kindRegion, start)
	m.storeCache(desc, results, region)
	return results
}

// QueryRadius returns the ids of entities within radius of center, by
// exact Euclidean distance. A negative radius matches nothing.
func (m *Manager) QueryRadius(center geometry.Vec3, radius float64, mask Layer) []EntityID {
	if radius < 0 {
		return nil
	}

	desc := radiusDescriptor(center, radius, mask)
	if results, ok := m.probeCache(desc); ok {
		return results
	}

	start := time.Now()
	results := m.filterLayers(m.tree.queryRadius(center, radius, nil), mask)
	instrumentQueryLatency(kindRadius, start)
	m.storeCache(desc, results, geometry.AABBFromCenterRadius(center, radius))
	return results
}

// QueryFrustum returns the ids of entities inside the view frustum. The
// test is conservative with respect to entity extents: callers cull
// per-entity bounds themselves. An invalid frustum matches nothing.
func (m *Manager) QueryFrustum(frustum geometry.Frustum, mask Layer) []EntityID {
	if !frustum.Valid() {
		return nil
	}

	desc := frustumDescriptor(frustum, mask)
	if results, ok := m.probeCache(desc); ok {
		return results
	}

	start := time.Now()
	results := m.filterLayers(m.tree.queryFrustum(frustum, nil), mask)
	instrumentQueryLatency(kindFrustum, start)
	// The frustum's spatial extent is unbounded in the general case, so the
	// recorded footprint is the whole world: any movement invalidates it.
	m.storeCache(desc, results, m.bounds)
	return results
}

// FindNearestEntities returns up to count ids ordered by exact distance
// from position, searching an expanding ring: the radius starts small and
// doubles until enough candidates are found or maxDistance is reached, so
// sparse neighborhoods do not force a whole-world scan.
func (m *Manager) FindNearestEntities(position geometry.Vec3, count int, maxDistance float64, mask Layer) []EntityID {
	if count <= 0 || maxDistance <= 0 {
		return nil
	}

	radius := maxDistance / 8
	if radius <= 0 {
		radius = maxDistance
	}
	var candidates []EntityID
	for {
		candidates = m.QueryRadius(position, radius, mask)
		if len(candidates) >= count || radius >= maxDistance {
			break
		}
		radius *= 2
		if radius > maxDistance {
			radius = maxDistance
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return m.positions[candidates[i]].DistanceSq(position) < m.positions[candidates[j]].DistanceSq(position)
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

// FindNearestEntity returns the closest entity within maxDistance, if any.
func (m *Manager) FindNearestEntity(position geometry.Vec3, maxDistance float64, mask Layer) (EntityID, bool) {
	nearest := m.FindNearestEntities(position, 1, maxDistance, mask)
	if len(nearest) == 0 {
		return 0, false
	}
	return nearest[0], true
}

// EntityCount returns the number of tracked entities, including any
// currently outside the world bounds.
func (m *Manager) EntityCount() int {
	return len(m.positions)
}

// WorldBounds returns the configured world extent.
func (m *Manager) WorldBounds() geometry.AABB {
	return m.bounds
}

// Clear drops every entity and all cached results.
func (m *Manager) Clear() {
	m.tree.clear()
	m.positions = make(map[EntityID]geometry.Vec3)
	m.layers = make(map[EntityID]Layer)
	if m.cache != nil {
		m.cache.Clear()
	}
	m.logger.Info("spatial manager cleared")
}

// Statistics assembles a snapshot of index and cache health.
func (m *Manager) Statistics() Statistics {
	nodeCount, maxDepth, indexed := m.tree.statistics()
	stats := Statistics{
		TrackedEntities: len(m.positions),
		IndexedEntities: indexed,
		NodeCount:       nodeCount,
		MaxDepth:        maxDepth,
		TotalQueries:    m.totalQueries,
	}
	if m.cache != nil {
		stats.CacheHits = m.cache.hits
		stats.CacheMisses = m.cache.misses
		stats.CacheHitRate = m.cache.HitRate()
		stats.CacheSize = m.cache.Len()
		stats.CacheRecoveries = m.cache.recoveries
	}
	return stats
}

func (m *Manager) probeCache(desc descriptor) ([]EntityID, bool) {
	m.totalQueries++
	if m.cache == nil {
		return nil, false
	}
	return m.cache.get(desc)
}

func (m *Manager) storeCache(desc descriptor, results []EntityID, footprint geometry.AABB) {
	if m.cache == nil {
		return
	}
	m.cache.put(desc, results, footprint)
}

// invalidateAround drops cache entries covering the neighborhood of a
// move: the union of boxes around the old and new positions, sized by the
// configured invalidation radius. Cache entries elsewhere stay live.
func (m *Manager) invalidateAround(oldPosition, newPosition geometry.Vec3) {
	if m.cache == nil {
		return
	}
	affected := geometry.AABBFromCenterRadius(oldPosition, m.cfg.InvalidationRadius).
		Union(geometry.AABBFromCenterRadius(newPosition, m.cfg.InvalidationRadius))
	m.cache.InvalidateRegion(affected)
}

func (m *Manager) filterLayers(ids []EntityID, mask Layer) []EntityID {
	if mask == LayerAll {
		if ids == nil {
			return []EntityID{}
		}
		return ids
	}
	filtered := ids[:0]
	for _, id := range ids {
		if m.layers[id].Contains(mask) {
			filtered = append(filtered, id)
		}
	}
	return filtered
}
