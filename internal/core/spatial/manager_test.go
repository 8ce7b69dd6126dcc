package spatial

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oktant/oktant/internal/core/geometry"
	"github.com/oktant/oktant/internal/core/observability/log"
)

func newTestManager(t *testing.T, mutate ...func(*Config)) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	mgr, err := NewManager(cfg, log.NewNop())
	require.NoError(t, err)
	return mgr
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorldMin, cfg.WorldMax = cfg.WorldMax, cfg.WorldMin

	_, err := NewManager(cfg, log.NewNop())
	assert.Error(t, err)
}

func TestManagerRadiusQuery(t *testing.T) {
	mgr := newTestManager(t, func(c *Config) {
		c.WorldMin = geometry.Vec3{X: -200, Y: -200, Z: -200}
		c.WorldMax = geometry.Vec3{X: 200, Y: 200, Z: 200}
	})
	mgr.AddEntity(1, geometry.Vec3{}, LayerPlayers)
	mgr.AddEntity(2, geometry.Vec3{X: 100, Y: 100, Z: 100}, LayerPlayers)

	ids := mgr.QueryRadius(geometry.Vec3{}, 10, LayerAll)
	assert.Equal(t, []EntityID{1}, ids)

	assert.Empty(t, mgr.QueryRadius(geometry.Vec3{}, -1, LayerAll), "negative radius matches nothing")
}

func TestManagerRegionQuery(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddEntity(1, geometry.Vec3{X: 5, Y: 5, Z: 5}, LayerNone)
	mgr.AddEntity(2, geometry.Vec3{X: -5, Y: -5, Z: -5}, LayerNone)

	region := geometry.NewAABB(geometry.Vec3{}, geometry.Vec3{X: 10, Y: 10, Z: 10})
	assert.Equal(t, []EntityID{1}, mgr.QueryRegion(region, LayerAll))

	assert.Empty(t, mgr.QueryRegion(geometry.EmptyAABB(), LayerAll), "degenerate region matches nothing")
}

// Randomized cross-check against a linear scan. The index must agree with
// brute force on every query shape.
func TestManagerQueriesMatchBruteForce(t *testing.T) {
	mgr := newTestManager(t, func(c *Config) { c.CacheEnabled = false })
	rng := rand.New(rand.NewSource(7))

	positions := make(map[EntityID]geometry.Vec3)
	for i := 0; i < 200; i++ {
		id := EntityID(i)
		pos := geometry.Vec3{
			X: rng.Float64()*200 - 100,
			Y: rng.Float64()*200 - 100,
			Z: rng.Float64()*200 - 100,
		}
		positions[id] = pos
		mgr.AddEntity(id, pos, LayerCreatures)
	}

	for i := 0; i < 20; i++ {
		center := geometry.Vec3{
			X: rng.Float64()*200 - 100,
			Y: rng.Float64()*200 - 100,
			Z: rng.Float64()*200 - 100,
		}
		radius := rng.Float64() * 80

		var want []EntityID
		for id, pos := range positions {
			if pos.DistanceSq(center) <= radius*radius {
				want = append(want, id)
			}
		}
		assert.ElementsMatch(t, want, mgr.QueryRadius(center, radius, LayerAll))

		region := geometry.AABBFromCenterRadius(center, radius)
		want = want[:0]
		for id, pos := range positions {
			if region.Contains(pos) {
				want = append(want, id)
			}
		}
		assert.ElementsMatch(t, want, mgr.QueryRegion(region, LayerAll))
	}
}

func TestManagerFrustumQueryMatchesBruteForce(t *testing.T) {
	mgr := newTestManager(t, func(c *Config) { c.CacheEnabled = false })
	rng := rand.New(rand.NewSource(11))

	positions := make(map[EntityID]geometry.Vec3)
	for i := 0; i < 200; i++ {
		id := EntityID(i)
		pos := geometry.Vec3{
			X: rng.Float64()*200 - 100,
			Y: rng.Float64()*200 - 100,
			Z: rng.Float64()*200 - 100,
		}
		positions[id] = pos
		mgr.AddEntity(id, pos, LayerNone)
	}

	view := geometry.LookAt(geometry.Vec3{Z: 150}, geometry.Vec3{}, geometry.Vec3{Y: 1})
	proj := geometry.Perspective(math.Pi/3, 16.0/9.0, 0.1, 500)
	frustum := geometry.FrustumFromMatrix(proj.Mul(view))
	require.True(t, frustum.Valid())

	var want []EntityID
	for id, pos := range positions {
		if frustum.ContainsPoint(pos) {
			want = append(want, id)
		}
	}
	got := mgr.QueryFrustum(frustum, LayerAll)
	assert.NotEmpty(t, got)
	assert.ElementsMatch(t, want, got)

	assert.Empty(t, mgr.QueryFrustum(geometry.FrustumFromMatrix(geometry.Mat4{}), LayerAll),
		"invalid frustum matches nothing")
}

func TestManagerUpdateMovesEntity(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddEntity(1, geometry.Vec3{X: 50, Y: 50, Z: 50}, LayerNone)

	mgr.UpdateEntity(1, geometry.Vec3{X: -50, Y: -50, Z: -50})

	assert.Empty(t, mgr.QueryRadius(geometry.Vec3{X: 50, Y: 50, Z: 50}, 5, LayerAll))
	assert.Equal(t, []EntityID{1}, mgr.QueryRadius(geometry.Vec3{X: -50, Y: -50, Z: -50}, 5, LayerAll))
}

func TestManagerUpdateSamePositionIsIdempotent(t *testing.T) {
	mgr := newTestManager(t, func(c *Config) { c.CacheEnabled = false })
	for i := 0; i < 20; i++ {
		mgr.AddEntity(EntityID(i), geometry.Vec3{X: float64(i*9 - 90)}, LayerNone)
	}

	p := geometry.Vec3{X: 33, Y: 7, Z: -12}
	mgr.UpdateEntity(3, p)
	before := mgr.QueryRegion(mgr.WorldBounds(), LayerAll)
	statsBefore := mgr.Statistics()

	// Repeating the same update must leave every observable unchanged.
	mgr.UpdateEntity(3, p)

	assert.ElementsMatch(t, before, mgr.QueryRegion(mgr.WorldBounds(), LayerAll))
	assert.Equal(t, []EntityID{3}, mgr.QueryRadius(p, 1, LayerAll))

	statsAfter := mgr.Statistics()
	assert.Equal(t, statsBefore.TrackedEntities, statsAfter.TrackedEntities)
	assert.Equal(t, statsBefore.IndexedEntities, statsAfter.IndexedEntities)
	assert.Equal(t, statsBefore.NodeCount, statsAfter.NodeCount)
	assert.Equal(t, statsBefore.MaxDepth, statsAfter.MaxDepth)
}

func TestManagerUnknownIDsAreNoops(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddEntity(1, geometry.Vec3{}, LayerNone)

	mgr.UpdateEntity(99, geometry.Vec3{X: 10})
	mgr.UpdateEntityLayers(99, LayerPlayers)
	mgr.RemoveEntity(99)

	assert.Equal(t, 1, mgr.EntityCount())
	assert.Equal(t, []EntityID{1}, mgr.QueryRadius(geometry.Vec3{}, 1, LayerAll))
}

func TestManagerAddExistingActsAsUpdate(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddEntity(1, geometry.Vec3{X: 10}, LayerPlayers)

	mgr.AddEntity(1, geometry.Vec3{X: -10}, LayerCreatures)

	assert.Equal(t, 1, mgr.EntityCount())
	assert.Empty(t, mgr.QueryRadius(geometry.Vec3{X: 10}, 1, LayerAll))
	assert.Equal(t, []EntityID{1}, mgr.QueryRadius(geometry.Vec3{X: -10}, 1, LayerCreatures))
}

func TestManagerOutOfBoundsEntity(t *testing.T) {
	mgr := newTestManager(t)

	// Tracked but excluded from the index until it re-enters the world.
	mgr.AddEntity(1, geometry.Vec3{X: 500}, LayerNone)
	assert.Equal(t, 1, mgr.EntityCount())
	assert.Empty(t, mgr.QueryRegion(mgr.WorldBounds(), LayerAll))

	mgr.UpdateEntity(1, geometry.Vec3{X: 10})
	assert.Equal(t, []EntityID{1}, mgr.QueryRegion(mgr.WorldBounds(), LayerAll))

	mgr.UpdateEntity(1, geometry.Vec3{X: -500})
	assert.Equal(t, 1, mgr.EntityCount())
	assert.Empty(t, mgr.QueryRegion(mgr.WorldBounds(), LayerAll))
}

func TestManagerLayerFiltering(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddEntity(1, geometry.Vec3{X: 1}, LayerPlayers)
	mgr.AddEntity(2, geometry.Vec3{X: 2}, LayerTerrain)
	mgr.AddEntity(3, geometry.Vec3{X: 3}, LayerNone)

	all := mgr.QueryRadius(geometry.Vec3{}, 10, LayerAll)
	assert.ElementsMatch(t, []EntityID{1, 2, 3}, all, "LayerAll matches everything, unlayered entities included")

	assert.Equal(t, []EntityID{1}, mgr.QueryRadius(geometry.Vec3{}, 10, LayerPlayers))
	assert.Equal(t, []EntityID{2}, mgr.QueryRadius(geometry.Vec3{}, 10, LayerStatic))
	assert.Empty(t, mgr.QueryRadius(geometry.Vec3{}, 10, LayerWater))

	mgr.UpdateEntityLayers(2, LayerWater)
	assert.Equal(t, []EntityID{2}, mgr.QueryRadius(geometry.Vec3{}, 10, LayerWater))
}

func TestManagerFindNearestEntities(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddEntity(1, geometry.Vec3{X: 1}, LayerCreatures)
	mgr.AddEntity(2, geometry.Vec3{X: 3}, LayerCreatures)
	mgr.AddEntity(3, geometry.Vec3{X: 7}, LayerCreatures)
	mgr.AddEntity(4, geometry.Vec3{X: 60}, LayerCreatures)

	nearest := mgr.FindNearestEntities(geometry.Vec3{}, 3, 50, LayerAll)
	assert.Equal(t, []EntityID{1, 2, 3}, nearest, "ordered by distance")

	nearest = mgr.FindNearestEntities(geometry.Vec3{}, 10, 50, LayerAll)
	assert.Equal(t, []EntityID{1, 2, 3}, nearest, "entity beyond max distance excluded")

	id, ok := mgr.FindNearestEntity(geometry.Vec3{}, 50, LayerAll)
	require.True(t, ok)
	assert.Equal(t, EntityID(1), id)

	_, ok = mgr.FindNearestEntity(geometry.Vec3{X: -90, Y: -90, Z: -90}, 5, LayerAll)
	assert.False(t, ok)

	assert.Empty(t, mgr.FindNearestEntities(geometry.Vec3{}, 0, 50, LayerAll))
	assert.Empty(t, mgr.FindNearestEntities(geometry.Vec3{}, 3, 0, LayerAll))
}

// The cache must be semantically invisible: the same operation sequence
// against a cached and an uncached manager yields identical results.
func TestManagerCacheTransparency(t *testing.T) {
	cached := newTestManager(t)
	plain := newTestManager(t, func(c *Config) { c.CacheEnabled = false })
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		pos := geometry.Vec3{
			X: rng.Float64()*200 - 100,
			Y: rng.Float64()*200 - 100,
			Z: rng.Float64()*200 - 100,
		}
		cached.AddEntity(EntityID(i), pos, LayerItems)
		plain.AddEntity(EntityID(i), pos, LayerItems)
	}

	center := geometry.Vec3{X: 10, Y: 10, Z: 10}
	for round := 0; round < 3; round++ {
		assert.ElementsMatch(t,
			plain.QueryRadius(center, 40, LayerAll),
			cached.QueryRadius(center, 40, LayerAll))

		// Move an entity through the queried neighborhood between rounds.
		newPos := geometry.Vec3{X: float64(round * 10)}
		cached.UpdateEntity(5, newPos)
		plain.UpdateEntity(5, newPos)
	}
}

func TestManagerCacheHitsAndInvalidation(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	mgr, err := NewManager(cfg, log.NewNop(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	mgr.AddEntity(1, geometry.Vec3{}, LayerNone)
	mgr.AddEntity(2, geometry.Vec3{X: 80, Y: 80, Z: 80}, LayerNone)

	nearOrigin := func() []EntityID { return mgr.QueryRadius(geometry.Vec3{}, 5, LayerAll) }
	farCorner := geometry.NewAABB(geometry.Vec3{X: 70, Y: 70, Z: 70}, geometry.Vec3{X: 90, Y: 90, Z: 90})

	nearOrigin()
	mgr.QueryRegion(farCorner, LayerAll)
	base := mgr.Statistics()
	assert.Equal(t, uint64(0), base.CacheHits)
	assert.Equal(t, 2, base.CacheSize)

	// Identical repeats are served from cache.
	assert.Equal(t, []EntityID{1}, nearOrigin())
	assert.Equal(t, []EntityID{2}, mgr.QueryRegion(farCorner, LayerAll))
	assert.Equal(t, base.CacheHits+2, mgr.Statistics().CacheHits)

	// A query within epsilon of a cached one hits the same entry.
	mgr.QueryRadius(geometry.Vec3{X: 0.001}, 5, LayerAll)
	assert.Equal(t, base.CacheHits+3, mgr.Statistics().CacheHits)

	// Moving entity 1 invalidates the nearby entry only; the far corner
	// entry survives and keeps hitting.
	mgr.UpdateEntity(1, geometry.Vec3{X: 1})
	stats := mgr.Statistics()
	assert.Equal(t, []EntityID{2}, mgr.QueryRegion(farCorner, LayerAll))
	assert.Equal(t, stats.CacheHits+1, mgr.Statistics().CacheHits)

	stats = mgr.Statistics()
	assert.Equal(t, []EntityID{1}, nearOrigin())
	assert.Equal(t, stats.CacheMisses+1, mgr.Statistics().CacheMisses, "invalidated entry recomputed")
}

func TestManagerStatistics(t *testing.T) {
	mgr := newTestManager(t)
	for i := 0; i < 40; i++ {
		mgr.AddEntity(EntityID(i), geometry.Vec3{X: float64(i*4 - 80)}, LayerNone)
	}
	mgr.QueryRadius(geometry.Vec3{}, 10, LayerAll)

	stats := mgr.Statistics()
	assert.Equal(t, 40, stats.TrackedEntities)
	assert.Equal(t, 40, stats.IndexedEntities)
	assert.Greater(t, stats.NodeCount, 1)
	assert.Equal(t, uint64(1), stats.TotalQueries)
	assert.Equal(t, 1, stats.CacheSize)
}

func TestManagerClear(t *testing.T) {
	mgr := newTestManager(t)
	for i := 0; i < 30; i++ {
		mgr.AddEntity(EntityID(i), geometry.Vec3{X: float64(i)}, LayerNone)
	}
	mgr.QueryRadius(geometry.Vec3{}, 10, LayerAll)

	mgr.Clear()

	assert.Equal(t, 0, mgr.EntityCount())
	assert.Empty(t, mgr.QueryRegion(mgr.WorldBounds(), LayerAll))
	stats := mgr.Statistics()
	assert.Equal(t, 0, stats.IndexedEntities)
	assert.Equal(t, 0, stats.CacheSize)
}

func TestManagerWholeWorldQueryContainsEverything(t *testing.T) {
	mgr := newTestManager(t, func(c *Config) { c.CacheEnabled = false })
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 150; i++ {
		mgr.AddEntity(EntityID(i), geometry.Vec3{
			X: rng.Float64()*200 - 100,
			Y: rng.Float64()*200 - 100,
			Z: rng.Float64()*200 - 100,
		}, LayerNone)
	}

	assert.Len(t, mgr.QueryRegion(mgr.WorldBounds(), LayerAll), 150)
}
