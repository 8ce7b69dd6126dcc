package spatial

import (
	"container/list"
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/oktant/oktant/internal/core/geometry"
	"github.com/oktant/oktant/internal/core/observability/log"
)

type queryKind uint8

const (
	kindRegion queryKind = iota
	kindRadius
	kindFrustum
)

func (k queryKind) String() string {
	switch k {
	case kindRegion:
		return "region"
	case kindRadius:
		return "radius"
	case kindFrustum:
		return "frustum"
	default:
		return "unknown"
	}
}

// maxDescriptorParams is enough for the largest query shape: six frustum
// planes of four components each.
const maxDescriptorParams = 24

// descriptor canonically identifies a query: its kind, layer mask and
// geometric parameters. Two descriptors are equivalent when every parameter
// pair lies within the configured epsilon.
type descriptor struct {
	kind   queryKind
	mask   Layer
	params [maxDescriptorParams]float64
	n      int
}

func regionDescriptor(region geometry.AABB, mask Layer) descriptor {
	d := descriptor{kind: kindRegion, mask: mask, n: 6}
	d.params = [maxDescriptorParams]float64{
		region.Min.X, region.Min.Y, region.Min.Z,
		region.Max.X, region.Max.Y, region.Max.Z,
	}
	return d
}

func radiusDescriptor(center geometry.Vec3, radius float64, mask Layer) descriptor {
	d := descriptor{kind: kindRadius, mask: mask, n: 4}
	d.params = [maxDescriptorParams]float64{center.X, center.Y, center.Z, radius}
	return d
}

func frustumDescriptor(f geometry.Frustum, mask Layer) descriptor {
	d := descriptor{kind: kindFrustum, mask: mask, n: 24}
	for i, pl := range f.Planes {
		d.params[i*4+0] = pl.Normal.X
		d.params[i*4+1] = pl.Normal.Y
		d.params[i*4+2] = pl.Normal.Z
		d.params[i*4+3] = pl.D
	}
	return d
}

// hash quantizes every parameter to the absolute epsilon and hashes the
// buckets. Equivalent queries land in the same bucket; the final verdict is
// always the epsilon comparison in equalWithin, never hash equality alone.
func (d descriptor) hash(epsilon float64) uint64 {
	var h xxhash.Digest
	var buf [8]byte

	buf[0] = byte(d.kind)
	_, _ = h.Write(buf[:1])
	binary.LittleEndian.PutUint32(buf[:4], uint32(d.mask))
	_, _ = h.Write(buf[:4])

	for i := 0; i < d.n; i++ {
		q := int64(math.Round(d.params[i] / epsilon))
		binary.LittleEndian.PutUint64(buf[:], uint64(q))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func (d descriptor) equalWithin(o descriptor, epsilon float64) bool {
	if d.kind != o.kind || d.mask != o.mask || d.n != o.n {
		return false
	}
	for i := 0; i < d.n; i++ {
		if math.Abs(d.params[i]-o.params[i]) > epsilon {
			return false
		}
	}
	return true
}

type cacheEntry struct {
	hash      uint64
	desc      descriptor
	results   []EntityID
	footprint geometry.AABB
	createdAt time.Time
	elem      *list.Element
}

// queryCache memoizes query results keyed by canonicalized descriptors.
// Entries expire per-kind (frustum queries churn with the camera and get a
// short TTL), are evicted least-recently-used past the entry ceiling, and
// are invalidated when a reported entity movement overlaps their recorded
// footprint. The cache is only ever touched from the goroutine owning the
// Manager, so it carries no locks.
type queryCache struct {
	epsilon    float64
	maxEntries int
	ttl        [3]time.Duration

	buckets map[uint64][]*cacheEntry
	count   int        // entries across all buckets; must match lru.Len()
	lru     *list.List // front = most recently used
	logger  log.Log
	now     func() time.Time

	hits       uint64
	misses     uint64
	recoveries uint64
}

func newQueryCache(cfg Config, logger log.Log, now func() time.Time) *queryCache {
	if now == nil {
		now = time.Now
	}
	c := &queryCache{
		epsilon:    cfg.CacheEpsilon,
		maxEntries: cfg.CacheMaxEntries,
		buckets:    make(map[uint64][]*cacheEntry),
		lru:        list.New(),
		logger:     logger,
		now:        now,
	}
	c.ttl[kindRegion] = time.Duration(cfg.RegionTTL)
	c.ttl[kindRadius] = time.Duration(cfg.RadiusTTL)
	c.ttl[kindFrustum] = time.Duration(cfg.FrustumTTL)
	return c
}

// get returns a copy of the cached result for an equivalent descriptor, or
// nil, false on a miss. Expired entries are dropped on the way through.
func (c *queryCache) get(d descriptor) ([]EntityID, bool) {
	if c.lru.Len() != c.count {
		// Structural invariant broken; discard everything and recompute
		// from the index.
		c.logger.Error("query cache inconsistent, discarding contents",
			log.Int("lru_len", c.lru.Len()),
			log.Int("bucket_entries", c.count),
		)
		c.Clear()
		c.recoveries++
		c.misses++
		return nil, false
	}

	h := d.hash(c.epsilon)
	for _, e := range c.buckets[h] {
		if !d.equalWithin(e.desc, c.epsilon) {
			continue
		}
		if c.expired(e) {
			c.evict(e)
			break
		}
		c.lru.MoveToFront(e.elem)
		c.hits++
		instrumentCacheHit(d.kind)
		out := make([]EntityID, len(e.results))
		copy(out, e.results)
		return out, true
	}
	c.misses++
	instrumentCacheMiss(d.kind)
	return nil, false
}

// put stores results under the descriptor with the spatial footprint the
// query covered. The slice is copied; the cache never aliases caller data.
func (c *queryCache) put(d descriptor, results []EntityID, footprint geometry.AABB) {
	h := d.hash(c.epsilon)
	for _, e := range c.buckets[h] {
		if d.equalWithin(e.desc, c.epsilon) {
			e.results = append(e.results[:0], results...)
			e.footprint = footprint
			e.createdAt = c.now()
			c.lru.MoveToFront(e.elem)
			return
		}
	}

	e := &cacheEntry{
		hash:      h,
		desc:      d,
		results:   append([]EntityID(nil), results...),
		footprint: footprint,
		createdAt: c.now(),
	}
	e.elem = c.lru.PushFront(e)
	c.buckets[h] = append(c.buckets[h], e)
	c.count++

	for c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.evict(oldest.Value.(*cacheEntry))
		instrumentCacheEviction()
	}
}

// InvalidateRegion drops every entry whose recorded footprint intersects
// the affected region. Entries elsewhere survive; the cache is never
// cleared wholesale on entity movement.
func (c *queryCache) InvalidateRegion(region geometry.AABB) int {
	var dropped int
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*cacheEntry)
		if e.footprint.Intersects(region) {
			c.evict(e)
			dropped++
		}
		elem = next
	}
	if dropped > 0 {
		instrumentCacheInvalidation(dropped)
	}
	return dropped
}

// Cleanup sweeps expired entries.
func (c *queryCache) Cleanup() {
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*cacheEntry)
		if c.expired(e) {
			c.evict(e)
		}
		elem = next
	}
}

// Clear discards all entries. This is the recovery path; hit/miss counters
// survive so statistics stay meaningful.
func (c *queryCache) Clear() {
	c.buckets = make(map[uint64][]*cacheEntry)
	c.lru.Init()
	c.count = 0
}

func (c *queryCache) Len() int {
	return c.lru.Len()
}

func (c *queryCache) HitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func (c *queryCache) expired(e *cacheEntry) bool {
	return c.now().Sub(e.createdAt) > c.ttl[e.desc.kind]
}

func (c *queryCache) evict(e *cacheEntry) {
	c.lru.Remove(e.elem)
	bucket := c.buckets[e.hash]
	for i, be := range bucket {
		if be == e {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.buckets, e.hash)
	} else {
		c.buckets[e.hash] = bucket
	}
	c.count--
}
