package spatial

// Statistics is a point-in-time snapshot of index and cache health.
type Statistics struct {
	TrackedEntities int
	IndexedEntities int
	NodeCount       int
	MaxDepth        int

	TotalQueries    uint64
	CacheHits       uint64
	CacheMisses     uint64
	CacheHitRate    float64
	CacheSize       int
	CacheRecoveries uint64
}
