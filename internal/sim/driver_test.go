package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oktant/oktant/internal/core/observability/log"
	"github.com/oktant/oktant/internal/core/spatial"
)

func newTestDriver(t *testing.T, opts Options) (*Driver, *spatial.Manager) {
	t.Helper()
	mgr, err := spatial.NewManager(spatial.DefaultConfig(), log.NewNop())
	require.NoError(t, err)
	return New(mgr, log.NewNop(), opts), mgr
}

func TestDriverRunsFixedFrameCount(t *testing.T) {
	opts := DefaultOptions()
	opts.Entities = 50
	opts.Frames = 5
	opts.TickRate = 0

	driver, mgr := newTestDriver(t, opts)

	require.NoError(t, driver.Run(context.Background()))

	assert.Equal(t, 50, mgr.EntityCount())
	stats := mgr.Statistics()
	assert.Positive(t, stats.TotalQueries)
	assert.Equal(t, 50, stats.IndexedEntities, "wandering entities bounce off the world bounds instead of leaving")
}

func TestDriverStopsOnCanceledContext(t *testing.T) {
	opts := DefaultOptions()
	opts.Entities = 10
	opts.Frames = 0
	opts.TickRate = 0

	driver, _ := newTestDriver(t, opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, driver.Run(ctx), context.Canceled)
}

func TestDriverIsDeterministicPerSeed(t *testing.T) {
	opts := DefaultOptions()
	opts.Entities = 30
	opts.Frames = 3
	opts.TickRate = 0
	opts.Seed = 99

	a, mgrA := newTestDriver(t, opts)
	b, mgrB := newTestDriver(t, opts)

	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, mgrA.Statistics().TotalQueries, mgrB.Statistics().TotalQueries)
}
