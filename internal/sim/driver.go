// Package sim drives a synthetic frame loop against the spatial manager:
// wandering entities, then a batch of region, radius and frustum queries
// per frame, in the same order a real simulation would issue them.
package sim

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/oktant/oktant/internal/core/geometry"
	"github.com/oktant/oktant/internal/core/observability/log"
	"github.com/oktant/oktant/internal/core/spatial"
)

// Options shape one simulation run.
type Options struct {
	Entities        int
	Frames          int           // 0 runs until the context is canceled
	TickRate        time.Duration // 0 runs frames back to back
	QueriesPerFrame int
	Seed            int64
	ReportEvery     int // frames between stats log lines
}

func DefaultOptions() Options {
	return Options{
		Entities:        500,
		Frames:          0,
		TickRate:        time.Second / 60,
		QueriesPerFrame: 20,
		Seed:            1,
		ReportEvery:     300,
	}
}

// Driver owns the entities it spawns and their velocities.
type Driver struct {
	mgr    *spatial.Manager
	logger log.Log
	opts   Options
	rng    *rand.Rand

	ids        []spatial.EntityID
	positions  map[spatial.EntityID]geometry.Vec3
	velocities []geometry.Vec3
	frame      int
}

var wanderLayers = []spatial.Layer{
	spatial.LayerPlayers,
	spatial.LayerCreatures,
	spatial.LayerNPCs,
	spatial.LayerItems,
	spatial.LayerProjectiles,
}

func New(mgr *spatial.Manager, logger log.Log, opts Options) *Driver {
	d := &Driver{
		mgr:       mgr,
		logger:    logger,
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		positions: make(map[spatial.EntityID]geometry.Vec3, opts.Entities),
	}

	bounds := mgr.WorldBounds()
	for i := 0; i < opts.Entities; i++ {
		id := spatial.EntityID(i + 1)
		layer := wanderLayers[d.rng.Intn(len(wanderLayers))]
		pos := d.randomPoint(bounds)
		mgr.AddEntity(id, pos, layer)
		d.ids = append(d.ids, id)
		d.positions[id] = pos
		d.velocities = append(d.velocities, d.randomVelocity())
	}
	return d
}

// Run executes frames until the frame budget or the context ends.
func (d *Driver) Run(ctx context.Context) error {
	var ticker *time.Ticker
	if d.opts.TickRate > 0 {
		ticker = time.NewTicker(d.opts.TickRate)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		d.step()
		d.frame++

		if d.opts.ReportEvery > 0 && d.frame%d.opts.ReportEvery == 0 {
			d.report()
		}
		if d.opts.Frames > 0 && d.frame >= d.opts.Frames {
			return nil
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// step applies all of the frame's position updates first, then issues the
// frame's queries, matching the ordering contract the manager documents.
func (d *Driver) step() {
	bounds := d.mgr.WorldBounds()
	for i, id := range d.ids {
		pos := d.advance(bounds, id, i)
		d.mgr.UpdateEntity(id, pos)
	}

	for q := 0; q < d.opts.QueriesPerFrame; q++ {
		center := d.randomPoint(bounds)
		switch q % 3 {
		case 0:
			d.mgr.QueryRadius(center, 10+d.rng.Float64()*20, spatial.LayerAll)
		case 1:
			d.mgr.QueryRegion(geometry.AABBFromCenterRadius(center, 15), spatial.LayerCreatures|spatial.LayerNPCs)
		case 2:
			d.mgr.QueryFrustum(d.cameraFrustum(bounds), spatial.LayerAll)
		}
	}

	d.mgr.FindNearestEntities(d.randomPoint(bounds), 5, 50, spatial.LayerAll)
}

// advance integrates one frame of motion and bounces off the world bounds.
// The driver keeps its own position bookkeeping; entity transforms belong
// to the caller, and the manager only mirrors what it is told.
func (d *Driver) advance(bounds geometry.AABB, id spatial.EntityID, i int) geometry.Vec3 {
	pos := d.positions[id]
	vel := d.velocities[i]
	next := pos.Add(vel)

	if next.X < bounds.Min.X || next.X > bounds.Max.X {
		vel.X = -vel.X
	}
	if next.Y < bounds.Min.Y || next.Y > bounds.Max.Y {
		vel.Y = -vel.Y
	}
	if next.Z < bounds.Min.Z || next.Z > bounds.Max.Z {
		vel.Z = -vel.Z
	}
	d.velocities[i] = vel
	next = pos.Add(vel)
	d.positions[id] = next
	return next
}

func (d *Driver) randomPoint(bounds geometry.AABB) geometry.Vec3 {
	size := bounds.Size()
	return geometry.Vec3{
		X: bounds.Min.X + d.rng.Float64()*size.X,
		Y: bounds.Min.Y + d.rng.Float64()*size.Y,
		Z: bounds.Min.Z + d.rng.Float64()*size.Z,
	}
}

func (d *Driver) randomVelocity() geometry.Vec3 {
	return geometry.Vec3{
		X: (d.rng.Float64() - 0.5),
		Y: (d.rng.Float64() - 0.5),
		Z: (d.rng.Float64() - 0.5),
	}
}

// cameraFrustum orbits a camera around the world center, looking inward.
func (d *Driver) cameraFrustum(bounds geometry.AABB) geometry.Frustum {
	angle := float64(d.frame) * 0.01
	radius := bounds.Size().Length() / 2
	eye := bounds.Center().Add(geometry.Vec3{
		X: math.Cos(angle) * radius,
		Y: radius / 4,
		Z: math.Sin(angle) * radius,
	})
	view := geometry.LookAt(eye, bounds.Center(), geometry.Vec3{Y: 1})
	proj := geometry.Perspective(math.Pi/3, 16.0/9.0, 0.1, radius*4)
	return geometry.FrustumFromMatrix(proj.Mul(view))
}

func (d *Driver) report() {
	stats := d.mgr.Statistics()
	d.logger.Info("simulation frame stats",
		log.Int("frame", d.frame),
		log.Int("tracked_entities", stats.TrackedEntities),
		log.Int("node_count", stats.NodeCount),
		log.Int("max_depth", stats.MaxDepth),
		log.Uint64("total_queries", stats.TotalQueries),
		log.Float64("cache_hit_rate", stats.CacheHitRate),
		log.Int("cache_size", stats.CacheSize),
	)
}
