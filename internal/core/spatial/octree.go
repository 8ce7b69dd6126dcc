package spatial

import (
	"github.com/oktant/oktant/internal/core/geometry"
)

// entry is one tracked entity inside a leaf. Positions are stored alongside
// ids so subdivision can redistribute without consulting the manager.
type entry struct {
	id  EntityID
	pos geometry.Vec3
}

// node is one octant of the tree. A node is either a leaf holding entries
// or an internal node holding exactly eight children; never both.
type node struct {
	bounds   geometry.AABB
	depth    int
	entries  []entry
	children [8]*node
	leaf     bool
}

// octree recursively partitions the world bounds. Every tracked entity
// lives in exactly one leaf: the deepest node whose region contains its
// position. Entries are never duplicated across octant boundaries.
type octree struct {
	root       *node
	maxEntries int
	maxDepth   int
	size       int
}

func newOctree(bounds geometry.AABB, maxEntries, maxDepth int) *octree {
	return &octree{
		root:       &node{bounds: bounds, leaf: true},
		maxEntries: maxEntries,
		maxDepth:   maxDepth,
	}
}

// insert places the entity in the deepest leaf containing position.
// Returns false when the position lies outside the tree bounds.
func (t *octree) insert(id EntityID, pos geometry.Vec3) bool {
	if !t.root.bounds.Contains(pos) {
		return false
	}
	leaf := t.root.leafFor(pos)
	leaf.entries = append(leaf.entries, entry{id: id, pos: pos})
	leaf.maybeSubdivide(t.maxEntries, t.maxDepth)
	t.size++
	return true
}

// remove locates the owning leaf by the last known position and drops the
// entry. The caller supplies the position; the tree holds no reverse map.
func (t *octree) remove(id EntityID, pos geometry.Vec3) bool {
	if !t.root.bounds.Contains(pos) {
		return false
	}
	leaf := t.root.leafFor(pos)
	if leaf.removeEntry(id) {
		t.size--
		return true
	}
	return false
}

// update moves the entity from oldPos to newPos. When both resolve to the
// same leaf only the stored position changes; otherwise the entry is
// removed and reinserted. Returns true on the structural path.
func (t *octree) update(id EntityID, oldPos, newPos geometry.Vec3) bool {
	if !t.root.bounds.Contains(oldPos) {
		return t.insert(id, newPos)
	}
	leaf := t.root.leafFor(oldPos)
	if leaf.bounds.Contains(newPos) {
		for i := range leaf.entries {
			if leaf.entries[i].id == id {
				leaf.entries[i].pos = newPos
				return false
			}
		}
		// Entry missing from its expected leaf; fall through and reinsert.
	} else if leaf.removeEntry(id) {
		t.size--
	}
	t.insert(id, newPos)
	return true
}

func (t *octree) queryBox(region geometry.AABB, out []EntityID) []EntityID {
	return t.root.queryBox(region, out)
}

func (t *octree) queryRadius(center geometry.Vec3, radius float64, out []EntityID) []EntityID {
	bounds := geometry.AABBFromCenterRadius(center, radius)
	return t.root.queryRadius(bounds, center, radius*radius, out)
}

func (t *octree) queryFrustum(f geometry.Frustum, out []EntityID) []EntityID {
	return t.root.queryFrustum(f, out)
}

func (t *octree) clear() {
	t.root = &node{bounds: t.root.bounds, leaf: true}
	t.size = 0
}

func (t *octree) entityCount() int {
	return t.size
}

// statistics walks the tree and reports node count, the deepest node and
// the number of stored entries.
func (t *octree) statistics() (nodeCount, maxDepth, totalEntities int) {
	t.root.statistics(&nodeCount, &maxDepth, &totalEntities)
	return
}

func (n *node) leafFor(pos geometry.Vec3) *node {
	cur := n
	for !cur.leaf {
		cur = cur.children[cur.childIndex(pos)]
	}
	return cur
}

// childIndex picks the octant for pos: low bits x, y, z. Positions exactly
// on the split plane land in the low child.
func (n *node) childIndex(pos geometry.Vec3) int {
	center := n.bounds.Center()
	idx := 0
	if pos.X > center.X {
		idx |= 1
	}
	if pos.Y > center.Y {
		idx |= 2
	}
	if pos.Z > center.Z {
		idx |= 4
	}
	return idx
}

func (n *node) childBounds(idx int) geometry.AABB {
	center := n.bounds.Center()
	min := n.bounds.Min
	max := center
	if idx&1 != 0 {
		min.X = center.X
		max.X = n.bounds.Max.X
	}
	if idx&2 != 0 {
		min.Y = center.Y
		max.Y = n.bounds.Max.Y
	}
	if idx&4 != 0 {
		min.Z = center.Z
		max.Z = n.bounds.Max.Z
	}
	return geometry.NewAABB(min, max)
}

// maybeSubdivide splits a leaf that exceeds the entry threshold, unless it
// is already at max depth. Entries are redistributed into the eight new
// children; a child that ends up over the threshold splits in turn, so
// dense clusters sink until depth caps out.
func (n *node) maybeSubdivide(maxEntries, maxDepth int) {
	if !n.leaf || len(n.entries) <= maxEntries || n.depth >= maxDepth {
		return
	}

	n.leaf = false
	for i := range n.children {
		n.children[i] = &node{
			bounds: n.childBounds(i),
			depth:  n.depth + 1,
			leaf:   true,
		}
	}

	entries := n.entries
	n.entries = nil
	for _, e := range entries {
		child := n.children[n.childIndex(e.pos)]
		child.entries = append(child.entries, e)
	}
	for _, child := range n.children {
		child.maybeSubdivide(maxEntries, maxDepth)
	}
}

// removeEntry drops the entry for id via swap-remove. Order inside a leaf
// carries no meaning.
func (n *node) removeEntry(id EntityID) bool {
	for i := range n.entries {
		if n.entries[i].id == id {
			last := len(n.entries) - 1
			n.entries[i] = n.entries[last]
			n.entries = n.entries[:last]
			return true
		}
	}
	return false
}

func (n *node) queryBox(region geometry.AABB, out []EntityID) []EntityID {
	if !n.bounds.Intersects(region) {
		return out
	}
	if n.leaf {
		for _, e := range n.entries {
			if region.Contains(e.pos) {
				out = append(out, e.id)
			}
		}
		return out
	}
	for _, child := range n.children {
		out = child.queryBox(region, out)
	}
	return out
}

// queryRadius prunes by the sphere's enclosing box, then applies the exact
// squared-distance test so entities in the box corners outside the sphere
// are excluded.
func (n *node) queryRadius(bounds geometry.AABB, center geometry.Vec3, radiusSq float64, out []EntityID) []EntityID {
	if !n.bounds.Intersects(bounds) {
		return out
	}
	if n.leaf {
		for _, e := range n.entries {
			if e.pos.DistanceSq(center) <= radiusSq {
				out = append(out, e.id)
			}
		}
		return out
	}
	for _, child := range n.children {
		out = child.queryRadius(bounds, center, radiusSq, out)
	}
	return out
}

func (n *node) queryFrustum(f geometry.Frustum, out []EntityID) []EntityID {
	if !f.IntersectsAABB(n.bounds) {
		return out
	}
	if n.leaf {
		for _, e := range n.entries {
			if f.ContainsPoint(e.pos) {
				out = append(out, e.id)
			}
		}
		return out
	}
	for _, child := range n.children {
		out = child.queryFrustum(f, out)
	}
	return out
}

func (n *node) statistics(nodeCount, maxDepth, totalEntities *int) {
	*nodeCount++
	if n.depth > *maxDepth {
		*maxDepth = n.depth
	}
	*totalEntities += len(n.entries)
	if n.leaf {
		return
	}
	for _, child := range n.children {
		child.statistics(nodeCount, maxDepth, totalEntities)
	}
}
