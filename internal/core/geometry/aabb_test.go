package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAABBContains(t *testing.T) {
	box := NewAABB(Vec3{-1, -1, -1}, Vec3{1, 1, 1})

	assert.True(t, box.Contains(Vec3{0, 0, 0}))
	assert.True(t, box.Contains(Vec3{1, 1, 1}), "boundary is inclusive")
	assert.True(t, box.Contains(Vec3{-1, -1, -1}))
	assert.False(t, box.Contains(Vec3{1.001, 0, 0}))
	assert.False(t, box.Contains(Vec3{0, -2, 0}))
}

func TestAABBIntersects(t *testing.T) {
	box := NewAABB(Vec3{0, 0, 0}, Vec3{10, 10, 10})

	assert.True(t, box.Intersects(NewAABB(Vec3{5, 5, 5}, Vec3{15, 15, 15})))
	assert.True(t, box.Intersects(NewAABB(Vec3{10, 10, 10}, Vec3{20, 20, 20})), "touching counts")
	assert.True(t, box.Intersects(NewAABB(Vec3{2, 2, 2}, Vec3{3, 3, 3})), "containment counts")
	assert.False(t, box.Intersects(NewAABB(Vec3{11, 0, 0}, Vec3{20, 10, 10})))
}

func TestAABBFromCenterRadius(t *testing.T) {
	box := AABBFromCenterRadius(Vec3{1, 2, 3}, 5)

	assert.Equal(t, Vec3{-4, -3, -2}, box.Min)
	assert.Equal(t, Vec3{6, 7, 8}, box.Max)
}

func TestAABBUnion(t *testing.T) {
	a := NewAABB(Vec3{0, 0, 0}, Vec3{1, 1, 1})
	b := NewAABB(Vec3{5, -1, 0}, Vec3{6, 0, 2})

	u := a.Union(b)
	assert.Equal(t, Vec3{0, -1, 0}, u.Min)
	assert.Equal(t, Vec3{6, 1, 2}, u.Max)
}

func TestAABBEmptySentinel(t *testing.T) {
	empty := EmptyAABB()

	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.Contains(Vec3{0, 0, 0}))

	box := NewAABB(Vec3{-1, -1, -1}, Vec3{1, 1, 1})
	assert.False(t, box.IsEmpty())
	assert.Equal(t, box, empty.Union(box), "empty unions to the other operand")
}

func TestAABBDerived(t *testing.T) {
	box := NewAABB(Vec3{0, 0, 0}, Vec3{2, 4, 8})

	assert.Equal(t, Vec3{1, 2, 4}, box.Center())
	assert.Equal(t, Vec3{2, 4, 8}, box.Size())
	assert.InDelta(t, 64, box.Volume(), 1e-12)
}
