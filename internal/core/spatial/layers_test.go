package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayerContains(t *testing.T) {
	assert.True(t, LayerPlayers.Contains(LayerPlayers))
	assert.True(t, LayerStatic.Contains(LayerTerrain))
	assert.False(t, LayerPlayers.Contains(LayerTerrain))
	assert.False(t, LayerNone.Contains(LayerPlayers))
	assert.False(t, LayerNone.Contains(LayerAll), "unlayered entities share no bits with any mask")
}

func TestLayerWithWithout(t *testing.T) {
	l := LayerPlayers.With(LayerItems)
	assert.True(t, l.Contains(LayerPlayers))
	assert.True(t, l.Contains(LayerItems))

	l = l.Without(LayerPlayers)
	assert.False(t, l.Contains(LayerPlayers))
	assert.True(t, l.Contains(LayerItems))
}

func TestLayerString(t *testing.T) {
	assert.Equal(t, "none", LayerNone.String())
	assert.Equal(t, "all", LayerAll.String())
	assert.Equal(t, "players", LayerPlayers.String())
	assert.Equal(t, "terrain|buildings", LayerStatic.String())
}
