package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Code(t *testing.T) {
	g := NewGeneratorWithSeed(1)

	for i := 0; i < 50; i++ {
		parts := strings.Split(g.Code(), "-")
		require.Len(t, parts, 3)
		assert.Contains(t, animals, parts[0])
		assert.Contains(t, colors, parts[1])
		assert.Contains(t, locations, parts[2])
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a, b := NewGeneratorWithSeed(7), NewGeneratorWithSeed(7)
	assert.Equal(t, a.Code(), b.Code())
	assert.Equal(t, a.Avatar(), b.Avatar())
}

func TestGenerator_Avatar(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 20; i++ {
		assert.Contains(t, Avatars, g.Avatar())
	}
}
