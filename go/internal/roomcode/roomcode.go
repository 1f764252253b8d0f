// Package roomcode generates human-readable room codes and avatar picks.
package roomcode

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

var (
	animals   = []string{"cat", "dog", "rabbit", "fox", "wolf", "bear", "panda", "tiger", "lion", "elephant"}
	colors    = []string{"red", "blue", "green", "yellow", "purple", "orange", "pink", "black", "white", "brown"}
	locations = []string{"forest", "mountain", "river", "lake", "beach", "desert", "cave", "field", "ocean", "valley"}

	// Avatars is the fixed animal palette users are assigned from.
	Avatars = []string{"🐶", "🐱", "🐭", "🐹", "🐰", "🦊", "🐻", "🐼", "🐨", "🐯", "🦁", "🐮", "🐷", "🐸", "🐵", "🐔", "🐧", "🐦", "🐤", "🦆", "🦉", "🐢", "🐙", "🦀", "🐳", "🐬", "🦭", "🦦"}
)

// Generator produces room codes and avatars. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator constructs a Generator with its own seed.
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(time.Now().UnixNano())
}

// NewGeneratorWithSeed is deterministic for a given seed.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Code returns an animal-color-location code.
func (g *Generator) Code() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return strings.Join([]string{
		animals[g.rng.Intn(len(animals))],
		colors[g.rng.Intn(len(colors))],
		locations[g.rng.Intn(len(locations))],
	}, "-")
}

// Avatar returns an emoji from the palette.
func (g *Generator) Avatar() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Avatars[g.rng.Intn(len(Avatars))]
}
