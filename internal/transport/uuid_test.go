package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUIDGenFormat(t *testing.T) {
	g := newUUIDGen(42)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := g.next()
		assert.Len(t, id, 8)
		for _, c := range id {
			assert.Contains(t, uuidAlphabet, string(c))
		}
		seen[id] = true
	}
	assert.Greater(t, len(seen), 90, "a seeded PRNG over 100 draws should very rarely repeat")
}

func TestUUIDGenDeterministicForSeed(t *testing.T) {
	a := newUUIDGen(7)
	b := newUUIDGen(7)
	assert.Equal(t, a.next(), b.next(), "same seed must produce the same sequence")
}
