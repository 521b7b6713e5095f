package transport

import (
	"math/rand"
	"sync"
)

const uuidAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// uuidGen is a seeded PRNG held by the endpoint, per spec.md §4.1:
// "UUIDs are 8 characters from [a-zA-Z0-9], drawn from a seeded PRNG held in
// the endpoint."
type uuidGen struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newUUIDGen(seed int64) *uuidGen {
	return &uuidGen{rnd: rand.New(rand.NewSource(seed))}
}

func (g *uuidGen) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, 8)
	for i := range b {
		b[i] = uuidAlphabet[g.rnd.Intn(len(uuidAlphabet))]
	}
	return string(b)
}
