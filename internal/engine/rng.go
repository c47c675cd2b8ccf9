package engine

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource is the randomness the engine draws from. *rand.Rand from
// math/rand/v2 satisfies it directly.
type RandomSource interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n)
}

// DefaultRNG returns a ChaCha8 source keyed from crypto/rand. It is not safe
// for concurrent use; each round actor owns its own.
func DefaultRNG() RandomSource {
	var seed [32]byte
	if _, err := cryptoRand.Read(seed[:]); err != nil {
		// fall back to the runtime-seeded global generator
		binary.LittleEndian.PutUint64(seed[:8], rand.Uint64())
		binary.LittleEndian.PutUint64(seed[8:16], rand.Uint64())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// NewSeededRNG is a replicable source for tests and simulations.
func NewSeededRNG(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, 0))
}
