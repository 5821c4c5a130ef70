package scoring

import (
	"math/rand/v2"
	"time"
)

// Rand is the subset of *rand.Rand the scorer draws from.
type Rand interface {
	IntN(n int) int
}

// RandFactory returns a fresh source for one scoring call.
type RandFactory func() Rand

func seededFactory(seed uint64) RandFactory {
	return func() Rand {
		return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func timeSeededFactory() RandFactory {
	return func() Rand {
		now := uint64(time.Now().UnixNano())
		return rand.New(rand.NewPCG(now, rand.Uint64()))
	}
}

// jitter returns a value in [0, n].
func jitter(rng Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.IntN(n + 1)
}

// pick returns up to n distinct elements of pool in draw order.
func pick(rng Rand, pool []string, n int) []string {
	remaining := append([]string(nil), pool...)
	if n > len(remaining) {
		n = len(remaining)
	}
	out := make([]string, 0, n)
	for len(out) < n {
		i := rng.IntN(len(remaining))
		out = append(out, remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return out
}
