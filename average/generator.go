package average

import "math/rand"

// ValueRange is the exclusive upper bound of generated values; draws are
// uniform over [0, ValueRange).
const ValueRange = 100.0

// DefaultBaseSeed matches the historical seeding of the original program,
// where member i drew from a generator seeded with i+42.
const DefaultBaseSeed = 42

// MemberSeed derives the seed for one member's generator. Different ranks
// never share a seed, and the round offset keeps repeated rounds from
// redrawing the same sequence.
func MemberSeed(base int64, rank, round int) int64 {
	return base + int64(rank) + int64(round)
}

// Draw produces n pseudo-random values in [0, ValueRange) from the given
// seed. The same seed always yields the same sequence.
func Draw(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = rng.Float64() * ValueRange
	}
	return values
}
