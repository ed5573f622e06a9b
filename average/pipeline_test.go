package average_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/emontero/collmean/average"
	"github.com/emontero/collmean/collective"
	"github.com/emontero/collmean/collective/inproc"
	"github.com/emontero/collmean/collective/simgroup"
)

const tolerance = 1e-10

// runPipeline executes one full run and returns the per-rank results.
func runPipeline(t *testing.T, runner collective.Runner, size, n int, seed int64, round int) []average.Result {
	t.Helper()
	results := make([]average.Result, size)
	err := runner(size, func(c *collective.Comm) error {
		p := &average.Pipeline{
			Comm:     c,
			Role:     average.RoleFor(c.Rank(), &average.Coordinator{N: n}),
			BaseSeed: seed,
			Round:    round,
		}
		res, err := p.Run()
		if err != nil {
			return err
		}
		results[c.Rank()] = res
		return nil
	})
	require.NoError(t, err)
	return results
}

func TestPipelineComputesTrueMean(t *testing.T) {
	runners := map[string]collective.Runner{
		"inproc":   inproc.Runner(30 * time.Second),
		"simgroup": simgroup.Runner(simgroup.DefaultConfig()),
	}
	for name, runner := range runners {
		t.Run(name, func(t *testing.T) {
			for _, size := range []int{1, 2, 4, 7} {
				for _, n := range []int{1, 10, 250} {
					t.Run(fmt.Sprintf("Size=%d,N=%d", size, n), func(t *testing.T) {
						results := runPipeline(t, runner, size, n, average.DefaultBaseSeed, 0)

						var expectedSum float64
						for rank := 0; rank < size; rank++ {
							values := average.Draw(n, average.MemberSeed(average.DefaultBaseSeed, rank, 0))
							expectedSum += floats.Sum(values)
						}
						expectedMean := expectedSum / float64(n*size)

						for rank, res := range results {
							assert.Equal(t, rank, res.Rank)
							assert.Equal(t, n, res.N)
							assert.InDelta(t, expectedMean, res.Mean, tolerance,
								"rank %d disagrees on the mean", rank)
							assert.GreaterOrEqual(t, res.Mean, 0.0)
							assert.LessOrEqual(t, res.Mean, average.ValueRange)
						}
						assert.InDelta(t, expectedSum, results[0].Total, 1e-9)
					})
				}
			}
		})
	}
}

func TestPipelineIdenticalAcrossRepeats(t *testing.T) {
	runner := inproc.Runner(30 * time.Second)
	const size = 4
	const n = 500
	first := runPipeline(t, runner, size, n, 7, 3)
	for k := 0; k < 3; k++ {
		repeat := runPipeline(t, runner, size, n, 7, 3)
		for rank := range repeat {
			assert.Equal(t, first[rank].Mean, repeat[rank].Mean,
				"identically seeded runs must agree exactly")
			assert.Equal(t, first[rank].Partial, repeat[rank].Partial)
		}
	}
}

func TestPipelineEndToEndDefaults(t *testing.T) {
	// S=4, N=1000, seeds rank+42: the mean of uniform [0,100) draws
	// should land near 50.
	results := runPipeline(t, inproc.Runner(30*time.Second), 4, 1000, average.DefaultBaseSeed, 0)
	mean := results[0].Mean
	assert.InDelta(t, 50.0, mean, 5.0)
	for _, res := range results {
		assert.Equal(t, mean, res.Mean)
		assert.Len(t, res.Sample, 5)
	}
}

func TestPipelineHonorsZeroSeed(t *testing.T) {
	// Seed 0 is a real seed, not a request for the default.
	const size = 3
	const n = 100
	results := runPipeline(t, inproc.Runner(30*time.Second), size, n, 0, 0)
	for rank, res := range results {
		want := floats.Sum(average.Draw(n, average.MemberSeed(0, rank, 0)))
		assert.Equal(t, want, res.Partial, "rank %d", rank)
	}
}

func TestPipelineInvalidParameterAbortsGroup(t *testing.T) {
	const size = 4
	var mu sync.Mutex
	errsByRank := map[int]error{}
	err := inproc.Runner(30*time.Second)(size, func(c *collective.Comm) error {
		p := &average.Pipeline{
			Comm: c,
			Role: average.RoleFor(c.Rank(), &average.Coordinator{N: 0}),
		}
		_, runErr := p.Run()
		mu.Lock()
		errsByRank[c.Rank()] = runErr
		mu.Unlock()
		// The abort is the outcome under test; don't fail the runner.
		return nil
	})
	require.NoError(t, err)

	var invalid *average.InvalidParameterError
	require.ErrorAs(t, errsByRank[0], &invalid)
	assert.Equal(t, 0, invalid.N)
	for rank := 1; rank < size; rank++ {
		assert.ErrorIs(t, errsByRank[rank], average.ErrRunAborted, "rank %d", rank)
	}
}

func TestCoordinatorPublishesResult(t *testing.T) {
	var published *average.Result
	err := inproc.Runner(30*time.Second)(2, func(c *collective.Comm) error {
		coord := &average.Coordinator{N: 10, OnResult: func(res average.Result) error {
			published = &res
			return nil
		}}
		p := &average.Pipeline{Comm: c, Role: average.RoleFor(c.Rank(), coord)}
		_, err := p.Run()
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, 0, published.Rank)
	assert.Equal(t, 10, published.N)
}

func TestMemberSeedsNeverCollide(t *testing.T) {
	seen := map[int64]bool{}
	for rank := 0; rank < 8; rank++ {
		seed := average.MemberSeed(average.DefaultBaseSeed, rank, 0)
		assert.False(t, seen[seed], "rank %d reuses seed %d", rank, seed)
		seen[seed] = true
	}
}

func TestDrawDeterministicAndInRange(t *testing.T) {
	a := average.Draw(1000, 123)
	b := average.Draw(1000, 123)
	assert.Equal(t, a, b)
	for _, v := range a {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, average.ValueRange)
	}
}
