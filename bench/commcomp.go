package bench

import (
	"gonum.org/v1/gonum/floats"

	"github.com/emontero/collmean/average"
	"github.com/emontero/collmean/collective"
)

// A CommCompSample splits one problem size's cost between local computation
// (summing the generated values) and communication (the reduction).
type CommCompSample struct {
	N             int
	ComputeMicros float64
	CommMicros    float64
}

// CommVsCompute measures, for each problem size, how long a member spends
// computing its local contribution versus reducing it to the coordinator.
// Every member must call it; samples are valid where the second return
// value is true. On the virtual network the compute share reads as zero,
// since computation is free in virtual time.
func CommVsCompute(c *collective.Comm, problemSizes []int, seed int64) ([]CommCompSample, bool, error) {
	samples := make([]CommCompSample, 0, len(problemSizes))
	for _, n := range problemSizes {
		values := average.Draw(n, average.MemberSeed(seed, c.Rank(), 0))

		computeStart := c.Time()
		local := floats.Sum(values)
		computeMicros := (c.Time() - computeStart) * 1e6

		if err := c.Barrier(); err != nil {
			return nil, false, err
		}
		commStart := c.Time()
		_, _, err := c.ReduceFloat(collective.CoordinatorRank, local, collective.Sum)
		if err != nil {
			return nil, false, err
		}
		commMicros := (c.Time() - commStart) * 1e6

		samples = append(samples, CommCompSample{
			N:             n,
			ComputeMicros: computeMicros,
			CommMicros:    commMicros,
		})
	}
	return samples, c.IsCoordinator(), nil
}
