package bench

import (
	"github.com/pkg/errors"

	"github.com/emontero/collmean/collective"
)

// PerMemberShare splits a total problem size across a group, rounding up so
// no work is lost: ceil(total / groupSize).
func PerMemberShare(total, groupSize int) int {
	return (total + groupSize - 1) / groupSize
}

// StrongScaling fixes the total problem size and varies the group size,
// timing the full pipeline with each member working on its share. The
// per-member payload shrinks as the group grows.
func StrongScaling(runner collective.Runner, total int, groupSizes []int, iterations int, seed int64) ([]TimingSample, error) {
	samples := make([]TimingSample, 0, len(groupSizes))
	for _, size := range groupSizes {
		share := PerMemberShare(total, size)
		sample, err := scalingPoint(runner, OpStrongScaling, size, share, iterations, seed)
		if err != nil {
			return nil, errors.Wrapf(err, "strong scaling at %d members", size)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// WeakScaling fixes the per-member share and varies the group size, so the
// total problem grows with the group.
func WeakScaling(runner collective.Runner, perMember int, groupSizes []int, iterations int, seed int64) ([]TimingSample, error) {
	samples := make([]TimingSample, 0, len(groupSizes))
	for _, size := range groupSizes {
		sample, err := scalingPoint(runner, OpWeakScaling, size, perMember, iterations, seed)
		if err != nil {
			return nil, errors.Wrapf(err, "weak scaling at %d members", size)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func scalingPoint(runner collective.Runner, operation string, groupSize, perMember, iterations int, seed int64) (TimingSample, error) {
	var sample TimingSample
	var recorded bool
	err := runner(groupSize, func(c *collective.Comm) error {
		got, ok, err := PipelineSample(c, perMember, iterations, seed)
		if err != nil {
			return err
		}
		if ok {
			got.Operation = operation
			sample = got
			recorded = true
		}
		return nil
	})
	if err != nil {
		return TimingSample{}, err
	}
	if !recorded {
		return TimingSample{}, errors.New("no member recorded a sample")
	}
	return sample, nil
}
