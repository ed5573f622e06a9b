// Package average computes a single global mean over values generated
// independently by every member of a collective group.
//
// One run walks a fixed sequence of states: barrier, parameter broadcast,
// local generation, barrier, sum reduction to the coordinator,
// finalization, result broadcast, barrier. Every member must execute the
// whole sequence; any failure aborts the run for the entire group.
package average

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/emontero/collmean/collective"
)

// ErrRunAborted is returned on members when the coordinator signals a
// coordinated abort instead of distributing a run parameter.
var ErrRunAborted = errors.New("run aborted by coordinator")

// abortSentinel is broadcast in place of the values-per-member count when
// the coordinator's input fails validation, so that no member is left
// waiting on a collective that will never be called.
const abortSentinel = -1

// sampleLen is how many locally generated values each member keeps in its
// result for reporting.
const sampleLen = 5

// A Result records one member's view of a completed run.
type Result struct {
	Rank int
	Size int

	// N is the values-per-member count that was distributed.
	N int

	// Sample holds the first few locally generated values.
	Sample []float64

	// Partial is the member's local contribution (the sum of its values).
	Partial float64

	// Total is the group-wide sum. Valid only on the coordinator.
	Total float64

	// Mean is the final statistic; identical on every member.
	Mean float64

	// Phase timings in microseconds, on the member's own clock.
	GenerateMicros float64
	ReduceMicros   float64
	BcastMicros    float64
}

// A Pipeline runs the computation for one member of the group.
type Pipeline struct {
	Comm *collective.Comm
	Role Role

	// BaseSeed offsets every member's generator seed and is used as given;
	// callers wanting the historical seeding pass DefaultBaseSeed.
	BaseSeed int64

	// Round distinguishes repeated runs so that each draws fresh values.
	Round int
}

// Run executes the full pipeline and returns the member's result.
//
// On the coordinator an invalid parameter aborts the whole group cleanly
// and surfaces as an InvalidParameterError; the other members observe
// ErrRunAborted. Any other failure is fatal to the run.
func (p *Pipeline) Run() (Result, error) {
	c := p.Comm
	res := Result{Rank: c.Rank(), Size: c.Size()}

	if err := c.Barrier(); err != nil {
		return res, err
	}

	n, err := p.distributeParameter()
	if err != nil {
		return res, err
	}
	res.N = n

	genStart := c.Time()
	values := Draw(n, MemberSeed(p.BaseSeed, c.Rank(), p.Round))
	res.Partial = floats.Sum(values)
	res.Sample = values[:min(sampleLen, len(values))]
	res.GenerateMicros = micros(c.Time() - genStart)

	if err := c.Barrier(); err != nil {
		return res, err
	}

	reduceStart := c.Time()
	total, valid, err := c.ReduceFloat(collective.CoordinatorRank, res.Partial, collective.Sum)
	if err != nil {
		return res, err
	}
	res.ReduceMicros = micros(c.Time() - reduceStart)

	var mean float64
	if valid {
		res.Total = total
		mean = p.Role.Finalize(total, n, c.Size())
	}

	bcastStart := c.Time()
	mean, err = c.BroadcastFloat(collective.CoordinatorRank, mean)
	if err != nil {
		return res, err
	}
	res.BcastMicros = micros(c.Time() - bcastStart)
	res.Mean = mean

	if err := c.Barrier(); err != nil {
		return res, err
	}

	if err := p.Role.Publish(res); err != nil {
		return res, errors.Wrap(err, "publish result")
	}
	return res, nil
}

// distributeParameter runs the ParamDistribution state: the coordinator
// validates its count and broadcasts either the count or the abort
// sentinel.
func (p *Pipeline) distributeParameter() (int, error) {
	c := p.Comm

	n, paramErr := p.Role.Parameter()
	if c.IsCoordinator() && paramErr != nil {
		if _, err := c.BroadcastInt(collective.CoordinatorRank, abortSentinel); err != nil {
			return 0, err
		}
		return 0, paramErr
	}

	n, err := c.BroadcastInt(collective.CoordinatorRank, n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, ErrRunAborted
	}
	return n, nil
}

func micros(seconds float64) float64 {
	return seconds * 1e6
}
