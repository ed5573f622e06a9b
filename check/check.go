// Package check validates the collective primitives and the average
// pipeline against analytically computed expectations.
//
// Every member runs the same battery of named checks on known inputs. The
// per-member boolean outcomes are reduced with a sum at the coordinator and
// compared against the group size: the run passes only if every member
// passed every check.
package check

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/emontero/collmean/average"
	"github.com/emontero/collmean/collective"
)

// Tolerance is the absolute difference allowed between an observed
// floating-point aggregate and its expected value.
const Tolerance = 1e-10

// A ConsistencyViolationError names a check whose observed aggregate did
// not match its expectation. It does not abort the remaining checks.
type ConsistencyViolationError struct {
	Check    string
	Observed float64
	Expected float64
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("check %q: observed %v, expected %v", e.Check, e.Observed, e.Expected)
}

// A Check verifies one property on known inputs. Fn returns whether the
// property held locally; collective calls inside Fn must be made by every
// member.
type Check struct {
	Name string
	Fn   func(c *collective.Comm) (bool, error)
}

// Checks returns the standard battery, in the order it must run.
func Checks() []Check {
	return []Check{
		{Name: "broadcast", Fn: checkBroadcast},
		{Name: "reduce", Fn: checkReduce},
		{Name: "average", Fn: checkAverage},
		{Name: "synchronization", Fn: checkSynchronization},
		{Name: "full-program", Fn: checkFullProgram},
	}
}

// A Summary reports the outcome of a battery. Valid only on the
// coordinator.
type Summary struct {
	// PassedMembers[name] counts the members on which the named check
	// held.
	PassedMembers map[string]int

	GroupSize int
}

// Passed reports whether every member passed every check.
func (s *Summary) Passed() bool {
	for _, n := range s.PassedMembers {
		if n != s.GroupSize {
			return false
		}
	}
	return true
}

// Failures lists the violations for checks that did not pass group-wide.
func (s *Summary) Failures() []error {
	var failures []error
	for name, n := range s.PassedMembers {
		if n != s.GroupSize {
			failures = append(failures, &ConsistencyViolationError{
				Check:    name,
				Observed: float64(n),
				Expected: float64(s.GroupSize),
			})
		}
	}
	return failures
}

// Run executes the battery on one member. Every member of the group must
// call Run; the returned summary is populated only where the second return
// value is true (the coordinator).
func Run(c *collective.Comm, log *zap.Logger) (Summary, bool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	summary := Summary{PassedMembers: map[string]int{}, GroupSize: c.Size()}

	if err := c.Barrier(); err != nil {
		return Summary{}, false, err
	}
	for _, chk := range Checks() {
		ok, err := chk.Fn(c)
		if err != nil {
			return Summary{}, false, errors.Wrapf(err, "check %q", chk.Name)
		}
		if !ok {
			log.Warn("check failed locally",
				zap.String("check", chk.Name), zap.Int("rank", c.Rank()))
		}

		outcome := 0.0
		if ok {
			outcome = 1.0
		}
		passed, valid, err := c.ReduceFloat(collective.CoordinatorRank, outcome, collective.Sum)
		if err != nil {
			return Summary{}, false, errors.Wrapf(err, "gather outcomes for %q", chk.Name)
		}
		if valid {
			summary.PassedMembers[chk.Name] = int(passed)
		}
		if err := c.Barrier(); err != nil {
			return Summary{}, false, err
		}
	}
	return summary, c.IsCoordinator(), nil
}

// checkBroadcast distributes a known constant and verifies every member
// receives it exactly.
func checkBroadcast(c *collective.Comm) (bool, error) {
	const original = 42.0
	var v float64
	if c.IsCoordinator() {
		v = original
	}
	got, err := c.BroadcastFloat(collective.CoordinatorRank, v)
	if err != nil {
		return false, err
	}
	return got == original, nil
}

// checkReduce sums rank+1 across the group and compares against
// size*(size+1)/2 at the coordinator.
func checkReduce(c *collective.Comm) (bool, error) {
	total, valid, err := c.ReduceFloat(
		collective.CoordinatorRank, float64(c.Rank()+1), collective.Sum)
	if err != nil {
		return false, err
	}
	if !valid {
		return true, nil
	}
	expected := float64(c.Size()*(c.Size()+1)) / 2
	return math.Abs(total-expected) < Tolerance, nil
}

// checkAverage reduces known per-member sums and verifies the final mean
// against an analytically computed expectation.
func checkAverage(c *collective.Comm) (bool, error) {
	known := []float64{1, 2, 3, 4, 5}
	n := len(known)

	partial := 0.0
	for _, v := range known {
		partial += v
	}
	// Skew each member's contribution so ranks are distinguishable.
	partial += float64(c.Rank() * n * 10)

	total, valid, err := c.ReduceFloat(collective.CoordinatorRank, partial, collective.Sum)
	if err != nil {
		return false, err
	}
	if !valid {
		return true, nil
	}

	size := c.Size()
	expectedTotal := 0.0
	for rank := 0; rank < size; rank++ {
		expectedTotal += 15 + float64(rank*n*10)
	}
	observed := total / float64(n*size)
	expected := expectedTotal / float64(n*size)
	return math.Abs(observed-expected) < Tolerance, nil
}

// checkSynchronization skews the members with busy work and verifies the
// barrier brings them back together.
func checkSynchronization(c *collective.Comm) (bool, error) {
	work := (c.Rank() + 1) * 1000
	x := 0.0
	for i := 0; i < work; i++ {
		x += math.Sqrt(float64(i))
	}
	_ = x
	if err := c.Barrier(); err != nil {
		return false, err
	}
	return true, nil
}

// checkFullProgram runs the complete pipeline with seeded random values and
// verifies the final statistic stays inside the generator's range.
func checkFullProgram(c *collective.Comm) (bool, error) {
	p := &average.Pipeline{
		Comm: c,
		Role: average.RoleFor(c.Rank(), &average.Coordinator{N: 100}),
	}
	res, err := p.Run()
	if err != nil {
		return false, err
	}
	return res.Mean >= 0 && res.Mean <= average.ValueRange, nil
}
