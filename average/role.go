package average

import "fmt"

// An InvalidParameterError reports a values-per-member count that failed
// validation at the coordinator, before any collective call depended on it.
type InvalidParameterError struct {
	N int
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("values per member must be positive, got %d", e.N)
}

// A Role captures what a member does at the points of the pipeline where
// the coordinator behaves differently from everyone else. It is selected
// once from the member's rank, before the run starts.
type Role interface {
	// Parameter supplies the values-per-member count. It is only
	// consulted on the coordinator; the broadcast value is what every
	// member actually uses.
	Parameter() (int, error)

	// Finalize converts a valid group aggregate into the final
	// statistic. It is only invoked on the member holding the aggregate.
	Finalize(total float64, n, size int) float64

	// Publish hands the completed result to the member's output, if any.
	Publish(res Result) error
}

// Coordinator is the Role of rank 0: it owns the run parameter, the
// aggregate finalization and the result output.
type Coordinator struct {
	// N is the values-per-member count to distribute. Validated by
	// Parameter.
	N int

	// OnResult, if set, receives the completed run result.
	OnResult func(Result) error
}

// Parameter validates and returns the configured count.
func (c *Coordinator) Parameter() (int, error) {
	if c.N <= 0 {
		return 0, &InvalidParameterError{N: c.N}
	}
	return c.N, nil
}

// Finalize computes the global mean from the aggregate sum.
func (c *Coordinator) Finalize(total float64, n, size int) float64 {
	return total / float64(n*size)
}

// Publish forwards the result to OnResult.
func (c *Coordinator) Publish(res Result) error {
	if c.OnResult == nil {
		return nil
	}
	return c.OnResult(res)
}

// Member is the Role of every rank other than the coordinator.
type Member struct {
	// OnResult, if set, receives the completed run result.
	OnResult func(Result) error
}

// Parameter returns a placeholder; members learn the real count from the
// coordinator's broadcast.
func (m *Member) Parameter() (int, error) {
	return 0, nil
}

// Finalize is never invoked on a plain member, which never holds a valid
// aggregate.
func (m *Member) Finalize(total float64, n, size int) float64 {
	return 0
}

// Publish forwards the result to OnResult.
func (m *Member) Publish(res Result) error {
	if m.OnResult == nil {
		return nil
	}
	return m.OnResult(res)
}

// RoleFor selects the Role for a rank: the given coordinator for rank 0, a
// plain Member otherwise.
func RoleFor(rank int, coordinator *Coordinator) Role {
	if rank == 0 {
		return coordinator
	}
	return &Member{}
}
