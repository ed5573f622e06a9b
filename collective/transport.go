// Package collective implements blocking group-wide communication for a
// fixed, ordered group of members: Barrier, Broadcast and Reduce.
//
// Every member of a group must invoke the same collective calls in the same
// relative order. A member that skips or reorders a call leaves the rest of
// the group blocked forever; the package does not attempt to detect this
// beyond what the underlying transport reports.
package collective

// A Transport is one member's connection to the rest of its group.
//
// Implementations must deliver payloads reliably and in order between each
// sender/receiver pair. Send must copy the payload, so that callers may
// reuse their buffers immediately.
type Transport interface {
	// Rank returns the member's position in the group, 0 <= Rank < Size.
	Rank() int

	// Size returns the number of members in the group.
	Size() int

	// Send queues a payload for delivery to another member without
	// blocking for the receiver.
	Send(dst int, payload []float64) error

	// Recv blocks until the next payload from the given member arrives.
	Recv(src int) ([]float64, error)

	// Time returns the member's monotonic clock reading in seconds.
	// Simulated transports report virtual time.
	Time() float64
}

// A Runner executes one member function per rank of a freshly constructed
// group and blocks until every member has returned.
type Runner func(size int, member func(c *Comm) error) error
