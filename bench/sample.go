// Package bench measures the collective primitives and the full average
// pipeline: per-operation timing across payload sizes, strong and weak
// scaling across group sizes, memory footprint, and the balance between
// communication and computation.
//
// Each member times its own participation and the slowest member's reading
// is what gets recorded. Transports backed by the virtual network report
// virtual time, which covers message latency and transfer but not local
// computation.
package bench

// Operation labels for timing samples. Pipeline rows keep the label used by
// the original result files, so existing tooling can keep parsing them.
const (
	OpBroadcast     = "Broadcast"
	OpReduce        = "Reduce"
	OpPipeline      = "ProgramaCompleto"
	OpStrongScaling = "StrongScaling"
	OpWeakScaling   = "WeakScaling"
)

// A TimingSample is one measured configuration. It is never mutated after
// creation.
type TimingSample struct {
	// Operation names what was measured.
	Operation string

	// PayloadSize is the per-member problem size: vector elements for a
	// primitive, values per member for the pipeline.
	PayloadSize int

	// GroupSize is the number of members that participated.
	GroupSize int

	// Iterations is how many back-to-back runs the average covers.
	Iterations int

	// AvgMicros is the average time of one iteration in microseconds.
	AvgMicros float64
}
