package bench

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/emontero/collmean/average"
	"github.com/emontero/collmean/collective"
)

// timeLoop synchronizes the group once, runs op back-to-back the given
// number of times, and returns the average per-iteration time in
// microseconds. Each member times the loop on its own clock and the slowest
// reading is reduced to the coordinator, which therefore sees the group-wide
// cost even for operations whose root only sends (a coordinator-origin
// broadcast finishes locally before the rest of the tree). Members other
// than the coordinator get their own reading back.
func timeLoop(c *collective.Comm, iterations int, op func(iter int) error) (float64, error) {
	if iterations <= 0 {
		return 0, errors.Errorf("iteration count must be positive, got %d", iterations)
	}
	if err := c.Barrier(); err != nil {
		return 0, err
	}
	start := c.Time()
	for i := 0; i < iterations; i++ {
		if err := op(i); err != nil {
			return 0, errors.Wrapf(err, "iteration %d", i)
		}
	}
	elapsed := c.Time() - start
	slowest, valid, err := c.ReduceFloat(collective.CoordinatorRank, elapsed, collective.Max)
	if err != nil {
		return 0, errors.Wrap(err, "gather loop times")
	}
	if valid {
		elapsed = slowest
	}
	return elapsed * 1e6 / float64(iterations), nil
}

// BroadcastSample times broadcasts of a payloadSize-element vector from the
// coordinator. Every member must call it; the sample should be recorded
// only where the second return value is true.
func BroadcastSample(c *collective.Comm, payloadSize, iterations int, seed int64) (TimingSample, bool, error) {
	buf := make([]float64, payloadSize)
	if c.IsCoordinator() {
		copy(buf, average.Draw(payloadSize, seed))
	}
	avg, err := timeLoop(c, iterations, func(int) error {
		return c.Broadcast(collective.CoordinatorRank, buf)
	})
	if err != nil {
		return TimingSample{}, false, errors.Wrap(err, "broadcast benchmark")
	}
	sample := TimingSample{
		Operation:   OpBroadcast,
		PayloadSize: payloadSize,
		GroupSize:   c.Size(),
		Iterations:  iterations,
		AvgMicros:   avg,
	}
	return sample, c.IsCoordinator(), nil
}

// ReduceSample times sum-reductions of a payloadSize-element vector to the
// coordinator.
func ReduceSample(c *collective.Comm, payloadSize, iterations int, seed int64) (TimingSample, bool, error) {
	local := average.Draw(payloadSize, average.MemberSeed(seed, c.Rank(), 0))
	avg, err := timeLoop(c, iterations, func(int) error {
		_, _, err := c.Reduce(collective.CoordinatorRank, local, collective.Sum)
		return err
	})
	if err != nil {
		return TimingSample{}, false, errors.Wrap(err, "reduce benchmark")
	}
	sample := TimingSample{
		Operation:   OpReduce,
		PayloadSize: payloadSize,
		GroupSize:   c.Size(),
		Iterations:  iterations,
		AvgMicros:   avg,
	}
	return sample, c.IsCoordinator(), nil
}

// PipelineSample times the full average pipeline with n values per member.
// Each iteration is a complete run drawing fresh values.
func PipelineSample(c *collective.Comm, n, iterations int, seed int64) (TimingSample, bool, error) {
	p := &average.Pipeline{
		Comm:     c,
		Role:     average.RoleFor(c.Rank(), &average.Coordinator{N: n}),
		BaseSeed: seed,
	}
	avg, err := timeLoop(c, iterations, func(iter int) error {
		p.Round = iter
		_, err := p.Run()
		return err
	})
	if err != nil {
		return TimingSample{}, false, errors.Wrap(err, "pipeline benchmark")
	}
	sample := TimingSample{
		Operation:   OpPipeline,
		PayloadSize: n,
		GroupSize:   c.Size(),
		Iterations:  iterations,
		AvgMicros:   avg,
	}
	return sample, c.IsCoordinator(), nil
}

// A Sweep runs the full benchmark plan against one group size.
type Sweep struct {
	Plan   Plan
	Runner collective.Runner
	Log    *zap.Logger

	// OnSample, if set, observes each recorded sample as it is produced.
	OnSample func(TimingSample)
}

// Run executes the plan and returns one sample per measured configuration,
// in plan order: broadcasts, then reductions, then pipelines.
func (s *Sweep) Run(groupSize int) ([]TimingSample, error) {
	log := s.log().With(zap.Int("groupSize", groupSize))

	var samples []TimingSample
	record := func(sample TimingSample) {
		samples = append(samples, sample)
		if s.OnSample != nil {
			s.OnSample(sample)
		}
		log.Info("measured",
			zap.String("operation", sample.Operation),
			zap.Int("payloadSize", sample.PayloadSize),
			zap.Float64("avgMicros", sample.AvgMicros))
	}

	type run struct {
		payload int
		measure func(c *collective.Comm, payload int) (TimingSample, bool, error)
	}
	var runs []run
	for _, payload := range s.Plan.PayloadSizes {
		runs = append(runs, run{payload, func(c *collective.Comm, payload int) (TimingSample, bool, error) {
			return BroadcastSample(c, payload, s.Plan.Iterations, s.Plan.Seed)
		}})
	}
	for _, payload := range s.Plan.PayloadSizes {
		runs = append(runs, run{payload, func(c *collective.Comm, payload int) (TimingSample, bool, error) {
			return ReduceSample(c, payload, s.Plan.Iterations, s.Plan.Seed)
		}})
	}
	for _, n := range s.Plan.PipelineSizes {
		runs = append(runs, run{n, func(c *collective.Comm, payload int) (TimingSample, bool, error) {
			return PipelineSample(c, payload, s.Plan.Iterations, s.Plan.Seed)
		}})
	}

	for _, r := range runs {
		var sample TimingSample
		var recorded bool
		err := s.Runner(groupSize, func(c *collective.Comm) error {
			got, ok, err := r.measure(c, r.payload)
			if err != nil {
				return err
			}
			if ok {
				sample = got
				recorded = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if !recorded {
			return nil, errors.New("no member recorded a sample")
		}
		record(sample)
	}
	return samples, nil
}

func (s *Sweep) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
