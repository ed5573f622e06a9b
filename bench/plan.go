package bench

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/emontero/collmean/average"
)

// A Plan configures one benchmark sweep.
type Plan struct {
	// PayloadSizes are the vector sizes for the primitive benchmarks.
	PayloadSizes []int `yaml:"payload_sizes"`

	// PipelineSizes are the values-per-member counts for the full
	// pipeline benchmark.
	PipelineSizes []int `yaml:"pipeline_sizes"`

	// Iterations is the number of back-to-back runs per configuration.
	Iterations int `yaml:"iterations"`

	// Seed offsets the generator seeds of every member.
	Seed int64 `yaml:"seed"`
}

// DefaultPlan mirrors the sweep the original benchmark always ran.
func DefaultPlan() Plan {
	return Plan{
		PayloadSizes:  []int{1, 10, 100, 1000, 10000},
		PipelineSizes: []int{100, 1000, 10000},
		Iterations:    100,
		Seed:          average.DefaultBaseSeed,
	}
}

// LoadPlan reads a YAML plan from path. Omitted fields keep their default
// values.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.Wrap(err, "read benchmark plan")
	}
	plan := DefaultPlan()
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, errors.Wrap(err, "parse benchmark plan")
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Validate rejects plans that cannot be run.
func (p Plan) Validate() error {
	if p.Iterations <= 0 {
		return errors.Errorf("iterations must be positive, got %d", p.Iterations)
	}
	if len(p.PayloadSizes) == 0 && len(p.PipelineSizes) == 0 {
		return errors.New("plan measures nothing")
	}
	for _, size := range p.PayloadSizes {
		if size <= 0 {
			return errors.Errorf("payload sizes must be positive, got %d", size)
		}
	}
	for _, n := range p.PipelineSizes {
		if n <= 0 {
			return errors.Errorf("pipeline sizes must be positive, got %d", n)
		}
	}
	return nil
}

// Configurations counts how many samples the plan will produce per group
// size: one broadcast and one reduce row per payload size, plus one row per
// pipeline size.
func (p Plan) Configurations() int {
	return 2*len(p.PayloadSizes) + len(p.PipelineSizes)
}
