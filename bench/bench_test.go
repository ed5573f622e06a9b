package bench_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emontero/collmean/bench"
	"github.com/emontero/collmean/collective"
	"github.com/emontero/collmean/collective/inproc"
	"github.com/emontero/collmean/collective/simgroup"
)

func smallPlan() bench.Plan {
	return bench.Plan{
		PayloadSizes:  []int{1, 16},
		PipelineSizes: []int{32},
		Iterations:    3,
		Seed:          42,
	}
}

func TestSweepProducesOneSamplePerConfiguration(t *testing.T) {
	plan := smallPlan()
	var observed []bench.TimingSample
	sweep := &bench.Sweep{
		Plan:     plan,
		Runner:   inproc.Runner(30 * time.Second),
		OnSample: func(s bench.TimingSample) { observed = append(observed, s) },
	}
	samples, err := sweep.Run(4)
	require.NoError(t, err)
	require.Len(t, samples, plan.Configurations())
	assert.Equal(t, samples, observed)

	wantOps := []string{
		bench.OpBroadcast, bench.OpBroadcast,
		bench.OpReduce, bench.OpReduce,
		bench.OpPipeline,
	}
	for i, s := range samples {
		assert.Equal(t, wantOps[i], s.Operation)
		assert.Equal(t, 4, s.GroupSize)
		assert.Equal(t, plan.Iterations, s.Iterations)
		assert.GreaterOrEqual(t, s.AvgMicros, 0.0)
	}
}

func TestSweepOnVirtualNetworkCostsTime(t *testing.T) {
	sweep := &bench.Sweep{
		Plan:   smallPlan(),
		Runner: simgroup.Runner(simgroup.DefaultConfig()),
	}
	samples, err := sweep.Run(8)
	require.NoError(t, err)
	for _, s := range samples {
		assert.Greater(t, s.AvgMicros, 0.0,
			"%s with payload %d should cost virtual time", s.Operation, s.PayloadSize)
	}
}

func TestBroadcastSampleCostsVirtualTime(t *testing.T) {
	// The coordinator origin only sends during a broadcast, so its own
	// clock alone would show the timed loop as free on the virtual
	// network. The recorded sample must reflect the slowest member.
	var sample bench.TimingSample
	var recorded bool
	err := simgroup.Runner(simgroup.DefaultConfig())(8, func(c *collective.Comm) error {
		got, ok, err := bench.BroadcastSample(c, 1000, 5, 42)
		if err != nil {
			return err
		}
		if ok {
			sample = got
			recorded = true
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, recorded)
	assert.Greater(t, sample.AvgMicros, 0.0)
}

func TestPerMemberShareRoundsUp(t *testing.T) {
	assert.Equal(t, 2500, bench.PerMemberShare(10000, 4))
	assert.Equal(t, 3334, bench.PerMemberShare(10000, 3))
	assert.Equal(t, 1, bench.PerMemberShare(1, 16))
	assert.Equal(t, 10000, bench.PerMemberShare(10000, 1))
}

func TestStrongScalingShrinksPerMemberPayload(t *testing.T) {
	groupSizes := []int{1, 2, 4, 8}
	samples, err := bench.StrongScaling(
		inproc.Runner(30*time.Second), 1000, groupSizes, 2, 42)
	require.NoError(t, err)
	require.Len(t, samples, len(groupSizes))
	for i, s := range samples {
		assert.Equal(t, bench.OpStrongScaling, s.Operation)
		assert.Equal(t, groupSizes[i], s.GroupSize)
		if i > 0 {
			assert.Less(t, s.PayloadSize, samples[i-1].PayloadSize,
				"per-member share must shrink as the group grows")
		}
	}
}

func TestWeakScalingKeepsPerMemberPayload(t *testing.T) {
	groupSizes := []int{1, 3, 5}
	samples, err := bench.WeakScaling(
		inproc.Runner(30*time.Second), 200, groupSizes, 2, 42)
	require.NoError(t, err)
	require.Len(t, samples, len(groupSizes))
	for i, s := range samples {
		assert.Equal(t, bench.OpWeakScaling, s.Operation)
		assert.Equal(t, 200, s.PayloadSize)
		assert.Equal(t, groupSizes[i], s.GroupSize)
	}
}

func TestMemoryFootprint(t *testing.T) {
	samples, err := bench.MemoryFootprint(
		inproc.Runner(30*time.Second), []int{1, 1024}, 2, 2, 42)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	for _, s := range samples {
		assert.NotZero(t, s.RSSBytes)
		assert.NotZero(t, s.HeapAllocBytes)
	}
}

func TestCommVsCompute(t *testing.T) {
	var samples []bench.CommCompSample
	err := inproc.Runner(30*time.Second)(3, func(c *collective.Comm) error {
		got, ok, err := bench.CommVsCompute(c, []int{100, 1000}, 42)
		if err != nil {
			return err
		}
		if ok {
			samples = got
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 100, samples[0].N)
	assert.Equal(t, 1000, samples[1].N)
}

func TestReportCSVFormat(t *testing.T) {
	report := bench.NewReport([]bench.TimingSample{
		{Operation: bench.OpPipeline, PayloadSize: 1000, GroupSize: 4, AvgMicros: 123.456},
	})
	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf))
	lines := buf.String()
	assert.Contains(t, lines, "Operation,PayloadSize,GroupSize,AverageTimeMicroseconds\n")
	assert.Contains(t, lines, "ProgramaCompleto,1000,4,123.46\n")
}

func TestReportSaveAndText(t *testing.T) {
	report := bench.NewReport([]bench.TimingSample{
		{Operation: bench.OpBroadcast, PayloadSize: 1, GroupSize: 2, AvgMicros: 1.5},
		{Operation: bench.OpBroadcast, PayloadSize: 10, GroupSize: 2, AvgMicros: 2.5},
	})
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, report.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Broadcast,1,2,1.50")

	var text bytes.Buffer
	require.NoError(t, report.WriteText(&text))
	assert.Contains(t, text.String(), "mean=2.00")
}

func TestLoadPlanOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iterations: 7\npayload_sizes: [2, 4]\n"), 0o644))
	plan, err := bench.LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, 7, plan.Iterations)
	assert.Equal(t, []int{2, 4}, plan.PayloadSizes)
	// Untouched fields keep the defaults.
	assert.Equal(t, bench.DefaultPlan().PipelineSizes, plan.PipelineSizes)
}

func TestPlanValidate(t *testing.T) {
	assert.NoError(t, bench.DefaultPlan().Validate())
	assert.Error(t, bench.Plan{Iterations: 0, PayloadSizes: []int{1}}.Validate())
	assert.Error(t, bench.Plan{Iterations: 5}.Validate())
	assert.Error(t, bench.Plan{Iterations: 5, PayloadSizes: []int{-1}}.Validate())
}
