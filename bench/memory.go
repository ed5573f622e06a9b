package bench

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/emontero/collmean/collective"
)

// A MemorySample correlates a payload size with the process memory
// footprint right after a workload of that size.
type MemorySample struct {
	PayloadSize int

	// RSSBytes is the process resident set size.
	RSSBytes uint64

	// HeapAllocBytes is the Go heap in use.
	HeapAllocBytes uint64
}

// CurrentMemory samples the process's resident set size and heap usage.
func CurrentMemory() (rss, heapAlloc uint64, err error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, 0, errors.Wrap(err, "open process")
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, 0, errors.Wrap(err, "read memory info")
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return info.RSS, stats.HeapAlloc, nil
}

// MemoryFootprint runs a sum-reduction workload for each payload size on a
// group and samples the process memory immediately afterwards. The whole
// group runs in this process, so the footprint covers all members.
func MemoryFootprint(runner collective.Runner, payloadSizes []int, groupSize, iterations int, seed int64) ([]MemorySample, error) {
	samples := make([]MemorySample, 0, len(payloadSizes))
	for _, payload := range payloadSizes {
		err := runner(groupSize, func(c *collective.Comm) error {
			_, _, err := ReduceSample(c, payload, iterations, seed)
			return err
		})
		if err != nil {
			return nil, errors.Wrapf(err, "memory workload with payload %d", payload)
		}
		rss, heap, err := CurrentMemory()
		if err != nil {
			return nil, err
		}
		samples = append(samples, MemorySample{
			PayloadSize:    payload,
			RSSBytes:       rss,
			HeapAllocBytes: heap,
		})
	}
	return samples, nil
}
