package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// csvHeader is the persisted result format; written only by the
// coordinator side of a run.
var csvHeader = []string{"Operation", "PayloadSize", "GroupSize", "AverageTimeMicroseconds"}

// A Report collects the samples of one benchmark invocation under a unique
// run ID.
type Report struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Samples   []TimingSample
}

// NewReport stamps the samples with a fresh run ID.
func NewReport(samples []TimingSample) *Report {
	return &Report{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Samples:   samples,
	}
}

// WriteCSV renders the report as the tabular result format, one row per
// measured configuration.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, s := range r.Samples {
		row := []string{
			s.Operation,
			strconv.Itoa(s.PayloadSize),
			strconv.Itoa(s.GroupSize),
			strconv.FormatFloat(s.AvgMicros, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush")
}

// Save writes the CSV rendering to a file.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report file")
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close report file")
}

// WriteText renders a human-readable summary: every sample, followed by
// per-operation mean and standard deviation across the sweep.
func (r *Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "run %s (%s)\n", r.ID, r.CreatedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	for _, s := range r.Samples {
		_, err := fmt.Fprintf(w, "  %-16s payload=%-8d group=%-4d %10.2f us\n",
			s.Operation, s.PayloadSize, s.GroupSize, s.AvgMicros)
		if err != nil {
			return err
		}
	}

	byOp := map[string][]float64{}
	for _, s := range r.Samples {
		byOp[s.Operation] = append(byOp[s.Operation], s.AvgMicros)
	}
	ops := make([]string, 0, len(byOp))
	for op := range byOp {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		times := byOp[op]
		mean := stat.Mean(times, nil)
		sd := 0.0
		if len(times) > 1 {
			sd = stat.StdDev(times, nil)
		}
		_, err := fmt.Fprintf(w, "%-16s mean=%.2f us stddev=%.2f us over %d configurations\n",
			op, mean, sd, len(times))
		if err != nil {
			return err
		}
	}
	return nil
}
