package inproc

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFIFOPerPair(t *testing.T) {
	err := Run(2, func(tr *Transport) error {
		const n = 100
		if tr.Rank() == 0 {
			for i := 0; i < n; i++ {
				if err := tr.Send(1, []float64{float64(i)}); err != nil {
					return err
				}
			}
			return nil
		}
		for i := 0; i < n; i++ {
			payload, err := tr.Recv(0)
			if err != nil {
				return err
			}
			if payload[0] != float64(i) {
				return errors.Errorf("message %d arrived out of order: %v", i, payload)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSendCopiesPayload(t *testing.T) {
	err := Run(2, func(tr *Transport) error {
		if tr.Rank() == 0 {
			buf := []float64{1}
			if err := tr.Send(1, buf); err != nil {
				return err
			}
			buf[0] = 99
			return tr.Send(1, buf)
		}
		first, err := tr.Recv(0)
		if err != nil {
			return err
		}
		if first[0] != 1 {
			return errors.Errorf("payload mutated after send: %v", first)
		}
		_, err = tr.Recv(0)
		return err
	})
	require.NoError(t, err)
}

func TestSourceFilteredRecv(t *testing.T) {
	err := Run(3, func(tr *Transport) error {
		switch tr.Rank() {
		case 0:
			// Wait for rank 2 first even though rank 1 sends earlier.
			fromTwo, err := tr.Recv(2)
			if err != nil {
				return err
			}
			if fromTwo[0] != 2 {
				return errors.Errorf("expected rank 2 payload, got %v", fromTwo)
			}
			fromOne, err := tr.Recv(1)
			if err != nil {
				return err
			}
			if fromOne[0] != 1 {
				return errors.Errorf("expected rank 1 payload, got %v", fromOne)
			}
			return nil
		case 1:
			return tr.Send(0, []float64{1})
		default:
			time.Sleep(10 * time.Millisecond)
			return tr.Send(0, []float64{2})
		}
	})
	require.NoError(t, err)
}

func TestRunReportsMemberError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(4, func(tr *Transport) error {
		if tr.Rank() == 2 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rank 2")
}

func TestRunRejectsEmptyGroup(t *testing.T) {
	require.Error(t, Run(0, func(tr *Transport) error { return nil }))
}

func TestRunWithTimeoutReportsStall(t *testing.T) {
	// Rank 1 never participates, standing in for a member that skipped a
	// collective call. It is released after the watchdog fires so its
	// Goroutine does not outlive the test.
	release := make(chan struct{})
	err := RunWithTimeout(2, 50*time.Millisecond, func(tr *Transport) error {
		if tr.Rank() == 1 {
			<-release
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrStalled)
	close(release)
}
