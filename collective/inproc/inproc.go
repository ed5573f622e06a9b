// Package inproc runs a collective group inside a single process, with one
// Goroutine per rank.
//
// Each rank owns a mailbox; sends append to the destination's mailbox and
// never block, so delivery is reliable and FIFO per sender/receiver pair.
// Time is the process's wall clock.
package inproc

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/emontero/collmean/collective"
)

// ErrStalled is returned by RunWithTimeout when the group fails to finish
// within the deadline, e.g. because a member skipped a collective call.
var ErrStalled = errors.New("inproc: group stalled")

type envelope struct {
	src     int
	payload []float64
}

// A mailbox is an unbounded FIFO queue of envelopes with source-filtered
// receives.
type mailbox struct {
	mu    sync.Mutex
	avail *sync.Cond
	queue []envelope
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.avail = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(e envelope) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()
	m.avail.Broadcast()
}

// take blocks until an envelope from src is queued and removes it.
func (m *mailbox) take(src int) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		for i, e := range m.queue {
			if e.src == src {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				return e.payload
			}
		}
		m.avail.Wait()
	}
}

type group struct {
	mailboxes []*mailbox
	start     time.Time
}

// A Transport is one rank's connection to an in-process group.
// It implements collective.Transport.
type Transport struct {
	rank int
	g    *group
}

// Rank returns the transport's rank.
func (t *Transport) Rank() int { return t.rank }

// Size returns the group size.
func (t *Transport) Size() int { return len(t.g.mailboxes) }

// Send copies the payload into the destination's mailbox.
func (t *Transport) Send(dst int, payload []float64) error {
	if dst < 0 || dst >= len(t.g.mailboxes) {
		return &collective.GroupMismatchError{Op: "send", Rank: dst}
	}
	t.g.mailboxes[dst].put(envelope{
		src:     t.rank,
		payload: append([]float64(nil), payload...),
	})
	return nil
}

// Recv blocks until the next payload from src arrives.
func (t *Transport) Recv(src int) ([]float64, error) {
	if src < 0 || src >= len(t.g.mailboxes) {
		return nil, &collective.GroupMismatchError{Op: "recv", Rank: src}
	}
	return t.g.mailboxes[t.rank].take(src), nil
}

// Time returns seconds of wall clock since the group was constructed.
func (t *Transport) Time() float64 {
	return time.Since(t.g.start).Seconds()
}

// Run constructs a group of the given size and executes member once per
// rank, each in its own Goroutine. It blocks until every member returns and
// reports the first failure, by rank.
func Run(size int, member func(t *Transport) error) error {
	return RunWithTimeout(size, 0, member)
}

// RunWithTimeout is Run with an operational watchdog: if the group has not
// finished within d, RunWithTimeout gives up and returns ErrStalled. The
// stuck member Goroutines are abandoned; a stalled group is not
// recoverable. A zero or negative d disables the watchdog.
func RunWithTimeout(size int, d time.Duration, member func(t *Transport) error) error {
	if size < 1 {
		return errors.Errorf("inproc: group size must be positive, got %d", size)
	}
	g := &group{
		mailboxes: make([]*mailbox, size),
		start:     time.Now(),
	}
	for i := range g.mailboxes {
		g.mailboxes[i] = newMailbox()
	}

	errs := make([]error, size)
	var wg sync.WaitGroup
	wg.Add(size)
	for i := 0; i < size; i++ {
		t := &Transport{rank: i, g: g}
		go func(rank int) {
			defer wg.Done()
			errs[rank] = member(t)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if d > 0 {
		select {
		case <-done:
		case <-time.After(d):
			return errors.Wrapf(ErrStalled, "after %s", d)
		}
	} else {
		<-done
	}

	for rank, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "rank %d", rank)
		}
	}
	return nil
}

// Runner adapts RunWithTimeout to the collective.Runner shape.
func Runner(timeout time.Duration) collective.Runner {
	return func(size int, member func(c *collective.Comm) error) error {
		return RunWithTimeout(size, timeout, func(t *Transport) error {
			return member(collective.NewComm(t))
		})
	}
}
