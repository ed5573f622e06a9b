// Package simnet simulates a group of machines exchanging messages over a
// network with configurable latency and bandwidth, using a virtual clock.
//
// Each simulated machine runs in its own Goroutine under an EventLoop.
// Virtual time only advances while every Goroutine is waiting for an event,
// so computation performed between events is free as far as the simulated
// clock is concerned.
package simnet

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// A Stream is a uni-directional channel of events delivered through an
// EventLoop. A Stream must not be used on more than one EventLoop.
type Stream struct {
	loop   *EventLoop
	queued []interface{}
}

// An Event is a payload received on some Stream.
type Event struct {
	Payload interface{}
	Stream  *Stream
}

// A Timer is a single pending delivery at a point in the virtual future.
type Timer struct {
	at    float64
	event *Event
}

// At returns the virtual time at which the timer fires.
func (t *Timer) At() float64 {
	return t.at
}

// A Handle is one Goroutine's access point to an EventLoop.
// Handles must not be shared between Goroutines.
type Handle struct {
	*EventLoop

	// Empty unless the Goroutine is blocked in Poll.
	waitStreams []*Stream
	waitCh      chan<- *Event
}

// Poll blocks until an event arrives on any of the given streams.
func (h *Handle) Poll(streams ...*Stream) *Event {
	ch := make(chan *Event, 1)
	h.withWakeup(func() {
		if h.waitStreams != nil {
			panic("simnet: Handle shared between Goroutines")
		}
		for _, s := range streams {
			if len(s.queued) > 0 {
				payload := s.queued[0]
				essentials.OrderedDelete(&s.queued, 0)
				ch <- &Event{Payload: payload, Stream: s}
				return
			}
		}
		h.waitStreams = streams
		h.waitCh = ch
	})
	return <-ch
}

// Schedule arranges for a payload to arrive on a stream after the given
// amount of virtual time.
func (h *Handle) Schedule(s *Stream, payload interface{}, delay float64) *Timer {
	if s.loop != h.EventLoop {
		panic("simnet: Stream belongs to a different EventLoop")
	}
	var timer *Timer
	h.locked(func() {
		at := h.now + delay
		if math.IsNaN(at) || math.IsInf(at, 0) {
			panic(fmt.Sprintf("simnet: invalid delivery time: %f", at))
		}
		timer = &Timer{at: at, event: &Event{Payload: payload, Stream: s}}
		h.timers = append(h.timers, timer)
	})
	return timer
}

// Cancel removes a pending timer. Canceling a timer that already fired has
// no effect.
func (h *Handle) Cancel(t *Timer) {
	h.locked(func() {
		for i, timer := range h.timers {
			if timer == t {
				essentials.UnorderedDelete(&h.timers, i)
				return
			}
		}
	})
}

// Sleep blocks the calling Goroutine for an amount of virtual time.
func (h *Handle) Sleep(delay float64) {
	s := h.Stream()
	h.Schedule(s, nil, delay)
	h.Poll(s)
}

// An EventLoop schedules events for a set of cooperating Goroutines against
// a shared virtual clock, starting at time 0.
//
// Goroutines that use the loop must be started through Go().
type EventLoop struct {
	mu      sync.Mutex
	timers  []*Timer
	handles []*Handle
	now     float64

	running bool
	wake    chan struct{}
}

// NewEventLoop creates an empty EventLoop.
func NewEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// Stream creates a Stream bound to this loop.
func (e *EventLoop) Stream() *Stream {
	return &Stream{loop: e}
}

// Go starts f in a new Goroutine with its own Handle.
func (e *EventLoop) Go(f func(h *Handle)) {
	h := &Handle{EventLoop: e}
	e.mu.Lock()
	e.handles = append(e.handles, h)
	e.mu.Unlock()
	go func() {
		f(h)
		e.withWakeup(func() {
			for i, handle := range e.handles {
				if handle == h {
					essentials.UnorderedDelete(&e.handles, i)
					return
				}
			}
			panic("simnet: Handle already released")
		})
	}()
}

// Run drives the loop until every Goroutine started with Go has returned.
//
// Run returns an error if the simulation deadlocks, i.e. every Goroutine is
// blocked in Poll and no timer is pending.
func (e *EventLoop) Run() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		panic("simnet: EventLoop is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for range e.wake {
		if done, err := e.step(); done {
			return err
		}
	}
	panic("unreachable")
}

// MustRun is like Run but panics on deadlock.
func (e *EventLoop) MustRun() {
	essentials.Must(e.Run())
}

// Time returns the current virtual time in seconds.
func (e *EventLoop) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *EventLoop) locked(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f()
}

// withWakeup runs f under the lock and then prods Run, since f may have
// changed which Goroutines are blocked.
func (e *EventLoop) withWakeup(f func()) {
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		select {
		case e.wake <- struct{}{}:
		default:
		}
	}()
	f()
}

// step fires the next deliverable timer.
//
// The first return value is true once the loop should stop, either because
// all Goroutines finished or because of a deadlock.
func (e *EventLoop) step() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.handles) == 0 {
		return true, nil
	}
	for _, h := range e.handles {
		if h.waitStreams == nil {
			// A Goroutine is computing in real time; let it finish.
			return false, nil
		}
	}

	for len(e.timers) > 0 {
		idx := e.nextTimerIndex()
		timer := e.timers[idx]
		essentials.UnorderedDelete(&e.timers, idx)
		e.now = math.Max(e.now, timer.at)
		if e.deliver(timer.event) {
			return false, nil
		}
	}

	return true, errors.New("deadlock: every Goroutine is polling")
}

// nextTimerIndex picks the earliest timer, breaking ties randomly so that
// simultaneous deliveries are not ordered deterministically.
func (e *EventLoop) nextTimerIndex() int {
	earliest := e.timers[0].at
	for _, t := range e.timers[1:] {
		if t.at < earliest {
			earliest = t.at
		}
	}
	var candidates []int
	for i, t := range e.timers {
		if t.at == earliest {
			candidates = append(candidates, i)
		}
	}
	return candidates[rand.Intn(len(candidates))]
}

// deliver hands an event to a polling Goroutine, or queues it on the stream
// if nobody is listening yet. Returns true if a Goroutine was woken.
func (e *EventLoop) deliver(event *Event) bool {
	order := rand.Perm(len(e.handles))
	for _, i := range order {
		h := e.handles[i]
		for _, s := range h.waitStreams {
			if s == event.Stream {
				h.waitCh <- event
				h.waitCh = nil
				h.waitStreams = nil
				return true
			}
		}
	}
	event.Stream.queued = append(event.Stream.queued, event.Payload)
	return false
}
