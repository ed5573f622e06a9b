// Package simgroup runs a collective group on top of the simnet virtual
// network, so scaling behavior can be studied for group sizes well beyond
// the physical parallelism of the host.
//
// Transport time is virtual: it only accounts for message latency and
// transfer, not for computation performed between collective calls.
package simgroup

import (
	"github.com/pkg/errors"

	"github.com/emontero/collmean/collective"
	"github.com/emontero/collmean/simnet"
)

// floatBytes is the wire size of one float64 payload element.
const floatBytes = 8

// headerBytes approximates per-message framing overhead, so that empty
// barrier messages still take time on the wire.
const headerBytes = 16

// Config describes the simulated network.
type Config struct {
	// Latency is the per-message propagation delay in seconds.
	Latency float64

	// Rate is the per-endpoint receive bandwidth in bytes per second.
	// A rate <= 0 makes transfers instantaneous apart from latency.
	Rate float64
}

// DefaultConfig roughly resembles a commodity cluster interconnect:
// 50us latency, 1 GB/s links.
func DefaultConfig() Config {
	return Config{Latency: 50e-6, Rate: 1e9}
}

// A Transport is one rank's connection to a simulated group.
// It implements collective.Transport.
type Transport struct {
	handle    *simnet.Handle
	endpoint  *simnet.Endpoint
	endpoints []*simnet.Endpoint
	network   simnet.Network

	// stash holds messages that arrived while waiting for some other
	// source.
	stash []*simnet.Message
}

// Rank returns the transport's rank.
func (t *Transport) Rank() int { return t.endpoint.Rank }

// Size returns the group size.
func (t *Transport) Size() int { return len(t.endpoints) }

// Send schedules the payload for delivery over the simulated network.
func (t *Transport) Send(dst int, payload []float64) error {
	if dst < 0 || dst >= len(t.endpoints) {
		return &collective.GroupMismatchError{Op: "send", Rank: dst}
	}
	t.network.Send(t.handle, &simnet.Message{
		From:    t.endpoint,
		To:      t.endpoints[dst],
		Payload: append([]float64(nil), payload...),
		Bytes:   float64(len(payload)*floatBytes + headerBytes),
	})
	return nil
}

// Recv blocks until the next payload from src arrives, stashing messages
// from other sources in the meantime.
func (t *Transport) Recv(src int) ([]float64, error) {
	if src < 0 || src >= len(t.endpoints) {
		return nil, &collective.GroupMismatchError{Op: "recv", Rank: src}
	}
	for i, msg := range t.stash {
		if msg.From.Rank == src {
			t.stash = append(t.stash[:i], t.stash[i+1:]...)
			return msg.Payload.([]float64), nil
		}
	}
	for {
		msg := t.endpoint.Recv(t.handle)
		if msg.From.Rank == src {
			return msg.Payload.([]float64), nil
		}
		t.stash = append(t.stash, msg)
	}
}

// Time returns the virtual time in seconds.
func (t *Transport) Time() float64 {
	return t.handle.Time()
}

// Run constructs a simulated group of the given size and executes member
// once per rank, each in its own loop Goroutine. It blocks until the
// simulation finishes and reports the first failure, by rank. A deadlocked
// simulation (a member missing a collective call) is reported as an error
// rather than hanging.
func Run(size int, cfg Config, member func(t *Transport) error) error {
	if size < 1 {
		return errors.Errorf("simgroup: group size must be positive, got %d", size)
	}
	loop := simnet.NewEventLoop()
	endpoints := simnet.NewEndpoints(loop, size)
	network := simnet.NewLinkNetwork(size, cfg.Rate, cfg.Latency)

	errs := make([]error, size)
	for i := 0; i < size; i++ {
		t := &Transport{
			endpoint:  endpoints[i],
			endpoints: endpoints,
			network:   network,
		}
		rank := i
		loop.Go(func(h *simnet.Handle) {
			t.handle = h
			errs[rank] = member(t)
		})
	}
	if err := loop.Run(); err != nil {
		return errors.Wrap(err, "simgroup: group stalled")
	}
	for rank, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "rank %d", rank)
		}
	}
	return nil
}

// Runner adapts Run to the collective.Runner shape.
func Runner(cfg Config) collective.Runner {
	return func(size int, member func(c *collective.Comm) error) error {
		return Run(size, cfg, func(t *Transport) error {
			return member(collective.NewComm(t))
		})
	}
}
