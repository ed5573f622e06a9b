package simnet

import (
	"math"
	"sync"
)

// An Endpoint is one machine's rank-addressed attachment to a network.
type Endpoint struct {
	// Rank is the endpoint's position in the group, 0 <= Rank < group size.
	Rank int

	// Inbox carries *Message payloads.
	Inbox *Stream
}

// NewEndpoints creates n endpoints with ranks 0..n-1 on the given loop.
func NewEndpoints(loop *EventLoop, n int) []*Endpoint {
	eps := make([]*Endpoint, n)
	for i := range eps {
		eps[i] = &Endpoint{Rank: i, Inbox: loop.Stream()}
	}
	return eps
}

// Recv blocks until the next message arrives at the endpoint.
func (e *Endpoint) Recv(h *Handle) *Message {
	return h.Poll(e.Inbox).Payload.(*Message)
}

// A Message is a chunk of data in flight between two endpoints.
type Message struct {
	From    *Endpoint
	To      *Endpoint
	Payload interface{}

	// Bytes is the size of the message on the wire, used to compute the
	// transfer time.
	Bytes float64
}

// A Network delivers messages between endpoints.
type Network interface {
	// Send schedules messages for delivery. Send does not block: the
	// messages arrive on the destination inboxes at some later virtual
	// time.
	Send(h *Handle, msgs ...*Message)
}

// A LinkNetwork models every endpoint as having its own full-duplex link
// with a fixed propagation latency and a fixed receive bandwidth.
// Transfers into the same endpoint are serialized, so messages between any
// pair of endpoints arrive in the order they were sent.
type LinkNetwork struct {
	mu sync.Mutex

	latency float64
	rate    float64

	// busyUntil[rank] is the virtual time at which the endpoint's receive
	// link becomes idle again.
	busyUntil []float64
}

// NewLinkNetwork creates a LinkNetwork for a group of the given size.
//
// latency is the per-message propagation delay in seconds. rate is the
// receive bandwidth in bytes per second; a rate <= 0 means transfers are
// instantaneous apart from latency.
func NewLinkNetwork(size int, rate, latency float64) *LinkNetwork {
	return &LinkNetwork{
		latency:   latency,
		rate:      rate,
		busyUntil: make([]float64, size),
	}
}

// Send schedules the messages, charging each one latency plus its transfer
// time on the destination's receive link.
func (l *LinkNetwork) Send(h *Handle, msgs ...*Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := h.Time()
	for _, msg := range msgs {
		dst := msg.To.Rank
		if dst < 0 || dst >= len(l.busyUntil) {
			panic("simnet: destination rank out of range")
		}
		var transfer float64
		if l.rate > 0 {
			transfer = msg.Bytes / l.rate
		}
		start := now
		if l.busyUntil[dst] > start {
			start = l.busyUntil[dst]
		}
		deliverAt := start + l.latency + transfer
		if deliverAt <= l.busyUntil[dst] {
			// A zero-cost message must still arrive after the link's
			// previous delivery, or in-order arrival breaks.
			deliverAt = math.Nextafter(l.busyUntil[dst], math.Inf(1))
		}
		l.busyUntil[dst] = deliverAt
		h.Schedule(msg.To.Inbox, msg, deliverAt-now)
	}
}
