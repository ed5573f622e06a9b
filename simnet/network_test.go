package simnet

import "testing"

func TestLinkNetworkSingleMessage(t *testing.T) {
	loop := NewEventLoop()
	eps := NewEndpoints(loop, 2)
	network := NewLinkNetwork(2, 4.0, 3.0)

	loop.Go(func(h *Handle) {
		network.Send(h, &Message{From: eps[0], To: eps[1], Payload: "hi rank 1", Bytes: 124.0})
		if msg := eps[0].Recv(h); msg.Payload != "hi rank 0" {
			t.Errorf("unexpected payload: %v", msg.Payload)
		}
	})
	loop.Go(func(h *Handle) {
		network.Send(h, &Message{From: eps[1], To: eps[0], Payload: "hi rank 0", Bytes: 124.0})
		if msg := eps[1].Recv(h); msg.Payload != "hi rank 1" {
			t.Errorf("unexpected payload: %v", msg.Payload)
		}
	})

	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	expectedTime := 3.0 + 124.0/4.0
	if loop.Time() != expectedTime {
		t.Errorf("time should be %f but got %f", expectedTime, loop.Time())
	}
}

func TestLinkNetworkSerializesReceiver(t *testing.T) {
	loop := NewEventLoop()
	eps := NewEndpoints(loop, 2)
	network := NewLinkNetwork(2, 4.0, 1.0)

	loop.Go(func(h *Handle) {
		network.Send(h,
			&Message{From: eps[0], To: eps[1], Payload: "first", Bytes: 8.0},
			&Message{From: eps[0], To: eps[1], Payload: "second", Bytes: 8.0})
	})
	loop.Go(func(h *Handle) {
		if msg := eps[1].Recv(h); msg.Payload != "first" {
			t.Errorf("unexpected first payload: %v", msg.Payload)
		}
		first := h.Time()
		if expected := 1.0 + 8.0/4.0; first != expected {
			t.Errorf("first delivery should be at %f but was at %f", expected, first)
		}
		if msg := eps[1].Recv(h); msg.Payload != "second" {
			t.Errorf("unexpected second payload: %v", msg.Payload)
		}
		// The second transfer waits for the receive link to go idle.
		if expected := 2.0 * (1.0 + 8.0/4.0); h.Time() != expected {
			t.Errorf("second delivery should be at %f but was at %f", expected, h.Time())
		}
	})

	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}
}

func TestLinkNetworkZeroRate(t *testing.T) {
	loop := NewEventLoop()
	eps := NewEndpoints(loop, 2)
	network := NewLinkNetwork(2, 0, 0.5)

	loop.Go(func(h *Handle) {
		network.Send(h, &Message{From: eps[0], To: eps[1], Payload: "ping", Bytes: 1e9})
	})
	loop.Go(func(h *Handle) {
		eps[1].Recv(h)
		if h.Time() != 0.5 {
			t.Errorf("delivery should only pay latency, got time %f", h.Time())
		}
	})

	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}
}
