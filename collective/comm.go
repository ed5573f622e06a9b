package collective

import "github.com/pkg/errors"

// CoordinatorRank is the distinguished member that originates parameters
// and receives aggregates.
const CoordinatorRank = 0

// A Comm is one member's view of its group, providing the collective
// primitives. Each primitive is a synchronization point: it returns only
// once the group-wide exchange it is part of has completed.
//
// A Comm is bound to a single Goroutine, like the Transport underneath it.
type Comm struct {
	t Transport
}

// NewComm wraps a transport in a Comm.
func NewComm(t Transport) *Comm {
	return &Comm{t: t}
}

// Rank returns the calling member's rank.
func (c *Comm) Rank() int {
	return c.t.Rank()
}

// Size returns the number of members in the group.
func (c *Comm) Size() int {
	return c.t.Size()
}

// IsCoordinator reports whether the calling member is the coordinator.
func (c *Comm) IsCoordinator() bool {
	return c.t.Rank() == CoordinatorRank
}

// Time returns the member's clock reading in seconds.
func (c *Comm) Time() float64 {
	return c.t.Time()
}

// Barrier blocks until every member of the group has entered the same
// barrier instance. Members are gathered up a tree rooted at the
// coordinator and then released back down it.
func (c *Comm) Barrier() error {
	parent, children := c.treeLinks(CoordinatorRank)
	for _, child := range children {
		if _, err := c.t.Recv(child); err != nil {
			return errors.Wrap(err, "barrier")
		}
	}
	if parent >= 0 {
		if err := c.t.Send(parent, nil); err != nil {
			return errors.Wrap(err, "barrier")
		}
		if _, err := c.t.Recv(parent); err != nil {
			return errors.Wrap(err, "barrier")
		}
	}
	for _, child := range children {
		if err := c.t.Send(child, nil); err != nil {
			return errors.Wrap(err, "barrier")
		}
	}
	return nil
}

// Broadcast distributes the origin member's buffer to the whole group.
//
// The origin supplies the authoritative values in buf; every other member
// supplies a placeholder buffer of the same length, which Broadcast fills
// in. After a successful call all members hold bit-identical contents.
func (c *Comm) Broadcast(origin int, buf []float64) error {
	if origin < 0 || origin >= c.t.Size() {
		return &GroupMismatchError{Op: "broadcast", Rank: origin}
	}
	parent, children := c.treeLinks(origin)
	if parent >= 0 {
		payload, err := c.t.Recv(parent)
		if err != nil {
			return errors.Wrap(err, "broadcast")
		}
		if len(payload) != len(buf) {
			return &ProtocolMismatchError{Op: "broadcast", Want: len(buf), Got: len(payload)}
		}
		copy(buf, payload)
	}
	for _, child := range children {
		if err := c.t.Send(child, buf); err != nil {
			return errors.Wrap(err, "broadcast")
		}
	}
	return nil
}

// Reduce folds every member's local contribution into a single vector at
// the destination member, using op.
//
// Only the destination receives the aggregate: it gets (result, true, nil),
// while every other member gets (nil, false, nil). The aggregate reflects
// exactly one contribution from each member. Contributions are combined in
// tree order, so repeated reductions of the same inputs on the same group
// produce bit-identical results.
func (c *Comm) Reduce(dest int, local []float64, op Op) ([]float64, bool, error) {
	if dest < 0 || dest >= c.t.Size() {
		return nil, false, &GroupMismatchError{Op: "reduce", Rank: dest}
	}
	parent, children := c.treeLinks(dest)
	acc := append([]float64(nil), local...)
	for _, child := range children {
		payload, err := c.t.Recv(child)
		if err != nil {
			return nil, false, errors.Wrap(err, "reduce")
		}
		if len(payload) != len(acc) {
			return nil, false, &ProtocolMismatchError{Op: "reduce", Want: len(acc), Got: len(payload)}
		}
		op(acc, payload)
	}
	if parent >= 0 {
		if err := c.t.Send(parent, acc); err != nil {
			return nil, false, errors.Wrap(err, "reduce")
		}
		return nil, false, nil
	}
	return acc, true, nil
}

// BroadcastFloat broadcasts a single float64 from the origin member.
func (c *Comm) BroadcastFloat(origin int, v float64) (float64, error) {
	buf := []float64{v}
	if err := c.Broadcast(origin, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// BroadcastInt broadcasts a single integer from the origin member.
// The value travels as a float64 and must be exactly representable.
func (c *Comm) BroadcastInt(origin int, v int) (int, error) {
	f, err := c.BroadcastFloat(origin, float64(v))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// ReduceFloat reduces a single float64 per member to the destination.
func (c *Comm) ReduceFloat(dest int, v float64, op Op) (float64, bool, error) {
	res, ok, err := c.Reduce(dest, []float64{v}, op)
	if err != nil || !ok {
		return 0, ok, err
	}
	return res[0], true, nil
}

// treeLinks returns the member's parent and children in a binary tree
// rooted at the given rank. The root's parent is -1. Ranks are laid out in
// heap order relative to the root, so the same group always produces the
// same tree for a given root.
func (c *Comm) treeLinks(root int) (parent int, children []int) {
	size := c.t.Size()
	rel := (c.t.Rank() - root + size) % size
	parent = -1
	if rel != 0 {
		parent = ((rel-1)/2 + root) % size
	}
	for _, childRel := range []int{2*rel + 1, 2*rel + 2} {
		if childRel < size {
			children = append(children, (childRel+root)%size)
		}
	}
	return parent, children
}
