package collective

import "fmt"

// A GroupMismatchError indicates that a collective call referenced a member
// that is not part of the group, or that a message arrived from an
// unexpected member. Fatal to the run.
type GroupMismatchError struct {
	Op   string
	Rank int
}

func (g *GroupMismatchError) Error() string {
	return fmt.Sprintf("%s: rank %d is not part of the group", g.Op, g.Rank)
}

// A ProtocolMismatchError indicates that a member's operand disagreed in
// size with what the rest of the group supplied. Fatal to the run.
type ProtocolMismatchError struct {
	Op   string
	Want int
	Got  int
}

func (p *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("%s: operand has %d elements, group expects %d", p.Op, p.Got, p.Want)
}
