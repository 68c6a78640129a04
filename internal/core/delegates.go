package core

// RoundRobinDelegates implements Delegates over a fixed, ordered roster of
// public keys, cycling one delegate per slot. Deriving the roster from
// vote weight is out of scope (see the node's documented non-goals); a
// fixed roster still exercises every slot/generator invariant the block
// pipeline enforces.
type RoundRobinDelegates struct {
	roster []PublicKey
}

// NewRoundRobinDelegates builds a roster from roster, in forging order.
func NewRoundRobinDelegates(roster []PublicKey) *RoundRobinDelegates {
	cp := make([]PublicKey, len(roster))
	copy(cp, roster)
	return &RoundRobinDelegates{roster: cp}
}

// ElectedAt returns the delegate assigned to slot, cycling through the
// roster in order. ok is false for an empty roster.
func (d *RoundRobinDelegates) ElectedAt(slot int64) (PublicKey, bool) {
	if len(d.roster) == 0 {
		return PublicKey{}, false
	}
	idx := slot % int64(len(d.roster))
	if idx < 0 {
		idx += int64(len(d.roster))
	}
	return d.roster[idx], true
}
