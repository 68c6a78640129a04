package core

import "fmt"

// StakeEntry is one locked stake on an account, ordered by creation.
type StakeEntry struct {
	Amount         int64
	StartTimestamp uint32
}

// Account is the per-address ledger record. ActualBalance must never go
// negative after apply; ActualBalance-TotalStakedAmount is the spendable
// balance available to new outgoing transfers.
type Account struct {
	Address           Address
	PublicKey         PublicKey
	ActualBalance     int64
	TotalStakedAmount int64
	SecondPublicKey   *PublicKey
	Votes             map[Address]struct{}
	Stakes            []StakeEntry
}

// SpendableBalance is ActualBalance minus TotalStakedAmount.
func (a *Account) SpendableBalance() int64 {
	return a.ActualBalance - a.TotalStakedAmount
}

func newAccount(addr Address) *Account {
	return &Account{Address: addr, Votes: make(map[Address]struct{})}
}

func (a *Account) clone() *Account {
	c := *a
	c.Votes = make(map[Address]struct{}, len(a.Votes))
	for v := range a.Votes {
		c.Votes[v] = struct{}{}
	}
	c.Stakes = append([]StakeEntry(nil), a.Stakes...)
	if a.SecondPublicKey != nil {
		pk := *a.SecondPublicKey
		c.SecondPublicKey = &pk
	}
	return &c
}

// mutation is one entry of an AccountState diary: enough information to
// restore the prior value of a single account on undo.
type mutation struct {
	address Address
	before  *Account // nil if the account did not exist before this block
	existed bool
}

// AccountState is the in-memory Address -> Account map, with a diary of
// changes made since BeginDiary so a failed or later-superseded block can
// be undone and restore exact prior state.
type AccountState struct {
	accounts map[Address]*Account
	diary    []mutation
	diarying bool
}

// NewAccountState constructs an empty account state.
func NewAccountState() *AccountState {
	return &AccountState{accounts: make(map[Address]*Account)}
}

// Get returns the account for addr, creating it with zero balances if it
// does not yet exist. The returned reference is valid until the next
// mutating call; callers must not retain it across an Undo or Rollback,
// which replace the account record.
func (s *AccountState) Get(addr Address) *Account {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = newAccount(addr)
		s.accounts[addr] = acc
	}
	return acc
}

// Lookup returns the account for addr without creating it.
func (s *AccountState) Lookup(addr Address) (*Account, bool) {
	acc, ok := s.accounts[addr]
	return acc, ok
}

// BeginDiary starts recording mutations so they can later be rolled back
// with Undo. Callers must pair every BeginDiary with exactly one Undo or
// Commit.
func (s *AccountState) BeginDiary() {
	s.diary = s.diary[:0]
	s.diarying = true
}

// Commit discards the diary, keeping all mutations recorded since
// BeginDiary.
func (s *AccountState) Commit() {
	s.diary = nil
	s.diarying = false
}

// Undo reverts every mutation recorded since BeginDiary, in reverse order,
// restoring the account map to its exact prior byte-equal state.
func (s *AccountState) Undo() {
	for i := len(s.diary) - 1; i >= 0; i-- {
		m := s.diary[i]
		if m.existed {
			s.accounts[m.address] = m.before
		} else {
			delete(s.accounts, m.address)
		}
	}
	s.diary = nil
	s.diarying = false
}

// SnapshotDiary returns a copy of the diary recorded since the last
// BeginDiary, independent of the live diary slice, so it can be archived
// past a Commit and replayed later with Rollback.
func (s *AccountState) SnapshotDiary() []mutation {
	return append([]mutation(nil), s.diary...)
}

// Rollback reverts every mutation in an archived diary, in reverse order.
// Unlike Undo, it does not require BeginDiary/diarying state: diary is a
// snapshot captured by SnapshotDiary for a block that has since been
// Commit-ed, potentially long ago, and is being reversed independently of
// the live diary (used by fork recovery to drop an already-confirmed
// block).
func (s *AccountState) Rollback(diary []mutation) {
	for i := len(diary) - 1; i >= 0; i-- {
		m := diary[i]
		if m.existed {
			s.accounts[m.address] = m.before
		} else {
			delete(s.accounts, m.address)
		}
	}
}

// record snapshots addr's current account (if any) into the diary before a
// mutation is applied to it. Idempotent within one diary: only the first
// touch of a given address is recorded, so later mutations within the same
// diary don't clobber the true "before" snapshot.
func (s *AccountState) record(addr Address) {
	if !s.diarying {
		return
	}
	for _, m := range s.diary {
		if m.address == addr {
			return
		}
	}
	before, existed := s.accounts[addr]
	var snapshot *Account
	if existed {
		snapshot = before.clone()
	}
	s.diary = append(s.diary, mutation{address: addr, before: snapshot, existed: existed})
}

// Credit increases addr's actual balance by amount (amount may be
// negative to debit).
func (s *AccountState) Credit(addr Address, amount int64) error {
	s.record(addr)
	acc := s.Get(addr)
	if acc.ActualBalance+amount < 0 {
		return fmt.Errorf("%w: address %s balance %d cannot absorb delta %d", ErrInsufficientBalance, addr, acc.ActualBalance, amount)
	}
	acc.ActualBalance += amount
	return nil
}

// Debit decreases addr's actual balance by amount; it is Credit(-amount)
// spelled for call-site clarity.
func (s *AccountState) Debit(addr Address, amount int64) error {
	return s.Credit(addr, -amount)
}

// Stake locks amount out of addr's actual balance into TotalStakedAmount.
func (s *AccountState) Stake(addr Address, amount int64, startTimestamp uint32) error {
	s.record(addr)
	acc := s.Get(addr)
	if acc.SpendableBalance() < amount {
		return fmt.Errorf("%w: address %s spendable %d cannot stake %d", ErrInsufficientBalance, addr, acc.SpendableBalance(), amount)
	}
	acc.TotalStakedAmount += amount
	acc.Stakes = append(acc.Stakes, StakeEntry{Amount: amount, StartTimestamp: startTimestamp})
	return nil
}

// Unstake releases amount from TotalStakedAmount back to spendable
// balance, removing matching stake entries oldest-first.
func (s *AccountState) Unstake(addr Address, amount int64) error {
	s.record(addr)
	acc := s.Get(addr)
	if acc.TotalStakedAmount < amount {
		return fmt.Errorf("%w: address %s staked %d cannot unstake %d", ErrInvariantViolated, addr, acc.TotalStakedAmount, amount)
	}
	acc.TotalStakedAmount -= amount
	remaining := amount
	kept := acc.Stakes[:0:0]
	for _, st := range acc.Stakes {
		if remaining <= 0 {
			kept = append(kept, st)
			continue
		}
		switch {
		case st.Amount <= remaining:
			remaining -= st.Amount
		default:
			kept = append(kept, StakeEntry{Amount: st.Amount - remaining, StartTimestamp: st.StartTimestamp})
			remaining = 0
		}
	}
	acc.Stakes = kept
	return nil
}

// AddVote records addr's vote for delegate.
func (s *AccountState) AddVote(addr, delegate Address) {
	s.record(addr)
	acc := s.Get(addr)
	acc.Votes[delegate] = struct{}{}
}

// RemoveVote removes addr's vote for delegate, if present.
func (s *AccountState) RemoveVote(addr, delegate Address) {
	s.record(addr)
	acc := s.Get(addr)
	delete(acc.Votes, delegate)
}

// overwrite replaces addr's account wholesale. Used by conflict resolution
// to resync a pool-speculative ledger from the confirmed one; bypasses the
// normal field-by-field mutation helpers since the whole record changes.
func (s *AccountState) overwrite(addr Address, acc *Account) {
	s.record(addr)
	s.accounts[addr] = acc
}

// SetSecondPublicKey registers addr's second-signature key.
func (s *AccountState) SetSecondPublicKey(addr Address, pub PublicKey) {
	s.record(addr)
	acc := s.Get(addr)
	acc.SecondPublicKey = &pub
}
