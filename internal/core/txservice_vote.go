package core

import "fmt"

// voteFee prices a VOTE transaction as a function of the sender's current
// stake: a flat minimum plus a small percentage of staked weight, so
// heavier delegates pay proportionally more to re-declare their vote set.
func voteFee(sender *Account) int64 {
	const minFee = 10_000
	surcharge := sender.TotalStakedAmount / 1000
	return minFee + surcharge
}

// voteService implements TxService for TxVote.
type voteService struct{}

func (voteService) Create(tx *Transaction) {
	if tx.Asset == nil {
		tx.Asset = &Vote{}
	}
}

func (voteService) Validate(tx *Transaction) error {
	if err := validateCommon(tx); err != nil {
		return err
	}
	vote := tx.Asset.(*Vote)
	if len(vote.Votes) == 0 {
		return fmt.Errorf("%w: VOTE must name at least one delegate", ErrInvariantViolated)
	}
	seen := make(map[Address]struct{}, len(vote.Votes))
	for _, delegate := range vote.Votes {
		if _, dup := seen[delegate]; dup {
			return fmt.Errorf("%w: duplicate delegate %s in vote list", ErrInvariantViolated, delegate)
		}
		seen[delegate] = struct{}{}
	}
	return nil
}

// CalculateFee recomputes the required fee from current sender state. The
// transaction queue's verifier calls this during verification and, when
// it differs from the fee the transaction already carries, updates Fee and
// recomputes ID — the fee is consensus data, not caller-supplied. The
// block pipeline does not recompute fees.
func (voteService) CalculateFee(tx *Transaction, sender *Account) int64 {
	return voteFee(sender)
}

func (voteService) VerifyUnconfirmed(tx *Transaction, state *AccountState, checkExists bool) error {
	if checkExists {
		if _, ok := state.Lookup(tx.SenderAddress); !ok {
			return fmt.Errorf("%w: sender %s does not exist", ErrInvariantViolated, tx.SenderAddress)
		}
	}
	sender := state.Get(tx.SenderAddress)
	if sender.SpendableBalance() < tx.Fee {
		return fmt.Errorf("%w: sender %s spendable %d cannot cover fee %d", ErrInsufficientBalance, tx.SenderAddress, sender.SpendableBalance(), tx.Fee)
	}
	vote := tx.Asset.(*Vote)
	for _, delegate := range vote.Votes {
		if _, already := sender.Votes[delegate]; already {
			return fmt.Errorf("%w: sender %s already voted for %s", ErrInvariantViolated, tx.SenderAddress, delegate)
		}
	}
	return nil
}

func (voteService) ApplyUnconfirmed(tx *Transaction, state *AccountState) error {
	if err := state.Debit(tx.SenderAddress, tx.Fee); err != nil {
		return err
	}
	vote := tx.Asset.(*Vote)
	for _, delegate := range vote.Votes {
		state.AddVote(tx.SenderAddress, delegate)
	}
	if vote.Unstake {
		sender := state.Get(tx.SenderAddress)
		vote.undoStakes = append([]StakeEntry(nil), sender.Stakes...)
		total := int64(0)
		for _, s := range vote.undoStakes {
			total += s.Amount
		}
		if total > 0 {
			if err := state.Unstake(tx.SenderAddress, total); err != nil {
				return err
			}
		}
	}
	return nil
}

func (voteService) UndoUnconfirmed(tx *Transaction, state *AccountState) error {
	vote := tx.Asset.(*Vote)
	if vote.Unstake {
		for _, s := range vote.undoStakes {
			if err := state.Stake(tx.SenderAddress, s.Amount, s.StartTimestamp); err != nil {
				return err
			}
		}
		vote.undoStakes = nil
	}
	for _, delegate := range vote.Votes {
		state.RemoveVote(tx.SenderAddress, delegate)
	}
	return state.Credit(tx.SenderAddress, tx.Fee)
}

// unvoteService implements TxService for TxUnvote, which shares Vote's
// tail encoding but removes rather than adds the listed delegate votes.
type unvoteService struct{}

func (unvoteService) Create(tx *Transaction) {
	if tx.Asset == nil {
		tx.Asset = &Unvote{}
	}
}

func (unvoteService) Validate(tx *Transaction) error {
	if err := validateCommon(tx); err != nil {
		return err
	}
	unvote := tx.Asset.(*Unvote)
	if len(unvote.Votes) == 0 {
		return fmt.Errorf("%w: UNVOTE must name at least one delegate", ErrInvariantViolated)
	}
	return nil
}

func (unvoteService) CalculateFee(tx *Transaction, sender *Account) int64 {
	return baseFeeFor(TxUnvote)
}

func (unvoteService) VerifyUnconfirmed(tx *Transaction, state *AccountState, checkExists bool) error {
	if checkExists {
		if _, ok := state.Lookup(tx.SenderAddress); !ok {
			return fmt.Errorf("%w: sender %s does not exist", ErrInvariantViolated, tx.SenderAddress)
		}
	}
	sender := state.Get(tx.SenderAddress)
	if sender.SpendableBalance() < tx.Fee {
		return fmt.Errorf("%w: sender %s spendable %d cannot cover fee %d", ErrInsufficientBalance, tx.SenderAddress, sender.SpendableBalance(), tx.Fee)
	}
	unvote := tx.Asset.(*Unvote)
	for _, delegate := range unvote.Votes {
		if _, present := sender.Votes[delegate]; !present {
			return fmt.Errorf("%w: sender %s has no vote for %s to remove", ErrInvariantViolated, tx.SenderAddress, delegate)
		}
	}
	return nil
}

func (unvoteService) ApplyUnconfirmed(tx *Transaction, state *AccountState) error {
	if err := state.Debit(tx.SenderAddress, tx.Fee); err != nil {
		return err
	}
	unvote := tx.Asset.(*Unvote)
	for _, delegate := range unvote.Votes {
		state.RemoveVote(tx.SenderAddress, delegate)
	}
	return nil
}

func (unvoteService) UndoUnconfirmed(tx *Transaction, state *AccountState) error {
	unvote := tx.Asset.(*Unvote)
	for _, delegate := range unvote.Votes {
		state.AddVote(tx.SenderAddress, delegate)
	}
	return state.Credit(tx.SenderAddress, tx.Fee)
}
