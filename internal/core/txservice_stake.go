package core

import "fmt"

// stakeService implements TxService for TxStake (locking funds to earn
// delegate weight).
type stakeService struct{}

func (stakeService) Create(tx *Transaction) {
	if tx.Asset == nil {
		tx.Asset = &Stake{}
	}
}

func (stakeService) Validate(tx *Transaction) error {
	if err := validateCommon(tx); err != nil {
		return err
	}
	stake := tx.Asset.(*Stake)
	if stake.Amount == 0 {
		return fmt.Errorf("%w: STAKE amount must be non-zero", ErrInvariantViolated)
	}
	return nil
}

func (stakeService) CalculateFee(tx *Transaction, sender *Account) int64 {
	return baseFeeFor(TxStake)
}

func (stakeService) VerifyUnconfirmed(tx *Transaction, state *AccountState, checkExists bool) error {
	if checkExists {
		if _, ok := state.Lookup(tx.SenderAddress); !ok {
			return fmt.Errorf("%w: sender %s does not exist", ErrInvariantViolated, tx.SenderAddress)
		}
	}
	sender := state.Get(tx.SenderAddress)
	stake := tx.Asset.(*Stake)
	total := int64(stake.Amount) + tx.Fee
	if sender.SpendableBalance() < total {
		return fmt.Errorf("%w: sender %s spendable %d cannot stake+fee %d", ErrInsufficientBalance, tx.SenderAddress, sender.SpendableBalance(), total)
	}
	return nil
}

func (stakeService) ApplyUnconfirmed(tx *Transaction, state *AccountState) error {
	stake := tx.Asset.(*Stake)
	if err := state.Debit(tx.SenderAddress, tx.Fee); err != nil {
		return err
	}
	return state.Stake(tx.SenderAddress, int64(stake.Amount), stake.StartTimestamp)
}

func (stakeService) UndoUnconfirmed(tx *Transaction, state *AccountState) error {
	stake := tx.Asset.(*Stake)
	added := StakeEntry{Amount: int64(stake.Amount), StartTimestamp: stake.StartTimestamp}
	state.record(tx.SenderAddress)
	acc := state.Get(tx.SenderAddress)
	for i := len(acc.Stakes) - 1; i >= 0; i-- {
		if acc.Stakes[i] == added {
			acc.Stakes = append(acc.Stakes[:i:i], acc.Stakes[i+1:]...)
			acc.TotalStakedAmount -= added.Amount
			return state.Credit(tx.SenderAddress, tx.Fee)
		}
	}
	return fmt.Errorf("%w: address %s has no stake entry %+v to undo", ErrInvariantViolated, tx.SenderAddress, added)
}
