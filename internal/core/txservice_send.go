package core

import "fmt"

// sendService implements TxService for TxSend (a plain value transfer).
type sendService struct{}

func (sendService) Create(tx *Transaction) {
	if tx.Asset == nil {
		tx.Asset = &Transfer{}
	}
}

func (sendService) Validate(tx *Transaction) error {
	if err := validateCommon(tx); err != nil {
		return err
	}
	transfer := tx.Asset.(*Transfer)
	if transfer.Amount == 0 {
		return fmt.Errorf("%w: SEND amount must be non-zero", ErrInvariantViolated)
	}
	return nil
}

func (sendService) CalculateFee(tx *Transaction, sender *Account) int64 {
	return baseFeeFor(TxSend)
}

func (sendService) VerifyUnconfirmed(tx *Transaction, state *AccountState, checkExists bool) error {
	if checkExists {
		if _, ok := state.Lookup(tx.SenderAddress); !ok {
			return fmt.Errorf("%w: sender %s does not exist", ErrInvariantViolated, tx.SenderAddress)
		}
	}
	sender := state.Get(tx.SenderAddress)
	transfer := tx.Asset.(*Transfer)
	total := transfer.Amount + uint64(tx.Fee)
	if sender.SpendableBalance() < int64(total) {
		return fmt.Errorf("%w: sender %s spendable %d cannot cover %d", ErrInsufficientBalance, tx.SenderAddress, sender.SpendableBalance(), total)
	}
	return nil
}

func (sendService) ApplyUnconfirmed(tx *Transaction, state *AccountState) error {
	transfer := tx.Asset.(*Transfer)
	if err := state.Debit(tx.SenderAddress, int64(transfer.Amount)+tx.Fee); err != nil {
		return err
	}
	return state.Credit(transfer.RecipientAddress, int64(transfer.Amount))
}

func (sendService) UndoUnconfirmed(tx *Transaction, state *AccountState) error {
	transfer := tx.Asset.(*Transfer)
	if err := state.Debit(transfer.RecipientAddress, int64(transfer.Amount)); err != nil {
		return err
	}
	return state.Credit(tx.SenderAddress, int64(transfer.Amount)+tx.Fee)
}
