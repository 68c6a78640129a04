package core

import "fmt"

// TxService is the per-type behaviour a transaction's asset variant must
// provide. One implementation exists per TxType; Dispatch resolves the
// service for a transaction's declared type and returns an error for any
// type outside the sealed set, so adding a type is a compile-time change
// rather than a silently-ignored default case.
type TxService interface {
	// Create populates asset defaults appropriate for a freshly built
	// transaction of this type.
	Create(tx *Transaction)

	// Validate runs static field/range checks that do not depend on
	// current account state.
	Validate(tx *Transaction) error

	// CalculateFee returns the fee this transaction must carry given the
	// sender's current state. Some types (VOTE) price differently
	// depending on the sender's stake.
	CalculateFee(tx *Transaction, sender *Account) int64

	// VerifyUnconfirmed runs dynamic checks against current account state
	// (balance, vote legality, frozen stakes, ...). When checkExists is
	// true the verifier additionally requires the sender account to
	// already exist (used on block receipt; relaxed during local
	// construction).
	VerifyUnconfirmed(tx *Transaction, state *AccountState, checkExists bool) error

	// ApplyUnconfirmed mutates account state to reflect the transaction's
	// inclusion in the pool (not yet a confirmed block).
	ApplyUnconfirmed(tx *Transaction, state *AccountState) error

	// UndoUnconfirmed reverses exactly the mutation ApplyUnconfirmed made,
	// without replaying it — fee and asset effects are inverted directly.
	UndoUnconfirmed(tx *Transaction, state *AccountState) error
}

// Dispatch resolves the TxService implementing t's semantics.
func Dispatch(t TxType) (TxService, error) {
	switch t {
	case TxSend:
		return sendService{}, nil
	case TxVote:
		return voteService{}, nil
	case TxUnvote:
		return unvoteService{}, nil
	case TxStake:
		return stakeService{}, nil
	default:
		return nil, fmt.Errorf("%w: no transaction service for type %d", ErrMalformed, t)
	}
}

// baseFeeFor returns the flat minimum fee for transaction types whose cost
// does not depend on sender state.
func baseFeeFor(t TxType) int64 {
	switch t {
	case TxSend:
		return 10_000
	case TxStake:
		return 20_000
	case TxUnvote:
		return 10_000
	default:
		return 10_000
	}
}

// validateCommon runs the field checks shared by every transaction type.
func validateCommon(tx *Transaction) error {
	if tx.Fee < 0 {
		return fmt.Errorf("%w: negative fee %d", ErrInvariantViolated, tx.Fee)
	}
	if tx.Asset == nil {
		return fmt.Errorf("%w: missing asset", ErrMalformed)
	}
	if tx.Asset.Type() != tx.Type {
		return fmt.Errorf("%w: asset type %s does not match transaction type %s", ErrInvariantViolated, tx.Asset.Type(), tx.Type)
	}
	return nil
}
