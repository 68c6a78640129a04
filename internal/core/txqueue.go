package core

import (
	"fmt"
	"sync"
)

// TxQueue is the FIFO buffer of inbound, not-yet-verified transactions. A
// single pass through DrainVerify runs the full C5 verification chain and
// promotes the transaction into the pool; failures are dropped with a
// reason rather than retried. Queue membership is idempotent: re-pushing
// an id already resident in the pool is a no-op.
type TxQueue struct {
	mu      sync.Mutex
	items   []*Transaction
	byID    map[Hash]struct{}
	pool    *TxPool
	state   *AccountState
}

// NewTxQueue constructs a queue bound to the pool and account state it
// verifies against.
func NewTxQueue(pool *TxPool, state *AccountState) *TxQueue {
	return &TxQueue{
		byID:  make(map[Hash]struct{}),
		pool:  pool,
		state: state,
	}
}

// Push appends tx to the queue, unless it is already queued or already in
// the pool.
func (q *TxQueue) Push(tx *Transaction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, queued := q.byID[tx.ID]; queued {
		return
	}
	if q.pool.Contains(tx.ID) {
		return
	}
	q.byID[tx.ID] = struct{}{}
	q.items = append(q.items, tx)
}

// Len reports the number of transactions currently waiting verification.
func (q *TxQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// VerifyResult records the outcome of verifying one queued transaction.
type VerifyResult struct {
	Tx     *Transaction
	Err    error
	Pooled bool
}

// DrainVerify runs the full verification chain over every queued
// transaction, in FIFO order, and promotes each success into the pool.
// Transactions that fail verification are dropped from the queue with
// their failure reason; the queue does not retry them automatically (the
// caller, typically fork/conflict recovery, decides whether to re-push).
func (q *TxQueue) DrainVerify() []VerifyResult {
	q.mu.Lock()
	items := q.items
	q.items = nil
	for _, tx := range items {
		delete(q.byID, tx.ID)
	}
	q.mu.Unlock()

	results := make([]VerifyResult, 0, len(items))
	for _, tx := range items {
		err := q.verifyOne(tx)
		results = append(results, VerifyResult{Tx: tx, Err: err, Pooled: err == nil})
	}
	return results
}

func (q *TxQueue) verifyOne(tx *Transaction) error {
	svc, err := Dispatch(tx.Type)
	if err != nil {
		return err
	}
	if err := svc.Validate(tx); err != nil {
		return err
	}
	sender, ok := q.state.Lookup(tx.SenderAddress)
	if !ok {
		return fmt.Errorf("%w: sender %s does not exist", ErrInvariantViolated, tx.SenderAddress)
	}
	if sender.PublicKey == (PublicKey{}) {
		sender.PublicKey = tx.SenderPublicKey
	}
	// Fee is not part of the canonical byte layout (§4.1's offset table has
	// no fee field), so adjusting it here and recomputing id cannot
	// invalidate a signature computed before the adjustment.
	if wanted := svc.CalculateFee(tx, sender); wanted != tx.Fee {
		tx.Fee = wanted
		tx.ID = HashTx(tx)
	}
	if err := VerifyTxSignature(tx, sender.PublicKey, sender.SecondPublicKey); err != nil {
		return err
	}
	if err := svc.VerifyUnconfirmed(tx, q.state, true); err != nil {
		return err
	}
	return q.pool.Add(tx)
}
