package core

import "testing"

func TestTxQueuePushVerifyPromotesToPool(t *testing.T) {
	state := NewAccountState()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sender := AddressFromPublicKey(kp.Public)
	_ = state.Credit(sender, 20_000)

	pool := NewTxPool(state)
	queue := NewTxQueue(pool, state)

	tx := newSendTx(sender, 2, 100, 10_000)
	SignTx(tx, kp)
	queue.Push(tx)

	if got := queue.Len(); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
	results := queue.DrainVerify()
	if len(results) != 1 || results[0].Err != nil || !results[0].Pooled {
		t.Fatalf("expected single successful verification, got %+v", results)
	}
	if !pool.Contains(tx.ID) {
		t.Fatal("verified tx should be pooled")
	}
	if queue.Len() != 0 {
		t.Fatal("queue should be drained")
	}
}

func TestTxQueueDropsUnverifiableTx(t *testing.T) {
	state := NewAccountState()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sender := AddressFromPublicKey(kp.Public)
	_ = state.Credit(sender, 50) // not enough for fee

	pool := NewTxPool(state)
	queue := NewTxQueue(pool, state)

	tx := newSendTx(sender, 2, 100, 10_000)
	SignTx(tx, kp)
	queue.Push(tx)

	results := queue.DrainVerify()
	if len(results) != 1 || results[0].Err == nil || results[0].Pooled {
		t.Fatalf("expected verification failure, got %+v", results)
	}
	if pool.Contains(tx.ID) {
		t.Fatal("failed tx must not be pooled")
	}
}

func TestTxQueuePushIdempotentWhenAlreadyPooled(t *testing.T) {
	state := NewAccountState()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sender := AddressFromPublicKey(kp.Public)
	_ = state.Credit(sender, 20_000)

	pool := NewTxPool(state)
	queue := NewTxQueue(pool, state)

	tx := newSendTx(sender, 2, 100, 10_000)
	SignTx(tx, kp)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}

	queue.Push(tx)
	if queue.Len() != 0 {
		t.Fatal("pushing an already-pooled id must be a no-op")
	}
}
