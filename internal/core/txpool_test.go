package core

import "testing"

func TestTxPoolAddRemoveAppliesAndUndoesState(t *testing.T) {
	state := NewAccountState()
	_ = state.Credit(1, 1000)
	pool := NewTxPool(state)

	tx := newSendTx(1, 2, 100, 10)
	tx.ID = HashTx(tx)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !pool.Contains(tx.ID) {
		t.Fatal("pool should contain added tx")
	}
	if bal := state.Get(1).ActualBalance; bal != 890 {
		t.Fatalf("sender balance after add = %d, want 890", bal)
	}

	if err := pool.Remove(tx.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if pool.Contains(tx.ID) {
		t.Fatal("pool should not contain removed tx")
	}
	if bal := state.Get(1).ActualBalance; bal != 1000 {
		t.Fatalf("sender balance after remove = %d, want 1000", bal)
	}
}

func TestTxPoolPopSortedOrdering(t *testing.T) {
	state := NewAccountState()
	_ = state.Credit(1, 10_000)
	pool := NewTxPool(state)

	low := newSendTx(1, 2, 10, 5)
	low.CreatedAt = 100
	low.ID = HashTx(low)
	high := newSendTx(1, 2, 10, 50)
	high.CreatedAt = 200
	high.ID = HashTx(high)

	if err := pool.Add(low); err != nil {
		t.Fatalf("Add low: %v", err)
	}
	if err := pool.Add(high); err != nil {
		t.Fatalf("Add high: %v", err)
	}

	sorted := pool.PopSortedUnconfirmed(10)
	if len(sorted) != 2 || sorted[0].ID != high.ID {
		t.Fatalf("expected fee-desc ordering with high fee first, got %+v", sorted)
	}
}

func TestTxPoolGetBySenderAndRecipient(t *testing.T) {
	state := NewAccountState()
	_ = state.Credit(1, 10_000)
	pool := NewTxPool(state)

	tx := newSendTx(1, 2, 10, 5)
	tx.ID = HashTx(tx)
	if err := pool.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := pool.GetBySenderAddress(1); len(got) != 1 || got[0].ID != tx.ID {
		t.Fatalf("GetBySenderAddress = %+v", got)
	}
	if got := pool.GetByRecipientAddress(2); len(got) != 1 || got[0].ID != tx.ID {
		t.Fatalf("GetByRecipientAddress = %+v", got)
	}
}
