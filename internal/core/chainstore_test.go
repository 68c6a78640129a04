package core

import "testing"

func makeTestBlock(height uint64) *Block {
	return &Block{Height: height, ID: Hash{byte(height)}}
}

func TestChainStorePushAndLastBlock(t *testing.T) {
	store, err := NewChainStore(3, NewMemStorage())
	if err != nil {
		t.Fatalf("NewChainStore: %v", err)
	}
	if store.LastBlock() != nil {
		t.Fatal("empty store should have no last block")
	}

	b1, b2 := makeTestBlock(1), makeTestBlock(2)
	if err := store.PushBlock(b1, true); err != nil {
		t.Fatalf("PushBlock b1: %v", err)
	}
	if err := store.PushBlock(b2, true); err != nil {
		t.Fatalf("PushBlock b2: %v", err)
	}
	if got := store.LastBlock(); got != b2 {
		t.Fatalf("LastBlock = %+v, want b2", got)
	}
	if got, ok := store.ByID(b1.ID); !ok || got != b1 {
		t.Fatal("ByID should find b1")
	}
}

func TestChainStoreEvictsBeyondDepth(t *testing.T) {
	store, err := NewChainStore(2, NewMemStorage())
	if err != nil {
		t.Fatalf("NewChainStore: %v", err)
	}
	b1, b2, b3 := makeTestBlock(1), makeTestBlock(2), makeTestBlock(3)
	_ = store.PushBlock(b1, true)
	_ = store.PushBlock(b2, true)
	_ = store.PushBlock(b3, true)

	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	if _, ok := store.ByID(b1.ID); ok {
		t.Fatal("b1 should have been evicted")
	}
	if _, ok := store.ByID(b3.ID); !ok {
		t.Fatal("b3 should still be retained")
	}
}

func TestChainStoreDeleteLastBlock(t *testing.T) {
	storage := NewMemStorage()
	store, err := NewChainStore(3, storage)
	if err != nil {
		t.Fatalf("NewChainStore: %v", err)
	}
	b1, b2 := makeTestBlock(1), makeTestBlock(2)
	_ = store.PushBlock(b1, true)
	_ = store.PushBlock(b2, true)

	popped, err := store.DeleteLastBlock()
	if err != nil {
		t.Fatalf("DeleteLastBlock: %v", err)
	}
	if popped != b2 {
		t.Fatal("expected b2 to be popped")
	}
	if store.LastBlock() != b1 {
		t.Fatal("expected b1 to be the new tip")
	}
	last, err := storage.GetLastBlock()
	if err != nil || last != b1 {
		t.Fatalf("storage tail should mirror b1, got %+v, err %v", last, err)
	}
}

func TestChainStoreDeleteLastBlockEmpty(t *testing.T) {
	store, err := NewChainStore(3, NewMemStorage())
	if err != nil {
		t.Fatalf("NewChainStore: %v", err)
	}
	if _, err := store.DeleteLastBlock(); err == nil {
		t.Fatal("expected error deleting from empty store")
	}
}
