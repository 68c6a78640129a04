package core

import (
	"fmt"
	"sort"
	"sync"
)

// TxPool holds verified, unconfirmed transactions, indexed by id and by
// sender/recipient address, ready for inclusion in a forged block.
type TxPool struct {
	mu        sync.RWMutex
	byID      map[Hash]*Transaction
	bySender  map[Address][]*Transaction
	byRecip   map[Address][]*Transaction
	state     *AccountState
}

// NewTxPool constructs an empty pool that applies/undoes against state.
func NewTxPool(state *AccountState) *TxPool {
	return &TxPool{
		byID:     make(map[Hash]*Transaction),
		bySender: make(map[Address][]*Transaction),
		byRecip:  make(map[Address][]*Transaction),
		state:    state,
	}
}

// Contains reports whether id is already resident in the pool.
func (p *TxPool) Contains(id Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byID[id]
	return ok
}

// Get returns the pooled transaction for id, if present.
func (p *TxPool) Get(id Hash) (*Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.byID[id]
	return tx, ok
}

// Add inserts tx into the pool and applies its account-state mutation. The
// caller is responsible for having already run verification; Add assumes
// tx passed VerifyUnconfirmed.
func (p *TxPool) Add(tx *Transaction) error {
	svc, err := Dispatch(tx.Type)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byID[tx.ID]; exists {
		return nil
	}
	if err := svc.ApplyUnconfirmed(tx, p.state); err != nil {
		return err
	}

	p.byID[tx.ID] = tx
	p.bySender[tx.SenderAddress] = insertSorted(p.bySender[tx.SenderAddress], tx)
	if recipient, _ := tx.recipientAndAmount(); recipient != 0 {
		p.byRecip[recipient] = insertSorted(p.byRecip[recipient], tx)
	}
	return nil
}

// Remove evicts tx from the pool and undoes its account-state mutation.
func (p *TxPool) Remove(id Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(id)
}

func (p *TxPool) removeLocked(id Hash) error {
	tx, ok := p.byID[id]
	if !ok {
		return nil
	}
	svc, err := Dispatch(tx.Type)
	if err != nil {
		return err
	}
	if err := svc.UndoUnconfirmed(tx, p.state); err != nil {
		return err
	}
	delete(p.byID, id)
	p.bySender[tx.SenderAddress] = removeByID(p.bySender[tx.SenderAddress], id)
	if recipient, _ := tx.recipientAndAmount(); recipient != 0 {
		p.byRecip[recipient] = removeByID(p.byRecip[recipient], id)
	}
	return nil
}

// GetBySenderAddress returns the pooled transactions sent by addr, ordered
// by (createdAt asc, id asc).
func (p *TxPool) GetBySenderAddress(addr Address) []*Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Transaction(nil), p.bySender[addr]...)
}

// GetByRecipientAddress returns the pooled transactions addressed to addr,
// ordered by (createdAt asc, id asc).
func (p *TxPool) GetByRecipientAddress(addr Address) []*Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Transaction(nil), p.byRecip[addr]...)
}

// PopSortedUnconfirmed returns up to limit pooled transactions ordered by
// (fee desc, createdAt asc, id asc), without removing them — removal only
// happens once the block that included them successfully applies.
func (p *TxPool) PopSortedUnconfirmed(limit int) []*Transaction {
	p.mu.RLock()
	all := make([]*Transaction, 0, len(p.byID))
	for _, tx := range p.byID {
		all = append(all, tx)
	}
	p.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return globalOrderLess(all[i], all[j])
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// RemoveAll evicts every transaction in ids, undoing each in turn, and
// reports the first error encountered (if any) after attempting the rest.
func (p *TxPool) RemoveAll(ids []Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, id := range ids {
		if err := p.removeLocked(id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", id, err)
		}
	}
	return firstErr
}

func globalOrderLess(a, b *Transaction) bool {
	if a.Fee != b.Fee {
		return a.Fee > b.Fee // fee desc
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt // createdAt asc
	}
	return lessHash(a.ID, b.ID) // id asc
}

func perAddressOrderLess(a, b *Transaction) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return lessHash(a.ID, b.ID)
}

func lessHash(a, b Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func insertSorted(list []*Transaction, tx *Transaction) []*Transaction {
	i := sort.Search(len(list), func(i int) bool {
		return perAddressOrderLess(tx, list[i])
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = tx
	return list
}

func removeByID(list []*Transaction, id Hash) []*Transaction {
	for i, tx := range list {
		if tx.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
