package core

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Storage is the durable mirror collaborator: an external persistence
// layer (Postgres in production) that the chain store treats as a black
// box. Writes from the happy path are
// best-effort-synchronous per block.
type Storage interface {
	SaveOrUpdate(tx *Transaction) error
	DeleteByID(id Hash) error
	GetLastBlock() (*Block, error)
	InsertBlock(b *Block) error
	DeleteTailBlock(id Hash) error
}

// MemStorage is an in-memory Storage fake: the one concrete
// implementation this module ships, used by tests and by the node binary,
// which does not read the configured storage DSN. A real Postgres-backed
// Storage is not built here.
type MemStorage struct {
	mu     sync.Mutex
	blocks []*Block
	txs    map[Hash]*Transaction
}

// NewMemStorage constructs an empty in-memory Storage fake.
func NewMemStorage() *MemStorage {
	return &MemStorage{txs: make(map[Hash]*Transaction)}
}

func (m *MemStorage) SaveOrUpdate(tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[tx.ID] = tx
	return nil
}

func (m *MemStorage) DeleteByID(id Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, id)
	return nil
}

func (m *MemStorage) GetLastBlock() (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks persisted", ErrTransient)
	}
	return m.blocks[len(m.blocks)-1], nil
}

func (m *MemStorage) InsertBlock(b *Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, b)
	return nil
}

func (m *MemStorage) DeleteTailBlock(id Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.blocks) == 0 || m.blocks[len(m.blocks)-1].ID != id {
		return fmt.Errorf("%w: %s is not the current tail block", ErrInvariantViolated, id)
	}
	m.blocks = m.blocks[:len(m.blocks)-1]
	return nil
}

// ChainStore keeps the last N in-memory blocks — N must be at least two
// past one full delegate round so a valid fork candidate is never already
// evicted — ordered by height, with an LRU-backed id index for O(1)
// lookup. It mirrors successful writes to Storage.
type ChainStore struct {
	mu      sync.RWMutex
	depth   int
	ordered []*Block // ascending height, len() <= depth
	byID    *lru.Cache[Hash, *Block]
	storage Storage
}

// NewChainStore constructs a ChainStore retaining at most depth blocks in
// memory, mirroring durable writes to storage.
func NewChainStore(depth int, storage Storage) (*ChainStore, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: chain store depth must be positive, got %d", ErrInvariantViolated, depth)
	}
	cache, err := lru.New[Hash, *Block](depth)
	if err != nil {
		return nil, fmt.Errorf("build chain store cache: %w", err)
	}
	return &ChainStore{depth: depth, byID: cache, storage: storage}, nil
}

// LastBlock returns the current chain tip, or nil if the store is empty
// (before genesis is pushed).
func (c *ChainStore) LastBlock() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.ordered) == 0 {
		return nil
	}
	return c.ordered[len(c.ordered)-1]
}

// ByID returns the in-memory block for id, if it is still within the
// retained depth.
func (c *ChainStore) ByID(id Hash) (*Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID.Get(id)
}

// PushBlock appends b as the new tip, persists it when persist is set, and
// evicts the oldest retained block once the store exceeds depth.
func (c *ChainStore) PushBlock(b *Block, persist bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if persist {
		if err := c.storage.InsertBlock(b); err != nil {
			return fmt.Errorf("%w: persist block %s: %v", ErrTransient, b.ID, err)
		}
	}
	c.ordered = append(c.ordered, b)
	c.byID.Add(b.ID, b)
	if len(c.ordered) > c.depth {
		evicted := c.ordered[0]
		c.ordered = c.ordered[1:]
		c.byID.Remove(evicted.ID)
	}
	return nil
}

// DeleteLastBlock pops the current tip, mirroring the deletion to storage
// when storage's own tail is that block. A block pushed without persist
// (such as genesis) never reached storage, so only the in-memory pop
// happens for it.
func (c *ChainStore) DeleteLastBlock() (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ordered) == 0 {
		return nil, fmt.Errorf("%w: chain store is empty", ErrInvariantViolated)
	}
	tail := c.ordered[len(c.ordered)-1]
	if stored, err := c.storage.GetLastBlock(); err == nil && stored.ID == tail.ID {
		if err := c.storage.DeleteTailBlock(tail.ID); err != nil {
			return nil, fmt.Errorf("%w: delete tail block %s: %v", ErrTransient, tail.ID, err)
		}
	}
	c.ordered = c.ordered[:len(c.ordered)-1]
	c.byID.Remove(tail.ID)
	return tail, nil
}

// Height returns the height of the current tip, or 0 if the store is
// empty.
func (c *ChainStore) Height() uint64 {
	if b := c.LastBlock(); b != nil {
		return b.Height
	}
	return 0
}

// BlockAtHeight returns the retained block at height, if still in memory.
func (c *ChainStore) BlockAtHeight(height uint64) (*Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.ordered {
		if b.Height == height {
			return b, true
		}
	}
	return nil, false
}

// Len reports how many blocks are currently retained in memory.
func (c *ChainStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}

// BlocksAfter returns the retained blocks strictly after id, in ascending
// height order, for the peer API's GET /blocks. A zero Hash means "from
// the start of the retained window". ok is false when a non-zero id is
// not found in the retained window (the peer must fall back to a full
// sync, since this store only keeps a bounded depth).
func (c *ChainStore) BlocksAfter(id Hash) (blocks []*Block, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id.IsZero() {
		out := make([]*Block, len(c.ordered))
		copy(out, c.ordered)
		return out, true
	}
	for i, b := range c.ordered {
		if b.ID == id {
			out := make([]*Block, len(c.ordered)-i-1)
			copy(out, c.ordered[i+1:])
			return out, true
		}
	}
	return nil, false
}

// CommonAncestor returns the most recent retained block whose id appears
// in ids, for the peer API's GET /blocks/common. ok is false if none of
// ids are within the retained window.
func (c *ChainStore) CommonAncestor(ids []Hash) (block *Block, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	want := make(map[Hash]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := len(c.ordered) - 1; i >= 0; i-- {
		if _, hit := want[c.ordered[i].ID]; hit {
			return c.ordered[i], true
		}
	}
	return nil, false
}
