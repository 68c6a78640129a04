package core

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Delegates resolves which public key is elected to forge a given slot. A
// real implementation derives this from the vote-weighted delegate roster;
// tests and the single-node CLI supply a fixed or round-robin roster
// instead.
type Delegates interface {
	ElectedAt(slot int64) (PublicKey, bool)
}

// PipelineConfig carries the environment-level forging limits: how many
// transactions and bytes a forged or accepted block may contain, and the
// block format version this node forges and accepts.
type PipelineConfig struct {
	MaxTxPerBlock int
	MaxBlockBytes int
	Version       uint32
}

// Pipeline is the Block Pipeline: it owns the single in-process path by
// which blocks are generated, received, and applied against chain state.
// Every chain-mutating entry point runs inside the Sequence.
type Pipeline struct {
	cfg       PipelineConfig
	clock     SlotClock
	delegates Delegates
	chain     *ChainStore
	pool      *TxPool
	queue     *TxQueue
	poolState *AccountState // speculative ledger backing pool/queue verification
	confirmed *AccountState // canonical ledger reflecting the applied chain
	storage   Storage
	seq       *Sequence
	dbSeq     *DBSequence

	// blockDiaries retains the confirmed-ledger diary for every block still
	// resident in chain, keyed by block id, so fork recovery can restore
	// exact prior account state for a block applied arbitrarily long ago.
	// Entries are pruned to match chain's retained window.
	blockDiaries map[Hash][]mutation

	// Broadcast is invoked with a successfully applied, locally generated
	// block. A nil Broadcast is a valid no-transport configuration.
	Broadcast func(*Block) error

	// Log receives one entry per block generated, received, or forked.
	// Defaults to a standard logrus logger tagged component=pipeline;
	// callers wire in the node's shared logger by replacing this field.
	Log logrus.FieldLogger

	poolMu sync.RWMutex
}

// NewPipeline wires the Block Pipeline to its collaborators.
func NewPipeline(cfg PipelineConfig, clock SlotClock, delegates Delegates, chain *ChainStore, pool *TxPool, queue *TxQueue, poolState, confirmed *AccountState, storage Storage) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		clock:        clock,
		delegates:    delegates,
		chain:        chain,
		pool:         pool,
		queue:        queue,
		poolState:    poolState,
		confirmed:    confirmed,
		storage:      storage,
		seq:          NewSequence(),
		dbSeq:        NewDBSequence(),
		blockDiaries: make(map[Hash][]mutation),
		Log:          logrus.WithField("component", "pipeline"),
	}
}

// Shutdown begins a cooperative drain: any Run already in flight completes,
// no further GenerateBlock/ReceiveBlock call is admitted, and a long batch
// already in flight stops at its next checkpoint.
func (p *Pipeline) Shutdown() {
	p.seq.Drain()
}

// GenerateBlock drains the pool, forges a block for slotTimestamp atop the
// current chain tip, signs it with kp, and processes it as a normal
// append. Drained transactions are left in the pool on failure, since
// PopSortedUnconfirmed never removes them ahead of a successful apply.
func (p *Pipeline) GenerateBlock(kp KeyPair, slotTimestamp uint32) (*Block, error) {
	var built *Block
	err := p.seq.Run(func() error {
		p.poolMu.Lock()
		defer p.poolMu.Unlock()

		last := p.chain.LastBlock()
		if last == nil {
			return fmt.Errorf("%w: chain store has no genesis block", ErrInvariantViolated)
		}

		drained := p.pool.PopSortedUnconfirmed(p.cfg.MaxTxPerBlock)
		block := p.assembleBlock(last, drained, kp, slotTimestamp)

		if err := p.processBlockLocked(block, true, true); err != nil {
			return err
		}
		// The drained transactions are now reflected in confirmed state;
		// release their pool-speculative effects since PopSortedUnconfirmed
		// left them resident.
		for _, tx := range drained {
			if err := p.pool.Remove(tx.ID); err != nil {
				return fmt.Errorf("evict confirmed tx %s from pool: %w", tx.ID, err)
			}
		}
		built = block
		return nil
	})
	if err != nil {
		p.Log.WithError(err).Warn("generate block failed")
		return nil, err
	}
	p.Log.WithField("height", built.Height).WithField("id", built.ID).Info("generated block")
	return built, nil
}

func (p *Pipeline) assembleBlock(last *Block, txs []*Transaction, kp KeyPair, createdAt uint32) *Block {
	var amount uint64
	var fee int64
	for _, tx := range txs {
		_, a := tx.recipientAndAmount()
		amount += a
		fee += tx.Fee
	}
	block := &Block{
		Version:          p.cfg.Version,
		Height:           last.Height + 1,
		PreviousBlockID:  last.ID,
		CreatedAt:        createdAt,
		Transactions:     txs,
		TransactionCount: uint32(len(txs)),
		Amount:           amount,
		Fee:              fee,
		PayloadHash:      PayloadHash(txs),
	}
	SignBlock(block, kp)
	return block
}

// ReceiveBlock classifies an externally supplied block and routes it to a
// normal append, the fork resolver, or an AlreadyConfirmed no-op.
func (p *Pipeline) ReceiveBlock(block *Block) error {
	return p.seq.Run(func() error {
		last := p.chain.LastBlock()
		if last == nil {
			return fmt.Errorf("%w: chain store has no genesis block", ErrInvariantViolated)
		}
		if block.ID == last.ID {
			p.Log.WithField("id", block.ID).Debug("received already-confirmed block")
			return ErrAlreadyConfirmed
		}
		if block.PreviousBlockID == last.ID && block.Height == last.Height+1 {
			if err := p.receiveNormalAppend(block); err != nil {
				p.Log.WithField("height", block.Height).WithError(err).Warn("normal append failed")
				return err
			}
			p.Log.WithField("height", block.Height).WithField("id", block.ID).Info("received block")
			return nil
		}
		p.Log.WithField("height", block.Height).WithField("id", block.ID).Info("received block requires fork resolution")
		if err := p.resolveFork(block, last); err != nil {
			p.Log.WithField("height", block.Height).WithError(err).Warn("fork resolution failed")
			return err
		}
		return nil
	})
}

// receiveNormalAppend handles a block that extends the current tip by
// exactly one height: displaced pool entries covered by the incoming block
// are released from pool-speculative state before the block is processed
// for real, and any sender whose remaining pool transactions become
// infeasible afterward is routed through conflict resolution.
func (p *Pipeline) receiveNormalAppend(block *Block) error {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	for _, tx := range block.Transactions {
		if p.pool.Contains(tx.ID) {
			if err := p.pool.Remove(tx.ID); err != nil {
				return fmt.Errorf("release pooled tx %s ahead of block apply: %w", tx.ID, err)
			}
		}
	}

	if err := p.processBlockLocked(block, true, true); err != nil {
		return err
	}

	affected := make([]Address, 0, len(block.Transactions))
	seen := make(map[Address]struct{})
	for _, tx := range block.Transactions {
		if _, ok := seen[tx.SenderAddress]; !ok {
			seen[tx.SenderAddress] = struct{}{}
			affected = append(affected, tx.SenderAddress)
		}
	}
	if err := p.resolveSenderConflicts(affected); err != nil {
		return fmt.Errorf("resolve sender conflicts after block %s: %w", block.ID, err)
	}
	p.Log.WithField("height", block.Height).WithField("affectedSenders", len(affected)).Debug("resolved sender conflicts")
	return nil
}

// processBlockLocked runs verifyReceipt, verifyBlock, the per-transaction
// apply loop, and the chain push. Callers must already hold poolMu and run
// inside the Sequence. The whole per-transaction loop runs under one
// confirmed-ledger diary: a verification or storage failure partway
// through unwinds every mutation applied so far in a single Undo, rather
// than reversing transactions one at a time.
func (p *Pipeline) processBlockLocked(block *Block, broadcast, save bool) error {
	if err := p.verifyReceipt(block); err != nil {
		return err
	}
	last := p.chain.LastBlock()
	if err := p.verifyBlock(block, last); err != nil {
		return err
	}

	p.confirmed.BeginDiary()
	for _, tx := range block.Transactions {
		if p.seq.IsDraining() {
			p.confirmed.Undo()
			return fmt.Errorf("%w: shutdown requested mid-block", ErrShutdown)
		}
		svc, err := Dispatch(tx.Type)
		if err != nil {
			p.confirmed.Undo()
			return err
		}
		if _, ok := p.confirmed.Lookup(tx.SenderAddress); !ok {
			p.confirmed.Undo()
			return fmt.Errorf("%w: sender %s does not exist", ErrInvariantViolated, tx.SenderAddress)
		}
		if err := svc.VerifyUnconfirmed(tx, p.confirmed, true); err != nil {
			p.confirmed.Undo()
			return err
		}
		if err := svc.ApplyUnconfirmed(tx, p.confirmed); err != nil {
			p.confirmed.Undo()
			return err
		}
		if err := p.dbSeq.Run(func() error { return p.storage.SaveOrUpdate(tx) }); err != nil {
			p.confirmed.Undo()
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	if err := p.chain.PushBlock(block, save); err != nil {
		p.confirmed.Undo()
		return err
	}
	diary := p.confirmed.SnapshotDiary()
	p.confirmed.Commit()
	p.blockDiaries[block.ID] = diary
	p.pruneBlockDiaries()

	if broadcast && p.Broadcast != nil {
		if err := p.Broadcast(block); err != nil {
			return fmt.Errorf("%w: broadcast block %s: %v", ErrTransient, block.ID, err)
		}
	}
	return nil
}

// pruneBlockDiaries drops any retained diary for a block chain no longer
// keeps in its bounded window, since fork recovery can never target a
// block that far back.
func (p *Pipeline) pruneBlockDiaries() {
	for id := range p.blockDiaries {
		if _, ok := p.chain.ByID(id); !ok {
			delete(p.blockDiaries, id)
		}
	}
}

// rollbackBlock reverses a previously applied block's effect on confirmed
// state using its archived diary, then returns its transactions to the
// queue so they re-verify and re-enter the pool under the now-current
// chain state — the confirmed -> pool -> queue path a dropped block's
// transactions take on rollback. Called after the block has already been
// popped from chain.
func (p *Pipeline) rollbackBlock(b *Block) {
	if diary, ok := p.blockDiaries[b.ID]; ok {
		p.confirmed.Rollback(diary)
		delete(p.blockDiaries, b.ID)
	}
	for i := len(b.Transactions) - 1; i >= 0; i-- {
		p.queue.Push(b.Transactions[i])
	}
}

// verifyReceipt checks a block's self-contained integrity: id
// recomputation, signature, version, payload hash, and slot/generator
// agreement.
func (p *Pipeline) verifyReceipt(block *Block) error {
	if HashBlock(block) != block.ID {
		return fmt.Errorf("%w: block id does not match hash of its canonical bytes", ErrInvariantViolated)
	}
	if err := VerifyBlockSignature(block); err != nil {
		return err
	}
	if block.Version != p.cfg.Version {
		return fmt.Errorf("%w: block version %d, want %d", ErrInvariantViolated, block.Version, p.cfg.Version)
	}
	if PayloadHash(block.Transactions) != block.PayloadHash {
		return fmt.Errorf("%w: payload hash does not match transactions", ErrInvariantViolated)
	}

	slot := p.clock.SlotNumber(int64(block.CreatedAt))
	if p.clock.SlotTime(slot) != int64(block.CreatedAt) {
		return fmt.Errorf("%w: createdAt %d does not land on a slot boundary", ErrSlotMismatch, block.CreatedAt)
	}
	elected, ok := p.delegates.ElectedAt(slot)
	if !ok || elected != block.GeneratorPublicKey {
		return fmt.Errorf("%w: generator is not the delegate elected for slot %d", ErrSlotMismatch, slot)
	}
	return nil
}

// verifyBlock checks a block's position relative to the current chain tip.
func (p *Pipeline) verifyBlock(block, last *Block) error {
	if last != nil {
		if block.PreviousBlockID != last.ID {
			return fmt.Errorf("%w: previousBlockId does not match current tip", ErrChainDivergent)
		}
		if block.Height != last.Height+1 {
			return fmt.Errorf("%w: height %d, want %d", ErrInvariantViolated, block.Height, last.Height+1)
		}
		if block.CreatedAt <= last.CreatedAt {
			return fmt.Errorf("%w: createdAt %d does not advance past tip %d", ErrInvariantViolated, block.CreatedAt, last.CreatedAt)
		}
	}
	seen := make(map[Hash]struct{}, len(block.Transactions))
	size := len(EncodeBlock(block))
	for _, tx := range block.Transactions {
		if _, dup := seen[tx.ID]; dup {
			return fmt.Errorf("%w: duplicate transaction id %s", ErrInvariantViolated, tx.ID)
		}
		seen[tx.ID] = struct{}{}
		size += len(EncodeTx(tx))
	}
	if p.cfg.MaxBlockBytes > 0 && size > p.cfg.MaxBlockBytes {
		return fmt.Errorf("%w: block size %d exceeds MAX_BLOCK_BYTES %d", ErrInvariantViolated, size, p.cfg.MaxBlockBytes)
	}
	return nil
}

// resolveSenderConflicts re-verifies each affected sender's remaining pool
// transactions against the resynced confirmed balance. Rather than an
// incremental partial-undo (which risks double-undoing the transaction
// that triggered the check), this evicts every pending transaction for the
// sender up front, resyncs the speculative ledger from confirmed, then
// re-admits each transaction in order — equivalent in outcome, without the
// double-undo hazard. SEND transactions recurse into their recipient
// address when the recipient itself has pool activity; a visited set
// guarantees termination.
func (p *Pipeline) resolveSenderConflicts(senders []Address) error {
	visited := make(map[Address]struct{})
	var walk func(addr Address) error
	walk = func(addr Address) error {
		if _, seen := visited[addr]; seen {
			return nil
		}
		visited[addr] = struct{}{}

		pending := p.pool.GetBySenderAddress(addr)
		if len(pending) == 0 {
			return nil
		}
		for _, tx := range pending {
			if err := p.pool.Remove(tx.ID); err != nil {
				return fmt.Errorf("evict %s for conflict resolution: %w", tx.ID, err)
			}
		}
		p.resyncPoolAccount(addr)

		var recipients []Address
		for _, tx := range pending {
			svc, err := Dispatch(tx.Type)
			if err != nil {
				return err
			}
			if err := svc.VerifyUnconfirmed(tx, p.poolState, true); err != nil {
				p.queue.Push(tx)
				continue
			}
			if err := p.pool.Add(tx); err != nil {
				p.queue.Push(tx)
				continue
			}
			if tx.Type == TxSend {
				if recipient, _ := tx.recipientAndAmount(); recipient != 0 {
					recipients = append(recipients, recipient)
				}
			}
		}
		for _, r := range recipients {
			if err := walk(r); err != nil {
				return err
			}
		}
		return nil
	}
	for _, addr := range senders {
		if err := walk(addr); err != nil {
			return err
		}
	}
	return nil
}

// resyncPoolAccount overwrites addr's speculative ledger entry with the
// confirmed ledger's current value, discarding stale pool-only deltas so
// conflict resolution re-verifies against a correct baseline.
func (p *Pipeline) resyncPoolAccount(addr Address) {
	confirmed, ok := p.confirmed.Lookup(addr)
	if !ok {
		return
	}
	p.poolState.overwrite(addr, confirmed.clone())
}
