package core

import "fmt"

// resolveFork is the Fork Resolver (C10): classifies a block that failed
// to append normally onto the current tip as Fork-1, Fork-5, or a discard.
func (p *Pipeline) resolveFork(block, last *Block) error {
	switch {
	case block.Height == last.Height+1 && block.PreviousBlockID != last.ID:
		return p.resolveFork1(block, last)
	case block.Height == last.Height && block.PreviousBlockID == last.PreviousBlockID && block.ID != last.ID:
		return p.resolveFork5(block, last)
	default:
		return fmt.Errorf("%w: block %s at height %d neither extends nor contests the current tip", ErrChainDivergent, block.ID, block.Height)
	}
}

// forkWinner applies the tie-break rule shared by Fork-1 and Fork-5: the
// block with the older createdAt wins; ties are broken by the numerically
// smaller id.
func forkWinner(incoming, current *Block) *Block {
	if incoming.CreatedAt != current.CreatedAt {
		if incoming.CreatedAt < current.CreatedAt {
			return incoming
		}
		return current
	}
	if lessHash(incoming.ID, current.ID) {
		return incoming
	}
	return current
}

// resolveFork1 handles consecutive-height, different-parent disagreement.
// A winning incoming block drops both the current head and its parent,
// unwinding each one's effect on confirmed state and returning its
// transactions to the queue; the fork block itself is not applied here,
// leaving the next incoming block to re-establish the chain suffix.
func (p *Pipeline) resolveFork1(block, last *Block) error {
	if forkWinner(block, last) != block {
		return fmt.Errorf("%w: fork-1 block %s loses tie-break against the current tip", ErrChainDivergent, block.ID)
	}
	if err := p.verifyReceipt(block); err != nil {
		return err
	}

	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	head, err := p.chain.DeleteLastBlock()
	if err != nil {
		return fmt.Errorf("drop current tip during fork-1 resolution: %w", err)
	}
	p.rollbackBlock(head)
	parent, err := p.chain.DeleteLastBlock()
	if err != nil {
		return fmt.Errorf("drop tip's parent during fork-1 resolution: %w", err)
	}
	p.rollbackBlock(parent)
	p.Log.WithField("height", last.Height).WithField("winner", block.ID).Info("fork-1 resolved: dropped head and parent")
	return nil
}

// resolveFork5 handles same-height, same-parent disagreement. A winning
// incoming block drops the current head, unwinding its effect on confirmed
// state and returning its transactions to the queue, and is then processed
// as the new tip.
func (p *Pipeline) resolveFork5(block, last *Block) error {
	if forkWinner(block, last) != block {
		return fmt.Errorf("%w: fork-5 block %s loses tie-break against the current head", ErrChainDivergent, block.ID)
	}

	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	head, err := p.chain.DeleteLastBlock()
	if err != nil {
		return fmt.Errorf("drop current head during fork-5 resolution: %w", err)
	}
	p.rollbackBlock(head)
	if err := p.processBlockLocked(block, true, true); err != nil {
		return err
	}
	p.Log.WithField("height", block.Height).WithField("winner", block.ID).Info("fork-5 resolved: replaced head")
	return nil
}
