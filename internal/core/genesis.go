package core

// NewGenesisBlock builds the height-1 block a fresh chain store is seeded
// with: no transactions, signed by kp, dated createdAt (which must land on
// a slot boundary for the clock the node runs with).
func NewGenesisBlock(version uint32, createdAt uint32, kp KeyPair) *Block {
	block := &Block{
		Version:      version,
		Height:       1,
		CreatedAt:    createdAt,
		Transactions: nil,
		PayloadHash:  PayloadHash(nil),
	}
	SignBlock(block, kp)
	return block
}
