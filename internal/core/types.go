// Package core implements the block-processing pipeline of a delegated
// proof-of-stake node: deterministic transaction/block encoding, Ed25519
// identity, account state, the unconfirmed transaction queue and pool, the
// in-memory chain store and the block pipeline and fork resolver that sit
// on top of them.
package core

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Address is the 8-byte identifier derived from the first 8 bytes of
// SHA-256(publicKey), interpreted little-endian.
type Address uint64

func (a Address) String() string { return fmt.Sprintf("%d", uint64(a)) }

// PublicKey is a raw 32-byte Ed25519 public key.
type PublicKey [32]byte

func (p PublicKey) String() string { return hex.EncodeToString(p[:]) }

// Signature is a raw 64-byte Ed25519 detached signature.
type Signature [64]byte

func (s Signature) IsZero() bool { return s == Signature{} }

// Salt is the per-transaction random nonce mixed into the canonical bytes.
type Salt [16]byte

// SaltLength is the configured width of Salt.
const SaltLength = 16

// Hash is a 32-byte SHA-256 digest, rendered as lowercase hex at the JSON
// and logging boundary.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// HashFromHex parses a 32-byte hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hash hex: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("hash hex must decode to %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// TxType identifies the sealed set of transaction asset variants. The
// switches that resolve a type's behaviour (Dispatch, newAssetForType)
// return an error for an unknown type rather than silently ignoring it;
// baseFeeFor falls back to its flat 10_000 fee and String to "UNKNOWN(n)".
type TxType uint8

const (
	TxSend TxType = iota + 1
	TxVote
	TxUnvote
	TxStake
)

func (t TxType) String() string {
	switch t {
	case TxSend:
		return "SEND"
	case TxVote:
		return "VOTE"
	case TxUnvote:
		return "UNVOTE"
	case TxStake:
		return "STAKE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Asset is the sealed variant set for a transaction's type-specific payload.
// Each implementation knows how to encode/decode its own canonical tail
// (the bytes following the fixed TX header) independently of the others.
type Asset interface {
	Type() TxType
	encodeTail() []byte
	decodeTail([]byte) error
}

// Transfer is the SEND asset: a plain value transfer. Its two fields are
// folded into the fixed transaction header (offsets 53 and 61) rather than
// the variable tail, so its tail is empty.
type Transfer struct {
	RecipientAddress Address
	Amount           uint64
}

func (t *Transfer) Type() TxType        { return TxSend }
func (t *Transfer) encodeTail() []byte  { return nil }
func (t *Transfer) decodeTail([]byte) error {
	return nil
}

// AirdropSponsor is one entry of a Vote asset's ordered sponsor map.
type AirdropSponsor struct {
	Address Address
	Amount  int64
}

// Vote is the VOTE asset: a set of delegate votes plus the reward/unstake
// bookkeeping an airdrop or delegate-reward distribution needs.
type Vote struct {
	Votes           []Address
	Reward          int64
	Unstake         bool
	AirdropSponsors []AirdropSponsor

	// undoStakes caches the stake entries ApplyUnconfirmed released when
	// Unstake is set, so UndoUnconfirmed can restore them exactly. It is
	// transaction-local bookkeeping, never encoded.
	undoStakes []StakeEntry
}

func (v *Vote) Type() TxType { return TxVote }

func (v *Vote) encodeTail() []byte {
	buf := make([]byte, 0, 2+len(v.Votes)*8+8+1+2+len(v.AirdropSponsors)*16)
	buf = appendUint16(buf, uint16(len(v.Votes)))
	for _, addr := range v.Votes {
		buf = appendUint64(buf, uint64(addr))
	}
	buf = appendInt64(buf, v.Reward)
	if v.Unstake {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint16(buf, uint16(len(v.AirdropSponsors)))
	for _, s := range v.AirdropSponsors {
		buf = appendUint64(buf, uint64(s.Address))
		buf = appendInt64(buf, s.Amount)
	}
	return buf
}

func (v *Vote) decodeTail(b []byte) error {
	r := &byteReader{buf: b}
	n, err := r.uint16()
	if err != nil {
		return fmt.Errorf("decode vote count: %w", err)
	}
	v.Votes = make([]Address, n)
	for i := range v.Votes {
		addr, err := r.uint64()
		if err != nil {
			return fmt.Errorf("decode vote address: %w", err)
		}
		v.Votes[i] = Address(addr)
	}
	reward, err := r.int64()
	if err != nil {
		return fmt.Errorf("decode vote reward: %w", err)
	}
	v.Reward = reward
	unstake, err := r.byte()
	if err != nil {
		return fmt.Errorf("decode vote unstake flag: %w", err)
	}
	v.Unstake = unstake != 0
	sponsorCount, err := r.uint16()
	if err != nil {
		return fmt.Errorf("decode sponsor count: %w", err)
	}
	v.AirdropSponsors = make([]AirdropSponsor, sponsorCount)
	for i := range v.AirdropSponsors {
		addr, err := r.uint64()
		if err != nil {
			return fmt.Errorf("decode sponsor address: %w", err)
		}
		amt, err := r.int64()
		if err != nil {
			return fmt.Errorf("decode sponsor amount: %w", err)
		}
		v.AirdropSponsors[i] = AirdropSponsor{Address: Address(addr), Amount: amt}
	}
	return r.requireEOF()
}

// Unvote shares Vote's tail shape; it removes rather than adds the listed
// delegate votes.
type Unvote struct {
	Vote
}

func (u *Unvote) Type() TxType { return TxUnvote }

// Stake is the STAKE asset: a locked amount with a start timestamp.
type Stake struct {
	Amount         uint64
	StartTimestamp uint32
}

func (s *Stake) Type() TxType { return TxStake }

func (s *Stake) encodeTail() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], s.Amount)
	binary.LittleEndian.PutUint32(buf[8:12], s.StartTimestamp)
	return buf
}

func (s *Stake) decodeTail(b []byte) error {
	if len(b) != 12 {
		return fmt.Errorf("stake tail must be 12 bytes, got %d", len(b))
	}
	s.Amount = binary.LittleEndian.Uint64(b[0:8])
	s.StartTimestamp = binary.LittleEndian.Uint32(b[8:12])
	return nil
}

// newAssetForType constructs a zero-value Asset for the given type so the
// codec can decode into it. Exhaustive by construction: an unknown type is
// a decode error, never a silent no-op.
func newAssetForType(t TxType) (Asset, error) {
	switch t {
	case TxSend:
		return &Transfer{}, nil
	case TxVote:
		return &Vote{}, nil
	case TxUnvote:
		return &Unvote{}, nil
	case TxStake:
		return &Stake{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %d", ErrMalformed, t)
	}
}

// Transaction is a single signed, ordered operation against account state.
// Its ID is always SHA-256 of its canonical byte encoding (see EncodeTx); any
// change to a field that participates in encoding invalidates ID and must
// be followed by recomputing it.
type Transaction struct {
	ID               Hash
	Type             TxType
	CreatedAt        uint32
	SenderPublicKey  PublicKey
	SenderAddress    Address
	Signature        Signature
	SecondSignature  *Signature
	Salt             Salt
	Fee              int64
	BlockID          Hash // zero value means unconfirmed
	Asset            Asset
}

// Confirmed reports whether the transaction has been included in an
// applied block.
func (tx *Transaction) Confirmed() bool { return !tx.BlockID.IsZero() }

// recipientAndAmount returns the header-folded transfer fields for any
// asset type; non-Transfer assets contribute zero, matching the byte
// layout table ("zero if not a transfer").
func (tx *Transaction) recipientAndAmount() (Address, uint64) {
	if t, ok := tx.Asset.(*Transfer); ok {
		return t.RecipientAddress, t.Amount
	}
	return 0, 0
}

// Block is an append-only link in the chain: an ordered list of
// transactions sealed by the elected generator's signature.
type Block struct {
	ID                Hash
	Version           uint32
	Height            uint64
	PreviousBlockID   Hash
	CreatedAt         uint32
	GeneratorPublicKey PublicKey
	Signature         Signature
	Transactions      []*Transaction
	TransactionCount  uint32
	Amount            uint64
	Fee               int64
	PayloadHash       Hash
}

var (
	// ErrMalformed covers decode/schema failures.
	ErrMalformed = errors.New("malformed")
	// ErrInvariantViolated covers id mismatch, negative amounts, and similar
	// structural invariant breaks.
	ErrInvariantViolated = errors.New("invariant violated")
	// ErrSignatureInvalid covers Ed25519 verification failures.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrInsufficientBalance covers spendable-balance shortfalls.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrSlotMismatch covers a block generator not matching the slot's
	// elected delegate, or a createdAt outside its slot window.
	ErrSlotMismatch = errors.New("slot mismatch")
	// ErrAlreadyConfirmed is a no-op condition on block receive.
	ErrAlreadyConfirmed = errors.New("already confirmed")
	// ErrChainDivergent covers fork conditions routed to the fork resolver.
	ErrChainDivergent = errors.New("chain divergent")
	// ErrTransient covers storage/transport faults expected to be retried.
	ErrTransient = errors.New("transient")
	// ErrShutdown is returned when a cooperative shutdown checkpoint fires
	// mid-batch.
	ErrShutdown = errors.New("shutdown")
)

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt64(buf []byte, v int64) []byte {
	return appendUint64(buf, uint64(v))
}

// byteReader is a tiny cursor over a decode buffer shared by asset tail
// decoders; it never panics on truncated input.
type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated at offset %d wanting %d bytes", ErrMalformed, r.off, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) int64() (int64, error) {
	v, err := r.uint64()
	return int64(v), err
}

func (r *byteReader) requireEOF() error {
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d trailing bytes after decode", ErrMalformed, len(r.buf)-r.off)
	}
	return nil
}
