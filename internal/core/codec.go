package core

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Byte offsets of the fixed transaction header, little-endian throughout:
// salt 16 + type 1 + createdAt 4 + senderPublicKey 32 + recipientAddress 8
// + amount 8 + signature 64 + secondSignature 64 = 197 bytes total.
const (
	offSalt             = 0
	lenSalt             = 16
	offType             = offSalt + lenSalt // 16
	lenType             = 1
	offCreatedAt        = offType + lenType // 17
	lenCreatedAt        = 4
	offSenderPublicKey  = offCreatedAt + lenCreatedAt // 21
	lenSenderPublicKey  = 32
	offRecipientAddress = offSenderPublicKey + lenSenderPublicKey // 53
	lenRecipientAddress = 8
	offAmount           = offRecipientAddress + lenRecipientAddress // 61
	lenAmount           = 8
	offSignature        = offAmount + lenAmount // 69
	lenSignature        = 64
	offSecondSignature  = offSignature + lenSignature // 133
	lenSecondSignature  = 64

	// TxHeaderLen is the total fixed-prefix length of every encoded
	// transaction, before its type-specific asset tail.
	TxHeaderLen = offSecondSignature + lenSecondSignature // 197
)

// EncodeTx renders a transaction's canonical byte form: the fixed header
// followed by the asset's variable tail. Encoding never errors: every
// field is a fixed-width value and the asset is always one of the sealed
// variants validated at construction.
func EncodeTx(tx *Transaction) []byte {
	buf := make([]byte, TxHeaderLen, TxHeaderLen+32)

	copy(buf[offSalt:offSalt+lenSalt], tx.Salt[:])
	buf[offType] = byte(tx.Type)
	binary.LittleEndian.PutUint32(buf[offCreatedAt:offCreatedAt+lenCreatedAt], tx.CreatedAt)
	copy(buf[offSenderPublicKey:offSenderPublicKey+lenSenderPublicKey], tx.SenderPublicKey[:])

	recipient, amount := tx.recipientAndAmount()
	binary.LittleEndian.PutUint64(buf[offRecipientAddress:offRecipientAddress+lenRecipientAddress], uint64(recipient))
	binary.LittleEndian.PutUint64(buf[offAmount:offAmount+lenAmount], amount)

	copy(buf[offSignature:offSignature+lenSignature], tx.Signature[:])
	if tx.SecondSignature != nil {
		copy(buf[offSecondSignature:offSecondSignature+lenSecondSignature], tx.SecondSignature[:])
	}

	if tx.Asset != nil {
		buf = append(buf, tx.Asset.encodeTail()...)
	}
	return buf
}

// DecodeTx parses a canonical byte form produced by EncodeTx back into a
// Transaction. Round-trip is identity for well-formed input: DecodeTx(EncodeTx(t))
// reproduces every field of t that the encoding carries. ID, Fee,
// SenderAddress and BlockID are not encoded and come back zero; ID must be
// recomputed by the caller via HashTx.
func DecodeTx(b []byte) (*Transaction, error) {
	if len(b) < TxHeaderLen {
		return nil, fmt.Errorf("%w: transaction too short: %d bytes, want at least %d", ErrMalformed, len(b), TxHeaderLen)
	}

	tx := &Transaction{}
	copy(tx.Salt[:], b[offSalt:offSalt+lenSalt])
	tx.Type = TxType(b[offType])
	tx.CreatedAt = binary.LittleEndian.Uint32(b[offCreatedAt : offCreatedAt+lenCreatedAt])
	copy(tx.SenderPublicKey[:], b[offSenderPublicKey:offSenderPublicKey+lenSenderPublicKey])

	recipient := Address(binary.LittleEndian.Uint64(b[offRecipientAddress : offRecipientAddress+lenRecipientAddress]))
	amount := binary.LittleEndian.Uint64(b[offAmount : offAmount+lenAmount])

	copy(tx.Signature[:], b[offSignature:offSignature+lenSignature])
	var second Signature
	copy(second[:], b[offSecondSignature:offSecondSignature+lenSecondSignature])
	if !second.IsZero() {
		tx.SecondSignature = &second
	}

	asset, err := newAssetForType(tx.Type)
	if err != nil {
		return nil, err
	}
	if transfer, ok := asset.(*Transfer); ok {
		transfer.RecipientAddress = recipient
		transfer.Amount = amount
		if err := transfer.decodeTail(b[TxHeaderLen:]); err != nil {
			return nil, err
		}
	} else if err := asset.decodeTail(b[TxHeaderLen:]); err != nil {
		return nil, fmt.Errorf("decode %s tail: %w", tx.Type, err)
	}
	tx.Asset = asset

	return tx, nil
}

// HashTx computes SHA-256 over the canonical encoding, the value a
// transaction's ID must always equal.
func HashTx(tx *Transaction) Hash {
	return sha256.Sum256(EncodeTx(tx))
}

// PayloadHash is SHA-256 over the concatenation of each transaction's
// canonical bytes, in block order.
func PayloadHash(txs []*Transaction) Hash {
	h := sha256.New()
	for _, tx := range txs {
		h.Write(EncodeTx(tx))
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// EncodeBlock renders a block's canonical bytes:
// version || createdAt || previousBlockId || transactionCount || amount ||
// fee || payloadHash || generatorPublicKey || signature, all little-endian.
func EncodeBlock(b *Block) []byte {
	buf := make([]byte, 0, 4+4+32+4+8+8+32+32+64)
	buf = appendUint32(buf, b.Version)
	buf = appendUint32(buf, b.CreatedAt)
	buf = append(buf, b.PreviousBlockID[:]...)
	buf = appendUint32(buf, b.TransactionCount)
	buf = appendUint64(buf, b.Amount)
	buf = appendInt64(buf, b.Fee)
	buf = append(buf, b.PayloadHash[:]...)
	buf = append(buf, b.GeneratorPublicKey[:]...)
	buf = append(buf, b.Signature[:]...)
	return buf
}

// HashBlock computes a block's id: SHA-256 of its canonical bytes.
func HashBlock(b *Block) Hash {
	return sha256.Sum256(EncodeBlock(b))
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
