package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	ed25519 "github.com/agl/ed25519"
)

// AddressFromPublicKey derives the account Address from a public key: the
// first 8 bytes of SHA-256(publicKey), read little-endian.
func AddressFromPublicKey(pub PublicKey) Address {
	sum := sha256.Sum256(pub[:])
	return Address(binary.LittleEndian.Uint64(sum[:8]))
}

// KeyPair is an Ed25519 identity: a 32-byte public key and its matching
// 64-byte private key (seed||public, per the agl/ed25519 convention).
type KeyPair struct {
	Public  PublicKey
	private *[64]byte
}

// GenerateKeyPair derives a new Ed25519 keypair. Used for delegate
// identities and, where an account registers one, its second-signature
// keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	kp := KeyPair{private: priv}
	copy(kp.Public[:], pub[:])
	return kp, nil
}

// Sign produces a detached Ed25519 signature over hash.
func Sign(hash Hash, kp KeyPair) Signature {
	sig := ed25519.Sign(kp.private, hash[:])
	var out Signature
	copy(out[:], sig[:])
	return out
}

// Verify checks a detached Ed25519 signature over hash against pub.
func Verify(hash Hash, pub PublicKey, sig Signature) bool {
	var edPub [32]byte
	copy(edPub[:], pub[:])
	var edSig [64]byte
	copy(edSig[:], sig[:])
	return ed25519.Verify(&edPub, hash[:], &edSig)
}

// SignTx computes tx's primary signature and id in place, using kp as the
// sender's identity. The signed message is the hash of the transaction
// with its signature field still zero; id is then recomputed over the
// final bytes, which include the real signature.
func SignTx(tx *Transaction, kp KeyPair) {
	tx.SenderPublicKey = kp.Public
	tx.Signature = Signature{}
	unsignedHash := HashTx(tx)
	tx.Signature = Sign(unsignedHash, kp)
	tx.ID = HashTx(tx)
}

// SignSecond applies an account's registered second signature, then
// recomputes id since the encoded bytes changed.
func SignSecond(tx *Transaction, kp KeyPair) {
	tx.SecondSignature = nil
	unsignedHash := HashTx(tx)
	sig := Sign(unsignedHash, kp)
	tx.SecondSignature = &sig
	tx.ID = HashTx(tx)
}

// VerifyTxSignature verifies a transaction's primary (and, if present,
// second) signature against the sender account's registered public keys.
func VerifyTxSignature(tx *Transaction, senderPublicKey PublicKey, secondPublicKey *PublicKey) error {
	signed := *tx
	signed.Signature = Signature{}
	signed.SecondSignature = nil
	if !Verify(HashTx(&signed), senderPublicKey, tx.Signature) {
		return fmt.Errorf("%w: primary signature", ErrSignatureInvalid)
	}
	if tx.SecondSignature != nil {
		if secondPublicKey == nil {
			return fmt.Errorf("%w: second signature present without registered key", ErrSignatureInvalid)
		}
		signed.Signature = tx.Signature
		if !Verify(HashTx(&signed), *secondPublicKey, *tx.SecondSignature) {
			return fmt.Errorf("%w: second signature", ErrSignatureInvalid)
		}
	} else if secondPublicKey != nil {
		return fmt.Errorf("%w: second signature required but missing", ErrSignatureInvalid)
	}
	return nil
}

// SignBlock seals a block with its generator's keypair, recomputing id
// afterwards as signature is part of the canonical bytes.
func SignBlock(b *Block, kp KeyPair) {
	b.GeneratorPublicKey = kp.Public
	b.Signature = Signature{}
	unsignedHash := HashBlock(b)
	b.Signature = Sign(unsignedHash, kp)
	b.ID = HashBlock(b)
}

// VerifyBlockSignature verifies a block's signature against its declared
// generator public key.
func VerifyBlockSignature(b *Block) error {
	signed := *b
	signed.Signature = Signature{}
	if !Verify(HashBlock(&signed), b.GeneratorPublicKey, b.Signature) {
		return fmt.Errorf("%w: block signature", ErrSignatureInvalid)
	}
	return nil
}
