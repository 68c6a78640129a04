package core

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	tx := sampleTransfer(t)
	SignTx(tx, kp)

	unsigned := *tx
	unsigned.Signature = Signature{}
	if !Verify(HashTx(&unsigned), kp.Public, tx.Signature) {
		t.Fatal("verify(hash(t), sender.publicKey, sign(hash(t), sender.keypair)) == false")
	}
}

func TestVerifyTxSignatureRejectsTamperedAmount(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	tx := sampleTransfer(t)
	SignTx(tx, kp)

	transfer := tx.Asset.(*Transfer)
	transfer.Amount += 1 // tamper after signing, without recomputing signature
	if err := VerifyTxSignature(tx, kp.Public, nil); err == nil {
		t.Fatal("expected signature verification to fail after tampering")
	}
}

// Fee is deliberately excluded from the canonical byte layout (§4.1's
// offset table has no fee field), so tampering it alone cannot invalidate
// a signature: this is what lets txqueue recompute a VOTE's fee after the
// sender is known without re-signing.
func TestVerifyTxSignatureIgnoresFee(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	tx := sampleTransfer(t)
	SignTx(tx, kp)

	tx.Fee += 1
	if err := VerifyTxSignature(tx, kp.Public, nil); err != nil {
		t.Fatalf("fee is not part of the signed bytes, expected verification to still pass, got %v", err)
	}
}

func TestSecondSignatureRequiredWhenRegistered(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	second, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	tx := sampleTransfer(t)
	SignTx(tx, kp)

	if err := VerifyTxSignature(tx, kp.Public, &second.Public); err == nil {
		t.Fatal("expected error: second signature required but missing")
	}

	SignSecond(tx, second)
	if err := VerifyTxSignature(tx, kp.Public, &second.Public); err != nil {
		t.Fatalf("expected valid second signature, got %v", err)
	}
}

func TestAddressFromPublicKeyDeterministic(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	a1 := AddressFromPublicKey(kp.Public)
	a2 := AddressFromPublicKey(kp.Public)
	if a1 != a2 {
		t.Fatal("AddressFromPublicKey not deterministic")
	}
}

func TestSignBlockVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	b := &Block{Version: 1, Height: 2, CreatedAt: 20}
	SignBlock(b, kp)
	if err := VerifyBlockSignature(b); err != nil {
		t.Fatalf("VerifyBlockSignature: %v", err)
	}
	if HashBlock(b) != b.ID {
		t.Fatal("block id does not match hash of canonical bytes")
	}
}
