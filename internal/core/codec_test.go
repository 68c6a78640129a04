package core

import "testing"

func sampleTransfer(t *testing.T) *Transaction {
	t.Helper()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	tx := &Transaction{
		Type:      TxSend,
		CreatedAt: 123456,
		Salt:      Salt{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		Fee:       10,
		Asset:     &Transfer{RecipientAddress: 42, Amount: 1000},
	}
	SignTx(tx, kp)
	return tx
}

func TestEncodeDecodeTransferRoundTrip(t *testing.T) {
	tx := sampleTransfer(t)
	decoded, err := DecodeTx(EncodeTx(tx))
	if err != nil {
		t.Fatalf("DecodeTx: %v", err)
	}
	if decoded.Type != tx.Type || decoded.CreatedAt != tx.CreatedAt || decoded.Salt != tx.Salt || decoded.Signature != tx.Signature {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, tx)
	}
	transfer, ok := decoded.Asset.(*Transfer)
	if !ok {
		t.Fatalf("decoded asset is %T, want *Transfer", decoded.Asset)
	}
	want := tx.Asset.(*Transfer)
	if *transfer != *want {
		t.Fatalf("transfer mismatch: got %+v, want %+v", transfer, want)
	}
}

func TestEncodeDecodeVoteRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	tx := &Transaction{
		Type:      TxVote,
		CreatedAt: 7,
		Fee:       5,
		Asset: &Vote{
			Votes:   []Address{1, 2, 3},
			Reward:  -50,
			Unstake: true,
			AirdropSponsors: []AirdropSponsor{
				{Address: 9, Amount: 100},
				{Address: 10, Amount: -7},
			},
		},
	}
	SignTx(tx, kp)

	decoded, err := DecodeTx(EncodeTx(tx))
	if err != nil {
		t.Fatalf("DecodeTx: %v", err)
	}
	vote, ok := decoded.Asset.(*Vote)
	if !ok {
		t.Fatalf("decoded asset is %T, want *Vote", decoded.Asset)
	}
	want := tx.Asset.(*Vote)
	if len(vote.Votes) != len(want.Votes) || vote.Reward != want.Reward || vote.Unstake != want.Unstake {
		t.Fatalf("vote mismatch: got %+v, want %+v", vote, want)
	}
	for i := range vote.Votes {
		if vote.Votes[i] != want.Votes[i] {
			t.Fatalf("vote[%d]: got %d want %d", i, vote.Votes[i], want.Votes[i])
		}
	}
	for i := range vote.AirdropSponsors {
		if vote.AirdropSponsors[i] != want.AirdropSponsors[i] {
			t.Fatalf("sponsor[%d]: got %+v want %+v", i, vote.AirdropSponsors[i], want.AirdropSponsors[i])
		}
	}
}

func TestEncodeDecodeStakeRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	tx := &Transaction{
		Type:      TxStake,
		CreatedAt: 99,
		Fee:       1,
		Asset:     &Stake{Amount: 5000, StartTimestamp: 42},
	}
	SignTx(tx, kp)

	decoded, err := DecodeTx(EncodeTx(tx))
	if err != nil {
		t.Fatalf("DecodeTx: %v", err)
	}
	stake, ok := decoded.Asset.(*Stake)
	if !ok {
		t.Fatalf("decoded asset is %T, want *Stake", decoded.Asset)
	}
	if want := tx.Asset.(*Stake); *stake != *want {
		t.Fatalf("stake mismatch: got %+v, want %+v", stake, want)
	}
}

func TestHashTxMatchesID(t *testing.T) {
	tx := sampleTransfer(t)
	if HashTx(tx) != tx.ID {
		t.Fatalf("hash(encode(t)) != t.id")
	}
}

func TestDecodeTxRejectsTruncated(t *testing.T) {
	if _, err := DecodeTx(make([]byte, TxHeaderLen-1)); err == nil {
		t.Fatal("expected error decoding truncated header")
	}
}

func TestDecodeTxRejectsUnknownType(t *testing.T) {
	tx := sampleTransfer(t)
	b := EncodeTx(tx)
	b[offType] = 250
	if _, err := DecodeTx(b); err == nil {
		t.Fatal("expected error decoding unknown type")
	}
}

func TestPayloadHashDeterministic(t *testing.T) {
	tx1 := sampleTransfer(t)
	tx2 := sampleTransfer(t)
	h1 := PayloadHash([]*Transaction{tx1, tx2})
	h2 := PayloadHash([]*Transaction{tx1, tx2})
	if h1 != h2 {
		t.Fatal("PayloadHash not deterministic for identical input order")
	}
	h3 := PayloadHash([]*Transaction{tx2, tx1})
	if h1 == h3 {
		t.Fatal("PayloadHash must depend on transaction order")
	}
}
