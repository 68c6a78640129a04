package core

import "testing"

func TestRoundRobinDelegatesCyclesRoster(t *testing.T) {
	a, b := PublicKey{0x01}, PublicKey{0x02}
	d := NewRoundRobinDelegates([]PublicKey{a, b})

	cases := []struct {
		slot int64
		want PublicKey
	}{
		{0, a}, {1, b}, {2, a}, {3, b}, {-1, b}, {-2, a},
	}
	for _, c := range cases {
		got, ok := d.ElectedAt(c.slot)
		if !ok {
			t.Fatalf("slot %d: expected ok", c.slot)
		}
		if got != c.want {
			t.Fatalf("slot %d: got %x, want %x", c.slot, got, c.want)
		}
	}
}

func TestRoundRobinDelegatesEmptyRoster(t *testing.T) {
	d := NewRoundRobinDelegates(nil)
	if _, ok := d.ElectedAt(0); ok {
		t.Fatal("expected ok=false for empty roster")
	}
}

func TestNewGenesisBlockIsSelfConsistent(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	genesis := NewGenesisBlock(1, 100, kp)
	if genesis.Height != 1 {
		t.Fatalf("expected height 1, got %d", genesis.Height)
	}
	if err := VerifyBlockSignature(genesis); err != nil {
		t.Fatalf("genesis signature should verify: %v", err)
	}
	if HashBlock(genesis) != genesis.ID {
		t.Fatalf("genesis id should match its canonical hash")
	}
}
