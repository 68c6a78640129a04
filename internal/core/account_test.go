package core

import "testing"

func TestAccountStateCreditDebit(t *testing.T) {
	s := NewAccountState()
	if err := s.Credit(1, 100); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if bal := s.Get(1).ActualBalance; bal != 100 {
		t.Fatalf("balance = %d, want 100", bal)
	}
	if err := s.Debit(1, 150); err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if err := s.Debit(1, 40); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if bal := s.Get(1).ActualBalance; bal != 60 {
		t.Fatalf("balance = %d, want 60", bal)
	}
}

func TestAccountStateStakeUnstake(t *testing.T) {
	s := NewAccountState()
	_ = s.Credit(1, 1000)
	if err := s.Stake(1, 400, 10); err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if sb := s.Get(1).SpendableBalance(); sb != 600 {
		t.Fatalf("spendable = %d, want 600", sb)
	}
	if err := s.Unstake(1, 150); err != nil {
		t.Fatalf("Unstake: %v", err)
	}
	acc := s.Get(1)
	if acc.TotalStakedAmount != 250 {
		t.Fatalf("staked = %d, want 250", acc.TotalStakedAmount)
	}
	if len(acc.Stakes) != 1 || acc.Stakes[0].Amount != 250 {
		t.Fatalf("unexpected stake entries: %+v", acc.Stakes)
	}
}

func TestAccountStateUndoRestoresByteEqualState(t *testing.T) {
	s := NewAccountState()
	_ = s.Credit(1, 1000)
	_ = s.Credit(2, 500)

	before := s.Get(1).clone()
	beforeB := s.Get(2).clone()

	s.BeginDiary()
	_ = s.Debit(1, 300)
	_ = s.Credit(2, 300)
	_ = s.Stake(2, 100, 5)
	s.AddVote(1, 2)
	s.Undo()

	after := s.Get(1)
	afterB := s.Get(2)
	if after.ActualBalance != before.ActualBalance || after.TotalStakedAmount != before.TotalStakedAmount || len(after.Votes) != len(before.Votes) {
		t.Fatalf("account 1 not restored: got %+v, want %+v", after, before)
	}
	if afterB.ActualBalance != beforeB.ActualBalance || afterB.TotalStakedAmount != beforeB.TotalStakedAmount {
		t.Fatalf("account 2 not restored: got %+v, want %+v", afterB, beforeB)
	}
}

func TestAccountStateUndoRemovesCreatedAccount(t *testing.T) {
	s := NewAccountState()
	s.BeginDiary()
	_ = s.Credit(99, 10)
	s.Undo()
	if _, ok := s.Lookup(99); ok {
		t.Fatal("account created mid-diary should not survive Undo")
	}
}
