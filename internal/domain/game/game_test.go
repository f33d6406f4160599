package game

import (
	"testing"
	"time"
)

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseLobby, PhaseNight, true},
		{PhaseNight, PhaseDay, true},
		{PhaseDay, PhaseVoting, true},
		{PhaseVoting, PhaseNight, true},
		{PhaseNight, PhaseInactive, true},
		{PhaseInactive, PhaseLobby, true}, // reset is always allowed
		{PhaseLobby, PhaseDay, false},
		{PhaseDay, PhaseNight, false},
		{PhaseInactive, PhaseNight, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestResetToLobbyKeepsMembership(t *testing.T) {
	s := NewSession(100, 1)
	p := NewPlayer(1, "ana")
	p.Role = RoleMafia
	p.Alive = false
	p.Silenced = true
	s.Players[1] = p
	s.Phase = PhaseInactive
	s.AddLedger(LedgerVote, 1, 2)
	s.SetMafiaVote(1, 2)
	s.Pending["k"] = &PendingAction{Key: "k"}

	s.ResetToLobby()

	if s.Phase != PhaseLobby {
		t.Fatalf("expected lobby, got %s", s.Phase)
	}
	if _, ok := s.Players[1]; !ok {
		t.Fatal("players must survive a reset")
	}
	if s.Players[1].Role != "" || !s.Players[1].Alive || s.Players[1].Silenced {
		t.Fatal("player state should be wiped")
	}
	if len(s.Ledger) != 0 || len(s.MafiaVotes) != 0 || len(s.Pending) != 0 {
		t.Fatal("transient state should be wiped")
	}
}

func TestSetVoteReplacesPerVoter(t *testing.T) {
	s := NewSession(100, 1)
	s.SetVote(1, 2)
	s.SetVote(1, 3)
	s.SetVote(4, 2)

	votes := s.Ledger[LedgerVote]
	if len(votes) != 2 {
		t.Fatalf("expected 2 votes, got %d", len(votes))
	}
	for _, v := range votes {
		if v.Actor == 1 && v.Target != 3 {
			t.Fatalf("revote should replace, voter 1 points at %d", v.Target)
		}
	}
}

func TestMafiaPluralityFirstRegisteredTieBreak(t *testing.T) {
	s := NewSession(100, 1)
	s.SetMafiaVote(10, 3)
	s.SetMafiaVote(20, 4)

	target, ok := s.MafiaPluralityTarget()
	if !ok || target != 3 {
		t.Fatalf("tie should break to the first-registered target, got %d (%v)", target, ok)
	}

	// a revote keeps the member's original position
	s.SetMafiaVote(10, 5)
	target, ok = s.MafiaPluralityTarget()
	if !ok || target != 5 {
		t.Fatalf("after revote expected 5, got %d (%v)", target, ok)
	}
}

func TestMafiaPluralityMajorityWins(t *testing.T) {
	s := NewSession(100, 1)
	s.SetMafiaVote(10, 4)
	s.SetMafiaVote(20, 3)
	s.SetMafiaVote(30, 3)

	target, ok := s.MafiaPluralityTarget()
	if !ok || target != 3 {
		t.Fatalf("expected majority target 3, got %d (%v)", target, ok)
	}
}

func TestPendingActionExpiryAndConfirm(t *testing.T) {
	now := time.Now().UTC()
	actor := int64(7)
	pa := &PendingAction{
		Key:       "k",
		Kind:      KindHeal,
		Actor:     &actor,
		Target:    9,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	if pa.IsExpired(now) {
		t.Fatal("not expired yet")
	}
	if !pa.IsExpired(now.Add(2 * time.Minute)) {
		t.Fatal("should be expired")
	}
	if !pa.AddressedTo(7) || pa.AddressedTo(8) {
		t.Fatal("addressing should match the bound actor only")
	}

	shared := &PendingAction{Key: "s", Kind: KindMafiaConfirm, Target: 9}
	if !shared.AddressedTo(7) || !shared.AddressedTo(8) {
		t.Fatal("nil-actor actions address any eligible responder")
	}
	shared.Confirm(7)
	shared.Confirm(7) // idempotent
	shared.Confirm(8)
	if len(shared.Confirmations) != 2 {
		t.Fatalf("expected 2 confirmations, got %d", len(shared.Confirmations))
	}
	if !shared.ConfirmedBy([]int64{7, 8}) {
		t.Fatal("both confirmed")
	}
	if shared.ConfirmedBy([]int64{7, 8, 9}) {
		t.Fatal("9 never confirmed")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession(100, 1)
	s.Players[1] = NewPlayer(1, "ana")
	s.AddLedger(LedgerHeal, 1, 2)
	s.Pending["k"] = &PendingAction{Key: "k", Kind: KindHeal, Target: 2}

	cp := s.Clone()
	cp.Players[1].Alive = false
	cp.AddLedger(LedgerHeal, 3, 4)
	cp.Pending["k"].Target = 99

	if !s.Players[1].Alive {
		t.Fatal("clone mutation leaked into the player map")
	}
	if len(s.Ledger[LedgerHeal]) != 1 {
		t.Fatal("clone mutation leaked into the ledger")
	}
	if s.Pending["k"].Target != 2 {
		t.Fatal("clone mutation leaked into pending actions")
	}
}
