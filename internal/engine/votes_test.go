package engine

import (
	"strings"
	"testing"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

func TestResolveVotesPlurality(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{
		1: game.RoleMafia, 2: game.RoleCiudadano, 3: game.RoleCiudadano,
		4: game.RoleCiudadano, 5: game.RoleCiudadano, 6: game.RoleCiudadano,
	})
	s.Phase = game.PhaseVoting
	// three for player 1, two for player 2, one abstains
	s.SetVote(2, 1)
	s.SetVote(3, 1)
	s.SetVote(4, 1)
	s.SetVote(5, 2)
	s.SetVote(6, 2)

	report := ResolveVotes(s)

	if report.Lynched == nil || *report.Lynched != 1 {
		t.Fatalf("expected player 1 lynched, got %v", report.Lynched)
	}
	if s.Players[1].Alive {
		t.Fatal("lynched player should be dead")
	}
	if !strings.Contains(report.Line, "Mafioso") {
		t.Fatalf("lynch line should reveal the role, got %q", report.Line)
	}
}

func TestResolveVotesTie(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{
		1: game.RoleCiudadano, 2: game.RoleCiudadano,
		3: game.RoleCiudadano, 4: game.RoleCiudadano,
	})
	s.Phase = game.PhaseVoting
	s.SetVote(1, 3)
	s.SetVote(2, 3)
	s.SetVote(3, 4)
	s.SetVote(4, 4)

	report := ResolveVotes(s)

	if report.Lynched != nil {
		t.Fatalf("tie should lynch nobody, got %v", *report.Lynched)
	}
	if !strings.Contains(report.Line, "Empate") {
		t.Fatalf("expected tie line, got %q", report.Line)
	}
	if !s.Players[3].Alive || !s.Players[4].Alive {
		t.Fatal("nobody should die on a tie")
	}
}

func TestResolveVotesNoVotes(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{1: game.RoleCiudadano})
	s.Phase = game.PhaseVoting

	report := ResolveVotes(s)

	if report.Lynched != nil {
		t.Fatal("no votes should lynch nobody")
	}
	if !strings.Contains(report.Line, "No hubo votos") {
		t.Fatalf("expected no-votes line, got %q", report.Line)
	}
}

func TestResolveVotesRevoteReplaces(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{
		1: game.RoleCiudadano, 2: game.RoleCiudadano, 3: game.RoleCiudadano,
	})
	s.Phase = game.PhaseVoting
	s.SetVote(1, 2)
	s.SetVote(1, 3) // changes their mind
	s.SetVote(2, 3)

	report := ResolveVotes(s)

	if report.Lynched == nil || *report.Lynched != 3 {
		t.Fatalf("expected player 3 lynched after revote, got %v", report.Lynched)
	}
}

func TestResolveVotesDeadTopTarget(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{
		1: game.RoleCiudadano, 2: game.RoleCiudadano, 3: game.RoleCiudadano,
	})
	s.Phase = game.PhaseVoting
	s.SetVote(1, 3)
	s.SetVote(2, 3)
	s.Players[3].Alive = false

	report := ResolveVotes(s)

	if report.Lynched != nil {
		t.Fatal("dead top target should lynch nobody")
	}
}
