package engine

import (
	"fmt"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

// VoteReport is the outcome of a day-vote tally.
type VoteReport struct {
	Lynched *int64
	Line    string
}

// ResolveVotes tallies the day votes. A strict plurality lynches that
// target and reveals their role; a tie among the top count, or no votes at
// all, lynches nobody. The ledger holds at most one vote per voter
// (replace-on-repeat is enforced at recording time).
func ResolveVotes(s *game.Session) *VoteReport {
	votes := s.Ledger[game.LedgerVote]
	if len(votes) == 0 {
		return &VoteReport{Line: "No hubo votos. No se lincha a nadie."}
	}

	counts := make(map[int64]int)
	var order []int64
	for _, v := range votes {
		if counts[v.Target] == 0 {
			order = append(order, v.Target)
		}
		counts[v.Target]++
	}
	var top int64
	topCount := 0
	tied := false
	for _, target := range order {
		switch {
		case counts[target] > topCount:
			top, topCount, tied = target, counts[target], false
		case counts[target] == topCount:
			tied = true
		}
	}
	if tied {
		return &VoteReport{Line: "Empate en la votación. No se lincha a nadie."}
	}

	target, ok := s.Players[top]
	if !ok || !target.Alive {
		return &VoteReport{Line: "El objetivo más votado ya no está en juego. No se lincha a nadie."}
	}
	target.Alive = false
	return &VoteReport{
		Lynched: &top,
		Line:    fmt.Sprintf("El pueblo linchó a %s. Era %s.", target.Name, game.RoleName(target.Role)),
	}
}
