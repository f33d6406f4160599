package engine

import (
	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

// Winner identifies the faction that ended the game.
type Winner string

const (
	WinnerNone   Winner = ""
	WinnerTown   Winner = "town"
	WinnerMafia  Winner = "mafia"
	WinnerSerial Winner = "serial"
)

// CheckWinConditions evaluates the three disjoint outcomes over the living
// players, in priority order: town wins when no mafia and no serial killer
// remain; mafia wins when it matches or outnumbers the town; the serial
// killer wins as sole survivor. A living serial killer keeps the town from
// winning even after the last mafioso falls.
func CheckWinConditions(s *game.Session) Winner {
	var mafia, town, alive int
	serialAlive := false
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		alive++
		role := game.Roles[p.Role]
		if role == nil {
			continue
		}
		switch role.Faction {
		case game.FactionMafia:
			mafia++
		case game.FactionTown:
			town++
		}
		if p.Role == game.RoleAsesino {
			serialAlive = true
		}
	}
	if mafia == 0 && !serialAlive {
		return WinnerTown
	}
	if mafia > 0 && mafia >= town {
		return WinnerMafia
	}
	if serialAlive && alive == 1 {
		return WinnerSerial
	}
	return WinnerNone
}
