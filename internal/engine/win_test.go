package engine

import (
	"testing"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

func TestCheckWinConditionsSerialBlocksTownWin(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{
		1: game.RoleMafia,
		2: game.RoleAsesino,
		3: game.RoleCiudadano,
		4: game.RoleCiudadano,
	})
	s.Players[1].Alive = false // last mafioso lynched

	if w := CheckWinConditions(s); w != WinnerNone {
		t.Fatalf("living serial killer should block town win, got %q", w)
	}

	s.Players[2].Alive = false
	if w := CheckWinConditions(s); w != WinnerTown {
		t.Fatalf("expected town win once killer falls, got %q", w)
	}
}

func TestCheckWinConditionsMafiaParity(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{
		1: game.RoleMafia,
		2: game.RoleCiudadano,
		3: game.RoleCiudadano,
	})
	if w := CheckWinConditions(s); w != WinnerNone {
		t.Fatalf("1 mafia vs 2 town is still open, got %q", w)
	}

	s.Players[3].Alive = false
	if w := CheckWinConditions(s); w != WinnerMafia {
		t.Fatalf("parity should hand mafia the win, got %q", w)
	}
}

func TestCheckWinConditionsSerialSoleSurvivor(t *testing.T) {
	s := nightSession(map[int64]game.RoleKey{
		1: game.RoleAsesino,
		2: game.RoleCiudadano,
		3: game.RoleMafia,
	})
	s.Players[2].Alive = false
	s.Players[3].Alive = false

	if w := CheckWinConditions(s); w != WinnerSerial {
		t.Fatalf("sole surviving killer should win, got %q", w)
	}
}
