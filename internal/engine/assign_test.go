package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

func TestAssignRolesCountsAndPadding(t *testing.T) {
	s := game.NewSession(100, 1)
	for id := int64(1); id <= 6; id++ {
		s.Players[id] = game.NewPlayer(id, fmt.Sprintf("p%d", id))
	}
	s.RolesConfig = map[game.RoleKey]int{
		game.RoleMafia:  1,
		game.RoleDoctor: 1,
	}

	AssignRoles(s, rand.New(rand.NewSource(42)))

	counts := make(map[game.RoleKey]int)
	for _, p := range s.Players {
		if p.Role == "" {
			t.Fatalf("player %d left without a role", p.ID)
		}
		counts[p.Role]++
	}
	if counts[game.RoleMafia] != 1 {
		t.Fatalf("expected 1 mafia, got %d", counts[game.RoleMafia])
	}
	if counts[game.RoleDoctor] != 1 {
		t.Fatalf("expected 1 doctor, got %d", counts[game.RoleDoctor])
	}
	if counts[game.FillerRole] != 4 {
		t.Fatalf("expected 4 filler citizens, got %d", counts[game.FillerRole])
	}
}

func TestAssignRolesDeterministicWithSeed(t *testing.T) {
	build := func() *game.Session {
		s := game.NewSession(100, 1)
		for id := int64(1); id <= 5; id++ {
			s.Players[id] = game.NewPlayer(id, fmt.Sprintf("p%d", id))
		}
		s.RolesConfig = map[game.RoleKey]int{game.RoleMafia: 2, game.RoleSheriff: 1}
		return s
	}
	a, b := build(), build()
	AssignRoles(a, rand.New(rand.NewSource(7)))
	AssignRoles(b, rand.New(rand.NewSource(7)))

	for id := range a.Players {
		if a.Players[id].Role != b.Players[id].Role {
			t.Fatalf("same seed should deal the same hand, player %d differs", id)
		}
	}
}
