// Package engine holds the pure rule logic of the game: role assignment,
// night resolution, day-vote tally and win-condition checks. It operates
// on a session snapshot and its ledgers and performs no I/O; callers are
// responsible for locking and persistence.
package engine

import (
	"math/rand"
	"sort"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

// AssignRoles deals one role to every player. The pool expands the
// configured role counts and is padded with the filler role; player ids
// and the pool are shuffled independently so that both who holds a scarce
// role and the positional correlation between them are randomized.
func AssignRoles(s *game.Session, rng *rand.Rand) {
	ids := make([]int64, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	pool := make([]game.RoleKey, 0, len(ids))
	keys := make([]game.RoleKey, 0, len(s.RolesConfig))
	for key := range s.RolesConfig {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		for n := 0; n < s.RolesConfig[key]; n++ {
			pool = append(pool, key)
		}
	}
	for len(pool) < len(ids) {
		pool = append(pool, game.FillerRole)
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i, id := range ids {
		s.Players[id].Role = pool[i]
	}
}
