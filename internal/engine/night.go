package engine

import (
	"fmt"
	"sort"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

// AttackSource tags the origin of a night attack.
type AttackSource string

const (
	AttackMafia     AttackSource = "mafia"
	AttackVigilante AttackSource = "vigilante"
	AttackSerial    AttackSource = "asesino"
)

type attack struct {
	Actor  int64
	Target int64
	Source AttackSource
}

// Investigation is a private verdict for one investigator.
type Investigation struct {
	Actor   int64
	Target  int64
	Verdict string
}

// NightReport is the outcome of one resolution pass: the public summary
// lines, the deaths, and the private investigation verdicts.
type NightReport struct {
	Deaths         []int64
	Lines          []string
	Investigations []Investigation
}

// ResolveNight applies the action ledger and mafia votes to the session in
// the fixed kind order: blocks, attack collection (mafia, then vigilante,
// then serial), heals and guards, attack application, blackmail, then
// investigations. Transient flags and the ledgers are cleared at the end
// regardless of outcome. Within a kind, insertion order is irrelevant to
// the result; across kinds the order above is authoritative.
func ResolveNight(s *game.Session) *NightReport {
	report := &NightReport{}

	// 1. blocks; blocks do not chain, every living blocker's block lands
	for _, e := range s.Ledger[game.LedgerBlock] {
		if actor, ok := s.Players[e.Actor]; ok && actor.Alive {
			if target, ok := s.Players[e.Target]; ok {
				target.Blocked = true
			}
		}
	}

	// 2. mafia collective target: committed consensus wins over raw plurality
	var attacks []attack
	mafiaTarget, haveTarget := int64(0), false
	if confirmed := s.Ledger[game.LedgerMafiaConfirmed]; len(confirmed) > 0 {
		mafiaTarget, haveTarget = confirmed[0].Target, true
	} else {
		mafiaTarget, haveTarget = s.MafiaPluralityTarget()
	}
	if haveTarget {
		if source, ok := mafiaAttacker(s); ok {
			attacks = append(attacks, attack{Actor: source, Target: mafiaTarget, Source: AttackMafia})
		}
	}

	// 3. solo attacks
	for _, e := range s.Ledger[game.LedgerVigilanteShot] {
		if canAct(s, e.Actor) {
			attacks = append(attacks, attack{Actor: e.Actor, Target: e.Target, Source: AttackVigilante})
		}
	}
	for _, e := range s.Ledger[game.LedgerSerialKill] {
		if canAct(s, e.Actor) {
			attacks = append(attacks, attack{Actor: e.Actor, Target: e.Target, Source: AttackSerial})
		}
	}

	// 4. heals and guards
	healed := make(map[int64]bool)
	for _, e := range s.Ledger[game.LedgerHeal] {
		if canAct(s, e.Actor) {
			healed[e.Target] = true
		}
	}
	guards := make(map[int64]int64) // target -> guard
	for _, e := range s.Ledger[game.LedgerGuard] {
		if canAct(s, e.Actor) {
			guards[e.Target] = e.Actor
		}
	}

	// 5. apply attacks in enqueue order
	for _, atk := range attacks {
		target, ok := s.Players[atk.Target]
		if !ok || !target.Alive {
			continue
		}
		if healed[atk.Target] {
			report.Lines = append(report.Lines,
				fmt.Sprintf("%s fue curado/a y sobrevivió a un ataque.", target.Name))
			continue
		}
		if guardID, guarded := guards[atk.Target]; guarded {
			if guard, ok := s.Players[guardID]; ok && guard.Alive {
				guard.Alive = false
				report.Deaths = append(report.Deaths, guardID)
				report.Lines = append(report.Lines,
					fmt.Sprintf("%s (%s) murió protegiendo a %s.", guard.Name, game.RoleName(guard.Role), target.Name))
				continue
			}
		}
		target.Alive = false
		report.Deaths = append(report.Deaths, atk.Target)
		report.Lines = append(report.Lines,
			fmt.Sprintf("%s fue asesinado/a. Era %s.", target.Name, game.RoleName(target.Role)))
	}

	// 6. blackmail
	for _, e := range s.Ledger[game.LedgerBlackmail] {
		if !canAct(s, e.Actor) {
			continue
		}
		if target, ok := s.Players[e.Target]; ok && target.Alive {
			target.Silenced = true
			report.Lines = append(report.Lines,
				fmt.Sprintf("%s fue chantajeado/a y estará silenciado/a durante el día.", target.Name))
		}
	}

	// 7. investigations
	for _, e := range s.Ledger[game.LedgerInvestigate] {
		inv, ok := s.Players[e.Actor]
		if !ok || !inv.Alive || inv.Blocked {
			continue
		}
		report.Investigations = append(report.Investigations, Investigation{
			Actor:   e.Actor,
			Target:  e.Target,
			Verdict: investigate(s, inv, e.Target),
		})
	}

	s.ClearNight()
	return report
}

// mafiaAttacker picks a living, unblocked mafia-aligned actor to carry the
// collective attack. Lowest id wins so the pick is stable.
func mafiaAttacker(s *game.Session) (int64, bool) {
	ids := s.LivingMafiaIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !s.Players[id].Blocked {
			return id, true
		}
	}
	return 0, false
}

func canAct(s *game.Session, actorID int64) bool {
	p, ok := s.Players[actorID]
	return ok && p.Alive && !p.Blocked
}

func investigate(s *game.Session, inv *game.Player, targetID int64) string {
	target, ok := s.Players[targetID]
	if !ok || !target.Alive {
		return "No válido (jugador no disponible)."
	}
	role := game.Roles[target.Role]
	if inv.Role == game.RoleSheriff {
		if role != nil && role.SheriffGuilty {
			return "CULPABLE"
		}
		return "INOCENTE"
	}
	if role == nil || role.UndetectableByDetect || role.DetectiveSignature == "" {
		return "INOCENTE"
	}
	return fmt.Sprintf("Firma: %s", role.DetectiveSignature)
}
