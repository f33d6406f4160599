// Package actions implements the pending-action ledger: proposed,
// expiring actions awaiting an actor's response, and the mafia consensus
// protocol layered on top of them. It is the only path between raw actor
// input and the session's action ledger.
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mafia-engine/mafia-engine/internal/application/registry"
	"github.com/mafia-engine/mafia-engine/internal/domain/game"
	"github.com/mafia-engine/mafia-engine/internal/infrastructure/scheduler"
	"github.com/mafia-engine/mafia-engine/internal/transport"
)

// DefaultTTL bounds how long a night keyboard stays answerable.
const DefaultTTL = time.Hour

// ConfirmTimeout is the mafia confirmation window before the majority
// fallback kicks in.
const ConfirmTimeout = 60 * time.Second

// Outcome reports what a response did.
type Outcome struct {
	// Resolved is true when the action chain completed (e.g. the mafia
	// target was committed), not merely recorded.
	Resolved bool
	// Message is the user-facing confirmation shown in place.
	Message string
}

// Manager validates and records responses to pending actions.
type Manager struct {
	reg    *registry.Registry
	sched  scheduler.Scheduler
	msgr   transport.Messenger
	logger zerolog.Logger
	now    func() time.Time
}

// NewManager creates a manager. The messenger and scheduler are used by
// the consensus protocol for confirmation prompts and the fallback timer.
func NewManager(reg *registry.Registry, sched scheduler.Scheduler, msgr transport.Messenger, logger zerolog.Logger) *Manager {
	return &Manager{
		reg:    reg,
		sched:  sched,
		msgr:   msgr,
		logger: logger.With().Str("service", "actions").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Propose records a new pending action on the session and returns its key.
func (m *Manager) Propose(ctx context.Context, sessionID int64, kind game.ActionKind, actor *int64, target int64, ttl time.Duration) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown action kind %q", kind)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := uuid.NewString()
	now := m.now()
	err := m.reg.Update(ctx, sessionID, func(s *game.Session) error {
		s.Pending[key] = &game.PendingAction{
			Key:       key,
			SessionID: sessionID,
			Kind:      kind,
			Actor:     actor,
			Target:    target,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Get returns a copy of a pending action.
func (m *Manager) Get(ctx context.Context, key string) (*game.PendingAction, error) {
	sessionID, ok := m.reg.FindPending(key)
	if !ok {
		return nil, game.ErrActionNotFound
	}
	snap, err := m.reg.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	pa, ok := snap.Pending[key]
	if !ok {
		return nil, game.ErrActionNotFound
	}
	return pa, nil
}

// Expire deletes a pending action past its expiry. Calling it twice, or
// for an unknown key, is a no-op: expiry never mutates game state.
func (m *Manager) Expire(ctx context.Context, key string) error {
	sessionID, ok := m.reg.FindPending(key)
	if !ok {
		return nil
	}
	now := m.now()
	return m.reg.Update(ctx, sessionID, func(s *game.Session) error {
		if pa, ok := s.Pending[key]; ok && pa.IsExpired(now) {
			delete(s.Pending, key)
		}
		return nil
	})
}

// SweepExpired lazily deletes every expired pending action on a session.
// Expiry is advisory cleanup; the resolution engine only reads the
// ledgers, which are populated synchronously by Respond.
func (m *Manager) SweepExpired(ctx context.Context, sessionID int64) error {
	now := m.now()
	return m.reg.Update(ctx, sessionID, func(s *game.Session) error {
		for key, pa := range s.Pending {
			if pa.IsExpired(now) {
				delete(s.Pending, key)
			}
		}
		return nil
	})
}

// Respond applies an actor's choice to the pending action identified by
// key. It validates authorization, expiry and the target, records the
// choice into the owning session's ledgers, and reports whether the chain
// is now fully resolved.
func (m *Manager) Respond(ctx context.Context, key string, actorID, targetID int64) (Outcome, error) {
	sessionID, ok := m.reg.FindPending(key)
	if !ok {
		return Outcome{}, game.ErrActionNotFound
	}

	var out Outcome
	var startConsensus bool
	now := m.now()
	err := m.reg.Update(ctx, sessionID, func(s *game.Session) error {
		pa, ok := s.Pending[key]
		if !ok {
			return game.ErrActionNotFound
		}
		if pa.IsExpired(now) {
			delete(s.Pending, key)
			return game.ErrActionExpired
		}
		if !pa.AddressedTo(actorID) {
			return game.ErrUnauthorized
		}

		switch pa.Kind {
		case game.KindHeal, game.KindBlock, game.KindGuard, game.KindInvestigate,
			game.KindBlackmail, game.KindSerialKill, game.KindVigilanteShot:
			return m.recordNightChoice(s, pa, actorID, targetID, &out)
		case game.KindMafiaPick:
			if err := m.recordMafiaPick(s, pa, actorID, targetID, &out); err != nil {
				return err
			}
			startConsensus = allMafiaVoted(s)
			return nil
		case game.KindMafiaConfirm:
			return m.recordConfirmation(s, pa, actorID, &out)
		case game.KindVoteGroup:
			return m.recordGroupVote(s, actorID, targetID, &out)
		}
		return fmt.Errorf("unknown action kind %q", pa.Kind)
	})
	if err != nil {
		return Outcome{}, err
	}

	if startConsensus {
		if err := m.startConfirmation(ctx, sessionID); err != nil {
			m.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("failed to open mafia confirmation")
		}
	}
	return out, nil
}

// HandleChoice adapts Respond to the transport's callback shape, so the
// manager can be plugged in as the button handler directly.
func (m *Manager) HandleChoice(ctx context.Context, key string, actorID, targetID int64) (string, error) {
	out, err := m.Respond(ctx, key, actorID, targetID)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

func (m *Manager) recordNightChoice(s *game.Session, pa *game.PendingAction, actorID, targetID int64, out *Outcome) error {
	if !s.LivingTarget(targetID) {
		return game.ErrInvalidTarget
	}
	s.AddLedger(game.LedgerKind(pa.Kind), actorID, targetID)
	consumeActorKind(s, actorID, pa.Kind)
	out.Message = fmt.Sprintf("Has elegido a %s.", s.Players[targetID].Name)
	return nil
}

func (m *Manager) recordMafiaPick(s *game.Session, pa *game.PendingAction, actorID, targetID int64, out *Outcome) error {
	actor, ok := s.Players[actorID]
	if !ok || !actor.Alive || !game.IsMafiaAligned(actor.Role) {
		return game.ErrUnauthorized
	}
	if !s.LivingTarget(targetID) {
		return game.ErrInvalidTarget
	}
	s.SetMafiaVote(actorID, targetID)
	consumeActorKind(s, actorID, pa.Kind)
	out.Message = fmt.Sprintf("Tu voto de mafia ha sido registrado: %s.", s.Players[targetID].Name)
	return nil
}

func (m *Manager) recordConfirmation(s *game.Session, pa *game.PendingAction, actorID int64, out *Outcome) error {
	actor, ok := s.Players[actorID]
	if !ok || !actor.Alive || !game.IsMafiaAligned(actor.Role) {
		return game.ErrUnauthorized
	}
	pa.Confirm(actorID)
	if !pa.ConfirmedBy(s.LivingMafiaIDs()) {
		out.Message = fmt.Sprintf("Has confirmado. Confirmaciones: %d.", len(pa.Confirmations))
		return nil
	}
	// unanimity reached: commit the proposed target and consume the action
	s.AddLedger(game.LedgerMafiaConfirmed, 0, pa.Target)
	delete(s.Pending, pa.Key)
	out.Resolved = true
	name := "?"
	if t, ok := s.Players[pa.Target]; ok {
		name = t.Name
	}
	out.Message = fmt.Sprintf("Objetivo confirmado: %s.", name)
	return nil
}

func (m *Manager) recordGroupVote(s *game.Session, actorID, targetID int64, out *Outcome) error {
	if s.Phase != game.PhaseVoting {
		return game.ErrWrongPhase
	}
	voter, ok := s.Players[actorID]
	if !ok || !voter.Alive {
		return game.ErrUnauthorized
	}
	if !s.LivingTarget(targetID) {
		return game.ErrInvalidTarget
	}
	// last-write-wins per voter; the shared pending action itself stays
	// live until the voting window closes
	s.SetVote(actorID, targetID)
	out.Message = fmt.Sprintf("Has votado por %s.", s.Players[targetID].Name)
	return nil
}

// consumeActorKind deletes the whole keyboard: every pending action of the
// same kind addressed to the same actor.
func consumeActorKind(s *game.Session, actorID int64, kind game.ActionKind) {
	for key, other := range s.Pending {
		if other.Kind == kind && other.Actor != nil && *other.Actor == actorID {
			delete(s.Pending, key)
		}
	}
}

func allMafiaVoted(s *game.Session) bool {
	ids := s.LivingMafiaIDs()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := s.MafiaVotes[id]; !ok {
			return false
		}
	}
	return true
}
