package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
	"github.com/mafia-engine/mafia-engine/internal/transport"
)

// Mafia consensus protocol: collecting -> proposed -> confirmed | fallback.
//
// While collecting, each living mafia member votes through their own
// mafia_pick action. Once every living member has voted, the plurality
// target (ties broken by first-registered vote order) is proposed through
// one shared mafia_confirm action DM'ed to all members. Full confirmation
// commits the target; a timeout commits the plurality as it stands at that
// moment, announcing that unanimity failed. Requiring unanimity rewards
// coordinated play, but a silent minority must not stall the night.

// startConfirmation opens the proposed stage. Called after the last mafia
// vote lands; a still-live mafia_confirm action means a proposal is
// already open, and the session keeps at most one at a time.
func (m *Manager) startConfirmation(ctx context.Context, sessionID int64) error {
	now := m.now()
	key := uuid.NewString()
	var target int64
	var mafiaIDs []int64
	opened := false

	err := m.reg.Update(ctx, sessionID, func(s *game.Session) error {
		for _, pa := range s.Pending {
			if pa.Kind == game.KindMafiaConfirm && !pa.IsExpired(now) {
				return nil // proposal already open
			}
		}
		t, ok := s.MafiaPluralityTarget()
		if !ok {
			return nil
		}
		target = t
		mafiaIDs = s.LivingMafiaIDs()
		s.Pending[key] = &game.PendingAction{
			Key:       key,
			SessionID: sessionID,
			Kind:      game.KindMafiaConfirm,
			Target:    target,
			CreatedAt: now,
			ExpiresAt: now.Add(ConfirmTimeout),
		}
		opened = true
		return nil
	})
	if err != nil || !opened {
		return err
	}

	snap, err := m.reg.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}
	name := "?"
	if t, ok := snap.Players[target]; ok {
		name = t.Name
	}
	choices := []transport.Choice{{Label: "Confirmar objetivo", Key: key, Target: target}}
	for _, id := range mafiaIDs {
		if _, err := m.msgr.SendPrivate(ctx, id, fmt.Sprintf("La mafia propone matar a %s. Pulsa confirmar.", name), choices); err != nil {
			m.logger.Warn().Err(err).Int64("actor_id", id).Msg("could not deliver confirmation prompt")
		}
	}

	m.sched.ArmOnce(sessionID, ConfirmTimeout, func() {
		m.confirmTimeout(context.Background(), sessionID, key)
	})
	m.logger.Info().Int64("session_id", sessionID).Int64("target_id", target).Msg("mafia proposal opened")
	return nil
}

// confirmTimeout is the fallback stage: if the proposal is still open when
// the window closes, the plurality target as of now is committed.
func (m *Manager) confirmTimeout(ctx context.Context, sessionID int64, key string) {
	var committed bool
	var target int64
	err := m.reg.Update(ctx, sessionID, func(s *game.Session) error {
		_, ok := s.Pending[key]
		if !ok {
			return nil // confirmed (and consumed) before the timeout
		}
		delete(s.Pending, key)
		t, ok := s.MafiaPluralityTarget()
		if !ok {
			return nil
		}
		target = t
		s.AddLedger(game.LedgerMafiaConfirmed, 0, target)
		committed = true
		return nil
	})
	if err != nil {
		m.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("confirmation timeout failed")
		return
	}
	if !committed {
		return
	}

	m.logger.Info().Int64("session_id", sessionID).Int64("target_id", target).Msg("mafia unanimity failed; majority applied")
	snap, err := m.reg.Snapshot(ctx, sessionID)
	if err != nil {
		return
	}
	name := "?"
	if t, ok := snap.Players[target]; ok {
		name = t.Name
	}
	text := fmt.Sprintf("La mafia no confirmó por unanimidad. Se aplica la mayoría: objetivo %s.", name)
	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := m.msgr.SendGroup(sendCtx, sessionID, text, nil); err != nil {
		m.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("could not announce fallback")
	}
}
