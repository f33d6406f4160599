// Package phase drives the session state machine: lobby, night, day,
// voting and the terminal inactive phase. It owns phase deadlines and the
// scheduler jobs attached to them, and routes every transition through
// the registry's locked mutation path.
package phase

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mafia-engine/mafia-engine/internal/application/actions"
	"github.com/mafia-engine/mafia-engine/internal/application/registry"
	"github.com/mafia-engine/mafia-engine/internal/domain/game"
	"github.com/mafia-engine/mafia-engine/internal/engine"
	"github.com/mafia-engine/mafia-engine/internal/infrastructure/scheduler"
	"github.com/mafia-engine/mafia-engine/internal/transport"
)

const (
	// VotingSeconds is the group-vote window after the day closes.
	VotingSeconds = 60

	// MinPhaseSeconds and MaxPhaseSeconds clamp admin duration edits.
	MinPhaseSeconds = 120
	MaxPhaseSeconds = 7 * 24 * 3600

	reminderFirstDelay = 30 * time.Second

	jobNightEnd = "night_end"
	jobDayEnd   = "day_end"
	jobVoteEnd  = "vote_end"
	jobReminder = "reminder"
)

// ClampPhaseSeconds bounds a phase duration edit.
func ClampPhaseSeconds(sec int) int {
	if sec < MinPhaseSeconds {
		return MinPhaseSeconds
	}
	if sec > MaxPhaseSeconds {
		return MaxPhaseSeconds
	}
	return sec
}

// Service orchestrates phase transitions for all sessions.
type Service struct {
	reg     *registry.Registry
	actions *actions.Manager
	sched   scheduler.Scheduler
	msgr    transport.Messenger
	logger  zerolog.Logger
	newRNG  func() *rand.Rand
}

// NewService wires the orchestrator.
func NewService(reg *registry.Registry, mgr *actions.Manager, sched scheduler.Scheduler, msgr transport.Messenger, logger zerolog.Logger) *Service {
	return &Service{
		reg:     reg,
		actions: mgr,
		sched:   sched,
		msgr:    msgr,
		logger:  logger.With().Str("service", "phase").Logger(),
		newRNG:  func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
	}
}

// CreateSession registers a new lobby in a group chat.
func (s *Service) CreateSession(ctx context.Context, sessionID, hostID int64) error {
	_, err := s.reg.Create(ctx, sessionID, hostID)
	return err
}

// Join adds a player; allowed only in the lobby.
func (s *Service) Join(ctx context.Context, sessionID, userID int64, name string) error {
	return s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if g.Phase != game.PhaseLobby {
			return game.ErrWrongPhase
		}
		if _, ok := g.Players[userID]; ok {
			return fmt.Errorf("player %d already joined", userID)
		}
		g.Players[userID] = game.NewPlayer(userID, name)
		return nil
	})
}

// Leave removes a player; rejected once the game has started.
func (s *Service) Leave(ctx context.Context, sessionID, userID int64) error {
	return s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if g.Phase != game.PhaseLobby {
			return game.ErrWrongPhase
		}
		if _, ok := g.Players[userID]; !ok {
			return game.ErrInvalidTarget
		}
		delete(g.Players, userID)
		return nil
	})
}

// Status returns a read-only snapshot.
func (s *Service) Status(ctx context.Context, sessionID int64) (*game.Session, error) {
	return s.reg.Snapshot(ctx, sessionID)
}

// SessionIDs lists every live session id.
func (s *Service) SessionIDs() []int64 {
	return s.reg.IDs()
}

// AdminRemoveSession deletes a session without a transport privilege
// check; callers are already authenticated operators.
func (s *Service) AdminRemoveSession(ctx context.Context, sessionID int64) error {
	s.cancelAllJobs(ctx, sessionID)
	return s.reg.Remove(ctx, sessionID)
}

// RemoveSession deletes a session after checking the caller's transport
// privileges (group administrator or creator).
func (s *Service) RemoveSession(ctx context.Context, sessionID, actorID int64) error {
	priv, err := s.msgr.MemberPrivileges(ctx, sessionID, actorID)
	if err == nil && priv != "administrator" && priv != "creator" {
		return game.ErrUnauthorized
	}
	s.cancelAllJobs(ctx, sessionID)
	return s.reg.Remove(ctx, sessionID)
}

// StartGame assigns roles, reveals them privately and opens the first
// night. It requires the lobby phase and at least four players.
func (s *Service) StartGame(ctx context.Context, sessionID int64) error {
	rng := s.newRNG()
	var players []*game.Player
	err := s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if g.Phase != game.PhaseLobby {
			return game.ErrWrongPhase
		}
		if len(g.Players) < 4 {
			return game.ErrInsufficientPlayers
		}
		engine.AssignRoles(g, rng)
		for _, p := range g.Players {
			cp := *p
			players = append(players, &cp)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// role DMs happen outside the lock; failures flip the resend flag
	unreachable := s.sendRoleDMs(ctx, sessionID, players)
	if len(unreachable) > 0 {
		names := strings.Join(unreachable, ", ")
		_, _ = s.msgr.SendGroup(ctx, sessionID,
			fmt.Sprintf("No pude enviar DM a: %s. Pídeles que inicien chat con el bot.", names), nil)
	}

	if _, err := s.msgr.SendGroup(ctx, sessionID, "Empieza la noche. Los jugadores con habilidades recibirán un DM.", nil); err != nil {
		s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("could not announce night")
	}
	return s.beginNight(ctx, sessionID)
}

// EndNight resolves the night and opens the day. It is the night timer
// callback and the admin force-resolution path; a stale timer firing in
// another phase is a no-op.
func (s *Service) EndNight(ctx context.Context, sessionID int64) error {
	var report *engine.NightReport
	var winner engine.Winner
	var daySeconds int
	err := s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if g.Phase != game.PhaseNight {
			return nil
		}
		report = engine.ResolveNight(g)
		winner = engine.CheckWinConditions(g)
		if winner != engine.WinnerNone {
			g.Phase = game.PhaseInactive
			g.PhaseDeadline = nil
			return nil
		}
		g.Phase = game.PhaseDay
		deadline := time.Now().UTC().Add(time.Duration(g.DaySeconds) * time.Second)
		g.PhaseDeadline = &deadline
		daySeconds = g.DaySeconds
		return nil
	})
	if err != nil || report == nil {
		return err
	}
	s.disarm(ctx, sessionID, jobNightEnd)

	s.announceNight(ctx, sessionID, report)
	if winner != engine.WinnerNone {
		s.finishGame(ctx, sessionID, winner)
		return nil
	}

	_, _ = s.msgr.SendGroup(ctx, sessionID, "Se hace de día. Discusión.", nil)
	h := s.sched.ArmOnce(sessionID, time.Duration(daySeconds)*time.Second, func() {
		if err := s.EndDay(context.Background(), sessionID); err != nil {
			s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("end-day job failed")
		}
	})
	s.storeJob(ctx, sessionID, jobDayEnd, h)
	return nil
}

// EndDay closes discussion and opens the voting window with one shared
// group keyboard.
func (s *Service) EndDay(ctx context.Context, sessionID int64) error {
	var alive []*game.Player
	err := s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if g.Phase != game.PhaseDay {
			return nil
		}
		if !g.Phase.CanTransitionTo(game.PhaseVoting) {
			return game.ErrInvalidTransition
		}
		g.Phase = game.PhaseVoting
		deadline := time.Now().UTC().Add(VotingSeconds * time.Second)
		g.PhaseDeadline = &deadline
		alive = g.AlivePlayers()
		return nil
	})
	if err != nil || alive == nil {
		return err
	}
	s.disarm(ctx, sessionID, jobDayEnd)

	sort.Slice(alive, func(i, j int) bool { return alive[i].ID < alive[j].ID })
	choices := make([]transport.Choice, 0, len(alive))
	for _, p := range alive {
		key, err := s.actions.Propose(ctx, sessionID, game.KindVoteGroup, nil, p.ID, VotingSeconds*time.Second)
		if err != nil {
			s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("could not create vote action")
			continue
		}
		choices = append(choices, transport.Choice{Label: p.Name, Key: key, Target: p.ID})
	}
	_, _ = s.msgr.SendGroup(ctx, sessionID, "Fin del día. Pulsa para votar:", choices)

	h := s.sched.ArmOnce(sessionID, VotingSeconds*time.Second, func() {
		if err := s.FinishVoting(context.Background(), sessionID); err != nil {
			s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("vote-resolution job failed")
		}
	})
	s.storeJob(ctx, sessionID, jobVoteEnd, h)
	return nil
}

// FinishVoting tallies the votes, applies the lynch, and either ends the
// game or returns to night. Starting the tally closes the window: the
// ledger is cleared, so late responses are bookkeeping only.
func (s *Service) FinishVoting(ctx context.Context, sessionID int64) error {
	var report *engine.VoteReport
	var winner engine.Winner
	err := s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if g.Phase != game.PhaseVoting {
			return nil
		}
		report = engine.ResolveVotes(g)
		delete(g.Ledger, game.LedgerVote)
		for key, pa := range g.Pending {
			if pa.Kind == game.KindVoteGroup {
				delete(g.Pending, key)
			}
		}
		// the day is over: silence wears off
		for _, p := range g.Players {
			p.Silenced = false
		}
		winner = engine.CheckWinConditions(g)
		if winner != engine.WinnerNone {
			g.Phase = game.PhaseInactive
			g.PhaseDeadline = nil
		}
		return nil
	})
	if err != nil || report == nil {
		return err
	}
	s.disarm(ctx, sessionID, jobVoteEnd)

	_, _ = s.msgr.SendGroup(ctx, sessionID, report.Line, nil)
	if winner != engine.WinnerNone {
		s.finishGame(ctx, sessionID, winner)
		return nil
	}
	_, _ = s.msgr.SendGroup(ctx, sessionID, "Vuelve la noche.", nil)
	return s.beginNight(ctx, sessionID)
}

// ResetToLobby clears all game state but keeps the players seated.
func (s *Service) ResetToLobby(ctx context.Context, sessionID int64) error {
	s.cancelAllJobs(ctx, sessionID)
	return s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		g.ResetToLobby()
		return nil
	})
}

// SetDurations edits the night/day lengths (seconds, clamped).
func (s *Service) SetDurations(ctx context.Context, sessionID int64, nightSeconds, daySeconds *int) error {
	return s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if nightSeconds != nil {
			g.NightSeconds = ClampPhaseSeconds(*nightSeconds)
		}
		if daySeconds != nil {
			g.DaySeconds = ClampPhaseSeconds(*daySeconds)
		}
		return nil
	})
}

// ResendRole re-delivers a player's role privately; the admin affordance
// for seats whose first delivery failed.
func (s *Service) ResendRole(ctx context.Context, sessionID, playerID int64) error {
	snap, err := s.reg.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}
	p, ok := snap.Players[playerID]
	if !ok {
		return game.ErrInvalidTarget
	}
	role := game.Roles[p.Role]
	if role == nil {
		return fmt.Errorf("player %d has no role assigned", playerID)
	}
	_, sendErr := s.msgr.SendPrivate(ctx, playerID, fmt.Sprintf("Tu rol: %s\n%s", role.Name, role.Description), nil)
	if err := s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if p, ok := g.Players[playerID]; ok {
			p.DMReachable = sendErr == nil
		}
		return nil
	}); err != nil {
		return err
	}
	return sendErr
}

// RescheduleAll re-arms deadlines from persisted state after a restart,
// with remaining = max(1s, deadline-now).
func (s *Service) RescheduleAll(ctx context.Context) {
	for _, id := range s.reg.IDs() {
		snap, err := s.reg.Snapshot(ctx, id)
		if err != nil {
			continue
		}
		if snap.PhaseDeadline == nil {
			continue
		}
		remaining := time.Until(*snap.PhaseDeadline)
		if remaining < time.Second {
			remaining = time.Second
		}
		sessionID := id
		switch snap.Phase {
		case game.PhaseNight:
			h := s.sched.ArmOnce(sessionID, remaining, func() {
				_ = s.EndNight(context.Background(), sessionID)
			})
			s.storeJob(ctx, sessionID, jobNightEnd, h)
			s.armReminder(ctx, sessionID, snap.ReminderSeconds)
		case game.PhaseDay:
			h := s.sched.ArmOnce(sessionID, remaining, func() {
				_ = s.EndDay(context.Background(), sessionID)
			})
			s.storeJob(ctx, sessionID, jobDayEnd, h)
			s.armReminder(ctx, sessionID, snap.ReminderSeconds)
		case game.PhaseVoting:
			h := s.sched.ArmOnce(sessionID, remaining, func() {
				_ = s.FinishVoting(context.Background(), sessionID)
			})
			s.storeJob(ctx, sessionID, jobVoteEnd, h)
		}
		s.logger.Info().Int64("session_id", id).Str("phase", string(snap.Phase)).Dur("remaining", remaining).Msg("deadline re-armed")
	}
}

// beginNight flips the session into night, prompts night actions and arms
// the night deadline plus the reminder.
func (s *Service) beginNight(ctx context.Context, sessionID int64) error {
	var nightSeconds, reminderSeconds int
	err := s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if !g.Phase.CanTransitionTo(game.PhaseNight) {
			return game.ErrInvalidTransition
		}
		g.Phase = game.PhaseNight
		deadline := time.Now().UTC().Add(time.Duration(g.NightSeconds) * time.Second)
		g.PhaseDeadline = &deadline
		nightSeconds = g.NightSeconds
		reminderSeconds = g.ReminderSeconds
		return nil
	})
	if err != nil {
		return err
	}

	s.promptNight(ctx, sessionID)

	h := s.sched.ArmOnce(sessionID, time.Duration(nightSeconds)*time.Second, func() {
		if err := s.EndNight(context.Background(), sessionID); err != nil {
			s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("end-night job failed")
		}
	})
	s.storeJob(ctx, sessionID, jobNightEnd, h)
	s.armReminder(ctx, sessionID, reminderSeconds)
	return nil
}

// promptNight DMs every living player with a night ability a keyboard of
// living targets, one pending action per button.
func (s *Service) promptNight(ctx context.Context, sessionID int64) {
	snap, err := s.reg.Snapshot(ctx, sessionID)
	if err != nil {
		return
	}
	alive := snap.AlivePlayers()
	sort.Slice(alive, func(i, j int) bool { return alive[i].ID < alive[j].ID })
	for _, p := range alive {
		role := game.Roles[p.Role]
		if role == nil || !role.HasNightAction {
			continue
		}
		actorID := p.ID
		var choices []transport.Choice
		for _, target := range alive {
			if target.ID == actorID {
				continue
			}
			key, err := s.actions.Propose(ctx, sessionID, role.NightAction, &actorID, target.ID, actions.DefaultTTL)
			if err != nil {
				s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("could not create night action")
				continue
			}
			choices = append(choices, transport.Choice{Label: target.Name, Key: key, Target: target.ID})
		}
		text := fmt.Sprintf("Noche: %s. Elige objetivo:", role.Name)
		if len(choices) == 0 {
			text = fmt.Sprintf("Noche: %s. No hay objetivos disponibles.", role.Name)
		}
		if _, err := s.msgr.SendPrivate(ctx, actorID, text, choices); err != nil {
			s.logger.Warn().Err(err).Int64("actor_id", actorID).Msg("could not deliver night prompt")
			s.markDM(ctx, sessionID, actorID, false)
		} else {
			s.markDM(ctx, sessionID, actorID, true)
		}
	}
}

func (s *Service) sendRoleDMs(ctx context.Context, sessionID int64, players []*game.Player) []string {
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	var unreachable []string
	for _, p := range players {
		role := game.Roles[p.Role]
		if role == nil {
			continue
		}
		_, err := s.msgr.SendPrivate(ctx, p.ID, fmt.Sprintf("Tu rol: %s\n%s", role.Name, role.Description), nil)
		s.markDM(ctx, sessionID, p.ID, err == nil)
		if err != nil {
			unreachable = append(unreachable, p.Name)
		}
	}
	return unreachable
}

func (s *Service) announceNight(ctx context.Context, sessionID int64, report *engine.NightReport) {
	lines := report.Lines
	if len(lines) == 0 {
		lines = []string{"Esta noche no hubo muertes."}
	}
	summary := "Resumen de la noche:\n- " + strings.Join(lines, "\n- ")
	_, _ = s.msgr.SendGroup(ctx, sessionID, summary, nil)
	for _, inv := range report.Investigations {
		if _, err := s.msgr.SendPrivate(ctx, inv.Actor, fmt.Sprintf("Resultado de investigación: %s", inv.Verdict), nil); err != nil {
			s.logger.Warn().Err(err).Int64("actor_id", inv.Actor).Msg("could not deliver verdict")
		}
	}
}

func (s *Service) finishGame(ctx context.Context, sessionID int64, winner engine.Winner) {
	s.cancelAllJobs(ctx, sessionID)
	var text string
	switch winner {
	case engine.WinnerTown:
		text = "¡El Pueblo gana!"
	case engine.WinnerMafia:
		text = "¡La Mafia gana!"
	case engine.WinnerSerial:
		text = "El Asesino en Serie ha ganado."
	}
	_, _ = s.msgr.SendGroup(ctx, sessionID, text, nil)
	s.logger.Info().Int64("session_id", sessionID).Str("winner", string(winner)).Msg("game over")
}

// Reminder posts the current phase and alive count to the group.
func (s *Service) Reminder(ctx context.Context, sessionID int64) {
	snap, err := s.reg.Snapshot(ctx, sessionID)
	if err != nil {
		return
	}
	if snap.Phase == game.PhaseLobby || snap.Phase == game.PhaseInactive {
		return
	}
	text := fmt.Sprintf("Recordatorio: fase %s. Jugadores vivos: %d.", snap.Phase, snap.AliveCount())
	_, _ = s.msgr.SendGroup(ctx, sessionID, text, nil)
}

func (s *Service) armReminder(ctx context.Context, sessionID int64, reminderSeconds int) {
	if reminderSeconds <= 0 {
		return
	}
	h := s.sched.ArmRepeating(sessionID, time.Duration(reminderSeconds)*time.Second, reminderFirstDelay, func() {
		s.Reminder(context.Background(), sessionID)
	})
	s.storeJob(ctx, sessionID, jobReminder, h)
}

// storeJob swaps the named job handle, disarming the previous one first
// so a phase never carries two live timers.
func (s *Service) storeJob(ctx context.Context, sessionID int64, name string, h scheduler.Handle) {
	var old scheduler.Handle
	err := s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		old = g.Jobs[name]
		g.Jobs[name] = h
		return nil
	})
	if err != nil {
		s.sched.Cancel(h)
		return
	}
	if old != "" && old != h {
		s.sched.Cancel(old)
	}
}

// disarm cancels and forgets the named job. Cancelling an already-fired
// handle is a no-op.
func (s *Service) disarm(ctx context.Context, sessionID int64, name string) {
	var h scheduler.Handle
	_ = s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		h = g.Jobs[name]
		delete(g.Jobs, name)
		return nil
	})
	if h != "" {
		s.sched.Cancel(h)
	}
}

func (s *Service) cancelAllJobs(ctx context.Context, sessionID int64) {
	var handles []scheduler.Handle
	_ = s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		for _, h := range g.Jobs {
			handles = append(handles, h)
		}
		g.Jobs = make(map[string]string)
		return nil
	})
	for _, h := range handles {
		s.sched.Cancel(h)
	}
}

func (s *Service) markDM(ctx context.Context, sessionID, playerID int64, ok bool) {
	_ = s.reg.Update(ctx, sessionID, func(g *game.Session) error {
		if p, okP := g.Players[playerID]; okP {
			p.DMReachable = ok
		}
		return nil
	})
}
