package game

import (
	"time"
)

// Phase is the session's current step in the game loop.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseNight    Phase = "night"
	PhaseDay      Phase = "day"
	PhaseVoting   Phase = "voting"
	PhaseInactive Phase = "inactive" // terminal
)

// CanTransitionTo validates a phase transition. Any phase may return to
// lobby through an explicit reset.
func (p Phase) CanTransitionTo(target Phase) bool {
	if target == PhaseLobby {
		return true
	}
	transitions := map[Phase][]Phase{
		PhaseLobby:    {PhaseNight},
		PhaseNight:    {PhaseDay, PhaseInactive},
		PhaseDay:      {PhaseVoting, PhaseInactive},
		PhaseVoting:   {PhaseNight, PhaseInactive},
		PhaseInactive: {},
	}
	for _, t := range transitions[p] {
		if t == target {
			return true
		}
	}
	return false
}

// LedgerKind keys the per-night action ledger. It covers the pending-action
// kinds plus the two entries written by the tally and consensus paths.
type LedgerKind string

const (
	LedgerHeal           LedgerKind = LedgerKind(KindHeal)
	LedgerBlock          LedgerKind = LedgerKind(KindBlock)
	LedgerGuard          LedgerKind = LedgerKind(KindGuard)
	LedgerInvestigate    LedgerKind = LedgerKind(KindInvestigate)
	LedgerBlackmail      LedgerKind = LedgerKind(KindBlackmail)
	LedgerSerialKill     LedgerKind = LedgerKind(KindSerialKill)
	LedgerVigilanteShot  LedgerKind = LedgerKind(KindVigilanteShot)
	LedgerVote           LedgerKind = "vote"
	LedgerMafiaConfirmed LedgerKind = "mafia_confirmed"
)

// LedgerEntry is one (actor, target) choice.
type LedgerEntry struct {
	Actor  int64 `json:"actorId"`
	Target int64 `json:"targetId"`
}

// Session is one game table, keyed by the group chat id. All mutation goes
// through the registry's per-session lock.
type Session struct {
	ID              int64                        `json:"sessionId"`
	HostID          int64                        `json:"hostId"`
	Phase           Phase                        `json:"phase"`
	RolesConfig     map[RoleKey]int              `json:"rolesConfig"`
	NightSeconds    int                          `json:"nightSeconds"`
	DaySeconds      int                          `json:"daySeconds"`
	ReminderSeconds int                          `json:"reminderSeconds"`
	PhaseDeadline   *time.Time                   `json:"phaseDeadline,omitempty"`
	Players         map[int64]*Player            `json:"players"`
	Ledger          map[LedgerKind][]LedgerEntry `json:"-"`
	MafiaVotes      map[int64]int64              `json:"-"`
	MafiaVoteOrder  []int64                      `json:"-"`
	Pending         map[string]*PendingAction    `json:"-"`
	Jobs            map[string]string            `json:"-"`
	CreatedAt       time.Time                    `json:"createdAt"`
	UpdatedAt       time.Time                    `json:"updatedAt"`
}

// DefaultRolesConfig mirrors the smallest playable table.
func DefaultRolesConfig() map[RoleKey]int {
	return map[RoleKey]int{RoleMafia: 1, RoleCiudadano: 3}
}

// NewSession creates a lobby-phase session with default durations.
func NewSession(id, hostID int64) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:              id,
		HostID:          hostID,
		Phase:           PhaseLobby,
		RolesConfig:     DefaultRolesConfig(),
		NightSeconds:    300,
		DaySeconds:      600,
		ReminderSeconds: 120,
		Players:         make(map[int64]*Player),
		Ledger:          make(map[LedgerKind][]LedgerEntry),
		MafiaVotes:      make(map[int64]int64),
		Pending:         make(map[string]*PendingAction),
		Jobs:            make(map[string]string),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ResetToLobby clears all transient state but preserves player membership.
func (s *Session) ResetToLobby() {
	s.Phase = PhaseLobby
	s.RolesConfig = DefaultRolesConfig()
	s.PhaseDeadline = nil
	s.Ledger = make(map[LedgerKind][]LedgerEntry)
	s.MafiaVotes = make(map[int64]int64)
	s.MafiaVoteOrder = nil
	s.Pending = make(map[string]*PendingAction)
	s.Jobs = make(map[string]string)
	for _, p := range s.Players {
		p.Role = ""
		p.Alive = true
		p.Blocked = false
		p.Silenced = false
		p.DMReachable = false
	}
	s.Touch()
}

// Touch bumps the updated timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// AddLedger appends a choice under kind.
func (s *Session) AddLedger(kind LedgerKind, actor, target int64) {
	s.Ledger[kind] = append(s.Ledger[kind], LedgerEntry{Actor: actor, Target: target})
}

// SetVote records a day vote, replacing any prior vote by the same voter.
func (s *Session) SetVote(voter, target int64) {
	votes := s.Ledger[LedgerVote][:0:0]
	for _, v := range s.Ledger[LedgerVote] {
		if v.Actor != voter {
			votes = append(votes, v)
		}
	}
	s.Ledger[LedgerVote] = append(votes, LedgerEntry{Actor: voter, Target: target})
}

// SetMafiaVote records a mafia member's pick. A repeat vote replaces the
// choice but keeps the member's first-registered position, which drives
// plurality tie-breaks.
func (s *Session) SetMafiaVote(member, target int64) {
	if _, voted := s.MafiaVotes[member]; !voted {
		s.MafiaVoteOrder = append(s.MafiaVoteOrder, member)
	}
	s.MafiaVotes[member] = target
}

// MafiaPluralityTarget computes the current plurality target of the mafia
// votes, ties broken by first-registered vote order. Returns false when no
// votes exist.
func (s *Session) MafiaPluralityTarget() (int64, bool) {
	if len(s.MafiaVotes) == 0 {
		return 0, false
	}
	counts := make(map[int64]int)
	var order []int64 // targets in first-seen order
	for _, member := range s.MafiaVoteOrder {
		target, ok := s.MafiaVotes[member]
		if !ok {
			continue
		}
		if counts[target] == 0 {
			order = append(order, target)
		}
		counts[target]++
	}
	var best int64
	bestCount := 0
	for _, target := range order {
		if counts[target] > bestCount {
			best = target
			bestCount = counts[target]
		}
	}
	return best, bestCount > 0
}

// ClearNight wipes the ledgers, mafia votes and per-night player flags.
func (s *Session) ClearNight() {
	s.Ledger = make(map[LedgerKind][]LedgerEntry)
	s.MafiaVotes = make(map[int64]int64)
	s.MafiaVoteOrder = nil
	for _, p := range s.Players {
		p.Blocked = false
	}
	s.PhaseDeadline = nil
}

// AlivePlayers returns living players.
func (s *Session) AlivePlayers() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// AliveCount returns the number of living players.
func (s *Session) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// LivingMafiaIDs returns the ids of living mafia-faction members.
func (s *Session) LivingMafiaIDs() []int64 {
	var ids []int64
	for _, p := range s.Players {
		if p.Alive && IsMafiaAligned(p.Role) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// LivingTarget reports whether id names a living player.
func (s *Session) LivingTarget(id int64) bool {
	p, ok := s.Players[id]
	return ok && p.Alive
}

// Clone returns a deep copy, used for lock-free reads and for building
// persistence snapshots under the session lock.
func (s *Session) Clone() *Session {
	cp := *s
	if s.PhaseDeadline != nil {
		d := *s.PhaseDeadline
		cp.PhaseDeadline = &d
	}
	cp.RolesConfig = make(map[RoleKey]int, len(s.RolesConfig))
	for k, v := range s.RolesConfig {
		cp.RolesConfig[k] = v
	}
	cp.Players = make(map[int64]*Player, len(s.Players))
	for id, p := range s.Players {
		cp.Players[id] = p.clone()
	}
	cp.Ledger = make(map[LedgerKind][]LedgerEntry, len(s.Ledger))
	for k, entries := range s.Ledger {
		cp.Ledger[k] = append([]LedgerEntry(nil), entries...)
	}
	cp.MafiaVotes = make(map[int64]int64, len(s.MafiaVotes))
	for k, v := range s.MafiaVotes {
		cp.MafiaVotes[k] = v
	}
	cp.MafiaVoteOrder = append([]int64(nil), s.MafiaVoteOrder...)
	cp.Pending = make(map[string]*PendingAction, len(s.Pending))
	for k, pa := range s.Pending {
		cp.Pending[k] = pa.clone()
	}
	cp.Jobs = make(map[string]string, len(s.Jobs))
	for k, v := range s.Jobs {
		cp.Jobs[k] = v
	}
	return &cp
}
