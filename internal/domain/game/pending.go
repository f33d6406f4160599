package game

import (
	"time"
)

// ActionKind is the closed set of pending-action kinds. The manager and
// the resolution engine switch over it exhaustively; adding a kind is a
// compile-time-checked change.
type ActionKind string

const (
	KindHeal          ActionKind = "heal"
	KindBlock         ActionKind = "block"
	KindGuard         ActionKind = "guard"
	KindInvestigate   ActionKind = "investigate"
	KindBlackmail     ActionKind = "blackmail"
	KindSerialKill    ActionKind = "serial_kill"
	KindVigilanteShot ActionKind = "vigilante_shot"
	KindMafiaPick     ActionKind = "mafia_pick"
	KindMafiaConfirm  ActionKind = "mafia_confirm"
	KindVoteGroup     ActionKind = "vote_group"
)

// Valid reports whether k is a known kind.
func (k ActionKind) Valid() bool {
	switch k {
	case KindHeal, KindBlock, KindGuard, KindInvestigate, KindBlackmail,
		KindSerialKill, KindVigilanteShot, KindMafiaPick, KindMafiaConfirm, KindVoteGroup:
		return true
	}
	return false
}

// PendingAction is a proposed-but-unconfirmed action awaiting a response.
// It is consumed exactly once: on completion or on expiry.
type PendingAction struct {
	Key           string     `json:"key"`
	SessionID     int64      `json:"sessionId"`
	Kind          ActionKind `json:"kind"`
	Actor         *int64     `json:"actorId,omitempty"` // nil: any eligible actor may respond
	Target        int64      `json:"targetId"`
	Confirmations []int64    `json:"confirmations,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
}

// IsExpired reports whether the action is past its expiry at now.
func (pa *PendingAction) IsExpired(now time.Time) bool {
	return now.After(pa.ExpiresAt)
}

// AddressedTo reports whether actorID may respond to this action.
func (pa *PendingAction) AddressedTo(actorID int64) bool {
	return pa.Actor == nil || *pa.Actor == actorID
}

// Confirm appends actorID to the confirmation set, idempotently.
func (pa *PendingAction) Confirm(actorID int64) {
	for _, id := range pa.Confirmations {
		if id == actorID {
			return
		}
	}
	pa.Confirmations = append(pa.Confirmations, actorID)
}

// ConfirmedBy reports whether the confirmation set covers every id in ids.
func (pa *PendingAction) ConfirmedBy(ids []int64) bool {
	confirmed := make(map[int64]bool, len(pa.Confirmations))
	for _, id := range pa.Confirmations {
		confirmed[id] = true
	}
	for _, id := range ids {
		if !confirmed[id] {
			return false
		}
	}
	return true
}

func (pa *PendingAction) clone() *PendingAction {
	cp := *pa
	if pa.Actor != nil {
		a := *pa.Actor
		cp.Actor = &a
	}
	cp.Confirmations = append([]int64(nil), pa.Confirmations...)
	return &cp
}
