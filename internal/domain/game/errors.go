package game

import "errors"

// Error taxonomy. Unauthorized, expired and invalid-target errors are
// user-facing and recoverable; none of these is fatal to the process.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")
	ErrUnauthorized        = errors.New("actor not authorized for this action")
	ErrActionExpired       = errors.New("pending action expired")
	ErrActionNotFound      = errors.New("pending action not found")
	ErrInvalidTarget       = errors.New("invalid target")
	ErrInsufficientPlayers = errors.New("at least 4 players required")
	ErrWrongPhase          = errors.New("operation not allowed in current phase")
	ErrInvalidTransition   = errors.New("invalid phase transition")
)
