// Package transport defines the messaging surface the engine talks to.
// Concrete chat integrations live outside this repository; the engine only
// needs private/group delivery with optional choice buttons and a way to
// receive the resulting picks.
package transport

import "context"

// Choice is one selectable button. Key routes the press back to its
// pending action; Target is the player the button names.
type Choice struct {
	Label  string
	Key    string
	Target int64
}

// MessageRef identifies a delivered message on the transport side.
type MessageRef string

// Messenger is implemented by the external messaging transport.
type Messenger interface {
	SendPrivate(ctx context.Context, actorID int64, text string, choices []Choice) (MessageRef, error)
	SendGroup(ctx context.Context, sessionID int64, text string, choices []Choice) (MessageRef, error)
	// MemberPrivileges returns the transport-side role of an actor in the
	// group ("administrator", "creator", "member"). Only consulted for
	// destructive admin commands.
	MemberPrivileges(ctx context.Context, sessionID, actorID int64) (string, error)
}

// ChoiceHandler receives actor picks from the transport: the pending
// action key the button carried, who pressed it, and the chosen target.
type ChoiceHandler interface {
	HandleChoice(ctx context.Context, key string, actorID, targetID int64) (string, error)
}
