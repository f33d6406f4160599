package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LogMessenger is the stand-in transport used when no chat integration is
// configured: every send is logged and acknowledged. It keeps the engine
// runnable headless and doubles as the delivery trace in development.
type LogMessenger struct {
	logger zerolog.Logger
	seq    atomic.Int64
}

func NewLogMessenger(logger zerolog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.With().Str("service", "messenger").Logger()}
}

func (m *LogMessenger) SendPrivate(ctx context.Context, actorID int64, text string, choices []Choice) (MessageRef, error) {
	m.logger.Info().Int64("actor_id", actorID).Int("choices", len(choices)).Str("text", text).Msg("private message")
	return m.ref(), nil
}

func (m *LogMessenger) SendGroup(ctx context.Context, sessionID int64, text string, choices []Choice) (MessageRef, error) {
	m.logger.Info().Int64("session_id", sessionID).Int("choices", len(choices)).Str("text", text).Msg("group message")
	return m.ref(), nil
}

func (m *LogMessenger) MemberPrivileges(ctx context.Context, sessionID, actorID int64) (string, error) {
	return "member", nil
}

func (m *LogMessenger) ref() MessageRef {
	return MessageRef(fmt.Sprintf("log-%d", m.seq.Add(1)))
}
