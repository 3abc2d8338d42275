package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender only logs messages. It is used when no messaging service is
// configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.Info().
		Str("to", msg.To).
		Str("template", msg.Template).
		Msg("message not delivered, no messaging service configured")
	return nil
}
