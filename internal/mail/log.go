package mail

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSender only logs the envelope. Development use.
type LogSender struct{}

// NewLogSender creates a log-only sender
func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, msg Message) error {
	log.Info().
		Str("from", msg.From).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_size", len(msg.Text)).
		Msg("Email not sent, log provider active")
	return nil
}
