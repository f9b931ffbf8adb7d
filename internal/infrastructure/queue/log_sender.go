package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/projectsphere/identity-api/internal/core/ports"
)

// LogSender records notifications instead of delivering them. Real mail
// transport lives outside this service; the contract is the notification
// parameters, not the delivery mechanics. OTP values are not logged.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, n ports.Notification) error {
	s.log.Info().
		Str("email", n.Email).
		Str("recipient", n.Recipient).
		Str("kind", string(n.Kind)).
		Msg("notification dispatched")
	return nil
}
