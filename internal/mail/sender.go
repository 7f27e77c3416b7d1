package mail

import (
	"context"

	"github.com/rs/zerolog"

	"taskhive/api/internal/models"
)

// Sender delivers one-time codes. Delivery itself is an external
// collaborator; this interface is the seam.
type Sender interface {
	Send(ctx context.Context, to string, purpose models.CodePurpose, code string) error
}

// LogSender writes codes to the log instead of delivering mail. Used in
// development and tests.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to string, purpose models.CodePurpose, code string) error {
	s.log.Info().
		Str("to", to).
		Str("purpose", string(purpose)).
		Str("code", code).
		Msg("verification code issued")
	return nil
}
