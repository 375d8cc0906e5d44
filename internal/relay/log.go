package relay

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/contact"
)

// Log accepts every payload and writes a summary to the logger. Used in
// development when no real relay is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, p contact.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Info("contact message (log relay)",
		zap.String("from_name", p.FromName),
		zap.String("from_email", p.FromEmail),
		zap.String("subject", p.Subject),
		zap.Int("message_chars", utf8.RuneCountInString(p.Message)),
		zap.String("to_name", p.ToName),
	)
	return nil
}
