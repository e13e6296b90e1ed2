package sms

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers short text messages out-of-band, used for one-time
// passcodes. The production gateway is deployment-specific; this package
// ships the development implementation only.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// ConsoleSender logs messages instead of delivering them.
type ConsoleSender struct {
	logger *zap.Logger
}

// NewConsoleSender builds a console sender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send logs the message.
func (s *ConsoleSender) Send(_ context.Context, phone, message string) error {
	s.logger.Info("sms (console)", zap.String("phone", phone), zap.String("message", message))
	return nil
}
