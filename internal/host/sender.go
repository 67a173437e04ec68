package host

import (
	"context"

	"go.uber.org/zap"
)

// NoopSender stands in for a browser when commands cannot be delivered; the
// operator types them into the host by hand.
type NoopSender struct {
	Logger *zap.Logger
}

// Send logs the command and reports success.
func (s NoopSender) Send(_ context.Context, text string) error {
	if s.Logger != nil {
		s.Logger.Info("no browser attached; send this command manually", zap.String("command", text))
	}
	return nil
}
