package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/models"
)

// LogGateway writes payloads to the log instead of sending them.
type LogGateway struct {
	log *zap.Logger
}

func NewLogGateway(log *zap.Logger) *LogGateway {
	return &LogGateway{log: log.Named("delivery")}
}

func (l *LogGateway) Send(_ context.Context, p models.OutboundPayload) error {
	l.log.Info("outbound message",
		zap.String("to", p.Recipient),
		zap.String("type", string(p.Response.Type)),
		zap.String("body", p.Body),
		zap.String("hash", p.Hash))
	return nil
}
