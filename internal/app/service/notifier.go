package service

import (
	"github.com/facturalink/dte-backend/pkg/logger"
)

// LogNotifier reports terminal transmission failures to the structured log.
// Tenants watching the event stream get the same information in real time;
// this is the fallback channel that always works.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyTransmissionFailure(tenantID uint, documentID uint, reason string) {
	logger.Warn("Transmission failure notification", map[string]interface{}{
		"tenant_id":   tenantID,
		"document_id": documentID,
		"reason":      reason,
	})
}
