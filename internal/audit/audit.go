// Package audit writes the append-only record of every mutating
// operation. The audit log is independent of the event bus: events feed
// observers, audit entries feed accountability.
package audit

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mnehmos/questforge/pkg/models"
)

// Sink persists audit entries and assigns their monotonic IDs.
type Sink interface {
	AppendAudit(entry *models.AuditEntry) (int64, error)
}

// Logger records engine actions to a sink with an slog mirror.
type Logger struct {
	sink   Sink
	logger *slog.Logger
}

// NewLogger creates an audit logger. sink may be nil, in which case
// entries go to slog only.
func NewLogger(sink Sink) *Logger {
	return &Logger{
		sink:   sink,
		logger: slog.Default().With("component", "audit"),
	}
}

// Record appends one audit entry. details must be JSON-marshalable;
// failures degrade to a warning, never to a lost operation.
func (l *Logger) Record(action, actorID, targetID string, details any) {
	var raw json.RawMessage
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			l.logger.Warn("audit details not marshalable", "action", action, "error", err)
		} else {
			raw = b
		}
	}
	entry := &models.AuditEntry{
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Details:   raw,
		Timestamp: time.Now().UTC(),
	}
	if l.sink != nil {
		id, err := l.sink.AppendAudit(entry)
		if err != nil {
			l.logger.Error("failed to persist audit entry", "action", action, "error", err)
		} else {
			entry.ID = id
		}
	}
	l.logger.Info("audit",
		"action", action,
		"actor", actorID,
		"target", targetID,
	)
}
