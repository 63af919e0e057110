package core

import (
	"context"
	"log/slog"
)

// SlogAuditRecorder writes one structured record per audited operation.
type SlogAuditRecorder struct {
	log *slog.Logger
}

// NewSlogAuditRecorder returns a recorder logging to l at info level, or warn
// when the operation failed.
func NewSlogAuditRecorder(l *slog.Logger) *SlogAuditRecorder {
	return &SlogAuditRecorder{log: l.With(slog.String("scope", "audit"))}
}

// Record implements AuditRecorder.
func (r *SlogAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("operation", entry.Operation),
		slog.String("action", string(entry.Action)),
		slog.String("entity", string(entry.Entity)),
		slog.String("entity_id", entry.EntityID),
		slog.String("viewer", entry.ViewerID),
		slog.String("status", string(entry.Status)),
		slog.Duration("duration", entry.Duration),
	}
	if entry.Status == AuditStatusError {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", entry.Error))
	}
	r.log.LogAttrs(ctx, level, "audit", attrs...)
}
