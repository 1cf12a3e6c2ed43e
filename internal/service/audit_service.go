package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/cvbeltran/vschool-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService records the audit trail. Writes are fire-and-forget so a slow
// or failing audit insert never blocks the operation being audited.
type AuditService struct {
	repo   auditWriter
	logger *zap.Logger
}

// NewAuditService constructs the audit recorder.
func NewAuditService(repo auditWriter, logger *zap.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

// Record persists an audit entry asynchronously.
func (s *AuditService) Record(entry models.AuditLog) {
	if s == nil || s.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.CreateAuditLog(ctx, &entry); err != nil && s.logger != nil {
			s.logger.Warn("audit write failed",
				zap.String("action", entry.Action),
				zap.String("resource", entry.Resource),
				zap.Error(err))
		}
	}()
}

// RecordChange persists an audit entry with JSON-encoded old and new values.
func (s *AuditService) RecordChange(entry models.AuditLog, oldValues, newValues interface{}) {
	if oldValues != nil {
		if data, err := json.Marshal(oldValues); err == nil {
			entry.OldValues = data
		}
	}
	if newValues != nil {
		if data, err := json.Marshal(newValues); err == nil {
			entry.NewValues = data
		}
	}
	s.Record(entry)
}
