package workflow

import (
	"context"
	"fmt"

	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
)

// AuditRecorder appends entries to the document log
type AuditRecorder struct {
	logRepo repositories.DocumentLogRepository
}

func NewAuditRecorder(logRepo repositories.DocumentLogRepository) *AuditRecorder {
	return &AuditRecorder{logRepo: logRepo}
}

// Record appends one entry. Run it in the same transaction as the change
// it describes.
func (a *AuditRecorder) Record(ctx context.Context, documentID, userID int64, action models.LogAction, comment string) (*models.DocumentLog, error) {
	entry := &models.DocumentLog{
		DocumentID: documentID,
		UserID:     userID,
		Action:     action,
		Comment:    comment,
	}
	if err := a.logRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("record %s: %w", action, err)
	}
	return entry, nil
}
