// Package workflow keeps document status consistent with the signature set
// and records the audit trail.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
)

// RecomputeStatus derives a document status from its signatures:
// no signatures is draft, all signed is signed, anything else is sent.
func RecomputeStatus(signatures []models.Signature) models.DocumentStatus {
	if len(signatures) == 0 {
		return models.StatusDraft
	}
	for i := range signatures {
		if !signatures[i].IsSigned() {
			return models.StatusSent
		}
	}
	return models.StatusSigned
}

// Lifecycle changes the recipient set of documents and keeps the stored
// status in line with it. Its methods must run inside the caller's
// transaction.
type Lifecycle struct {
	docRepo repositories.DocumentRepository
	sigRepo repositories.SignatureRepository
	logger  *slog.Logger
}

// NewLifecycle creates a lifecycle controller
func NewLifecycle(docRepo repositories.DocumentRepository, sigRepo repositories.SignatureRepository, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		docRepo: docRepo,
		sigRepo: sigRepo,
		logger:  logger,
	}
}

// Refresh recomputes the status of a document from its signatures and
// persists it when it changed
func (l *Lifecycle) Refresh(ctx context.Context, doc *models.Document) (models.DocumentStatus, error) {
	sigs, err := l.sigRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("load signatures: %w", err)
	}

	status := RecomputeStatus(sigs)
	if status == doc.Status {
		return status, nil
	}

	if err := l.docRepo.UpdateStatus(ctx, doc.ID, status); err != nil {
		return "", err
	}
	l.logger.Debug("document status changed",
		"document_id", doc.ID,
		"from", doc.Status,
		"to", status,
	)
	doc.Status = status
	return status, nil
}

// AddRecipients adds recipients with an unsigned signature each and
// returns the ids that were not recipients before
func (l *Lifecycle) AddRecipients(ctx context.Context, documentID int64, userIDs []int64) ([]int64, error) {
	current, err := l.recipientIDs(ctx, documentID)
	if err != nil {
		return nil, err
	}

	added := []int64{}
	for _, id := range dedupe(userIDs) {
		if slices.Contains(current, id) {
			continue
		}
		if err := l.docRepo.AddRecipient(ctx, documentID, id); err != nil {
			return nil, err
		}
		if _, err := l.sigRepo.Ensure(ctx, documentID, id); err != nil {
			return nil, err
		}
		added = append(added, id)
	}
	return added, nil
}

// SyncRecipients makes the recipient set of a document equal to want.
// Removed recipients lose their signature; new ones get an unsigned one.
func (l *Lifecycle) SyncRecipients(ctx context.Context, documentID int64, want []int64) (added, removed []int64, err error) {
	current, err := l.recipientIDs(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	want = dedupe(want)
	removed = []int64{}
	for _, id := range current {
		if slices.Contains(want, id) {
			continue
		}
		if err := l.docRepo.RemoveRecipient(ctx, documentID, id); err != nil {
			return nil, nil, err
		}
		removed = append(removed, id)
	}

	added, err = l.AddRecipients(ctx, documentID, want)
	if err != nil {
		return nil, nil, err
	}
	return added, removed, nil
}

func (l *Lifecycle) recipientIDs(ctx context.Context, documentID int64) ([]int64, error) {
	users, err := l.docRepo.ListRecipients(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// dedupe drops repeated ids, keeping first-seen order
func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
