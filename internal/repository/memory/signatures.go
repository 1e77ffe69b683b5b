package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
)

type signatureRepo struct {
	s *Store
}

func (r *signatureRepo) Ensure(_ context.Context, documentID, userID int64) (*models.Signature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Signature.Ensure"); err != nil {
		return nil, err
	}
	key := recipientKey{documentID, userID}
	if _, ok := r.s.data.recipients[key]; !ok {
		return nil, fmt.Errorf("user %d is not a recipient of document %d: %w", userID, documentID, domain.ErrValidation)
	}
	if sig, ok := r.s.data.signatures[key]; ok {
		return &sig, nil
	}
	r.s.data.nextSignature++
	sig := models.Signature{
		ID:         r.s.data.nextSignature,
		DocumentID: documentID,
		UserID:     userID,
		CreatedAt:  time.Now(),
	}
	r.s.data.signatures[key] = sig
	return &sig, nil
}

func (r *signatureRepo) Get(_ context.Context, documentID, userID int64) (*models.Signature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.data.signatures[recipientKey{documentID, userID}]
	if !ok {
		return nil, fmt.Errorf("signature of user %d on document %d: %w", userID, documentID, domain.ErrNotFound)
	}
	return &sig, nil
}

func (r *signatureRepo) ListByDocument(_ context.Context, documentID int64) ([]models.Signature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sigs := []models.Signature{}
	for k, sig := range r.s.data.signatures {
		if k.documentID == documentID {
			sigs = append(sigs, sig)
		}
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].ID < sigs[j].ID })
	return sigs, nil
}

func (r *signatureRepo) MarkSigned(_ context.Context, documentID, userID int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Signature.MarkSigned"); err != nil {
		return false, err
	}
	key := recipientKey{documentID, userID}
	sig, ok := r.s.data.signatures[key]
	if !ok || sig.SignedAt != nil {
		return false, nil
	}
	sig.SignedAt = &at
	r.s.data.signatures[key] = sig
	return true, nil
}
