package memory

import (
	"context"
	"fmt"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"

	"github.com/google/uuid"
)

type resetRepo struct {
	s *Store
}

func (r *resetRepo) Create(_ context.Context, token *models.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.s.data.resets[token.Token.String()] = *token
	return nil
}

func (r *resetRepo) Get(_ context.Context, token uuid.UUID) (*models.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.resets[token.String()]
	if !ok {
		return nil, fmt.Errorf("password reset token: %w", domain.ErrNotFound)
	}
	return &t, nil
}

func (r *resetRepo) Delete(_ context.Context, token uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.data.resets, token.String())
	return nil
}

func (r *resetRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var n int64
	for k, t := range r.s.data.resets {
		if now.After(t.ExpiresAt) {
			delete(r.s.data.resets, k)
			n++
		}
	}
	return n, nil
}
