// Package cache holds in-memory read-through decorators for repositories.
package cache

import (
	"context"
	"strconv"
	"time"

	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultUserTTL  = 5 * time.Minute
	cleanupInterval = 10 * time.Minute
)

// UserRepository caches GetByID lookups of the wrapped repository.
// Every request passes through the auth middleware, which resolves the
// caller by ID, so this is the hot path.
type UserRepository struct {
	repositories.UserRepository
	store *gocache.Cache
	ttl   time.Duration
}

// NewUserRepository wraps next with a user cache. ttl <= 0 uses the default.
func NewUserRepository(next repositories.UserRepository, ttl time.Duration) *UserRepository {
	if ttl <= 0 {
		ttl = defaultUserTTL
	}
	return &UserRepository{
		UserRepository: next,
		store:          gocache.New(ttl, cleanupInterval),
		ttl:            ttl,
	}
}

func userKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

// GetByID serves from cache outside transactions
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	inTx := repositories.InTx(ctx)
	if !inTx {
		if cached, ok := r.store.Get(userKey(id)); ok {
			user := cached.(models.User)
			return &user, nil
		}
	}

	user, err := r.UserRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inTx {
		r.store.Set(userKey(id), *user, r.ttl)
	}
	return user, nil
}

// invalidate drops the cached user now and again when the surrounding
// transaction commits
func (r *UserRepository) invalidate(ctx context.Context, id int64) {
	key := userKey(id)
	r.store.Delete(key)
	repositories.AfterCommit(ctx, func() { r.store.Delete(key) })
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	err := r.UserRepository.Update(ctx, user)
	r.invalidate(ctx, user.ID)
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	err := r.UserRepository.UpdatePassword(ctx, id, passwordHash)
	r.invalidate(ctx, id)
	return err
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	err := r.UserRepository.UpdateLastLogin(ctx, id, at)
	r.invalidate(ctx, id)
	return err
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	err := r.UserRepository.Delete(ctx, id)
	r.invalidate(ctx, id)
	return err
}

// Flush drops every cached user (used after bulk imports)
func (r *UserRepository) Flush() {
	r.store.Flush()
}
