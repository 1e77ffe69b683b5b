package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUsers struct {
	repositories.UserRepository
	users map[int64]models.User
	gets  int
}

func (c *countingUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	c.gets++
	u, ok := c.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (c *countingUsers) Update(_ context.Context, user *models.User) error {
	c.users[user.ID] = *user
	return nil
}

func TestUserRepository_CachesGetByID(t *testing.T) {
	inner := &countingUsers{users: map[int64]models.User{1: {ID: 1, Email: "a@x.io", Role: models.RoleStaff}}}
	repo := NewUserRepository(inner, time.Minute)
	ctx := context.Background()

	first, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, first, second)

	// Callers get copies
	second.Email = "changed@x.io"
	third, _ := repo.GetByID(ctx, 1)
	assert.Equal(t, "a@x.io", third.Email)
}

func TestUserRepository_UpdateInvalidates(t *testing.T) {
	inner := &countingUsers{users: map[int64]models.User{1: {ID: 1, Email: "a@x.io", Role: models.RoleStaff}}}
	repo := NewUserRepository(inner, time.Minute)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, &models.User{ID: 1, Email: "new@x.io", Role: models.RoleAdmin}))

	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new@x.io", user.Email)
	assert.Equal(t, 2, inner.gets)
}

func TestUserRepository_NotFoundIsNotCached(t *testing.T) {
	inner := &countingUsers{users: map[int64]models.User{}}
	repo := NewUserRepository(inner, time.Minute)

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, inner.gets)
}

// stagedUsers applies updates made inside a transaction only on commit,
// like a database does for readers outside it
type stagedUsers struct {
	countingUsers
	pending map[int64]models.User
}

func (s *stagedUsers) Update(ctx context.Context, user *models.User) error {
	if repositories.InTx(ctx) {
		s.pending[user.ID] = *user
		return nil
	}
	return s.countingUsers.Update(ctx, user)
}

func (s *stagedUsers) commit() {
	for id, u := range s.pending {
		s.users[id] = u
	}
	s.pending = map[int64]models.User{}
}

func TestUserRepository_InvalidatesAgainOnCommit(t *testing.T) {
	inner := &stagedUsers{
		countingUsers: countingUsers{users: map[int64]models.User{1: {ID: 1, Email: "a@x.io", IsActive: true}}},
		pending:       map[int64]models.User{},
	}
	repo := NewUserRepository(inner, time.Minute)
	ctx := context.Background()

	txCtx, runHooks := repositories.WithCommitHooks(ctx)
	require.NoError(t, repo.Update(txCtx, &models.User{ID: 1, Email: "a@x.io", IsActive: false}))

	// A request outside the transaction still sees and caches the old row
	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	inner.commit()
	runHooks()

	user, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}

func TestUserRepository_InTxReadsBypassCache(t *testing.T) {
	inner := &countingUsers{users: map[int64]models.User{1: {ID: 1, Email: "a@x.io"}}}
	repo := NewUserRepository(inner, time.Minute)
	txCtx, _ := repositories.WithCommitHooks(context.Background())

	_, err := repo.GetByID(txCtx, 1)
	require.NoError(t, err)
	_, err = repo.GetByID(txCtx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.gets)
}
