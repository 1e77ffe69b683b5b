package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store) (owner, recipient *models.User, doc *models.Document) {
	t.Helper()
	ctx := context.Background()
	owner = &models.User{Email: "owner@example.com", Role: models.RoleStaff, IsActive: true}
	recipient = &models.User{Email: "bob@example.com", FullName: "Bob", Role: models.RoleStaff, IsActive: true}
	require.NoError(t, s.Users().Create(ctx, owner))
	require.NoError(t, s.Users().Create(ctx, recipient))
	doc = &models.Document{Title: "Contract A", OwnerID: owner.ID}
	require.NoError(t, s.Documents().Create(ctx, doc))
	require.NoError(t, s.Documents().AddRecipient(ctx, doc.ID, recipient.ID))
	_, err := s.Signatures().Ensure(ctx, doc.ID, recipient.ID)
	require.NoError(t, err)
	return owner, recipient, doc
}

func TestStore_RollbackRestoresState(t *testing.T) {
	s := NewStore()
	_, recipient, doc := seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.TransactionManager().ExecTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Documents().RemoveRecipient(ctx, doc.ID, recipient.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := s.Documents().IsRecipient(ctx, doc.ID, recipient.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = s.Signatures().Get(ctx, doc.ID, recipient.ID)
	assert.NoError(t, err)
}

func TestStore_SignatureRequiresRecipient(t *testing.T) {
	s := NewStore()
	owner, _, doc := seed(t, s)

	_, err := s.Signatures().Ensure(context.Background(), doc.ID, owner.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStore_RemoveRecipientDropsSignature(t *testing.T) {
	s := NewStore()
	_, recipient, doc := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Documents().RemoveRecipient(ctx, doc.ID, recipient.ID))

	sigs, err := s.Signatures().ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestStore_MarkSignedOnce(t *testing.T) {
	s := NewStore()
	_, recipient, doc := seed(t, s)
	ctx := context.Background()

	signedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first, err := s.Signatures().MarkSigned(ctx, doc.ID, recipient.ID, signedAt)
	require.NoError(t, err)
	second, err := s.Signatures().MarkSigned(ctx, doc.ID, recipient.ID, signedAt.Add(time.Hour))
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)

	// Neither a second MarkSigned nor Ensure resets the timestamp
	sig, err := s.Signatures().Ensure(ctx, doc.ID, recipient.ID)
	require.NoError(t, err)
	require.NotNil(t, sig.SignedAt)
	assert.True(t, sig.SignedAt.Equal(signedAt))
}

func TestStore_DeleteUserCascades(t *testing.T) {
	s := NewStore()
	owner, recipient, doc := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Users().Delete(ctx, owner.ID))

	_, err := s.Documents().GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	items, err := s.Documents().List(ctx, models.DocumentFilter{RecipientID: &recipient.ID})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_UniqueEmail(t *testing.T) {
	s := NewStore()
	seed(t, s)

	err := s.Users().Create(context.Background(), &models.User{Email: "BOB@example.com", Role: models.RoleStaff})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "user", conflict.ResourceType)
}

func TestStore_CommitHooks(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	var ran []string

	err := s.TransactionManager().ExecTx(ctx, func(ctx context.Context) error {
		assert.True(t, repositories.InTx(ctx))
		repositories.AfterCommit(ctx, func() { ran = append(ran, "committed") })
		assert.Empty(t, ran)
		return nil
	})
	require.NoError(t, err)

	err = s.TransactionManager().ExecTx(ctx, func(ctx context.Context) error {
		repositories.AfterCommit(ctx, func() { ran = append(ran, "rolled back") })
		return errors.New("boom")
	})
	require.Error(t, err)

	assert.False(t, repositories.InTx(ctx))
	repositories.AfterCommit(ctx, func() { ran = append(ran, "immediate") })
	assert.Equal(t, []string{"committed", "immediate"}, ran)
}
