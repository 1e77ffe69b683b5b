package workflow

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"edms/internal/domain/models"
	"edms/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedAt() *time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestRecomputeStatus(t *testing.T) {
	tests := []struct {
		name string
		sigs []models.Signature
		want models.DocumentStatus
	}{
		{"no signatures", nil, models.StatusDraft},
		{"one unsigned", []models.Signature{{UserID: 1}}, models.StatusSent},
		{"mixed", []models.Signature{{UserID: 1, SignedAt: signedAt()}, {UserID: 2}}, models.StatusSent},
		{"all signed", []models.Signature{{UserID: 1, SignedAt: signedAt()}, {UserID: 2, SignedAt: signedAt()}}, models.StatusSigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecomputeStatus(tt.sigs); got != tt.want {
				t.Errorf("RecomputeStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fixture struct {
	store     *memory.Store
	lifecycle *Lifecycle
	doc       *models.Document
	users     []int64
}

func newFixture(t *testing.T, recipients int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	owner := &models.User{Email: "owner@example.com", Role: models.RoleStaff, IsActive: true}
	require.NoError(t, store.Users().Create(ctx, owner))

	var ids []int64
	for i := 0; i < recipients; i++ {
		u := &models.User{Email: string(rune('a'+i)) + "@example.com", Role: models.RoleStaff, IsActive: true}
		require.NoError(t, store.Users().Create(ctx, u))
		ids = append(ids, u.ID)
	}

	doc := &models.Document{Title: "Contract", OwnerID: owner.ID}
	require.NoError(t, store.Documents().Create(ctx, doc))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		store:     store,
		lifecycle: NewLifecycle(store.Documents(), store.Signatures(), logger),
		doc:       doc,
		users:     ids,
	}
}

func (f *fixture) sign(t *testing.T, userID int64) {
	t.Helper()
	ok, err := f.store.Signatures().MarkSigned(context.Background(), f.doc.ID, userID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) storedStatus(t *testing.T) models.DocumentStatus {
	t.Helper()
	doc, err := f.store.Documents().GetByID(context.Background(), f.doc.ID)
	require.NoError(t, err)
	return doc.Status
}

func TestLifecycle_AddRecipientsMovesToSent(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	added, err := f.lifecycle.AddRecipients(ctx, f.doc.ID, []int64{f.users[0], f.users[1], f.users[0]})
	require.NoError(t, err)
	assert.Equal(t, f.users, added)

	status, err := f.lifecycle.Refresh(ctx, f.doc)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, status)
	assert.Equal(t, models.StatusSent, f.storedStatus(t))

	sigs, err := f.store.Signatures().ListByDocument(ctx, f.doc.ID)
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
}

func TestLifecycle_AddRecipientRevertsSigned(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.lifecycle.AddRecipients(ctx, f.doc.ID, f.users[:1])
	require.NoError(t, err)
	f.sign(t, f.users[0])
	_, err = f.lifecycle.Refresh(ctx, f.doc)
	require.NoError(t, err)
	require.Equal(t, models.StatusSigned, f.storedStatus(t))

	_, err = f.lifecycle.AddRecipients(ctx, f.doc.ID, f.users[1:])
	require.NoError(t, err)
	_, err = f.lifecycle.Refresh(ctx, f.doc)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSent, f.storedStatus(t))
}

func TestLifecycle_RemovingLastRecipientIsDraft(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.lifecycle.AddRecipients(ctx, f.doc.ID, f.users)
	require.NoError(t, err)
	_, err = f.lifecycle.Refresh(ctx, f.doc)
	require.NoError(t, err)

	added, removed, err := f.lifecycle.SyncRecipients(ctx, f.doc.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, f.users, removed)

	_, err = f.lifecycle.Refresh(ctx, f.doc)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, f.storedStatus(t))
}

func TestLifecycle_RemovingUnsignedLeavesSigned(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.lifecycle.AddRecipients(ctx, f.doc.ID, f.users)
	require.NoError(t, err)
	f.sign(t, f.users[0])
	_, err = f.lifecycle.Refresh(ctx, f.doc)
	require.NoError(t, err)
	require.Equal(t, models.StatusSent, f.storedStatus(t))

	_, _, err = f.lifecycle.SyncRecipients(ctx, f.doc.ID, f.users[:1])
	require.NoError(t, err)
	_, err = f.lifecycle.Refresh(ctx, f.doc)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSigned, f.storedStatus(t))
}

func TestAuditRecorder_Record(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	recorder := NewAuditRecorder(f.store.DocumentLogs())

	entry, err := recorder.Record(ctx, f.doc.ID, f.doc.OwnerID, models.ActionCreate, "")
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)

	entries, err := f.store.DocumentLogs().List(ctx, models.LogFilter{DocumentID: &f.doc.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionCreate, entries[0].Action)
}
