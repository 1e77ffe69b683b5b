package access

import (
	"context"
	"testing"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStanding_Allows(t *testing.T) {
	owner := Standing{Owner: true}
	recipient := Standing{Recipient: true}
	admin := Standing{Admin: true}
	other := Standing{}
	ownerRecipient := Standing{Owner: true, Recipient: true}

	tests := []struct {
		name     string
		standing Standing
		action   Action
		want     bool
	}{
		{"owner views", owner, View, true},
		{"owner edits", owner, Edit, true},
		{"owner deletes", owner, Delete, true},
		{"owner signs", owner, Sign, true},
		{"owner cannot comment", owner, Comment, false},
		{"recipient views", recipient, View, true},
		{"recipient cannot edit", recipient, Edit, false},
		{"recipient cannot delete", recipient, Delete, false},
		{"recipient signs", recipient, Sign, true},
		{"recipient comments", recipient, Comment, true},
		{"admin views", admin, View, true},
		{"admin edits", admin, Edit, true},
		{"admin deletes", admin, Delete, true},
		{"admin signs", admin, Sign, true},
		{"admin cannot comment", admin, Comment, false},
		{"other cannot view", other, View, false},
		{"other cannot sign", other, Sign, false},
		{"other cannot comment", other, Comment, false},
		{"owner who is recipient comments", ownerRecipient, Comment, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.standing.Allows(tt.action); got != tt.want {
				t.Errorf("Allows(%v) = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestAuthorize_ReturnsForbidden(t *testing.T) {
	err := Authorize(Standing{}, View)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.NoError(t, Authorize(Standing{Admin: true}, Delete))
}

func TestPolicy_StandingOf(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	owner := &models.User{Email: "o@example.com", Role: models.RoleStaff}
	bob := &models.User{Email: "bob@example.com", Role: models.RoleStaff}
	admin := &models.User{Email: "admin@example.com", Role: models.RoleAdmin}
	stranger := &models.User{Email: "s@example.com", Role: models.RoleStaff}
	for _, u := range []*models.User{owner, bob, admin, stranger} {
		require.NoError(t, store.Users().Create(ctx, u))
	}
	doc := &models.Document{Title: "Contract", OwnerID: owner.ID}
	require.NoError(t, store.Documents().Create(ctx, doc))
	require.NoError(t, store.Documents().AddRecipient(ctx, doc.ID, bob.ID))

	policy := NewPolicy(store.Documents())

	tests := []struct {
		user *models.User
		want Standing
	}{
		{owner, Standing{Owner: true}},
		{bob, Standing{Recipient: true}},
		{admin, Standing{Admin: true}},
		{stranger, Standing{}},
	}
	for _, tt := range tests {
		t.Run(tt.user.Email, func(t *testing.T) {
			got, err := policy.StandingOf(ctx, tt.user, doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := policy.Authorize(ctx, stranger, doc, View)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
