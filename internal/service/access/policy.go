// Package access decides what a user may do with a document.
package access

import (
	"context"
	"fmt"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
)

// Action is something a user attempts on a document
type Action int

const (
	View Action = iota
	Edit
	Delete
	Sign
	Comment
)

func (a Action) String() string {
	switch a {
	case View:
		return "view"
	case Edit:
		return "edit"
	case Delete:
		return "delete"
	case Sign:
		return "sign"
	case Comment:
		return "comment"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Standing is how a user relates to a document. A user can hold several
// standings at once (an admin who owns a document).
type Standing struct {
	Owner     bool
	Recipient bool
	Admin     bool
}

// Allows reports whether the standing permits the action.
//
//	View, Sign:    owner, recipient or admin
//	Edit, Delete:  owner or admin
//	Comment:       recipient only
func (s Standing) Allows(action Action) bool {
	switch action {
	case View, Sign:
		return s.Owner || s.Recipient || s.Admin
	case Edit, Delete:
		return s.Owner || s.Admin
	case Comment:
		return s.Recipient
	default:
		return false
	}
}

// Authorize returns a ForbiddenError when the standing does not permit the action
func Authorize(s Standing, action Action) error {
	if s.Allows(action) {
		return nil
	}
	return &domain.ForbiddenError{Message: fmt.Sprintf("not allowed to %s this document", action)}
}

// Policy resolves standings from the store
type Policy struct {
	docRepo repositories.DocumentRepository
}

func NewPolicy(docRepo repositories.DocumentRepository) *Policy {
	return &Policy{docRepo: docRepo}
}

// StandingOf returns the standing of user towards doc
func (p *Policy) StandingOf(ctx context.Context, user *models.User, doc *models.Document) (Standing, error) {
	isRecipient, err := p.docRepo.IsRecipient(ctx, doc.ID, user.ID)
	if err != nil {
		return Standing{}, err
	}
	return Standing{
		Owner:     doc.OwnerID == user.ID,
		Recipient: isRecipient,
		Admin:     user.IsAdmin(),
	}, nil
}

// Authorize resolves the standing of user and checks the action
func (p *Policy) Authorize(ctx context.Context, user *models.User, doc *models.Document, action Action) (Standing, error) {
	standing, err := p.StandingOf(ctx, user, doc)
	if err != nil {
		return Standing{}, err
	}
	if err := Authorize(standing, action); err != nil {
		return standing, err
	}
	return standing, nil
}
