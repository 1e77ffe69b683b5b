package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
)

type documentRepo struct {
	s *Store
}

// deleteDocument removes a document and its dependents. Caller holds mu.
func (s *Store) deleteDocument(id int64) {
	delete(s.data.documents, id)
	for k := range s.data.recipients {
		if k.documentID == id {
			delete(s.data.recipients, k)
			delete(s.data.signatures, k)
		}
	}
	for nid, n := range s.data.notifications {
		if n.DocumentID == id {
			delete(s.data.notifications, nid)
		}
	}
	s.data.logs = slices.DeleteFunc(s.data.logs, func(l models.DocumentLog) bool { return l.DocumentID == id })
}

func (r *documentRepo) Create(_ context.Context, doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Document.Create"); err != nil {
		return err
	}
	if _, ok := r.s.data.users[doc.OwnerID]; !ok {
		return fmt.Errorf("owner %d: %w", doc.OwnerID, domain.ErrNotFound)
	}
	if doc.ID != 0 {
		if _, exists := r.s.data.documents[doc.ID]; exists {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("document %d already exists", doc.ID),
				ResourceType: "document",
				ResourceID:   fmt.Sprint(doc.ID),
			}
		}
	} else {
		r.s.data.nextDocument++
		for r.s.data.documents[r.s.data.nextDocument].ID != 0 {
			r.s.data.nextDocument++
		}
		doc.ID = r.s.data.nextDocument
	}
	if doc.Status == "" {
		doc.Status = models.StatusDraft
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	r.s.data.documents[doc.ID] = *doc
	return nil
}

func (r *documentRepo) GetByID(_ context.Context, id int64) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.data.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return &d, nil
}

// GetForUpdate needs no lock here: transactions are already serialized
func (r *documentRepo) GetForUpdate(ctx context.Context, id int64) (*models.Document, error) {
	return r.GetByID(ctx, id)
}

func (r *documentRepo) Update(_ context.Context, doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Document.Update"); err != nil {
		return err
	}
	d, ok := r.s.data.documents[doc.ID]
	if !ok {
		return fmt.Errorf("document %d: %w", doc.ID, domain.ErrNotFound)
	}
	d.Title = doc.Title
	d.FileKey = doc.FileKey
	r.s.data.documents[doc.ID] = d
	return nil
}

func (r *documentRepo) UpdateStatus(_ context.Context, id int64, status models.DocumentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Document.UpdateStatus"); err != nil {
		return err
	}
	d, ok := r.s.data.documents[id]
	if !ok {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	d.Status = status
	r.s.data.documents[id] = d
	return nil
}

func (r *documentRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.documents[id]; !ok {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	r.s.deleteDocument(id)
	return nil
}

// matches applies a document filter. Caller holds mu.
func (r *documentRepo) matches(d models.Document, f models.DocumentFilter) bool {
	if f.OwnerID != nil && d.OwnerID != *f.OwnerID {
		return false
	}
	if f.RecipientID != nil {
		if _, ok := r.s.data.recipients[recipientKey{d.ID, *f.RecipientID}]; !ok {
			return false
		}
	}
	if f.Title != "" && !strings.Contains(strings.ToLower(d.Title), strings.ToLower(f.Title)) {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.RecipientName != "" {
		name := strings.ToLower(f.RecipientName)
		found := false
		for _, u := range r.recipientsLocked(d.ID) {
			if strings.Contains(strings.ToLower(u.FullName), name) || strings.Contains(strings.ToLower(u.Email), name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *documentRepo) recipientsLocked(documentID int64) []models.User {
	users := []models.User{}
	for k := range r.s.data.recipients {
		if k.documentID == documentID {
			users = append(users, r.s.data.users[k.userID])
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].FullName != users[j].FullName {
			return users[i].FullName < users[j].FullName
		}
		return users[i].ID < users[j].ID
	})
	return users
}

func (r *documentRepo) List(_ context.Context, filter models.DocumentFilter) ([]models.DocumentListItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := []models.DocumentListItem{}
	for _, d := range r.s.data.documents {
		if !r.matches(d, filter) {
			continue
		}
		item := models.DocumentListItem{
			Document:   d,
			OwnerEmail: r.s.data.users[d.OwnerID].Email,
			Recipients: []models.UserSummary{},
		}
		for _, u := range r.recipientsLocked(d.ID) {
			item.Recipients = append(item.Recipients, u.Summary())
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

func (r *documentRepo) CountByStatus(_ context.Context, filter models.DocumentFilter) (map[models.DocumentStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[models.DocumentStatus]int{
		models.StatusDraft:  0,
		models.StatusSent:   0,
		models.StatusSigned: 0,
	}
	for _, d := range r.s.data.documents {
		if r.matches(d, filter) {
			counts[d.Status]++
		}
	}
	return counts, nil
}

func (r *documentRepo) SyncIDSequence(_ context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id := range r.s.data.documents {
		if id > r.s.data.nextDocument {
			r.s.data.nextDocument = id
		}
	}
	return nil
}

func (r *documentRepo) ListRecipients(_ context.Context, documentID int64) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.recipientsLocked(documentID), nil
}

func (r *documentRepo) AddRecipient(_ context.Context, documentID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Document.AddRecipient"); err != nil {
		return err
	}
	_, docOK := r.s.data.documents[documentID]
	_, userOK := r.s.data.users[userID]
	if !docOK || !userOK {
		return fmt.Errorf("recipient %d of document %d: %w", userID, documentID, domain.ErrNotFound)
	}
	r.s.data.recipients[recipientKey{documentID, userID}] = struct{}{}
	return nil
}

func (r *documentRepo) RemoveRecipient(_ context.Context, documentID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := recipientKey{documentID, userID}
	delete(r.s.data.recipients, key)
	delete(r.s.data.signatures, key)
	return nil
}

func (r *documentRepo) IsRecipient(_ context.Context, documentID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.data.recipients[recipientKey{documentID, userID}]
	return ok, nil
}
