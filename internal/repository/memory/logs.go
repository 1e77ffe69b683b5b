package memory

import (
	"context"
	"fmt"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
)

type logRepo struct {
	s *Store
}

func (r *logRepo) Append(_ context.Context, entry *models.DocumentLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("DocumentLog.Append"); err != nil {
		return err
	}
	if _, ok := r.s.data.documents[entry.DocumentID]; !ok {
		return fmt.Errorf("log target: %w", domain.ErrNotFound)
	}
	r.s.data.nextLog++
	entry.ID = r.s.data.nextLog
	entry.Timestamp = time.Now()
	r.s.data.logs = append(r.s.data.logs, *entry)
	return nil
}

// joined fills the display fields of an entry. Caller holds mu.
func (r *logRepo) joined(e models.DocumentLog) models.DocumentLog {
	e.DocumentTitle = r.s.data.documents[e.DocumentID].Title
	u := r.s.data.users[e.UserID]
	e.UserEmail = u.Email
	e.UserFullName = u.FullName
	return e
}

func (r *logRepo) List(_ context.Context, f models.LogFilter) ([]models.DocumentLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entries := []models.DocumentLog{}
	for i := len(r.s.data.logs) - 1; i >= 0; i-- {
		e := r.s.data.logs[i]
		switch {
		case f.DocumentID != nil && e.DocumentID != *f.DocumentID,
			f.UserID != nil && e.UserID != *f.UserID,
			f.Action != "" && e.Action != f.Action,
			f.From != nil && e.Timestamp.Before(*f.From),
			f.To != nil && !e.Timestamp.Before(*f.To):
			continue
		}
		entries = append(entries, r.joined(e))
		if f.Limit > 0 && len(entries) == f.Limit {
			break
		}
	}
	return entries, nil
}

func (r *logRepo) ListCommentsOnOwned(_ context.Context, ownerID int64, limit int) ([]models.DocumentLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entries := []models.DocumentLog{}
	for i := len(r.s.data.logs) - 1; i >= 0; i-- {
		e := r.s.data.logs[i]
		if e.Action != models.ActionComment || r.s.data.documents[e.DocumentID].OwnerID != ownerID {
			continue
		}
		entries = append(entries, r.joined(e))
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}
