package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
)

type notificationRepo struct {
	s *Store
}

func (r *notificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Notification.Create"); err != nil {
		return err
	}
	if _, ok := r.s.data.documents[n.DocumentID]; !ok {
		return fmt.Errorf("notification target: %w", domain.ErrNotFound)
	}
	r.s.data.nextNotification++
	n.ID = r.s.data.nextNotification
	n.IsRead = false
	n.CreatedAt = time.Now()
	r.s.data.notifications[n.ID] = *n
	return nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := []models.Notification{}
	for _, n := range r.s.data.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		n.DocumentTitle = r.s.data.documents[n.DocumentID].Title
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.data.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	n.IsRead = true
	r.s.data.notifications[id] = n
	return nil
}

func (r *notificationRepo) CountUnread(_ context.Context, userID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.data.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}
