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

type userRepo struct {
	s *Store
}

func (r *userRepo) emailTaken(email string, except int64) (int64, bool) {
	for id, u := range r.s.data.users {
		if id != except && strings.EqualFold(u.Email, email) {
			return id, true
		}
	}
	return 0, false
}

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("User.Create"); err != nil {
		return err
	}
	if id, taken := r.emailTaken(user.Email, 0); taken {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("email '%s' already registered", user.Email),
			ResourceType: "user",
			ResourceID:   fmt.Sprint(id),
		}
	}
	r.s.data.nextUser++
	user.ID = r.s.data.nextUser
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.emailTaken(email, 0); ok {
		u := r.s.data.users[id]
		return &u, nil
	}
	return nil, fmt.Errorf("user '%s': %w", email, domain.ErrNotFound)
}

func (r *userRepo) GetByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := []models.User{}
	for _, id := range ids {
		if u, ok := r.s.data.users[id]; ok && !slices.ContainsFunc(users, func(x models.User) bool { return x.ID == id }) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepo) List(_ context.Context) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]models.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (r *userRepo) Search(_ context.Context, query string, exclude []int64, limit int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(query)
	users := []models.User{}
	for _, u := range r.s.data.users {
		if !u.IsActive || slices.Contains(exclude, u.ID) {
			continue
		}
		if strings.Contains(strings.ToLower(u.Email), q) || strings.Contains(strings.ToLower(u.FullName), q) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].FullName != users[j].FullName {
			return users[i].FullName < users[j].FullName
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *userRepo) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.data.users[user.ID]
	if !ok {
		return fmt.Errorf("user %d: %w", user.ID, domain.ErrNotFound)
	}
	if id, taken := r.emailTaken(user.Email, user.ID); taken {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("email '%s' already registered", user.Email),
			ResourceType: "user",
			ResourceID:   fmt.Sprint(id),
		}
	}
	existing.Email = user.Email
	existing.FullName = user.FullName
	existing.Role = user.Role
	existing.EmailNotifications = user.EmailNotifications
	existing.IsActive = user.IsActive
	r.s.data.users[user.ID] = existing
	return nil
}

func (r *userRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	r.s.data.users[id] = u
	return nil
}

func (r *userRepo) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.data.users[id]; ok {
		u.LastLogin = &at
		r.s.data.users[id] = u
	}
	return nil
}

func (r *userRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	delete(r.s.data.users, id)
	for docID, d := range r.s.data.documents {
		if d.OwnerID == id {
			r.s.deleteDocument(docID)
		}
	}
	for k := range r.s.data.recipients {
		if k.userID == id {
			delete(r.s.data.recipients, k)
			delete(r.s.data.signatures, k)
		}
	}
	for nid, n := range r.s.data.notifications {
		if n.UserID == id {
			delete(r.s.data.notifications, nid)
		}
	}
	r.s.data.logs = slices.DeleteFunc(r.s.data.logs, func(l models.DocumentLog) bool { return l.UserID == id })
	for token, t := range r.s.data.resets {
		if t.UserID == id {
			delete(r.s.data.resets, token)
		}
	}
	return nil
}
