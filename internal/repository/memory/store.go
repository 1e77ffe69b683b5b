// Package memory is an in-memory implementation of the repository
// interfaces. It mirrors the constraints of the postgres schema (unique
// emails, cascading deletes, signatures bound to recipients) and backs the
// service tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
)

type recipientKey struct {
	documentID int64
	userID     int64
}

type state struct {
	users         map[int64]models.User
	documents     map[int64]models.Document
	recipients    map[recipientKey]struct{}
	signatures    map[recipientKey]models.Signature
	notifications map[int64]models.Notification
	logs          []models.DocumentLog
	resets        map[string]models.PasswordResetToken

	nextUser, nextDocument, nextSignature, nextNotification, nextLog int64
}

func (s *state) clone() *state {
	c := *s
	c.users = maps.Clone(s.users)
	c.documents = maps.Clone(s.documents)
	c.recipients = maps.Clone(s.recipients)
	c.signatures = maps.Clone(s.signatures)
	c.notifications = maps.Clone(s.notifications)
	c.logs = append([]models.DocumentLog(nil), s.logs...)
	c.resets = maps.Clone(s.resets)
	return &c
}

// Store holds all data. Transactions are serialized and roll back by
// restoring a copy of the state taken at begin.
type Store struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	data  *state
	fails map[string]error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		data: &state{
			users:         map[int64]models.User{},
			documents:     map[int64]models.Document{},
			recipients:    map[recipientKey]struct{}{},
			signatures:    map[recipientKey]models.Signature{},
			notifications: map[int64]models.Notification{},
			resets:        map[string]models.PasswordResetToken{},
		},
		fails: map[string]error{},
	}
}

// FailNext makes the next call of the named operation (for example
// "DocumentLog.Append") return err
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[op] = err
}

// injected returns and clears a pending failure. Caller holds mu.
func (s *Store) injected(op string) error {
	if err, ok := s.fails[op]; ok {
		delete(s.fails, op)
		return err
	}
	return nil
}

func (s *Store) Users() repositories.UserRepository                 { return &userRepo{s} }
func (s *Store) Documents() repositories.DocumentRepository         { return &documentRepo{s} }
func (s *Store) Signatures() repositories.SignatureRepository       { return &signatureRepo{s} }
func (s *Store) Notifications() repositories.NotificationRepository { return &notificationRepo{s} }
func (s *Store) DocumentLogs() repositories.DocumentLogRepository   { return &logRepo{s} }
func (s *Store) PasswordResets() repositories.PasswordResetRepository {
	return &resetRepo{s}
}

// TransactionManager returns a transaction manager bound to the store
func (s *Store) TransactionManager() repositories.TransactionManager {
	return &txManager{s}
}

type txKey struct{}

type txManager struct {
	s *Store
}

func (m *txManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.Lock()
	snapshot := m.s.data.clone()
	m.s.mu.Unlock()

	txCtx, runHooks := repositories.WithCommitHooks(context.WithValue(ctx, txKey{}, true))
	if err := fn(txCtx); err != nil {
		m.s.mu.Lock()
		m.s.data = snapshot
		m.s.mu.Unlock()
		return err
	}
	runHooks()
	return nil
}

func (m *txManager) ExecSnapshot(ctx context.Context, fn repositories.TxFn) error {
	return m.ExecTx(ctx, fn)
}
