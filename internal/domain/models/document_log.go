package models

import (
	"fmt"
	"time"
)

// LogAction is the kind of action recorded in the audit trail
type LogAction string

const (
	ActionCreate  LogAction = "create"
	ActionEdit    LogAction = "edit"
	ActionSign    LogAction = "sign"
	ActionComment LogAction = "comment"
)

// ParseLogAction validates an action name
func ParseLogAction(s string) (LogAction, error) {
	switch a := LogAction(s); a {
	case ActionCreate, ActionEdit, ActionSign, ActionComment:
		return a, nil
	}
	return "", fmt.Errorf("unknown log action %q", s)
}

// DocumentLog is an append-only audit entry. Rows are never updated.
type DocumentLog struct {
	ID            int64     `json:"id" db:"id"`
	DocumentID    int64     `json:"document_id" db:"document_id"`
	DocumentTitle string    `json:"document_title,omitempty"` // Joined, not stored
	UserID        int64     `json:"user_id" db:"user_id"`
	UserEmail     string    `json:"user_email,omitempty"`     // Joined, not stored
	UserFullName  string    `json:"user_full_name,omitempty"` // Joined, not stored
	Action        LogAction `json:"action" db:"action"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	Comment       string    `json:"comment" db:"comment"`
}

// LogFilter narrows an audit log listing. Zero values mean "no filter".
type LogFilter struct {
	DocumentID *int64
	UserID     *int64
	Action     LogAction
	From       *time.Time
	To         *time.Time
	Limit      int
}
