package models

import "time"

// Signature records whether a recipient has signed a document.
// Exactly one exists per (document, recipient) pair.
type Signature struct {
	ID         int64      `json:"id" db:"id"`
	DocumentID int64      `json:"document_id" db:"document_id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	SignedAt   *time.Time `json:"signed_at" db:"signed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsSigned reports whether the recipient has signed
func (s *Signature) IsSigned() bool {
	return s.SignedAt != nil
}
