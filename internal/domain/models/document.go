package models

import (
	"fmt"
	"strings"
	"time"
)

// DocumentStatus is the derived lifecycle state of a document
type DocumentStatus string

const (
	StatusDraft  DocumentStatus = "draft"
	StatusSent   DocumentStatus = "sent"
	StatusSigned DocumentStatus = "signed"
)

var legacyStatusLabels = map[string]DocumentStatus{
	"черновик":  StatusDraft,
	"отправлен": StatusSent,
	"подписан":  StatusSigned,
}

// ParseDocumentStatus parses a status name or a legacy label.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch DocumentStatus(key) {
	case StatusDraft, StatusSent, StatusSigned:
		return DocumentStatus(key), nil
	}
	if st, ok := legacyStatusLabels[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown document status %q", s)
}

// Document is a file routed to recipients for signature.
// Status is derived from the signature set and never set directly by callers.
type Document struct {
	ID        int64          `json:"id" db:"id"`
	Title     string         `json:"title" db:"title"`
	FileKey   string         `json:"file_key" db:"file_key"`
	OwnerID   int64          `json:"owner_id" db:"owner_id"`
	Status    DocumentStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// DocumentDetail is a document with everything the document page needs
type DocumentDetail struct {
	Document
	Owner      UserSummary   `json:"owner"`
	Recipients []UserSummary `json:"recipients"`
	Signatures []Signature   `json:"signatures"`
	Comments   []DocumentLog `json:"comments"`
	CanEdit    bool          `json:"can_edit"`
	CanSign    bool          `json:"can_sign"`
	CanComment bool          `json:"can_comment"`
}

// DocumentListItem is a row of a document listing
type DocumentListItem struct {
	Document
	OwnerEmail string        `json:"owner_email"`
	Recipients []UserSummary `json:"recipients"`
}

// DocumentFilter narrows a document listing.
// OwnerID and RecipientID scope the listing; the rest are user filters.
type DocumentFilter struct {
	OwnerID       *int64
	RecipientID   *int64
	Title         string
	Status        DocumentStatus
	RecipientName string
}
