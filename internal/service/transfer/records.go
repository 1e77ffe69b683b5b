package transfer

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Timestamp layouts of transfer files. Exports write the first; imports
// accept any of them.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayouts[0])
}

// UserRecord is one user row of a transfer file. Email is the natural key.
type UserRecord struct {
	Line         int
	ID           int64
	Email        string
	FullName     string
	Role         string
	DateJoined   time.Time
	TempPassword string

	// Err is set when the row could not be decoded
	Err error
}

// UserRef points at a user by email or, in legacy files, by id
type UserRef struct {
	ID    int64
	Email string
}

func (r UserRef) String() string {
	if r.Email != "" {
		return r.Email
	}
	return fmt.Sprintf("user #%d", r.ID)
}

func (r UserRef) IsZero() bool {
	return r.ID == 0 && r.Email == ""
}

// DocumentRecord is one document row of a transfer file. ID is the
// natural key; a zero ID always creates a new document.
type DocumentRecord struct {
	Line       int
	ID         int64
	Title      string
	Status     string
	Owner      UserRef
	Recipients []UserRef
	CreatedAt  time.Time

	Err error
}

// Key identifies the row in an import report
func (r *DocumentRecord) Key() string {
	if r.ID != 0 {
		return fmt.Sprint(r.ID)
	}
	return r.Title
}

func splitEmails(s string) []UserRef {
	refs := []UserRef{}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		if email := strings.TrimSpace(part); email != "" {
			refs = append(refs, UserRef{Email: email})
		}
	}
	return refs
}

func joinEmails(refs []UserRef) string {
	emails := make([]string, 0, len(refs))
	for _, r := range refs {
		emails = append(emails, r.Email)
	}
	return strings.Join(emails, ";")
}

func sortByLine[T any](items []T, line func(T) int) {
	slices.SortStableFunc(items, func(a, b T) int { return cmp.Compare(line(a), line(b)) })
}
