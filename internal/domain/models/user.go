package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role uint8

const (
	roleInvalid Role = iota
	RoleAdmin
	RoleStaff
)

// legacyRoleLabels maps localized labels found in older exports
var legacyRoleLabels = map[string]Role{
	"администратор": RoleAdmin,
	"сотрудник":     RoleStaff,
}

// ParseRole parses a role name ("admin", "staff") or a legacy label.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "admin":
		return RoleAdmin, nil
	case "staff":
		return RoleStaff, nil
	}
	if r, ok := legacyRoleLabels[key]; ok {
		return r, nil
	}
	return roleInvalid, fmt.Errorf("unknown role %q", s)
}

// String returns the stored name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStaff:
		return "staff"
	default:
		return "invalid"
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler (JSON uses it).
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(data []byte) error {
	parsed, err := ParseRole(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is an account of the system. Users are both document owners and
// recipients; admins can see and manage everything.
type User struct {
	ID                 int64      `json:"id" db:"id"`
	Email              string     `json:"email" db:"email"`
	FullName           string     `json:"full_name" db:"full_name"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	Role               Role       `json:"role" db:"role"`
	EmailNotifications bool       `json:"email_notifications" db:"email_notifications"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	DateJoined         time.Time  `json:"date_joined" db:"date_joined"`
	LastLogin          *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return false
	default:
		return false
	}
}

// UserSummary is the public view of a user embedded in other resources
type UserSummary struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Selected bool   `json:"selected,omitempty"`
}

// Summary returns the public view of the user
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, FullName: u.FullName}
}
