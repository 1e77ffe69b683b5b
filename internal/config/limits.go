package config

import "time"

const (
	// MaxDocumentTitleLength is the maximum length for document titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxDocumentTitleLength = 255

	// MaxFullNameLength is the maximum length for a user's display name.
	MaxFullNameLength = 255

	// MaxCommentLength is the maximum length for a document comment.
	MaxCommentLength = 5000

	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8

	// MinUserSearchLength is the minimum query length for the user search.
	// Shorter queries return the current recipients of the document (if any).
	MinUserSearchLength = 3

	// UserSearchLimit caps the number of users returned by a search.
	UserSearchLimit = 10

	// RecentItemsLimit caps dashboard lists (notifications, comments).
	RecentItemsLimit = 5

	// PasswordResetTTL is how long a password reset link stays valid.
	PasswordResetTTL = time.Hour

	// TempPasswordLength is the length of generated temporary passwords in exports.
	TempPasswordLength = 8

	// MaxUploadSize is the maximum size of an uploaded document file (50MB).
	MaxUploadSize = 50 << 20

	// MaxImportSize is the maximum size of an import file (10MB).
	MaxImportSize = 10 << 20

	// FileURLTTL is the lifetime of presigned download URLs.
	FileURLTTL = 15 * time.Minute
)
