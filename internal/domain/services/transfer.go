package services

import (
	"context"
	"io"

	"edms/internal/domain/models"
)

// Entity selects what an export or import covers
type Entity string

const (
	EntityUsers     Entity = "users"
	EntityDocuments Entity = "documents"
)

// Format is a transfer file format
type Format string

const (
	FormatCSV Format = "csv"
	FormatSQL Format = "sql"
)

// TransferService exports and imports users and documents. Admin only.
type TransferService interface {
	// Export writes a consistent snapshot of the entity in the given format
	Export(ctx context.Context, actor *models.User, entity Entity, format Format, w io.Writer) error

	// DumpDatabase streams a full pg_dump of the database
	DumpDatabase(ctx context.Context, actor *models.User, w io.Writer) error

	// Import reads a file and upserts its rows. The format comes from the
	// file name. Row failures are reported in the result, not returned.
	Import(ctx context.Context, actor *models.User, entity Entity, filename string, r io.Reader) (*ImportResult, error)
}

// ImportResult contains the results of an import operation
type ImportResult struct {
	Summary ImportSummary `json:"summary"`
	Errors  []ImportError `json:"errors"`
}

// ImportSummary contains counts of import operations
type ImportSummary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	TotalRows int `json:"total_rows"`
}

// ImportError describes a row that failed to import
type ImportError struct {
	Line  int    `json:"line"`
	Key   string `json:"key"`
	Error string `json:"error"`
}
