package postgres

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
)

const dialectPostgres = "postgres"

// rowScanner is implemented by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// builder returns a goqu builder for the postgres dialect
func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// toSQL renders a dataset as a parameterized statement
func toSQL(ds *goqu.SelectDataset) (string, []any, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns an ILIKE pattern matching s anywhere
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
