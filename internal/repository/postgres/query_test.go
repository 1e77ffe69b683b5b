package postgres

import (
	"context"
	"strings"
	"testing"

	"edms/internal/domain/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "%alice%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\tmp`, `%c:\\tmp%`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := containsPattern(tt.in); got != tt.want {
				t.Errorf("containsPattern(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDocumentFilterQuery(t *testing.T) {
	repo := &PostgresDocumentRepository{tables: NewTableNames("test_")}
	owner := int64(7)

	ds := builder().From("test_documents")
	ds = repo.applyFilter(ds, models.DocumentFilter{
		OwnerID: &owner,
		Title:   "contract",
		Status:  models.StatusSent,
	})

	query, args, err := toSQL(ds)
	require.NoError(t, err)

	assert.Contains(t, query, `"d"."owner_id" = $1`)
	assert.Contains(t, query, `"d"."title" ILIKE $2`)
	assert.Contains(t, query, `"d"."status" = $3`)
	assert.Equal(t, []any{int64(7), "%contract%", "sent"}, args)
}

func TestDocumentFilterQuery_RecipientScopes(t *testing.T) {
	repo := &PostgresDocumentRepository{tables: NewTableNames("dev_")}
	recipient := int64(3)

	ds := builder().From("dev_documents")
	ds = repo.applyFilter(ds, models.DocumentFilter{
		RecipientID:   &recipient,
		RecipientName: "bob",
	})

	query, args, err := toSQL(ds)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM dev_document_recipients r WHERE r.document_id = d.id AND r.user_id = $1")
	assert.Contains(t, query, "JOIN dev_users ru ON ru.id = r.user_id")
	assert.Equal(t, []any{int64(3), "%bob%", "%bob%"}, args)
}

func TestDocumentFilterQuery_Empty(t *testing.T) {
	repo := &PostgresDocumentRepository{tables: NewTableNames("")}

	query, args, err := toSQL(repo.applyFilter(builder().From("documents"), models.DocumentFilter{}))
	require.NoError(t, err)

	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

// recordingDB records statements passed to Exec
type recordingDB struct {
	statements []string
}

func (db *recordingDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	db.statements = append(db.statements, sql)
	return pgconn.CommandTag{}, nil
}

func (db *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (db *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestRunSchema_UsesPrefix(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, RunSchema(context.Background(), db, NewTableNames("test_")))

	all := strings.Join(db.statements, "\n")
	for _, table := range NewTableNames("test_").All() {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, all, "test_reject_log_update")
	assert.Contains(t, all, "REFERENCES test_document_recipients(document_id, user_id) ON DELETE CASCADE")
}

func TestDropSchema_ReverseOrder(t *testing.T) {
	db := &recordingDB{}
	tables := NewTableNames("dev_")
	require.NoError(t, DropSchema(context.Background(), db, tables))

	require.Len(t, db.statements, len(tables.All())+1)
	assert.Equal(t, "DROP TABLE IF EXISTS dev_password_reset_tokens CASCADE", db.statements[0])
	assert.Equal(t, "DROP TABLE IF EXISTS dev_users CASCADE", db.statements[len(tables.All())-1])
}

func TestClearData(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, ClearData(context.Background(), db, NewTableNames("")))

	require.Len(t, db.statements, 1)
	assert.True(t, strings.HasPrefix(db.statements[0], "TRUNCATE TABLE users, documents, "))
	assert.True(t, strings.HasSuffix(db.statements[0], "RESTART IDENTITY CASCADE"))
}
