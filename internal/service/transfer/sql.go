package transfer

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"edms/internal/domain/services"
)

// Table names used in SQL transfer files. They do not depend on the
// deployment table prefix. The legacy names are accepted on import.
const (
	sqlUsers      = "users"
	sqlDocuments  = "documents"
	sqlRecipients = "document_recipients"
)

var legacyTables = map[string]string{
	"users_user":    sqlUsers,
	"docs_document": sqlDocuments,
}

var insertPattern = regexp.MustCompile(`(?is)^INSERT\s+INTO\s+([\w."]+)\s*\(([^)]*)\)\s*VALUES\s*\((.*)\)$`)

// SQLCodec reads and writes scripts of single-row INSERT statements.
// Other statements in a script (a pg_dump preamble, for instance) are
// ignored on import.
type SQLCodec struct{}

func (SQLCodec) Format() services.Format { return services.FormatSQL }

func (SQLCodec) CanProcess(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".sql")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (SQLCodec) EncodeUsers(w io.Writer, users []UserRecord) error {
	bw := bufio.NewWriter(w)
	for _, u := range users {
		fmt.Fprintf(bw, "INSERT INTO %s (id, email, full_name, role, date_joined, temp_password) VALUES (%d, %s, %s, %s, %s, %s);\n",
			sqlUsers, u.ID, quote(u.Email), quote(u.FullName), quote(u.Role), quote(formatTime(u.DateJoined)), quote(u.TempPassword))
	}
	return bw.Flush()
}

func (SQLCodec) EncodeDocuments(w io.Writer, docs []DocumentRecord) error {
	bw := bufio.NewWriter(w)
	for _, d := range docs {
		fmt.Fprintf(bw, "INSERT INTO %s (id, title, status, owner_email, created_at) VALUES (%d, %s, %s, %s, %s);\n",
			sqlDocuments, d.ID, quote(d.Title), quote(d.Status), quote(d.Owner.Email), quote(formatTime(d.CreatedAt)))
		for _, r := range d.Recipients {
			fmt.Fprintf(bw, "INSERT INTO %s (document_id, user_email) VALUES (%d, %s);\n",
				sqlRecipients, d.ID, quote(r.Email))
		}
	}
	return bw.Flush()
}

// statement is one SQL statement and the line it starts on
type statement struct {
	line int
	text string
}

// splitStatements splits a script on semicolons outside string literals
// and drops -- comments
func splitStatements(src string) []statement {
	var (
		stmts   []statement
		buf     strings.Builder
		line    = 1
		start   = 0
		inQuote bool
	)
	flush := func() {
		if text := strings.TrimSpace(buf.String()); text != "" {
			stmts = append(stmts, statement{line: start, text: text})
		}
		buf.Reset()
		start = 0
	}

	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case inQuote:
			buf.WriteRune(c)
			if c == '\'' {
				// '' is an escaped quote
				if i+1 < len(runes) && runes[i+1] == '\'' {
					buf.WriteRune(runes[i+1])
					i++
				} else {
					inQuote = false
				}
			}
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			i--
			continue
		case c == ';':
			flush()
			continue
		default:
			if c == '\'' {
				inQuote = true
			}
			if start == 0 && c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				start = line
			}
			buf.WriteRune(c)
		}
		if c == '\n' {
			line++
		}
	}
	flush()
	return stmts
}

// sqlValue is a literal from a VALUES list
type sqlValue struct {
	text string
	null bool
}

// splitValues parses a comma separated list of literals
func splitValues(s string) ([]sqlValue, error) {
	var (
		values []sqlValue
		buf    strings.Builder
		quoted bool
		inStr  bool
	)
	emit := func() error {
		content := buf.String()
		buf.Reset()
		if quoted {
			values = append(values, sqlValue{text: content})
			quoted = false
			return nil
		}
		switch raw := strings.TrimSpace(content); {
		case strings.EqualFold(raw, "NULL"):
			values = append(values, sqlValue{null: true})
		case raw == "":
			return fmt.Errorf("empty value at position %d", len(values)+1)
		default:
			values = append(values, sqlValue{text: raw})
		}
		return nil
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if inStr {
			if c == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					buf.WriteRune('\'')
					i++
					continue
				}
				inStr = false
				continue
			}
			buf.WriteRune(c)
			continue
		}
		switch {
		case c == '\'':
			if quoted || strings.TrimSpace(buf.String()) != "" {
				return nil, fmt.Errorf("unexpected quote at position %d", i+1)
			}
			buf.Reset()
			quoted = true
			inStr = true
		case c == ',':
			if err := emit(); err != nil {
				return nil, err
			}
		case quoted:
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				return nil, fmt.Errorf("unexpected %q after string at position %d", c, i+1)
			}
		default:
			buf.WriteRune(c)
		}
	}
	if inStr {
		return nil, fmt.Errorf("unterminated string")
	}
	if err := emit(); err != nil {
		return nil, err
	}
	return values, nil
}

// insertRow is a parsed single-row INSERT
type insertRow struct {
	line   int
	table  string
	values map[string]sqlValue
}

func (r *insertRow) get(column string) string {
	return strings.TrimSpace(r.values[column].text)
}

func (r *insertRow) has(column string) bool {
	v, ok := r.values[column]
	return ok && !v.null
}

func (r *insertRow) int(column string) (int64, error) {
	if !r.has(column) {
		return 0, nil
	}
	n, err := strconv.ParseInt(r.get(column), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", column, r.get(column))
	}
	return n, nil
}

// parseInsert parses a statement. ok is false for statements that are not
// INSERTs; err is set for INSERTs that are malformed.
func parseInsert(st statement) (row *insertRow, ok bool, err error) {
	if !strings.HasPrefix(strings.ToUpper(st.text), "INSERT") {
		return nil, false, nil
	}
	m := insertPattern.FindStringSubmatch(st.text)
	if m == nil {
		return nil, true, fmt.Errorf("malformed INSERT statement")
	}

	table := strings.ToLower(strings.ReplaceAll(m[1], `"`, ""))
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	if canonical, legacy := legacyTables[table]; legacy {
		table = canonical
	}

	var columns []string
	for _, col := range strings.Split(m[2], ",") {
		columns = append(columns, strings.ToLower(strings.Trim(strings.TrimSpace(col), `"`)))
	}
	values, err := splitValues(m[3])
	if err != nil {
		return &insertRow{line: st.line, table: table}, true, err
	}
	if len(values) != len(columns) {
		return &insertRow{line: st.line, table: table}, true, fmt.Errorf("%d columns but %d values", len(columns), len(values))
	}

	row = &insertRow{line: st.line, table: table, values: make(map[string]sqlValue, len(columns))}
	for i, col := range columns {
		row.values[col] = values[i]
	}
	return row, true, nil
}

// readInserts parses every INSERT into one of tables. Malformed INSERTs
// whose table cannot be told are reported too.
func readInserts(r io.Reader, tables ...string) ([]*insertRow, []statementError, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read script: %w", err)
	}

	var rows []*insertRow
	var bad []statementError
	for _, st := range splitStatements(string(src)) {
		row, ok, err := parseInsert(st)
		if !ok {
			continue
		}
		if err != nil {
			if row == nil || slices.Contains(tables, row.table) {
				bad = append(bad, statementError{line: st.line, err: err})
			}
			continue
		}
		if slices.Contains(tables, row.table) {
			rows = append(rows, row)
		}
	}
	return rows, bad, nil
}

type statementError struct {
	line int
	err  error
}

func (SQLCodec) DecodeUsers(r io.Reader) ([]UserRecord, error) {
	rows, bad, err := readInserts(r, sqlUsers)
	if err != nil {
		return nil, err
	}

	users := []UserRecord{}
	for _, b := range bad {
		users = append(users, UserRecord{Line: b.line, Err: b.err})
	}
	for _, row := range rows {
		rec := UserRecord{
			Line:     row.line,
			Email:    row.get("email"),
			FullName: row.get("full_name"),
			Role:     row.get("role"),
		}
		rec.TempPassword = row.get("temp_password")
		if rec.TempPassword == "" {
			rec.TempPassword = row.get("password")
		}
		if rec.ID, rec.Err = row.int("id"); rec.Err == nil {
			rec.DateJoined, rec.Err = parseTime(row.get("date_joined"))
		}
		users = append(users, rec)
	}
	sortByLine(users, func(u UserRecord) int { return u.Line })
	return users, nil
}

func (SQLCodec) DecodeDocuments(r io.Reader) ([]DocumentRecord, error) {
	rows, bad, err := readInserts(r, sqlDocuments, sqlRecipients)
	if err != nil {
		return nil, err
	}

	docs := []DocumentRecord{}
	for _, b := range bad {
		docs = append(docs, DocumentRecord{Line: b.line, Err: b.err})
	}

	byID := map[int64]int{}
	var links []*insertRow
	for _, row := range rows {
		if row.table == sqlRecipients {
			links = append(links, row)
			continue
		}
		rec := DocumentRecord{
			Line:   row.line,
			Title:  row.get("title"),
			Status: row.get("status"),
			Owner:  UserRef{Email: row.get("owner_email")},
		}
		rec.ID, rec.Err = row.int("id")
		if rec.Err == nil {
			rec.CreatedAt, rec.Err = parseTime(row.get("created_at"))
		}
		if rec.Err == nil && rec.Owner.Email == "" {
			rec.Owner.ID, rec.Err = row.int("owner_id")
		}
		if rec.Err == nil && row.has("recipient_id") {
			var id int64
			if id, rec.Err = row.int("recipient_id"); id != 0 {
				rec.Recipients = append(rec.Recipients, UserRef{ID: id})
			}
		}
		if rec.Err == nil && rec.ID != 0 {
			byID[rec.ID] = len(docs)
		}
		docs = append(docs, rec)
	}

	for _, link := range links {
		docID, err := link.int("document_id")
		ref := UserRef{Email: link.get("user_email")}
		if err == nil && ref.Email == "" {
			ref.ID, err = link.int("user_id")
		}
		if err == nil && ref.IsZero() {
			err = fmt.Errorf("recipient without user")
		}
		i, known := byID[docID]
		if err == nil && !known {
			err = fmt.Errorf("recipient of unknown document %d", docID)
		}
		if err != nil {
			docs = append(docs, DocumentRecord{Line: link.line, ID: docID, Err: err})
			continue
		}
		docs[i].Recipients = append(docs[i].Recipients, ref)
	}

	sortByLine(docs, func(d DocumentRecord) int { return d.Line })
	return docs, nil
}
