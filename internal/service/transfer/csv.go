package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"edms/internal/domain/services"
)

var (
	userColumns     = []string{"ID", "Email", "Full Name", "Role", "Date Joined", "Temp Password"}
	documentColumns = []string{"ID", "Title", "Status", "Owner", "Recipients", "Created At"}
)

// CSVCodec reads and writes comma separated files with a header row.
// Columns are matched by header name, case-insensitively.
type CSVCodec struct{}

func (CSVCodec) Format() services.Format { return services.FormatCSV }

func (CSVCodec) CanProcess(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

func (CSVCodec) EncodeUsers(w io.Writer, users []UserRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(userColumns); err != nil {
		return err
	}
	for _, u := range users {
		err := cw.Write([]string{
			strconv.FormatInt(u.ID, 10),
			u.Email,
			u.FullName,
			u.Role,
			formatTime(u.DateJoined),
			u.TempPassword,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (CSVCodec) EncodeDocuments(w io.Writer, docs []DocumentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(documentColumns); err != nil {
		return err
	}
	for _, d := range docs {
		err := cw.Write([]string{
			strconv.FormatInt(d.ID, 10),
			d.Title,
			d.Status,
			d.Owner.Email,
			joinEmails(d.Recipients),
			formatTime(d.CreatedAt),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvRow gives access to the fields of one row by column name
type csvRow struct {
	fields []string
	index  map[string]int
}

func (r csvRow) get(column string) string {
	i, ok := r.index[strings.ToLower(column)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r csvRow) id() (int64, error) {
	raw := r.get("ID")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// readCSV calls fn for every data row. Rows that cannot be parsed are
// passed with a nil row and the parse error.
func readCSV(r io.Reader, required []string, fn func(line int, row *csvRow, err error)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				fn(pe.StartLine, nil, pe.Err)
				continue
			}
			return err
		}

		line, _ := cr.FieldPos(0)
		if len(fields) != len(header) {
			fn(line, nil, fmt.Errorf("expected %d fields, got %d", len(header), len(fields)))
			continue
		}
		fn(line, &csvRow{fields: fields, index: index}, nil)
	}
}

func (CSVCodec) DecodeUsers(r io.Reader) ([]UserRecord, error) {
	users := []UserRecord{}
	err := readCSV(r, []string{"Email"}, func(line int, row *csvRow, err error) {
		rec := UserRecord{Line: line, Err: err}
		if row != nil {
			rec.Email = row.get("Email")
			rec.FullName = row.get("Full Name")
			rec.Role = row.get("Role")
			rec.TempPassword = row.get("Temp Password")
			if rec.ID, err = row.id(); err == nil {
				rec.DateJoined, err = parseTime(row.get("Date Joined"))
			}
			rec.Err = err
		}
		users = append(users, rec)
	})
	return users, err
}

func (CSVCodec) DecodeDocuments(r io.Reader) ([]DocumentRecord, error) {
	docs := []DocumentRecord{}
	err := readCSV(r, []string{"Title", "Owner"}, func(line int, row *csvRow, err error) {
		rec := DocumentRecord{Line: line, Err: err}
		if row != nil {
			rec.Title = row.get("Title")
			rec.Status = row.get("Status")
			rec.Owner = UserRef{Email: row.get("Owner")}
			recipients := row.get("Recipients")
			if recipients == "" {
				recipients = row.get("Recipient")
			}
			rec.Recipients = splitEmails(recipients)
			if rec.ID, err = row.id(); err == nil {
				rec.CreatedAt, err = parseTime(row.get("Created At"))
			}
			rec.Err = err
		}
		docs = append(docs, rec)
	})
	return docs, err
}
