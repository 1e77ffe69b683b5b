package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrDumpUnavailable is returned when the pg_dump binary cannot be found
var ErrDumpUnavailable = errors.New("pg_dump is not available")

// Dumper writes a full database dump
type Dumper interface {
	Dump(ctx context.Context, w io.Writer) error
}

// PgDumper runs pg_dump against the configured database
type PgDumper struct {
	path        string
	databaseURL string
	logger      *slog.Logger
}

// NewPgDumper creates a dumper. An empty path looks pg_dump up in PATH.
func NewPgDumper(path, databaseURL string, logger *slog.Logger) *PgDumper {
	if path == "" {
		path = "pg_dump"
	}
	return &PgDumper{path: path, databaseURL: databaseURL, logger: logger}
}

func (d *PgDumper) args() []string {
	return []string{
		"--dbname=" + d.databaseURL,
		"--format=plain",
		"--no-owner",
		"--no-privileges",
	}
}

// Dump streams plain SQL to w. Output already written when pg_dump fails
// is not retracted.
func (d *PgDumper) Dump(ctx context.Context, w io.Writer) error {
	bin, err := exec.LookPath(d.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDumpUnavailable, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, d.args()...)
	cmd.Stdout = w
	cmd.Stderr = &stderr

	logger := d.logger.With("binary", bin)
	logger.Info("database dump started")
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		logger.Error("database dump failed", "error", err, "stderr", msg)
		return fmt.Errorf("pg_dump: %w: %s", err, msg)
	}
	logger.Info("database dump finished")
	return nil
}
