package storage

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		filename string
		pattern  string
	}{
		{"contract.pdf", `^documents/2024/03/01/[0-9a-f-]{36}\.pdf$`},
		{"Scan.PDF", `^documents/2024/03/01/[0-9a-f-]{36}\.pdf$`},
		{`C:\Users\bob\report.docx`, `^documents/2024/03/01/[0-9a-f-]{36}\.docx$`},
		{"noext", `^documents/2024/03/01/[0-9a-f-]{36}$`},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			key := GenerateKey(tt.filename, now)
			assert.Regexp(t, regexp.MustCompile(tt.pattern), key)
		})
	}

	assert.NotEqual(t, GenerateKey("a.pdf", now), GenerateKey("a.pdf", now))
}

func TestNew_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := New(context.Background(), Config{Type: "none"}, logger)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "a.pdf", "application/pdf", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = store.PresignedURL(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNew_UnknownType(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(context.Background(), Config{Type: "ftp"}, logger)
	assert.Error(t, err)
}
