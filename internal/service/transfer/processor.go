package transfer

import (
	"io"
	"sync"

	"edms/internal/domain/services"
)

// Codec reads and writes one transfer file format
type Codec interface {
	Format() services.Format

	// CanProcess reports whether the codec handles the named file
	CanProcess(filename string) bool

	EncodeUsers(w io.Writer, users []UserRecord) error
	EncodeDocuments(w io.Writer, docs []DocumentRecord) error

	// DecodeUsers returns every row of the file. Rows that fail to decode
	// carry Err; only a file that cannot be read at all is an error.
	DecodeUsers(r io.Reader) ([]UserRecord, error)
	DecodeDocuments(r io.Reader) ([]DocumentRecord, error)
}

// Registry routes files to codecs, first match wins.
// Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs []Codec
}

// NewRegistry returns a registry with the CSV and SQL codecs
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(CSVCodec{})
	r.Register(SQLCodec{})
	return r
}

func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs = append(r.codecs, c)
}

// ForFile returns the codec for filename, or nil
func (r *Registry) ForFile(filename string) Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.codecs {
		if c.CanProcess(filename) {
			return c
		}
	}
	return nil
}

// ForFormat returns the codec writing format, or nil
func (r *Registry) ForFormat(format services.Format) Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.codecs {
		if c.Format() == format {
			return c
		}
	}
	return nil
}
