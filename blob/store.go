// Package blob stores the original files behind uploaded datasets.
//
// The dataset store keeps the object name in Dataset.FilePath; the object
// itself lives in a Store. Backends: a local directory (LocalStore), memory
// (MemoryStore) and object storage in the blob/minio and blob/s3 packages.
package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for names that are empty or contain path separators.
var ErrInvalidName = errors.New("invalid blob name")

// Store keeps uploaded files by name.
// Implementations MUST be goroutine-safe.
type Store interface {
	// Put writes the blob, replacing any previous content.
	// size is the content length, or -1 when unknown.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Open opens a blob for reading. Caller MUST close the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// ObjectName returns a unique object name for an uploaded file:
// a random UUID, an underscore and the sanitized file name.
func ObjectName(filename string) string {
	return uuid.NewString() + "_" + SecureFilename(filename)
}

// SecureFilename reduces a client supplied file name to a safe flat name.
// Non-ASCII letters are folded to ASCII where possible, path separators and
// whitespace become underscores, and any other character outside
// [A-Za-z0-9._-] is dropped. Leading and trailing dots and underscores are
// trimmed. The result may be empty.
func SecureFilename(filename string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range norm.NFKD.String(filename) {
		switch {
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case r < unicode.MaxASCII && (r == '.' || r == '-' || r == '_' || isAlnum(r)):
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}
	return strings.Trim(b.String(), "._")
}

func isAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}
