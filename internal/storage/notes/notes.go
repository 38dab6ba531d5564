// Package notes stores one free-text note per dashboard as a plain text file.
// Notes are an independent collaborator of the metrics model: they share the
// dashboard name and its delete cascade, nothing else.
package notes

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// fallbackName is used when sanitizing strips a dashboard name to nothing.
const fallbackName = "note"

// Store persists dashboard notes under a directory.
type Store struct {
	dir string
}

// NewStore creates the notes directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create notes dir")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, sanitize(name)+".txt")
}

// Load returns the note for a dashboard, empty when none was saved yet.
func (s *Store) Load(name string) (string, error) {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "read note file")
	}
	return string(raw), nil
}

// Save writes the note, replacing any previous content.
func (s *Store) Save(name, text string) error {
	if err := os.WriteFile(s.path(name), []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "write note file")
	}
	return nil
}

// Delete removes the note file. Deleting an absent note is a no-op.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove note file")
	}
	return nil
}

// sanitize derives a filesystem-safe file name from a dashboard name: letters,
// digits, spaces, underscores and hyphens survive, everything else is dropped.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return fallbackName
	}
	return out
}
