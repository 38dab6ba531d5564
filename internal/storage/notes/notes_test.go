package notes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadDelete(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	text, err := s.Load("D")
	require.NoError(t, err)
	require.Empty(t, text)

	require.NoError(t, s.Save("D", "watching this whale"))
	text, err = s.Load("D")
	require.NoError(t, err)
	require.Equal(t, "watching this whale", text)

	require.NoError(t, s.Delete("D"))
	require.NoError(t, s.Delete("D"))
	text, err = s.Load("D")
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestFilenameSanitized(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save("my/board: #1!", "hello"))
	_, err = os.Stat(filepath.Join(dir, "myboard 1.txt"))
	require.NoError(t, err)
}

func TestFilenameFallback(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save("///", "hello"))
	_, err = os.Stat(filepath.Join(dir, "note.txt"))
	require.NoError(t, err)
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "plain", sanitize("plain"))
	require.Equal(t, "a_b-c 1", sanitize("a_b-c 1"))
	require.Equal(t, "ab", sanitize("a:/b"))
	require.Equal(t, "note", sanitize("@#$%"))
	require.Equal(t, "note", sanitize(""))
}
