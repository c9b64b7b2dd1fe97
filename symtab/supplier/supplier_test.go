package supplier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("FUNC 1000 10 foo\n"), 0o644))
}

func TestFindSymbolFileStoreLayout(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "app.exe", "ABCD1234", "app.sym")
	writeFile(t, want)

	s, err := New(log.NewNopLogger(), root, Options{})
	require.NoError(t, err)

	got, err := s.FindSymbolFile("app.exe", "ABCD1234")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFindSymbolFileFlatFallback(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "libfoo.sym")
	writeFile(t, want)

	s, err := New(log.NewNopLogger(), root, Options{})
	require.NoError(t, err)

	// No debug id at all, and a debug id with no store entry, both fall
	// back to the flat layout.
	got, err := s.FindSymbolFile("libfoo.so", "")
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = s.FindSymbolFile("libfoo.so", "FFFF")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFindSymbolFileGzip(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "app", "1D", "app.sym.gz")
	writeFile(t, want)

	s, err := New(log.NewNopLogger(), root, Options{})
	require.NoError(t, err)

	got, err := s.FindSymbolFile("app", "1D")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFindSymbolFileNotFound(t *testing.T) {
	s, err := New(log.NewNopLogger(), t.TempDir(), Options{})
	require.NoError(t, err)

	_, err = s.FindSymbolFile("missing", "1234")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNegativeLookupIsCached(t *testing.T) {
	root := t.TempDir()
	s, err := New(log.NewNopLogger(), root, Options{})
	require.NoError(t, err)

	_, err = s.FindSymbolFile("app", "1234")
	require.ErrorIs(t, err, ErrNotFound)

	// The file appearing later does not help: the miss was cached. A crash
	// is symbolized against one consistent view of the store.
	writeFile(t, filepath.Join(root, "app", "1234", "app.sym"))
	_, err = s.FindSymbolFile("app", "1234")
	require.ErrorIs(t, err, ErrNotFound)

	// A different debug id is a different key and sees the store fresh.
	writeFile(t, filepath.Join(root, "app", "5678", "app.sym"))
	got, err := s.FindSymbolFile("app", "5678")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "app", "5678", "app.sym"), got)
}
