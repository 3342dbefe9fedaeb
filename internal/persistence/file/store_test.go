package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/liftlog/internal/persistence"
)

func TestReadMissingDocument(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "liftlog.json"))
	require.NoError(t, err)

	_, err = store.Read(context.Background())
	require.ErrorIs(t, err, persistence.ErrNoDocument)
}

func TestWriteReplacesDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "liftlog.json")
	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, []byte(`{"v":1}`)))
	require.NoError(t, store.Write(ctx, []byte(`{"v":2}`)))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no staging files should remain")
}

func TestInterruptedWriteKeepsPreviousDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "liftlog.json")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, []byte(`{"v":1}`)))

	// Stage a newer document but never commit it, as if the process died
	// between the write and the rename.
	staged, err := store.stage([]byte(`{"v":2`))
	require.NoError(t, err)
	require.FileExists(t, staged)

	reopened, err := Open(path)
	require.NoError(t, err)
	got, err := reopened.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(got))
	require.NoFileExists(t, staged)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
