package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/liftlog/internal/persistence"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Read(ctx)
	require.ErrorIs(t, err, persistence.ErrNoDocument)

	require.NoError(t, store.Write(ctx, []byte(`{"v":1}`)))
	require.NoError(t, store.Write(ctx, []byte(`{"v":2}`)))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, string(got))
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "liftlog.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, []byte(`{"v":1}`)))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(got))
}
