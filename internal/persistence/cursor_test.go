package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/liftlog/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{Date: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC), ID: "abc|def"}
	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.Date.Equal(out.Date))
	require.Equal(t, in.ID, out.ID)

	none, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, none)
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm9waXBl", "eHx5"} {
		_, err := DecodeCursor(token)
		require.ErrorIs(t, err, domain.ErrValidation, token)
	}
}
