package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreUsedCodesConfig(t *testing.T) {
	t.Run("missing GCP project ID", func(t *testing.T) {
		_, err := NewFirestoreUsedCodes(context.Background(), "", "(default)", "codes")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "projectID is required")
	})
}

func TestCodeDocIDHidesCode(t *testing.T) {
	id := codeDocID("ABC123")
	assert.Len(t, id, 64)
	assert.NotContains(t, id, "ABC123")
	assert.Equal(t, id, codeDocID("ABC123"))
	assert.NotEqual(t, id, codeDocID("ABC124"))
}

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreUsedCodesEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	store, err := NewFirestoreUsedCodes(ctx, "songify-test", "", "used_codes_"+time.Now().Format("150405.000000"))
	require.NoError(t, err)
	defer store.Close()

	ok, err := store.MarkIfUnused(ctx, "ABC123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkIfUnused(ctx, "ABC123", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	used, err := store.IsUsed(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, used)

	require.NoError(t, store.Remove(ctx, "ABC123"))
	used, err = store.IsUsed(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, store.MarkUsed(ctx, "expired", -time.Second))
	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)
}
