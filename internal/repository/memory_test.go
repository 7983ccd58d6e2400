package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	now := time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SaveAndGetSession", func(t *testing.T) {
		session := sampleSession("abc")
		require.NoError(t, repo.SaveSession(ctx, session))

		got, err := repo.GetSession(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "abc", got.ID)
		assert.Equal(t, "9:00 AM", got.Selection.Time)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("CopiesOnSave", func(t *testing.T) {
		session := sampleSession("copy")
		require.NoError(t, repo.SaveSession(ctx, session))
		session.Selection.Time = "changed"

		got, err := repo.GetSession(ctx, "copy")
		require.NoError(t, err)
		assert.Equal(t, "9:00 AM", got.Selection.Time)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, sampleSession("old")))
		now = now.Add(2 * time.Hour)

		got, err := repo.GetSession(ctx, "old")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Zero(t, repo.Len())
	})

	t.Run("DeleteSession", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, sampleSession("gone")))
		require.NoError(t, repo.DeleteSession(ctx, "gone"))
		got, _ := repo.GetSession(ctx, "gone")
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "chat:456"
		allowed, _ := repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
	})
}
