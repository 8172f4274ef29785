package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

func TestMatchStoreLike(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	matches := NewMatchStore(users)

	alice := newUser(t, users, "alice")
	bob := newUser(t, users, "bob")

	t.Run("one-sided like", func(t *testing.T) {
		result, err := matches.Like(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.False(t, result.Mutual)

		match, err := matches.Get(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.Equal(t, models.MatchStatusLiked, match.Status)
	})

	t.Run("duplicate rating", func(t *testing.T) {
		_, err := matches.Like(ctx, alice.ID, bob.ID)
		require.ErrorIs(t, err, store.ErrAlreadyRated)
		_, err = matches.Pass(ctx, alice.ID, bob.ID)
		require.ErrorIs(t, err, store.ErrAlreadyRated)
	})

	t.Run("mutual like promotes both rows", func(t *testing.T) {
		result, err := matches.Like(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.True(t, result.Mutual)

		forward, err := matches.Get(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.Equal(t, models.MatchStatusMatched, forward.Status)

		reverse, err := matches.Get(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.Equal(t, models.MatchStatusMatched, reverse.Status)
	})

	t.Run("both sides see the match", func(t *testing.T) {
		for _, user := range []*models.User{alice, bob} {
			list, err := matches.ListMatches(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, list, 1)
		}
	})
}

func TestMatchStorePassNeverMatches(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	matches := NewMatchStore(users)

	alice := newUser(t, users, "alice")
	bob := newUser(t, users, "bob")

	_, err := matches.Like(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	result, err := matches.Pass(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, result.Mutual)

	match, err := matches.Get(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusLiked, match.Status)
}
