package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

func TestUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	newUser(t, users, "alice")

	t.Run("duplicate username", func(t *testing.T) {
		err := users.Create(ctx, &models.User{
			ID:       uuid.New(),
			Username: "Alice",
			Email:    "other@example.com",
		})
		require.ErrorIs(t, err, store.ErrUserExists)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := users.Create(ctx, &models.User{
			ID:       uuid.New(),
			Username: "other",
			Email:    "ALICE@example.com",
		})
		require.ErrorIs(t, err, store.ErrUserExists)
	})

	t.Run("lookups", func(t *testing.T) {
		byName, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)

		byEmail, err := users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, byName.ID, byEmail.ID)

		// Lookups match case-insensitively, same as the uniqueness rule.
		upper, err := users.GetByUsername(ctx, "ALICE")
		require.NoError(t, err)
		require.Equal(t, byName.ID, upper.ID)

		_, err = users.GetByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestUserStoreClonesOnRead(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	user := newUser(t, users, "alice")

	require.NoError(t, users.UpdateProfile(ctx, user.ID, store.ProfileUpdate{
		Age:       30,
		Interests: []string{"hiking"},
	}))

	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)

	// Mutating the returned copy must not affect the stored user.
	got.Interests[0] = "changed"
	again, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"hiking"}, again.Interests)
}

func TestUserStoreDiscover(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	matches := NewMatchStore(users)
	users.SetRatedLookup(matches.HasRated)

	addProfile := func(username, gender string, age int, lastActive time.Time, active bool) *models.User {
		t.Helper()
		user := &models.User{
			ID:         uuid.New(),
			Username:   username,
			Email:      username + "@example.com",
			Role:       models.RoleUser,
			Gender:     gender,
			Age:        age,
			IsActive:   active,
			LastActive: lastActive,
		}
		require.NoError(t, users.Create(ctx, user))
		return user
	}

	now := time.Now()
	viewer := addProfile("viewer", "female", 30, now, true)
	match1 := addProfile("match1", "female", 28, now, true)
	addProfile("match2", "male", 32, now, true)
	tooOld := addProfile("too_old", "female", 55, now, true)
	addProfile("dormant", "female", 29, now.AddDate(0, -2, 0), true)
	addProfile("deactivated", "female", 29, now, false)
	rated := addProfile("rated", "female", 27, now, true)

	_, err := matches.Like(ctx, viewer.ID, rated.ID)
	require.NoError(t, err)

	feed, err := users.Discover(ctx, models.DiscoverFilter{
		ViewerID: viewer.ID,
		Genders:  []string{"female"},
		AgeMin:   18,
		AgeMax:   40,
	})
	require.NoError(t, err)

	require.Len(t, feed, 1)
	require.Equal(t, match1.ID, feed[0].ID)
	require.NotEqual(t, tooOld.ID, feed[0].ID)
}

func TestUserStoreDiscoverLimit(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()

	now := time.Now()
	viewer := newUser(t, users, "viewer")
	for i := 0; i < 30; i++ {
		require.NoError(t, users.Create(ctx, &models.User{
			ID:         uuid.New(),
			Username:   "candidate" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Email:      uuid.NewString() + "@example.com",
			Gender:     "female",
			Age:        25,
			IsActive:   true,
			LastActive: now,
		}))
	}

	feed, err := users.Discover(ctx, models.DiscoverFilter{ViewerID: viewer.ID, AgeMin: 18, AgeMax: 40})
	require.NoError(t, err)
	require.Len(t, feed, 20)
}
