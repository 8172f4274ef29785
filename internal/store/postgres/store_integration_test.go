//go:build integration

package postgres

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	err = RunMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, users *UserStore, username string, interests []string) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$notarealhashnotarealhashnotarealhash",
		Role:         models.RoleUser,
		Gender:       "female",
		Age:          28,
		Interests:    interests,
		LookingFor:   []string{"male", "female"},
		AgeMin:       18,
		AgeMax:       100,
		MaxDistance:  50,
		IsActive:     true,
		LastActive:   time.Now(),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	err := users.Create(ctx, user)
	require.NoError(t, err)

	return user
}

func testToken(b byte) string {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = b
	}
	return hex.EncodeToString(buf)
}

func TestIntegration_UserLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)

	t.Run("create and fetch", func(t *testing.T) {
		user := createTestUser(t, ctx, users, "alice", []string{"hiking", "music"})

		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", got.Username)
		require.Equal(t, []string{"hiking", "music"}, got.Interests)

		byName, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, user.ID, byName.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		dup := createTestUser(t, ctx, users, "bob", nil)
		dup.ID = uuid.New()
		dup.Email = "other@example.com"

		err := users.Create(ctx, dup)
		require.ErrorIs(t, err, store.ErrUserExists)
	})

	t.Run("username and email are case-insensitive", func(t *testing.T) {
		user := createTestUser(t, ctx, users, "frank", nil)

		byName, err := users.GetByUsername(ctx, "FRANK")
		require.NoError(t, err)
		require.Equal(t, user.ID, byName.ID)

		byEmail, err := users.GetByEmail(ctx, "Frank@Example.com")
		require.NoError(t, err)
		require.Equal(t, user.ID, byEmail.ID)

		dup := &models.User{
			ID:           uuid.New(),
			Username:     "Frank",
			Email:        "someone-else@example.com",
			PasswordHash: "$2a$10$notarealhashnotarealhashnotarealhash",
			Role:         models.RoleUser,
			IsActive:     true,
			LastActive:   time.Now(),
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		require.ErrorIs(t, users.Create(ctx, dup), store.ErrUserExists)
	})

	t.Run("update profile", func(t *testing.T) {
		user := createTestUser(t, ctx, users, "carol", nil)

		err := users.UpdateProfile(ctx, user.ID, store.ProfileUpdate{
			Bio:       "hello",
			Gender:    "female",
			Age:       30,
			Location:  "Sydney",
			Interests: []string{"travel"},
		})
		require.NoError(t, err)

		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, "hello", got.Bio)
		require.Equal(t, 30, got.Age)
		require.Equal(t, []string{"travel"}, got.Interests)
	})
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)
	sessions := NewSessionStore(pool)

	user := createTestUser(t, ctx, users, "dave", nil)
	timeout := 30 * time.Minute

	newSession := func(token string) *models.Session {
		now := time.Now()
		return &models.Session{
			Token:        token,
			UserID:       user.ID,
			CSRFToken:    testToken(0xcc),
			CreatedAt:    now,
			LastActivity: now,
			ExpiresAt:    now.Add(24 * time.Hour),
			RotatedAt:    now,
		}
	}

	t.Run("create and get joins user attributes", func(t *testing.T) {
		token := testToken(0x01)
		require.NoError(t, sessions.Create(ctx, newSession(token)))

		got, err := sessions.Get(ctx, token, timeout)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.UserID)
		require.Equal(t, "dave", got.Username)
		require.Equal(t, models.RoleUser, got.Role)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := sessions.Get(ctx, testToken(0xff), timeout)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("rotate is atomic", func(t *testing.T) {
		oldToken := testToken(0x02)
		newToken := testToken(0x03)
		require.NoError(t, sessions.Create(ctx, newSession(oldToken)))

		require.NoError(t, sessions.Rotate(ctx, oldToken, newToken))

		// Second rotation from the stale token loses the race.
		err := sessions.Rotate(ctx, oldToken, testToken(0x04))
		require.ErrorIs(t, err, store.ErrRotationLost)

		got, err := sessions.Get(ctx, newToken, timeout)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.UserID)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		token := testToken(0x05)
		require.NoError(t, sessions.Create(ctx, newSession(token)))
		require.NoError(t, sessions.Delete(ctx, token))
		require.NoError(t, sessions.Delete(ctx, token))
	})

	t.Run("prune keeps most recent", func(t *testing.T) {
		_, err := sessions.DeleteByUser(ctx, user.ID)
		require.NoError(t, err)

		for i := range 5 {
			s := newSession(testToken(byte(0x10 + i)))
			s.LastActivity = time.Now().Add(time.Duration(i) * time.Minute)
			require.NoError(t, sessions.Create(ctx, s))
		}

		deleted, err := sessions.PruneUserSessions(ctx, user.ID, 3)
		require.NoError(t, err)
		require.Equal(t, 2, deleted)

		count, err := sessions.CountActive(ctx, user.ID, timeout)
		require.NoError(t, err)
		require.Equal(t, 3, count)

		// The two oldest are gone.
		_, err = sessions.Get(ctx, testToken(0x10), timeout)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
		_, err = sessions.Get(ctx, testToken(0x11), timeout)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}

func TestIntegration_Matching(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)
	matches := NewMatchStore(pool)

	alice := createTestUser(t, ctx, users, "alice", []string{"hiking", "music", "food"})
	bob := createTestUser(t, ctx, users, "bob", []string{"music", "food", "gaming"})

	t.Run("one-sided like is not mutual", func(t *testing.T) {
		result, err := matches.Like(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.False(t, result.Mutual)
		require.InDelta(t, 0.5, result.Score, 0.001) // 2 shared of 4 distinct
	})

	t.Run("duplicate rating rejected", func(t *testing.T) {
		_, err := matches.Like(ctx, alice.ID, bob.ID)
		require.ErrorIs(t, err, store.ErrAlreadyRated)
	})

	t.Run("reciprocal like promotes both rows", func(t *testing.T) {
		result, err := matches.Like(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.True(t, result.Mutual)

		forward, err := matches.Get(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.Equal(t, models.MatchStatusMatched, forward.Status)

		reverse, err := matches.Get(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.Equal(t, models.MatchStatusMatched, reverse.Status)

		list, err := matches.ListMatches(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "bob", list[0].User.Username)
	})

	t.Run("rated users excluded from discover", func(t *testing.T) {
		feed, err := users.Discover(ctx, models.DiscoverFilter{
			ViewerID: alice.ID,
			AgeMin:   18,
			AgeMax:   100,
		})
		require.NoError(t, err)
		for _, u := range feed {
			require.NotEqual(t, bob.ID, u.ID)
			require.NotEqual(t, alice.ID, u.ID)
		}
	})
}

func TestIntegration_Messaging(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)
	matches := NewMatchStore(pool)
	messages := NewMessageStore(pool)

	alice := createTestUser(t, ctx, users, "alice", nil)
	bob := createTestUser(t, ctx, users, "bob", nil)
	eve := createTestUser(t, ctx, users, "eve", nil)

	_, err := matches.Like(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = matches.Like(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	match, err := matches.Get(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	t.Run("send and list", func(t *testing.T) {
		_, err := messages.Send(ctx, match.ID, alice.ID, "hey bob")
		require.NoError(t, err)

		thread, err := messages.ListMessages(ctx, match.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, thread, 1)
		require.Equal(t, "hey bob", thread[0].Body)
		require.Equal(t, "alice", thread[0].SenderName)
		require.False(t, thread[0].IsRead)
	})

	t.Run("non-participant rejected", func(t *testing.T) {
		_, err := messages.Send(ctx, match.ID, eve.ID, "intruding")
		require.ErrorIs(t, err, store.ErrConversationNotFound)

		_, err = messages.ListMessages(ctx, match.ID, eve.ID)
		require.ErrorIs(t, err, store.ErrConversationNotFound)
	})

	t.Run("inbox and unread counts", func(t *testing.T) {
		conversations, err := messages.ListConversations(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, conversations, 1)
		require.Equal(t, "alice", conversations[0].PartnerName)
		require.Equal(t, 1, conversations[0].UnreadCount)

		marked, err := messages.MarkRead(ctx, match.ID, bob.ID)
		require.NoError(t, err)
		require.Equal(t, 1, marked)

		conversations, err = messages.ListConversations(ctx, bob.ID)
		require.NoError(t, err)
		require.Equal(t, 0, conversations[0].UnreadCount)
	})
}
