package database

import (
	"context"
	"testing"
	"time"

	"skarbiec/internal/auth"
	"skarbiec/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func createSessionForUser(t *testing.T, userID string) *models.Session {
	t.Helper()

	token, err := auth.GenerateToken(32)
	require.NoError(t, err)

	arg := CreateSessionParams{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	err = testStore.CreateSession(context.Background(), arg)
	require.NoError(t, err)

	session, err := testStore.GetSessionByTokenHash(context.Background(), arg.TokenHash)
	require.NoError(t, err)
	require.NotNil(t, session)

	return session
}

func TestCreateAndGetSession(t *testing.T) {
	user := createRandomUser(t)
	session := createSessionForUser(t, user.ID)

	require.Equal(t, user.ID, session.UserID)
	require.True(t, session.ExpiresAt.After(time.Now()))

	missing, err := testStore.GetSessionByTokenHash(context.Background(), auth.HashToken("no-such-token"))
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestDeleteSessionByTokenHash(t *testing.T) {
	user := createRandomUser(t)
	session := createSessionForUser(t, user.ID)

	err := testStore.DeleteSessionByTokenHash(context.Background(), session.TokenHash)
	require.NoError(t, err)

	gone, err := testStore.GetSessionByTokenHash(context.Background(), session.TokenHash)
	require.NoError(t, err)
	require.Nil(t, gone)

	// Deleting again is a no-op, not an error.
	err = testStore.DeleteSessionByTokenHash(context.Background(), session.TokenHash)
	require.NoError(t, err)
}

func TestDeleteSessionsForUser(t *testing.T) {
	user := createRandomUser(t)
	first := createSessionForUser(t, user.ID)
	second := createSessionForUser(t, user.ID)

	err := testStore.DeleteSessionsForUser(context.Background(), user.ID)
	require.NoError(t, err)

	for _, hash := range []string{first.TokenHash, second.TokenHash} {
		gone, err := testStore.GetSessionByTokenHash(context.Background(), hash)
		require.NoError(t, err)
		require.Nil(t, gone)
	}
}
