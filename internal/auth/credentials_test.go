package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_Deterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	hash1 := HashPassword("mySecretPassword123", salt)
	hash2 := HashPassword("mySecretPassword123", salt)

	require.NotEmpty(t, hash1)
	require.Len(t, hash1, 64, "hash should be 32 bytes hex-encoded")
	require.Equal(t, hash1, hash2, "same password and salt must produce the same hash")
}

func TestHashPassword_DifferentSaltOrPassword(t *testing.T) {
	salt1, err := GenerateSalt()
	require.NoError(t, err)
	salt2, err := GenerateSalt()
	require.NoError(t, err)

	require.NotEqual(t, HashPassword("password", salt1), HashPassword("password", salt2))
	require.NotEqual(t, HashPassword("password", salt1), HashPassword("Password", salt1))
}

func TestVerifyPassword(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	hash := HashPassword("mySecretPassword123", salt)

	require.True(t, VerifyPassword("mySecretPassword123", salt, hash))
	require.False(t, VerifyPassword("wrongPassword", salt, hash))
	require.False(t, VerifyPassword("mySecretPassword123", "wrongsalt", hash))
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	require.Len(t, token, 64)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEqual(t, token, other)

	// Non-positive sizes fall back to the default token length.
	fallback, err := GenerateToken(0)
	require.NoError(t, err)
	require.Len(t, fallback, 64)
}

func TestHashToken(t *testing.T) {
	hash := HashToken("some-token")

	require.Len(t, hash, 64)
	require.Equal(t, hash, HashToken("some-token"))
	require.NotEqual(t, hash, HashToken("some-other-token"))
}

func TestDeviceFingerprint(t *testing.T) {
	fp := DeviceFingerprint("Mozilla/5.0", `"Chromium";v="118"`)

	require.Len(t, fp, 64)
	require.Equal(t, fp, DeviceFingerprint("Mozilla/5.0", `"Chromium";v="118"`))
	require.NotEqual(t, fp, DeviceFingerprint("Mozilla/5.0", ""))
}

func TestParseUserAgent(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
	require.Equal(t, "Chrome on Windows", ParseUserAgent(ua))

	require.Equal(t, "Unknown Browser on Unknown OS", ParseUserAgent("curl/8.0.1"))
}
