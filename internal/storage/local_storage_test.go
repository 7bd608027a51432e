package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveAndGet(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	err = ls.Save(ctx, "abcdef123456", strings.NewReader("encrypted-bytes"), "application/octet-stream")
	require.NoError(t, err)

	reader, err := ls.Get(ctx, "abcdef123456")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "encrypted-bytes", string(data))
}

func TestLocalStorage_GetMissing(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = ls.Get(context.Background(), "no-such-key")
	require.ErrorIs(t, err, ErrBlobNotFound)
}

func TestLocalStorage_DeleteIdempotent(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	err = ls.Save(ctx, "deleteme", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	require.NoError(t, ls.Delete(ctx, "deleteme"))
	// Deleting again must not be an error.
	require.NoError(t, ls.Delete(ctx, "deleteme"))

	_, err = ls.Get(ctx, "deleteme")
	require.ErrorIs(t, err, ErrBlobNotFound)
}
