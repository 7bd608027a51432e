package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"skarbiec/internal/auth"
	"skarbiec/internal/models"

	"github.com/stretchr/testify/require"
)

func createVaultFile(t *testing.T, userID string, maxDownloads int, expiresAt time.Time) *models.VaultFile {
	t.Helper()

	id, err := auth.GenerateID()
	require.NoError(t, err)
	blobKey, err := auth.GenerateToken(20)
	require.NoError(t, err)
	iv, err := auth.GenerateToken(12)
	require.NoError(t, err)

	file, err := testStore.CreateVaultFile(context.Background(), CreateVaultFileParams{
		ID:           id,
		UserID:       userID,
		BlobKey:      blobKey,
		OriginalName: "report.pdf",
		FileSize:     2048,
		MimeType:     "application/pdf",
		MaxDownloads: maxDownloads,
		IV:           iv,
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)
	require.NotNil(t, file)

	return file
}

func TestCreateAndGetVaultFile(t *testing.T) {
	user := createRandomUser(t)
	file := createVaultFile(t, user.ID, 3, time.Now().Add(time.Hour))

	found, err := testStore.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, file.BlobKey, found.BlobKey)
	require.Equal(t, 0, found.DownloadCount)
	require.Equal(t, 3, found.MaxDownloads)

	missing, err := testStore.GetVaultFileByID(context.Background(), "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListFilesForUser(t *testing.T) {
	user := createRandomUser(t)
	older := createVaultFile(t, user.ID, 0, time.Now().Add(time.Hour))
	newer := createVaultFile(t, user.ID, 1, time.Now().Add(time.Hour))

	files, err := testStore.ListFilesForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)

	// Newest first.
	require.Equal(t, newer.ID, files[0].ID)
	require.Equal(t, older.ID, files[1].ID)

	other := createRandomUser(t)
	none, err := testStore.ListFilesForUser(context.Background(), other.ID)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestConsumeDownloadCountsUpToLimit(t *testing.T) {
	user := createRandomUser(t)
	file := createVaultFile(t, user.ID, 2, time.Now().Add(time.Hour))

	for i := 0; i < 2; i++ {
		ok, err := testStore.ConsumeDownload(context.Background(), file.ID, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := testStore.ConsumeDownload(context.Background(), file.ID, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	found, err := testStore.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, 2, found.DownloadCount)
	require.True(t, found.LimitReached())
}

func TestConsumeDownloadConcurrentSingleSlot(t *testing.T) {
	user := createRandomUser(t)
	file := createVaultFile(t, user.ID, 1, time.Now().Add(time.Hour))

	const attempts = 8
	var wg sync.WaitGroup
	type outcome struct {
		ok  bool
		err error
	}
	results := make(chan outcome, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := testStore.ConsumeDownload(context.Background(), file.ID, time.Now())
			results <- outcome{ok: ok, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var admitted int
	for res := range results {
		require.NoError(t, res.err)
		if res.ok {
			admitted++
		}
	}
	require.Equal(t, 1, admitted)

	found, err := testStore.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, 1, found.DownloadCount)
}

func TestConsumeDownloadUnlimited(t *testing.T) {
	user := createRandomUser(t)
	file := createVaultFile(t, user.ID, 0, time.Now().Add(time.Hour))

	for i := 0; i < 10; i++ {
		ok, err := testStore.ConsumeDownload(context.Background(), file.ID, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestConsumeDownloadExpired(t *testing.T) {
	user := createRandomUser(t)
	file := createVaultFile(t, user.ID, 0, time.Now().Add(-time.Minute))

	ok, err := testStore.ConsumeDownload(context.Background(), file.ID, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	found, err := testStore.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, 0, found.DownloadCount)
}

func TestListExpiredFiles(t *testing.T) {
	user := createRandomUser(t)
	expired := createVaultFile(t, user.ID, 0, time.Now().Add(-time.Hour))
	live := createVaultFile(t, user.ID, 0, time.Now().Add(time.Hour))

	files, err := testStore.ListExpiredFiles(context.Background(), time.Now())
	require.NoError(t, err)

	ids := make(map[string]bool, len(files))
	for _, f := range files {
		ids[f.ID] = true
	}
	require.True(t, ids[expired.ID])
	require.False(t, ids[live.ID])
}

func TestDeleteVaultFile(t *testing.T) {
	user := createRandomUser(t)
	file := createVaultFile(t, user.ID, 0, time.Now().Add(time.Hour))

	err := testStore.DeleteVaultFile(context.Background(), file.ID)
	require.NoError(t, err)

	gone, err := testStore.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	// Idempotent.
	err = testStore.DeleteVaultFile(context.Background(), file.ID)
	require.NoError(t, err)
}

func TestUploadLogWindowCounting(t *testing.T) {
	user := createRandomUser(t)
	requestID, _ := createPendingRequest(t, user.ID)
	deviceID, _ := approveRequest(t, requestID)

	now := time.Now()
	for _, offset := range []time.Duration{-90 * time.Minute, -30 * time.Minute, -5 * time.Minute} {
		err := testStore.RecordUpload(context.Background(), deviceID, now.Add(offset))
		require.NoError(t, err)
	}

	count, err := testStore.CountUploadsSince(context.Background(), deviceID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	purged, err := testStore.PurgeUploadLog(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.GreaterOrEqual(t, purged, int64(1))

	count, err = testStore.CountUploadsSince(context.Background(), deviceID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestWhitelist(t *testing.T) {
	allowed, err := testStore.GetAllowedExtensions(context.Background())
	require.NoError(t, err)
	require.True(t, allowed[".pdf"])
	require.True(t, allowed[".jpg"])
	require.False(t, allowed[".exe"])

	err = testStore.SetExtensionActive(context.Background(), ".PDF", false)
	require.NoError(t, err)

	allowed, err = testStore.GetAllowedExtensions(context.Background())
	require.NoError(t, err)
	require.False(t, allowed[".pdf"])

	err = testStore.SetExtensionActive(context.Background(), ".pdf", true)
	require.NoError(t, err)
}
