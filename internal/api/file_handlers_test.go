package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"skarbiec/internal/auth"
	"skarbiec/internal/database"
	"skarbiec/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, filename, content string, maxDownloads, expiresInHours int) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	require.NoError(t, writer.WriteField("max_downloads", fmt.Sprint(maxDownloads)))
	require.NoError(t, writer.WriteField("expires_in_hours", fmt.Sprint(expiresInHours)))
	require.NoError(t, writer.WriteField("iv", "dGVzdC1pdi12YWx1ZQ=="))
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func uploadAs(t *testing.T, dc *models.DeviceContext, filename, content string, maxDownloads, expiresInHours int) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartUpload(t, filename, content, maxDownloads, expiresInHours)
	req := httptest.NewRequest("POST", "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = withDevice(req, dc)
	rr := httptest.NewRecorder()

	http.HandlerFunc(testServer.UploadFileHandler).ServeHTTP(rr, req)
	return rr
}

func deviceContextFor(t *testing.T, unlimited bool) *models.DeviceContext {
	t.Helper()

	user, _ := createTestUser(t, false)
	if unlimited {
		_, err := testServer.store.SetUnlimitedUpload(context.Background(), user.ID, true)
		require.NoError(t, err)
	}
	deviceID, _ := createTestDevice(t, user.ID)

	return &models.DeviceContext{
		DeviceID:        deviceID,
		UserID:          user.ID,
		DeviceName:      "API Test Device",
		UnlimitedUpload: unlimited,
	}
}

func TestUploadFileHandler(t *testing.T) {
	dc := deviceContextFor(t, false)

	rr := uploadAs(t, dc, "notes.txt", "encrypted-bytes-here", 3, 24)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.FileID)
	require.Equal(t, 9, resp.Remaining)

	file, err := testServer.store.GetVaultFileByID(context.Background(), resp.FileID)
	require.NoError(t, err)
	require.NotNil(t, file)
	require.Equal(t, "notes.txt", file.OriginalName)
	require.Equal(t, 3, file.MaxDownloads)
	require.Equal(t, 0, file.DownloadCount)

	// The payload landed in the blob store under its own key.
	reader, err := testServer.blobs.Get(context.Background(), file.BlobKey)
	require.NoError(t, err)
	reader.Close()
}

func TestUploadFileHandlerValidation(t *testing.T) {
	dc := deviceContextFor(t, false)

	cases := []struct {
		name           string
		filename       string
		maxDownloads   int
		expiresInHours int
	}{
		{"bad download limit", "notes.txt", 2, 24},
		{"bad expiration", "notes.txt", 3, 48},
		{"disallowed extension", "setup.exe", 3, 24},
		{"no extension", "README", 3, 24},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := uploadAs(t, dc, tc.filename, "payload", tc.maxDownloads, tc.expiresInHours)

			require.Equal(t, http.StatusBadRequest, rr.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.Equal(t, CodeInvalidFile, resp.Error.Code)
		})
	}
}

// zeroReader yields an endless stream of zero bytes so oversize upload
// bodies can be built without allocating them twice.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestUploadFileHandlerOversizeBody(t *testing.T) {
	dc := deviceContextFor(t, false)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "huge.txt")
	require.NoError(t, err)
	_, err = io.CopyN(part, zeroReader{}, MaxFileSize+1)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("max_downloads", "0"))
	require.NoError(t, writer.WriteField("expires_in_hours", "1"))
	require.NoError(t, writer.WriteField("iv", "dGVzdC1pdi12YWx1ZQ=="))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = withDevice(req, dc)
	rr := httptest.NewRecorder()

	http.HandlerFunc(testServer.UploadFileHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, CodeInvalidFile, resp.Error.Code)

	files, err := testServer.store.ListFilesForUser(context.Background(), dc.UserID)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestUploadFileHandlerRateLimit(t *testing.T) {
	dc := deviceContextFor(t, false)

	// Burn the whole window straight in the log.
	now := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, testServer.store.RecordUpload(context.Background(), dc.DeviceID, now))
	}

	rr := uploadAs(t, dc, "one-too-many.txt", "payload", 0, 1)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, CodeRateLimited, resp.Error.Code)
}

func TestUploadFileHandlerUnlimitedBypassesLimit(t *testing.T) {
	dc := deviceContextFor(t, true)

	now := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, testServer.store.RecordUpload(context.Background(), dc.DeviceID, now))
	}

	rr := uploadAs(t, dc, "still-fine.txt", "payload", 0, 1)

	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestListFilesHandler(t *testing.T) {
	user, token := createTestUser(t, false)
	file := createVaultFileRow(t, user.ID, 3, time.Now().Add(time.Hour), "listable.txt")

	req := httptest.NewRequest("GET", "/api/v1/files", nil)
	req = withSession(req, user, token)
	rr := httptest.NewRecorder()

	http.HandlerFunc(testServer.ListFilesHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp FileListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	require.Equal(t, file.ID, resp.Files[0].ID)

	// The listing never leaks the blob key.
	require.NotContains(t, rr.Body.String(), file.BlobKey)
}

// createVaultFileRow plants a file row and its blob directly, bypassing the
// upload path, so download tests control expiry and limits exactly.
func createVaultFileRow(t *testing.T, userID string, maxDownloads int, expiresAt time.Time, name string) *models.VaultFile {
	t.Helper()

	id, err := auth.GenerateID()
	require.NoError(t, err)
	blobKey, err := auth.GenerateToken(20)
	require.NoError(t, err)

	content := "ciphertext-of-" + name
	err = testServer.blobs.Save(context.Background(), blobKey, strings.NewReader(content), "text/plain")
	require.NoError(t, err)

	file, err := testServer.store.CreateVaultFile(context.Background(), database.CreateVaultFileParams{
		ID:           id,
		UserID:       userID,
		BlobKey:      blobKey,
		OriginalName: name,
		FileSize:     int64(len(content)),
		MimeType:     "text/plain",
		MaxDownloads: maxDownloads,
		IV:           "dGVzdC1pdg==",
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)

	return file
}

func downloadRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Get("/api/v1/download/{fileId}", testServer.ProbeFileHandler)
	router.Post("/api/v1/download/{fileId}", testServer.FetchFileHandler)
	router.Get("/api/v1/download/{fileId}/raw", testServer.FetchFileRawHandler)
	return router
}

func TestProbeFileHandler(t *testing.T) {
	user, _ := createTestUser(t, false)
	file := createVaultFileRow(t, user.ID, 0, time.Now().Add(time.Hour), "probe-me.txt")

	req := httptest.NewRequest("GET", "/api/v1/download/"+file.ID, nil)
	rr := httptest.NewRecorder()

	downloadRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "probe-me.txt", resp.Data.OriginalName)
	require.NotEmpty(t, resp.Data.IV)

	// Probing spends nothing.
	current, err := testServer.store.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, 0, current.DownloadCount)
}

func TestProbeFileHandlerUnknownID(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/download/ffffffffffffffffffffffffffffffff", nil)
	rr := httptest.NewRecorder()

	downloadRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestFetchFileHandler(t *testing.T) {
	user, _ := createTestUser(t, false)
	file := createVaultFileRow(t, user.ID, 0, time.Now().Add(time.Hour), "fetch-me.txt")

	req := httptest.NewRequest("POST", "/api/v1/download/"+file.ID, nil)
	rr := httptest.NewRecorder()

	downloadRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	var resp FetchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	decoded, err := base64.StdEncoding.DecodeString(resp.Data.EncryptedData)
	require.NoError(t, err)
	require.Equal(t, "ciphertext-of-fetch-me.txt", string(decoded))
	require.Equal(t, "fetch-me.txt", resp.Data.OriginalName)

	current, err := testServer.store.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.DownloadCount)
}

func TestFetchFileRawHandler(t *testing.T) {
	user, _ := createTestUser(t, false)
	file := createVaultFileRow(t, user.ID, 0, time.Now().Add(time.Hour), "raw.txt")

	req := httptest.NewRequest("GET", "/api/v1/download/"+file.ID+"/raw", nil)
	rr := httptest.NewRecorder()

	downloadRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ciphertext-of-raw.txt", rr.Body.String())
	require.Contains(t, rr.Header().Get("Content-Disposition"), `attachment; filename="raw.txt"`)
	require.Equal(t, file.IV, rr.Header().Get("X-Encryption-IV"))

	current, err := testServer.store.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.DownloadCount)
}

func TestFetchFileHandlerSingleUse(t *testing.T) {
	user, _ := createTestUser(t, false)
	file := createVaultFileRow(t, user.ID, 1, time.Now().Add(time.Hour), "once.txt")

	// First fetch takes the only slot.
	req := httptest.NewRequest("POST", "/api/v1/download/"+file.ID, nil)
	rr := httptest.NewRecorder()
	downloadRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// Second fetch is turned away, and so is the probe.
	req = httptest.NewRequest("POST", "/api/v1/download/"+file.ID, nil)
	rr = httptest.NewRecorder()
	downloadRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusGone, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, CodeLimitExceeded, resp.Error.Code)

	req = httptest.NewRequest("GET", "/api/v1/download/"+file.ID, nil)
	rr = httptest.NewRecorder()
	downloadRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusGone, rr.Code)

	// The count never passes the limit.
	current, err := testServer.store.GetVaultFileByID(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.DownloadCount)
}

func TestFetchFileHandlerExpired(t *testing.T) {
	user, _ := createTestUser(t, false)
	file := createVaultFileRow(t, user.ID, 0, time.Now().Add(-time.Minute), "stale.txt")

	req := httptest.NewRequest("POST", "/api/v1/download/"+file.ID, nil)
	rr := httptest.NewRecorder()

	downloadRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusGone, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, CodeExpired, resp.Error.Code)
}
