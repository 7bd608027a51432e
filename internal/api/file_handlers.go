package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"

	"skarbiec/internal/auth"
	"skarbiec/internal/database"
	"skarbiec/internal/models"
	"skarbiec/internal/websocket"
)

const blobKeyLength = 40

type UploadResponse struct {
	Success   bool   `json:"success"`
	FileID    string `json:"file_id"`
	Remaining int    `json:"remaining"`
}

// @Summary      Upload an encrypted file
// @Description  Accepts a client-side encrypted payload from a trusted device, subject to the sliding-window upload quota. The IV travels as opaque metadata; the server never sees plaintext or keys.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        X-Device-Token   header    string  true   "Device token"
// @Param        file             formData  file    true   "Encrypted payload"
// @Param        max_downloads    formData  int     true   "0 (unlimited), 1, 3 or 5"
// @Param        expires_in_hours formData  int     true   "1, 6, 24 or 168"
// @Param        iv               formData  string  true   "Encryption IV (opaque)"
// @Success      201  {object}  UploadResponse
// @Failure      400  {object}  ErrorResponse "INVALID_FILE"
// @Failure      401  {object}  ErrorResponse "DEVICE_TOKEN_REQUIRED, INVALID_DEVICE_TOKEN"
// @Failure      429  {object}  ErrorResponse "RATE_LIMITED"
// @Router       /files/upload [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	device := GetDeviceFromContext(r.Context())
	if device == nil {
		writeError(w, http.StatusUnauthorized, CodeDeviceTokenRequired, "Device token required")
		return
	}

	// Cut oversize uploads off at the transport instead of buffering
	// the whole body before the size check.
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+maxFormOverhead)

	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, CodeInvalidFile,
				fmt.Sprintf("file size exceeds %dMB limit", MaxFileSize/1048576))
			return
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid form data")
		return
	}
	defer file.Close()

	maxDownloads, err := strconv.Atoi(r.FormValue("max_downloads"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid form data")
		return
	}
	expiresInHours, err := strconv.Atoi(r.FormValue("expires_in_hours"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid form data")
		return
	}
	iv := r.FormValue("iv")
	if iv == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid form data")
		return
	}

	if err := validateDownloadLimit(maxDownloads); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidFile, err.Error())
		return
	}
	if err := validateExpiration(expiresInHours); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidFile, err.Error())
		return
	}
	if err := validateFileSize(header.Size); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidFile, err.Error())
		return
	}

	allowed, err := s.store.GetAllowedExtensions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to load file type whitelist")
		return
	}
	if err := validateFileExtension(header.Filename, allowed); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidFile, err.Error())
		return
	}

	decision, err := s.limiter.Check(r.Context(), device.DeviceID, device.UnlimitedUpload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to check rate limit")
		return
	}
	if !decision.Allowed {
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Upload rate limit exceeded. Please try again later.")
		return
	}

	fileID, err := auth.GenerateID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to store file")
		return
	}

	// The blob key is an unguessable random identifier, distinct from the
	// public file id, so possession of a share link never reveals the
	// object key.
	generateKey, err := nanoid.Standard(blobKeyLength)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to store file")
		return
	}
	blobKey := generateKey()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if err := s.blobs.Save(r.Context(), blobKey, file, mimeType); err != nil {
		log.Printf("ERROR: failed to write blob %s: %v", blobKey, err)
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to store file")
		return
	}

	created, err := s.store.CreateVaultFile(r.Context(), database.CreateVaultFileParams{
		ID:           fileID,
		UserID:       device.UserID,
		BlobKey:      blobKey,
		OriginalName: header.Filename,
		FileSize:     header.Size,
		MimeType:     mimeType,
		MaxDownloads: maxDownloads,
		IV:           iv,
		ExpiresAt:    time.Now().Add(time.Duration(expiresInHours) * time.Hour),
	})
	if err != nil {
		// The blob write already succeeded; without the metadata row the
		// sweep can never find it. Compensate best-effort and scream if
		// that fails too, because the object is then leaked for good.
		if delErr := s.blobs.Delete(r.Context(), blobKey); delErr != nil {
			log.Printf("ERROR: orphaned blob %s: metadata insert failed (%v) and blob delete failed (%v)", blobKey, err, delErr)
		} else {
			log.Printf("ERROR: metadata insert failed for blob %s, blob reclaimed: %v", blobKey, err)
		}
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to store file")
		return
	}

	// Quota accounting is best-effort relative to the upload itself.
	if err := s.limiter.Record(r.Context(), device.DeviceID); err != nil {
		log.Printf("WARN: failed to record upload for device %s: %v", device.DeviceID, err)
	}

	s.wsHub.Notify(websocket.EventFileUploaded, map[string]interface{}{
		"file_id":   created.ID,
		"file_name": created.OriginalName,
		"file_size": created.FileSize,
		"device_id": device.DeviceID,
	})

	remaining := decision.Remaining
	if remaining > 0 {
		remaining--
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Success:   true,
		FileID:    created.ID,
		Remaining: remaining,
	})
}

type FileMetadata struct {
	ID            string    `json:"id"`
	OriginalName  string    `json:"original_name"`
	FileSize      int64     `json:"file_size"`
	MimeType      string    `json:"mime_type"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  int       `json:"max_downloads"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type FileListResponse struct {
	Files []FileMetadata `json:"files"`
}

// @Summary      List own files
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  FileListResponse
// @Router       /files [get]
func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	sc := GetSessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing authorization token")
		return
	}

	files, err := s.store.ListFilesForUser(r.Context(), sc.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to list files")
		return
	}

	out := make([]FileMetadata, 0, len(files))
	for _, f := range files {
		out = append(out, FileMetadata{
			ID:            f.ID,
			OriginalName:  f.OriginalName,
			FileSize:      f.FileSize,
			MimeType:      f.MimeType,
			DownloadCount: f.DownloadCount,
			MaxDownloads:  f.MaxDownloads,
			ExpiresAt:     f.ExpiresAt,
			CreatedAt:     f.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, FileListResponse{Files: out})
}

type ProbeResponse struct {
	Success bool      `json:"success"`
	Data    ProbeData `json:"data"`
}

type ProbeData struct {
	OriginalName string `json:"originalName"`
	FileSize     int64  `json:"fileSize"`
	MimeType     string `json:"mimeType"`
	IV           string `json:"iv"`
}

// loadLiveFile applies the shared not-found/expired/limit gate and writes
// the error response itself when the file is not servable.
func (s *Server) loadLiveFile(w http.ResponseWriter, r *http.Request) *models.VaultFile {
	fileID := chi.URLParam(r, "fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid file ID")
		return nil
	}

	file, err := s.store.GetVaultFileByID(r.Context(), fileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to look up file")
		return nil
	}
	if file == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "File not found or already deleted")
		return nil
	}
	if file.Expired(time.Now()) {
		writeError(w, http.StatusGone, CodeExpired, "File has expired")
		return nil
	}
	if file.LimitReached() {
		writeError(w, http.StatusGone, CodeLimitExceeded, "Download limit exceeded")
		return nil
	}

	return file
}

// @Summary      Probe a shared file
// @Description  Pre-download metadata check for a public share link. Touches neither the blob store nor the download counter.
// @Tags         download
// @Produce      json
// @Param        fileId  path      string  true  "File ID"
// @Success      200     {object}  ProbeResponse
// @Failure      404     {object}  ErrorResponse "NOT_FOUND"
// @Failure      410     {object}  ErrorResponse "EXPIRED, LIMIT_EXCEEDED"
// @Router       /download/{fileId} [get]
func (s *Server) ProbeFileHandler(w http.ResponseWriter, r *http.Request) {
	file := s.loadLiveFile(w, r)
	if file == nil {
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{
		Success: true,
		Data: ProbeData{
			OriginalName: file.OriginalName,
			FileSize:     file.FileSize,
			MimeType:     file.MimeType,
			IV:           file.IV,
		},
	})
}

type FetchResponse struct {
	Success bool      `json:"success"`
	Data    FetchData `json:"data"`
}

type FetchData struct {
	EncryptedData string `json:"encryptedData"`
	OriginalName  string `json:"originalName"`
	MimeType      string `json:"mimeType"`
	IV            string `json:"iv"`
	FileSize      int64  `json:"fileSize"`
}

// consumeDownload retrieves the blob and spends one download atomically.
// The conditional update is the admission decision: two concurrent fetches
// at the limit boundary race on it, and exactly one wins.
func (s *Server) consumeDownload(w http.ResponseWriter, r *http.Request, file *models.VaultFile) []byte {
	reader, err := s.blobs.Get(r.Context(), file.BlobKey)
	if err != nil {
		// Metadata without a blob is the known consistency gap between the
		// two stores; surface it as not-found but leave a trace.
		log.Printf("ERROR: blob %s missing for file %s: %v", file.BlobKey, file.ID, err)
		writeError(w, http.StatusNotFound, CodeNotFound, "File not found in storage")
		return nil
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to read file")
		return nil
	}

	admitted, err := s.store.ConsumeDownload(r.Context(), file.ID, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to record download")
		return nil
	}
	if !admitted {
		// Lost the race: the file expired or another download took the
		// last slot between our check and the update.
		current, err := s.store.GetVaultFileByID(r.Context(), file.ID)
		switch {
		case err == nil && current == nil:
			writeError(w, http.StatusNotFound, CodeNotFound, "File not found or already deleted")
		case err == nil && current.Expired(time.Now()):
			writeError(w, http.StatusGone, CodeExpired, "File has expired")
		default:
			writeError(w, http.StatusGone, CodeLimitExceeded, "Download limit exceeded")
		}
		return nil
	}

	return data
}

// @Summary      Fetch a shared file (JSON encoding)
// @Description  Returns the encrypted payload base64-encoded in a JSON envelope and spends one download. The raw-bytes variant lives at /download/{fileId}/raw.
// @Tags         download
// @Produce      json
// @Param        fileId  path      string  true  "File ID"
// @Success      200     {object}  FetchResponse
// @Failure      404     {object}  ErrorResponse "NOT_FOUND"
// @Failure      410     {object}  ErrorResponse "EXPIRED, LIMIT_EXCEEDED"
// @Router       /download/{fileId} [post]
func (s *Server) FetchFileHandler(w http.ResponseWriter, r *http.Request) {
	file := s.loadLiveFile(w, r)
	if file == nil {
		return
	}

	data := s.consumeDownload(w, r, file)
	if data == nil {
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, FetchResponse{
		Success: true,
		Data: FetchData{
			EncryptedData: base64.StdEncoding.EncodeToString(data),
			OriginalName:  file.OriginalName,
			MimeType:      file.MimeType,
			IV:            file.IV,
			FileSize:      int64(len(data)),
		},
	})
}

// @Summary      Fetch a shared file (raw bytes)
// @Description  Returns the encrypted payload as-is; the IV travels in the X-Encryption-IV header. Spends one download like the JSON variant.
// @Tags         download
// @Produce      application/octet-stream
// @Param        fileId  path  string  true  "File ID"
// @Success      200     {file}    file
// @Failure      404     {object}  ErrorResponse "NOT_FOUND"
// @Failure      410     {object}  ErrorResponse "EXPIRED, LIMIT_EXCEEDED"
// @Router       /download/{fileId}/raw [get]
func (s *Server) FetchFileRawHandler(w http.ResponseWriter, r *http.Request) {
	file := s.loadLiveFile(w, r)
	if file == nil {
		return
	}

	data := s.consumeDownload(w, r, file)
	if data == nil {
		return
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	w.Header().Set("X-Encryption-IV", file.IV)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
