package models

import "time"

// VaultFile is the metadata row for one uploaded, pre-encrypted object.
// BlobKey addresses the object store and is never exposed to callers; the
// public identifier is ID. IV is opaque to the server; the payload is
// encrypted client-side and the server never sees the key.
type VaultFile struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	BlobKey       string    `json:"-"`
	OriginalName  string    `json:"original_name"`
	FileSize      int64     `json:"file_size"`
	MimeType      string    `json:"mime_type"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  int       `json:"max_downloads"`
	IV            string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired reports whether the file is past its expiry at the given instant.
func (f *VaultFile) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

// LimitReached reports whether the download-count limit is exhausted.
// MaxDownloads of zero means unlimited.
func (f *VaultFile) LimitReached() bool {
	return f.MaxDownloads > 0 && f.DownloadCount >= f.MaxDownloads
}
