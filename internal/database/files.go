package database

import (
	"context"
	"errors"
	"skarbiec/internal/models"
	"time"

	"github.com/jackc/pgx/v5"
)

type CreateVaultFileParams struct {
	ID           string
	UserID       string
	BlobKey      string
	OriginalName string
	FileSize     int64
	MimeType     string
	MaxDownloads int
	IV           string
	ExpiresAt    time.Time
}

func (s *PostgresStore) CreateVaultFile(ctx context.Context, arg CreateVaultFileParams) (*models.VaultFile, error) {
	query := `
		INSERT INTO vault_files
			(id, user_id, blob_key, original_name, file_size, mime_type, download_count, max_downloads, iv, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
		RETURNING id, user_id, blob_key, original_name, file_size, mime_type,
		          download_count, max_downloads, iv, expires_at, created_at
	`
	row := s.pool.QueryRow(ctx, query,
		arg.ID, arg.UserID, arg.BlobKey, arg.OriginalName, arg.FileSize,
		arg.MimeType, arg.MaxDownloads, arg.IV, arg.ExpiresAt,
	)

	var file models.VaultFile
	if err := scanVaultFile(row, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

func (s *PostgresStore) GetVaultFileByID(ctx context.Context, id string) (*models.VaultFile, error) {
	query := `
		SELECT id, user_id, blob_key, original_name, file_size, mime_type,
		       download_count, max_downloads, iv, expires_at, created_at
		FROM vault_files
		WHERE id = $1
	`
	var file models.VaultFile

	err := scanVaultFile(s.pool.QueryRow(ctx, query, id), &file)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &file, nil
}

func (s *PostgresStore) ListFilesForUser(ctx context.Context, userID string) ([]models.VaultFile, error) {
	query := `
		SELECT id, user_id, blob_key, original_name, file_size, mime_type,
		       download_count, max_downloads, iv, expires_at, created_at
		FROM vault_files
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.VaultFile
	for rows.Next() {
		var file models.VaultFile
		if err := scanVaultFile(rows, &file); err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.VaultFile{}, nil
	}

	return files, nil
}

// ConsumeDownload performs the check-and-increment of download_count as a
// single conditional update so that two concurrent fetches near the limit
// cannot both pass a separate read-then-write check. It reports false when
// the file is gone, expired, or out of downloads; zero rows affected means
// the download was not admitted and the counter was not touched.
func (s *PostgresStore) ConsumeDownload(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE vault_files
		SET download_count = download_count + 1
		WHERE id = $1
		  AND expires_at > $2
		  AND (max_downloads = 0 OR download_count < max_downloads)
	`
	res, err := s.pool.Exec(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// ListExpiredFiles returns every file whose expiry is in the past, for the
// cleanup sweep.
func (s *PostgresStore) ListExpiredFiles(ctx context.Context, now time.Time) ([]models.VaultFile, error) {
	query := `
		SELECT id, user_id, blob_key, original_name, file_size, mime_type,
		       download_count, max_downloads, iv, expires_at, created_at
		FROM vault_files
		WHERE expires_at < $1
	`
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.VaultFile
	for rows.Next() {
		var file models.VaultFile
		if err := scanVaultFile(rows, &file); err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.VaultFile{}, nil
	}

	return files, nil
}

func (s *PostgresStore) DeleteVaultFile(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM vault_files WHERE id = $1`, id)
	return err
}

func scanVaultFile(row pgx.Row, file *models.VaultFile) error {
	return row.Scan(
		&file.ID,
		&file.UserID,
		&file.BlobKey,
		&file.OriginalName,
		&file.FileSize,
		&file.MimeType,
		&file.DownloadCount,
		&file.MaxDownloads,
		&file.IV,
		&file.ExpiresAt,
		&file.CreatedAt,
	)
}
