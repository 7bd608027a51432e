package database

import (
	"context"
	"strings"
)

// GetAllowedExtensions returns the active rows of the admin-controlled
// file-type allow-list, lowercased, as a set.
func (s *PostgresStore) GetAllowedExtensions(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT extension FROM file_type_whitelist WHERE is_active = TRUE`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allowed := make(map[string]bool)
	for rows.Next() {
		var ext string
		if err := rows.Scan(&ext); err != nil {
			return nil, err
		}
		allowed[strings.ToLower(ext)] = true
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return allowed, nil
}

// SetExtensionActive upserts one allow-list entry.
func (s *PostgresStore) SetExtensionActive(ctx context.Context, extension string, active bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO file_type_whitelist (extension, is_active) VALUES ($1, $2)
		 ON CONFLICT (extension) DO UPDATE SET is_active = EXCLUDED.is_active`,
		strings.ToLower(extension), active,
	)
	return err
}
