package database

import (
	"context"
	"time"
)

// CountUploadsSince counts the rate-limit log entries for one device with a
// timestamp inside the trailing window starting at since.
func (s *PostgresStore) CountUploadsSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM upload_log WHERE device_id = $1 AND uploaded_at > $2`,
		deviceID, since,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) RecordUpload(ctx context.Context, deviceID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO upload_log (device_id, uploaded_at) VALUES ($1, $2)`,
		deviceID, at,
	)
	return err
}

// PurgeUploadLog trims entries older than the cutoff. Run by the periodic
// sweep only; the trailing-hour window never looks that far back, so the
// purge cannot change a rate-limit decision.
func (s *PostgresStore) PurgeUploadLog(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.pool.Exec(ctx, `DELETE FROM upload_log WHERE uploaded_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}
