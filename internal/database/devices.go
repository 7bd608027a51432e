package database

import (
	"context"
	"errors"
	"skarbiec/internal/models"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrRequestExists    = errors.New("device request already pending")
	ErrDeviceRegistered = errors.New("device already registered")
	ErrRequestNotFound  = errors.New("pending device request not found")
	ErrAlreadyProcessed = errors.New("device request already processed")
	ErrDeviceNotFound   = errors.New("device not found")
)

type CreatePendingDeviceParams struct {
	ID          string
	DeviceName  string
	Fingerprint string
	RequestedBy string
}

// CreatePendingDevice inserts a new pending request for a fingerprint,
// first purging any already-resolved (approved/rejected) rows so the
// fingerprint can cycle through the workflow again. Fails with
// ErrRequestExists when a pending row exists and ErrDeviceRegistered when an
// active trusted device already holds the fingerprint.
func (s *PostgresStore) CreatePendingDevice(ctx context.Context, arg CreatePendingDeviceParams) error {
	return s.ExecTx(ctx, func(tx pgx.Tx) error {
		var exists bool

		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pending_devices WHERE device_fingerprint = $1 AND status = $2)`,
			arg.Fingerprint, models.RequestPending,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrRequestExists
		}

		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM trusted_devices WHERE device_fingerprint = $1 AND status = $2)`,
			arg.Fingerprint, models.DeviceActive,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrDeviceRegistered
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM pending_devices WHERE device_fingerprint = $1 AND status IN ($2, $3)`,
			arg.Fingerprint, models.RequestApproved, models.RequestRejected,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO pending_devices (id, device_name, device_fingerprint, requested_by, status)
			 VALUES ($1, $2, $3, $4, $5)`,
			arg.ID, arg.DeviceName, arg.Fingerprint, arg.RequestedBy, models.RequestPending,
		)
		if err != nil {
			// A concurrent request can slip past the pending check and hit
			// the partial unique index on (device_fingerprint) WHERE pending.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrRequestExists
			}
			return err
		}
		return nil
	})
}

func (s *PostgresStore) GetPendingDeviceByID(ctx context.Context, id string) (*models.PendingDevice, error) {
	query := `
		SELECT id, device_name, device_fingerprint, requested_by, status, created_at
		FROM pending_devices
		WHERE id = $1
	`
	var pd models.PendingDevice

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&pd.ID,
		&pd.DeviceName,
		&pd.Fingerprint,
		&pd.RequestedBy,
		&pd.Status,
		&pd.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &pd, nil
}

func (s *PostgresStore) ListPendingDevices(ctx context.Context) ([]models.PendingDevice, error) {
	query := `
		SELECT pd.id, pd.device_name, pd.device_fingerprint, pd.requested_by, pd.status, pd.created_at,
		       u.email AS requester_email
		FROM pending_devices pd
		JOIN users u ON pd.requested_by = u.id
		WHERE pd.status = $1
		ORDER BY pd.created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, models.RequestPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.PendingDevice
	for rows.Next() {
		var pd models.PendingDevice
		err := rows.Scan(
			&pd.ID,
			&pd.DeviceName,
			&pd.Fingerprint,
			&pd.RequestedBy,
			&pd.Status,
			&pd.CreatedAt,
			&pd.RequesterEmail,
		)
		if err != nil {
			return nil, err
		}
		devices = append(devices, pd)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if devices == nil {
		return []models.PendingDevice{}, nil
	}

	return devices, nil
}

type ApproveDeviceParams struct {
	RequestID string
	DeviceID  string
	TokenHash string
}

// ResolveDeviceRequest moves a pending request to its terminal state. On
// approval it also removes any revoked trusted-device row sharing the
// fingerprint (so a fingerprint can be re-trusted) and inserts the new
// active trusted device in the same transaction, keeping the at-most-one-
// active-per-fingerprint invariant even under concurrent approvals.
func (s *PostgresStore) ResolveDeviceRequest(ctx context.Context, approved bool, arg ApproveDeviceParams) (*models.PendingDevice, error) {
	var pd models.PendingDevice

	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT id, device_name, device_fingerprint, requested_by, status, created_at
			 FROM pending_devices WHERE id = $1 FOR UPDATE`,
			arg.RequestID,
		).Scan(&pd.ID, &pd.DeviceName, &pd.Fingerprint, &pd.RequestedBy, &pd.Status, &pd.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRequestNotFound
			}
			return err
		}

		if pd.Status.Resolved() {
			return ErrAlreadyProcessed
		}

		newStatus := models.RequestRejected
		if approved {
			newStatus = models.RequestApproved
		}

		_, err = tx.Exec(ctx,
			`UPDATE pending_devices SET status = $2 WHERE id = $1`,
			arg.RequestID, newStatus,
		)
		if err != nil {
			return err
		}
		pd.Status = newStatus

		if !approved {
			return nil
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM trusted_devices WHERE device_fingerprint = $1 AND status = $2`,
			pd.Fingerprint, models.DeviceRevoked,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO trusted_devices (id, user_id, device_name, token_hash, device_fingerprint, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			arg.DeviceID, pd.RequestedBy, pd.DeviceName, arg.TokenHash, pd.Fingerprint, models.DeviceActive,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &pd, nil
}

func (s *PostgresStore) GetActiveDeviceByTokenHash(ctx context.Context, tokenHash string) (*models.TrustedDevice, error) {
	query := `
		SELECT id, user_id, device_name, token_hash, device_fingerprint, status, last_used, created_at
		FROM trusted_devices
		WHERE token_hash = $1 AND status = $2
	`
	var td models.TrustedDevice

	err := s.pool.QueryRow(ctx, query, tokenHash, models.DeviceActive).Scan(
		&td.ID,
		&td.UserID,
		&td.DeviceName,
		&td.TokenHash,
		&td.Fingerprint,
		&td.Status,
		&td.LastUsed,
		&td.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &td, nil
}

func (s *PostgresStore) GetDeviceByID(ctx context.Context, id string) (*models.TrustedDevice, error) {
	query := `
		SELECT id, user_id, device_name, token_hash, device_fingerprint, status, last_used, created_at
		FROM trusted_devices
		WHERE id = $1
	`
	var td models.TrustedDevice

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&td.ID,
		&td.UserID,
		&td.DeviceName,
		&td.TokenHash,
		&td.Fingerprint,
		&td.Status,
		&td.LastUsed,
		&td.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &td, nil
}

// TouchDeviceLastUsed is fire-and-forget with respect to request outcome;
// callers log a failure but do not fail the operation on it.
func (s *PostgresStore) TouchDeviceLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE trusted_devices SET last_used = $2 WHERE id = $1`, id, at)
	return err
}

// RevokeDevice marks the device revoked. Revoking an already-revoked device
// reaches the same end state, so it reports success either way.
func (s *PostgresStore) RevokeDevice(ctx context.Context, id string) error {
	res, err := s.pool.Exec(ctx,
		`UPDATE trusted_devices SET status = $2 WHERE id = $1`,
		id, models.DeviceRevoked,
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (s *PostgresStore) ListDevicesForUser(ctx context.Context, userID string) ([]models.TrustedDevice, error) {
	query := `
		SELECT id, user_id, device_name, token_hash, device_fingerprint, status, last_used, created_at
		FROM trusted_devices
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDevices(rows, false)
}

// ListActiveDevices is the admin view: every active device joined with its
// owner's email.
func (s *PostgresStore) ListActiveDevices(ctx context.Context) ([]models.TrustedDevice, error) {
	query := `
		SELECT td.id, td.user_id, td.device_name, td.token_hash, td.device_fingerprint,
		       td.status, td.last_used, td.created_at, u.email AS user_email
		FROM trusted_devices td
		JOIN users u ON td.user_id = u.id
		WHERE td.status = $1
		ORDER BY td.created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, models.DeviceActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDevices(rows, true)
}

func scanDevices(rows pgx.Rows, withEmail bool) ([]models.TrustedDevice, error) {
	var devices []models.TrustedDevice
	for rows.Next() {
		var td models.TrustedDevice
		dest := []interface{}{
			&td.ID,
			&td.UserID,
			&td.DeviceName,
			&td.TokenHash,
			&td.Fingerprint,
			&td.Status,
			&td.LastUsed,
			&td.CreatedAt,
		}
		if withEmail {
			dest = append(dest, &td.UserEmail)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		devices = append(devices, td)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if devices == nil {
		return []models.TrustedDevice{}, nil
	}

	return devices, nil
}
