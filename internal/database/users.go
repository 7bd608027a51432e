package database

import (
	"context"
	"errors"
	"skarbiec/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrEmailExists = errors.New("email already registered")

type CreateUserParams struct {
	ID              string
	Email           string
	PasswordHash    string
	PasswordSalt    string
	IsAdmin         bool
	UnlimitedUpload bool
}

func (s *PostgresStore) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, password_hash, password_salt, is_admin, unlimited_upload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, email, password_hash, password_salt, is_admin, unlimited_upload, created_at
	`
	row := s.pool.QueryRow(ctx, query,
		arg.ID, arg.Email, arg.PasswordHash, arg.PasswordSalt, arg.IsAdmin, arg.UnlimitedUpload,
	)

	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.IsAdmin,
		&user.UnlimitedUpload,
		&user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	return &user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, password_salt, is_admin, unlimited_upload, created_at
		FROM users
		WHERE email = $1
	`
	var user models.User

	err := s.pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.IsAdmin,
		&user.UnlimitedUpload,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, password_salt, is_admin, unlimited_upload, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.IsAdmin,
		&user.UnlimitedUpload,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, email, password_hash, password_salt, is_admin, unlimited_upload, created_at
		FROM users
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.PasswordSalt,
			&user.IsAdmin,
			&user.UnlimitedUpload,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if users == nil {
		return []models.User{}, nil
	}

	return users, nil
}

// SetUnlimitedUpload flips the per-user upload quota exemption. Returns the
// updated user, or nil when no such user exists.
func (s *PostgresStore) SetUnlimitedUpload(ctx context.Context, id string, unlimited bool) (*models.User, error) {
	query := `
		UPDATE users SET unlimited_upload = $2
		WHERE id = $1
		RETURNING id, email, password_hash, password_salt, is_admin, unlimited_upload, created_at
	`
	var user models.User

	err := s.pool.QueryRow(ctx, query, id, unlimited).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.IsAdmin,
		&user.UnlimitedUpload,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// DeleteUser removes the user and their sessions in one transaction.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = res.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
