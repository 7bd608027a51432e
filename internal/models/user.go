package models

import "time"

type User struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	PasswordSalt    string    `json:"-" db:"password_salt"`
	IsAdmin         bool      `json:"is_admin" db:"is_admin"`
	UnlimitedUpload bool      `json:"unlimited_upload" db:"unlimited_upload"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
