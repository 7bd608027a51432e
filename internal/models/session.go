package models

import (
	"time"

	"github.com/google/uuid"
)

// Session stores only the SHA-256 hash of its bearer token. The plaintext
// token is returned once at issuance and is not recoverable afterwards.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
