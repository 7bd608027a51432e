package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"skarbiec/internal/auth"
	"skarbiec/internal/models"
)

type contextKey string

const sessionContextKey = contextKey("session")

// SessionContext is the identity a valid session token resolves to. The
// token hash is carried so logout can revoke exactly the presented session.
type SessionContext struct {
	User      *models.User
	TokenHash string
}

// AuthMiddleware resolves the Authorization bearer token into a user.
// Expiry is lazy: the first access past the deadline deletes the session
// row, and every later lookup fails the same way a bad token does after
// that, with UNAUTHORIZED rather than SESSION_EXPIRED.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing authorization token")
			return
		}

		tokenHash := auth.HashToken(token)

		session, err := s.store.GetSessionByTokenHash(r.Context(), tokenHash)
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to look up session")
			return
		}
		if session == nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid session")
			return
		}

		if session.ExpiresAt.Before(time.Now()) {
			if err := s.store.DeleteSessionByTokenHash(r.Context(), tokenHash); err != nil {
				writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to expire session")
				return
			}
			writeError(w, http.StatusUnauthorized, CodeSessionExpired, "Session has expired")
			return
		}

		user, err := s.store.GetUserByID(r.Context(), session.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to load user")
			return
		}
		if user == nil {
			// Account deleted after login; the session hash no longer
			// resolves to anyone.
			writeError(w, http.StatusUnauthorized, CodeUserNotFound, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, &SessionContext{
			User:      user,
			TokenHash: tokenHash,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware must be stacked after AuthMiddleware.
func (s *Server) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := GetSessionFromContext(r.Context())
		if sc == nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing authorization token")
			return
		}
		if !sc.User.IsAdmin {
			writeError(w, http.StatusForbidden, CodeForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetSessionFromContext(ctx context.Context) *SessionContext {
	if sc, ok := ctx.Value(sessionContextKey).(*SessionContext); ok {
		return sc
	}
	return nil
}

// resolveSession authenticates a session token outside the middleware
// stack, for the mixed session-or-device revoke endpoint. Unlike the
// middleware it reports failures as absence, not as distinct errors.
func (s *Server) resolveSession(r *http.Request) (*SessionContext, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, nil
	}

	tokenHash := auth.HashToken(token)

	session, err := s.store.GetSessionByTokenHash(r.Context(), tokenHash)
	if err != nil || session == nil {
		return nil, err
	}
	if session.ExpiresAt.Before(time.Now()) {
		return nil, s.store.DeleteSessionByTokenHash(r.Context(), tokenHash)
	}

	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil || user == nil {
		return nil, err
	}

	return &SessionContext{User: user, TokenHash: tokenHash}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || headerParts[0] != "Bearer" {
		return "", false
	}

	return headerParts[1], true
}
