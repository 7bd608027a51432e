package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"skarbiec/internal/auth"
	"skarbiec/internal/database"
	"skarbiec/internal/models"
)

const sessionDuration = 24 * time.Hour

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type RegisterRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"correct horse battery staple"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"correct horse battery staple"`
}

type SessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token" example:"9f86d081884c7d659a2feaa0c55ad015..."`
}

// createSession mints a session token for the user and persists only its
// hash. The plaintext returned here is the only copy that will ever exist.
func (s *Server) createSession(r *http.Request, userID string) (string, error) {
	token, err := auth.GenerateToken(32)
	if err != nil {
		return "", err
	}

	err = s.store.CreateSession(r.Context(), database.CreateSessionParams{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: time.Now().Add(sessionDuration),
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// @Summary      Register a new user
// @Description  Creates a user account and logs it in. The very first account registered becomes the admin.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      RegisterRequest  true  "Credentials"
// @Success      201              {object}  SessionResponse
// @Failure      400              {object}  ErrorResponse "INVALID_REQUEST, MISSING_FIELDS, INVALID_EMAIL, WEAK_PASSWORD"
// @Failure      409              {object}  ErrorResponse "EMAIL_EXISTS"
// @Failure      500              {object}  ErrorResponse
// @Router       /auth/register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "Email and password are required")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, CodeInvalidEmail, "Invalid email format")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, CodeWeakPassword, "Password must be at least 8 characters")
		return
	}

	email := strings.ToLower(req.Email)

	userCount, err := s.store.CountUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create user")
		return
	}

	userID, err := auth.GenerateID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create user")
		return
	}
	salt, err := auth.GenerateSalt()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create user")
		return
	}

	user, err := s.store.CreateUser(r.Context(), database.CreateUserParams{
		ID:           userID,
		Email:        email,
		PasswordHash: auth.HashPassword(req.Password, salt),
		PasswordSalt: salt,
		// The first user to ever register administers the instance.
		IsAdmin: userCount == 0,
	})
	if err != nil {
		if errors.Is(err, database.ErrEmailExists) {
			writeError(w, http.StatusConflict, CodeEmailExists, "Email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create user")
		return
	}

	token, err := s.createSession(r, user.ID)
	if err != nil {
		log.Printf("ERROR: failed to create session for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{User: user, Token: token})
}

// @Summary      Log a user in
// @Description  Verifies credentials and issues a session token. The token is returned once and stored only as a hash.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest  body      LoginRequest  true  "Credentials"
// @Success      200           {object}  SessionResponse
// @Failure      401           {object}  ErrorResponse "INVALID_CREDENTIALS"
// @Failure      500           {object}  ErrorResponse
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "Email and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(req.Email))
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to look up user")
		return
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordSalt, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
		return
	}

	token, err := s.createSession(r, user.ID)
	if err != nil {
		log.Printf("ERROR: failed to create session for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{User: user, Token: token})
}

// @Summary      Log out
// @Description  Revokes the presented session. Logging out twice is not an error.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sc := GetSessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing authorization token")
		return
	}

	if err := s.store.DeleteSessionByTokenHash(r.Context(), sc.TokenHash); err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to delete session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// @Summary      Get the current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/me [get]
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	sc := GetSessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing authorization token")
		return
	}

	writeJSON(w, http.StatusOK, sc.User)
}

type CheckUsersResponse struct {
	HasUsers bool `json:"hasUsers"`
}

// @Summary      Check whether any user exists
// @Description  Bootstrap probe for first-run setup flows. Errors report hasUsers=true so a flaky database can never reopen first-admin registration.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  CheckUsersResponse
// @Router       /auth/check-users [get]
func (s *Server) CheckUsersHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountUsers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, CheckUsersResponse{HasUsers: true})
		return
	}

	writeJSON(w, http.StatusOK, CheckUsersResponse{HasUsers: count > 0})
}
