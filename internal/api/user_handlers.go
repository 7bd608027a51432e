package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"skarbiec/internal/auth"
	"skarbiec/internal/database"
	"skarbiec/internal/models"
)

type UserListResponse struct {
	Users []models.User `json:"users"`
}

// @Summary      List all users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  UserListResponse
// @Failure      403  {object}  ErrorResponse "FORBIDDEN"
// @Router       /users [get]
func (s *Server) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

type CreateUserRequest struct {
	Email           string `json:"email" example:"newuser@example.com"`
	Password        string `json:"password"`
	UnlimitedUpload bool   `json:"unlimited_upload"`
}

// @Summary      Create a user (admin)
// @Description  Admin-created accounts are never admins themselves and may be granted unlimited upload.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        createUserRequest  body      CreateUserRequest  true  "New user"
// @Success      201                {object}  map[string]models.User
// @Failure      400                {object}  ErrorResponse
// @Failure      409                {object}  ErrorResponse "EMAIL_EXISTS"
// @Router       /users [post]
func (s *Server) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
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
		ID:              userID,
		Email:           strings.ToLower(req.Email),
		PasswordHash:    auth.HashPassword(req.Password, salt),
		PasswordSalt:    salt,
		IsAdmin:         false,
		UnlimitedUpload: req.UnlimitedUpload,
	})
	if err != nil {
		if errors.Is(err, database.ErrEmailExists) {
			writeError(w, http.StatusConflict, CodeEmailExists, "Email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]*models.User{"user": user})
}

type UpdateUserRequest struct {
	UnlimitedUpload *bool `json:"unlimited_upload"`
}

// @Summary      Update a user (admin)
// @Description  Currently the only patchable field is the unlimited_upload exemption.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id                 path      string             true  "User ID"
// @Param        updateUserRequest  body      UpdateUserRequest  true  "Fields to update"
// @Success      200                {object}  map[string]models.User
// @Failure      400                {object}  ErrorResponse "NO_UPDATES"
// @Failure      404                {object}  ErrorResponse "USER_NOT_FOUND"
// @Router       /users/{id} [patch]
func (s *Server) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.UnlimitedUpload == nil {
		writeError(w, http.StatusBadRequest, CodeNoUpdates, "No valid fields to update")
		return
	}

	user, err := s.store.SetUnlimitedUpload(r.Context(), userID, *req.UnlimitedUpload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to update user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, CodeUserNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]*models.User{"user": user})
}

// @Summary      Delete a user (admin)
// @Description  Deletes the account and its sessions. An admin cannot delete itself.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  ErrorResponse "CANNOT_DELETE_SELF"
// @Failure      404  {object}  ErrorResponse "USER_NOT_FOUND"
// @Router       /users/{id} [delete]
func (s *Server) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	sc := GetSessionFromContext(r.Context())
	userID := chi.URLParam(r, "id")

	if sc != nil && sc.User.ID == userID {
		writeError(w, http.StatusBadRequest, CodeCannotDeleteSelf, "Cannot delete your own account")
		return
	}

	deleted, err := s.store.DeleteUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to delete user")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, CodeUserNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
