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
	"skarbiec/internal/websocket"
)

type DeviceRequestRequest struct {
	UserEmail   string `json:"user_email" example:"user@example.com"`
	DeviceName  string `json:"device_name" example:"Work laptop"`
	Fingerprint string `json:"device_fingerprint,omitempty"`
}

type DeviceRequestResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// @Summary      Request device trust
// @Description  Files a registration request for this device, to be approved or rejected by an admin. The fingerprint is derived from request headers when the body carries none.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        deviceRequest  body      DeviceRequestRequest  true  "Device details"
// @Success      200            {object}  DeviceRequestResponse
// @Failure      404            {object}  ErrorResponse "USER_NOT_FOUND"
// @Failure      409            {object}  ErrorResponse "REQUEST_EXISTS, DEVICE_REGISTERED"
// @Router       /devices/request [post]
func (s *Server) RequestDeviceHandler(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.DeviceName == "" || req.UserEmail == "" {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "Device name and user email are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(req.UserEmail))
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to look up user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, CodeUserNotFound, "User not found")
		return
	}

	userAgent := r.UserAgent()
	if userAgent == "" {
		userAgent = "Unknown"
	}

	fingerprint := req.Fingerprint
	if fingerprint == "" {
		fingerprint = auth.DeviceFingerprint(userAgent, r.Header.Get("Sec-CH-UA"))
	}

	deviceName := req.DeviceName
	if deviceName == "" {
		deviceName = auth.ParseUserAgent(userAgent)
	}

	requestID, err := auth.GenerateID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create device request")
		return
	}

	err = s.store.CreatePendingDevice(r.Context(), database.CreatePendingDeviceParams{
		ID:          requestID,
		DeviceName:  deviceName,
		Fingerprint: fingerprint,
		RequestedBy: user.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrRequestExists):
			writeError(w, http.StatusConflict, CodeRequestExists, "Device request already pending")
		case errors.Is(err, database.ErrDeviceRegistered):
			writeError(w, http.StatusConflict, CodeDeviceRegistered, "Device already registered")
		default:
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to create device request")
		}
		return
	}

	s.wsHub.Notify(websocket.EventDeviceRequestCreated, map[string]string{
		"request_id":  requestID,
		"device_name": deviceName,
		"user_email":  user.Email,
	})

	writeJSON(w, http.StatusOK, DeviceRequestResponse{
		Message:   "Device registration request submitted. Awaiting admin approval.",
		RequestID: requestID,
	})
}

type PendingDeviceListResponse struct {
	Devices []models.PendingDevice `json:"devices"`
}

// @Summary      List pending device requests
// @Tags         devices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PendingDeviceListResponse
// @Failure      403  {object}  ErrorResponse "FORBIDDEN"
// @Router       /devices/pending [get]
func (s *Server) ListPendingDevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListPendingDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to list pending devices")
		return
	}

	writeJSON(w, http.StatusOK, PendingDeviceListResponse{Devices: devices})
}

type DeviceApprovalRequest struct {
	Approved bool `json:"approved"`
}

type DeviceApprovalResponse struct {
	Message     string `json:"message"`
	DeviceToken string `json:"device_token,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
	DeviceName  string `json:"device_name,omitempty"`
}

// @Summary      Approve or reject a device request
// @Description  On approval the response carries the device token, the only time it is ever visible. Only its hash is stored.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id               path      string                 true  "Request ID"
// @Param        approvalRequest  body      DeviceApprovalRequest  true  "Decision"
// @Success      200              {object}  DeviceApprovalResponse
// @Failure      400              {object}  ErrorResponse "ALREADY_PROCESSED"
// @Failure      404              {object}  ErrorResponse "NOT_FOUND"
// @Router       /devices/{id}/approve [post]
func (s *Server) ResolveDeviceHandler(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	var req DeviceApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
		return
	}

	var deviceID, token string
	var err error
	if req.Approved {
		deviceID, err = auth.GenerateID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to register device")
			return
		}
		token, err = auth.GenerateToken(32)
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to register device")
			return
		}
	}

	pending, err := s.store.ResolveDeviceRequest(r.Context(), req.Approved, database.ApproveDeviceParams{
		RequestID: requestID,
		DeviceID:  deviceID,
		TokenHash: auth.HashToken(token),
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, CodeNotFound, "Pending device not found")
		case errors.Is(err, database.ErrAlreadyProcessed):
			writeError(w, http.StatusBadRequest, CodeAlreadyProcessed, "Device request already processed")
		default:
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to update device status")
		}
		return
	}

	if !req.Approved {
		writeJSON(w, http.StatusOK, DeviceApprovalResponse{Message: "Device request rejected"})
		return
	}

	s.wsHub.Notify(websocket.EventDeviceApproved, map[string]string{
		"device_id":   deviceID,
		"device_name": pending.DeviceName,
	})

	writeJSON(w, http.StatusOK, DeviceApprovalResponse{
		Message:     "Device approved and registered",
		DeviceToken: token,
		DeviceID:    deviceID,
		DeviceName:  pending.DeviceName,
	})
}

type DeviceListResponse struct {
	Devices []models.TrustedDevice `json:"devices"`
}

// @Summary      List devices
// @Description  A user sees their own devices; an admin sees every active device with its owner's email.
// @Tags         devices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  DeviceListResponse
// @Router       /devices [get]
func (s *Server) ListDevicesHandler(w http.ResponseWriter, r *http.Request) {
	sc := GetSessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing authorization token")
		return
	}

	var devices []models.TrustedDevice
	var err error
	if sc.User.IsAdmin {
		devices, err = s.store.ListActiveDevices(r.Context())
	} else {
		devices, err = s.store.ListDevicesForUser(r.Context(), sc.User.ID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, DeviceListResponse{Devices: devices})
}

// @Summary      Revoke a device
// @Description  An admin session may revoke any device; a device token may revoke only the device it belongs to. Revocation is terminal and revoking twice is a no-op success.
// @Tags         devices
// @Produce      json
// @Param        device_id  query     string  true  "Device ID"
// @Success      200        {object}  map[string]string
// @Failure      403        {object}  ErrorResponse "FORBIDDEN"
// @Failure      404        {object}  ErrorResponse "NOT_FOUND"
// @Router       /devices [delete]
func (s *Server) RevokeDeviceHandler(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, CodeMissingDeviceID, "Device ID is required")
		return
	}

	device, err := s.store.GetDeviceByID(r.Context(), deviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to look up device")
		return
	}
	if device == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "Device not found")
		return
	}

	// Two disjoint credentials may authorize this: an admin session, or the
	// device's own token.
	sc, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to authenticate")
		return
	}

	if sc == nil || !sc.User.IsAdmin {
		dc, err := s.resolveDevice(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to authenticate")
			return
		}
		if dc == nil {
			writeError(w, http.StatusUnauthorized, CodeDeviceTokenRequired, "Device token required")
			return
		}
		if device.UserID != dc.UserID {
			writeError(w, http.StatusForbidden, CodeForbidden, "You can only revoke your own devices")
			return
		}
	}

	if err := s.store.RevokeDevice(r.Context(), deviceID); err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to revoke device")
		return
	}

	s.wsHub.Notify(websocket.EventDeviceRevoked, map[string]string{"device_id": deviceID})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Device revoked successfully"})
}
