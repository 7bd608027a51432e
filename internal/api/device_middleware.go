package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"skarbiec/internal/auth"
	"skarbiec/internal/models"
)

const deviceContextKey = contextKey("device")

// DeviceAuthMiddleware resolves a device token into a DeviceContext. Device
// tokens live in a separate space from session tokens: a session token
// presented here hashes to nothing in trusted_devices and is rejected, never
// cross-validated.
func (s *Server) DeviceAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := deviceToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeDeviceTokenRequired, "Device token required")
			return
		}

		device, err := s.store.GetActiveDeviceByTokenHash(r.Context(), auth.HashToken(token))
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to look up device")
			return
		}
		if device == nil {
			writeError(w, http.StatusUnauthorized, CodeInvalidDeviceToken, "Invalid or revoked device token")
			return
		}

		owner, err := s.store.GetUserByID(r.Context(), device.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to load device owner")
			return
		}
		if owner == nil {
			writeError(w, http.StatusUnauthorized, CodeInvalidDeviceToken, "Invalid or revoked device token")
			return
		}

		// Best-effort; a failed touch must not fail the request.
		if err := s.store.TouchDeviceLastUsed(r.Context(), device.ID, time.Now()); err != nil {
			log.Printf("WARN: failed to update last_used for device %s: %v", device.ID, err)
		}

		ctx := context.WithValue(r.Context(), deviceContextKey, &models.DeviceContext{
			DeviceID:        device.ID,
			UserID:          device.UserID,
			DeviceName:      device.DeviceName,
			UnlimitedUpload: owner.UnlimitedUpload,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetDeviceFromContext(ctx context.Context) *models.DeviceContext {
	if dc, ok := ctx.Value(deviceContextKey).(*models.DeviceContext); ok {
		return dc
	}
	return nil
}

// deviceToken prefers the dedicated X-Device-Token header and falls back to
// the Authorization bearer form on device-only routes.
func deviceToken(r *http.Request) (string, bool) {
	if token := r.Header.Get("X-Device-Token"); token != "" {
		return token, true
	}
	return bearerToken(r)
}

// resolveDevice authenticates a device token outside the middleware stack,
// for the mixed session-or-device revoke endpoint.
func (s *Server) resolveDevice(r *http.Request) (*models.DeviceContext, error) {
	token, ok := deviceToken(r)
	if !ok {
		return nil, nil
	}

	device, err := s.store.GetActiveDeviceByTokenHash(r.Context(), auth.HashToken(token))
	if err != nil || device == nil {
		return nil, err
	}

	owner, err := s.store.GetUserByID(r.Context(), device.UserID)
	if err != nil || owner == nil {
		return nil, err
	}

	return &models.DeviceContext{
		DeviceID:        device.ID,
		UserID:          device.UserID,
		DeviceName:      device.DeviceName,
		UnlimitedUpload: owner.UnlimitedUpload,
	}, nil
}
