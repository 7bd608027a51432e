package models

import "time"

// RequestStatus is the lifecycle of a device registration request.
// A request starts pending and is terminal once approved or rejected.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// Resolved reports whether the request reached a terminal state.
func (s RequestStatus) Resolved() bool {
	switch s {
	case RequestApproved, RequestRejected:
		return true
	case RequestPending:
		return false
	}
	return false
}

// DeviceStatus is the lifecycle of a trusted device. Revocation is terminal;
// a fingerprint can only be re-trusted through a fresh approval, which first
// removes the revoked row.
type DeviceStatus string

const (
	DeviceActive  DeviceStatus = "active"
	DeviceRevoked DeviceStatus = "revoked"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceActive, DeviceRevoked:
		return true
	}
	return false
}

type PendingDevice struct {
	ID             string        `json:"id"`
	DeviceName     string        `json:"device_name"`
	Fingerprint    string        `json:"device_fingerprint"`
	RequestedBy    string        `json:"requested_by"`
	RequesterEmail string        `json:"requester_email,omitempty"`
	Status         RequestStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

type TrustedDevice struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	UserEmail   string       `json:"user_email,omitempty"`
	DeviceName  string       `json:"device_name"`
	TokenHash   string       `json:"-"`
	Fingerprint string       `json:"device_fingerprint"`
	Status      DeviceStatus `json:"status"`
	LastUsed    *time.Time   `json:"last_used,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// DeviceContext is the identity a valid device token resolves to. It is the
// admission context for uploads.
type DeviceContext struct {
	DeviceID        string
	UserID          string
	DeviceName      string
	UnlimitedUpload bool
}
