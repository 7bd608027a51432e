package ratelimit

import (
	"context"
	"time"
)

const (
	// UploadsPerWindow is the per-device quota inside one sliding window.
	UploadsPerWindow = 10
	// Window is the trailing duration the quota is counted over.
	Window = time.Hour
	// Retention is how long log entries are kept before the sweep purges
	// them. Independent of Window; only bounds table growth.
	Retention = 24 * time.Hour

	// UnlimitedRemaining is the sentinel remaining count for devices whose
	// owner is exempt from the quota.
	UnlimitedRemaining = -1
)

// Store is the slice of the relational store the limiter needs. The upload
// log is the only durable state; there is no per-process counter, so any
// number of stateless request handlers share one window.
type Store interface {
	CountUploadsSince(ctx context.Context, deviceID string, since time.Time) (int, error)
	RecordUpload(ctx context.Context, deviceID string, at time.Time) error
	PurgeUploadLog(ctx context.Context, olderThan time.Time) (int64, error)
}

type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type Limiter struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// NewWithClock is used by tests to pin the window boundary.
func NewWithClock(store Store, now func() time.Time) *Limiter {
	return &Limiter{store: store, now: now}
}

// Check counts the device's uploads in the trailing window and admits the
// request iff the count is below the quota. Devices owned by an
// unlimited-upload user are always admitted.
func (l *Limiter) Check(ctx context.Context, deviceID string, unlimitedUpload bool) (Decision, error) {
	if unlimitedUpload {
		return Decision{Allowed: true, Remaining: UnlimitedRemaining}, nil
	}

	now := l.now()
	count, err := l.store.CountUploadsSince(ctx, deviceID, now.Add(-Window))
	if err != nil {
		return Decision{}, err
	}

	remaining := UploadsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count < UploadsPerWindow,
		Remaining: remaining,
		ResetAt:   now.Add(Window),
	}, nil
}

// Record appends one log entry. Called only after an upload is otherwise
// fully admitted and stored.
func (l *Limiter) Record(ctx context.Context, deviceID string) error {
	return l.store.RecordUpload(ctx, deviceID, l.now())
}

// Cleanup purges entries older than the retention threshold. Invoked by the
// periodic sweep, never per-request.
func (l *Limiter) Cleanup(ctx context.Context) (int64, error) {
	return l.store.PurgeUploadLog(ctx, l.now().Add(-Retention))
}
