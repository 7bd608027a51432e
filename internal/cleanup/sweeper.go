package cleanup

import (
	"context"
	"log"
	"time"

	"skarbiec/internal/models"
	"skarbiec/internal/ratelimit"
	"skarbiec/internal/storage"
)

// Store is the slice of the relational store the sweeper needs.
type Store interface {
	ListExpiredFiles(ctx context.Context, now time.Time) ([]models.VaultFile, error)
	DeleteVaultFile(ctx context.Context, id string) error
}

type Result struct {
	Deleted   int
	Failed    int
	LogPurged int64
}

// Sweeper is the periodic cleanup job: it reclaims expired vault files
// (blob first, then metadata row) and trims the rate-limit log. Every step
// is idempotent, so overlapping or repeated runs need no coordination;
// rows already fully deleted are simply absent on the next pass.
type Sweeper struct {
	store   Store
	blobs   storage.BlobStore
	limiter *ratelimit.Limiter
	now     func() time.Time

	// OnSweep, when set, is called after each completed sweep.
	OnSweep func(Result)
}

func NewSweeper(store Store, blobs storage.BlobStore, limiter *ratelimit.Limiter) *Sweeper {
	return &Sweeper{store: store, blobs: blobs, limiter: limiter, now: time.Now}
}

// NewSweeperWithClock is used by tests to pin the expiry boundary.
func NewSweeperWithClock(store Store, blobs storage.BlobStore, limiter *ratelimit.Limiter, now func() time.Time) *Sweeper {
	return &Sweeper{store: store, blobs: blobs, limiter: limiter, now: now}
}

// Sweep runs one pass. A failure on one file is logged and the sweep moves
// on; the next run picks up whatever is left. The blob is deleted before
// the metadata row: losing the row first would leak the blob forever, while
// the reverse order leaves a row the next sweep retries.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := s.now()

	expired, err := s.store.ListExpiredFiles(ctx, now)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, file := range expired {
		if err := s.blobs.Delete(ctx, file.BlobKey); err != nil {
			log.Printf("ERROR: sweep: failed to delete blob for file %s: %v", file.ID, err)
			res.Failed++
			continue
		}
		if err := s.store.DeleteVaultFile(ctx, file.ID); err != nil {
			log.Printf("ERROR: sweep: failed to delete metadata for file %s: %v", file.ID, err)
			res.Failed++
			continue
		}
		res.Deleted++
	}

	purged, err := s.limiter.Cleanup(ctx)
	if err != nil {
		log.Printf("ERROR: sweep: failed to purge upload log: %v", err)
	}
	res.LogPurged = purged

	if res.Deleted > 0 || res.Failed > 0 || res.LogPurged > 0 {
		log.Printf("Sweep finished: %d files deleted, %d failed, %d log entries purged",
			res.Deleted, res.Failed, res.LogPurged)
	}

	if s.OnSweep != nil {
		s.OnSweep(res)
	}

	return res, nil
}

// Run sweeps on the given interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("ERROR: sweep failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
