package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/sheetsync/internal/session"
)

// ErrThrottled is returned by Throttle.Allow when the previous sync is too recent.
var ErrThrottled = errors.New("sync throttled")

// LastSyncKey is the session key holding the time of the last sync.
const LastSyncKey = "last_sync"

// Throttle enforces a minimum interval between syncs of one identity.
type Throttle struct {
	Store    session.Store
	Interval time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (t *Throttle) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Allow returns nil when a sync may start, or an error wrapping ErrThrottled
// with the earliest allowed time.
func (t *Throttle) Allow(ctx context.Context) error {
	if t.Interval <= 0 {
		return nil
	}

	var last time.Time
	err := t.Store.Get(ctx, LastSyncKey, &last)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("Throttle.Allow: %w", err)
	}

	next := last.Add(t.Interval)
	if next.Before(t.now()) {
		return nil
	}
	return fmt.Errorf("%w: next sync allowed after %s", ErrThrottled, next.Format(time.RFC3339))
}

// Record stores the current time as the last sync.
func (t *Throttle) Record(ctx context.Context) error {
	if err := t.Store.Set(ctx, LastSyncKey, t.now()); err != nil {
		return fmt.Errorf("Throttle.Record: %w", err)
	}
	return nil
}
