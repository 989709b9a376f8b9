package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/sheetsync/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.RegisterIdentity(ctx, "sheet-1"))

	now := fixedNow
	th := &Throttle{Store: store, Interval: 12 * time.Hour, Now: func() time.Time { return now }}

	// No previous sync.
	require.NoError(t, th.Allow(ctx))
	require.NoError(t, th.Record(ctx))

	now = fixedNow.Add(time.Hour)
	err := th.Allow(ctx)
	assert.ErrorIs(t, err, ErrThrottled)

	// The boundary itself is still throttled.
	now = fixedNow.Add(12 * time.Hour)
	assert.ErrorIs(t, th.Allow(ctx), ErrThrottled)

	now = fixedNow.Add(12*time.Hour + time.Second)
	assert.NoError(t, th.Allow(ctx))
}

func TestThrottle_ZeroIntervalNeverThrottles(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.RegisterIdentity(ctx, "sheet-1"))

	th := &Throttle{Store: store}
	require.NoError(t, th.Record(ctx))
	assert.NoError(t, th.Allow(ctx))
}

func TestThrottle_RequiresIdentity(t *testing.T) {
	th := &Throttle{Store: session.NewMemoryStore(), Interval: time.Hour}

	err := th.Allow(context.Background())
	assert.ErrorIs(t, err, session.ErrNoIdentity)
	assert.NotErrorIs(t, err, ErrThrottled)
}
