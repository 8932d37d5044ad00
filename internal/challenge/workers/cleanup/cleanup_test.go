package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sesame/internal/challenge/models"
	"sesame/internal/challenge/store"
	denylistmodels "sesame/internal/denylist/models"
	denyliststore "sesame/internal/denylist/store"
	identity "sesame/internal/identity/models"
	counter "sesame/internal/ratelimit/store/counter"
)

func TestCleanupRunOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	challenges := store.NewInMemory()
	counters := counter.NewInMemory().WithClock(func() time.Time { return now })
	denylist := denyliststore.NewInMemory()

	expiredID, err := identity.NewIdentifier("stale@example.com")
	require.NoError(t, err)
	freshID, err := identity.NewIdentifier("fresh@example.com")
	require.NoError(t, err)

	expired := models.New(expiredID, models.ChannelEmail, models.IntentLogin, "111111", models.DefaultOTPTTL, now.Add(-time.Hour))
	require.NoError(t, challenges.Create(ctx, expired))

	fresh := models.New(freshID, models.ChannelEmail, models.IntentLogin, "222222", models.DefaultOTPTTL, now)
	require.NoError(t, challenges.Create(ctx, fresh))

	_, err = counters.Increment(ctx, "gone", time.Minute)
	require.NoError(t, err)
	_, err = counters.Increment(ctx, "alive", time.Hour)
	require.NoError(t, err)

	lapsed := now.Add(time.Minute)
	require.NoError(t, denylist.Add(ctx, &denylistmodels.Entry{
		IdentifierHash: expiredID.Hash,
		Reason:         "abuse",
		CreatedAt:      now,
		ExpiresAt:      &lapsed,
	}))
	require.NoError(t, denylist.Add(ctx, &denylistmodels.Entry{
		IdentifierHash: freshID.Hash,
		Reason:         "abuse",
		CreatedAt:      now,
	}))

	// Two minutes out: the lapsed counter and denylist entry (one minute) and
	// the hour-old challenge are gone, but the fresh five-minute challenge is
	// still inside its window.
	later := now.Add(2 * time.Minute)
	svc, err := New(challenges, counters, denylist, WithClock(func() time.Time { return later }))
	require.NoError(t, err)

	res, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.DeletedChallenges)
	require.Equal(t, 1, res.DeletedCounters)
	require.Equal(t, 1, res.DeletedDenylistEntries)

	// The fresh artifacts survive the sweep.
	_, err = challenges.GetByID(ctx, fresh.ID)
	require.NoError(t, err)

	entry, err := denylist.IsBlocked(ctx, freshID.Hash, later)
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestCleanupRequiresChallengeStore(t *testing.T) {
	_, err := New(nil, nil, nil)
	require.Error(t, err)
}

func TestCleanupOptionalStores(t *testing.T) {
	svc, err := New(store.NewInMemory(), nil, nil)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.DeletedCounters)
	require.Zero(t, res.DeletedDenylistEntries)
}
