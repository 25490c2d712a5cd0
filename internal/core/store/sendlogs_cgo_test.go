//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishmail/wishmail/internal/core"
)

func TestRecordSendAndRecentLogs(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	day := time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC)

	alice, err := store.AddUser(ctx, "Alice", "alice@example.com", mustDOB(t, "1990-05-17"), day)
	require.NoError(t, err)

	require.NoError(t, store.RecordSend(ctx, alice.ID, core.SendStatusThrottled, "hourly limit reached (50 emails/hour)", day))
	require.NoError(t, store.RecordSend(ctx, alice.ID, core.SendStatusFailed, "smtp send: 535 auth failed", day.Add(time.Minute)))
	require.NoError(t, store.RecordSend(ctx, alice.ID, core.SendStatusSuccess, "", day.Add(2*time.Minute)))

	logs, err := store.RecentSendLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, core.SendStatusSuccess, logs[0].Status)
	assert.Empty(t, logs[0].ErrorMsg)
	assert.Equal(t, "Alice", logs[0].UserName)
	assert.Equal(t, "alice@example.com", logs[0].UserEmail)
	assert.Equal(t, core.SendStatusFailed, logs[1].Status)
	assert.Equal(t, "smtp send: 535 auth failed", logs[1].ErrorMsg)
	assert.Equal(t, core.SendStatusThrottled, logs[2].Status)

	limited, err := store.RecentSendLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	// Only the success stamped the year.
	fetched, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2025, fetched.LastSentYear)

	count, err := store.CountSends(ctx, core.SendStatusSuccess, day)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountSends(ctx, core.SendStatusFailed, day.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFailedSendKeepsUserDue(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	day := time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC)

	alice, err := store.AddUser(ctx, "Alice", "alice@example.com", mustDOB(t, "1990-05-17"), day)
	require.NoError(t, err)
	require.NoError(t, store.RecordSend(ctx, alice.ID, core.SendStatusFailed, "timeout", day))

	users, err := store.TodaysBirthdays(ctx, day)
	require.NoError(t, err)
	require.Len(t, users, 1)
}
