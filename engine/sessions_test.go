package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskops/apperr"
	"kioskops/models"
)

func TestCreateSessionIssuesOpaqueToken(t *testing.T) {
	store := newFakeSessionStore()
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(store, testOps(), fixedNow(now))

	grant, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Len(t, grant.Token, 32) // 16 random bytes, hex encoded
	assert.Equal(t, 60, grant.ExpiresInSeconds)
	assert.Equal(t, now.Add(60*time.Second), grant.ExpiresAt)

	stored := store.sessions[grant.Token]
	require.NotNil(t, stored)
	assert.Equal(t, "user-1", stored.UID)
	assert.Equal(t, models.SessionActive, stored.Status)
}

func TestCreateSessionExpiresPriorActive(t *testing.T) {
	store := newFakeSessionStore()
	sessions := NewSessions(store, testOps(), nil)

	first, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)
	second, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)
	other, err := sessions.Create(context.Background(), "user-2")
	require.NoError(t, err)

	assert.Equal(t, models.SessionExpired, store.sessions[first.Token].Status)
	assert.Equal(t, models.SessionActive, store.sessions[second.Token].Status)
	assert.Equal(t, models.SessionActive, store.sessions[other.Token].Status)
}

func TestConsumeSessionReturnsOwner(t *testing.T) {
	store := newFakeSessionStore()
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(store, testOps(), fixedNow(now))

	grant, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	uid, err := sessions.Consume(context.Background(), grant.Token, "kiosk-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)

	stored := store.sessions[grant.Token]
	assert.Equal(t, models.SessionUsed, stored.Status)
	assert.Equal(t, "kiosk-1", stored.UsedByKioskID)
	require.NotNil(t, stored.UsedAt)

	// Single use: the second redemption sees the flipped status.
	_, err = sessions.Consume(context.Background(), grant.Token, "kiosk-2")
	assert.Equal(t, apperr.FailedPrecondition, apperr.CodeOf(err))
}

func TestConsumeSessionPastTTLExpiresAndRejects(t *testing.T) {
	store := newFakeSessionStore()
	clock := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(store, testOps(), func() time.Time { return clock })

	grant, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	clock = clock.Add(61 * time.Second)
	_, err = sessions.Consume(context.Background(), grant.Token, "kiosk-1")
	assert.Equal(t, apperr.DeadlineExceeded, apperr.CodeOf(err))

	// The expiry flip persists even though the consume failed.
	stored := store.sessions[grant.Token]
	assert.Equal(t, models.SessionExpired, stored.Status)
	require.NotNil(t, stored.ExpiredAt)
}

func TestConsumeSessionValidation(t *testing.T) {
	sessions := NewSessions(newFakeSessionStore(), testOps(), nil)

	_, err := sessions.Consume(context.Background(), "", "kiosk-1")
	assert.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))

	_, err = sessions.Consume(context.Background(), "token", "")
	assert.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))

	_, err = sessions.Consume(context.Background(), "no-such-token", "kiosk-1")
	assert.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

func TestCleanupDeletesExpiredAndOldUsed(t *testing.T) {
	store := newFakeSessionStore()
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	usedLongAgo := now.Add(-25 * time.Hour)
	usedRecently := now.Add(-1 * time.Hour)

	store.sessions["expired"] = &models.QrSession{
		Token: "expired", UID: "u1", Status: models.SessionActive,
		ExpiresAt: now.Add(-time.Minute),
	}
	store.sessions["old-used"] = &models.QrSession{
		Token: "old-used", UID: "u2", Status: models.SessionUsed,
		ExpiresAt: now.Add(time.Hour), UsedAt: &usedLongAgo,
	}
	store.sessions["fresh-used"] = &models.QrSession{
		Token: "fresh-used", UID: "u3", Status: models.SessionUsed,
		ExpiresAt: now.Add(time.Hour), UsedAt: &usedRecently,
	}
	store.sessions["live"] = &models.QrSession{
		Token: "live", UID: "u4", Status: models.SessionActive,
		ExpiresAt: now.Add(30 * time.Second),
	}

	sessions := NewSessions(store, testOps(), fixedNow(now))
	report, err := sessions.Cleanup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 1, report.UsedOld)
	assert.NotContains(t, store.sessions, "expired")
	assert.NotContains(t, store.sessions, "old-used")
	assert.Contains(t, store.sessions, "fresh-used")
	assert.Contains(t, store.sessions, "live")
}
