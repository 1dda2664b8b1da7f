package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"kioskops/apperr"
	"kioskops/config"
	"kioskops/models"
)

// SessionStore is the store surface the QR session manager needs.
type SessionStore interface {
	// CreateSessionReplacingActive marks every other active session of the
	// same uid as expired and creates s, in one atomic batch. It returns
	// how many prior sessions were expired.
	CreateSessionReplacingActive(ctx context.Context, s *models.QrSession) (int, error)
	// MutateSession runs fn against the stored session inside a
	// transaction. Mutations fn makes are persisted even when fn returns a
	// typed error; that error is then returned to the caller. A missing
	// token yields apperr.NotFound.
	MutateSession(ctx context.Context, token string, fn func(*models.QrSession) error) error
	// DeleteSessionsExpiringBefore removes sessions with expiresAt <= t,
	// any status, in bounded batches. Returns the number deleted.
	DeleteSessionsExpiringBefore(ctx context.Context, t time.Time) (int, error)
	// DeleteUsedSessionsBefore removes used sessions with usedAt <= cutoff.
	DeleteUsedSessionsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionGrant is returned to the caller for countdown display.
type SessionGrant struct {
	Token            string    `json:"token"`
	ExpiresInSeconds int       `json:"expiresInSeconds"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// Sessions manages short-lived single-use QR handoff tokens.
type Sessions struct {
	store SessionStore
	ops   config.OpsConfig
	now   func() time.Time
}

// NewSessions builds the manager. now may be nil for the wall clock.
func NewSessions(store SessionStore, ops config.OpsConfig, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{store: store, ops: ops, now: now}
}

// newToken returns a 128-bit random opaque token, hex encoded.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create issues a fresh session for uid, expiring any prior active session
// so at most one is active per user.
func (s *Sessions) Create(ctx context.Context, uid string) (*SessionGrant, error) {
	token, err := newToken()
	if err != nil {
		return nil, apperr.New(apperr.Internal, "could not generate session token")
	}

	now := s.now()
	session := &models.QrSession{
		Token:     token,
		UID:       uid,
		Status:    models.SessionActive,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ops.QrSessionTTL),
	}

	expired, err := s.store.CreateSessionReplacingActive(ctx, session)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "could not create session")
	}
	if expired > 0 {
		log.Printf("Expired %d prior active session(s) for uid=%s", expired, uid)
	}

	return &SessionGrant{
		Token:            token,
		ExpiresInSeconds: int(s.ops.QrSessionTTL / time.Second),
		ExpiresAt:        session.ExpiresAt,
	}, nil
}

// Consume redeems a session token on behalf of a kiosk and returns the
// owning uid. The transaction enforces single use: concurrent attempts see
// the status flip and fail with FailedPrecondition. A session past its TTL
// fails with DeadlineExceeded and is flipped to expired as a side effect.
func (s *Sessions) Consume(ctx context.Context, token, kioskID string) (string, error) {
	if token == "" || kioskID == "" {
		return "", apperr.New(apperr.InvalidArgument, "Missing token/kioskId.")
	}

	var uid string
	err := s.store.MutateSession(ctx, token, func(sess *models.QrSession) error {
		if sess.Status != models.SessionActive {
			return apperr.New(apperr.FailedPrecondition, "QR already used/expired.")
		}

		now := s.now()
		if now.After(sess.ExpiresAt) {
			sess.Status = models.SessionExpired
			sess.ExpiredAt = &now
			return apperr.New(apperr.DeadlineExceeded, "QR expired.")
		}

		sess.Status = models.SessionUsed
		sess.UsedAt = &now
		sess.UsedByKioskID = kioskID
		uid = sess.UID
		return nil
	})
	if err != nil {
		return "", err
	}
	return uid, nil
}

// CleanupReport summarizes a garbage-collection run.
type CleanupReport struct {
	Expired int `json:"expired"`
	UsedOld int `json:"usedOld"`
}

// Cleanup deletes every session past its expiry and every used session
// older than the retention window.
func (s *Sessions) Cleanup(ctx context.Context) (*CleanupReport, error) {
	now := s.now()

	expired, err := s.store.DeleteSessionsExpiringBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}

	usedOld, err := s.store.DeleteUsedSessionsBefore(ctx, now.Add(-s.ops.QrSessionRetention))
	if err != nil {
		return nil, fmt.Errorf("delete old used sessions: %w", err)
	}

	log.Printf("cleanupQrSessions: expired=%d, usedOld=%d", expired, usedOld)
	return &CleanupReport{Expired: expired, UsedOld: usedOld}, nil
}
