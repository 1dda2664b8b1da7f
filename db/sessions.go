package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kioskops/apperr"
	"kioskops/models"
)

// --- QR Session Operations ---

// CreateSessionReplacingActive expires every other active session of the
// same uid and creates s in a single batch, preserving the single-active-
// session-per-user invariant.
func (db *FirestoreDB) CreateSessionReplacingActive(ctx context.Context, s *models.QrSession) (int, error) {
	iter := db.client.Collection(colSessions).
		Where("uid", "==", s.UID).
		Where("status", "==", string(models.SessionActive)).
		Documents(ctx)
	defer iter.Stop()

	batch := db.client.Batch()
	expired := 0

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to query active sessions: %w", err)
		}

		batch.Set(doc.Ref, map[string]interface{}{
			"status":    string(models.SessionExpired),
			"expiredAt": s.CreatedAt,
		}, firestore.MergeAll)
		expired++
	}

	batch.Set(db.client.Collection(colSessions).Doc(s.Token), s)

	if _, err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	return expired, nil
}

// MutateSession runs fn against the session inside a transaction.
// Mutations fn makes are committed even when fn returns a typed error, so
// a consume attempt on an expired session can both flip the status and
// fail; that error is returned after the commit. A missing token yields
// apperr.NotFound.
func (db *FirestoreDB) MutateSession(ctx context.Context, token string, fn func(*models.QrSession) error) error {
	ref := db.client.Collection(colSessions).Doc(token)

	var outcome error
	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		outcome = nil

		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			outcome = apperr.New(apperr.NotFound, "Invalid QR.")
			return nil
		}
		if err != nil {
			return err
		}

		var sess models.QrSession
		if err := snap.DataTo(&sess); err != nil {
			return fmt.Errorf("failed to parse session: %w", err)
		}
		sess.Token = token
		before := sess

		outcome = fn(&sess)
		if sess != before {
			return tx.Set(ref, &sess)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session transaction failed: %w", err)
	}
	return outcome
}

// DeleteSessionsExpiringBefore removes every session with expiresAt <= t,
// looping bounded pages until the query drains.
func (db *FirestoreDB) DeleteSessionsExpiringBefore(ctx context.Context, t time.Time) (int, error) {
	q := db.client.Collection(colSessions).Where("expiresAt", "<=", t)
	return db.deleteByQuery(ctx, q)
}

// DeleteUsedSessionsBefore removes used sessions older than the retention cutoff
func (db *FirestoreDB) DeleteUsedSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	q := db.client.Collection(colSessions).
		Where("status", "==", string(models.SessionUsed)).
		Where("usedAt", "<=", cutoff)
	return db.deleteByQuery(ctx, q)
}

func (db *FirestoreDB) deleteByQuery(ctx context.Context, q firestore.Query) (int, error) {
	total := 0
	for {
		iter := q.Limit(500).Documents(ctx)
		docs, err := iter.GetAll()
		if err != nil {
			return total, fmt.Errorf("failed to query sessions: %w", err)
		}
		if len(docs) == 0 {
			return total, nil
		}

		err = db.batchWrite(ctx, len(docs), func(b *firestore.WriteBatch, i int) {
			b.Delete(docs[i].Ref)
		})
		if err != nil {
			return total, err
		}
		total += len(docs)
	}
}
