package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kioskops/engine"
	"kioskops/models"
)

// --- User Operations ---

// CreateUser creates a new user profile document
func (db *FirestoreDB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := db.client.Collection(colUsers).Doc(user.UID).Set(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by UID
func (db *FirestoreDB) GetUser(ctx context.Context, uid string) (*models.User, error) {
	doc, err := db.client.Collection(colUsers).Doc(uid).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	user.UID = doc.Ref.ID

	return &user, nil
}

// UserExists reports whether a profile document exists for uid.
func (db *FirestoreDB) UserExists(ctx context.Context, uid string) (bool, error) {
	_, err := db.client.Collection(colUsers).Doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return true, nil
}

// GetUserByEmail retrieves a user by email
func (db *FirestoreDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	iter := db.client.Collection(colUsers).
		Where("email", "==", email).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("user not found: %s", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	user.UID = doc.Ref.ID

	return &user, nil
}

// DeleteUser removes the user's profile document
func (db *FirestoreDB) DeleteUser(ctx context.Context, uid string) error {
	if _, err := db.client.Collection(colUsers).Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps a successful login
func (db *FirestoreDB) UpdateLastLogin(ctx context.Context, uid string, at time.Time) error {
	_, err := db.client.Collection(colUsers).Doc(uid).Set(ctx, map[string]interface{}{
		"lastLogin": at,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// DutyAgents returns the active agents covering a zone and shift
func (db *FirestoreDB) DutyAgents(ctx context.Context, zone string, shiftType models.ShiftType) ([]models.User, error) {
	iter := db.client.Collection(colUsers).
		Where("role", "==", string(models.RoleAgent)).
		Where("active", "==", true).
		Where("zone", "==", zone).
		Where("shiftType", "==", string(shiftType)).
		Documents(ctx)
	defer iter.Stop()

	var agents []models.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query duty agents: %w", err)
		}

		var agent models.User
		if err := doc.DataTo(&agent); err != nil {
			log.Printf("Warning: failed to parse agent %s: %v", doc.Ref.ID, err)
			continue
		}
		agent.UID = doc.Ref.ID
		agents = append(agents, agent)
	}

	return agents, nil
}

// UsersWithEmailUpdates returns users opted in to email reports
func (db *FirestoreDB) UsersWithEmailUpdates(ctx context.Context) ([]models.User, error) {
	iter := db.client.Collection(colUsers).
		Where("emailUpdates", "==", true).
		Documents(ctx)
	defer iter.Stop()

	var users []models.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate users: %w", err)
		}

		var user models.User
		if err := doc.DataTo(&user); err != nil {
			log.Printf("Warning: failed to parse user %s: %v", doc.Ref.ID, err)
			continue
		}
		user.UID = doc.Ref.ID
		users = append(users, user)
	}

	return users, nil
}

// ApplyUserDelta increments aggregate fields with atomic operations so
// concurrent deposit handlers never lose updates.
func (db *FirestoreDB) ApplyUserDelta(ctx context.Context, uid string, delta engine.UserDelta) error {
	data := map[string]interface{}{
		"points":        firestore.Increment(delta.Points),
		"totalRecycled": firestore.Increment(delta.Grams),
		"depositCount":  firestore.Increment(delta.Deposits),
	}
	if delta.LastDepositAt != nil {
		data["lastDepositAt"] = *delta.LastDepositAt
	}

	_, err := db.client.Collection(colUsers).Doc(uid).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to apply user delta: %w", err)
	}
	return nil
}

// AppendRecyclingEntry adds an immutable per-user history record
func (db *FirestoreDB) AppendRecyclingEntry(ctx context.Context, uid string, entry models.RecyclingEntry) error {
	_, _, err := db.client.Collection(colUsers).Doc(uid).Collection(subColHistory).Add(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to append recycling history: %w", err)
	}
	return nil
}

// OverwriteAggregates replaces aggregate fields absolutely (not
// incrementally) for every listed user, in chunked sequential batches.
func (db *FirestoreDB) OverwriteAggregates(ctx context.Context, aggs map[string]engine.Aggregates, at time.Time) error {
	ids := engine.SortedUserIDs(aggs)
	return db.batchWrite(ctx, len(ids), func(b *firestore.WriteBatch, i int) {
		uid := ids[i]
		agg := aggs[uid]
		ref := db.client.Collection(colUsers).Doc(uid)
		b.Set(ref, map[string]interface{}{
			"totalRecycled":       agg.Grams,
			"depositCount":        agg.Deposits,
			"points":              agg.Points,
			"aggregatesRebuiltAt": at,
		}, firestore.MergeAll)
	})
}

// NextAgentID allocates the next sequential agent code (AGT-001, ...) from
// the counters/agents document. The transaction serializes concurrent
// agent-creation requests so codes never collide.
func (db *FirestoreDB) NextAgentID(ctx context.Context) (string, error) {
	counterRef := db.client.Collection(colCounters).Doc("agents")

	var code string
	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		next := int64(1)

		snap, err := tx.Get(counterRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			if raw, err := snap.DataAt("next"); err == nil {
				if n, ok := raw.(int64); ok && n > 0 {
					next = n
				}
			}
		}

		code = fmt.Sprintf("AGT-%03d", next)
		return tx.Set(counterRef, map[string]interface{}{"next": next + 1}, firestore.MergeAll)
	})
	if err != nil {
		return "", fmt.Errorf("failed to allocate agent id: %w", err)
	}
	return code, nil
}
