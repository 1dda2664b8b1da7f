// Package db wraps Firestore behind the typed operations the engine and
// handlers need.
package db

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/option"
)

// Collection names. The latest dashboard revision is authoritative:
// collectionTasks (not collection_tasks), totalRecycled in grams.
const (
	colKiosks   = "kiosks"
	colTasks    = "collectionTasks"
	colUsers    = "users"
	colDeposits = "deposits"
	colSessions = "qrSessions"
	colCounters = "counters"
	colLogs     = "collectionLogs"

	subColHistory = "recyclingHistory"
)

// FirestoreDB wraps the Firestore client
type FirestoreDB struct {
	client *firestore.Client
	// maxBatchWrites caps writes per committed batch; Firestore rejects
	// batches over 500 operations.
	maxBatchWrites int
}

// NewFirestoreDB initializes a new Firestore client
func NewFirestoreDB(ctx context.Context, projectID, credentialsPath string, maxBatchWrites int) (*FirestoreDB, error) {
	opt := option.WithCredentialsFile(credentialsPath)

	config := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	log.Printf("✅ Connected to Firestore project: %s", projectID)

	if maxBatchWrites <= 0 {
		maxBatchWrites = 450
	}
	return &FirestoreDB{
		client:         client,
		maxBatchWrites: maxBatchWrites,
	}, nil
}

// Close closes the Firestore client
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// Client exposes the raw client for snapshot listeners.
func (db *FirestoreDB) Client() *firestore.Client {
	return db.client
}

// batchWrite invokes add once per item, committing a fresh batch every time
// the per-batch write budget is reached. Batches commit sequentially so a
// timeout loses at most one chunk of progress.
func (db *FirestoreDB) batchWrite(ctx context.Context, count int, add func(b *firestore.WriteBatch, i int)) error {
	batch := db.client.Batch()
	ops := 0

	for i := 0; i < count; i++ {
		add(batch, i)
		ops++

		if ops >= db.maxBatchWrites {
			if _, err := batch.Commit(ctx); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			batch = db.client.Batch()
			ops = 0
		}
	}

	if ops > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}
	return nil
}
