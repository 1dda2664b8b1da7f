package db

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/api/iterator"

	"kioskops/models"
)

// --- Deposit Operations ---

// AllDeposits retrieves the full deposit set for an aggregate rebuild
func (db *FirestoreDB) AllDeposits(ctx context.Context) ([]models.Deposit, error) {
	iter := db.client.Collection(colDeposits).Documents(ctx)
	defer iter.Stop()

	var deposits []models.Deposit
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate deposits: %w", err)
		}

		var deposit models.Deposit
		if err := doc.DataTo(&deposit); err != nil {
			log.Printf("Warning: failed to parse deposit %s: %v", doc.Ref.ID, err)
			continue
		}
		deposit.ID = doc.Ref.ID
		deposits = append(deposits, deposit)
	}

	return deposits, nil
}
