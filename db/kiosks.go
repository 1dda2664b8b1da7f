package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"kioskops/models"
)

// --- Kiosk Operations ---

// CreateKiosk creates or replaces a kiosk document
func (db *FirestoreDB) CreateKiosk(ctx context.Context, kiosk *models.Kiosk) error {
	_, err := db.client.Collection(colKiosks).Doc(kiosk.ID).Set(ctx, kiosk)
	if err != nil {
		return fmt.Errorf("failed to create kiosk: %w", err)
	}
	return nil
}

// GetKiosk retrieves a kiosk by ID
func (db *FirestoreDB) GetKiosk(ctx context.Context, kioskID string) (*models.Kiosk, error) {
	doc, err := db.client.Collection(colKiosks).Doc(kioskID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get kiosk: %w", err)
	}

	var kiosk models.Kiosk
	if err := doc.DataTo(&kiosk); err != nil {
		return nil, fmt.Errorf("failed to parse kiosk: %w", err)
	}
	kiosk.ID = doc.Ref.ID

	return &kiosk, nil
}

// GetAllKiosks retrieves all kiosks
func (db *FirestoreDB) GetAllKiosks(ctx context.Context) ([]models.Kiosk, error) {
	iter := db.client.Collection(colKiosks).Documents(ctx)
	defer iter.Stop()

	var kiosks []models.Kiosk
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate kiosks: %w", err)
		}

		var kiosk models.Kiosk
		if err := doc.DataTo(&kiosk); err != nil {
			continue
		}
		kiosk.ID = doc.Ref.ID
		kiosks = append(kiosks, kiosk)
	}

	return kiosks, nil
}

// SetKioskEmptied stamps lastEmptied after a full kiosk drops to near-empty
func (db *FirestoreDB) SetKioskEmptied(ctx context.Context, kioskID string, at time.Time) error {
	_, err := db.client.Collection(colKiosks).Doc(kioskID).Set(ctx, map[string]interface{}{
		"lastEmptied": at,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update kiosk lastEmptied: %w", err)
	}
	return nil
}
