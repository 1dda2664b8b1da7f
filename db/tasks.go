package db

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"kioskops/engine"
	"kioskops/models"
)

// --- Collection Task Operations ---

// HasActiveTask reports whether the kiosk already has a pending or
// in-progress task.
func (db *FirestoreDB) HasActiveTask(ctx context.Context, kioskID string) (bool, error) {
	iter := db.client.Collection(colTasks).
		Where("kioskId", "==", kioskID).
		Where("status", "in", []string{string(models.TaskPending), string(models.TaskInProgress)}).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query active tasks: %w", err)
	}
	return true, nil
}

// CreateTask creates a new collection task, assigning an ID when absent
func (db *FirestoreDB) CreateTask(ctx context.Context, task *models.CollectionTask) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	_, err := db.client.Collection(colTasks).Doc(task.ID).Set(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID
func (db *FirestoreDB) GetTask(ctx context.Context, taskID string) (*models.CollectionTask, error) {
	doc, err := db.client.Collection(colTasks).Doc(taskID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task models.CollectionTask
	if err := doc.DataTo(&task); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	task.ID = doc.Ref.ID

	return &task, nil
}

// PendingUnstartedTasks returns the zone's pending tasks not yet picked up
func (db *FirestoreDB) PendingUnstartedTasks(ctx context.Context, zone string) ([]models.CollectionTask, error) {
	iter := db.client.Collection(colTasks).
		Where("zone", "==", zone).
		Where("status", "==", string(models.TaskPending)).
		Where("startedAt", "==", nil).
		Documents(ctx)
	defer iter.Stop()

	var tasks []models.CollectionTask
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate tasks: %w", err)
		}

		var task models.CollectionTask
		if err := doc.DataTo(&task); err != nil {
			log.Printf("Warning: failed to parse task %s: %v", doc.Ref.ID, err)
			continue
		}
		task.ID = doc.Ref.ID
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// ReassignTasks applies handover updates in chunked sequential batches
func (db *FirestoreDB) ReassignTasks(ctx context.Context, updates []engine.TaskReassignment) error {
	return db.batchWrite(ctx, len(updates), func(b *firestore.WriteBatch, i int) {
		u := updates[i]
		ref := db.client.Collection(colTasks).Doc(u.TaskID)
		b.Set(ref, map[string]interface{}{
			"agentUid":          u.AgentUID,
			"agentId":           u.AgentID,
			"agentName":         u.AgentName,
			"assignedAt":        u.At,
			"reassignedAt":      u.At,
			"reassignedFromUid": u.FromUID,
			"updatedAt":         u.At,
		}, firestore.MergeAll)
	})
}

// CommitCompletion applies every completion side effect in one batch:
// task stamps, kiosk reset, agent stats, and the audit log entry. The
// batch fails or succeeds as a whole.
func (db *FirestoreDB) CommitCompletion(ctx context.Context, c engine.Completion) error {
	batch := db.client.Batch()

	taskRef := db.client.Collection(colTasks).Doc(c.TaskID)
	batch.Set(taskRef, map[string]interface{}{
		"postProcessedAt": c.At,
		"completedAt":     c.At,
	}, firestore.MergeAll)

	if c.KioskID != "" {
		kioskRef := db.client.Collection(colKiosks).Doc(c.KioskID)
		batch.Set(kioskRef, map[string]interface{}{
			"fillLevel":        0,
			"liquidHeight":     0,
			"lastCollected":    c.At,
			"lastEmptied":      c.At,
			"lastUpdated":      c.At,
			"assignedAgentUid": c.AgentUID,
			"assignedAgentId":  c.AgentID,
		}, firestore.MergeAll)
	}

	if c.AgentUID != "" {
		agentRef := db.client.Collection(colUsers).Doc(c.AgentUID)
		batch.Set(agentRef, map[string]interface{}{
			"tasksCompleted":      firestore.Increment(1),
			"lastTaskCompletedAt": c.At,
		}, firestore.MergeAll)
	}

	logRef := db.client.Collection(colLogs).Doc(uuid.NewString())
	batch.Set(logRef, map[string]interface{}{
		"taskId":              c.TaskID,
		"kioskId":             c.KioskID,
		"agentId":             c.AgentID,
		"completedAt":         c.At,
		"fillLevelAtCreation": c.FillLevelAtCreation,
		"proofPhotoUrl":       c.ProofPhotoURL,
		"createdAt":           c.At,
	})

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit completion batch: %w", err)
	}
	return nil
}

// AllCollectionLogs retrieves the audit log for CSV export
func (db *FirestoreDB) AllCollectionLogs(ctx context.Context) ([]models.CollectionLog, error) {
	iter := db.client.Collection(colLogs).OrderBy("completedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var logs []models.CollectionLog
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate collection logs: %w", err)
		}

		var entry models.CollectionLog
		if err := doc.DataTo(&entry); err != nil {
			log.Printf("Warning: failed to parse collection log %s: %v", doc.Ref.ID, err)
			continue
		}
		entry.ID = doc.Ref.ID
		logs = append(logs, entry)
	}

	return logs, nil
}
