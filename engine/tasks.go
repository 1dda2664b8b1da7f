// Package engine implements the task dispatch core: the collection-task
// lifecycle, the per-user aggregate ledger, the shift handover job and the
// ephemeral QR session manager. Components talk to the store through small
// interfaces so the Firestore layer can be swapped for fakes in tests.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"kioskops/config"
	"kioskops/models"
	"kioskops/shift"
)

// Completion bundles the side effects applied when a task reaches completed.
// The store must commit it as a single all-or-nothing batch.
type Completion struct {
	TaskID              string
	KioskID             string
	AgentUID            string
	AgentID             string
	FillLevelAtCreation int
	ProofPhotoURL       string
	At                  time.Time
}

// TaskStore is the store surface the task lifecycle engine needs.
type TaskStore interface {
	SetKioskEmptied(ctx context.Context, kioskID string, at time.Time) error
	HasActiveTask(ctx context.Context, kioskID string) (bool, error)
	CreateTask(ctx context.Context, task *models.CollectionTask) error
	DutyAgents(ctx context.Context, zone string, shiftType models.ShiftType) ([]models.User, error)
	CommitCompletion(ctx context.Context, c Completion) error
}

// Tasks is the task lifecycle engine.
type Tasks struct {
	store    TaskStore
	ops      config.OpsConfig
	resolver shift.Resolver
	now      func() time.Time
}

// NewTasks builds the engine. now may be nil for the wall clock.
func NewTasks(store TaskStore, ops config.OpsConfig, now func() time.Time) *Tasks {
	if now == nil {
		now = time.Now
	}
	return &Tasks{
		store:    store,
		ops:      ops,
		resolver: shift.Resolver{Offset: ops.TimezoneOffset, EndHour: ops.ShiftEndHour},
		now:      now,
	}
}

// HandleKioskUpdate reacts to a kiosk fill-level change. It performs two
// independent checks: the emptied-timestamp update (fill dropped from full
// to near-empty) and threshold-crossing task creation (fill rose past the
// dispatch threshold). A single update can trigger one or neither, never both.
func (e *Tasks) HandleKioskUpdate(ctx context.Context, kioskID string, before, after *models.Kiosk) error {
	if before == nil || after == nil {
		return nil
	}

	log.Printf("KIOSK UPDATE → %s | Before: %d%% | After: %d%%", kioskID, before.FillLevel, after.FillLevel)

	wasFull := before.FillLevel >= e.ops.FillLevelThreshold
	nowLow := after.FillLevel <= e.ops.EmptiedLevel

	if wasFull && nowLow {
		log.Printf("Kiosk %s was emptied → Updating lastEmptied.", kioskID)
		if err := e.store.SetKioskEmptied(ctx, kioskID, e.now()); err != nil {
			return fmt.Errorf("update lastEmptied for kiosk %s: %w", kioskID, err)
		}
	}

	crossedThreshold := before.FillLevel < e.ops.FillLevelThreshold &&
		after.FillLevel >= e.ops.FillLevelThreshold
	if !crossedThreshold {
		return nil
	}

	// Prevent duplicate active tasks (pending OR in_progress).
	active, err := e.store.HasActiveTask(ctx, kioskID)
	if err != nil {
		return fmt.Errorf("check active task for kiosk %s: %w", kioskID, err)
	}
	if active {
		log.Printf("Kiosk %s already has an active task.", kioskID)
		return nil
	}

	log.Printf("Creating NEW collection task for kiosk %s.", kioskID)

	now := e.now()
	task := &models.CollectionTask{
		KioskID:             kioskID,
		KioskName:           after.DisplayName(),
		Zone:                after.Zone,
		Status:              models.TaskPending,
		CreatedAt:           now,
		FillLevelAtCreation: after.FillLevel,
	}

	// Assign by zone + shift. No round robin: one duty agent per zone per shift.
	if after.Zone != "" {
		shiftType := e.resolver.AssignmentShift(now)
		agent, err := e.pickDutyAgent(ctx, after.Zone, shiftType)
		if err != nil {
			return fmt.Errorf("pick duty agent for kiosk %s: %w", kioskID, err)
		}
		if agent != nil {
			task.AgentUID = agent.UID
			task.AgentID = agent.AgentID
			task.AgentName = agentDisplayName(agent)
			task.AssignedAt = &now
		} else {
			log.Printf("No duty agent found for zone=%s shiftType=%s. Task will be unassigned.", after.Zone, shiftType)
		}
	}

	if err := e.store.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task for kiosk %s: %w", kioskID, err)
	}
	return nil
}

// HandleTaskUpdate applies completion side effects exactly once when a task
// transitions into completed. The postProcessedAt guard makes redelivered
// or duplicate events no-ops.
func (e *Tasks) HandleTaskUpdate(ctx context.Context, taskID string, before, after *models.CollectionTask) error {
	if before == nil || after == nil {
		return nil
	}
	if before.Status == after.Status {
		return nil
	}
	if after.Status != models.TaskCompleted {
		return nil
	}
	if after.PostProcessedAt != nil {
		log.Printf("Task %s already post-processed. Skipping.", taskID)
		return nil
	}

	log.Printf("Task %s marked completed. Post-processing...", taskID)

	at := e.now()
	if after.CompletedAt != nil {
		at = *after.CompletedAt
	}

	err := e.store.CommitCompletion(ctx, Completion{
		TaskID:              taskID,
		KioskID:             after.KioskID,
		AgentUID:            after.AgentUID,
		AgentID:             after.AgentID,
		FillLevelAtCreation: after.FillLevelAtCreation,
		ProofPhotoURL:       after.ProofPhotoURL,
		At:                  at,
	})
	if err != nil {
		return fmt.Errorf("post-process task %s: %w", taskID, err)
	}

	log.Printf("Post-processing for task %s completed.", taskID)
	return nil
}

// pickDutyAgent returns the single on-duty agent for zone+shiftType, or nil.
// If provisioning ever leaves more than one match, the lexicographically
// smallest agent code wins so the result stays reproducible.
func (e *Tasks) pickDutyAgent(ctx context.Context, zone string, shiftType models.ShiftType) (*models.User, error) {
	agents, err := e.store.DutyAgents(ctx, zone, shiftType)
	if err != nil {
		return nil, err
	}
	return chooseDutyAgent(agents), nil
}

func chooseDutyAgent(agents []models.User) *models.User {
	if len(agents) == 0 {
		return nil
	}
	sort.Slice(agents, func(i, j int) bool {
		return agentSortKey(&agents[i]) < agentSortKey(&agents[j])
	})
	return &agents[0]
}

func agentSortKey(a *models.User) string {
	if a.AgentID != "" {
		return a.AgentID
	}
	return a.UID
}

func agentDisplayName(a *models.User) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}
