package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskops/models"
)

// Tuesday 10:00 local time: weekday shift.
var weekdayMorning = time.Date(2025, 6, 3, 2, 0, 0, 0, time.UTC)

func kioskAt(fill int) *models.Kiosk {
	return &models.Kiosk{
		Name:      "Central Mall Kiosk",
		Zone:      "Zone A",
		FillLevel: fill,
	}
}

func TestHandleKioskUpdateCreatesTaskOnThresholdCrossing(t *testing.T) {
	store := newFakeTaskStore()
	store.addAgent("Zone A", models.ShiftWeekday, models.User{
		UID: "agent-1", AgentID: "AGT-001", Name: "Aida Rahman",
	})
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	err := engine.HandleKioskUpdate(context.Background(), "kiosk-1", kioskAt(75), kioskAt(85))
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	task := store.created[0]
	assert.Equal(t, "kiosk-1", task.KioskID)
	assert.Equal(t, "Central Mall Kiosk", task.KioskName)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Equal(t, 85, task.FillLevelAtCreation)
	assert.Equal(t, "agent-1", task.AgentUID)
	assert.Equal(t, "AGT-001", task.AgentID)
	assert.Equal(t, "Aida Rahman", task.AgentName)
	require.NotNil(t, task.AssignedAt)
	assert.Equal(t, weekdayMorning, *task.AssignedAt)
}

func TestHandleKioskUpdateNoTaskWithoutCrossing(t *testing.T) {
	store := newFakeTaskStore()
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	// Already above threshold before the update: no new crossing.
	err := engine.HandleKioskUpdate(context.Background(), "kiosk-1", kioskAt(85), kioskAt(95))
	require.NoError(t, err)
	assert.Empty(t, store.created)

	// Still below threshold.
	err = engine.HandleKioskUpdate(context.Background(), "kiosk-1", kioskAt(40), kioskAt(79))
	require.NoError(t, err)
	assert.Empty(t, store.created)
	assert.Zero(t, store.activeChecks)
}

func TestHandleKioskUpdateSkipsDuplicateActiveTask(t *testing.T) {
	store := newFakeTaskStore()
	store.activeTasks["kiosk-1"] = true
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	err := engine.HandleKioskUpdate(context.Background(), "kiosk-1", kioskAt(75), kioskAt(90))
	require.NoError(t, err)
	assert.Empty(t, store.created)
}

func TestHandleKioskUpdateStampsLastEmptied(t *testing.T) {
	store := newFakeTaskStore()
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	err := engine.HandleKioskUpdate(context.Background(), "kiosk-1", kioskAt(90), kioskAt(5))
	require.NoError(t, err)

	assert.Equal(t, []string{"kiosk-1"}, store.emptied)
	assert.Empty(t, store.created)
}

func TestHandleKioskUpdateUnassignedWhenNoDutyAgent(t *testing.T) {
	store := newFakeTaskStore()
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	err := engine.HandleKioskUpdate(context.Background(), "kiosk-1", kioskAt(0), kioskAt(100))
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	task := store.created[0]
	assert.Empty(t, task.AgentUID)
	assert.Nil(t, task.AssignedAt)
	assert.Equal(t, models.TaskPending, task.Status)
}

func TestHandleKioskUpdatePicksLowestAgentCode(t *testing.T) {
	store := newFakeTaskStore()
	store.addAgent("Zone A", models.ShiftWeekday, models.User{UID: "u-b", AgentID: "AGT-042"})
	store.addAgent("Zone A", models.ShiftWeekday, models.User{UID: "u-a", AgentID: "AGT-007"})
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	err := engine.HandleKioskUpdate(context.Background(), "kiosk-1", kioskAt(79), kioskAt(80))
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, "AGT-007", store.created[0].AgentID)
}

func TestHandleTaskUpdateCommitsCompletionOnce(t *testing.T) {
	store := newFakeTaskStore()
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	completedAt := weekdayMorning.Add(2 * time.Hour)
	before := &models.CollectionTask{KioskID: "kiosk-1", Status: models.TaskInProgress}
	after := &models.CollectionTask{
		KioskID:             "kiosk-1",
		AgentUID:            "agent-1",
		AgentID:             "AGT-001",
		Status:              models.TaskCompleted,
		CompletedAt:         &completedAt,
		FillLevelAtCreation: 85,
		ProofPhotoURL:       "https://example.com/proof.jpg",
	}

	err := engine.HandleTaskUpdate(context.Background(), "task-1", before, after)
	require.NoError(t, err)

	require.Len(t, store.completions, 1)
	c := store.completions[0]
	assert.Equal(t, "task-1", c.TaskID)
	assert.Equal(t, "kiosk-1", c.KioskID)
	assert.Equal(t, "agent-1", c.AgentUID)
	assert.Equal(t, 85, c.FillLevelAtCreation)
	assert.Equal(t, completedAt, c.At)

	// Redelivered event: task already stamped, side effects must not repeat.
	processed := *after
	processed.PostProcessedAt = &completedAt
	err = engine.HandleTaskUpdate(context.Background(), "task-1", before, &processed)
	require.NoError(t, err)
	assert.Len(t, store.completions, 1)
}

func TestHandleTaskUpdateIgnoresNonCompletionChanges(t *testing.T) {
	store := newFakeTaskStore()
	engine := NewTasks(store, testOps(), fixedNow(weekdayMorning))

	pending := &models.CollectionTask{Status: models.TaskPending}
	inProgress := &models.CollectionTask{Status: models.TaskInProgress}

	require.NoError(t, engine.HandleTaskUpdate(context.Background(), "task-1", pending, inProgress))
	require.NoError(t, engine.HandleTaskUpdate(context.Background(), "task-1", inProgress, inProgress))
	assert.Empty(t, store.completions)
}
