package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskops/models"
)

func TestHandoverReassignsPendingTasksOldestFirst(t *testing.T) {
	store := newFakeHandoverStore()
	store.agents["Zone A/weekend"] = []models.User{
		{UID: "agent-we", AgentID: "AGT-002", Name: "Farid Ismail"},
	}

	base := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)
	store.pending["Zone A"] = []models.CollectionTask{
		{ID: "task-new", AgentUID: "agent-wd", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "task-old", AgentUID: "agent-wd", CreatedAt: base},
		{ID: "task-keep", AgentUID: "agent-we", CreatedAt: base.Add(time.Hour)},
	}

	handoverAt := base.Add(8 * time.Hour)
	handover := NewHandover(store, testOps(), fixedNow(handoverAt))
	report := handover.Run(context.Background(), models.ShiftWeekend)

	assert.Equal(t, models.ShiftWeekend, report.TargetShiftType)
	assert.Equal(t, 2, report.Reassigned)
	assert.Equal(t, 2, report.PerZone["Zone A"])
	assert.Equal(t, 0, report.PerZone["Zone B"])
	assert.Equal(t, 0, report.PerZone["Zone C"])

	require.Len(t, store.reassigned, 2)
	assert.Equal(t, "task-old", store.reassigned[0].TaskID)
	assert.Equal(t, "task-new", store.reassigned[1].TaskID)
	for _, u := range store.reassigned {
		assert.Equal(t, "agent-we", u.AgentUID)
		assert.Equal(t, "AGT-002", u.AgentID)
		assert.Equal(t, "Farid Ismail", u.AgentName)
		assert.Equal(t, "agent-wd", u.FromUID)
		assert.Equal(t, handoverAt, u.At)
	}
}

func TestHandoverZoneWithoutAgentReportsZero(t *testing.T) {
	store := newFakeHandoverStore()
	store.pending["Zone A"] = []models.CollectionTask{{ID: "task-1", AgentUID: "agent-old"}}

	handover := NewHandover(store, testOps(), nil)
	report := handover.Run(context.Background(), models.ShiftWeekday)

	assert.Equal(t, 0, report.Reassigned)
	assert.Empty(t, store.reassigned)
}

func TestHandoverZoneFailureDoesNotAbortOthers(t *testing.T) {
	store := newFakeHandoverStore()
	store.zoneErrs["Zone A"] = errors.New("firestore unavailable")
	store.agents["Zone B/weekday"] = []models.User{{UID: "agent-b", AgentID: "AGT-003"}}
	store.pending["Zone B"] = []models.CollectionTask{{ID: "task-b", AgentUID: "agent-old"}}

	handover := NewHandover(store, testOps(), nil)
	report := handover.Run(context.Background(), models.ShiftWeekday)

	assert.Equal(t, 0, report.PerZone["Zone A"])
	assert.Equal(t, 1, report.PerZone["Zone B"])
	assert.Equal(t, 1, report.Reassigned)
	require.Len(t, store.reassigned, 1)
	assert.Equal(t, "task-b", store.reassigned[0].TaskID)
}

func TestHandoverSkipsTasksAlreadyOnTargetAgent(t *testing.T) {
	store := newFakeHandoverStore()
	store.agents["Zone A/weekend"] = []models.User{{UID: "agent-we", AgentID: "AGT-002"}}
	store.pending["Zone A"] = []models.CollectionTask{
		{ID: "task-1", AgentUID: "agent-we"},
		{ID: "task-2", AgentUID: "agent-we"},
	}

	handover := NewHandover(store, testOps(), nil)
	report := handover.Run(context.Background(), models.ShiftWeekend)

	assert.Equal(t, 0, report.Reassigned)
	assert.Empty(t, store.reassigned)
}
