package engine

import (
	"context"
	"log"
	"sort"
	"time"

	"kioskops/config"
	"kioskops/models"
)

// TaskReassignment redirects one pending task to the new duty agent.
type TaskReassignment struct {
	TaskID    string
	AgentUID  string
	AgentID   string
	AgentName string
	// FromUID is the previous assignee, kept for the audit trail.
	FromUID string
	At      time.Time
}

// HandoverStore is the store surface the shift handover job needs.
type HandoverStore interface {
	DutyAgents(ctx context.Context, zone string, shiftType models.ShiftType) ([]models.User, error)
	// PendingUnstartedTasks returns tasks in the zone with status pending
	// and no startedAt stamp.
	PendingUnstartedTasks(ctx context.Context, zone string) ([]models.CollectionTask, error)
	// ReassignTasks applies the updates in chunked batches committed
	// sequentially.
	ReassignTasks(ctx context.Context, updates []TaskReassignment) error
}

// HandoverReport is the observable result of a handover run.
type HandoverReport struct {
	TargetShiftType models.ShiftType `json:"targetShiftType"`
	Reassigned      int              `json:"reassigned"`
	PerZone         map[string]int   `json:"perZone"`
}

// Handover moves not-yet-started pending tasks to the agent coming on duty.
type Handover struct {
	store HandoverStore
	ops   config.OpsConfig
	now   func() time.Time
}

// NewHandover builds the job. now may be nil for the wall clock.
func NewHandover(store HandoverStore, ops config.OpsConfig, now func() time.Time) *Handover {
	if now == nil {
		now = time.Now
	}
	return &Handover{store: store, ops: ops, now: now}
}

// Run reassigns pending unstarted tasks in every configured zone to the
// duty agent of the target shift. A zone with no duty agent, or a zone
// whose reassignment fails, reports zero and never aborts the other zones.
func (h *Handover) Run(ctx context.Context, target models.ShiftType) *HandoverReport {
	log.Printf("shift handover: targetShiftType=%s", target)

	report := &HandoverReport{
		TargetShiftType: target,
		PerZone:         make(map[string]int),
	}

	for _, zone := range h.ops.Zones {
		n, err := h.runZone(ctx, zone, target)
		if err != nil {
			log.Printf("❌ shift handover failed for zone=%s: %v", zone, err)
			report.PerZone[zone] = 0
			continue
		}
		report.PerZone[zone] = n
		report.Reassigned += n
	}

	return report
}

func (h *Handover) runZone(ctx context.Context, zone string, target models.ShiftType) (int, error) {
	agents, err := h.store.DutyAgents(ctx, zone, target)
	if err != nil {
		return 0, err
	}
	agent := chooseDutyAgent(agents)
	if agent == nil {
		log.Printf("No duty agent for zone=%s, shiftType=%s", zone, target)
		return 0, nil
	}

	tasks, err := h.store.PendingUnstartedTasks(ctx, zone)
	if err != nil {
		return 0, err
	}

	// Skip tasks already on the target agent: no-op write avoidance.
	candidates := tasks[:0:0]
	for _, t := range tasks {
		if t.AgentUID != agent.UID {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	// Oldest first, so longest-waiting kiosks keep their place in line.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	at := h.now()
	updates := make([]TaskReassignment, 0, len(candidates))
	for _, t := range candidates {
		updates = append(updates, TaskReassignment{
			TaskID:    t.ID,
			AgentUID:  agent.UID,
			AgentID:   agent.AgentID,
			AgentName: agentDisplayName(agent),
			FromUID:   t.AgentUID,
			At:        at,
		})
	}

	if err := h.store.ReassignTasks(ctx, updates); err != nil {
		return 0, err
	}

	log.Printf("shift handover: zone=%s reassigned=%d", zone, len(updates))
	return len(updates), nil
}
