package engine

import (
	"context"
	"time"

	"kioskops/apperr"
	"kioskops/config"
	"kioskops/models"
)

// testOps returns the production defaults the fakes and tests share.
func testOps() config.OpsConfig {
	return config.OpsConfig{
		FillLevelThreshold: 80,
		EmptiedLevel:       10,
		Zones:              []string{"Zone A", "Zone B", "Zone C"},
		TimezoneOffset:     8 * time.Hour,
		ShiftEndHour:       18,
		QrSessionTTL:       60 * time.Second,
		QrSessionRetention: 24 * time.Hour,
		MaxBatchWrites:     450,
		GramsPerPoint:      10,
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeTaskStore records engine calls for the task lifecycle tests.
type fakeTaskStore struct {
	activeTasks map[string]bool
	agents      map[string][]models.User // key: zone + "/" + shiftType

	created      []*models.CollectionTask
	emptied      []string
	completions  []Completion
	activeChecks int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		activeTasks: make(map[string]bool),
		agents:      make(map[string][]models.User),
	}
}

func (f *fakeTaskStore) addAgent(zone string, shiftType models.ShiftType, agent models.User) {
	key := zone + "/" + string(shiftType)
	f.agents[key] = append(f.agents[key], agent)
}

func (f *fakeTaskStore) SetKioskEmptied(ctx context.Context, kioskID string, at time.Time) error {
	f.emptied = append(f.emptied, kioskID)
	return nil
}

func (f *fakeTaskStore) HasActiveTask(ctx context.Context, kioskID string) (bool, error) {
	f.activeChecks++
	return f.activeTasks[kioskID], nil
}

func (f *fakeTaskStore) CreateTask(ctx context.Context, task *models.CollectionTask) error {
	f.created = append(f.created, task)
	f.activeTasks[task.KioskID] = true
	return nil
}

func (f *fakeTaskStore) DutyAgents(ctx context.Context, zone string, shiftType models.ShiftType) ([]models.User, error) {
	return f.agents[zone+"/"+string(shiftType)], nil
}

func (f *fakeTaskStore) CommitCompletion(ctx context.Context, c Completion) error {
	f.completions = append(f.completions, c)
	return nil
}

// fakeLedgerStore accumulates deltas like Firestore increments would.
type fakeLedgerStore struct {
	totals   map[string]Aggregates
	history  map[string][]models.RecyclingEntry
	deposits []models.Deposit

	overwrites  int
	rebuiltAggs map[string]Aggregates
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		totals:  make(map[string]Aggregates),
		history: make(map[string][]models.RecyclingEntry),
	}
}

func (f *fakeLedgerStore) ApplyUserDelta(ctx context.Context, uid string, delta UserDelta) error {
	agg := f.totals[uid]
	agg.Points += delta.Points
	agg.Grams += delta.Grams
	agg.Deposits += delta.Deposits
	f.totals[uid] = agg
	return nil
}

func (f *fakeLedgerStore) AppendRecyclingEntry(ctx context.Context, uid string, entry models.RecyclingEntry) error {
	f.history[uid] = append(f.history[uid], entry)
	return nil
}

func (f *fakeLedgerStore) AllDeposits(ctx context.Context) ([]models.Deposit, error) {
	return f.deposits, nil
}

func (f *fakeLedgerStore) OverwriteAggregates(ctx context.Context, aggs map[string]Aggregates, at time.Time) error {
	f.overwrites++
	f.rebuiltAggs = make(map[string]Aggregates, len(aggs))
	for uid, agg := range aggs {
		f.rebuiltAggs[uid] = agg
		f.totals[uid] = agg
	}
	return nil
}

// fakeHandoverStore serves zone queries from fixtures and records updates.
type fakeHandoverStore struct {
	agents   map[string][]models.User // key: zone + "/" + shiftType
	pending  map[string][]models.CollectionTask
	zoneErrs map[string]error

	reassigned []TaskReassignment
}

func newFakeHandoverStore() *fakeHandoverStore {
	return &fakeHandoverStore{
		agents:   make(map[string][]models.User),
		pending:  make(map[string][]models.CollectionTask),
		zoneErrs: make(map[string]error),
	}
}

func (f *fakeHandoverStore) DutyAgents(ctx context.Context, zone string, shiftType models.ShiftType) ([]models.User, error) {
	if err := f.zoneErrs[zone]; err != nil {
		return nil, err
	}
	return f.agents[zone+"/"+string(shiftType)], nil
}

func (f *fakeHandoverStore) PendingUnstartedTasks(ctx context.Context, zone string) ([]models.CollectionTask, error) {
	return f.pending[zone], nil
}

func (f *fakeHandoverStore) ReassignTasks(ctx context.Context, updates []TaskReassignment) error {
	f.reassigned = append(f.reassigned, updates...)
	return nil
}

// fakeSessionStore mimics the Firestore transaction semantics: mutations made
// by fn persist even when fn returns a typed error.
type fakeSessionStore struct {
	sessions map[string]*models.QrSession

	expiredDeleted int
	usedDeleted    int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.QrSession)}
}

func (f *fakeSessionStore) CreateSessionReplacingActive(ctx context.Context, s *models.QrSession) (int, error) {
	expired := 0
	for _, prior := range f.sessions {
		if prior.UID == s.UID && prior.Status == models.SessionActive {
			now := s.CreatedAt
			prior.Status = models.SessionExpired
			prior.ExpiredAt = &now
			expired++
		}
	}
	cp := *s
	f.sessions[s.Token] = &cp
	return expired, nil
}

func (f *fakeSessionStore) MutateSession(ctx context.Context, token string, fn func(*models.QrSession) error) error {
	sess, ok := f.sessions[token]
	if !ok {
		return apperr.New(apperr.NotFound, "Invalid QR.")
	}
	return fn(sess)
}

func (f *fakeSessionStore) DeleteSessionsExpiringBefore(ctx context.Context, t time.Time) (int, error) {
	n := 0
	for token, sess := range f.sessions {
		if !sess.ExpiresAt.After(t) {
			delete(f.sessions, token)
			n++
		}
	}
	f.expiredDeleted += n
	return n, nil
}

func (f *fakeSessionStore) DeleteUsedSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	for token, sess := range f.sessions {
		if sess.Status == models.SessionUsed && sess.UsedAt != nil && !sess.UsedAt.After(cutoff) {
			delete(f.sessions, token)
			n++
		}
	}
	f.usedDeleted += n
	return n, nil
}

// fakeImpactStore returns a fixed recipient list.
type fakeImpactStore struct {
	users []models.User
}

func (f *fakeImpactStore) UsersWithEmailUpdates(ctx context.Context) ([]models.User, error) {
	return f.users, nil
}
