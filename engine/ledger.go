package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"kioskops/config"
	"kioskops/models"
)

// UserDelta is an atomic increment applied to a user's aggregate fields.
// The store must apply it with numeric-increment operations, never
// read-modify-write in application code.
type UserDelta struct {
	Points        int64
	Grams         int64
	Deposits      int64
	LastDepositAt *time.Time
}

// Aggregates is the absolute aggregate state written by a rebuild.
type Aggregates struct {
	Points   int64
	Grams    int64
	Deposits int64
}

// LedgerStore is the store surface the aggregate ledger needs.
type LedgerStore interface {
	ApplyUserDelta(ctx context.Context, uid string, delta UserDelta) error
	AppendRecyclingEntry(ctx context.Context, uid string, entry models.RecyclingEntry) error
	AllDeposits(ctx context.Context) ([]models.Deposit, error)
	// OverwriteAggregates replaces each listed user's aggregate fields and
	// stamps aggregatesRebuiltAt, committing in bounded batches.
	OverwriteAggregates(ctx context.Context, aggs map[string]Aggregates, at time.Time) error
}

// Ledger keeps per-user recycling totals consistent with deposit events.
type Ledger struct {
	store LedgerStore
	ops   config.OpsConfig
	now   func() time.Time
}

// NewLedger builds the ledger. now may be nil for the wall clock.
func NewLedger(store LedgerStore, ops config.OpsConfig, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, ops: ops, now: now}
}

func (l *Ledger) pointsFor(grams int64) int64 {
	return grams / l.ops.GramsPerPoint
}

// HandleDepositCreated awards points and appends the user's history entry.
// The two writes fail independently: a broken aggregate update does not
// block the history append, and neither failure propagates — deposit
// triggers have no caller to report to.
func (l *Ledger) HandleDepositCreated(ctx context.Context, d *models.Deposit) {
	if d == nil || d.UserID == "" || d.Weight == 0 {
		return
	}

	now := l.now()
	delta := UserDelta{
		Points:        l.pointsFor(d.Weight),
		Grams:         d.Weight,
		Deposits:      1,
		LastDepositAt: &now,
	}
	if err := l.store.ApplyUserDelta(ctx, d.UserID, delta); err != nil {
		log.Printf("❌ Error updating aggregates for user %s: %v", d.UserID, err)
	} else {
		log.Printf("Updated aggregates for user %s", d.UserID)
	}

	entry := models.RecyclingEntry{
		KioskID:   d.KioskID,
		KioskName: kioskNameOrUnknown(d.KioskName),
		Weight:    d.Weight,
		Timestamp: now,
	}
	if err := l.store.AppendRecyclingEntry(ctx, d.UserID, entry); err != nil {
		log.Printf("❌ Error writing recyclingHistory for user %s: %v", d.UserID, err)
	} else {
		log.Printf("Added recyclingHistory entry for user %s", d.UserID)
	}
}

// HandleDepositDeleted applies the exact compensating decrement for a
// deleted deposit, so create followed by delete nets to zero.
func (l *Ledger) HandleDepositDeleted(ctx context.Context, d *models.Deposit) {
	if d == nil || d.UserID == "" || d.Weight == 0 {
		return
	}

	delta := UserDelta{
		Points:   -l.pointsFor(d.Weight),
		Grams:    -d.Weight,
		Deposits: -1,
	}
	if err := l.store.ApplyUserDelta(ctx, d.UserID, delta); err != nil {
		log.Printf("❌ Error reversing aggregates for user %s: %v", d.UserID, err)
	}
}

// RebuildReport summarizes a full aggregate rebuild.
type RebuildReport struct {
	UsersUpdated    int `json:"usersUpdated"`
	DepositsScanned int `json:"depositsScanned"`
}

// Rebuild recomputes every user's aggregates from the full deposit set and
// overwrites the stored values. It repairs drift from missed trigger
// invocations and is idempotent: with no new deposits, consecutive runs
// produce identical values.
func (l *Ledger) Rebuild(ctx context.Context) (*RebuildReport, error) {
	deposits, err := l.store.AllDeposits(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan deposits: %w", err)
	}

	perUser := make(map[string]Aggregates)
	for _, d := range deposits {
		if d.UserID == "" || d.Weight == 0 {
			continue
		}
		agg := perUser[d.UserID]
		agg.Grams += d.Weight
		agg.Deposits++
		agg.Points += l.pointsFor(d.Weight)
		perUser[d.UserID] = agg
	}

	if err := l.store.OverwriteAggregates(ctx, perUser, l.now()); err != nil {
		return nil, fmt.Errorf("overwrite aggregates: %w", err)
	}

	return &RebuildReport{
		UsersUpdated:    len(perUser),
		DepositsScanned: len(deposits),
	}, nil
}

// SortedUserIDs gives stores a stable write order for rebuild batches.
func SortedUserIDs(aggs map[string]Aggregates) []string {
	ids := make([]string, 0, len(aggs))
	for id := range aggs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func kioskNameOrUnknown(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
