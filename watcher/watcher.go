// Package watcher subscribes to Firestore change streams and feeds the
// engine, standing in for the original deployment's per-document triggers.
// Firestore listeners deliver only the new document state, so the watcher
// keeps the last-seen state per document; the first snapshot primes that
// cache without firing events.
package watcher

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"

	"kioskops/db"
	"kioskops/engine"
	"kioskops/models"
)

const retryDelay = 5 * time.Second

// Watcher dispatches store change events to the engine components.
type Watcher struct {
	db     *db.FirestoreDB
	tasks  *engine.Tasks
	ledger *engine.Ledger
}

// New builds a watcher over the given engine components.
func New(firestoreDB *db.FirestoreDB, tasks *engine.Tasks, ledger *engine.Ledger) *Watcher {
	return &Watcher{db: firestoreDB, tasks: tasks, ledger: ledger}
}

// Start launches all listeners. They run until ctx is cancelled,
// re-subscribing after transient stream errors.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx, "kiosks", w.runKiosks)
	go w.watch(ctx, "collectionTasks", w.runTasks)
	go w.watch(ctx, "deposits", w.runDeposits)
}

func (w *Watcher) watch(ctx context.Context, name string, run func(context.Context) error) {
	for {
		if err := run(ctx); err != nil {
			log.Printf("❌ %s listener stopped: %v", name, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
			log.Printf("🔁 Restarting %s listener", name)
		}
	}
}

// runKiosks tracks fill levels and hands before/after pairs to the task engine.
func (w *Watcher) runKiosks(ctx context.Context) error {
	snaps := w.db.Client().Collection("kiosks").Snapshots(ctx)
	defer snaps.Stop()

	prev := make(map[string]models.Kiosk)
	primed := false

	for {
		snap, err := snaps.Next()
		if err != nil {
			return err
		}

		for _, change := range snap.Changes {
			id := change.Doc.Ref.ID

			var kiosk models.Kiosk
			if change.Kind != firestore.DocumentRemoved {
				if err := change.Doc.DataTo(&kiosk); err != nil {
					log.Printf("Warning: failed to parse kiosk %s: %v", id, err)
					continue
				}
				kiosk.ID = id
			}

			switch change.Kind {
			case firestore.DocumentAdded:
				prev[id] = kiosk
			case firestore.DocumentModified:
				if before, ok := prev[id]; ok && primed {
					if err := w.tasks.HandleKioskUpdate(ctx, id, &before, &kiosk); err != nil {
						log.Printf("❌ Kiosk update handler failed for %s: %v", id, err)
					}
				}
				prev[id] = kiosk
			case firestore.DocumentRemoved:
				delete(prev, id)
			}
		}
		primed = true
	}
}

// runTasks tracks task statuses and triggers completion post-processing.
func (w *Watcher) runTasks(ctx context.Context) error {
	snaps := w.db.Client().Collection("collectionTasks").Snapshots(ctx)
	defer snaps.Stop()

	prev := make(map[string]models.CollectionTask)
	primed := false

	for {
		snap, err := snaps.Next()
		if err != nil {
			return err
		}

		for _, change := range snap.Changes {
			id := change.Doc.Ref.ID

			var task models.CollectionTask
			if change.Kind != firestore.DocumentRemoved {
				if err := change.Doc.DataTo(&task); err != nil {
					log.Printf("Warning: failed to parse task %s: %v", id, err)
					continue
				}
				task.ID = id
			}

			switch change.Kind {
			case firestore.DocumentAdded:
				prev[id] = task
			case firestore.DocumentModified:
				if before, ok := prev[id]; ok && primed {
					if err := w.tasks.HandleTaskUpdate(ctx, id, &before, &task); err != nil {
						log.Printf("❌ Task update handler failed for %s: %v", id, err)
					}
				}
				prev[id] = task
			case firestore.DocumentRemoved:
				delete(prev, id)
			}
		}
		primed = true
	}
}

// runDeposits feeds deposit create/delete events to the ledger. Deposits
// are immutable, so modifications are ignored.
func (w *Watcher) runDeposits(ctx context.Context) error {
	snaps := w.db.Client().Collection("deposits").Snapshots(ctx)
	defer snaps.Stop()

	prev := make(map[string]models.Deposit)
	primed := false

	for {
		snap, err := snaps.Next()
		if err != nil {
			return err
		}

		for _, change := range snap.Changes {
			id := change.Doc.Ref.ID

			switch change.Kind {
			case firestore.DocumentAdded:
				var deposit models.Deposit
				if err := change.Doc.DataTo(&deposit); err != nil {
					log.Printf("Warning: failed to parse deposit %s: %v", id, err)
					continue
				}
				deposit.ID = id
				prev[id] = deposit
				if primed {
					w.ledger.HandleDepositCreated(ctx, &deposit)
				}
			case firestore.DocumentRemoved:
				if deposit, ok := prev[id]; ok {
					w.ledger.HandleDepositDeleted(ctx, &deposit)
					delete(prev, id)
				}
			}
		}
		primed = true
	}
}
