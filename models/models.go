// models.go
// Defines the core data structures shared by the kiosk operations backend.

package models

import (
	"time"
)

// Role defines the access level of a user account.
type Role string

const (
	RoleUser       Role = "user"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
	// RoleKiosk is used by kiosk service accounts that call the QR consume endpoint.
	RoleKiosk Role = "kiosk"
)

// TaskStatus defines the lifecycle state of a collection task.
// The engine only ever produces pending -> in_progress -> completed; the
// dashboard's "delayed" label is derived client-side and is never stored.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// ShiftType classifies the duty window an agent covers.
type ShiftType string

const (
	ShiftWeekday ShiftType = "weekday"
	ShiftWeekend ShiftType = "weekend"
)

// SessionStatus is the state of a QR handoff session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionUsed    SessionStatus = "used"
	SessionExpired SessionStatus = "expired"
)

// Kiosk is a deployed recycling kiosk. Telemetry writers update fillLevel;
// the task engine resets it on collection completion.
type Kiosk struct {
	ID               string     `firestore:"-" json:"id"`
	Name             string     `firestore:"name" json:"name"`
	Location         string     `firestore:"location" json:"location"`
	Zone             string     `firestore:"zone" json:"zone"`
	FillLevel        int        `firestore:"fillLevel" json:"fillLevel"`
	LiquidHeight     float64    `firestore:"liquidHeight" json:"liquidHeight"`
	LastEmptied      *time.Time `firestore:"lastEmptied" json:"lastEmptied"`
	LastCollected    *time.Time `firestore:"lastCollected" json:"lastCollected"`
	LastUpdated      *time.Time `firestore:"lastUpdated" json:"lastUpdated"`
	AssignedAgentUID string     `firestore:"assignedAgentUid" json:"assignedAgentUid"`
	AssignedAgentID  string     `firestore:"assignedAgentId" json:"assignedAgentId"`
}

// DisplayName returns the kiosk name shown on tasks and reports.
func (k *Kiosk) DisplayName() string {
	if k.Name != "" {
		return k.Name
	}
	if k.Location != "" {
		return k.Location
	}
	return "Unnamed Kiosk"
}

// CollectionTask is a dispatch order to empty a kiosk.
type CollectionTask struct {
	ID        string     `firestore:"-" json:"id"`
	KioskID   string     `firestore:"kioskId" json:"kioskId"`
	KioskName string     `firestore:"kioskName" json:"kioskName"`
	Zone      string     `firestore:"zone" json:"zone"`
	Status    TaskStatus `firestore:"status" json:"status"`

	AgentUID  string `firestore:"agentUid" json:"agentUid"`
	AgentID   string `firestore:"agentId" json:"agentId"`
	AgentName string `firestore:"agentName" json:"agentName"`

	CreatedAt   time.Time  `firestore:"createdAt" json:"createdAt"`
	AssignedAt  *time.Time `firestore:"assignedAt" json:"assignedAt"`
	StartedAt   *time.Time `firestore:"startedAt" json:"startedAt"`
	CompletedAt *time.Time `firestore:"completedAt" json:"completedAt"`

	FillLevelAtCreation int        `firestore:"fillLevelAtCreation" json:"fillLevelAtCreation"`
	ProofPhotoURL       string     `firestore:"proofPhotoUrl" json:"proofPhotoUrl"`
	ProofUploadedAt     *time.Time `firestore:"proofUploadedAt" json:"proofUploadedAt"`

	// Audit trail for shift handover.
	ReassignedAt      *time.Time `firestore:"reassignedAt" json:"reassignedAt"`
	ReassignedFromUID string     `firestore:"reassignedFromUid" json:"reassignedFromUid"`
	UpdatedAt         *time.Time `firestore:"updatedAt" json:"updatedAt"`

	// Idempotency guard: once set, completion side effects never run again.
	PostProcessedAt *time.Time `firestore:"postProcessedAt" json:"postProcessedAt"`
}

// IsActive reports whether the task still occupies its kiosk's dispatch slot.
func (t *CollectionTask) IsActive() bool {
	return t.Status == TaskPending || t.Status == TaskInProgress
}

// User represents any account: end users, agents, admins and kiosk service
// accounts share the users collection, discriminated by Role.
type User struct {
	UID    string `firestore:"uid" json:"uid"`
	Email  string `firestore:"email" json:"email"`
	Name   string `firestore:"name" json:"name"`
	Phone  string `firestore:"phone" json:"phone"`
	Role   Role   `firestore:"role" json:"role"`
	Active bool   `firestore:"active" json:"active"`

	// Agent fields.
	Zone                string     `firestore:"zone" json:"zone"`
	ShiftType           ShiftType  `firestore:"shiftType" json:"shiftType"`
	AgentID             string     `firestore:"agentId" json:"agentId"`
	TasksCompleted      int64      `firestore:"tasksCompleted" json:"tasksCompleted"`
	LastTaskCompletedAt *time.Time `firestore:"lastTaskCompletedAt" json:"lastTaskCompletedAt"`

	// End-user aggregates, maintained by the ledger only.
	Points              int64      `firestore:"points" json:"points"`
	TotalRecycled       int64      `firestore:"totalRecycled" json:"totalRecycled"` // grams
	DepositCount        int64      `firestore:"depositCount" json:"depositCount"`
	LastDepositAt       *time.Time `firestore:"lastDepositAt" json:"lastDepositAt"`
	AggregatesRebuiltAt *time.Time `firestore:"aggregatesRebuiltAt" json:"aggregatesRebuiltAt"`

	PushNotifications bool `firestore:"pushNotifications" json:"pushNotifications"`
	EmailUpdates      bool `firestore:"emailUpdates" json:"emailUpdates"`

	PasswordHash string     `firestore:"passwordHash" json:"-"`
	CreatedAt    time.Time  `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    *time.Time `firestore:"updatedAt" json:"updatedAt"`
	LastLogin    *time.Time `firestore:"lastLogin" json:"lastLogin"`
}

// IsAdmin reports whether the user may perform admin-only operations.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// Deposit is an immutable record of recycled material dropped at a kiosk.
// Deleting one triggers compensating ledger updates.
type Deposit struct {
	ID        string    `firestore:"-" json:"id"`
	UserID    string    `firestore:"userId" json:"userId"`
	KioskID   string    `firestore:"kioskId" json:"kioskId"`
	KioskName string    `firestore:"kioskName" json:"kioskName"`
	Weight    int64     `firestore:"weight" json:"weight"` // grams
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}

// RecyclingEntry is an immutable per-user history record written alongside
// each aggregate update.
type RecyclingEntry struct {
	KioskID   string    `firestore:"kioskId" json:"kioskId"`
	KioskName string    `firestore:"kioskName" json:"kioskName"`
	Weight    int64     `firestore:"weight" json:"weight"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}

// QrSession is a short-lived single-use handoff token linking a mobile user
// to a kiosk scan. The document ID is the token itself.
type QrSession struct {
	Token         string        `firestore:"-" json:"token"`
	UID           string        `firestore:"uid" json:"uid"`
	Status        SessionStatus `firestore:"status" json:"status"`
	CreatedAt     time.Time     `firestore:"createdAt" json:"createdAt"`
	ExpiresAt     time.Time     `firestore:"expiresAt" json:"expiresAt"`
	ExpiredAt     *time.Time    `firestore:"expiredAt" json:"expiredAt"`
	UsedAt        *time.Time    `firestore:"usedAt" json:"usedAt"`
	UsedByKioskID string        `firestore:"usedByKioskId" json:"usedByKioskId"`
}

// CollectionLog is the immutable audit record appended when a task completes.
type CollectionLog struct {
	ID                  string    `firestore:"-" json:"id"`
	TaskID              string    `firestore:"taskId" json:"taskId"`
	KioskID             string    `firestore:"kioskId" json:"kioskId"`
	AgentID             string    `firestore:"agentId" json:"agentId"`
	CompletedAt         time.Time `firestore:"completedAt" json:"completedAt"`
	FillLevelAtCreation int       `firestore:"fillLevelAtCreation" json:"fillLevelAtCreation"`
	ProofPhotoURL       string    `firestore:"proofPhotoUrl" json:"proofPhotoUrl"`
	CreatedAt           time.Time `firestore:"createdAt" json:"createdAt"`
}
