package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kioskops/auth"
	"kioskops/config"
	"kioskops/db"
	"kioskops/engine"
	"kioskops/mailer"
	"kioskops/middleware"
	"kioskops/models"
	"kioskops/shift"
)

// AdminHandler serves the admin-only callable endpoints. Role enforcement
// happens in the middleware chain; handlers only read the caller for audit
// logging.
type AdminHandler struct {
	db       *db.FirestoreDB
	ledger   *engine.Ledger
	handover *engine.Handover
	impact   *engine.Impact
	sender   mailer.Sender
	resolver shift.Resolver
	ops      config.OpsConfig
	from     string
}

func NewAdminHandler(firestoreDB *db.FirestoreDB, ledger *engine.Ledger, handover *engine.Handover,
	impact *engine.Impact, sender mailer.Sender, ops config.OpsConfig, from string) *AdminHandler {
	return &AdminHandler{
		db:       firestoreDB,
		ledger:   ledger,
		handover: handover,
		impact:   impact,
		sender:   sender,
		resolver: shift.Resolver{Offset: ops.TimezoneOffset, EndHour: ops.ShiftEndHour},
		ops:      ops,
		from:     from,
	}
}

// --- Account Provisioning ---

type CreateAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// CreateAdmin provisions a new admin account
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, "Missing email/password/name.", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if existing, _ := h.db.GetUserByEmail(r.Context(), req.Email); existing != nil {
		writeError(w, "Email already registered", http.StatusConflict)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		UID:          uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         models.RoleAdmin,
		Active:       true,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		log.Printf("❌ Error creating admin: %v", err)
		writeError(w, "Failed to create admin", http.StatusInternalServerError)
		return
	}

	h.audit(r, "ADMIN_CREATE_ADMIN", fmt.Sprintf("created admin %s", req.Email))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"uid":     user.UID,
		"message": "Admin created successfully.",
	})
}

type CreateAgentRequest struct {
	Email     string           `json:"email"`
	Password  string           `json:"password"`
	Name      string           `json:"name"`
	Phone     string           `json:"phone"`
	Zone      string           `json:"zone"`
	ShiftType models.ShiftType `json:"shiftType"`
}

// CreateAgent provisions a new collection agent with a sequential agent code
func (h *AdminHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, "Missing email/password/name.", http.StatusBadRequest)
		return
	}
	if !h.ops.ValidZone(req.Zone) {
		writeError(w, fmt.Sprintf("Invalid zone. Allowed: %v", h.ops.Zones), http.StatusBadRequest)
		return
	}
	if !h.ops.ValidShiftType(req.ShiftType) {
		writeError(w, "Invalid shiftType. Allowed: weekday, weekend", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if existing, _ := h.db.GetUserByEmail(r.Context(), req.Email); existing != nil {
		writeError(w, "Email already registered", http.StatusConflict)
		return
	}

	agentID, err := h.db.NextAgentID(r.Context())
	if err != nil {
		log.Printf("❌ Error allocating agent id: %v", err)
		writeError(w, "Failed to allocate agent id", http.StatusInternalServerError)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	user := &models.User{
		UID:               uuid.NewString(),
		Email:             req.Email,
		Name:              req.Name,
		Phone:             req.Phone,
		Role:              models.RoleAgent,
		Active:            true,
		Zone:              req.Zone,
		ShiftType:         req.ShiftType,
		AgentID:           agentID,
		PushNotifications: true,
		PasswordHash:      hash,
		CreatedAt:         now,
		UpdatedAt:         &now,
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		log.Printf("❌ Error creating agent: %v", err)
		writeError(w, "Failed to create agent", http.StatusInternalServerError)
		return
	}

	h.audit(r, "ADMIN_CREATE_AGENT", fmt.Sprintf("created agent %s (%s, %s/%s)", req.Email, agentID, req.Zone, req.ShiftType))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"uid":     user.UID,
		"agentId": agentID,
		"message": "Agent created successfully.",
	})
}

type DeleteUserRequest struct {
	TargetUID string `json:"targetUid"`
}

// DeleteUser removes an account and its profile document
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DeleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetUID == "" {
		writeError(w, "Missing targetUid.", http.StatusBadRequest)
		return
	}

	if err := h.db.DeleteUser(r.Context(), req.TargetUID); err != nil {
		log.Printf("❌ Error deleting user %s: %v", req.TargetUID, err)
		writeError(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	h.audit(r, "ADMIN_DELETE_USER", fmt.Sprintf("deleted user %s", req.TargetUID))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User successfully deleted.",
	})
}

// --- Maintenance Operations ---

// RebuildAggregates recomputes every user's recycling aggregates from the
// full deposit set
func (h *AdminHandler) RebuildAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := h.ledger.Rebuild(r.Context())
	if err != nil {
		log.Printf("❌ Aggregate rebuild failed: %v", err)
		writeError(w, "Aggregate rebuild failed", http.StatusInternalServerError)
		return
	}

	h.audit(r, "ADMIN_REBUILD_AGGREGATES",
		fmt.Sprintf("users=%d deposits=%d", report.UsersUpdated, report.DepositsScanned))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"usersUpdated":    report.UsersUpdated,
		"depositsScanned": report.DepositsScanned,
	})
}

type ReassignTasksRequest struct {
	ShiftType models.ShiftType `json:"shiftType,omitempty"`
}

// ReassignTasks runs the shift handover on demand, with an optional
// explicit target shift override
func (h *AdminHandler) ReassignTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReassignTasksRequest
	if r.Body != nil {
		// An empty body means "use the current shift".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	target := req.ShiftType
	if target != "" && !h.ops.ValidShiftType(target) {
		writeError(w, "Invalid shiftType. Allowed: weekday, weekend", http.StatusBadRequest)
		return
	}
	if target == "" {
		target = h.resolver.AssignmentShift(time.Now())
	}

	report := h.handover.Run(r.Context(), target)

	h.audit(r, "ADMIN_REASSIGN_TASKS", fmt.Sprintf("shift=%s reassigned=%d", target, report.Reassigned))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"targetShiftType": report.TargetShiftType,
		"reassigned":      report.Reassigned,
		"perZone":         report.PerZone,
	})
}

// SendImpactEmails runs the monthly impact mailing on demand
func (h *AdminHandler) SendImpactEmails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := h.impact.SendReports(r.Context())
	if err != nil {
		log.Printf("❌ Manual impact mailing failed: %v", err)
		writeError(w, "Impact mailing failed", http.StatusInternalServerError)
		return
	}

	h.audit(r, "ADMIN_SEND_IMPACT_EMAILS",
		fmt.Sprintf("sent=%d skipped=%d failed=%d", report.Sent, report.Skipped, report.Failed))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"sent":    report.Sent,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})
}

type SendTestEmailRequest struct {
	To string `json:"to"`
}

// SendTestEmail verifies the outbound mail path
func (h *AdminHandler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SendTestEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		writeError(w, "Missing to email.", http.StatusBadRequest)
		return
	}

	if err := h.sender.Send(mailer.TestMessage(h.from, req.To)); err != nil {
		log.Printf("❌ Test email failed: %v", err)
		writeError(w, "Test email failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ExportCollectionLogs streams the completion audit log as CSV
func (h *AdminHandler) ExportCollectionLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logs, err := h.db.AllCollectionLogs(r.Context())
	if err != nil {
		log.Printf("❌ Failed to get collection logs: %v", err)
		writeError(w, "Failed to retrieve collection logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=collection-logs-%s.csv", time.Now().Format("2006-01-02")))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{"Log ID", "Task ID", "Kiosk ID", "Agent ID", "Completed At", "Fill Level At Creation", "Proof Photo URL"})
	for _, entry := range logs {
		writer.Write([]string{
			entry.ID,
			entry.TaskID,
			entry.KioskID,
			entry.AgentID,
			entry.CompletedAt.UTC().Format(time.RFC3339),
			fmt.Sprintf("%d", entry.FillLevelAtCreation),
			entry.ProofPhotoURL,
		})
	}
}

func (h *AdminHandler) audit(r *http.Request, action, details string) {
	caller := "unknown"
	if user, ok := middleware.GetUserFromContext(r.Context()); ok {
		caller = user.Email
	}
	log.Printf("AUDIT: %s performed %s - %s", caller, action, details)
}
