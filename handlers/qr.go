package handlers

import (
	"encoding/json"
	"net/http"

	"kioskops/engine"
	"kioskops/middleware"
)

// QrHandler serves the QR session callables. Creation is open to any
// authenticated user; consumption is limited to kiosk and admin roles by
// the middleware chain.
type QrHandler struct {
	sessions *engine.Sessions
}

func NewQrHandler(sessions *engine.Sessions) *QrHandler {
	return &QrHandler{sessions: sessions}
}

// CreateSession issues a short-lived QR token for the calling user
func (h *QrHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	grant, err := h.sessions.Create(r.Context(), user.UID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"token":            grant.Token,
		"expiresInSeconds": grant.ExpiresInSeconds,
		"expiresAtMs":      grant.ExpiresAt.UnixMilli(),
	})
}

type ConsumeSessionRequest struct {
	Token   string `json:"token"`
	KioskID string `json:"kioskId"`
}

// ConsumeSession redeems a scanned QR token on behalf of a kiosk
func (h *QrHandler) ConsumeSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConsumeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	uid, err := h.sessions.Consume(r.Context(), req.Token, req.KioskID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"uid":     uid,
	})
}
