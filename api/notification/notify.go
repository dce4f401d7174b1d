package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/internal/notification"
)

// StartNotificationService serves the poll endpoint managers use to collect
// review summaries. Messages live in the in-process store; polling drains
// them.
func StartNotificationService(cfg map[string]interface{}) {
	port := "9111"
	if cfg != nil {
		if p, ok := cfg["port"].(string); ok && p != "" {
			port = p
		}
		if p, ok := cfg["port"].(int); ok && p != 0 {
			port = fmt.Sprintf("%d", p)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/notify/poll", PollNotifications)
	mux.HandleFunc("/notify/pending", PendingNotifications)

	log.Printf("Notification Service started on :%s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("Notification Service failed: %v", err)
	}
}

// PollNotifications drains and returns the caller department's notifications.
func PollNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID       string `json:"user_id"`
		DepartmentID string `json:"department_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.DepartmentID == "" {
		api.RespondWithError(w, http.StatusBadRequest, "department_id is required")
		return
	}
	api.RespondWithPayload(w, true, "", notification.Drain(req.DepartmentID))
}

// PendingNotifications reports the undelivered count without draining.
func PendingNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID       string `json:"user_id"`
		DepartmentID string `json:"department_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"department_id": req.DepartmentID,
		"pending":       notification.Pending(req.DepartmentID),
	})
}
