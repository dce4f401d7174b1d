package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"BudgetCorpSaas/api/auth"
	"BudgetCorpSaas/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ExtractUserID parses the request body once and extracts user_id, restoring
// the body for the handler afterwards. JSON bodies and multipart/form uploads
// are both supported.
func ExtractUserID(r *http.Request) (string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	defer r.Body.Close()

	var reqMap map[string]interface{}
	if err := json.Unmarshal(body, &reqMap); err == nil {
		if userID, ok := reqMap["user_id"].(string); ok && userID != "" {
			r.Body = io.NopCloser(bytes.NewBuffer(body))
			return userID, nil
		}
	}

	r.Body = io.NopCloser(bytes.NewBuffer(body))
	ct := r.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(ct), "multipart/form-data") {
		if err := r.ParseMultipartForm(config.UploadMaxMemoryBytes); err == nil {
			if userID := r.FormValue("user_id"); userID != "" {
				r.Body = io.NopCloser(bytes.NewBuffer(body))
				return userID, nil
			}
		}
	} else {
		if err := r.ParseForm(); err == nil {
			if userID := r.FormValue("user_id"); userID != "" {
				r.Body = io.NopCloser(bytes.NewBuffer(body))
				return userID, nil
			}
		}
	}

	r.Body = io.NopCloser(bytes.NewBuffer(body))
	return "", fmt.Errorf("user_id not found in request")
}

// ValidateSession checks the in-memory session registry, no DB round trip.
func ValidateSession(userID string) *auth.UserSession {
	for _, s := range auth.GetActiveSessions() {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

// UserDepartmentIDs loads the departments the user manages. Managers get the
// rows from userdepartments; an empty result is valid (reviewer-only users).
func UserDepartmentIDs(ctx context.Context, pgxPool *pgxpool.Pool, userID string) ([]string, error) {
	rows, err := pgxPool.Query(ctx, `
		SELECT department_id FROM userdepartments WHERE user_id=$1 ORDER BY department_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
