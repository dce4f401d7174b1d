package api

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"

	"BudgetCorpSaas/api/auth"
	"BudgetCorpSaas/internal/validation"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const (
	SessionKey       contextKey = "session"
	DepartmentIDsKey contextKey = "departmentIDs"
)

// GetSessionFromCtx returns the session the prevalidation middleware attached,
// or nil when the request never passed through it.
func GetSessionFromCtx(ctx context.Context) *auth.UserSession {
	if s, ok := ctx.Value(SessionKey).(*auth.UserSession); ok {
		return s
	}
	return nil
}

// GetDepartmentIDsFromCtx returns the departments the current user manages.
func GetDepartmentIDsFromCtx(ctx context.Context) []string {
	if ids, ok := ctx.Value(DepartmentIDsKey).([]string); ok {
		return ids
	}
	return []string{}
}

// DepartmentAccessible reports whether the user may act for the department:
// reviewers/administrators see everything, managers only their own
// departments.
func DepartmentAccessible(ctx context.Context, session *auth.UserSession, departmentID string) bool {
	if departmentID == "" {
		return false
	}
	if SessionHasReviewerRole(session) {
		return true
	}
	for _, id := range GetDepartmentIDsFromCtx(ctx) {
		if id == departmentID {
			return true
		}
	}
	return false
}

var (
	reviewerRoles     []string
	reviewerRolesOnce sync.Once
)

// SessionHasReviewerRole reports whether the session may review budgets and
// administer the catalog/cycles. The role list can be extended via the
// REVIEWER_ROLES env variable (comma separated role names or codes).
func SessionHasReviewerRole(session *auth.UserSession) bool {
	if session == nil {
		return false
	}
	reviewerRolesOnce.Do(func() {
		reviewerRoles = []string{"admin", "administrator", "budget_reviewer", "finance_admin"}
		for _, p := range strings.Split(os.Getenv("REVIEWER_ROLES"), ",") {
			if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
				reviewerRoles = append(reviewerRoles, t)
			}
		}
	})
	role := strings.ToLower(strings.TrimSpace(session.Role))
	code := strings.ToLower(strings.TrimSpace(session.RoleCode))
	for _, r := range reviewerRoles {
		if r == role || r == code {
			return true
		}
	}
	return false
}

// BudgetContextMiddleware extracts user_id from the body (JSON or multipart),
// validates the in-memory session and attaches the session plus the user's
// department list to the request context. Handlers behind it never re-parse
// identity themselves.
func BudgetContextMiddleware(pgxPool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := validation.ExtractUserID(r)
			if err != nil {
				RespondWithError(w, http.StatusBadRequest, "user_id required")
				return
			}
			session := validation.ValidateSession(userID)
			if session == nil {
				RespondWithError(w, http.StatusUnauthorized, "invalid user_id or session")
				return
			}
			departmentIDs, err := validation.UserDepartmentIDs(r.Context(), pgxPool, userID)
			if err != nil {
				LogError("failed to load departments for user %s: %v", userID, err)
				departmentIDs = []string{}
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, DepartmentIDsKey, departmentIDs)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
