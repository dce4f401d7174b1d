package budget

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/api/constants"
	"BudgetCorpSaas/internal/logger"
	"BudgetCorpSaas/internal/notification"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReviewRequest is the sole mutation entry point of the review engine. The
// target is either an explicit id list, or a (cycle, department[, head])
// scope that is resolved to ids inside the transaction.
type ReviewRequest struct {
	UserID          string                     `json:"user_id"`
	Decision        string                     `json:"decision"`
	Notes           string                     `json:"notes,omitempty"`
	AllocationIDs   []string                   `json:"allocation_ids,omitempty"`
	CycleID         string                     `json:"cycle_id,omitempty"`
	DepartmentID    string                     `json:"department_id,omitempty"`
	HeadID          string                     `json:"head_id,omitempty"`
	ApprovedAmounts map[string]decimal.Decimal `json:"approved_amounts,omitempty"`
}

// validateReviewRequest applies every precondition that can fail before any
// write: decision must parse, reject/revision must carry notes, overrides are
// only meaningful on approve, and a target must be present.
func validateReviewRequest(req *ReviewRequest) (ReviewDecision, error) {
	decision, err := ParseReviewDecision(req.Decision)
	if err != nil {
		return "", err
	}
	if decision.RequiresNotes() && strings.TrimSpace(req.Notes) == "" {
		return "", fmt.Errorf("notes are required when decision is %s", decision)
	}
	if len(req.ApprovedAmounts) > 0 && decision != DecisionApprove {
		return "", fmt.Errorf("approved_amounts may only be set when decision is approve")
	}
	for id, amt := range req.ApprovedAmounts {
		if amt.IsNegative() {
			return "", fmt.Errorf("approved amount for %s must be >= 0", id)
		}
	}
	if len(req.AllocationIDs) == 0 && (req.CycleID == "" || req.DepartmentID == "") {
		return "", fmt.Errorf("either allocation_ids or cycle_id+department_id must be given")
	}
	return decision, nil
}

// partitionEligible splits resolved rows into the ids that will transition and
// the ids skipped because another reviewer already decided them. Skipping
// instead of erroring guards against a stale reviewer UI double-submitting.
func partitionEligible(rows []BudgetAllocation) (eligible []BudgetAllocation, skipped []string) {
	for _, a := range rows {
		if a.Status.ReviewEligible() {
			eligible = append(eligible, a)
		} else {
			skipped = append(skipped, a.AllocationID)
		}
	}
	return eligible, skipped
}

// approvedAmountFor returns the amount written on approval: the override when
// the row is present in the map, the requested amount otherwise.
func approvedAmountFor(a BudgetAllocation, overrides map[string]decimal.Decimal) decimal.Decimal {
	if amt, ok := overrides[a.AllocationID]; ok {
		return amt
	}
	return a.AllocatedAmount
}

// ReviewAllocations applies one decision to every resolved row as a single
// transaction: one UPDATE, one shared reviewed_at, one audit batch row, one
// aggregate notification per department. Partial application is impossible;
// a store failure rolls the whole batch back.
func ReviewAllocations(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		ctx := r.Context()
		session := api.GetSessionFromCtx(ctx)
		if session == nil || session.UserID != req.UserID {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		if !api.SessionHasReviewerRole(session) {
			api.RespondWithError(w, http.StatusForbidden, constants.ErrReviewerRole)
			return
		}
		decision, err := validateReviewRequest(&req)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		tx, err := pgxPool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "review not completed: "+err.Error())
			return
		}
		committed := false
		defer func() {
			if !committed {
				if rerr := tx.Rollback(ctx); rerr != nil {
					api.LogError("review rollback failed: %v", rerr)
				}
			}
		}()

		// Resolve and lock the target rows so a concurrent bulk action on
		// overlapping rows cannot interleave with this one.
		query := `SELECT ` + allocationColumns + ` FROM budgetallocations`
		var args []interface{}
		if len(req.AllocationIDs) > 0 {
			args = append(args, req.AllocationIDs)
			query += ` WHERE allocation_id = ANY($1)`
		} else {
			args = append(args, req.CycleID, req.DepartmentID)
			query += ` WHERE cycle_id=$1 AND department_id=$2`
			if req.HeadID != "" {
				args = append(args, req.HeadID)
				query += ` AND head_id=$3`
			}
		}
		query += ` ORDER BY allocation_id FOR UPDATE`

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "review not completed: "+err.Error())
			return
		}
		var resolved []BudgetAllocation
		for rows.Next() {
			a, serr := scanAllocation(rows)
			if serr != nil {
				rows.Close()
				api.RespondWithError(w, http.StatusInternalServerError, "review not completed: "+serr.Error())
				return
			}
			resolved = append(resolved, a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "review not completed: "+err.Error())
			return
		}

		eligible, skipped := partitionEligible(resolved)
		if len(eligible) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrNoEligibleRows)
			return
		}

		// Every row in the batch shares one reviewed_at so the audit log can
		// group the action.
		reviewedAt := time.Now().UTC()
		outcome := decision.Outcome()

		ids := make([]string, len(eligible))
		approved := make([]*decimal.Decimal, len(eligible))
		for i, a := range eligible {
			ids[i] = a.AllocationID
			if decision == DecisionApprove {
				amt := approvedAmountFor(a, req.ApprovedAmounts)
				approved[i] = &amt
			}
		}

		var notes interface{}
		if strings.TrimSpace(req.Notes) != "" {
			notes = req.Notes
		}
		tag, err := tx.Exec(ctx, `
			UPDATE budgetallocations AS b
			SET status=$1, reviewed_by=$2, reviewed_at=$3, notes=$4,
			    approved_amount=t.approved_amount, updated_at=now()
			FROM unnest($5::text[], $6::numeric[]) AS t(allocation_id, approved_amount)
			WHERE b.allocation_id = t.allocation_id`,
			string(outcome), session.Name, reviewedAt, notes, ids, approved)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "review not completed: "+err.Error())
			return
		}

		// One audit batch row per department touched, same timestamp.
		byDept := make(map[string]int)
		cycleByDept := make(map[string]string)
		for _, a := range eligible {
			byDept[a.DepartmentID]++
			cycleByDept[a.DepartmentID] = a.CycleID
		}
		var headID interface{}
		if req.HeadID != "" {
			headID = req.HeadID
		}
		for dept, count := range byDept {
			if _, err := tx.Exec(ctx, `
				INSERT INTO budgetreviewactions (cycle_id, department_id, head_id, decision,
					row_count, notes, reviewed_by, reviewed_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				cycleByDept[dept], dept, headID, string(decision), count, notes, session.Name, reviewedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, "review not completed: "+err.Error())
				return
			}
		}

		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "review not completed: "+err.Error())
			return
		}
		committed = true

		// Fire-and-forget: one aggregate notification per department, never
		// one per row.
		for dept, count := range byDept {
			notification.Push(dept, fmt.Sprintf("%d budget line(s) %s for cycle %s by %s",
				count, outcome, cycleByDept[dept], session.Name))
		}
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("review %s by %s at %s: %d updated, %d skipped",
				decision, session.Name, reviewedAt.Format(constants.DateTimeFormat),
				tag.RowsAffected(), len(skipped)))
		}

		sort.Strings(skipped)
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"updated_count": tag.RowsAffected(),
			"skipped_ids":   skipped,
			"decision":      decision,
			"reviewed_at":   reviewedAt,
		})
	}
}

// GetReviewQueueSummary returns per-department pending counts and requested
// totals for the reviewer landing page.
func GetReviewQueueSummary(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID  string `json:"user_id"`
			CycleID string `json:"cycle_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		ctx := r.Context()
		session := api.GetSessionFromCtx(ctx)
		if session == nil || session.UserID != req.UserID {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		if req.CycleID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "cycle_id is required")
			return
		}

		rows, err := pgxPool.Query(ctx, `
			SELECT department_id, count(*), sum(allocated_amount)
			FROM budgetallocations
			WHERE cycle_id=$1 AND status IN ('submitted','under_review')
			GROUP BY department_id
			ORDER BY department_id`, req.CycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		summary := make([]map[string]interface{}, 0)
		for rows.Next() {
			var (
				dept  string
				count int64
				total decimal.Decimal
			)
			if err := rows.Scan(&dept, &count, &total); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			summary = append(summary, map[string]interface{}{
				"department_id":   dept,
				"pending_count":   count,
				"requested_total": total,
			})
		}
		api.RespondWithPayload(w, true, "", summary)
	}
}
