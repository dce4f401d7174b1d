package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/api/constants"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func fetchCycle(ctx context.Context, pgxPool *pgxpool.Pool, cycleID string) (*BudgetCycle, error) {
	var (
		c          BudgetCycle
		periodType string
		status     string
		start, end time.Time
	)
	err := pgxPool.QueryRow(ctx, `
		SELECT cycle_id, cycle_name, fiscal_year, period_type, start_date, end_date,
		       status, auto_open, allowed_department_ids
		FROM masterbudgetcycle WHERE cycle_id=$1`, cycleID).
		Scan(&c.CycleID, &c.CycleName, &c.FiscalYear, &periodType, &start, &end,
			&status, &c.AutoOpen, &c.AllowedDeptIDs)
	if err != nil {
		return nil, err
	}
	pt, err := ParsePeriodType(periodType)
	if err != nil {
		return nil, err
	}
	c.PeriodType = pt
	c.StartDate = start.Format(constants.DateFormat)
	c.EndDate = end.Format(constants.DateFormat)
	c.Status = CycleStatus(status)
	return &c, nil
}

// fetchHeadCatalog loads the budget head chart. With activeOnly=false the
// full chart comes back so grids can still render heads deactivated after
// submissions were made against them.
func fetchHeadCatalog(ctx context.Context, pgxPool *pgxpool.Pool, activeOnly bool) ([]BudgetHead, error) {
	query := `
		SELECT head_id, head_code, head_name, head_type, parent_head_id,
		       display_order, is_active, allow_department_subitems
		FROM masterbudgethead`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY display_order, head_code`

	rows, err := pgxPool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetHead
	for rows.Next() {
		var (
			h        BudgetHead
			headType string
		)
		if err := rows.Scan(&h.HeadID, &h.HeadCode, &h.HeadName, &headType,
			&h.ParentHeadID, &h.DisplayOrder, &h.IsActive, &h.AllowDepartmentSubitems); err != nil {
			return nil, err
		}
		t, perr := ParseHeadType(headType)
		if perr != nil {
			return nil, perr
		}
		h.HeadType = t
		out = append(out, h)
	}
	return out, rows.Err()
}

const allocationColumns = `allocation_id, cycle_id, head_id, department_id, period_number,
	allocated_amount, approved_amount, status, notes,
	submitted_by, submitted_at, reviewed_by, reviewed_at`

func scanAllocation(row pgx.Row) (BudgetAllocation, error) {
	var (
		a      BudgetAllocation
		status string
	)
	err := row.Scan(&a.AllocationID, &a.CycleID, &a.HeadID, &a.DepartmentID, &a.PeriodNumber,
		&a.AllocatedAmount, &a.ApprovedAmount, &status, &a.Notes,
		&a.SubmittedBy, &a.SubmittedAt, &a.ReviewedBy, &a.ReviewedAt)
	a.Status = AllocationStatus(status)
	return a, err
}

// fetchPendingAllocations returns the rows in submitted/under_review, the
// input set for grid reconstruction and review target resolution. Both
// filters are optional; empty string means no filter.
func fetchPendingAllocations(ctx context.Context, pgxPool *pgxpool.Pool, cycleID, departmentID string) ([]BudgetAllocation, error) {
	query := `SELECT ` + allocationColumns + `
		FROM budgetallocations
		WHERE status IN ('submitted','under_review')`
	args := []interface{}{}
	if cycleID != "" {
		args = append(args, cycleID)
		query += fmt.Sprintf(" AND cycle_id=$%d", len(args))
	}
	if departmentID != "" {
		args = append(args, departmentID)
		query += fmt.Sprintf(" AND department_id=$%d", len(args))
	}
	query += ` ORDER BY department_id, head_id, period_number`

	rows, err := pgxPool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// guardManagerWrite enforces the submission-side preconditions: the cycle must
// be open and the department must be on the cycle's allow-list (nil list
// admits everyone).
func guardManagerWrite(cycle *BudgetCycle, departmentID string) error {
	if cycle.Status != CycleOpen {
		return fmt.Errorf("cycle %s is %s; only open cycles accept submissions", cycle.CycleID, cycle.Status)
	}
	if !cycle.DepartmentAllowed(departmentID) {
		return fmt.Errorf("department %s is not allowed in cycle %s", departmentID, cycle.CycleID)
	}
	return nil
}

// UpsertDraftAllocations creates or overwrites draft cells for one department
// in one cycle. Each row addresses the unique (cycle, head, department,
// period) cell; an existing cell is overwritten only while its status is
// still editable by the manager.
func UpsertDraftAllocations(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID       string `json:"user_id"`
			CycleID      string `json:"cycle_id"`
			DepartmentID string `json:"department_id"`
			Rows         []struct {
				HeadID       string          `json:"head_id"`
				PeriodNumber int             `json:"period_number"`
				Amount       decimal.Decimal `json:"amount"`
				Notes        string          `json:"notes,omitempty"`
			} `json:"rows"`
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
		if !api.DepartmentAccessible(ctx, session, req.DepartmentID) {
			api.RespondWithError(w, http.StatusForbidden, "department not accessible for this user")
			return
		}

		cycle, err := fetchCycle(ctx, pgxPool, req.CycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "cycle not found: "+err.Error())
			return
		}
		if err := guardManagerWrite(cycle, req.DepartmentID); err != nil {
			api.RespondWithError(w, http.StatusForbidden, err.Error())
			return
		}
		periods := cycle.PeriodType.Periods()

		activeHeads := make(map[string]bool)
		heads, err := fetchHeadCatalog(ctx, pgxPool, true)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, h := range heads {
			activeHeads[h.HeadID] = true
		}

		cells := make([]draftCell, 0, len(req.Rows))
		for _, row := range req.Rows {
			cells = append(cells, draftCell{
				HeadID: row.HeadID, PeriodNumber: row.PeriodNumber,
				Amount: row.Amount, Notes: row.Notes,
			})
		}
		results := upsertDraftCells(ctx, pgxPool, req.CycleID, req.DepartmentID, cells, periods, activeHeads)
		api.RespondWithPayload(w, api.IsBulkSuccess(results), "", results)
	}
}

// draftCell is one incoming manager cell, from JSON or a spreadsheet row.
type draftCell struct {
	HeadID       string
	PeriodNumber int
	Amount       decimal.Decimal
	Notes        string
}

// upsertDraftCells writes manager cells one by one, collecting a per-cell
// result. An existing cell is overwritten only while its status is still
// editable; submitted and decided cells are left untouched.
func upsertDraftCells(ctx context.Context, pgxPool *pgxpool.Pool, cycleID, departmentID string, cells []draftCell, periods int, activeHeads map[string]bool) []map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(cells))
	for _, cell := range cells {
		if cell.PeriodNumber < 1 || cell.PeriodNumber > periods {
			results = append(results, map[string]interface{}{
				"success": false, "head_id": cell.HeadID, "period_number": cell.PeriodNumber,
				"error": fmt.Sprintf("period_number out of range 1..%d", periods),
			})
			continue
		}
		if cell.Amount.IsNegative() {
			results = append(results, map[string]interface{}{
				"success": false, "head_id": cell.HeadID, "period_number": cell.PeriodNumber,
				"error": "amount must be >= 0",
			})
			continue
		}
		if !activeHeads[cell.HeadID] {
			results = append(results, map[string]interface{}{
				"success": false, "head_id": cell.HeadID, "period_number": cell.PeriodNumber,
				"error": "unknown or inactive head_id",
			})
			continue
		}

		var notes interface{}
		if strings.TrimSpace(cell.Notes) != "" {
			notes = cell.Notes
		}
		var allocationID string
		err := pgxPool.QueryRow(ctx, `
			INSERT INTO budgetallocations (
				allocation_id, cycle_id, head_id, department_id, period_number,
				allocated_amount, status, notes, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,'draft',$7,now(),now())
			ON CONFLICT (cycle_id, head_id, department_id, period_number)
			DO UPDATE SET allocated_amount=EXCLUDED.allocated_amount,
			              notes=EXCLUDED.notes, status='draft', updated_at=now()
			WHERE budgetallocations.status IN ('draft','revision_requested')
			RETURNING allocation_id`,
			uuid.New().String(), cycleID, cell.HeadID, departmentID,
			cell.PeriodNumber, cell.Amount, notes).Scan(&allocationID)
		if errors.Is(err, pgx.ErrNoRows) {
			results = append(results, map[string]interface{}{
				"success": false, "head_id": cell.HeadID, "period_number": cell.PeriodNumber,
				"error": "cell is no longer editable",
			})
			continue
		}
		if err != nil {
			results = append(results, map[string]interface{}{
				"success": false, "head_id": cell.HeadID, "period_number": cell.PeriodNumber,
				"error": err.Error(),
			})
			continue
		}
		results = append(results, map[string]interface{}{
			"success": true, "allocation_id": allocationID,
			"head_id": cell.HeadID, "period_number": cell.PeriodNumber,
		})
	}
	return results
}

// SubmitAllocations moves every editable cell of one department/cycle into
// submitted. Resubmission after a revision request clears the previous
// reviewer verdict and stamps a fresh submitted_at.
func SubmitAllocations(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID       string `json:"user_id"`
			CycleID      string `json:"cycle_id"`
			DepartmentID string `json:"department_id"`
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
		if !api.DepartmentAccessible(ctx, session, req.DepartmentID) {
			api.RespondWithError(w, http.StatusForbidden, "department not accessible for this user")
			return
		}

		cycle, err := fetchCycle(ctx, pgxPool, req.CycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "cycle not found: "+err.Error())
			return
		}
		if err := guardManagerWrite(cycle, req.DepartmentID); err != nil {
			api.RespondWithError(w, http.StatusForbidden, err.Error())
			return
		}

		rows, err := pgxPool.Query(ctx, `
			UPDATE budgetallocations
			SET status='submitted', submitted_by=$1, submitted_at=now(),
			    reviewed_by=NULL, reviewed_at=NULL, approved_amount=NULL, updated_at=now()
			WHERE cycle_id=$2 AND department_id=$3
			  AND status IN ('draft','revision_requested')
			RETURNING allocation_id`,
			session.Name, req.CycleID, req.DepartmentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		submitted := make([]string, 0)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err == nil {
				submitted = append(submitted, id)
			}
		}
		if len(submitted) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "no editable allocations to submit")
			return
		}
		api.LogInfo("department %s submitted %d allocations for cycle %s", req.DepartmentID, len(submitted), req.CycleID)
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"submitted_count": len(submitted),
			"allocation_ids":  submitted,
		})
	}
}

// GetPendingAllocations lists rows awaiting review, joined-ready for the
// presentation layer. Cycle and department filters are optional.
func GetPendingAllocations(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID       string `json:"user_id"`
			CycleID      string `json:"cycle_id,omitempty"`
			DepartmentID string `json:"department_id,omitempty"`
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

		allocations, err := fetchPendingAllocations(ctx, pgxPool, req.CycleID, req.DepartmentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", allocations)
	}
}

// MarkAllocationsUnderReview flags a department's submitted rows as picked up
// by a reviewer. Purely informational for other reviewers; decided rows are
// untouched.
func MarkAllocationsUnderReview(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID       string `json:"user_id"`
			CycleID      string `json:"cycle_id"`
			DepartmentID string `json:"department_id"`
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
		if !api.SessionHasReviewerRole(session) {
			api.RespondWithError(w, http.StatusForbidden, constants.ErrReviewerRole)
			return
		}

		tag, err := pgxPool.Exec(ctx, `
			UPDATE budgetallocations SET status='under_review', updated_at=now()
			WHERE cycle_id=$1 AND department_id=$2 AND status='submitted'`,
			req.CycleID, req.DepartmentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{"updated_count": tag.RowsAffected()})
	}
}
