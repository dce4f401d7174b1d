package budget

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/api/constants"
	"BudgetCorpSaas/api/utils"

	"github.com/jackc/pgx/v5/pgxpool"
)

// cycleStatusNext is the forward-only lifecycle: draft -> open -> closed ->
// archived. Reopening a closed cycle is an administrator action modeled as a
// fresh cycle, not a backward transition.
var cycleStatusNext = map[CycleStatus]CycleStatus{
	CycleDraft:  CycleOpen,
	CycleOpen:   CycleClosed,
	CycleClosed: CycleArchived,
}

// CreateBudgetCycle registers a named fiscal period. The allow-list is
// optional; absent means every department may submit once the cycle opens.
func CreateBudgetCycle(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID         string   `json:"user_id"`
			CycleName      string   `json:"cycle_name"`
			FiscalYear     string   `json:"fiscal_year"`
			PeriodType     string   `json:"period_type"`
			StartDate      string   `json:"start_date"`
			EndDate        string   `json:"end_date"`
			AutoOpen       bool     `json:"auto_open"`
			AllowedDeptIDs []string `json:"allowed_department_ids,omitempty"`
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
			api.RespondWithError(w, http.StatusForbidden, constants.ErrAdministratorRole)
			return
		}
		if strings.TrimSpace(req.CycleName) == "" || strings.TrimSpace(req.FiscalYear) == "" {
			api.RespondWithError(w, http.StatusBadRequest, "cycle_name and fiscal_year are required")
			return
		}
		periodType, err := ParsePeriodType(req.PeriodType)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		start := api.NormalizeDate(req.StartDate)
		end := api.NormalizeDate(req.EndDate)
		if start == "" || end == "" {
			api.RespondWithError(w, http.StatusBadRequest, "invalid start_date or end_date")
			return
		}
		startT, _ := time.Parse(constants.DateFormat, start)
		endT, _ := time.Parse(constants.DateFormat, end)
		if !endT.After(startT) {
			api.RespondWithError(w, http.StatusBadRequest, "end_date must be after start_date")
			return
		}

		var allowed interface{}
		if req.AllowedDeptIDs != nil {
			allowed = req.AllowedDeptIDs
		}
		var cycleID string
		err = pgxPool.QueryRow(ctx, `
			INSERT INTO masterbudgetcycle (
				cycle_id, cycle_name, fiscal_year, period_type, start_date, end_date,
				status, auto_open, allowed_department_ids, created_by, created_at
			) VALUES (
				'BC-' || LPAD(nextval('budget_cycle_seq')::text, 6, '0'),
				$1,$2,$3,$4,$5,'draft',$6,$7,$8,now()
			) RETURNING cycle_id`,
			req.CycleName, req.FiscalYear, string(periodType), startT, endT,
			req.AutoOpen, allowed, session.Name).Scan(&cycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{"cycle_id": cycleID})
	}
}

// UpdateBudgetCycle edits name, dates and allow-list while the cycle is still
// a draft. Period type is immutable once any allocation exists.
func UpdateBudgetCycle(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID         string    `json:"user_id"`
			CycleID        string    `json:"cycle_id"`
			CycleName      *string   `json:"cycle_name,omitempty"`
			StartDate      *string   `json:"start_date,omitempty"`
			EndDate        *string   `json:"end_date,omitempty"`
			AutoOpen       *bool     `json:"auto_open,omitempty"`
			AllowedDeptIDs *[]string `json:"allowed_department_ids,omitempty"`
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
			api.RespondWithError(w, http.StatusForbidden, constants.ErrAdministratorRole)
			return
		}

		sets := []string{"updated_by=$1", "updated_at=now()"}
		args := []interface{}{session.Name}
		if req.CycleName != nil {
			args = append(args, *req.CycleName)
			sets = append(sets, fmt.Sprintf("cycle_name=$%d", len(args)))
		}
		if req.StartDate != nil {
			norm := api.NormalizeDate(*req.StartDate)
			if norm == "" {
				api.RespondWithError(w, http.StatusBadRequest, "invalid start_date")
				return
			}
			args = append(args, norm)
			sets = append(sets, fmt.Sprintf("start_date=$%d", len(args)))
		}
		if req.EndDate != nil {
			norm := api.NormalizeDate(*req.EndDate)
			if norm == "" {
				api.RespondWithError(w, http.StatusBadRequest, "invalid end_date")
				return
			}
			args = append(args, norm)
			sets = append(sets, fmt.Sprintf("end_date=$%d", len(args)))
		}
		if req.AutoOpen != nil {
			args = append(args, *req.AutoOpen)
			sets = append(sets, fmt.Sprintf("auto_open=$%d", len(args)))
		}
		if req.AllowedDeptIDs != nil {
			args = append(args, *req.AllowedDeptIDs)
			sets = append(sets, fmt.Sprintf("allowed_department_ids=$%d", len(args)))
		}
		args = append(args, req.CycleID)
		query := fmt.Sprintf(
			"UPDATE masterbudgetcycle SET %s WHERE cycle_id=$%d AND status='draft'",
			strings.Join(sets, ", "), len(args))
		tag, err := pgxPool.Exec(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "cycle not found or no longer a draft")
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{"cycle_id": req.CycleID})
	}
}

// TransitionBudgetCycle advances a cycle one lifecycle step. Only the exact
// next status is accepted; skipping or reversing steps is rejected.
func TransitionBudgetCycle(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID  string `json:"user_id"`
			CycleID string `json:"cycle_id"`
			Status  string `json:"status"`
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
			api.RespondWithError(w, http.StatusForbidden, constants.ErrAdministratorRole)
			return
		}

		cycle, err := fetchCycle(ctx, pgxPool, req.CycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "cycle not found: "+err.Error())
			return
		}
		target := CycleStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if next, ok := cycleStatusNext[cycle.Status]; !ok || next != target {
			api.RespondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("illegal transition %s -> %s", cycle.Status, target))
			return
		}

		if _, err := pgxPool.Exec(ctx, `
			UPDATE masterbudgetcycle SET status=$1, updated_by=$2, updated_at=now()
			WHERE cycle_id=$3`, string(target), session.Name, req.CycleID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.LogInfo("cycle %s transitioned %s -> %s by %s", req.CycleID, cycle.Status, target, session.Name)
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"cycle_id": req.CycleID, "status": target,
		})
	}
}

// GetBudgetCycle returns a single cycle by id.
func GetBudgetCycle(pgxPool *pgxpool.Pool) http.HandlerFunc {
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
		cycle, err := fetchCycle(ctx, pgxPool, req.CycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "cycle not found: "+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", cycle)
	}
}

// GetBudgetCycles lists cycles, optionally restricted to one status.
// Supports ?page= and ?limit= query parameters.
func GetBudgetCycles(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
			Status string `json:"status,omitempty"`
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
		pagination, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		countQuery := `SELECT COUNT(*) FROM masterbudgetcycle`
		query := `
			SELECT cycle_id, cycle_name, fiscal_year, period_type, start_date, end_date,
			       status, auto_open, allowed_department_ids
			FROM masterbudgetcycle`
		args := []interface{}{}
		if strings.TrimSpace(req.Status) != "" {
			args = append(args, strings.ToLower(strings.TrimSpace(req.Status)))
			query += ` WHERE status=$1`
			countQuery += ` WHERE status=$1`
		}
		total, err := utils.CountTotal(ctx, pgxPool, countQuery, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pagination.SetPaginationStats(total)

		query += fmt.Sprintf(` ORDER BY start_date DESC, cycle_id LIMIT %d OFFSET %d`,
			pagination.Limit, pagination.Offset)

		rows, err := pgxPool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		cycles := make([]BudgetCycle, 0)
		for rows.Next() {
			var (
				c          BudgetCycle
				periodType string
				status     string
				start, end time.Time
			)
			if err := rows.Scan(&c.CycleID, &c.CycleName, &c.FiscalYear, &periodType,
				&start, &end, &status, &c.AutoOpen, &c.AllowedDeptIDs); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			pt, perr := ParsePeriodType(periodType)
			if perr != nil {
				api.RespondWithError(w, http.StatusInternalServerError, perr.Error())
				return
			}
			c.PeriodType = pt
			c.StartDate = start.Format(constants.DateFormat)
			c.EndDate = end.Format(constants.DateFormat)
			c.Status = CycleStatus(status)
			cycles = append(cycles, c)
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"pagination": pagination,
			"cycles":     cycles,
		})
	}
}
