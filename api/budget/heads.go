package budget

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/api/constants"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BudgetHeadRequest is the minimal create/update row shape.
type BudgetHeadRequest struct {
	HeadCode                string `json:"head_code"`
	HeadName                string `json:"head_name"`
	HeadType                string `json:"head_type"`
	ParentHeadCode          string `json:"parent_head_code,omitempty"`
	DisplayOrder            int    `json:"display_order"`
	AllowDepartmentSubitems bool   `json:"allow_department_subitems"`
}

// CreateBudgetHeads inserts catalog rows in bulk. A parent is referenced by
// code, must exist, carry the same type and itself be top-level (the chart is
// at most two levels deep).
func CreateBudgetHeads(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string              `json:"user_id"`
			Rows   []BudgetHeadRequest `json:"rows"`
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

		created := make([]map[string]interface{}, 0, len(req.Rows))
		for _, row := range req.Rows {
			if strings.TrimSpace(row.HeadCode) == "" || strings.TrimSpace(row.HeadName) == "" {
				created = append(created, map[string]interface{}{
					constants.ValueSuccess: false, "head_code": row.HeadCode, constants.ValueError: constants.ErrMissingRequiredFields,
				})
				continue
			}
			headType, err := ParseHeadType(row.HeadType)
			if err != nil {
				created = append(created, map[string]interface{}{
					constants.ValueSuccess: false, "head_code": row.HeadCode, constants.ValueError: err.Error(),
				})
				continue
			}

			var parentID *string
			if strings.TrimSpace(row.ParentHeadCode) != "" {
				var (
					pid     string
					ptype   string
					pparent *string
					pactive bool
				)
				err := pgxPool.QueryRow(ctx, `
					SELECT head_id, head_type, parent_head_id, is_active
					FROM masterbudgethead WHERE head_code=$1`, row.ParentHeadCode).
					Scan(&pid, &ptype, &pparent, &pactive)
				if err != nil {
					created = append(created, map[string]interface{}{
						constants.ValueSuccess: false, "head_code": row.HeadCode, constants.ValueError: "parent_head_code not found",
					})
					continue
				}
				parentType, perr := ParseHeadType(ptype)
				if perr != nil || parentType != headType {
					created = append(created, map[string]interface{}{
						constants.ValueSuccess: false, "head_code": row.HeadCode, constants.ValueError: "parent must be of the same head_type",
					})
					continue
				}
				if pparent != nil {
					created = append(created, map[string]interface{}{
						constants.ValueSuccess: false, "head_code": row.HeadCode, constants.ValueError: "parent is itself a sub-head; max depth is 2",
					})
					continue
				}
				if !pactive {
					created = append(created, map[string]interface{}{
						constants.ValueSuccess: false, "head_code": row.HeadCode, constants.ValueError: "parent head is inactive",
					})
					continue
				}
				parentID = &pid
			}

			var headID string
			err = pgxPool.QueryRow(ctx, `
				INSERT INTO masterbudgethead (
					head_id, head_code, head_name, head_type, parent_head_id,
					display_order, is_active, allow_department_subitems,
					created_by, created_at
				) VALUES (
					'BH-' || LPAD(nextval('budget_head_seq')::text, 6, '0'),
					$1,$2,$3,$4,$5,true,$6,$7,now()
				) RETURNING head_id`,
				row.HeadCode, row.HeadName, headType.String(), parentID,
				row.DisplayOrder, row.AllowDepartmentSubitems, session.Name).Scan(&headID)
			if err != nil {
				created = append(created, map[string]interface{}{
					constants.ValueSuccess: false, "head_code": row.HeadCode, constants.ValueError: err.Error(),
				})
				continue
			}
			created = append(created, map[string]interface{}{
				constants.ValueSuccess: true, "head_id": headID, "head_code": row.HeadCode,
			})
		}
		api.RespondWithPayload(w, api.IsBulkSuccess(created), "", created)
	}
}

// UpdateBudgetHeadsBulk applies partial field updates to catalog rows. Type
// and parent are immutable after creation; name, order, sub-item policy and
// active flag are not.
func UpdateBudgetHeadsBulk(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
			Rows   []struct {
				HeadID                  string  `json:"head_id"`
				HeadName                *string `json:"head_name,omitempty"`
				DisplayOrder            *int    `json:"display_order,omitempty"`
				IsActive                *bool   `json:"is_active,omitempty"`
				AllowDepartmentSubitems *bool   `json:"allow_department_subitems,omitempty"`
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
		if !api.SessionHasReviewerRole(session) {
			api.RespondWithError(w, http.StatusForbidden, constants.ErrAdministratorRole)
			return
		}

		results := make([]map[string]interface{}, 0, len(req.Rows))
		for _, row := range req.Rows {
			sets := []string{"updated_by=$1", "updated_at=now()"}
			args := []interface{}{session.Name}
			if row.HeadName != nil {
				args = append(args, *row.HeadName)
				sets = append(sets, fmt.Sprintf("head_name=$%d", len(args)))
			}
			if row.DisplayOrder != nil {
				args = append(args, *row.DisplayOrder)
				sets = append(sets, fmt.Sprintf("display_order=$%d", len(args)))
			}
			if row.IsActive != nil {
				args = append(args, *row.IsActive)
				sets = append(sets, fmt.Sprintf("is_active=$%d", len(args)))
			}
			if row.AllowDepartmentSubitems != nil {
				args = append(args, *row.AllowDepartmentSubitems)
				sets = append(sets, fmt.Sprintf("allow_department_subitems=$%d", len(args)))
			}
			args = append(args, row.HeadID)
			query := fmt.Sprintf("UPDATE masterbudgethead SET %s WHERE head_id=$%d",
				strings.Join(sets, ", "), len(args))
			tag, err := pgxPool.Exec(ctx, query, args...)
			if err != nil {
				results = append(results, map[string]interface{}{constants.ValueSuccess: false, "head_id": row.HeadID, constants.ValueError: err.Error()})
				continue
			}
			if tag.RowsAffected() == 0 {
				results = append(results, map[string]interface{}{constants.ValueSuccess: false, "head_id": row.HeadID, constants.ValueError: "head not found"})
				continue
			}
			results = append(results, map[string]interface{}{constants.ValueSuccess: true, "head_id": row.HeadID})
		}
		api.RespondWithPayload(w, api.IsBulkSuccess(results), "", results)
	}
}

// DeactivateBudgetHead soft-disables a head and its children. Rows are never
// hard-deleted while allocations reference them; the grid keeps rendering
// historical cells under deactivated heads.
func DeactivateBudgetHead(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
			HeadID string `json:"head_id"`
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

		tag, err := pgxPool.Exec(ctx, `
			UPDATE masterbudgethead
			SET is_active=false, updated_by=$1, updated_at=now()
			WHERE head_id=$2 OR parent_head_id=$2`, session.Name, req.HeadID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "head not found")
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{"deactivated_count": tag.RowsAffected()})
	}
}

// GetActiveBudgetHeads returns the flat active catalog, the seed for grid
// reconstruction.
func GetActiveBudgetHeads(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
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
		heads, err := fetchHeadCatalog(ctx, pgxPool, true)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", heads)
	}
}

// GetBudgetHeadHierarchy returns the two-level catalog tree per head type,
// ordered by display_order, for the manager's submission form.
func GetBudgetHeadHierarchy(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
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
		heads, err := fetchHeadCatalog(ctx, pgxPool, true)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		noCells := map[string]map[int]BudgetAllocation{}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"income":      buildHeadTree(heads, HeadTypeIncome, noCells),
			"expenditure": buildHeadTree(heads, HeadTypeExpenditure, noCells),
		})
	}
}
