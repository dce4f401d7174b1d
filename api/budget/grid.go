package budget

import (
	"encoding/json"
	"net/http"
	"sort"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/api/constants"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// GridTotals carries the running income/expenditure accumulators for one
// department. Period slices are 1-based via index period-1 and always dense.
type GridTotals struct {
	IncomeByPeriod  []decimal.Decimal          `json:"income_by_period"`
	ExpenseByPeriod []decimal.Decimal          `json:"expense_by_period"`
	IncomeTotal     decimal.Decimal            `json:"income_total"`
	ExpenseTotal    decimal.Decimal            `json:"expense_total"`
	NetTotal        decimal.Decimal            `json:"net_total"`
	RowTotalByHead  map[string]decimal.Decimal `json:"row_total_by_head"`
}

// DepartmentGrid is the dense review view for one department: the complete
// head tree of the catalog (empty heads included), the sparse submitted cells,
// and the derived totals. It is a pure function of its inputs and never
// reaches back into the store.
type DepartmentGrid struct {
	DepartmentID     string                              `json:"department_id"`
	Periods          int                                 `json:"periods"`
	Cells            map[string]map[int]BudgetAllocation `json:"allocations_by_head_and_period"`
	IncomeHeads      []BudgetHead                        `json:"income_heads"`
	ExpenditureHeads []BudgetHead                        `json:"expenditure_heads"`
	Totals           GridTotals                          `json:"totals"`
}

// PeriodAmounts returns the dense requested-amount row for a head, zero-filled
// for periods without a submission.
func (g *DepartmentGrid) PeriodAmounts(headID string) []decimal.Decimal {
	out := make([]decimal.Decimal, g.Periods)
	for i := range out {
		out[i] = decimal.Zero
	}
	for period, cell := range g.Cells[headID] {
		if period >= 1 && period <= g.Periods {
			out[period-1] = cell.AllocatedAmount
		}
	}
	return out
}

func newGridTotals(periods int) GridTotals {
	t := GridTotals{
		IncomeByPeriod:  make([]decimal.Decimal, periods),
		ExpenseByPeriod: make([]decimal.Decimal, periods),
		IncomeTotal:     decimal.Zero,
		ExpenseTotal:    decimal.Zero,
		NetTotal:        decimal.Zero,
		RowTotalByHead:  make(map[string]decimal.Decimal),
	}
	for i := 0; i < periods; i++ {
		t.IncomeByPeriod[i] = decimal.Zero
		t.ExpenseByPeriod[i] = decimal.Zero
	}
	return t
}

// BuildDepartmentGrids reconstructs one dense grid per department appearing in
// allocations. The catalog must contain every head the allocations reference,
// active or not: the head tree is seeded from the active catalog so empty
// heads still render as rows, while deactivated heads that carry historical
// cells are appended rather than dropped. Departments with no rows are absent
// from the result.
func BuildDepartmentGrids(allocations []BudgetAllocation, catalog []BudgetHead, periods int) map[string]*DepartmentGrid {
	headByID := make(map[string]BudgetHead, len(catalog))
	for _, h := range catalog {
		headByID[h.HeadID] = h
	}

	grids := make(map[string]*DepartmentGrid)
	for _, a := range allocations {
		g, ok := grids[a.DepartmentID]
		if !ok {
			g = &DepartmentGrid{
				DepartmentID: a.DepartmentID,
				Periods:      periods,
				Cells:        make(map[string]map[int]BudgetAllocation),
				Totals:       newGridTotals(periods),
			}
			grids[a.DepartmentID] = g
		}
		if g.Cells[a.HeadID] == nil {
			g.Cells[a.HeadID] = make(map[int]BudgetAllocation)
		}
		g.Cells[a.HeadID][a.PeriodNumber] = a

		// Head type is head-level, looked up once per row.
		head, known := headByID[a.HeadID]
		if !known || a.PeriodNumber < 1 || a.PeriodNumber > periods {
			continue
		}
		idx := a.PeriodNumber - 1
		g.Totals.RowTotalByHead[a.HeadID] = g.Totals.RowTotalByHead[a.HeadID].Add(a.AllocatedAmount)
		switch head.HeadType {
		case HeadTypeIncome:
			g.Totals.IncomeByPeriod[idx] = g.Totals.IncomeByPeriod[idx].Add(a.AllocatedAmount)
			g.Totals.IncomeTotal = g.Totals.IncomeTotal.Add(a.AllocatedAmount)
		case HeadTypeExpenditure:
			g.Totals.ExpenseByPeriod[idx] = g.Totals.ExpenseByPeriod[idx].Add(a.AllocatedAmount)
			g.Totals.ExpenseTotal = g.Totals.ExpenseTotal.Add(a.AllocatedAmount)
		}
	}

	for _, g := range grids {
		g.Totals.NetTotal = g.Totals.IncomeTotal.Sub(g.Totals.ExpenseTotal)
		g.IncomeHeads = buildHeadTree(catalog, HeadTypeIncome, g.Cells)
		g.ExpenditureHeads = buildHeadTree(catalog, HeadTypeExpenditure, g.Cells)
	}
	return grids
}

// buildHeadTree assembles the ordered two-level head tree for one head type.
// Active heads always appear, with or without data; inactive heads appear only
// when the department has historical cells under them. A child whose parent is
// missing or inactive without data is promoted to a root row instead of being
// dropped.
func buildHeadTree(catalog []BudgetHead, t HeadType, cells map[string]map[int]BudgetAllocation) []BudgetHead {
	included := make(map[string]bool, len(catalog))
	for _, h := range catalog {
		if h.HeadType != t {
			continue
		}
		if h.IsActive || len(cells[h.HeadID]) > 0 {
			included[h.HeadID] = true
		}
	}

	var roots []BudgetHead
	childrenOf := make(map[string][]BudgetHead)
	for _, h := range catalog {
		if !included[h.HeadID] {
			continue
		}
		h.Children = nil
		if h.ParentHeadID != nil && included[*h.ParentHeadID] {
			childrenOf[*h.ParentHeadID] = append(childrenOf[*h.ParentHeadID], h)
		} else {
			// no parent, or the parent fell out of the catalog: render at root
			roots = append(roots, h)
		}
	}

	sortHeads(roots)
	for i := range roots {
		kids := childrenOf[roots[i].HeadID]
		sortHeads(kids)
		roots[i].Children = kids
	}
	return roots
}

func sortHeads(heads []BudgetHead) {
	sort.SliceStable(heads, func(i, j int) bool {
		if heads[i].DisplayOrder != heads[j].DisplayOrder {
			return heads[i].DisplayOrder < heads[j].DisplayOrder
		}
		return heads[i].HeadCode < heads[j].HeadCode
	})
}

// GetReviewGrids returns the reconstructed department grids for the reviewer
// screen. Rows in submitted/under_review feed the grid; the head catalog is
// loaded in full so heads with zero submissions still produce empty rows.
func GetReviewGrids(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID       string `json:"user_id"`
			CycleID      string `json:"cycle_id"`
			DepartmentID string `json:"department_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}
		if req.CycleID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "cycle_id is required")
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

		cycle, err := fetchCycle(ctx, pgxPool, req.CycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "cycle not found: "+err.Error())
			return
		}

		allocations, err := fetchPendingAllocations(ctx, pgxPool, req.CycleID, req.DepartmentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		catalog, err := fetchHeadCatalog(ctx, pgxPool, false)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		grids := BuildDepartmentGrids(allocations, catalog, cycle.PeriodType.Periods())
		out := make([]*DepartmentGrid, 0, len(grids))
		for _, g := range grids {
			out = append(out, g)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].DepartmentID < out[j].DepartmentID })
		api.RespondWithPayload(w, true, "", out)
	}
}
