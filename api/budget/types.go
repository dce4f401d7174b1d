package budget

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HeadType is the closed two-variant kind of a budget head. Totals are split
// by this type, so it is deliberately not a free string.
type HeadType int8

const (
	HeadTypeIncome HeadType = iota
	HeadTypeExpenditure
)

func ParseHeadType(s string) (HeadType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return HeadTypeIncome, nil
	case "expenditure", "expense":
		return HeadTypeExpenditure, nil
	}
	return 0, fmt.Errorf("invalid head_type %q (expected income or expenditure)", s)
}

func (t HeadType) String() string {
	switch t {
	case HeadTypeIncome:
		return "income"
	case HeadTypeExpenditure:
		return "expenditure"
	}
	return "unknown"
}

func (t HeadType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *HeadType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseHeadType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PeriodType determines how many period cells a cycle carries.
type PeriodType string

const (
	PeriodTypeMonthly   PeriodType = "monthly"
	PeriodTypeQuarterly PeriodType = "quarterly"
)

func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodTypeMonthly:
		return PeriodTypeMonthly, nil
	case PeriodTypeQuarterly:
		return PeriodTypeQuarterly, nil
	}
	return "", fmt.Errorf("invalid period_type %q (expected monthly or quarterly)", s)
}

// Periods returns the number of period cells per head for this cycle type.
func (p PeriodType) Periods() int {
	if p == PeriodTypeQuarterly {
		return 4
	}
	return 12
}

// BudgetHead is one row of the master chart departments budget against.
// Hierarchy is at most two levels: a head with a parent has no children.
type BudgetHead struct {
	HeadID                  string       `json:"head_id"`
	HeadCode                string       `json:"head_code"`
	HeadName                string       `json:"head_name"`
	HeadType                HeadType     `json:"head_type"`
	ParentHeadID            *string      `json:"parent_head_id,omitempty"`
	DisplayOrder            int          `json:"display_order"`
	IsActive                bool         `json:"is_active"`
	AllowDepartmentSubitems bool         `json:"allow_department_subitems"`
	Children                []BudgetHead `json:"children,omitempty"`
}

// CycleStatus lifecycle: draft -> open -> closed -> archived, forward only.
type CycleStatus string

const (
	CycleDraft    CycleStatus = "draft"
	CycleOpen     CycleStatus = "open"
	CycleClosed   CycleStatus = "closed"
	CycleArchived CycleStatus = "archived"
)

type BudgetCycle struct {
	CycleID        string      `json:"cycle_id"`
	CycleName      string      `json:"cycle_name"`
	FiscalYear     string      `json:"fiscal_year"`
	PeriodType     PeriodType  `json:"period_type"`
	StartDate      string      `json:"start_date"`
	EndDate        string      `json:"end_date"`
	Status         CycleStatus `json:"status"`
	AutoOpen       bool        `json:"auto_open"`
	AllowedDeptIDs []string    `json:"allowed_department_ids,omitempty"` // nil = all departments
}

// DepartmentAllowed reports whether a department may write allocations into
// this cycle. A nil allow-list admits every department.
func (c *BudgetCycle) DepartmentAllowed(departmentID string) bool {
	if c.AllowedDeptIDs == nil {
		return true
	}
	for _, id := range c.AllowedDeptIDs {
		if id == departmentID {
			return true
		}
	}
	return false
}

// AllocationStatus is the review status of one allocation cell.
type AllocationStatus string

const (
	StatusDraft             AllocationStatus = "draft"
	StatusSubmitted         AllocationStatus = "submitted"
	StatusUnderReview       AllocationStatus = "under_review"
	StatusApproved          AllocationStatus = "approved"
	StatusRejected          AllocationStatus = "rejected"
	StatusRevisionRequested AllocationStatus = "revision_requested"
)

// BudgetAllocation is the atomic fact row: one head, one department, one
// period within a cycle. At most one row exists per (cycle, head, department,
// period).
type BudgetAllocation struct {
	AllocationID    string           `json:"allocation_id"`
	CycleID         string           `json:"cycle_id"`
	HeadID          string           `json:"head_id"`
	DepartmentID    string           `json:"department_id"`
	PeriodNumber    int              `json:"period_number"`
	AllocatedAmount decimal.Decimal  `json:"allocated_amount"`
	ApprovedAmount  *decimal.Decimal `json:"approved_amount,omitempty"`
	Status          AllocationStatus `json:"status"`
	Notes           *string          `json:"notes,omitempty"`
	SubmittedBy     *string          `json:"submitted_by,omitempty"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	ReviewedBy      *string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
}

// ReviewDecision is the reviewer's verdict applied to a whole batch.
type ReviewDecision string

const (
	DecisionApprove           ReviewDecision = "approve"
	DecisionReject            ReviewDecision = "reject"
	DecisionRevisionRequested ReviewDecision = "revision_requested"
)

func ParseReviewDecision(s string) (ReviewDecision, error) {
	switch ReviewDecision(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	case DecisionRevisionRequested:
		return DecisionRevisionRequested, nil
	}
	return "", fmt.Errorf("invalid decision %q (expected approve, reject or revision_requested)", s)
}
