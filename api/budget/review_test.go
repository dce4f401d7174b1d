package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReviewRequestDecisions(t *testing.T) {
	d, err := validateReviewRequest(&ReviewRequest{
		Decision: "approve", AllocationIDs: []string{"a1"},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, d)

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "shrug", AllocationIDs: []string{"a1"},
	})
	assert.Error(t, err)
}

func TestValidateReviewRequestNotesRequired(t *testing.T) {
	_, err := validateReviewRequest(&ReviewRequest{
		Decision: "reject", AllocationIDs: []string{"a1"},
	})
	assert.Error(t, err, "reject without notes must fail")

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "revision_requested", AllocationIDs: []string{"a1"}, Notes: "  ",
	})
	assert.Error(t, err, "whitespace notes do not count")

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "reject", AllocationIDs: []string{"a1"}, Notes: "over the cap",
	})
	assert.NoError(t, err)

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "approve", AllocationIDs: []string{"a1"},
	})
	assert.NoError(t, err, "approvals may be silent")
}

func TestValidateReviewRequestOverrides(t *testing.T) {
	overrides := map[string]decimal.Decimal{"a1": dec("900")}

	_, err := validateReviewRequest(&ReviewRequest{
		Decision: "reject", Notes: "no", AllocationIDs: []string{"a1"},
		ApprovedAmounts: overrides,
	})
	assert.Error(t, err, "overrides only make sense on approve")

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "approve", AllocationIDs: []string{"a1"},
		ApprovedAmounts: overrides,
	})
	assert.NoError(t, err)

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "approve", AllocationIDs: []string{"a1"},
		ApprovedAmounts: map[string]decimal.Decimal{"a1": dec("-5")},
	})
	assert.Error(t, err, "negative override rejected")
}

func TestValidateReviewRequestTarget(t *testing.T) {
	_, err := validateReviewRequest(&ReviewRequest{Decision: "approve"})
	assert.Error(t, err, "no ids and no scope")

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "approve", CycleID: "BC-000001",
	})
	assert.Error(t, err, "scope needs department too")

	_, err = validateReviewRequest(&ReviewRequest{
		Decision: "approve", CycleID: "BC-000001", DepartmentID: "D1",
	})
	assert.NoError(t, err)
}

func TestPartitionEligible(t *testing.T) {
	rows := []BudgetAllocation{
		{AllocationID: "a1", Status: StatusSubmitted},
		{AllocationID: "a2", Status: StatusApproved},
		{AllocationID: "a3", Status: StatusUnderReview},
		{AllocationID: "a4", Status: StatusDraft},
	}
	eligible, skipped := partitionEligible(rows)

	var ids []string
	for _, a := range eligible {
		ids = append(ids, a.AllocationID)
	}
	assert.Equal(t, []string{"a1", "a3"}, ids)
	assert.Equal(t, []string{"a2", "a4"}, skipped)
}

func TestApprovedAmountFor(t *testing.T) {
	a := BudgetAllocation{AllocationID: "a1", AllocatedAmount: dec("1000")}

	got := approvedAmountFor(a, nil)
	assert.True(t, got.Equal(dec("1000")), "defaults to the requested amount")

	got = approvedAmountFor(a, map[string]decimal.Decimal{"a1": dec("750")})
	assert.True(t, got.Equal(dec("750")))

	got = approvedAmountFor(a, map[string]decimal.Decimal{"other": dec("1")})
	assert.True(t, got.Equal(dec("1000")))
}
