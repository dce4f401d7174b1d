package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocationStatusGuards(t *testing.T) {
	assert.True(t, StatusDraft.EditableByManager())
	assert.True(t, StatusRevisionRequested.EditableByManager())
	assert.False(t, StatusSubmitted.EditableByManager())
	assert.False(t, StatusApproved.EditableByManager())

	assert.True(t, StatusSubmitted.ReviewEligible())
	assert.True(t, StatusUnderReview.ReviewEligible())
	assert.False(t, StatusDraft.ReviewEligible())
	assert.False(t, StatusRejected.ReviewEligible())

	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusRevisionRequested.Terminal())
}

func TestAllocationStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to AllocationStatus
		ok       bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusDraft, StatusApproved, false},
		{StatusSubmitted, StatusUnderReview, true},
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusSubmitted, StatusRevisionRequested, true},
		{StatusSubmitted, StatusDraft, false},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusSubmitted, false},
		{StatusRevisionRequested, StatusDraft, true},
		{StatusRevisionRequested, StatusSubmitted, true},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusDraft, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestReviewDecisionOutcome(t *testing.T) {
	assert.Equal(t, StatusApproved, DecisionApprove.Outcome())
	assert.Equal(t, StatusRejected, DecisionReject.Outcome())
	assert.Equal(t, StatusRevisionRequested, DecisionRevisionRequested.Outcome())
}

func TestReviewDecisionRequiresNotes(t *testing.T) {
	assert.False(t, DecisionApprove.RequiresNotes())
	assert.True(t, DecisionReject.RequiresNotes())
	assert.True(t, DecisionRevisionRequested.RequiresNotes())
}

func TestParseReviewDecision(t *testing.T) {
	d, err := ParseReviewDecision("  Approve ")
	assert.NoError(t, err)
	assert.Equal(t, DecisionApprove, d)

	_, err = ParseReviewDecision("maybe")
	assert.Error(t, err)
}
