package budget

// Allocation status transitions:
//
//	draft -> submitted -> under_review -> approved | rejected | revision_requested
//	revision_requested -> draft | submitted   (manager edits and resubmits)
//
// approved and rejected are terminal for the cell within its cycle. The
// allocation store and the review engine both consult these guards; nothing
// else is allowed to move a status.

// EditableByManager reports whether a manager may overwrite the cell's amount
// and notes.
func (s AllocationStatus) EditableByManager() bool {
	return s == StatusDraft || s == StatusRevisionRequested
}

// ReviewEligible reports whether a reviewer decision may touch this row.
// Rows already approved or rejected are skipped by bulk actions, never
// re-transitioned.
func (s AllocationStatus) ReviewEligible() bool {
	return s == StatusSubmitted || s == StatusUnderReview
}

// Terminal reports whether the cell has reached a final verdict for the cycle.
func (s AllocationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

var allowedTransitions = map[AllocationStatus][]AllocationStatus{
	StatusDraft:             {StatusSubmitted},
	StatusSubmitted:         {StatusUnderReview, StatusApproved, StatusRejected, StatusRevisionRequested},
	StatusUnderReview:       {StatusApproved, StatusRejected, StatusRevisionRequested},
	StatusRevisionRequested: {StatusDraft, StatusSubmitted},
}

// CanTransition reports whether moving from s to next is a legal step in the
// allocation lifecycle.
func (s AllocationStatus) CanTransition(next AllocationStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Outcome maps a reviewer decision onto the status every row in the batch
// receives.
func (d ReviewDecision) Outcome() AllocationStatus {
	switch d {
	case DecisionApprove:
		return StatusApproved
	case DecisionReject:
		return StatusRejected
	case DecisionRevisionRequested:
		return StatusRevisionRequested
	}
	return ""
}

// RequiresNotes reports whether the decision must carry a reviewer comment.
// Approvals may be silent; rejections and revision requests never are.
func (d ReviewDecision) RequiresNotes() bool {
	return d == DecisionReject || d == DecisionRevisionRequested
}
