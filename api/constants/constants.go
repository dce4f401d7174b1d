package constants

// Common error messages
const (
	ErrInvalidSession  = "Invalid user_id or session"
	ErrInvalidJSON     = "Invalid JSON"
	ErrUnsupportedFile = "unsupported file type"
)

// Budget catalog and review messages
const (
	ErrMissingRequiredFields = "missing required fields"
	ErrNoEligibleRows        = "no eligible allocations resolved for review"
	ErrReviewerRole          = "reviewer role required"
	ErrAdministratorRole     = "administrator role required"
)

// Bulk result keys
const (
	ValueSuccess = "success"
	ValueError   = "error"
)

// Date formats
const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
)
