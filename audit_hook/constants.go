package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionUserCreated = "user.created"

	// Lead actions
	ActionLeadSubmitted = "lead.submitted"
	ActionLeadApproved  = "lead.approved"
	ActionLeadRejected  = "lead.rejected"

	// Access actions
	ActionLeadAccessed     = "lead.accessed"
	ActionLeadAccessDenied = "lead.access_denied"

	// Credit actions
	ActionCreditsSpent    = "credits.spent"
	ActionCreditsAdjusted = "credits.adjusted"
)

// Resource constants for audit events.
const (
	ResourceUser   = "user"
	ResourceLead   = "lead"
	ResourceCredit = "credit"
)

// Category constants for audit events.
const (
	CategoryAccount    = "account"
	CategoryModeration = "moderation"
	CategoryAccess     = "access"
	CategoryCredits    = "credits"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
