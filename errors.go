package leadledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/leadledger/policy"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("leadledger: not found")
	ErrAlreadyExists = errors.New("leadledger: already exists")
	ErrInvalidInput  = errors.New("leadledger: invalid input")
	ErrUnauthorized  = policy.ErrUnauthorized
	ErrForbidden     = policy.ErrForbidden

	// User errors
	ErrUserNotFound       = errors.New("leadledger: user not found")
	ErrEmailTaken         = errors.New("leadledger: user already exists")
	ErrInvalidCredentials = errors.New("leadledger: invalid credentials")

	// Lead errors
	ErrLeadNotFound      = errors.New("leadledger: lead not found")
	ErrNotApproved       = errors.New("leadledger: lead not approved")
	ErrInvalidTransition = errors.New("leadledger: invalid status transition")

	// Credit errors
	ErrInsufficientCredits = errors.New("leadledger: insufficient credits")
	ErrAlreadyViewed       = errors.New("leadledger: lead already viewed")

	// Store errors
	ErrStoreClosed       = errors.New("leadledger: store is closed")
	ErrTransactionFailed = errors.New("leadledger: transaction failed")
	ErrMigrationFailed   = errors.New("leadledger: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("leadledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// Violations collects field failures of one input.
type Violations map[string]string

// Add records msg for field unless the field already failed.
func (v Violations) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns nil when empty, a ValidationError for one failure, and a
// joined error otherwise.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	errs := make([]error, 0, len(fields))
	for _, f := range fields {
		errs = append(errs, ValidationError{Field: f, Message: v[f]})
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &ViolationsError{errs: errs}
}

// ViolationsError carries several ValidationErrors.
type ViolationsError struct {
	errs []error
}

func (e *ViolationsError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *ViolationsError) Unwrap() []error { return e.errs }

// Fields returns the failures keyed by field.
func (e *ViolationsError) Fields() map[string]string {
	out := make(map[string]string, len(e.errs))
	for _, err := range e.errs {
		var ve ValidationError
		if errors.As(err, &ve) {
			out[ve.Field] = ve.Message
		}
	}
	return out
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrLeadNotFound)
}

// IsDomainError reports whether err is a typed outcome that leaves no side
// effects, as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	return IsNotFound(err) ||
		IsAuthError(err) ||
		errors.Is(err, ErrNotApproved) ||
		errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrAlreadyExists)
}

// IsAuthError returns true for authentication and authorization failures.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidCredentials)
}
