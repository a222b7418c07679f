package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used when recording fails.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions records only the given actions. Without it every
// action is recorded.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = actionSet(actions)
	}
}

// WithDisabledActions drops the given actions from whatever is enabled.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = actionSet(allActions)
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

func actionSet(actions []string) map[string]bool {
	set := make(map[string]bool, len(actions))
	for _, action := range actions {
		set[action] = true
	}
	return set
}

var allActions = []string{
	ActionUserCreated,
	ActionLeadSubmitted,
	ActionLeadApproved,
	ActionLeadRejected,
	ActionLeadAccessed,
	ActionLeadAccessDenied,
	ActionCreditsSpent,
	ActionCreditsAdjusted,
}
