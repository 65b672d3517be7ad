package ledger

import "errors"

// Guard failures. These are surfaced to the caller as-is and never retried
// automatically: a failed guard means the tracing was not in a state that
// admits the requested transition.
var (
	ErrTracingNotFound               = errors.New("tracingNotFound")
	ErrTracingAlreadyExists          = errors.New("tracingAlreadyExists")
	ErrTracingRecoverCannotBeUpdated = errors.New("tracingRecoverCannotBeUpdated")
	ErrTracingReplaceCannotBeUpdated = errors.New("tracingReplaceCannotBeUpdated")
	ErrTracingCannotBeCancelled      = errors.New("tracingCannotBeCancelled")
)
