package maptesting

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedTopic marks a persisted topic string that cannot be
// parsed back into a MapChannel.
var ErrMalformedTopic = errors.New("malformed channel topic")

// ValidationError rejects a submission before any state is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// RuleViolation rejects a transition that is not allowed from the
// channel's current state. No mutation, no cooldown consumption.
type RuleViolation struct {
	Reason string
}

func (e *RuleViolation) Error() string {
	return e.Reason
}

// RateLimited rejects a structural mutation while the channel's
// cooldown budget is exhausted.
type RateLimited struct {
	RetryAfter time.Duration
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// StructuralCheckFailure blocks a promotion because the checker found
// problems in the artifact.
type StructuralCheckFailure struct {
	Diagnostics string
}

func (e *StructuralCheckFailure) Error() string {
	return "structural check failed: " + e.Diagnostics
}
