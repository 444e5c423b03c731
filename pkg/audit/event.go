// Package audit records every configuration session nvconf runs.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/nvconf/pkg/executor"
)

// Event is one audited session.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Device    string    `json:"device"`
	Operation string    `json:"operation"`

	// Invocations is every nv call made, in order, including failures.
	Invocations []executor.Invocation `json:"invocations,omitempty"`

	Changed   bool          `json:"changed"`
	CheckMode bool          `json:"check_mode"`
	Before    string        `json:"before,omitempty"`
	After     string        `json:"after,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	ChangedOnly bool
	FailureOnly bool
	Limit       int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithInvocations records the nv calls made during the session.
func (e *Event) WithInvocations(invs []executor.Invocation) *Event {
	e.Invocations = invs
	return e
}

// WithCheckMode marks the session as a dry run.
func (e *Event) WithCheckMode(check bool) *Event {
	e.CheckMode = check
	return e
}

// WithResult marks the event as successful and records the outcome.
func (e *Event) WithResult(changed bool, before, after string) *Event {
	e.Success = true
	e.Changed = changed
	e.Before = before
	e.After = after
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the session duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// Matches reports whether the event passes filter.
func (e *Event) Matches(filter Filter) bool {
	if filter.Device != "" && e.Device != filter.Device {
		return false
	}
	if filter.User != "" && e.User != filter.User {
		return false
	}
	if filter.Operation != "" && e.Operation != filter.Operation {
		return false
	}
	if !filter.StartTime.IsZero() && e.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && e.Timestamp.After(filter.EndTime) {
		return false
	}
	if filter.ChangedOnly && !e.Changed {
		return false
	}
	if filter.FailureOnly && e.Success {
		return false
	}
	return true
}
