// Package models defines the data structures shared across the service.
package models

import "time"

// Priority is the urgency level of a nudge.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority value.
func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityUrgent
}

// Nudge is a short operational message addressed to a table or a session.
// TableID is empty for session-wide nudges; those appear in every table's
// poll for the session. Timestamps advance monotonically and never revert:
// AcknowledgedAt, once set, is terminal.
type Nudge struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"sessionId"`
	TableID        string     `json:"tableId,omitempty"`
	Message        string     `json:"message"`
	Priority       Priority   `json:"priority"`
	SentAt         time.Time  `json:"sentAt"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	OpenedAt       *time.Time `json:"openedAt,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
}

// NudgeStats are aggregate delivery counts for a table or session.
// All counts are derived by scanning the nudge rows, never maintained
// separately, so they cannot drift from the underlying data.
type NudgeStats struct {
	Sent         int `json:"sent"`
	Delivered    int `json:"delivered"`
	Opened       int `json:"opened"`
	Acknowledged int `json:"acknowledged"`
	Pending      int `json:"pending"`
}

// Playbook is a named, ordered list of time-offset nudge templates.
type Playbook struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	DurationMinutes int            `json:"durationMinutes"`
	Steps           []PlaybookStep `json:"steps"`
}

// PlaybookStep is one template entry within a playbook.
type PlaybookStep struct {
	OffsetMinutes int      `json:"offsetMinutes"`
	Message       string   `json:"message"`
	Priority      Priority `json:"priority"`
}

// PlaybookRun records one invocation of a playbook for a session.
type PlaybookRun struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	PlaybookID string    `json:"playbookId"`
	StartedAt  time.Time `json:"startedAt"`
}
