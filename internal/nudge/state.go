// Package nudge owns the nudge delivery lifecycle, rate limiting hooks and
// playbook scheduling.
package nudge

import (
	"fmt"
	"time"

	"tablecast/internal/models"
)

// State represents the delivery lifecycle state of a nudge.
type State int

const (
	// StateScheduled - scheduledAt is in the future; invisible to devices.
	StateScheduled State = iota
	// StatePending - due and not yet acknowledged; visible on a device poll.
	StatePending
	// StateDelivered - retrieved by a device at least once.
	StateDelivered
	// StateAcknowledged - explicitly dismissed on the device. Terminal.
	StateAcknowledged
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateScheduled:
		return "SCHEDULED"
	case StatePending:
		return "PENDING"
	case StateDelivered:
		return "DELIVERED"
	case StateAcknowledged:
		return "ACKNOWLEDGED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (ACKNOWLEDGED).
func (s State) IsTerminal() bool {
	return s == StateAcknowledged
}

// StateOf derives the lifecycle state of a nudge at the given instant.
// State is a pure function of the nudge timestamps, never stored, so it
// cannot disagree with the row.
func StateOf(n *models.Nudge, now time.Time) State {
	if n.AcknowledgedAt != nil {
		return StateAcknowledged
	}
	if n.ScheduledAt != nil && n.ScheduledAt.After(now) {
		return StateScheduled
	}
	if n.DeliveredAt != nil {
		return StateDelivered
	}
	return StatePending
}

// Due reports whether the nudge is visible to devices at the given instant:
// not scheduled for the future and not yet acknowledged.
func Due(n *models.Nudge, now time.Time) bool {
	s := StateOf(n, now)
	return s == StatePending || s == StateDelivered
}

// MarkDelivered records the first successful device retrieval. Idempotent:
// an existing deliveredAt is never overwritten. Returns true if the
// timestamp was set by this call.
func MarkDelivered(n *models.Nudge, now time.Time) bool {
	if n.DeliveredAt != nil || n.AcknowledgedAt != nil {
		return false
	}
	t := now
	n.DeliveredAt = &t
	return true
}

// Acknowledge records an explicit device dismissal, setting openedAt and
// acknowledgedAt together. Idempotent: the first write wins and is never
// cleared or changed. Returns true if the timestamps were set by this call.
func Acknowledge(n *models.Nudge, now time.Time) bool {
	if n.AcknowledgedAt != nil {
		return false
	}
	t := now
	if n.OpenedAt == nil {
		n.OpenedAt = &t
	}
	n.AcknowledgedAt = &t
	return true
}
