package constants

import "time"

type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusAssigned   TaskStatus = "assigned"
	StatusInProgress TaskStatus = "in_progress"
	StatusSubmitted  TaskStatus = "submitted"
	StatusCompleted  TaskStatus = "completed"
	StatusOverdue    TaskStatus = "overdue"
	StatusRevision   TaskStatus = "revision"
)

// ActiveStatuses are the non-terminal statuses a deadline can still act on.
var ActiveStatuses = []TaskStatus{
	StatusOpen,
	StatusAssigned,
	StatusInProgress,
	StatusRevision,
}

// SubmittableStatuses are the assignment statuses from which a submit is valid.
// Overdue is included so a late assignment is never stuck.
var SubmittableStatuses = []TaskStatus{
	StatusAssigned,
	StatusInProgress,
	StatusRevision,
	StatusOverdue,
}

type TargetingMode string

const (
	ModeSingle    TargetingMode = "single"
	ModeBroadcast TargetingMode = "broadcast"
	ModeMulti     TargetingMode = "multi"
)

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// Horizon is a named time-before-deadline threshold, in hours.
// HorizonOverdue marks the deadline itself.
type Horizon int

const (
	Horizon48h     Horizon = 48
	Horizon24h     Horizon = 24
	Horizon1h      Horizon = 1
	HorizonOverdue Horizon = 0
)

func (h Horizon) Duration() time.Duration {
	return time.Duration(h) * time.Hour
}

// EscalatesToAdmins reports whether warnings for this horizon also go to
// notification-enabled admins, not only the assignees.
func (h Horizon) EscalatesToAdmins() bool {
	return h <= Horizon24h
}

func (h Horizon) String() string {
	switch h {
	case Horizon48h:
		return "48h"
	case Horizon24h:
		return "24h"
	case Horizon1h:
		return "1h"
	case HorizonOverdue:
		return "overdue"
	default:
		return "unknown"
	}
}

// WarnHorizons are the pre-deadline warning sweeps, farthest first.
var WarnHorizons = []Horizon{Horizon48h, Horizon24h, Horizon1h}
