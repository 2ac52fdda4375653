package models

import "time"

// Reconciliation outcomes recorded in the local audit trail.
const (
	OutcomeResolved      = "resolved"
	OutcomeMarkedEvent   = "marked_event"
	OutcomeAssignedStaff = "assigned_staff"
)

// AuditRecord is one admin-side record of how an unmatched booking was
// disposed of. Booking state itself stays on the backend; this trail only
// exists for operational review and the sheet mirror.
type AuditRecord struct {
	ID               int64     `json:"id"`
	UnmatchedID      int64     `json:"unmatched_id"`
	TrackmanID       string    `json:"trackman_id,omitempty"`
	Outcome          string    `json:"outcome"`
	Route            string    `json:"route,omitempty"`
	BookingID        int64     `json:"booking_id,omitempty"`
	OwnerEmail       string    `json:"owner_email,omitempty"`
	PlayerCount      int       `json:"player_count,omitempty"`
	FeesRecalculated bool      `json:"fees_recalculated"`
	CreatedAt        time.Time `json:"created_at"`
}

// Sync task statuses for the sheet mirror queue.
const (
	TaskPending   = "pending"
	TaskRetry     = "retry"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// SyncTask is one queued unit of work for the audit sheet worker.
type SyncTask struct {
	ID          int64
	AuditID     int64
	Payload     string
	Status      string
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	NextRetryAt *time.Time
}
