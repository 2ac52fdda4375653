package domain

import (
	"context"
	"time"

	"teesheet/internal/models"
)

// RosterAPI is the slice of the backend consumed by the roster manager.
// Every mutation is followed by a full refetch; the manager never computes
// slot or fee outcomes locally.
type RosterAPI interface {
	FetchRoster(ctx context.Context, bookingID int64) (*models.Roster, error)
	LinkMember(ctx context.Context, bookingID int64, slotID int, memberEmail string) error
	UnlinkMember(ctx context.Context, bookingID int64, slotID int) error
	AddGuest(ctx context.Context, bookingID int64, req models.AddGuestRequest) (*models.AddGuestResult, error)
	RemoveGuest(ctx context.Context, bookingID, guestID int64) error
	UpdatePlayerCount(ctx context.Context, bookingID int64, playerCount int) error
	ApplyBillingAction(ctx context.Context, bookingID int64, req models.BillingActionRequest) error
}

// ReconcileAPI covers the three finalize routes plus the alternative
// terminal actions and visitor management.
type ReconcileAPI interface {
	ResolveLegacyUnmatched(ctx context.Context, unmatchedID int64, req models.ResolveLegacyRequest) (*models.ResolveResult, error)
	AssignWithPlayers(ctx context.Context, bookingID int64, req models.AssignRequest) (*models.ResolveResult, error)
	LinkTrackmanBooking(ctx context.Context, req models.LinkTrackmanRequest) (*models.ResolveResult, error)
	MarkAsEvent(ctx context.Context, bookingID int64, trackmanID string) error
	CreateVisitor(ctx context.Context, name, email string) (*models.Visitor, error)
}

// SearchAPI backs the debounced member/visitor lookups.
type SearchAPI interface {
	SearchMembers(ctx context.Context, query string, limit int) ([]models.Member, error)
	SearchVisitors(ctx context.Context, query string, limit int) ([]models.Visitor, error)
}

// WebhookAPI exposes the immutable webhook event log.
type WebhookAPI interface {
	ListWebhookEvents(ctx context.Context, limit, offset int) (*models.WebhookEventPage, error)
	WebhookStats(ctx context.Context) (*models.WebhookStats, error)
}

// DirectoryAPI fetches the full directory used to seed the cache.
type DirectoryAPI interface {
	FetchDirectory(ctx context.Context) (*models.DirectorySnapshot, error)
}

// DirectoryRepository stores the cached directory snapshot.
type DirectoryRepository interface {
	GetSnapshot(ctx context.Context) (*models.DirectorySnapshot, error)
	SetSnapshot(ctx context.Context, snap *models.DirectorySnapshot) error
	ClearSnapshot(ctx context.Context) error
}

// DirectoryReader is the read-only dependency injected into the roster
// manager and reconciliation sessions. It replaces the ambient shared
// member-list context the panel used to lean on.
type DirectoryReader interface {
	MembersMatching(ctx context.Context, query string, limit int) ([]models.Member, error)
	MembersByExactName(ctx context.Context, fullName string) ([]models.Member, error)
	VisitorsByExactName(ctx context.Context, fullName string) ([]models.Visitor, error)
	Staff(ctx context.Context) ([]models.StaffMember, error)
}

// EventPublisher decouples reconciliation outcomes from their consumers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// AuditStore persists the reconciliation audit trail and the sheet-sync
// queue.
type AuditStore interface {
	RecordOutcome(ctx context.Context, rec *models.AuditRecord) error
	ListOutcomes(ctx context.Context, limit int) ([]models.AuditRecord, error)
	PendingTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// AuditSheetWriter mirrors audit records to the operations spreadsheet.
type AuditSheetWriter interface {
	AppendAuditRow(ctx context.Context, rec *models.AuditRecord) error
}
