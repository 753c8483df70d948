package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ListingStore persists completed listings.
type ListingStore interface {
	Insert(ctx context.Context, rec ListingRecord) (int64, error)
	GetByTxHash(ctx context.Context, txHash string) (ListingRecord, error)
	ListByCollection(ctx context.Context, collection string, opts ListOpts) ([]ListingRecord, error)
	ListBySeller(ctx context.Context, seller string, opts ListOpts) ([]ListingRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Audit events written by the listing session manager.
const (
	AuditSessionOpened   = "listing.session_opened"
	AuditListingFailed   = "listing.failed"
	AuditListingListed   = "listing.listed"
	AuditSessionClosed   = "listing.session_closed"
	AuditReceiptArchived = "listing.receipt_archived"
)

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	// List returns entries newest first. An empty event matches all events.
	List(ctx context.Context, event string, opts ListOpts) ([]AuditEntry, error)
}
