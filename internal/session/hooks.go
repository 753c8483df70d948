package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
	"github.com/alanyoungcy/hotpot/internal/listing"
)

// StateEvent is published on the session's listing channel after every
// wizard transition.
type StateEvent struct {
	SessionID string       `json:"sessionId"`
	State     listing.View `json:"state"`
}

// RevalidateEvent tells clients that listings of a token changed.
type RevalidateEvent struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

func (m *Manager) onStateChange(s *Session, st listing.State) {
	if s.ctx.Err() == nil {
		m.sessions.SetDefault(s.ID, s)
	}
	m.publish(domain.ListingChannel(s.ID), StateEvent{SessionID: s.ID, State: st.View()})
}

func (m *Manager) onClose(s *Session) {
	m.publish(domain.ChannelRevalidate, RevalidateEvent{
		Collection: s.Item.Collection.Hex(),
		TokenID:    s.Item.TokenID.String(),
	})
	m.logAudit(s.ctx, domain.AuditSessionClosed, s, nil)
}

func (m *Manager) onListingError(s *Session, err error) {
	detail := map[string]any{"error": err.Error()}
	var se *listing.SubmitError
	if errors.As(err, &se) {
		detail["stage"] = string(se.Stage)
	}
	m.logAudit(s.ctx, domain.AuditListingFailed, s, detail)
}

// onListed persists and archives the confirmed listing. Failures here are
// logged; the listing itself is already on chain.
func (m *Manager) onListed(ctx context.Context, s *Session, r listing.Receipt) {
	rec := recordFromReceipt(r, m.now())

	if m.listings != nil {
		id, err := m.listings.Insert(ctx, rec)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
		case err != nil:
			m.logger.ErrorContext(ctx, "persist listing failed",
				slog.String("session_id", s.ID),
				slog.String("tx_hash", rec.ListingTxHash),
				slog.String("error", err.Error()),
			)
		default:
			rec.ID = id
		}
	}

	if m.archiver != nil {
		if _, err := m.archiver.ArchiveReceipt(ctx, rec); err != nil {
			m.logger.ErrorContext(ctx, "archive receipt failed",
				slog.String("session_id", s.ID),
				slog.String("tx_hash", rec.ListingTxHash),
				slog.String("error", err.Error()),
			)
		}
	}

	m.logAudit(ctx, domain.AuditListingListed, s, map[string]any{
		"tx_hash": rec.ListingTxHash,
		"price":   rec.Price.String(),
	})
}

func recordFromReceipt(r listing.Receipt, now time.Time) domain.ListingRecord {
	rec := domain.ListingRecord{
		Collection:    r.Item.Collection.Hex(),
		TokenID:       r.Item.TokenID.String(),
		Seller:        r.Seller.Hex(),
		Marketplace:   r.Marketplace.Hex(),
		Price:         r.Price,
		PriceWei:      r.PriceWei.String(),
		Expiration:    r.Expiration.Value,
		ExpiresAt:     r.ExpiresAt,
		ListingTxHash: r.ListingTxHash.Hex(),
		CreatedAt:     now,
	}
	if r.ApprovalTxHash != nil {
		rec.ApprovalTxHash = r.ApprovalTxHash.Hex()
	}
	return rec
}

func (m *Manager) publish(channel string, v any) {
	if m.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("marshal event failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := m.bus.Publish(ctx, channel, payload); err != nil {
		m.logger.Warn("publish event failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func (m *Manager) logAudit(ctx context.Context, event string, s *Session, detail map[string]any) {
	if m.audit == nil {
		return
	}
	if detail == nil {
		detail = map[string]any{}
	}
	detail["session_id"] = s.ID
	detail["collection"] = s.Item.Collection.Hex()
	detail["token_id"] = s.Item.TokenID.String()

	// Audit writes must not be lost to a cancelled request or session.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := m.audit.Log(actx, event, detail); err != nil {
		m.logger.Warn("audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
