package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/hotpot/internal/domain"
	"github.com/alanyoungcy/hotpot/internal/listing"
	"github.com/alanyoungcy/hotpot/internal/session"
)

// SessionService is the part of the session manager the listing handler
// needs.
type SessionService interface {
	Open(ctx context.Context, item listing.Item) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Do(ctx context.Context, id string, action listing.Action) error
	Delete(id string) error
}

// ListingHandler serves the listing wizard sessions and the listing
// records.
type ListingHandler struct {
	sessions SessionService
	listings domain.ListingStore
	logger   *slog.Logger
}

// NewListingHandler creates a ListingHandler. listings may be nil when no
// database is configured; the record endpoints then answer 503.
func NewListingHandler(sessions SessionService, listings domain.ListingStore, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		sessions: sessions,
		listings: listings,
		logger:   logHandler(logger, "listing"),
	}
}

type expirationsResponse struct {
	Options []domain.ExpirationOption `json:"options"`
	Default string                    `json:"default"`
}

// Expirations returns the fixed expiration table.
// GET /api/listings/expirations
func (h *ListingHandler) Expirations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, expirationsResponse{
		Options: listing.ExpirationOptions(),
		Default: listing.DefaultExpiration().Value,
	})
}

type listListingsResponse struct {
	Listings []domain.ListingRecord `json:"listings"`
}

// ListListings returns confirmed listings of a collection or a seller.
// GET /api/listings?collection=0x...&seller=0x...&limit=50&offset=0
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	if h.listings == nil {
		writeError(w, http.StatusServiceUnavailable, "listing store unavailable")
		return
	}
	q := r.URL.Query()
	collection := q.Get("collection")
	seller := q.Get("seller")
	if collection == "" && seller == "" {
		writeError(w, http.StatusBadRequest, "collection or seller query parameter required")
		return
	}

	opts := parseListOpts(r)
	var (
		records []domain.ListingRecord
		err     error
	)
	if collection != "" {
		if !common.IsHexAddress(collection) {
			writeError(w, http.StatusBadRequest, "collection must be a hex address")
			return
		}
		records, err = h.listings.ListByCollection(r.Context(), common.HexToAddress(collection).Hex(), opts)
	} else {
		if !common.IsHexAddress(seller) {
			writeError(w, http.StatusBadRequest, "seller must be a hex address")
			return
		}
		records, err = h.listings.ListBySeller(r.Context(), common.HexToAddress(seller).Hex(), opts)
	}
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list listings")
		return
	}
	if records == nil {
		records = []domain.ListingRecord{}
	}
	writeJSON(w, http.StatusOK, listListingsResponse{Listings: records})
}

// GetListing returns the listing confirmed by a transaction.
// GET /api/listings/tx/{hash}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	if h.listings == nil {
		writeError(w, http.StatusServiceUnavailable, "listing store unavailable")
		return
	}
	hash := pathParam(r, "hash")
	if len(strings.TrimPrefix(hash, "0x")) != 2*common.HashLength {
		writeError(w, http.StatusBadRequest, "hash must be a 32-byte hex transaction hash")
		return
	}
	rec, err := h.listings.GetByTxHash(r.Context(), common.HexToHash(hash).Hex())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load listing")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type openSessionRequest struct {
	CollectionID string      `json:"collection_id"`
	TokenID      json.Number `json:"token_id"`
}

type sessionResponse struct {
	ID         string       `json:"id"`
	Collection string       `json:"collection"`
	TokenID    string       `json:"tokenId"`
	CreatedAt  time.Time    `json:"createdAt"`
	State      listing.View `json:"state"`
}

func newSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		Collection: s.Item.Collection.Hex(),
		TokenID:    s.Item.TokenID.String(),
		CreatedAt:  s.CreatedAt,
		State:      s.Wizard.State().View(),
	}
}

// OpenSession starts a listing wizard for one token.
// POST /api/listings/sessions
func (h *ListingHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !common.IsHexAddress(req.CollectionID) {
		writeError(w, http.StatusBadRequest, "collection_id must be a hex address")
		return
	}
	tokenID, ok := new(big.Int).SetString(req.TokenID.String(), 10)
	if !ok || tokenID.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "token_id must be a non-negative integer")
		return
	}

	s, err := h.sessions.Open(r.Context(), listing.Item{
		Collection: common.HexToAddress(req.CollectionID),
		TokenID:    tokenID,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to open session")
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(s))
}

// GetSession returns the current wizard state.
// GET /api/listings/sessions/{id}
func (h *ListingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}

// DeleteSession drops a session, abandoning any submission it runs.
// DELETE /api/listings/sessions/{id}
func (h *ListingHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(pathParam(r, "id")); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPriceRequest struct {
	Price rawInput `json:"price"`
}

// rawInput accepts a JSON string or a bare JSON number and keeps its text,
// so unparsable prices reach the wizard instead of failing decoding.
type rawInput string

func (in *rawInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*in = rawInput(s)
		return nil
	}
	*in = rawInput(strings.TrimSpace(string(data)))
	return nil
}

// SetPrice records the price input. Non-positive prices are accepted and
// reported through the state's alert.
// PUT /api/listings/sessions/{id}/price
func (h *ListingHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, func(wz *listing.Wizard) error { return wz.SetPrice(string(req.Price)) })
}

type setExpirationRequest struct {
	Value string `json:"value"`
}

// SetExpiration selects an expiration option by value.
// PUT /api/listings/sessions/{id}/expiration
func (h *ListingHandler) SetExpiration(w http.ResponseWriter, r *http.Request) {
	var req setExpirationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, func(wz *listing.Wizard) error { return wz.SetExpiration(req.Value) })
}

// Action runs a wizard button action. Submit and retry start a background
// submission and answer 202; progress arrives over the websocket or by
// polling the session.
// POST /api/listings/sessions/{id}/{action}
func (h *ListingHandler) Action(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	action := listing.Action(pathParam(r, "action"))
	switch action {
	case listing.ActionNext, listing.ActionSubmit, listing.ActionRetry, listing.ActionEdit, listing.ActionClose:
	default:
		writeError(w, http.StatusNotFound, "unknown action "+string(action))
		return
	}

	if err := h.sessions.Do(r.Context(), id, action); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to run "+string(action))
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load session")
		return
	}
	status := http.StatusOK
	if action == listing.ActionSubmit || action == listing.ActionRetry {
		status = http.StatusAccepted
	}
	writeJSON(w, status, newSessionResponse(s))
}

func (h *ListingHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(*listing.Wizard) error) {
	s, err := h.sessions.Get(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load session")
		return
	}
	if err := fn(s.Wizard); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to update session")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}
