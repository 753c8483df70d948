package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// AuditHandler exposes the append-only audit log to operators.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logHandler(logger, "audit")}
}

type listAuditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
}

// ListAudit returns audit entries newest first, optionally filtered by
// event name.
// GET /api/audit?event=listing.failed&limit=50&offset=0
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store unavailable")
		return
	}
	entries, err := h.audit.List(r.Context(), r.URL.Query().Get("event"), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, listAuditResponse{Entries: entries})
}
