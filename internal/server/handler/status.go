package handler

import (
	"net/http"
	"time"
)

// SessionCounter reports the number of live wizard sessions.
type SessionCounter interface {
	Count() int
}

// StatusHandler serves the backend status (mode, chain, seller account).
type StatusHandler struct {
	Mode        string
	ChainID     int64
	Marketplace string
	Account     string
	StartedAt   time.Time
	sessions    SessionCounter
}

// NewStatusHandler creates a StatusHandler. account may be empty when the
// service runs without a wallet.
func NewStatusHandler(mode string, chainID int64, marketplace, account string, sessions SessionCounter) *StatusHandler {
	return &StatusHandler{
		Mode:        mode,
		ChainID:     chainID,
		Marketplace: marketplace,
		Account:     account,
		StartedAt:   time.Now().UTC(),
		sessions:    sessions,
	}
}

// GetStatus responds with the current backend mode and chain settings.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	active := 0
	if h.sessions != nil {
		active = h.sessions.Count()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":            h.Mode,
		"chain_id":        h.ChainID,
		"marketplace":     h.Marketplace,
		"account":         h.Account,
		"signing":         h.Account != "",
		"active_sessions": active,
		"uptime_seconds":  int64(time.Since(h.StartedAt).Seconds()),
	})
}
