package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/hotpot/internal/prizepool"
)

// PrizePoolHandler serves the prize pool banner. Every request mounts a
// fresh display, so each one performs exactly one fetch.
type PrizePoolHandler struct {
	source prizepool.Source
	logger *slog.Logger
}

// NewPrizePoolHandler creates a PrizePoolHandler reading from source.
func NewPrizePoolHandler(source prizepool.Source, logger *slog.Logger) *PrizePoolHandler {
	return &PrizePoolHandler{source: source, logger: logHandler(logger, "prize_pool")}
}

// GetPrizePool returns the resolved view. A source without data yields
// empty values with loading=false, not an error.
// GET /api/prize-pool
func (h *PrizePoolHandler) GetPrizePool(w http.ResponseWriter, r *http.Request) {
	view, err := prizepool.NewDisplay(h.source, h.logger).Load(r.Context())
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "prize pool unavailable")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
