package prizepool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// HTTPSource reads the snapshot from the Hotpot data API.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates a source for the API rooted at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch GETs {base}/prize-pool. A 404 or a JSON null body means no data.
func (s *HTTPSource) Fetch(ctx context.Context) (*domain.PrizePoolSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/prize-pool", nil)
	if err != nil {
		return nil, fmt.Errorf("prizepool: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prizepool: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("prizepool: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("prizepool: HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, nil
	}

	var snap domain.PrizePoolSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("prizepool: decode snapshot: %w", err)
	}
	if err := validate(snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// validate checks that both values are non-negative decimals.
func validate(snap domain.PrizePoolSnapshot) error {
	for name, v := range map[string]string{"currentPotSize": snap.CurrentPotSize, "potLimit": snap.PotLimit} {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("prizepool: %s %q is not a decimal: %w", name, v, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("prizepool: %s %q is negative", name, v)
		}
	}
	return nil
}
