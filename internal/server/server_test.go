package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/hotpot/internal/domain"
	"github.com/alanyoungcy/hotpot/internal/listing"
	"github.com/alanyoungcy/hotpot/internal/server/handler"
	"github.com/alanyoungcy/hotpot/internal/session"
)

var (
	testAccount     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testCollection  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testMarketplace = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type instantTx struct{ hash common.Hash }

func (t instantTx) Hash() common.Hash { return t.hash }
func (t instantTx) Wait(ctx context.Context) error { return nil }

type approvedCollection struct{}

func (approvedCollection) Address() common.Address { return testCollection }
func (approvedCollection) IsApprovedForAll(context.Context, common.Address, common.Address) (bool, error) {
	return true, nil
}
func (approvedCollection) SetApprovalForAll(context.Context, common.Address, bool) (domain.PendingTx, error) {
	return nil, errors.New("unexpected approval")
}

type instantMarketplace struct{}

func (instantMarketplace) Address() common.Address { return testMarketplace }
func (instantMarketplace) MakeItem(context.Context, common.Address, *big.Int, *big.Int) (domain.PendingTx, error) {
	return instantTx{hash: common.HexToHash("0xbb")}, nil
}

type memListings struct {
	mu   sync.Mutex
	recs []domain.ListingRecord
}

func (s *memListings) Insert(ctx context.Context, rec domain.ListingRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = int64(len(s.recs) + 1)
	s.recs = append(s.recs, rec)
	return rec.ID, nil
}

func (s *memListings) GetByTxHash(ctx context.Context, txHash string) (domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recs {
		if r.ListingTxHash == txHash {
			return r, nil
		}
	}
	return domain.ListingRecord{}, domain.ErrNotFound
}

func (s *memListings) ListByCollection(ctx context.Context, collection string, opts domain.ListOpts) ([]domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ListingRecord
	for _, r := range s.recs {
		if r.Collection == collection {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memListings) ListBySeller(ctx context.Context, seller string, opts domain.ListOpts) ([]domain.ListingRecord, error) {
	return nil, nil
}

func (s *memListings) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

type staticSource struct{ snap *domain.PrizePoolSnapshot }

func (s staticSource) Fetch(context.Context) (*domain.PrizePoolSnapshot, error) { return s.snap, nil }

// countingLimiter allows the first n requests.
type countingLimiter struct {
	mu    sync.Mutex
	n     int
	calls int
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return domain.RateDecision{Allowed: l.calls <= l.n, Remaining: max(l.n-l.calls, 0)}, nil
}

type testEnv struct {
	srv      *httptest.Server
	listings *memListings
	sessions *session.Manager
}

type envOptions struct {
	cfg     Config
	limiter domain.RateLimiter
	checks  map[string]handler.PingFunc
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := discardLogger()
	listings := &memListings{}
	sessions := session.NewManager(session.Config{}, func(listing.Item) listing.Deps {
		return listing.Deps{
			Account:     testAccount,
			Collection:  approvedCollection{},
			Marketplace: instantMarketplace{},
		}
	}, session.WithListingStore(listings), session.WithLogger(logger))
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	handlers := Handlers{
		Health: handler.NewHealthHandler(opts.checks, logger),
		Status: handler.NewStatusHandler("full", 31337, testMarketplace.Hex(), testAccount.Hex(), sessions),
		PrizePool: handler.NewPrizePoolHandler(staticSource{snap: &domain.PrizePoolSnapshot{
			CurrentPotSize: "12.3456",
			PotLimit:       "100.0",
		}}, logger),
		Listings: handler.NewListingHandler(sessions, listings, logger),
	}
	s := NewServer(opts.cfg, handlers, nil, opts.limiter, logger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, listings: listings, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
	return resp, out
}

func stateOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	st, ok := body["state"].(map[string]any)
	if !ok {
		t.Fatalf("response has no state: %v", body)
	}
	return st
}

func TestListingWizardOverHTTP(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.do(t, http.MethodPost, "/api/listings/sessions", map[string]any{
		"collection_id": testCollection.Hex(),
		"token_id":      7,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open: status %d %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("open: no id in %v", body)
	}
	if got := stateOf(t, body)["step"]; got != "select_markets" {
		t.Fatalf("step = %v", got)
	}
	base := "/api/listings/sessions/" + id

	if resp, body := env.do(t, http.MethodPost, base+"/submit", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("submit at select_markets: status %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, base+"/next", nil)
	if resp.StatusCode != http.StatusOK || stateOf(t, body)["step"] != "set_price" {
		t.Fatalf("next: %d %v", resp.StatusCode, body)
	}

	_, body = env.do(t, http.MethodPut, base+"/price", map[string]any{"price": "abc"})
	if got := stateOf(t, body)["alert"]; got != listing.AlertPriceNotPositive {
		t.Fatalf("alert = %v", got)
	}
	if resp, _ := env.do(t, http.MethodPost, base+"/submit", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("submit with zero price: status %d", resp.StatusCode)
	}

	_, body = env.do(t, http.MethodPut, base+"/price", map[string]any{"price": 1.5})
	st := stateOf(t, body)
	if st["price"] != "1.5" || st["alert"] != nil {
		t.Fatalf("price state = %v", st)
	}

	if resp, _ := env.do(t, http.MethodPut, base+"/expiration", map[string]any{"value": "2 years"}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown expiration: status %d", resp.StatusCode)
	}
	_, body = env.do(t, http.MethodPut, base+"/expiration", map[string]any{"value": "week"})
	if got := stateOf(t, body)["expiration"]; got != "week" {
		t.Fatalf("expiration = %v", got)
	}

	resp, _ = env.do(t, http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body = env.do(t, http.MethodGet, base, nil)
		st = stateOf(t, body)
		if st["step"] == "complete" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("submission did not complete: %v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st["listingTxHash"] != common.HexToHash("0xbb").Hex() || st["primaryAction"] != "close" {
		t.Fatalf("final state = %v", st)
	}

	deadline = time.Now().Add(5 * time.Second)
	for env.listings.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("listing record was not persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, body = env.do(t, http.MethodGet, "/api/listings?collection="+testCollection.Hex(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	if recs, _ := body["listings"].([]any); len(recs) != 1 {
		t.Fatalf("listings = %v", body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/listings/tx/"+common.HexToHash("0xbb").Hex(), nil)
	if resp.StatusCode != http.StatusOK || body["priceWei"] != "1500000000000000000" {
		t.Fatalf("get listing: %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, base+"/close", nil)
	if resp.StatusCode != http.StatusOK || stateOf(t, body)["step"] != "select_markets" {
		t.Fatalf("close: %d %v", resp.StatusCode, body)
	}

	if resp, _ := env.do(t, http.MethodDelete, base, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodGet, base, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: status %d", resp.StatusCode)
	}
}

func TestOpenSessionValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	tests := []struct {
		name string
		body any
	}{
		{"bad collection", map[string]any{"collection_id": "0x12", "token_id": 1}},
		{"negative token", map[string]any{"collection_id": testCollection.Hex(), "token_id": -1}},
		{"fractional token", map[string]any{"collection_id": testCollection.Hex(), "token_id": 1.5}},
		{"unknown field", map[string]any{"collection_id": testCollection.Hex(), "token_id": 1, "price": 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodPost, "/api/listings/sessions", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestUnknownSessionAndAction(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if resp, _ := env.do(t, http.MethodGet, "/api/listings/sessions/missing", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session: status %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodPost, "/api/listings/sessions/missing/fly", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown action: status %d", resp.StatusCode)
	}
}

func TestPrizePoolAndExpirations(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.do(t, http.MethodGet, "/api/prize-pool", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prize pool: status %d", resp.StatusCode)
	}
	if body["currentPotSize"] != "12.3" || body["potLimit"] != "100." || body["loading"] != false {
		t.Fatalf("prize pool = %v", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/listings/expirations", nil)
	if body["default"] != "6 months" {
		t.Fatalf("default = %v", body["default"])
	}
	if opts, _ := body["options"].([]any); len(opts) != 8 {
		t.Fatalf("options = %v", body["options"])
	}
}

func TestAuthAndHealth(t *testing.T) {
	env := newTestEnv(t, envOptions{
		cfg: Config{APIKey: "s3cret"},
		checks: map[string]handler.PingFunc{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})

	resp, body := env.do(t, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
	deps, _ := body["dependencies"].(map[string]any)
	if deps["postgres"] != "ok" || deps["redis"] != "connection refused" {
		t.Fatalf("dependencies = %v", deps)
	}

	if resp, _ := env.do(t, http.MethodGet, "/api/status", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: status %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Bearer wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodGet, "/api/status", nil, "X-API-Key", "s3cret")
	if resp.StatusCode != http.StatusOK || body["signing"] != true {
		t.Fatalf("status: %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{n: 1}
	env := newTestEnv(t, envOptions{
		cfg:     Config{RateLimit: 1, RateWindow: 30 * time.Second},
		limiter: limiter,
	})

	if resp, _ := env.do(t, http.MethodGet, "/api/listings/expirations", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: status %d", resp.StatusCode)
	}
	resp, _ := env.do(t, http.MethodGet, "/api/listings/expirations", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q", got)
	}
	if got := resp.Header.Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
}
