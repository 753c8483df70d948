package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = b
	m.types[path] = contentType
	return nil
}

func (m *memBlob) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlob) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *memBlob) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

type memAudit struct {
	entries []domain.AuditEntry
}

func (m *memAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	m.entries = append(m.entries, domain.AuditEntry{ID: int64(len(m.entries) + 1), Event: event, Detail: detail})
	return nil
}

func (m *memAudit) List(ctx context.Context, event string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if event == "" || e.Event == event {
			out = append(out, e)
		}
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func testRecord() domain.ListingRecord {
	return domain.ListingRecord{
		Collection:    "0xAbCd000000000000000000000000000000000001",
		TokenID:       "42",
		Seller:        "0x1111111111111111111111111111111111111111",
		Price:         decimal.RequireFromString("1.5"),
		PriceWei:      "1500000000000000000",
		Expiration:    "6 months",
		ListingTxHash: "0xBEEF",
	}
}

func TestReceiptPath(t *testing.T) {
	got := ReceiptPath(testRecord())
	want := "receipts/0xabcd000000000000000000000000000000000001/42/0xbeef.json"
	if got != want {
		t.Fatalf("ReceiptPath = %q, want %q", got, want)
	}
}

func TestArchiveReceipt(t *testing.T) {
	blob := newMemBlob()
	audit := &memAudit{}
	a := NewArchiver(blob, blob, audit)

	path, err := a.ArchiveReceipt(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("ArchiveReceipt: %v", err)
	}
	if blob.types[path] != contentTypeJSON {
		t.Errorf("content type = %q", blob.types[path])
	}
	var got domain.ListingRecord
	if err := json.Unmarshal(blob.objects[path], &got); err != nil {
		t.Fatal(err)
	}
	if got.ListingTxHash != "0xBEEF" || !got.Price.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("stored receipt = %+v", got)
	}
	if len(audit.entries) != 1 || audit.entries[0].Event != domain.AuditReceiptArchived {
		t.Fatalf("audit = %+v", audit.entries)
	}

	// Existing receipts are left alone.
	blob.objects[path] = []byte("original")
	if _, err := a.ArchiveReceipt(context.Background(), testRecord()); err != nil {
		t.Fatal(err)
	}
	if string(blob.objects[path]) != "original" {
		t.Fatal("existing receipt was overwritten")
	}
	if len(audit.entries) != 1 {
		t.Fatal("skipped receipt was audited")
	}
}

func TestReceipts(t *testing.T) {
	blob := newMemBlob()
	a := NewArchiver(blob, blob, nil)
	ctx := context.Background()
	for _, rec := range []domain.ListingRecord{
		{Collection: "0xAAA", TokenID: "1", ListingTxHash: "0x01"},
		{Collection: "0xAAA", TokenID: "2", ListingTxHash: "0x02"},
		{Collection: "0xBBB", TokenID: "1", ListingTxHash: "0x03"},
	} {
		if _, err := a.ArchiveReceipt(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		collection, token string
		want              int
	}{
		{"", "", 3},
		{"0xaaa", "", 2},
		{"0xAAA", "2", 1},
		{"0xccc", "", 0},
	}
	for _, tt := range tests {
		infos, err := a.Receipts(ctx, tt.collection, tt.token)
		if err != nil {
			t.Fatal(err)
		}
		if len(infos) != tt.want {
			t.Errorf("Receipts(%q, %q) = %d objects, want %d", tt.collection, tt.token, len(infos), tt.want)
		}
	}

	if _, err := NewArchiver(blob, nil, nil).Receipts(ctx, "", ""); !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Fatalf("without reader err = %v", err)
	}
}

func TestReceipt(t *testing.T) {
	blob := newMemBlob()
	a := NewArchiver(blob, blob, nil)
	ctx := context.Background()

	path, err := a.ArchiveReceipt(ctx, testRecord())
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.Receipt(ctx, path)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if got.ListingTxHash != "0xBEEF" || got.PriceWei != "1500000000000000000" {
		t.Fatalf("Receipt = %+v", got)
	}

	if _, err := a.Receipt(ctx, "receipts/missing.json"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing receipt err = %v", err)
	}
	blob.objects["receipts/bad.json"] = []byte("{")
	if _, err := a.Receipt(ctx, "receipts/bad.json"); err == nil {
		t.Fatal("corrupt receipt should fail")
	}
}

func TestExportAudit(t *testing.T) {
	blob := newMemBlob()
	audit := &memAudit{}
	for i := 0; i < auditPageSize+5; i++ {
		audit.Log(context.Background(), domain.AuditListingFailed, map[string]any{"i": i})
	}
	a := NewArchiver(blob, nil, audit)

	before := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	n, err := a.ExportAudit(context.Background(), before)
	if err != nil {
		t.Fatalf("ExportAudit: %v", err)
	}
	if n != auditPageSize+5 {
		t.Fatalf("exported %d entries", n)
	}
	data := blob.objects["archive/audit/2026-03.jsonl"]
	if lines := strings.Count(string(data), "\n"); lines != n {
		t.Fatalf("jsonl lines = %d, want %d", lines, n)
	}
	if blob.types["archive/audit/2026-03.jsonl"] != contentTypeJSONL {
		t.Fatal("wrong content type")
	}
}

func TestExportAuditWithoutStore(t *testing.T) {
	a := NewArchiver(newMemBlob(), nil, nil)
	if _, err := a.ExportAudit(context.Background(), time.Now()); !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	if got := normaliseEndpoint("minio.local", false); got != "http://minio.local" {
		t.Errorf("got %q", got)
	}
	if got := normaliseEndpoint("s3.example.com", true); got != "https://s3.example.com" {
		t.Errorf("got %q", got)
	}
	if got := normaliseEndpoint("https://x", false); got != "https://x" {
		t.Errorf("got %q", got)
	}
	if got := normaliseEndpoint("localhost:9000", false); got != "http://localhost:9000" {
		t.Errorf("host:port got %q", got)
	}
}

func TestNormalisePrefix(t *testing.T) {
	for in, want := range map[string]string{"": "", "/": "", "prod": "prod/", "/prod/": "prod/", "a/b": "a/b/"} {
		if got := normalisePrefix(in); got != want {
			t.Errorf("normalisePrefix(%q) = %q, want %q", in, got, want)
		}
	}
	c := &Client{prefix: normalisePrefix("prod")}
	if got := c.key("/receipts/x.json"); got != "prod/receipts/x.json" {
		t.Errorf("key = %q", got)
	}
	if got := c.path("prod/receipts/x.json"); got != "receipts/x.json" {
		t.Errorf("path = %q", got)
	}
}
