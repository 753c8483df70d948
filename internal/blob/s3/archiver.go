package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Content types of archived objects.
const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"
)

// auditPageSize is how many audit rows are read per query during export.
const auditPageSize = 1000

// Archiver writes listing receipts and audit exports to object storage.
// Receipts are immutable: a receipt whose key already exists is not
// rewritten.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. reader and audit may be nil; without a
// reader every receipt is written, without an audit store nothing is logged
// and ExportAudit is unavailable.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, reader: reader, audit: audit}
}

// ArchiveReceipt uploads rec as JSON at receipts/<collection>/<token>/<tx>.json
// and returns the key.
func (a *Archiver) ArchiveReceipt(ctx context.Context, rec domain.ListingRecord) (string, error) {
	path := ReceiptPath(rec)

	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return "", fmt.Errorf("s3blob: receipt exists %s: %w", path, err)
		}
		if exists {
			return path, nil
		}
	}

	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal receipt: %w", err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(body), contentTypeJSON); err != nil {
		return "", fmt.Errorf("s3blob: upload receipt: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, domain.AuditReceiptArchived, map[string]any{
			"path":    path,
			"tx_hash": rec.ListingTxHash,
		}); err != nil {
			return path, fmt.Errorf("s3blob: receipt audit log: %w", err)
		}
	}
	return path, nil
}

// ExportAudit serialises every audit entry created before the cutoff to
// JSONL, uploads it at archive/audit/YYYY-MM.jsonl and returns the number of
// entries written.
func (a *Archiver) ExportAudit(ctx context.Context, before time.Time) (int, error) {
	if a.audit == nil {
		return 0, fmt.Errorf("s3blob: export audit: %w", domain.ErrCollaboratorUnavailable)
	}

	var entries []domain.AuditEntry
	for offset := 0; ; offset += auditPageSize {
		page, err := a.audit.List(ctx, "", domain.ListOpts{
			Until:  &before,
			Limit:  auditPageSize,
			Offset: offset,
		})
		if err != nil {
			return 0, fmt.Errorf("s3blob: export audit query: %w", err)
		}
		entries = append(entries, page...)
		if len(page) < auditPageSize {
			break
		}
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: export audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.put(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: export audit upload: %w", err)
	}
	return len(entries), nil
}

// Receipts lists archived receipts. An empty collection lists everything;
// tokenID narrows the listing to one token of the collection.
func (a *Archiver) Receipts(ctx context.Context, collection, tokenID string) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("s3blob: list receipts: %w", domain.ErrCollaboratorUnavailable)
	}
	prefix := "receipts/"
	if collection != "" {
		prefix += strings.ToLower(collection) + "/"
		if tokenID != "" {
			prefix += tokenID + "/"
		}
	}
	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list receipts: %w", err)
	}
	return infos, nil
}

// Receipt reads back the archived receipt at path.
func (a *Archiver) Receipt(ctx context.Context, path string) (domain.ListingRecord, error) {
	var rec domain.ListingRecord
	if a.reader == nil {
		return rec, fmt.Errorf("s3blob: read receipt: %w", domain.ErrCollaboratorUnavailable)
	}
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return rec, fmt.Errorf("s3blob: read receipt: %w", err)
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		return rec, fmt.Errorf("s3blob: decode receipt %s: %w", path, err)
	}
	return rec, nil
}

// put uses a multipart upload when the writer supports it.
func (a *Archiver) put(ctx context.Context, path string, data []byte) error {
	if mp, ok := a.writer.(*Writer); ok {
		return mp.PutMultipart(ctx, path, bytes.NewReader(data), contentTypeJSONL, minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(data), contentTypeJSONL)
}

// ReceiptPath is the object key of a listing receipt.
//
//	receipts/0xabc.../42/0xdef....json
func ReceiptPath(rec domain.ListingRecord) string {
	return fmt.Sprintf("receipts/%s/%s/%s.json",
		strings.ToLower(rec.Collection), rec.TokenID, strings.ToLower(rec.ListingTxHash))
}

// archivePath builds the key for an export partitioned by the year-month of
// the cutoff.
//
//	archive/audit/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
