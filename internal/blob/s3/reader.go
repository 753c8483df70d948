package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Reader implements domain.BlobReader using an S3-compatible backend.
type Reader struct {
	client *Client
}

// NewReader creates a Reader for the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{client: c}
}

// Get opens the object at path. The caller closes the body. A missing object
// yields domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := r.client.S3().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.client.Bucket()),
		Key:    aws.String(r.client.key(path)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3blob: get %s: %w", path, notFoundOr(err))
	}
	return out.Body, nil
}

// Exists reports whether an object is stored at path.
func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.client.S3().HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.client.Bucket()),
		Key:    aws.String(r.client.key(path)),
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(notFoundOr(err), domain.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("s3blob: exists %s: %w", path, err)
	}
}

// List walks every page under prefix and returns the objects sorted by path.
// Folder markers are skipped and paths come back without the client key
// prefix.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	pages := s3.NewListObjectsV2Paginator(r.client.S3(), &s3.ListObjectsV2Input{
		Bucket: aws.String(r.client.Bucket()),
		Prefix: aws.String(r.client.key(prefix)),
	})

	var infos []domain.BlobInfo
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			infos = append(infos, domain.BlobInfo{
				Path:         r.client.path(key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	slices.SortFunc(infos, func(a, b domain.BlobInfo) int {
		return strings.Compare(a.Path, b.Path)
	})
	return infos, nil
}

// notFoundOr maps the SDK's missing-object errors to domain.ErrNotFound.
// GetObject reports NoSuchKey, HeadObject only a bare 404.
func notFoundOr(err error) error {
	var (
		noKey  *types.NoSuchKey
		notFnd *types.NotFound
		status interface{ HTTPStatusCode() int }
	)
	if errors.As(err, &noKey) || errors.As(err, &notFnd) {
		return domain.ErrNotFound
	}
	if errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return err
}

var _ domain.BlobReader = (*Reader)(nil)
