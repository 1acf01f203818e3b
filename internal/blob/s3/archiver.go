package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/useQlick/qlickd/internal/domain"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// multipartThreshold is the snapshot size above which the upload switches to
// the multipart manager.
const multipartThreshold = 32 * 1024 * 1024

// Archiver implements domain.SnapshotArchiver by serializing terminal-market
// ledger snapshots to JSON and uploading them to the configured bucket.
type Archiver struct {
	client *s3.Client
	bucket string
}

// NewArchiver creates a new Archiver that uploads snapshots to the given
// client's configured bucket.
func NewArchiver(c *Client) *Archiver {
	return &Archiver{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// SnapshotKey builds the object key under which a market's snapshot is
// stored.
//
//	snapshots/market-42.json
func SnapshotKey(marketID uint64) string {
	return fmt.Sprintf("snapshots/market-%d.json", marketID)
}

// ArchiveSnapshot serializes the snapshot and uploads it, returning the
// object key. Uploads are idempotent: re-archiving a market overwrites the
// previous object.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, snap domain.MarketSnapshot) (string, error) {
	buf, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal snapshot for market %d: %w", snap.Market.ID, err)
	}

	key := SnapshotKey(snap.Market.ID)

	if len(buf) > multipartThreshold {
		uploader := manager.NewUploader(a.client, func(u *manager.Uploader) {
			u.PartSize = minPartSize
		})
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(buf),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return "", fmt.Errorf("s3blob: multipart upload snapshot %s: %w", key, err)
		}
		return key, nil
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: put snapshot %s: %w", key, err)
	}
	return key, nil
}

// FetchSnapshot retrieves a previously archived snapshot object by market ID
// and returns its raw JSON body. Returns domain.ErrNotFound if the market has
// never been archived.
func (a *Archiver) FetchSnapshot(ctx context.Context, marketID uint64) ([]byte, error) {
	key := SnapshotKey(marketID)

	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get snapshot %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get snapshot %s: %w", key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read snapshot %s: %w", key, err)
	}
	return data, nil
}

// isNotFound returns true when the error indicates the requested S3 object
// does not exist. It checks for both the SDK typed error (NoSuchKey) and
// the generic 404 response.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	// HeadObject does not return NoSuchKey; it returns a generic 404.
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Fallback: some S3-compatible providers return a ResponseError with
	// HTTP 404. We check via the smithy HTTP response interface.
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404 {
		return true
	}

	return false
}

// Compile-time interface check.
var _ domain.SnapshotArchiver = (*Archiver)(nil)
